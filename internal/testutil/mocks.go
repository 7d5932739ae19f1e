package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/snonux/bookmaker/internal/notify"
)

// MockTranslator mocks a translation provider. Errors scripts a sequence of
// errors per source text; each call consumes one entry and a nil entry or
// an exhausted sequence succeeds.
type MockTranslator struct {
	Translations map[string]string
	Errors       map[string][]error
	// Keys is the key pool RotateKey cycles through; fewer than two keys
	// means rotation never yields a different key
	Keys []string

	mu       sync.Mutex
	Calls    []string
	KeysUsed []string
	Rotated  int
	key      int
}

// Translate mocks translating text
func (m *MockTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, text)
	if len(m.Keys) > 0 {
		m.KeysUsed = append(m.KeysUsed, m.Keys[m.key])
	}

	if errs := m.Errors[text]; len(errs) > 0 {
		err := errs[0]
		m.Errors[text] = errs[1:]
		if err != nil {
			return "", err
		}
	}

	if translation, ok := m.Translations[text]; ok {
		return translation, nil
	}
	return fmt.Sprintf("[%s] %s", targetLanguage, text), nil
}

// Name returns the provider name
func (m *MockTranslator) Name() string { return "mock" }

// RotateKey advances the key pool
func (m *MockTranslator) RotateKey() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Rotated++
	if len(m.Keys) < 2 {
		return false
	}
	m.key = (m.key + 1) % len(m.Keys)
	return true
}

// CallCount returns the number of Translate calls
func (m *MockTranslator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// CallsFor returns how often text was sent
func (m *MockTranslator) CallsFor(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.Calls {
		if c == text {
			n++
		}
	}
	return n
}

// MockBatchTranslator adds a batch endpoint to MockTranslator. BatchErrors
// is consumed one entry per batch call.
type MockBatchTranslator struct {
	MockTranslator
	BatchErrors []error
	Batches     [][]string
}

// TranslateBatch mocks a batch request
func (m *MockBatchTranslator) TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	m.mu.Lock()
	m.Batches = append(m.Batches, append([]string(nil), texts...))
	if len(m.BatchErrors) > 0 {
		err := m.BatchErrors[0]
		m.BatchErrors = m.BatchErrors[1:]
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	m.mu.Unlock()

	out := make([]string, len(texts))
	for i, text := range texts {
		if translation, ok := m.Translations[text]; ok {
			out[i] = translation
			continue
		}
		out[i] = fmt.Sprintf("[%s] %s", targetLanguage, text)
	}
	return out, nil
}

// RecordingSink records progress updates
type RecordingSink struct {
	mu       sync.Mutex
	Started  []int
	Advances [][2]int
	Finished int
}

// Start records the total
func (s *RecordingSink) Start(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Started = append(s.Started, total)
}

// Advance records one step
func (s *RecordingSink) Advance(current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Advances = append(s.Advances, [2]int{current, total})
}

// Finish records the end of a run
func (s *RecordingSink) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Finished++
}

// RecordingSleeper records backoff delays without waiting. Hook, if set, is
// called after each recorded delay.
type RecordingSleeper struct {
	mu     sync.Mutex
	Delays []time.Duration
	Hook   func()
}

// Sleep records d and returns immediately unless ctx is done
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.Delays = append(s.Delays, d)
	hook := s.Hook
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return ctx.Err()
}

// MockNotifier records outcomes
type MockNotifier struct {
	mu       sync.Mutex
	Outcomes []notify.Outcome
	Err      error
}

// Notify records o
func (m *MockNotifier) Notify(_ context.Context, o notify.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, o)
	return m.Err
}

// Last returns the most recent outcome
func (m *MockNotifier) Last() (notify.Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Outcomes) == 0 {
		return notify.Outcome{}, false
	}
	return m.Outcomes[len(m.Outcomes)-1], true
}
