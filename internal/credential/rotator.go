package credential

import (
	"errors"
	"strings"
	"sync"
)

// ErrNoCredentials is returned when a key string yields no usable keys
var ErrNoCredentials = errors.New("no API keys configured")

// Policy controls when the rotator advances to the next key
type Policy int

const (
	// RotateOnFailure keeps the current key until Rotate is called
	RotateOnFailure Policy = iota
	// RotateEveryCall advances after every Next
	RotateEveryCall
)

// String returns the policy name used in flags and logs
func (p Policy) String() string {
	switch p {
	case RotateEveryCall:
		return "every-call"
	default:
		return "on-failure"
	}
}

// Rotator cycles through an ordered pool of keys
type Rotator struct {
	mu     sync.Mutex
	keys   []string
	cursor int
	// last is the index of the key most recently handed out
	last   int
	policy Policy
}

// ParseKeys splits a comma-separated key string, trimming whitespace and
// dropping empty entries
func ParseKeys(raw string) []string {
	var keys []string
	for _, part := range strings.Split(raw, ",") {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// New creates a rotator from a comma-separated key string
func New(raw string, policy Policy) (*Rotator, error) {
	keys := ParseKeys(raw)
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	return &Rotator{keys: keys, policy: policy}, nil
}

// Next returns the current key. With RotateEveryCall the cursor advances
// afterwards, so consecutive calls walk the pool in order.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = r.cursor
	key := r.keys[r.cursor]
	if r.policy == RotateEveryCall {
		r.cursor = (r.cursor + 1) % len(r.keys)
	}
	return key
}

// Current returns the key at the cursor without advancing
func (r *Rotator) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keys[r.cursor]
}

// Rotate moves past the key last returned by Next (or the current key when
// Next has not been called since) after a failure caused by that key. It
// reports whether a different key is now current.
func (r *Rotator) Rotate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cursor = (r.last + 1) % len(r.keys)
	r.last = r.cursor
	return len(r.keys) > 1
}

// Len returns the pool size
func (r *Rotator) Len() int {
	return len(r.keys)
}

// Position returns the cursor index
func (r *Rotator) Position() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Policy returns the rotation policy
func (r *Rotator) Policy() Policy {
	return r.policy
}
