package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind identifies a translation backend
type Kind string

const (
	KindOpenAI Kind = "openai"
	KindClaude Kind = "claude"
	KindGroq   Kind = "groq"
	KindXAI    Kind = "xai"
	KindQwen   Kind = "qwen"
	KindGemini Kind = "gemini"
	KindDeepL  Kind = "deepl"
	KindCaiyun Kind = "caiyun"
	KindGoogle Kind = "google"
)

// Factory builds a provider from configuration
type Factory func(cfg Config) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = map[Kind]Factory{
		KindOpenAI: newChatFactory(KindOpenAI),
		KindClaude: newChatFactory(KindClaude),
		KindGroq:   newChatFactory(KindGroq),
		KindXAI:    newChatFactory(KindXAI),
		KindQwen:   newChatFactory(KindQwen),
		KindGemini: NewGeminiProvider,
		KindDeepL:  NewDeepLProvider,
		KindCaiyun: NewCaiyunProvider,
		KindGoogle: NewGoogleProvider,
	}
)

// modelLists are the selectable models per kind; the first entry is the default
var modelLists = map[Kind][]string{
	KindOpenAI: {"gpt-4o-mini", "gpt-4o", "gpt-4-turbo", "gpt-3.5-turbo", "o1-preview"},
	KindClaude: {"claude-3-5-sonnet-20240620", "claude-3-opus-20240229"},
	KindGroq:   {"llama-3.1-8b-instant", "llama-3.3-70b-versatile"},
	KindXAI:    {"grok-2-1212", "grok-beta"},
	KindQwen:   {"qwen-mt-turbo", "qwen-mt-plus"},
	KindGemini: {
		"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-flash-latest", "gemini-1.5-flash-002",
		"gemini-1.5-pro", "gemini-1.5-pro-latest", "gemini-1.5-pro-002",
	},
}

// Register adds or replaces the factory for a kind
func Register(kind Kind, factory Factory) error {
	name := Kind(normalizeKind(string(kind)))
	if name == "" {
		return fmt.Errorf("%w: provider kind is required", ErrConfiguration)
	}
	if factory == nil {
		return fmt.Errorf("%w: factory for %q is nil", ErrConfiguration, name)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
	return nil
}

// Kinds returns the registered kinds in sorted order
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]Kind, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ParseKind validates a user supplied provider name
func ParseKind(raw string) (Kind, error) {
	kind := Kind(normalizeKind(raw))

	registryMu.RLock()
	_, ok := registry[kind]
	registryMu.RUnlock()

	if !ok {
		names := make([]string, 0)
		for _, k := range Kinds() {
			names = append(names, string(k))
		}
		return "", fmt.Errorf("%w: unknown provider %q (available: %s)", ErrConfiguration, raw, strings.Join(names, ", "))
	}
	return kind, nil
}

// RequiresKey reports whether the kind needs an API key
func RequiresKey(kind Kind) bool {
	return kind != KindGoogle
}

// Models returns the selectable model list for a kind
func Models(kind Kind) []string {
	list := modelLists[kind]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

func defaultModel(kind Kind) string {
	if list := modelLists[kind]; len(list) > 0 {
		return list[0]
	}
	return ""
}

// New creates the provider selected by cfg.Kind
func New(cfg Config) (Provider, error) {
	kind, err := ParseKind(string(cfg.Kind))
	if err != nil {
		return nil, err
	}
	cfg.Kind = kind

	if RequiresKey(kind) && strings.TrimSpace(strings.ReplaceAll(cfg.Keys, ",", "")) == "" {
		return nil, fmt.Errorf("%w: %s API key is required", ErrConfiguration, kind)
	}

	registryMu.RLock()
	factory := registry[kind]
	registryMu.RUnlock()

	p, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	if models := cfg.modelList(); len(models) > 0 {
		if selector, ok := p.(ModelSelector); ok {
			selector.SetModels(models)
		}
	}
	return p, nil
}

func normalizeKind(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
