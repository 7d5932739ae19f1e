package provider

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"codeberg.org/snonux/bookmaker/internal/credential"
	"codeberg.org/snonux/bookmaker/internal/language"
)

// Provider translates one unit of text into a target language
type Provider interface {
	// Translate returns text translated into targetLanguage with any
	// provider-specific wrapping removed
	Translate(ctx context.Context, text, targetLanguage string) (string, error)

	// Name returns the provider name
	Name() string
}

// BatchProvider is implemented by backends that accept several texts in one
// request. The result has the same length and order as texts.
type BatchProvider interface {
	Provider
	TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}

// ModelSelector is implemented by backends exposing several models
type ModelSelector interface {
	SetModels(models []string)
}

// KeyRotator is implemented by backends owning a key pool
type KeyRotator interface {
	// RotateKey advances to the next key and reports whether it differs
	// from the one that just failed
	RotateKey() bool
}

// Config holds the resolved provider configuration for a run
type Config struct {
	Kind           Kind
	Keys           string // comma-separated key pool
	Model          string
	Models         []string
	BaseURL        string
	TargetLanguage string
	Style          string
	Policy         credential.Policy
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Kind:           KindOpenAI,
		TargetLanguage: "zh-hans",
		Policy:         credential.RotateOnFailure,
		Timeout:        2 * time.Minute,
	}
}

// modelList returns the explicit model list, or the single model, or nil
func (c Config) modelList() []string {
	var models []string
	for _, m := range c.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 && strings.TrimSpace(c.Model) != "" {
		models = []string{strings.TrimSpace(c.Model)}
	}
	return models
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{Timeout: timeout}
}

// validate checks the per-call constraints shared by all backends and
// returns the normalized language code
func validate(text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	code := language.Normalize(targetLanguage)
	if code == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, targetLanguage)
	}
	return code, nil
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n(.*?)\\n?```$")

var quotePairs = [][2]string{
	{`"`, `"`},
	{"“", "”"},
	{"「", "」"},
	{"『", "』"},
	{"`", "`"},
}

// StripWrapping removes markup LLM backends tend to wrap translations in:
// surrounding whitespace, a Markdown code fence, and one pair of quotes
// that the source text did not have
func StripWrapping(source, translated string) string {
	out := strings.TrimSpace(translated)
	if m := fenceRe.FindStringSubmatch(out); m != nil {
		out = strings.TrimSpace(m[1])
	}

	src := strings.TrimSpace(source)
	for _, pair := range quotePairs {
		if strings.HasPrefix(src, pair[0]) {
			continue
		}
		if len(out) > len(pair[0])+len(pair[1]) &&
			strings.HasPrefix(out, pair[0]) && strings.HasSuffix(out, pair[1]) {
			out = strings.TrimSpace(out[len(pair[0]) : len(out)-len(pair[1])])
			break
		}
	}
	return out
}

type markupKey struct{}

// WithMarkup marks the texts translated under ctx as HTML fragments.
// Backends with a markup mode, such as DeepL tag handling, enable it only
// then so plain text like "a < b & c" is sent as text.
func WithMarkup(ctx context.Context) context.Context {
	return context.WithValue(ctx, markupKey{}, true)
}

func hasMarkup(ctx context.Context) bool {
	markup, _ := ctx.Value(markupKey{}).(bool)
	return markup
}

// stripBatch unwraps every translation of a batch. An element that is empty
// afterwards fails the batch as transient, like an empty single reply.
func stripBatch(name string, texts, translated []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range translated {
		out[i] = StripWrapping(texts[i], t)
		if out[i] == "" {
			return nil, fmt.Errorf("%w: %s returned an empty translation for text %d", ErrTransient, name, i+1)
		}
	}
	return out, nil
}

func systemPrompt(code string) string {
	return fmt.Sprintf("You are a professional book translator. Translate the user's text into %s. "+
		"Keep the meaning, tone and any inline HTML tags exactly as they are. "+
		"Reply with the translation only, without explanations, notes or the original text.",
		language.Name(code))
}

func userPrompt(text, code string) string {
	return fmt.Sprintf("Translate into %s:\n\n%s", language.Name(code), text)
}
