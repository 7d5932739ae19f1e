package models

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"codeberg.org/snonux/bookmaker/internal/provider"
)

// Lister handles listing models of one provider kind
type Lister struct {
	kind   provider.Kind
	apiKey string
	client *openai.Client
}

// NewLister creates a model lister. baseURL overrides the default endpoint
// of the kind; the client is only created for OpenAI-compatible kinds.
func NewLister(kind provider.Kind, apiKey, baseURL string) *Lister {
	l := &Lister{kind: kind, apiKey: apiKey}

	defaultURL, ok := provider.ChatBaseURL(kind)
	if !ok {
		return l
	}
	if baseURL == "" {
		baseURL = defaultURL
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	l.client = openai.NewClientWithConfig(config)
	return l
}

// PrintKnown writes the built-in model list; the first model is the default
func (l *Lister) PrintKnown(w io.Writer) {
	list := provider.Models(l.kind)
	fmt.Fprintf(w, "%s:\n", l.kind)
	if len(list) == 0 {
		fmt.Fprintln(w, "  (no model selection)")
		return
	}
	for i, model := range list {
		if i == 0 {
			fmt.Fprintf(w, "  %s (default)\n", model)
			continue
		}
		fmt.Fprintf(w, "  %s\n", model)
	}
}

// Remote returns the model IDs the API reports, sorted
func (l *Lister) Remote(ctx context.Context) ([]string, error) {
	if l.client == nil {
		return nil, fmt.Errorf("%w: %s does not support listing models", provider.ErrConfiguration, l.kind)
	}
	if l.apiKey == "" {
		return nil, fmt.Errorf("%w: %s API key not found. Set BOOKMAKER_%s_KEY or configure keys.%s in .bookmaker.yaml",
			provider.ErrConfiguration, l.kind, strings.ToUpper(string(l.kind)), l.kind)
	}

	models, err := l.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	ids := make([]string, 0, len(models.Models))
	for _, model := range models.Models {
		if isTranslationModel(model.ID) {
			ids = append(ids, model.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// PrintRemote writes the live model list
func (l *Lister) PrintRemote(ctx context.Context, w io.Writer) error {
	ids, err := l.Remote(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (live):\n", l.kind)
	if len(ids) == 0 {
		fmt.Fprintln(w, "  No chat models found")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
	return nil
}

// isTranslationModel filters out speech, image and embedding models
func isTranslationModel(id string) bool {
	for _, skip := range []string{"tts", "whisper", "dall-e", "embedding", "audio", "moderation", "image", "realtime", "transcribe"} {
		if strings.Contains(id, skip) {
			return false
		}
	}
	return true
}
