package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"codeberg.org/snonux/bookmaker/internal/credential"
)

// chatBaseURLs are the OpenAI-compatible endpoints of the chat kinds.
// An empty value keeps the go-openai default.
var chatBaseURLs = map[Kind]string{
	KindOpenAI: "",
	KindClaude: "https://api.anthropic.com/v1",
	KindGroq:   "https://api.groq.com/openai/v1",
	KindXAI:    "https://api.x.ai/v1",
	KindQwen:   "https://dashscope-intl.aliyuncs.com/compatible-mode/v1",
}

// ChatBaseURL returns the default endpoint of a chat kind; ok is false for
// kinds that do not speak the OpenAI chat API
func ChatBaseURL(kind Kind) (url string, ok bool) {
	url, ok = chatBaseURLs[kind]
	return url, ok
}

// ChatProvider implements Provider on top of an OpenAI-compatible chat
// completions endpoint
type ChatProvider struct {
	kind    Kind
	baseURL string
	keys    *credential.Rotator
	models  *modelCycle
	config  Config

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func newChatFactory(kind Kind) Factory {
	return func(cfg Config) (Provider, error) {
		cfg.Kind = kind
		return NewChatProvider(cfg)
	}
}

// NewChatProvider creates a chat completion provider for cfg.Kind
func NewChatProvider(cfg Config) (*ChatProvider, error) {
	keys, err := credential.New(cfg.Keys, cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, cfg.Kind, err)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = chatBaseURLs[cfg.Kind]
	}

	return &ChatProvider{
		kind:    cfg.Kind,
		baseURL: strings.TrimRight(baseURL, "/"),
		keys:    keys,
		models:  newModelCycle(defaultModel(cfg.Kind)),
		config:  cfg,
		clients: make(map[string]*openai.Client),
	}, nil
}

// Name returns the provider name
func (p *ChatProvider) Name() string {
	return string(p.kind)
}

// SetModels replaces the model list; requests cycle through it
func (p *ChatProvider) SetModels(models []string) {
	p.models.set(models)
}

// RotateKey advances the key pool after a key-specific failure
func (p *ChatProvider) RotateKey() bool {
	return p.keys.Rotate()
}

// Translate sends one chat completion request per unit
func (p *ChatProvider) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	code, err := validate(text, targetLanguage)
	if err != nil {
		return "", err
	}

	model := p.models.pick()
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(code),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt(text, code),
			},
		},
		Temperature: 0.3,
	}

	resp, err := p.client(p.keys.Next()).CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s API error (model %s): %w", p.kind, model, classifyOpenAIError(err))
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", ErrTransient, p.kind)
	}

	translation := StripWrapping(text, resp.Choices[0].Message.Content)
	if translation == "" {
		return "", fmt.Errorf("%w: %s returned an empty translation", ErrTransient, p.kind)
	}
	return translation, nil
}

// client returns a cached client bound to key
func (p *ChatProvider) client(key string) *openai.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c
	}

	cfg := openai.DefaultConfig(key)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	cfg.HTTPClient = p.config.httpClient()

	c := openai.NewClientWithConfig(cfg)
	p.clients[key] = c
	return c
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return classifyNetwork(err)
}
