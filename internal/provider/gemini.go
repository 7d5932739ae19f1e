package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"codeberg.org/snonux/bookmaker/internal/credential"
)

// GeminiProvider translates with Google Gemini models
type GeminiProvider struct {
	keys    *credential.Rotator
	models  *modelCycle
	baseURL string

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiProvider creates a Gemini provider
func NewGeminiProvider(cfg Config) (Provider, error) {
	keys, err := credential.New(cfg.Keys, cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", ErrConfiguration, err)
	}

	return &GeminiProvider{
		keys:    keys,
		models:  newModelCycle(defaultModel(KindGemini)),
		baseURL: strings.TrimSpace(cfg.BaseURL),
		clients: make(map[string]*genai.Client),
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return string(KindGemini)
}

// SetModels replaces the model list; requests cycle through it
func (p *GeminiProvider) SetModels(models []string) {
	p.models.set(models)
}

// RotateKey advances the key pool after a key-specific failure
func (p *GeminiProvider) RotateKey() bool {
	return p.keys.Rotate()
}

// Translate generates a translation for one unit
func (p *GeminiProvider) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	code, err := validate(text, targetLanguage)
	if err != nil {
		return "", err
	}

	client, err := p.client(ctx, p.keys.Next())
	if err != nil {
		return "", err
	}

	model := p.models.pick()
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt(code), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.3),
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(userPrompt(text, code)), config)
	if err != nil {
		return "", fmt.Errorf("gemini API error (model %s): %w", model, classifyGeminiError(err))
	}

	translation := StripWrapping(text, resp.Text())
	if translation == "" {
		return "", fmt.Errorf("%w: gemini returned an empty translation", ErrTransient)
	}
	return translation, nil
}

func (p *GeminiProvider) client(ctx context.Context, key string) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if p.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.baseURL}
	}

	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %w", ErrConfiguration, err)
	}
	p.clients[key] = c
	return c, nil
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Message, err)
	}
	return classifyNetwork(err)
}
