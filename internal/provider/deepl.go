package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/snonux/bookmaker/internal/credential"
)

const (
	deeplFreeURL = "https://api-free.deepl.com/v2/translate"
	deeplProURL  = "https://api.deepl.com/v2/translate"
)

// deeplTargets maps table codes to DeepL target_lang values
var deeplTargets = map[string]string{
	"ar": "AR", "bg": "BG", "cs": "CS", "da": "DA", "de": "DE", "el": "EL",
	"en": "EN-US", "es": "ES", "et": "ET", "fi": "FI", "fr": "FR", "hu": "HU",
	"id": "ID", "it": "IT", "ja": "JA", "ko": "KO", "lt": "LT", "lv": "LV",
	"no": "NB", "nl": "NL", "pl": "PL", "pt": "PT-BR", "ro": "RO", "ru": "RU",
	"sk": "SK", "sl": "SL", "sv": "SV", "tr": "TR", "uk": "UK",
	"zh": "ZH-HANS", "zh-hans": "ZH-HANS", "zh-hant": "ZH-HANT",
}

// DeepLProvider translates with the DeepL REST API. Several texts are sent
// in one form-encoded request.
type DeepLProvider struct {
	keys       *credential.Rotator
	baseURL    string
	httpClient *http.Client
}

// NewDeepLProvider creates a DeepL provider
func NewDeepLProvider(cfg Config) (Provider, error) {
	keys, err := credential.New(cfg.Keys, cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("%w: deepl: %w", ErrConfiguration, err)
	}

	return &DeepLProvider{
		keys:       keys,
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		httpClient: cfg.httpClient(),
	}, nil
}

// Name returns the provider name
func (d *DeepLProvider) Name() string {
	return string(KindDeepL)
}

// RotateKey advances the key pool after a key-specific failure
func (d *DeepLProvider) RotateKey() bool {
	return d.keys.Rotate()
}

// Translate translates a single unit
func (d *DeepLProvider) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	out, err := d.TranslateBatch(ctx, []string{text}, targetLanguage)
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// TranslateBatch translates texts in one request, preserving order
func (d *DeepLProvider) TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var code string
	for _, text := range texts {
		c, err := validate(text, targetLanguage)
		if err != nil {
			return nil, err
		}
		code = c
	}

	target, ok := deeplTargets[code]
	if !ok {
		return nil, fmt.Errorf("%w: deepl does not support %q", ErrUnsupportedLanguage, code)
	}

	form := url.Values{}
	for _, text := range texts {
		form.Add("text", text)
	}
	form.Set("target_lang", target)
	if hasMarkup(ctx) {
		form.Set("tag_handling", "html")
	}

	key := d.keys.Next()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint(key), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+key)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("DeepL API request: %w", classifyNetwork(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("DeepL API response: %w", classifyNetwork(err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DeepL API error: %w", classifyStatus(resp.StatusCode, string(body), nil))
	}

	var deeplResp struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &deeplResp); err != nil {
		return nil, fmt.Errorf("%w: parse DeepL response: %w", ErrTransient, err)
	}
	if len(deeplResp.Translations) != len(texts) {
		return nil, fmt.Errorf("%w: DeepL returned %d translations for %d texts",
			ErrTransient, len(deeplResp.Translations), len(texts))
	}

	translated := make([]string, len(deeplResp.Translations))
	for i, t := range deeplResp.Translations {
		translated[i] = t.Text
	}
	return stripBatch("DeepL", texts, translated)
}

// endpoint picks the free API for ":fx" keys unless a base URL is configured
func (d *DeepLProvider) endpoint(key string) string {
	if d.baseURL != "" {
		return d.baseURL
	}
	if strings.HasSuffix(key, ":fx") {
		return deeplFreeURL
	}
	return deeplProURL
}
