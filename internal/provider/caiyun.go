package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"codeberg.org/snonux/bookmaker/internal/credential"
)

const caiyunURL = "http://api.interpreter.caiyunai.com/v1/translator"

// caiyunTargets maps table codes to the target half of trans_type
var caiyunTargets = map[string]string{
	"zh":      "zh",
	"zh-hans": "zh",
	"zh-hant": "zh-Hant",
	"en":      "en",
	"ja":      "ja",
}

// CaiyunProvider translates with the Caiyun (LingoCloud) API
type CaiyunProvider struct {
	keys       *credential.Rotator
	baseURL    string
	httpClient *http.Client
}

// NewCaiyunProvider creates a Caiyun provider
func NewCaiyunProvider(cfg Config) (Provider, error) {
	keys, err := credential.New(cfg.Keys, cfg.Policy)
	if err != nil {
		return nil, fmt.Errorf("%w: caiyun: %w", ErrConfiguration, err)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = caiyunURL
	}

	return &CaiyunProvider{
		keys:       keys,
		baseURL:    baseURL,
		httpClient: cfg.httpClient(),
	}, nil
}

// Name returns the provider name
func (c *CaiyunProvider) Name() string {
	return string(KindCaiyun)
}

// RotateKey advances the key pool after a key-specific failure
func (c *CaiyunProvider) RotateKey() bool {
	return c.keys.Rotate()
}

// Translate translates a single unit
func (c *CaiyunProvider) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	out, err := c.TranslateBatch(ctx, []string{text}, targetLanguage)
	if err != nil {
		return "", err
	}
	return out[0], nil
}

// TranslateBatch sends all texts in one request
func (c *CaiyunProvider) TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var code string
	for _, text := range texts {
		lang, err := validate(text, targetLanguage)
		if err != nil {
			return nil, err
		}
		code = lang
	}

	target, ok := caiyunTargets[code]
	if !ok {
		return nil, fmt.Errorf("%w: caiyun does not support %q", ErrUnsupportedLanguage, code)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"source":     texts,
		"trans_type": "auto2" + target,
		"request_id": "bookmaker",
		"detect":     true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Authorization", "token "+c.keys.Next())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Caiyun API request: %w", classifyNetwork(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Caiyun API response: %w", classifyNetwork(err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Caiyun API error: %w", classifyStatus(resp.StatusCode, string(body), nil))
	}

	var caiyunResp struct {
		Target []string `json:"target"`
	}
	if err := json.Unmarshal(body, &caiyunResp); err != nil {
		return nil, fmt.Errorf("%w: parse Caiyun response: %w", ErrTransient, err)
	}
	if len(caiyunResp.Target) != len(texts) {
		return nil, fmt.Errorf("%w: Caiyun returned %d translations for %d texts",
			ErrTransient, len(caiyunResp.Target), len(texts))
	}

	return stripBatch("Caiyun", texts, caiyunResp.Target)
}
