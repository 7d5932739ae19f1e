package provider

import (
	"context"
	"fmt"

	"github.com/bregydoc/gtranslate"
)

// googleTargets holds the codes whose Google spelling differs from the table
var googleTargets = map[string]string{
	"zh":      "zh-CN",
	"zh-hans": "zh-CN",
	"zh-hant": "zh-TW",
	"he":      "iw",
	"jw":      "jv",
}

type googleTranslateFunc func(text string, params gtranslate.TranslationParams) (string, error)

// GoogleProvider uses the keyless Google translate web endpoint
type GoogleProvider struct {
	translate googleTranslateFunc
}

// NewGoogleProvider creates a Google provider. No API key is needed.
func NewGoogleProvider(cfg Config) (Provider, error) {
	return &GoogleProvider{translate: gtranslate.TranslateWithParams}, nil
}

// Name returns the provider name
func (g *GoogleProvider) Name() string {
	return string(KindGoogle)
}

// Translate translates one unit
func (g *GoogleProvider) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	code, err := validate(text, targetLanguage)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := code
	if mapped, ok := googleTargets[code]; ok {
		target = mapped
	}

	translated, err := g.translate(text, gtranslate.TranslationParams{
		From: "auto",
		To:   target,
	})
	if err != nil {
		return "", fmt.Errorf("google translate error: %w", classifyNetwork(err))
	}

	out := StripWrapping(text, translated)
	if out == "" {
		return "", fmt.Errorf("%w: google returned an empty translation", ErrTransient)
	}
	return out, nil
}
