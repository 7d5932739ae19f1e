package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrConfiguration covers bad or missing keys and unknown providers
	ErrConfiguration = errors.New("configuration error")
	// ErrRateLimited means the backend asked us to slow down
	ErrRateLimited = errors.New("rate limited")
	// ErrAuth means the current key was rejected
	ErrAuth = errors.New("authentication failed")
	// ErrTransient covers network failures and server-side errors
	ErrTransient = errors.New("transient provider error")
	// ErrUnsupportedLanguage means the backend cannot produce the target language
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrEmptyText is returned for blank input
	ErrEmptyText = errors.New("text to translate is empty")
)

// IsRetryable reports whether err should be retried with backoff
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// classifyStatus maps an HTTP status and response message to a sentinel,
// keeping the original error in the chain
func classifyStatus(status int, message string, err error) error {
	if err == nil {
		err = fmt.Errorf("status %d: %s", status, message)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		(status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "api key")):
		return fmt.Errorf("%w: %w", ErrAuth, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case status == 456: // DeepL quota exceeded
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case status == http.StatusBadRequest && mentionsLanguage(message):
		return fmt.Errorf("%w: %w", ErrUnsupportedLanguage, err)
	case status >= 500 || status == http.StatusRequestTimeout || status == 0:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	default:
		return err
	}
}

// classifyNetwork classifies errors raised before any HTTP status was seen
func classifyNetwork(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "eof") ||
		strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

func mentionsLanguage(message string) bool {
	msg := strings.ToLower(message)
	return strings.Contains(msg, "target_lang") || strings.Contains(msg, "language")
}
