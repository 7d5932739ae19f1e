package internal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// GenerateRunID creates a unique ID for a translation run based on timestamp and document key
// Format: epochMillis_md5(key)[:8]
func GenerateRunID(docKey string) string {
	// Get current timestamp in milliseconds
	epochMillis := time.Now().UnixMilli()

	// Calculate MD5 hash of the key
	hash := md5.Sum([]byte(docKey))
	hashStr := hex.EncodeToString(hash[:])[:8] // Use first 8 chars of MD5

	// Combine timestamp and hash
	return fmt.Sprintf("%d_%s", epochMillis, hashStr)
}

// SanitizeFilename creates a safe filename from a string
func SanitizeFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// StateDir returns the directory for persisted run state:
// $XDG_STATE_HOME/bookmaker, falling back to ~/.local/state/bookmaker
func StateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "bookmaker"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "bookmaker"), nil
}
