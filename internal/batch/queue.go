package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// QueueEntry is one document listed in a queue file
type QueueEntry struct {
	Path string
	// Language overrides the target language when set
	Language string
}

// ReadQueueFile reads documents to translate from a file.
// Supports formats:
// - Path only: "books/novel.epub" (translated into the default language)
// - With language: "books/novel.epub = ja"
// - Comments: lines starting with '#' are ignored
// Relative paths are resolved against the directory of the queue file.
func ReadQueueFile(filename string) ([]QueueEntry, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	base := filepath.Dir(filename)
	var entries []QueueEntry

	for _, line := range splitLines(string(content)) {
		line = trimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry := QueueEntry{Path: line}
		// Check if line contains '=' for language override format
		if i := strings.LastIndex(line, "="); i >= 0 {
			entry.Path = strings.TrimSpace(line[:i])
			entry.Language = strings.TrimSpace(line[i+1:])
		}
		if entry.Path == "" {
			// Ignore lines with an empty path part
			continue
		}
		if !filepath.IsAbs(entry.Path) {
			entry.Path = filepath.Join(base, entry.Path)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// splitLines splits a string by newlines
func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, strings.TrimSuffix(line, "\r"))
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) == 0 {
		return nil
	}
	return lines
}

// trimSpace trims whitespace from string
func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\ufeff'
}
