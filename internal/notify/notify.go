package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Outcome summarizes a finished or aborted run
type Outcome struct {
	RunID      string
	Source     string
	Title      string
	Output     string
	Provider   string
	Language   string
	Total      int
	Visited    int
	Processed  int
	Translated int
	Skipped    int
	Failed     int
	Duration   time.Duration
	Err        error
}

// Succeeded reports whether the run produced an output document
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Subject returns a one-line summary
func (o Outcome) Subject() string {
	name := filepath.Base(o.Source)
	if !o.Succeeded() {
		return fmt.Sprintf("bookmaker: translation of %s failed", name)
	}
	return fmt.Sprintf("bookmaker: %s translated (%d/%d)", name, o.Processed, o.Total)
}

// Body returns the plain-text summary
func (o Outcome) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", o.Source)
	if o.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", o.Title)
	}
	if o.Output != "" {
		fmt.Fprintf(&b, "Output: %s\n", o.Output)
	}
	if o.Provider != "" {
		fmt.Fprintf(&b, "Provider: %s\n", o.Provider)
	}
	if o.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", o.Language)
	}
	fmt.Fprintf(&b, "Units: %d total, %d visited\n", o.Total, o.Visited)
	fmt.Fprintf(&b, "Processed: %d (%d translated, %d resumed)\n", o.Processed, o.Translated, o.Skipped)
	if o.Failed > 0 {
		fmt.Fprintf(&b, "Failed: %d\n", o.Failed)
	}
	fmt.Fprintf(&b, "Duration: %s\n", o.Duration.Round(time.Second))
	if o.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", o.Err)
	}
	return b.String()
}

// Notifier is told about every run that reached a terminal state
type Notifier interface {
	Notify(ctx context.Context, outcome Outcome) error
}

// Nop ignores all outcomes
type Nop struct{}

// Notify does nothing
func (Nop) Notify(context.Context, Outcome) error { return nil }

// LogNotifier writes the outcome to a zerolog logger
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs the outcome at info level, or error level for failed runs
func (n LogNotifier) Notify(_ context.Context, o Outcome) error {
	ev := n.Logger.Info()
	if !o.Succeeded() {
		ev = n.Logger.Error().Err(o.Err)
	}
	ev.Str("run", o.RunID).
		Str("source", o.Source).
		Str("output", o.Output).
		Int("total", o.Total).
		Int("processed", o.Processed).
		Int("failed", o.Failed).
		Dur("duration", o.Duration).
		Msg(o.Subject())
	return nil
}

// Multi fans an outcome out to several notifiers and returns the first error
type Multi []Notifier

// Notify calls every notifier, even after a failure
func (m Multi) Notify(ctx context.Context, o Outcome) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, o); err != nil && first == nil {
			first = err
		}
	}
	return first
}
