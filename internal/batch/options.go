package batch

import (
	"time"

	"codeberg.org/snonux/bookmaker/internal/loader"
)

// State is the lifecycle state of an orchestrator
type State int

const (
	Idle State = iota
	Loading
	Translating
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Translating:
		return "translating"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions happen in this run
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// LimitFull translates the whole document
const LimitFull = 0

// LimitFixed translates at most the first n units
func LimitFixed(n int) int {
	if n < 0 {
		return LimitFull
	}
	return n
}

// LimitPercentAsCount keeps the percentage mode of the original front end:
// the number is used as an approximate paragraph count, not as a share of
// the document
func LimitPercentAsCount(n int) int {
	return LimitFixed(n)
}

// Options controls one run
type Options struct {
	TargetLanguage string
	Mode           loader.Mode
	// Limit caps the number of visited units; LimitFull visits all
	Limit  int
	Resume bool
	// Style is the inline CSS set on translated EPUB elements
	Style       string
	BatchSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// OutputPath overrides loader.OutputPath(input)
	OutputPath string
}

// DefaultOptions returns the options used by the CLI
func DefaultOptions() Options {
	return Options{
		TargetLanguage: "zh-hans",
		Mode:           loader.Bilingual,
		Limit:          LimitFull,
		BatchSize:      10,
		MaxAttempts:    5,
		BaseDelay:      2 * time.Second,
		MaxDelay:       time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = d.MaxDelay
	}
	if o.MaxDelay < o.BaseDelay {
		o.MaxDelay = o.BaseDelay
	}
	if o.TargetLanguage == "" {
		o.TargetLanguage = d.TargetLanguage
	}
	return o
}

// visitLimit returns how many units of total are visited
func (o Options) visitLimit(total int) int {
	if o.Limit <= LimitFull || o.Limit > total {
		return total
	}
	return o.Limit
}
