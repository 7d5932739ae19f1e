package batch

import (
	"time"

	"codeberg.org/snonux/bookmaker/internal/notify"
)

// UnitFailure describes a unit that kept its original text
type UnitFailure struct {
	Index    int
	Attempts int
	Err      error
}

// Report summarizes a run
type Report struct {
	RunID string
	Key   string
	// Title comes from the document metadata when the format has one
	Title string
	Total int
	// Visited counts units within the limit, resumed or not
	Visited int
	// Processed is Translated plus Skipped
	Processed  int
	Translated int
	// Skipped counts units restored from a previous run
	Skipped  int
	Failed   int
	Failures []UnitFailure
	// Attempts holds the provider attempts per translated or failed unit
	Attempts   map[int]int
	OutputPath string
	Duration   time.Duration
}

func newReport(total int) *Report {
	return &Report{Total: total, Attempts: make(map[int]int)}
}

func (r *Report) addFailure(index, attempts int, err error) {
	r.Failed++
	r.Attempts[index] = attempts
	r.Failures = append(r.Failures, UnitFailure{Index: index, Attempts: attempts, Err: err})
}

// outcome converts the report for notifiers
func (r *Report) outcome(source, providerName, language string, err error) notify.Outcome {
	return notify.Outcome{
		RunID:      r.RunID,
		Source:     source,
		Title:      r.Title,
		Output:     r.OutputPath,
		Provider:   providerName,
		Language:   language,
		Total:      r.Total,
		Visited:    r.Visited,
		Processed:  r.Processed,
		Translated: r.Translated,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Duration:   r.Duration,
		Err:        err,
	}
}
