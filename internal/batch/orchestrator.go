package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bookmaker/internal"
	"codeberg.org/snonux/bookmaker/internal/loader"
	"codeberg.org/snonux/bookmaker/internal/notify"
	"codeberg.org/snonux/bookmaker/internal/progress"
	"codeberg.org/snonux/bookmaker/internal/provider"
)

// ProgressSink receives progress updates of a run
type ProgressSink interface {
	Start(total int)
	Advance(current, total int)
	Finish()
}

type nopSink struct{}

func (nopSink) Start(int)        {}
func (nopSink) Advance(int, int) {}
func (nopSink) Finish()          {}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithProgress sets the progress sink
func WithProgress(sink ProgressSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithNotifier sets the notifier called once a run ends
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithSleeper replaces the backoff sleep
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// Orchestrator translates documents with one provider. Runs of the same
// Orchestrator must not overlap.
type Orchestrator struct {
	provider provider.Provider
	store    progress.Store
	opts     Options
	sink     ProgressSink
	notifier notify.Notifier
	sleep    Sleeper
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
}

// New creates an orchestrator. A nil store keeps progress in memory only.
func New(p provider.Provider, store progress.Store, opts Options, options ...Option) *Orchestrator {
	if store == nil {
		store = progress.NewMemoryStore()
	}
	o := &Orchestrator{
		provider: p,
		store:    store,
		opts:     opts.withDefaults(),
		sink:     nopSink{},
		notifier: notify.Nop{},
		sleep:    Sleep,
		logger:   zerolog.Nop(),
		state:    Idle,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	o.logger.Debug().Stringer("from", prev).Stringer("to", s).Msg("state change")
}

// Run translates the document at path and writes the rendered output. Unit
// failures are listed in the report and do not fail the run; load, store,
// render and write errors and cancellation do.
func (o *Orchestrator) Run(ctx context.Context, path string) (*Report, error) {
	if o.provider == nil {
		return nil, fmt.Errorf("%w: no provider", provider.ErrConfiguration)
	}

	start := time.Now()
	report := newReport(0)
	report.OutputPath = o.outputPath(path)

	report, err := o.run(ctx, path, report)
	report.Processed = report.Translated + report.Skipped
	report.Duration = time.Since(start)
	if err != nil {
		o.setState(Failed)
	} else {
		o.setState(Done)
	}

	// Notify even when ctx was cancelled
	outcome := report.outcome(path, o.provider.Name(), o.opts.TargetLanguage, err)
	if nerr := o.notifier.Notify(context.WithoutCancel(ctx), outcome); nerr != nil {
		o.logger.Warn().Err(nerr).Msg("notification failed")
	}
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, path string, report *Report) (*Report, error) {
	o.setState(Loading)

	doc, err := loader.Load(path)
	if err != nil {
		return report, fmt.Errorf("failed to load %s: %w", path, err)
	}
	units := doc.Units()
	report.Total = len(units)
	report.Title = loader.TitleOf(doc)
	if loader.HasMarkup(doc) {
		ctx = provider.WithMarkup(ctx)
	}

	key, err := progress.DocumentKey(path, o.opts.TargetLanguage, o.opts.Mode.String())
	if err != nil {
		return report, err
	}
	report.Key = key
	report.RunID = internal.GenerateRunID(key)
	log := o.logger.With().Str("run", report.RunID).Str("file", filepath.Base(path)).Logger()

	if !o.opts.Resume {
		if err := o.store.Reset(ctx, key); err != nil {
			return report, fmt.Errorf("failed to reset progress: %w", err)
		}
	}
	saved, err := o.store.Load(ctx, key)
	if err != nil {
		return report, fmt.Errorf("failed to load progress: %w", err)
	}

	o.setState(Translating)
	limit := o.opts.visitLimit(len(units))
	report.Visited = limit
	log.Info().Int("total", len(units)).Int("limit", limit).Int("resumable", len(saved.Completed)).
		Msg("translating")

	o.sink.Start(limit)
	defer o.sink.Finish()

	var pending []*loader.Unit
	done := 0
	for _, u := range units[:limit] {
		if translated, ok := saved.Completed[u.Index]; ok && translated != "" {
			u.Translated = translated
			report.Skipped++
			done++
			o.sink.Advance(done, limit)
			continue
		}
		pending = append(pending, u)
	}

	for start := 0; start < len(pending); start += o.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(start+o.opts.BatchSize, len(pending))
		chunk := pending[start:end]

		if err := o.translateChunk(ctx, log, key, len(units), chunk, report, &done, limit); err != nil {
			return report, err
		}
	}
	report.Processed = report.Translated + report.Skipped

	o.setState(Finalizing)
	out, err := doc.Render(o.opts.Mode, o.opts.Style)
	if err != nil {
		return report, fmt.Errorf("failed to render %s: %w", path, err)
	}
	if err := writeAtomic(report.OutputPath, out); err != nil {
		return report, err
	}
	log.Info().Int("processed", report.Processed).Int("failed", report.Failed).
		Str("output", report.OutputPath).Msg("translation finished")
	return report, nil
}

// translateChunk sends chunk as one batch when the provider supports it and
// falls back to one call per unit otherwise
func (o *Orchestrator) translateChunk(ctx context.Context, log zerolog.Logger, key string, total int,
	chunk []*loader.Unit, report *Report, done *int, limit int) error {

	if bp, ok := o.provider.(provider.BatchProvider); ok && len(chunk) > 1 {
		texts := make([]string, len(chunk))
		for i, u := range chunk {
			texts[i] = u.Text
		}

		var results []string
		attempts, err := o.retry(ctx, log, func() error {
			var err error
			results, err = bp.TranslateBatch(ctx, texts, o.opts.TargetLanguage)
			if err == nil && len(results) != len(texts) {
				err = fmt.Errorf("%w: batch returned %d of %d texts", provider.ErrTransient, len(results), len(texts))
			}
			return err
		})
		if err == nil {
			for i, u := range chunk {
				if err := o.complete(ctx, key, total, u, results[i], attempts, report); err != nil {
					return err
				}
				*done++
				o.sink.Advance(*done, limit)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Warn().Err(err).Int("units", len(chunk)).Msg("batch failed, translating units one by one")
	}

	for _, u := range chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.translateUnit(ctx, log, key, total, u, report); err != nil {
			return err
		}
		*done++
		o.sink.Advance(*done, limit)
	}
	return nil
}

// translateUnit returns an error only for conditions that abort the run
func (o *Orchestrator) translateUnit(ctx context.Context, log zerolog.Logger, key string, total int,
	u *loader.Unit, report *Report) error {

	ulog := log.With().Int("unit", u.Index).Logger()

	var translated string
	attempts, err := o.retry(ctx, ulog, func() error {
		var err error
		translated, err = o.provider.Translate(ctx, u.Text, o.opts.TargetLanguage)
		return err
	})
	if err == nil {
		return o.complete(ctx, key, total, u, translated, attempts, report)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	ulog.Error().Err(err).Int("attempts", attempts).Msg("unit failed, keeping original text")
	u.Failed = true
	report.addFailure(u.Index, attempts, err)
	if serr := o.store.MarkFailed(ctx, key, u.Index, err.Error(), total); serr != nil {
		return fmt.Errorf("failed to record unit %d: %w", u.Index, serr)
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, key string, total int, u *loader.Unit,
	translated string, attempts int, report *Report) error {

	u.Translated = translated
	u.Failed = false
	report.Translated++
	report.Attempts[u.Index] = attempts
	if err := o.store.MarkCompleted(ctx, key, u.Index, translated, total); err != nil {
		return fmt.Errorf("failed to record unit %d: %w", u.Index, err)
	}
	return nil
}

func (o *Orchestrator) outputPath(input string) string {
	if o.opts.OutputPath != "" {
		return o.opts.OutputPath
	}
	return loader.OutputPath(input)
}

// writeAtomic writes data to a temp file next to path and renames it
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output file: %w", err)
	}
	return nil
}
