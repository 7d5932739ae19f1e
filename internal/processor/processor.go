package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bookmaker/internal/archive"
	"codeberg.org/snonux/bookmaker/internal/batch"
	"codeberg.org/snonux/bookmaker/internal/cli"
	"codeberg.org/snonux/bookmaker/internal/credential"
	"codeberg.org/snonux/bookmaker/internal/language"
	"codeberg.org/snonux/bookmaker/internal/loader"
	"codeberg.org/snonux/bookmaker/internal/logging"
	"codeberg.org/snonux/bookmaker/internal/models"
	"codeberg.org/snonux/bookmaker/internal/notify"
	"codeberg.org/snonux/bookmaker/internal/progress"
	"codeberg.org/snonux/bookmaker/internal/provider"
)

// Processor handles the main translation logic
type Processor struct {
	flags  *cli.Flags
	logger zerolog.Logger
	out    io.Writer
}

// NewProcessor creates a new processor
func NewProcessor(flags *cli.Flags) (*Processor, error) {
	logger, err := logging.New(flags.LogLevel, flags.LogFormat)
	if err != nil {
		return nil, err
	}
	return &Processor{
		flags:  flags,
		logger: logger,
		out:    os.Stdout,
	}, nil
}

// Translate translates the given files and the files listed in the queue
// file. A failing file does not stop the others.
func (p *Processor) Translate(ctx context.Context, paths []string) error {
	entries := make([]batch.QueueEntry, 0, len(paths))
	for _, path := range paths {
		entries = append(entries, batch.QueueEntry{Path: path})
	}
	if p.flags.QueueFile != "" {
		queued, err := batch.ReadQueueFile(p.flags.QueueFile)
		if err != nil {
			return err
		}
		entries = append(entries, queued...)
	}
	if len(entries) == 0 {
		return errors.New("no files to translate")
	}
	if p.flags.Output != "" && len(entries) > 1 {
		return errors.New("--output needs exactly one input file")
	}

	prov, err := p.buildProvider()
	if err != nil {
		return err
	}
	store, err := p.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	notifier := p.buildNotifier()

	errorCount := 0
	for i, entry := range entries {
		if len(entries) > 1 {
			fmt.Fprintf(p.out, "\nTranslating %d/%d: %s\n", i+1, len(entries), entry.Path)
		} else {
			fmt.Fprintf(p.out, "\nTranslating: %s\n", entry.Path)
		}

		report, err := p.translateFile(ctx, prov, store, notifier, entry)
		if err != nil {
			if len(entries) == 1 || ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Error translating '%s': %v\n", entry.Path, err)
			errorCount++
			// Continue with next file
			continue
		}
		p.printSummary(entry.Path, report)
	}

	if errorCount > 0 {
		return fmt.Errorf("%d of %d files failed", errorCount, len(entries))
	}
	return nil
}

func (p *Processor) translateFile(ctx context.Context, prov provider.Provider, store progress.Store,
	notifier notify.Notifier, entry batch.QueueEntry) (*batch.Report, error) {

	opts, err := p.options(entry.Language)
	if err != nil {
		return nil, err
	}

	orch := batch.New(prov, store, opts,
		batch.WithProgress(newConsoleProgress(p.out)),
		batch.WithNotifier(notifier),
		batch.WithLogger(p.logger),
	)
	return orch.Run(ctx, entry.Path)
}

// options builds the run options; lang overrides --language when set
func (p *Processor) options(lang string) (batch.Options, error) {
	if lang == "" {
		lang = p.flags.Language
	}
	code := language.Normalize(lang)
	if code == "" {
		return batch.Options{}, fmt.Errorf("%w: %q (see 'bookmaker languages')", provider.ErrUnsupportedLanguage, lang)
	}

	opts := batch.DefaultOptions()
	opts.TargetLanguage = code
	opts.Resume = p.flags.Resume
	opts.Style = p.flags.Style
	opts.OutputPath = p.flags.Output
	if p.flags.BatchSize > 0 {
		opts.BatchSize = p.flags.BatchSize
	}
	if p.flags.MaxAttempts > 0 {
		opts.MaxAttempts = p.flags.MaxAttempts
	}
	if p.flags.Single {
		opts.Mode = loader.Single
	}
	if p.flags.PercentAsCount {
		opts.Limit = batch.LimitPercentAsCount(p.flags.Limit)
	} else {
		opts.Limit = batch.LimitFixed(p.flags.Limit)
	}
	return opts, nil
}

func (p *Processor) buildProvider() (provider.Provider, error) {
	kind, err := provider.ParseKind(p.flags.Provider)
	if err != nil {
		return nil, err
	}

	policy := credential.RotateOnFailure
	if p.flags.RotateEveryCall {
		policy = credential.RotateEveryCall
	}

	cfg := provider.DefaultConfig()
	cfg.Kind = kind
	cfg.Keys = cli.GetProviderKeys(string(kind), p.flags.Keys)
	cfg.Models = p.flags.Models
	cfg.BaseURL = p.flags.BaseURL
	cfg.Style = p.flags.Style
	cfg.Policy = policy
	if code := language.Normalize(p.flags.Language); code != "" {
		cfg.TargetLanguage = code
	}

	prov, err := provider.New(*cfg)
	if err != nil {
		return nil, err
	}

	guard := provider.DefaultGuardOptions()
	guard.RequestsPerSecond = p.flags.RPS
	p.logger.Debug().Str("provider", prov.Name()).Float64("rps", p.flags.RPS).
		Stringer("policy", policy).Msg("provider ready")
	return provider.NewGuard(prov, guard), nil
}

func (p *Processor) statePath() (string, error) {
	if p.flags.StateDB != "" {
		return p.flags.StateDB, nil
	}
	return progress.DefaultPath()
}

func (p *Processor) openStore() (progress.Store, error) {
	if p.flags.NoState {
		return progress.NewMemoryStore(), nil
	}

	path, err := p.statePath()
	if err != nil {
		return nil, err
	}
	store, err := progress.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	p.logger.Debug().Str("path", path).Msg("progress database opened")
	return store, nil
}

func (p *Processor) buildNotifier() notify.Notifier {
	notifiers := notify.Multi{notify.LogNotifier{Logger: p.logger}}

	if p.flags.NotifyEmail != "" {
		email := notify.NewEmailNotifier(cli.GetEmailConfig(p.flags.NotifyEmail))
		if email.Enabled() {
			notifiers = append(notifiers, email)
		} else {
			p.logger.Warn().Msg("--notify-email ignored: smtp.host is not configured")
		}
	}
	return notifiers
}

func (p *Processor) printSummary(path string, report *batch.Report) {
	fmt.Fprintf(p.out, "\n=== Translation Summary ===\n")
	fmt.Fprintf(p.out, "File: %s\n", filepath.Base(path))
	if report.Title != "" {
		fmt.Fprintf(p.out, "Title: %s\n", report.Title)
	}
	fmt.Fprintf(p.out, "Processed: %d/%d", report.Processed, report.Total)
	if report.Skipped > 0 {
		fmt.Fprintf(p.out, " (%d resumed)", report.Skipped)
	}
	fmt.Fprintln(p.out)
	if report.Failed > 0 {
		fmt.Fprintf(p.out, "Failed: %d (original text kept)\n", report.Failed)
		for _, f := range report.Failures {
			fmt.Fprintf(p.out, "  paragraph %d after %d attempt(s): %v\n", f.Index+1, f.Attempts, f.Err)
		}
	}
	fmt.Fprintf(p.out, "Output: %s\n", report.OutputPath)
	fmt.Fprintf(p.out, "===========================\n")
}

// Preview prints the beginning of the text of a file
func (p *Processor) Preview(path string) error {
	limit := p.flags.PreviewLimit
	if limit <= 0 {
		limit = loader.DefaultPreviewLimit
	}

	text, ok, err := loader.Preview(path, limit)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(p.out, "No text found in %s\n", filepath.Base(path))
		return nil
	}
	fmt.Fprintln(p.out, text)
	return nil
}

// ListModels prints the models of kind, or of every provider when kind is
// empty. With --remote the provider API is asked instead.
func (p *Processor) ListModels(ctx context.Context, kind string) error {
	if kind == "" {
		if p.flags.Remote {
			return errors.New("--remote needs a provider name")
		}
		for i, k := range provider.Kinds() {
			if i > 0 {
				fmt.Fprintln(p.out)
			}
			models.NewLister(k, "", "").PrintKnown(p.out)
		}
		return nil
	}

	k, err := provider.ParseKind(kind)
	if err != nil {
		return err
	}
	if !p.flags.Remote {
		models.NewLister(k, "", "").PrintKnown(p.out)
		return nil
	}
	// Listing needs one key, not the pool
	key := ""
	if keys := credential.ParseKeys(cli.GetProviderKeys(string(k), p.flags.Keys)); len(keys) > 0 {
		key = keys[0]
	}
	return models.NewLister(k, key, p.flags.BaseURL).PrintRemote(ctx, p.out)
}

// ListLanguages prints the supported target languages
func (p *Processor) ListLanguages() error {
	fmt.Fprintln(p.out, "Supported target languages:")
	for _, code := range language.Codes() {
		fmt.Fprintf(p.out, "  %-8s %s\n", code, language.Name(code))
	}
	return nil
}

// ArchiveState moves the progress database into the archive directory
func (p *Processor) ArchiveState() error {
	path, err := p.statePath()
	if err != nil {
		return err
	}
	archived, err := archive.ArchiveState(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Progress database archived to: %s\n", archived)
	return nil
}
