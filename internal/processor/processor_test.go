package processor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"codeberg.org/snonux/bookmaker/internal/cli"
	"codeberg.org/snonux/bookmaker/internal/provider"
	"codeberg.org/snonux/bookmaker/internal/testutil"
)

// echoCalls counts requests to the echo provider across tests
var echoCalls atomic.Int64

type echoProvider struct{}

func (echoProvider) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	echoCalls.Add(1)
	if text == "FAIL" {
		return "", provider.ErrUnsupportedLanguage
	}
	return targetLanguage + ":" + text, nil
}

func (echoProvider) Name() string { return "echo" }

func init() {
	if err := provider.Register("echo", func(provider.Config) (provider.Provider, error) {
		return echoProvider{}, nil
	}); err != nil {
		panic(err)
	}
}

func testFlags() *cli.Flags {
	flags := cli.NewFlags()
	flags.Provider = "echo"
	flags.Keys = "test-key"
	flags.RPS = 0
	flags.NoState = true
	return flags
}

func newTestProcessor(t *testing.T, flags *cli.Flags) (*Processor, *bytes.Buffer) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	return &Processor{flags: flags, logger: zerolog.Nop(), out: &out}, &out
}

func TestNewProcessor(t *testing.T) {
	flags := cli.NewFlags()
	p, err := NewProcessor(flags)
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	if p.flags != flags {
		t.Error("Processor flags not set correctly")
	}
	if p.out != os.Stdout {
		t.Error("Processor should print to stdout")
	}

	flags.LogLevel = "chatty"
	if _, err := NewProcessor(flags); err == nil {
		t.Error("Expected error for invalid log level")
	}
}

func TestTranslate_TXT(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "story.txt", "Hello.", "World.")

	flags := testFlags()
	flags.Language = "Japanese"
	p, out := newTestProcessor(t, flags)

	if err := p.Translate(context.Background(), []string{path}); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	output := filepath.Join(dir, "story_bilingual.txt")
	testutil.AssertFileContent(t, output, []byte("Hello.\nja:Hello.\n\nWorld.\nja:World.\n"))
	for _, want := range []string{"Translating: " + path, "Processed: 2/2", "Output: " + output, "[" + strings.Repeat("#", 30) + "] 2/2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestTranslate_SingleModeAndOutput(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteSRT(t, dir, "film.srt", "Hi", "Bye")
	target := filepath.Join(dir, "film.de.srt")

	flags := testFlags()
	flags.Language = "de"
	flags.Single = true
	flags.Output = target
	p, _ := newTestProcessor(t, flags)

	if err := p.Translate(context.Background(), []string{path}); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	testutil.AssertFileContains(t, target, "de:Hi")
	testutil.AssertFileNotExists(t, filepath.Join(dir, "film_bilingual.srt"))

	data, _ := os.ReadFile(target)
	if strings.Contains(string(data), "\nHi\n") {
		t.Errorf("single mode kept the original: %q", data)
	}
}

func TestTranslate_Queue(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteTXT(t, dir, "a.txt", "One")
	testutil.WriteTXT(t, dir, "b.txt", "Two")
	queue := filepath.Join(dir, "queue.txt")
	testutil.CreateTestFile(t, queue, []byte("# books\na.txt\nb.txt = ko\n"))

	flags := testFlags()
	flags.Language = "zh-hant"
	flags.QueueFile = queue
	p, out := newTestProcessor(t, flags)

	if err := p.Translate(context.Background(), nil); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	testutil.AssertFileContent(t, filepath.Join(dir, "a_bilingual.txt"), []byte("One\nzh-hant:One\n"))
	testutil.AssertFileContent(t, filepath.Join(dir, "b_bilingual.txt"), []byte("Two\nko:Two\n"))
	if !strings.Contains(out.String(), "Translating 2/2: ") {
		t.Errorf("missing queue progress:\n%s", out.String())
	}
}

func TestTranslate_ContinuesAfterFailedFile(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WriteTXT(t, dir, "good.txt", "Fine")
	bad := filepath.Join(dir, "bad.pdf")
	testutil.CreateTestFile(t, bad, []byte("%PDF"))

	p, _ := newTestProcessor(t, testFlags())

	var err error
	_, stderr := testutil.CaptureOutput(t, func() {
		err = p.Translate(context.Background(), []string{bad, good})
	})
	if err == nil || !strings.Contains(err.Error(), "1 of 2 files failed") {
		t.Errorf("Translate() error = %v", err)
	}
	if !strings.Contains(stderr, "Error translating") || !strings.Contains(stderr, "bad.pdf") {
		t.Errorf("stderr = %q", stderr)
	}
	testutil.AssertFileExists(t, filepath.Join(dir, "good_bilingual.txt"))
}

func TestTranslate_UnitFailureIsReported(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "book.txt", "FAIL", "Fine")

	p, out := newTestProcessor(t, testFlags())
	if err := p.Translate(context.Background(), []string{path}); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !strings.Contains(out.String(), "Failed: 1 (original text kept)") ||
		!strings.Contains(out.String(), "paragraph 1 after 1 attempt(s)") {
		t.Errorf("summary:\n%s", out.String())
	}
	testutil.AssertFileContent(t, filepath.Join(dir, "book_bilingual.txt"), []byte("FAIL\n\nFine\nzh-hans:Fine\n"))
}

func TestTranslate_ResumeWithStateDB(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "book.txt", "A", "B", "C")

	flags := testFlags()
	flags.NoState = false
	flags.StateDB = filepath.Join(dir, "state", "progress.db")
	flags.Limit = 2
	p, _ := newTestProcessor(t, flags)
	if err := p.Translate(context.Background(), []string{path}); err != nil {
		t.Fatalf("first Translate() error = %v", err)
	}

	before := echoCalls.Load()
	flags.Limit = 0
	flags.Resume = true
	p, out := newTestProcessor(t, flags)
	if err := p.Translate(context.Background(), []string{path}); err != nil {
		t.Fatalf("second Translate() error = %v", err)
	}

	if calls := echoCalls.Load() - before; calls != 1 {
		t.Errorf("resumed run made %d calls, want 1", calls)
	}
	if !strings.Contains(out.String(), "Processed: 3/3 (2 resumed)") {
		t.Errorf("summary:\n%s", out.String())
	}
}

func TestTranslate_Errors(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "book.txt", "A")

	tests := []struct {
		name    string
		modify  func(f *cli.Flags)
		paths   []string
		wantErr error
		wantMsg string
	}{
		{
			name:    "unsupported language",
			modify:  func(f *cli.Flags) { f.Language = "klingon" },
			paths:   []string{path},
			wantErr: provider.ErrUnsupportedLanguage,
		},
		{
			name:    "unknown provider",
			modify:  func(f *cli.Flags) { f.Provider = "babelfish" },
			paths:   []string{path},
			wantErr: provider.ErrConfiguration,
		},
		{
			name:    "missing key",
			modify:  func(f *cli.Flags) { f.Provider = "openai"; f.Keys = "" },
			paths:   []string{path},
			wantErr: provider.ErrConfiguration,
		},
		{
			name:    "output with several inputs",
			modify:  func(f *cli.Flags) { f.Output = filepath.Join(dir, "out.txt") },
			paths:   []string{path, path},
			wantMsg: "--output needs exactly one input file",
		},
		{
			name:    "nothing to do",
			modify:  func(f *cli.Flags) {},
			wantMsg: "no files to translate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("BOOKMAKER_OPENAI_KEY", "")

			flags := testFlags()
			tt.modify(flags)
			p, _ := newTestProcessor(t, flags)

			err := p.Translate(context.Background(), tt.paths)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want %q", err, tt.wantMsg)
			}
		})
	}
}

func TestArchiveState(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "book.txt", "A")

	flags := testFlags()
	flags.NoState = false
	flags.StateDB = filepath.Join(dir, "progress.db")
	p, out := newTestProcessor(t, flags)
	if err := p.Translate(context.Background(), []string{path}); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := p.ArchiveState(); err != nil {
		t.Fatalf("ArchiveState() error = %v", err)
	}
	testutil.AssertFileNotExists(t, flags.StateDB)
	if !strings.Contains(out.String(), filepath.Join(dir, "archive", "progress-")) {
		t.Errorf("ArchiveState() printed %q", out.String())
	}

	// A resumed run after archiving translates everything again
	before := echoCalls.Load()
	flags.Resume = true
	if err := p.Translate(context.Background(), []string{path}); err != nil {
		t.Fatal(err)
	}
	if echoCalls.Load()-before != 1 {
		t.Error("archived progress should not be resumed")
	}
}

func TestPreview(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "book.txt", "Chapter one", "It was a dark night.")
	empty := filepath.Join(dir, "empty.txt")
	testutil.CreateTestFile(t, empty, nil)

	flags := testFlags()
	flags.PreviewLimit = 7
	p, out := newTestProcessor(t, flags)

	if err := p.Preview(path); err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if out.String() != "Chapter\n" {
		t.Errorf("Preview() printed %q", out.String())
	}

	out.Reset()
	if err := p.Preview(empty); err != nil {
		t.Fatalf("Preview(empty) error = %v", err)
	}
	if !strings.Contains(out.String(), "No text found") {
		t.Errorf("Preview(empty) printed %q", out.String())
	}

	if err := p.Preview(filepath.Join(dir, "book.mobi")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestListModels(t *testing.T) {
	p, out := newTestProcessor(t, testFlags())

	if err := p.ListModels(context.Background(), ""); err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	for _, want := range []string{"openai:\n  gpt-4o-mini (default)", "gemini:", "deepl:\n  (no model selection)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("ListModels() missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := p.ListModels(context.Background(), "GROQ"); err != nil {
		t.Fatalf("ListModels(groq) error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "groq:\n") || strings.Contains(out.String(), "gemini") {
		t.Errorf("ListModels(groq) = %q", out.String())
	}

	if err := p.ListModels(context.Background(), "babelfish"); !errors.Is(err, provider.ErrConfiguration) {
		t.Errorf("unknown kind error = %v", err)
	}

	p.flags.Remote = true
	if err := p.ListModels(context.Background(), ""); err == nil {
		t.Error("--remote without provider should fail")
	}
}

func TestListLanguages(t *testing.T) {
	p, out := newTestProcessor(t, testFlags())
	if err := p.ListLanguages(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 6 {
		t.Fatalf("too few languages:\n%s", out.String())
	}
	// Priority languages come first
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "zh-hant") {
		t.Errorf("first language = %q", lines[1])
	}
	if !strings.Contains(out.String(), "zh-hans") {
		t.Error("zh-hans missing")
	}
}

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	c := newConsoleProgress(&buf)
	c.width = 4

	c.Start(2)
	c.Advance(1, 2)
	c.Advance(2, 2)
	c.Advance(1, 0)
	c.Finish()

	want := "  Translating 2 paragraphs...\n\r  [##..] 1/2\r  [####] 2/2\n"
	if buf.String() != want {
		t.Errorf("progress = %q, want %q", buf.String(), want)
	}
}
