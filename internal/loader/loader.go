package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for unknown extensions and for containers
// that cannot be parsed
var ErrUnsupportedFormat = errors.New("unsupported format")

// Unit is one translatable fragment of a document. Index is the position in
// the walk order and is identical across loads of the same bytes.
type Unit struct {
	Index      int
	Text       string
	Tag        string
	Translated string
	Failed     bool
}

// Done reports whether the unit carries a translation
func (u *Unit) Done() bool {
	return u.Translated != ""
}

// Mode selects how translated units are rendered
type Mode int

const (
	// Bilingual keeps the original and adds the translation after it
	Bilingual Mode = iota
	// Single replaces the original with the translation
	Single
)

func (m Mode) String() string {
	if m == Single {
		return "single"
	}
	return "bilingual"
}

// Document is a loaded book. Units are filled in place by the caller and
// Render serializes the document with whatever translations are present.
type Document interface {
	Units() []*Unit
	Render(mode Mode, style string) ([]byte, error)
}

// TitledDocument is implemented by formats carrying a title in their metadata
type TitledDocument interface {
	Title() string
}

// MarkupDocument is implemented by formats whose unit texts are HTML
// fragments rather than plain text
type MarkupDocument interface {
	Markup() bool
}

// TitleOf returns the title of doc, or "" when the format has none
func TitleOf(doc Document) string {
	if t, ok := doc.(TitledDocument); ok {
		return t.Title()
	}
	return ""
}

// HasMarkup reports whether the unit texts of doc contain HTML markup
func HasMarkup(doc Document) bool {
	m, ok := doc.(MarkupDocument)
	return ok && m.Markup()
}

// Loader parses one container format
type Loader interface {
	Load(path string) (Document, error)
	Format() string
}

var loaders = map[string]Loader{
	".txt":  TXTLoader{},
	".srt":  SRTLoader{},
	".epub": EPUBLoader{},
}

// ForPath selects the loader by file extension
func ForPath(path string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if l, ok := loaders[ext]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %q (supported: .epub, .srt, .txt)", ErrUnsupportedFormat, filepath.Base(path))
}

// Load is a shortcut for ForPath followed by Load
func Load(path string) (Document, error) {
	l, err := ForPath(path)
	if err != nil {
		return nil, err
	}
	return l.Load(path)
}

// OutputPath returns the path the rendered document is written to: the
// input path with "_bilingual" inserted before the extension
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_bilingual" + ext
}

// unsupported wraps err as a format error of the named file
func unsupported(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnsupportedFormat, filepath.Base(path), err)
}

// foldBlankLines drops empty lines from a translation so it cannot end a
// block early in line-oriented formats
func foldBlankLines(s string) string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimRight(line, " \t\r"))
		}
	}
	return strings.Join(lines, "\n")
}

// joinLines puts a translation on one line, for formats where every line
// is a unit of its own
func joinLines(s string) string {
	return strings.Join(strings.Split(foldBlankLines(s), "\n"), " ")
}
