package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"

	"codeberg.org/snonux/bookmaker/internal/testutil"
)

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		format  string
		wantErr bool
	}{
		{path: "book.epub", format: "epub"},
		{path: "/tmp/Book.EPUB", format: "epub"},
		{path: "novel.txt", format: "txt"},
		{path: "movie.srt", format: "srt"},
		{path: "paper.pdf", wantErr: true},
		{path: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l, err := ForPath(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("ForPath(%q) error = %v, want ErrUnsupportedFormat", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ForPath(%q) unexpected error: %v", tt.path, err)
			}
			if l.Format() != tt.format {
				t.Errorf("Format() = %q, want %q", l.Format(), tt.format)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	tests := map[string]string{
		"book.epub":          "book_bilingual.epub",
		"/data/my.novel.txt": "/data/my.novel_bilingual.txt",
		"subs/film.srt":      "subs/film_bilingual.srt",
		"README":             "README_bilingual",
	}
	for in, want := range tests {
		if got := OutputPath(in); got != want {
			t.Errorf("OutputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeText(t *testing.T) {
	gbk, err := simplifiedchinese.GB18030.NewEncoder().String("你好，世界")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{name: "utf8", in: []byte("héllo"), want: "héllo"},
		{name: "utf8 bom", in: append([]byte{0xEF, 0xBB, 0xBF}, []byte("hi")...), want: "hi"},
		{name: "gb18030", in: []byte(gbk), want: "你好，世界"},
		{name: "latin1", in: []byte{'c', 'a', 'f', 0xE9, 0xFF}, want: "caféÿ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeText(tt.in); got != tt.want {
				t.Errorf("decodeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreview_Text(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "book.txt", "Первый абзац.", "Second paragraph.")

	// Cut inside the two-byte Cyrillic letters
	text, ok, err := Preview(path, 7)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if !ok {
		t.Fatal("Preview() ok = false")
	}
	if text != "Пер" {
		t.Errorf("Preview() = %q, want %q", text, "Пер")
	}

	empty := filepath.Join(dir, "empty.txt")
	testutil.CreateTestFile(t, empty, nil)
	if _, ok, err := Preview(empty, 10); err != nil || ok {
		t.Errorf("empty preview = ok %v, err %v", ok, err)
	}

	if _, _, err := Preview(filepath.Join(dir, "doc.pdf"), 10); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("pdf preview error = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want not-exist", err)
	}
}
