package loader

import (
	"path/filepath"
	"testing"

	"codeberg.org/snonux/bookmaker/internal/testutil"
)

func TestTXT_Units(t *testing.T) {
	doc := parseTXT("First line.\n\n  Indented second.\r\n\n\nThird\n")
	units := doc.Units()

	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	want := []string{"First line.", "Indented second.", "Third"}
	for i, u := range units {
		if u.Index != i {
			t.Errorf("unit %d has index %d", i, u.Index)
		}
		if u.Text != want[i] {
			t.Errorf("unit %d text = %q, want %q", i, u.Text, want[i])
		}
		if u.Tag != "paragraph" {
			t.Errorf("unit %d tag = %q", i, u.Tag)
		}
	}
}

func TestTXT_RenderUntouched(t *testing.T) {
	inputs := []string{
		"a\n\nb\n",
		"a\r\n\r\nb",
		"\n\n  x  \n",
		"",
	}
	for _, in := range inputs {
		out, err := parseTXT(in).Render(Bilingual, "")
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if string(out) != in {
			t.Errorf("Render(%q) = %q, want unchanged", in, out)
		}
	}
}

func TestTXT_RenderModes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		mode Mode
		want string
	}{
		{name: "bilingual", in: "A\n\nB\n", mode: Bilingual, want: "A\nTA\n\nB\nTB\n"},
		{name: "single", in: "A\n\nB\n", mode: Single, want: "TA\n\nTB\n"},
		{name: "crlf kept", in: "A\r\nB\r\n", mode: Bilingual, want: "A\r\nTA\r\nB\r\nTB\r\n"},
		{name: "no trailing newline", in: "A\nB", mode: Bilingual, want: "A\nTA\nB\nTB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseTXT(tt.in)
			for _, u := range doc.Units() {
				u.Translated = "T" + u.Text
			}
			out, err := doc.Render(tt.mode, "")
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("Render() = %q, want %q", out, tt.want)
			}
		})
	}
}

// Three paragraphs with only the first two translated: the third keeps
// its original text and no translation line.
func TestTXT_PartialTranslation(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "three.txt", "A", "B", "C")

	doc, err := TXTLoader{}.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	units := doc.Units()
	units[0].Translated = "a"
	units[1].Translated = "b"

	out, err := doc.Render(Bilingual, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if want := "A\na\n\nB\nb\n\nC\n"; string(out) != want {
		t.Errorf("Render() = %q, want %q", out, want)
	}
}

func TestTXT_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteTXT(t, dir, "book.txt", "One.", "Two.", "Three.")

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var originals []string
	for _, u := range doc.Units() {
		originals = append(originals, u.Text)
		u.Translated = "translated " + u.Text
	}

	out, err := doc.Render(Bilingual, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	outPath := filepath.Join(dir, "out.txt")
	testutil.CreateTestFile(t, outPath, out)

	reloaded, err := Load(outPath)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	units := reloaded.Units()
	if len(units) != 2*len(originals) {
		t.Fatalf("reloaded %d units, want %d", len(units), 2*len(originals))
	}
	for i, orig := range originals {
		if units[2*i].Text != orig {
			t.Errorf("unit %d = %q, want original %q", 2*i, units[2*i].Text, orig)
		}
	}
}

func TestTXT_RenderJoinsMultiLineTranslation(t *testing.T) {
	doc := parseTXT("One.\n\nTwo.\n")
	doc.Units()[0].Translated = "Eins,\n\nzwei\r\nLinien."

	out, err := doc.Render(Bilingual, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if want := "One.\nEins, zwei Linien.\n\nTwo.\n"; string(out) != want {
		t.Errorf("Render() = %q, want %q", out, want)
	}

	if n := len(parseTXT(string(out)).Units()); n != 3 {
		t.Errorf("reparsed %d units, want 3", n)
	}
}
