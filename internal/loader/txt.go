package loader

import (
	"os"
	"strings"
)

// TXTLoader treats every non-blank line as a paragraph
type TXTLoader struct{}

// Format returns the format name
func (TXTLoader) Format() string { return "txt" }

type txtLine struct {
	text string
	eol  string
	unit *Unit
}

type txtDocument struct {
	lines []txtLine
	units []*Unit
}

// Load reads a text file. GB18030 and Latin-1 files are converted to UTF-8.
func (TXTLoader) Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseTXT(decodeText(raw)), nil
}

func parseTXT(content string) *txtDocument {
	doc := &txtDocument{}
	for content != "" {
		line, eol := content, ""
		if i := strings.IndexByte(content, '\n'); i >= 0 {
			line, content = content[:i], content[i+1:]
			eol = "\n"
			if strings.HasSuffix(line, "\r") {
				line = line[:len(line)-1]
				eol = "\r\n"
			}
		} else {
			content = ""
		}

		l := txtLine{text: line, eol: eol}
		if text := strings.TrimSpace(line); text != "" {
			l.unit = &Unit{Index: len(doc.units), Text: text, Tag: "paragraph"}
			doc.units = append(doc.units, l.unit)
		}
		doc.lines = append(doc.lines, l)
	}
	return doc
}

func (d *txtDocument) Units() []*Unit {
	return d.units
}

// Render writes the lines back with their original endings. In bilingual
// mode a translated paragraph is followed by its translation on the next
// line. Multi-line translations are joined into one line so every
// paragraph stays a single line.
func (d *txtDocument) Render(mode Mode, style string) ([]byte, error) {
	var b strings.Builder
	for _, l := range d.lines {
		if l.unit == nil || !l.unit.Done() {
			b.WriteString(l.text)
			b.WriteString(l.eol)
			continue
		}

		translated := joinLines(l.unit.Translated)
		if mode == Single {
			b.WriteString(translated)
			b.WriteString(l.eol)
			continue
		}

		eol := l.eol
		if eol == "" {
			eol = "\n"
		}
		b.WriteString(l.text)
		b.WriteString(eol)
		b.WriteString(translated)
		b.WriteString(l.eol)
	}
	return []byte(b.String()), nil
}
