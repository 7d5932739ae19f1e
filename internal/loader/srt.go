package loader

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var srtTimingRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2},\d{3} --> \d{2}:\d{2}:\d{2},\d{3}`)

// SRTLoader reads SubRip subtitles, one unit per cue
type SRTLoader struct{}

// Format returns the format name
func (SRTLoader) Format() string { return "srt" }

type srtCue struct {
	number string
	timing string
	lines  []string
	unit   *Unit
}

type srtDocument struct {
	cues  []srtCue
	units []*Unit
}

// Load parses the file strictly; a malformed cue fails the whole load
func (SRTLoader) Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := parseSRT(decodeText(raw))
	if err != nil {
		return nil, unsupported(path, err)
	}
	return doc, nil
}

func parseSRT(content string) (*srtDocument, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	doc := &srtDocument{}
	var block []string
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		defer func() { block = nil }()

		if len(block) < 2 {
			return fmt.Errorf("cue %d: missing timing line", len(doc.cues)+1)
		}
		number := strings.TrimSpace(block[0])
		if _, err := strconv.Atoi(number); err != nil {
			return fmt.Errorf("cue %d: invalid index %q", len(doc.cues)+1, block[0])
		}
		timing := strings.TrimSpace(block[1])
		if !srtTimingRe.MatchString(timing) {
			return fmt.Errorf("cue %s: invalid timing %q", number, block[1])
		}

		cue := srtCue{number: number, timing: timing, lines: block[2:]}
		if text := strings.TrimSpace(strings.Join(cue.lines, "\n")); text != "" {
			cue.unit = &Unit{Index: len(doc.units), Text: text, Tag: "cue"}
			doc.units = append(doc.units, cue.unit)
		}
		doc.cues = append(doc.cues, cue)
		return nil
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if len(doc.cues) == 0 {
		return nil, fmt.Errorf("no subtitle cues found")
	}
	return doc, nil
}

func (d *srtDocument) Units() []*Unit {
	return d.units
}

// Render keeps numbering and timing. Bilingual cues carry the translated
// text on the lines after the original text. Blank lines inside a
// translation are dropped since they would end the cue.
func (d *srtDocument) Render(mode Mode, style string) ([]byte, error) {
	var b strings.Builder
	for i, cue := range d.cues {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(cue.number + "\n")
		b.WriteString(cue.timing + "\n")

		translated := cue.unit != nil && cue.unit.Done()
		if !translated || mode == Bilingual {
			for _, line := range cue.lines {
				b.WriteString(line + "\n")
			}
		}
		if translated {
			b.WriteString(foldBlankLines(cue.unit.Translated) + "\n")
		}
	}
	return []byte(b.String()), nil
}
