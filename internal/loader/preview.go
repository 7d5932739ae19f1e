package loader

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultPreviewLimit is the preview size used when none is given
const DefaultPreviewLimit = 2000

// Preview extracts up to limit characters of plain text for a quick look at
// a file. Unlike Load it is lenient: EPUB items that fail to parse are
// skipped, and ok is false when nothing could be extracted.
func Preview(path string, limit int) (text string, ok bool, err error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		text, err = previewEPUB(path, limit)
	case ".txt", ".srt":
		text, err = previewText(path, limit)
	default:
		_, err = ForPath(path)
	}
	if err != nil {
		return "", false, err
	}

	text = strings.TrimSpace(text)
	return text, text != "", nil
}

// previewText decodes the first limit bytes of a plain text file
func previewText(path string, limit int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, limit)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return decodeText(trimPartialRune(buf[:n])), nil
}

func previewEPUB(path string, limit int) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", unsupported(path, err)
	}

	var names []string
	if pkg, opfPath, err := readPackage(zr); err == nil {
		names = spineFiles(pkg, opfPath)
	}
	if len(names) == 0 {
		names = htmlEntries(zr)
	}

	var b strings.Builder
	for _, name := range names {
		data, err := readZipFile(zr, name)
		if err != nil {
			continue
		}
		page, _, err := parseXHTML(data)
		if err != nil {
			continue
		}
		for _, s := range selectUnits(page) {
			b.WriteString(strings.TrimSpace(s.Text()))
			b.WriteString("\n")
			if utf8.RuneCountInString(b.String()) >= limit {
				return truncateRunes(b.String(), limit), nil
			}
		}
	}
	return b.String(), nil
}

// htmlEntries lists the (X)HTML files of a zip when the package document
// cannot be used
func htmlEntries(zr *zip.Reader) []string {
	var names []string
	for _, f := range zr.File {
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".xhtml", ".html", ".htm":
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
