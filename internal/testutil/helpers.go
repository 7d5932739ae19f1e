package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CreateTestFile creates a test file with content
func CreateTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory for test file: %v", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
}

// WriteTXT writes paragraphs separated by blank lines and returns the path
func WriteTXT(t *testing.T, dir, name string, paragraphs ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	CreateTestFile(t, path, []byte(strings.Join(paragraphs, "\n\n")+"\n"))
	return path
}

// WriteSRT writes one cue per text, one second apart, and returns the path
func WriteSRT(t *testing.T, dir, name string, texts ...string) string {
	t.Helper()

	var b strings.Builder
	for i, text := range texts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n00:00:%02d,000 --> 00:00:%02d,500\n%s\n", i+1, i, i, text)
	}

	path := filepath.Join(dir, name)
	CreateTestFile(t, path, []byte(b.String()))
	return path
}

// WriteEPUB builds a minimal EPUB whose spine holds one chapter per entry of
// chapters. Each chapter is the body markup of an XHTML document. A
// stylesheet and a binary cover are added so copying of non-text entries
// can be checked.
func WriteEPUB(t *testing.T, dir, name string, chapters ...string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create epub: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	write := func(name string, method uint16, data string) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("Failed to add %s: %v", name, err)
		}
		if _, err := io.WriteString(w, data); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	write("mimetype", zip.Store, "application/epub+zip")
	write("META-INF/container.xml", zip.Deflate, `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`)

	var manifest, spine strings.Builder
	for i := range chapters {
		fmt.Fprintf(&manifest, `    <item id="ch%d" href="text/ch%d.xhtml" media-type="application/xhtml+xml"/>`+"\n", i+1, i+1)
		fmt.Fprintf(&spine, `    <itemref idref="ch%d"/>`+"\n", i+1)
	}
	write("OEBPS/content.opf", zip.Deflate, fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
%s    <item id="css" href="style.css" media-type="text/css"/>
    <item id="cover" href="cover.png" media-type="image/png"/>
  </manifest>
  <spine>
%s  </spine>
</package>`, manifest.String(), spine.String()))

	for i, body := range chapters {
		write(fmt.Sprintf("OEBPS/text/ch%d.xhtml", i+1), zip.Deflate, fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Chapter %d</title><link rel="stylesheet" href="../style.css"/></head>
<body>
%s
</body>
</html>`, i+1, body))
	}

	write("OEBPS/style.css", zip.Deflate, "p { margin: 0; }\n")
	write("OEBPS/cover.png", zip.Store, string(CoverPNG))

	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close epub: %v", err)
	}
	return path
}

// CoverPNG is the binary cover stored by WriteEPUB
var CoverPNG = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x01, 0x02}

// ReadZipEntry returns the content of one entry of a zip archive
func ReadZipEntry(t *testing.T, data []byte, name string) []byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to open zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open %s: %v", name, err)
		}
		defer rc.Close()
		out, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", name, err)
		}
		return out
	}
	t.Fatalf("Entry %s not found in zip", name)
	return nil
}

// AssertFileExists checks if a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks if a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err == nil {
		t.Errorf("Expected file to not exist: %s", path)
	}
}

// AssertFileContent checks if a file has expected content
func AssertFileContent(t *testing.T, path string, expected []byte) {
	t.Helper()

	actual, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if string(actual) != string(expected) {
		t.Errorf("File content mismatch in %s\nExpected: %q\nActual: %q", path, expected, actual)
	}
}

// AssertFileContains checks if a file contains a substring
func AssertFileContains(t *testing.T, path string, substring string) {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if !strings.Contains(string(content), substring) {
		t.Errorf("File %s does not contain expected substring: %q", path, substring)
	}
}

// CaptureOutput captures stdout/stderr during test execution
func CaptureOutput(t *testing.T, f func()) (stdout, stderr string) {
	t.Helper()

	// Save current stdout/stderr
	oldStdout := os.Stdout
	oldStderr := os.Stderr

	// Create pipes
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()

	// Redirect stdout/stderr
	os.Stdout = wOut
	os.Stderr = wErr

	outCh := make(chan []byte)
	errCh := make(chan []byte)
	go func() { b, _ := io.ReadAll(rOut); outCh <- b }()
	go func() { b, _ := io.ReadAll(rErr); errCh <- b }()

	// Run function
	f()

	// Close writers
	wOut.Close()
	wErr.Close()

	outBytes := <-outCh
	errBytes := <-errCh

	// Restore stdout/stderr
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	return string(outBytes), string(errBytes)
}
