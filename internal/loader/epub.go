package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// unitSelector lists the block elements that become units. Only the
// innermost matching element is used so nested blocks are not sent twice.
const unitSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote"

var xmlDeclRe = regexp.MustCompile(`^\s*<\?xml[^>]*\?>\s*`)

// EPUBLoader reads EPUB books. Units come from the spine documents in
// reading order.
type EPUBLoader struct{}

// Format returns the format name
func (EPUBLoader) Format() string { return "epub" }

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Title    string `xml:"title"`
		Language string `xml:"language"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID        string `xml:"id,attr"`
			Href      string `xml:"href,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type epubDocument struct {
	zr      *zip.Reader
	title   string
	spine   []string
	content map[string][]byte
	units   []*Unit
}

// Load parses the container, the package document and every spine
// document. Any failure is reported as ErrUnsupportedFormat.
func (EPUBLoader) Load(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, unsupported(path, err)
	}

	pkg, opfPath, err := readPackage(zr)
	if err != nil {
		return nil, unsupported(path, err)
	}

	doc := &epubDocument{
		zr:      zr,
		title:   strings.TrimSpace(pkg.Metadata.Title),
		spine:   spineFiles(pkg, opfPath),
		content: make(map[string][]byte),
	}

	for _, name := range doc.spine {
		data, err := readZipFile(zr, name)
		if err != nil {
			return nil, unsupported(path, err)
		}
		doc.content[name] = data

		page, _, err := parseXHTML(data)
		if err != nil {
			return nil, unsupported(path, fmt.Errorf("%s: %w", name, err))
		}
		for _, s := range selectUnits(page) {
			inner, err := s.Html()
			if err != nil {
				return nil, unsupported(path, fmt.Errorf("%s: %w", name, err))
			}
			doc.units = append(doc.units, &Unit{
				Index: len(doc.units),
				Text:  strings.TrimSpace(inner),
				Tag:   goquery.NodeName(s),
			})
		}
	}
	return doc, nil
}

func (d *epubDocument) Units() []*Unit {
	return d.units
}

// Title returns the dc:title of the book, if any
func (d *epubDocument) Title() string {
	return d.title
}

// Markup reports that unit texts are inner HTML of the block elements
func (d *epubDocument) Markup() bool {
	return true
}

// Render rebuilds the zip. Spine documents are re-parsed from their original
// bytes so Render can be called more than once; all other entries are copied
// unchanged with the mimetype entry first and stored uncompressed.
func (d *epubDocument) Render(mode Mode, style string) ([]byte, error) {
	rendered := make(map[string][]byte, len(d.spine))
	next := 0
	for _, name := range d.spine {
		page, prolog, err := parseXHTML(d.content[name])
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}

		for _, s := range selectUnits(page) {
			if next >= len(d.units) {
				return nil, fmt.Errorf("render %s: unit sequence changed", name)
			}
			unit := d.units[next]
			next++
			if !unit.Done() {
				continue
			}

			if mode == Single {
				s.SetHtml(unit.Translated)
				continue
			}
			clone := s.Clone()
			clone.RemoveAttr("id")
			clone.SetHtml(unit.Translated)
			// Anchors kept inside the translation must stay unique
			clone.Find("[id]").RemoveAttr("id")
			if style != "" {
				clone.SetAttr("style", style)
			}
			s.AfterSelection(clone)
		}

		var buf bytes.Buffer
		buf.WriteString(prolog)
		if err := html.Render(&buf, page.Get(0)); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		rendered[name] = buf.Bytes()
	}

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	if f := findZipFile(d.zr, "mimetype"); f != nil {
		if err := copyStored(zw, f); err != nil {
			return nil, err
		}
	}

	for _, f := range d.zr.File {
		if f.Name == "mimetype" {
			continue
		}
		data, ok := rendered[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return nil, fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func readPackage(zr *zip.Reader) (*opfPackage, string, error) {
	data, err := readZipFile(zr, "META-INF/container.xml")
	if err != nil {
		return nil, "", err
	}

	var c container
	if err := xml.Unmarshal(data, &c); err != nil {
		return nil, "", fmt.Errorf("parse container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, "", fmt.Errorf("container.xml has no rootfile")
	}

	opfPath := c.Rootfiles[0].FullPath
	data, err = readZipFile(zr, opfPath)
	if err != nil {
		return nil, "", err
	}

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", opfPath, err)
	}
	return &pkg, opfPath, nil
}

// spineFiles resolves the spine to zip entry names, keeping only
// (X)HTML documents
func spineFiles(pkg *opfPackage, opfPath string) []string {
	base := path.Dir(opfPath)
	hrefs := make(map[string]string)
	for _, item := range pkg.Manifest.Items {
		if item.MediaType != "application/xhtml+xml" && item.MediaType != "text/html" {
			continue
		}
		href := item.Href
		if unescaped, err := url.PathUnescape(href); err == nil {
			href = unescaped
		}
		hrefs[item.ID] = path.Clean(path.Join(base, href))
	}

	var files []string
	seen := make(map[string]bool)
	for _, ref := range pkg.Spine.ItemRefs {
		name, ok := hrefs[ref.IDRef]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		files = append(files, name)
	}
	return files
}

// parseXHTML parses a content document, returning the XML declaration
// separately because the HTML parser would turn it into a comment.
// Self-closing tags are expanded first so the tree matches the XHTML.
func parseXHTML(data []byte) (*goquery.Document, string, error) {
	prolog := ""
	if loc := xmlDeclRe.FindIndex(data); loc != nil {
		prolog = strings.TrimSpace(string(data[:loc[1]])) + "\n"
		data = data[loc[1]:]
	}

	data, err := expandSelfClosing(data)
	if err != nil {
		return nil, "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return doc, prolog, nil
}

func selectUnits(doc *goquery.Document) []*goquery.Selection {
	var units []*goquery.Selection
	doc.Find("body").Find(unitSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Find(unitSelector).Length() > 0 {
			return
		}
		if strings.TrimSpace(s.Text()) == "" {
			return
		}
		units = append(units, s)
	})
	return units
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f := findZipFile(zr, name)
	if f == nil {
		return nil, fmt.Errorf("missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func copyStored(zw *zip.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Store})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, rc)
	return err
}
