package index

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Document is one loaded source file, split into pages. Flat text files
// load as a single page numbered 0.
type Document struct {
	Name        string
	Path        string
	ByteSize    int64
	ContentType string
	Pages       []Page
}

// Page is one page of extracted text.
type Page struct {
	Number int // 1-based for paginated sources, 0 for flat files
	Text   string
}

// Extractor extracts page text from PDF files.
type Extractor interface {
	ExtractPages(ctx context.Context, pdfPath string) ([]Page, error)
}

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
// pdftotext separates pages with form feeds, which preserves the 1-based
// page numbers needed for citations.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout on the given PDF and splits stdout
// on form feeds.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]Page, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "index: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	raw := strings.Split(stdout.String(), "\f")
	pages := make([]Page, 0, len(raw))
	for i, text := range raw {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: text})
	}
	return pages, nil
}

// loadDocument reads one source file into a Document. PDFs go through the
// extractor; .txt/.md/.markdown load as flat text.
func loadDocument(ctx context.Context, path string, extractor Extractor) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "index: stat %s", path)
	}

	doc := &Document{
		Name:     filepath.Base(path),
		Path:     path,
		ByteSize: info.Size(),
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		doc.ContentType = "application/pdf"
		pages, err := extractor.ExtractPages(ctx, path)
		if err != nil {
			return nil, err
		}
		doc.Pages = pages
	case ".md", ".markdown":
		doc.ContentType = "text/markdown"
		if err := loadFlat(doc, path); err != nil {
			return nil, err
		}
	case ".txt":
		doc.ContentType = "text/plain"
		if err := loadFlat(doc, path); err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("index: unsupported file type %s", path)
	}

	return doc, nil
}

func loadFlat(doc *Document, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "index: read %s", path)
	}
	doc.Pages = []Page{{Number: 0, Text: string(content)}}
	return nil
}

// supportedExt reports whether the index can ingest the file.
func supportedExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".md", ".markdown", ".txt":
		return true
	default:
		return false
	}
}
