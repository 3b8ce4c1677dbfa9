// Package extract reads statute text out of the document formats legal sources ship in.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/fileid"
	"github.com/WindyStu/RAGJurisChat/internal/models"
)

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// SupportedExtensions lists the extensions ExtractBytes understands.
var SupportedExtensions = []string{".docx", ".txt", ".md", ".pdf", ".xlsx", ".odt", ".rtf"}

// Supported reports whether ext (with leading dot, any case) has a dedicated reader.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Read loads the file at path into a Document with its extracted text and checksum.
func (e *Extractor) Read(path string) (*models.Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	text, err := e.ExtractBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	return &models.Document{
		Path:     path,
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content:  text,
		Size:     int64(len(content)),
		ReadAt:   time.Now(),
		Checksum: fileid.ContentHash(content),
	}, nil
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Paragraphs are separated by "\n"
// so that article markers stay at the start of a line.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".odt", ".rtf":
		return extractCat(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		// .txt, .md and unknown extensions are treated as plain text.
		return extractPlain(content)
	}
}
