package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	// paragraphRe matches one <w:p ...>...</w:p>; neither <w:pPr> nor a self-closing
	// <w:p .../> starts a paragraph.
	paragraphRe = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/])?>(.*?)</w:p>`)
	// runPartRe matches text nodes plus the tab and break elements inside runs.
	runPartRe = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|<w:tab\s*/>|<w:br(?:\s[^>]*)?/>`)

	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	data, err := readZipEntry(zr, contentTypesPath)
	if err != nil {
		return ""
	}
	content := string(data)
	if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%s not found", name)
}

// extractDOCX extracts text from .docx bytes, one line per non-empty paragraph.
// Runs inside a paragraph are concatenated without separators: Chinese text is split
// into runs at arbitrary points and must not gain spaces.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := findDocxMainDocumentPath(zr)
	if docPath == "" {
		docPath = docxDocumentXMLPath
	}
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	paragraphs := paragraphRe.FindAllStringSubmatch(string(docXML), -1)
	lines := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		var b strings.Builder
		for _, part := range runPartRe.FindAllStringSubmatch(p[1], -1) {
			switch {
			case strings.HasPrefix(part[0], "<w:tab"):
				b.WriteByte('\t')
			case strings.HasPrefix(part[0], "<w:br"):
				b.WriteByte('\n')
			default:
				b.WriteString(html.UnescapeString(part[1]))
			}
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
