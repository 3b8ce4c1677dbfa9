package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExtractBytes_plain(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("第一条 本法\n第二条 适用"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "第一条 本法\n第二条 适用" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_plainBOM(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes(append([]byte{0xEF, 0xBB, 0xBF}, []byte("第一章")...), ".md")
	if err != nil {
		t.Fatal(err)
	}
	if got != "第一章" {
		t.Errorf("BOM not stripped: %q", got)
	}
}

func TestExtractBytes_plainInvalidUTF8(t *testing.T) {
	e := NewExtractor()
	got, err := e.ExtractBytes([]byte("hello\x80world"), ".txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "hello�world" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_excel(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "罪名")
	f.SetCellValue("Sheet1", "A2", "盗窃罪")
	f.SetCellValue("Sheet1", "B2", "第二百六十四条")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "罪名\n盗窃罪\t第二百六十四条" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_excelMultipleSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "甲")
	if _, err := f.NewSheet("附表"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("附表", "A1", "乙")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().ExtractBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Sheet1\n甲\n附表\n乙" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_plainFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "law.txt")
	if err := os.WriteFile(path, []byte("第一条 内容"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewExtractor().Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "第一条 内容" {
		t.Errorf("got %q", got)
	}
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "宪法.docx")
	if err := os.WriteFile(path, docxWithParagraphs("第一章 总纲", "第一条 内容"), 0600); err != nil {
		t.Fatal(err)
	}
	doc, err := NewExtractor().Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "宪法" {
		t.Errorf("Title = %q", doc.Title)
	}
	if doc.Content != "第一章 总纲\n第一条 内容" {
		t.Errorf("Content = %q", doc.Content)
	}
	if doc.Size == 0 || len(doc.Checksum) != 64 || doc.ReadAt.IsZero() {
		t.Errorf("metadata not filled: %+v", doc)
	}
}

func TestExtract_nonexistent(t *testing.T) {
	if _, err := NewExtractor().Extract(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{".docx", ".DOCX", ".txt", ".pdf", ".rtf"} {
		if !Supported(ext) {
			t.Errorf("%s should be supported", ext)
		}
	}
	for _, ext := range []string{".pptx", ".exe", ""} {
		if Supported(ext) {
			t.Errorf("%s should not be supported", ext)
		}
	}
}

// docxWithParagraphs returns a minimal .docx whose body has one <w:p> per paragraph.
func docxWithParagraphs(paragraphs ...string) []byte {
	var body bytes.Buffer
	for _, p := range paragraphs {
		body.WriteString(`<w:p w:rsidR="00A1"><w:pPr><w:jc w:val="left"/></w:pPr><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	return docxFromBody(body.String(), "word/document.xml", false)
}

func docxFromBody(body, docPath string, withContentTypes bool) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if withContentTypes {
		ct, _ := w.Create("[Content_Types].xml")
		_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Override PartName="/` + docPath + `" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`))
	}
	fw, _ := w.Create(docPath)
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func TestExtractBytes_docxParagraphs(t *testing.T) {
	got, err := NewExtractor().ExtractBytes(docxWithParagraphs("第一章 总则", "", "第一条 本法律适用于..."), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "第一章 总则\n第一条 本法律适用于..." {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxRunsJoinedWithoutSpaces(t *testing.T) {
	body := `<w:p><w:r><w:t>第一</w:t></w:r><w:r><w:t>条</w:t></w:r><w:r><w:tab/><w:t>公民&amp;法人</w:t></w:r></w:p><w:p/>`
	got, err := NewExtractor().ExtractBytes(docxFromBody(body, "word/document.xml", false), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "第一条\t公民&法人" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxSelfClosingParagraphNotMerged(t *testing.T) {
	body := `<w:p w:rsidR="1"/><w:p><w:r><w:t>甲</w:t></w:r></w:p><w:p><w:r><w:t>乙</w:t></w:r></w:p>`
	got, err := NewExtractor().ExtractBytes(docxFromBody(body, "word/document.xml", false), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if got != "甲\n乙" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxWithContentTypes(t *testing.T) {
	body := `<w:p><w:r><w:t>Content from document2</w:t></w:r></w:p>`
	got, err := NewExtractor().ExtractBytes(docxFromBody(body, "word/document2.xml", true), ".docx")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if got != "Content from document2" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_docxNotZip(t *testing.T) {
	if _, err := NewExtractor().ExtractBytes([]byte("not a zip"), ".docx"); err == nil {
		t.Error("expected error")
	}
}

func TestExtractBytes_docxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, _ = w.Create("other.xml")
	_ = w.Close()
	if _, err := NewExtractor().ExtractBytes(buf.Bytes(), ".docx"); err == nil {
		t.Error("expected error when document.xml is missing")
	}
}

func TestNormalizeLines(t *testing.T) {
	if got := normalizeLines("  a \r\n\n b\n"); got != "a\nb" {
		t.Errorf("got %q", got)
	}
}
