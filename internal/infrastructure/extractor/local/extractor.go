// Package local extracts plain text from native document formats without
// any network dependency. It is the fallback behind the external OCR
// provider and the only extraction path in a default deployment.
package local

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/citysort/citysort/internal/core/domain"
)

const (
	MethodNativeText      = "native_text"
	MethodJSONText        = "json_text"
	MethodContentTypeText = "content_type_text"
	MethodPDFText         = "pdf_text"
	MethodPDFUnavailable  = "pdf_unavailable"
	MethodDocxXML         = "docx_xml"
	MethodDocxUnavailable = "docx_unavailable"
	MethodXlsxSheet       = "xlsx_sheet"
	MethodXlsxUnavailable = "xlsx_unavailable"
	MethodOCRPlaceholder  = "ocr_placeholder"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract dispatches on the file extension, independent of the declared
// content type; the content type is only consulted when the extension is
// unrecognized. Parse failures degrade to low-confidence empty results; an
// unreadable text-like file is the one error that propagates.
func (e *Extractor) Extract(_ context.Context, path, contentType string) (domain.Extraction, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".csv":
		text, err := readTextFile(path)
		if err != nil {
			return domain.Extraction{}, err
		}
		return textResult(text, MethodNativeText, 0.99, 0.1), nil

	case ".json":
		text, err := readTextFile(path)
		if err != nil {
			return domain.Extraction{}, err
		}
		return textResult(text, MethodJSONText, 0.95, 0.2), nil

	case ".pdf":
		if text := readPDF(path); text != "" {
			return domain.Extraction{Text: text, Method: MethodPDFText, Confidence: 0.87}, nil
		}
		return domain.Extraction{Method: MethodPDFUnavailable, Confidence: 0.25}, nil

	case ".docx", ".docm":
		if text := readDocx(path); text != "" {
			return domain.Extraction{Text: text, Method: MethodDocxXML, Confidence: 0.9}, nil
		}
		return domain.Extraction{Method: MethodDocxUnavailable, Confidence: 0.2}, nil

	case ".xlsx", ".xlsm":
		if text := readSpreadsheet(path); text != "" {
			return domain.Extraction{Text: text, Method: MethodXlsxSheet, Confidence: 0.88}, nil
		}
		return domain.Extraction{Method: MethodXlsxUnavailable, Confidence: 0.2}, nil
	}

	if strings.HasPrefix(contentType, "text/") {
		text, err := readTextFile(path)
		if err != nil {
			return domain.Extraction{}, err
		}
		return textResult(text, MethodContentTypeText, 0.9, 0.2), nil
	}

	return domain.Extraction{Method: MethodOCRPlaceholder, Confidence: 0.2}, nil
}

func textResult(text, method string, okConfidence, emptyConfidence float64) domain.Extraction {
	confidence := okConfidence
	if text == "" {
		confidence = emptyConfidence
	}
	return domain.Extraction{Text: text, Method: method, Confidence: confidence}
}

// readTextFile decodes UTF-8 directly and falls back to Latin-1 for legacy
// exports. Latin-1 decoding cannot fail, so the result is empty only for an
// empty file.
func readTextFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), nil
}

// readPDF concatenates page text. The pdf package panics on some malformed
// files; those degrade to the unavailable branch like any other parse error.
func readPDF(path string) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(pageText)
	}
	return strings.TrimSpace(sb.String())
}

// readDocx unzips the OOXML package and walks the main document part,
// joining text runs per paragraph and paragraphs with newlines. A token
// walk (rather than struct unmarshaling) also picks up runs nested inside
// hyperlinks and other wrappers.
func readDocx(path string) string {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return ""
	}
	defer archive.Close()

	var main *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			main = file
			break
		}
	}
	if main == nil {
		return ""
	}

	reader, err := main.Open()
	if err != nil {
		return ""
	}
	defer reader.Close()

	decoder := xml.NewDecoder(reader)
	var paragraphs []string
	var paragraph []string
	var inText bool

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ""
		}
		switch element := token.(type) {
		case xml.StartElement:
			inText = element.Name.Local == "t"
		case xml.CharData:
			if inText {
				if part := strings.TrimSpace(string(element)); part != "" {
					paragraph = append(paragraph, part)
				}
			}
		case xml.EndElement:
			if element.Name.Local == "t" {
				inText = false
			}
			if element.Name.Local == "p" && len(paragraph) > 0 {
				paragraphs = append(paragraphs, strings.Join(paragraph, " "))
				paragraph = nil
			}
		}
	}
	return strings.Join(paragraphs, "\n")
}

// readSpreadsheet flattens all sheets: cells joined with spaces, rows and
// sheets with newlines. Intake spreadsheets are mostly invoices and fee
// schedules, so cell order is good enough for keyword classification.
func readSpreadsheet(path string) string {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return ""
	}
	defer workbook.Close()

	var lines []string
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if trimmed := strings.TrimSpace(cell); trimmed != "" {
					cells = append(cells, trimmed)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " "))
			}
		}
	}
	return strings.Join(lines, "\n")
}
