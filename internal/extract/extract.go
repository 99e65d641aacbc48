// Package extract turns uploaded evidence files into plain text via a
// per-kind extraction ladder, escalating from cheap native extraction
// to vision OCR only where needed.
package extract

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/model"
)

// OCRClient transcribes visible text from an image or a full document.
type OCRClient interface {
	TranscribeImage(ctx context.Context, image []byte, mimeType string) (string, error)
	TranscribeDocument(ctx context.Context, pdf []byte) (string, error)
}

// Extractor dispatches file bytes by kind to the right extraction
// strategy. Extract never fails; unsupported or broken inputs yield a
// placeholder ExtractedFile with empty text.
type Extractor struct {
	ocr           OCRClient
	pdfToTextPath string
	pdfToPpmPath  string
	ocrCharMin    int
}

// ExtractorOption configures the Extractor.
type ExtractorOption func(*Extractor)

// WithOCR sets the vision OCR backend. Without one, scanned pages and
// images produce a placeholder instead of transcribed text.
func WithOCR(ocr OCRClient) ExtractorOption {
	return func(e *Extractor) {
		e.ocr = ocr
	}
}

// WithPdfTools overrides the pdftotext/pdftoppm binary paths.
func WithPdfTools(pdfToText, pdfToPpm string) ExtractorOption {
	return func(e *Extractor) {
		if pdfToText != "" {
			e.pdfToTextPath = pdfToText
		}
		if pdfToPpm != "" {
			e.pdfToPpmPath = pdfToPpm
		}
	}
}

// WithOCRCharMinimum sets the per-page character yield below which a
// PDF page is treated as scanned and escalated to OCR.
func WithOCRCharMinimum(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.ocrCharMin = n
		}
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		pdfToTextPath: "pdftotext",
		pdfToPpmPath:  "pdftoppm",
		ocrCharMin:    40,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Kind classifies a filename by extension.
func Kind(filename string) model.FileKind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return model.FileKindPDF
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".tiff", ".tif", ".bmp":
		return model.FileKindImage
	case ".docx":
		return model.FileKindDocx
	case ".xlsx":
		return model.FileKindSpreadsheet
	case ".txt", ".md", ".csv":
		return model.FileKindText
	default:
		return model.FileKindUnknown
	}
}

// Extract produces an ExtractedFile for the given bytes. It never
// raises; failures yield empty text with the detected kind.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) model.ExtractedFile {
	kind := Kind(filename)
	file := model.ExtractedFile{
		Filename: filename,
		Kind:     kind,
		ByteSize: len(data),
	}

	var text string
	var pages int
	var err error

	switch kind {
	case model.FileKindPDF:
		text, pages, err = e.extractPDF(ctx, data)
	case model.FileKindImage:
		text, err = e.extractImage(ctx, filename, data)
		pages = 1
	case model.FileKindDocx:
		text, err = extractDocx(data)
	case model.FileKindSpreadsheet:
		text, err = extractXlsx(data)
	case model.FileKindText:
		text = decodeText(data)
	default:
		zap.L().Debug("unsupported file type",
			zap.String("filename", filename),
		)
		return file
	}

	if err != nil {
		zap.L().Warn("extraction failed",
			zap.String("filename", filename),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return file
	}

	file.ExtractedText = text
	file.WordCount = model.CountWords(text)
	if pages == 0 {
		pages = model.EstimatePages(file.WordCount)
	}
	file.PageCount = pages
	return file
}

// ExtractAll extracts every file, collecting the filenames that yielded
// no text so callers can report partial failures without aborting.
func (e *Extractor) ExtractAll(ctx context.Context, files map[string][]byte) ([]model.ExtractedFile, []string) {
	var out []model.ExtractedFile
	var failed []string
	for name, data := range files {
		f := e.Extract(ctx, name, data)
		if f.ExtractedText == "" {
			failed = append(failed, name)
		}
		out = append(out, f)
	}
	return out, failed
}

func (e *Extractor) extractImage(ctx context.Context, filename string, data []byte) (string, error) {
	if e.ocr == nil {
		return "[image text extraction unavailable: OCR backend not configured]", nil
	}
	return e.ocr.TranscribeImage(ctx, data, mimeType(filename))
}

func mimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".tiff", ".tif":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// decodeText decodes UTF-8, falling back to Latin-1 which never fails.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
