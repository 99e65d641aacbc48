package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// extractPDF runs native text extraction and escalates individual
// low-yield pages (scanned pages) to rendered-image OCR. Page
// boundaries are preserved with markers.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "petition-pdf-*")
	if err != nil {
		return "", 0, eris.Wrap(err, "extract: create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0600); err != nil {
		return "", 0, eris.Wrap(err, "extract: write temp pdf")
	}

	pages, err := e.pdfToTextPages(ctx, pdfPath)
	if err != nil {
		// Native extraction unavailable; fall back to whole-document OCR.
		if e.ocr != nil {
			text, ocrErr := e.ocr.TranscribeDocument(ctx, data)
			if ocrErr != nil {
				return "", 0, eris.Wrap(ocrErr, "extract: document ocr fallback")
			}
			return text, 0, nil
		}
		return "", 0, err
	}

	var b strings.Builder
	for i, pageText := range pages {
		if len(strings.TrimSpace(pageText)) < e.ocrCharMin {
			ocrText, ocrErr := e.ocrPage(ctx, pdfPath, tmpDir, i+1)
			if ocrErr != nil {
				zap.L().Warn("page ocr escalation failed",
					zap.Int("page", i+1),
					zap.Error(ocrErr),
				)
			} else {
				pageText = ocrText
			}
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s", i+1, strings.TrimSpace(pageText))
	}

	return b.String(), len(pages), nil
}

// pdfToTextPages extracts the full document and splits it into pages on
// the form-feed separators pdftotext emits.
func (e *Extractor) pdfToTextPages(ctx context.Context, pdfPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, e.pdfToTextPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "extract: pdftotext failed: %s", stderr.String())
	}

	text := strings.TrimSuffix(stdout.String(), "\f")
	return strings.Split(text, "\f"), nil
}

// ocrPage renders one page to PNG and submits it to the OCR backend.
func (e *Extractor) ocrPage(ctx context.Context, pdfPath, tmpDir string, page int) (string, error) {
	if e.ocr == nil {
		return "", eris.New("extract: OCR backend not configured")
	}

	prefix := filepath.Join(tmpDir, fmt.Sprintf("page-%d", page))
	cmd := exec.CommandContext(ctx, e.pdfToPpmPath,
		"-png", "-r", "150",
		"-f", fmt.Sprint(page), "-l", fmt.Sprint(page),
		"-singlefile",
		pdfPath, prefix,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: pdftoppm failed: %s", stderr.String())
	}

	img, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return "", eris.Wrap(err, "extract: read rendered page")
	}

	return e.ocr.TranscribeImage(ctx, img, "image/png")
}
