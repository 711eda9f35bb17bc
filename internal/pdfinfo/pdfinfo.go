// Package pdfinfo inspects uploaded PDF files. The service only needs
// the page count; rendering happens client-side and is a black box here.
package pdfinfo

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// PageCounter reports the total page count of a PDF file.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// PDFCPUCounter implements PageCounter using pdfcpu.
type PDFCPUCounter struct {
	logger *zap.Logger
}

// NewPDFCPUCounter creates a pdfcpu-backed page counter.
func NewPDFCPUCounter(logger *zap.Logger) PageCounter {
	return &PDFCPUCounter{logger: logger}
}

// PageCount opens and validates the PDF at path and returns its page
// count. Malformed files fail validation here rather than later in a
// viewer.
func (c *PDFCPUCounter) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}

	if ctx.PageCount < 1 {
		return 0, fmt.Errorf("pdf has no pages")
	}

	c.logger.Debug("Inspected PDF", zap.String("path", path), zap.Int("pages", ctx.PageCount))
	return ctx.PageCount, nil
}
