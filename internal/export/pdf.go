// Package export renders a report version's HTML to PDF through a headless
// browser, so the exported file matches what the viewer shows.
package export

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/redline/internal/logging"
)

type Config struct {
	// Timeout bounds one render, browser startup included.
	Timeout time.Duration `yaml:"timeout"`

	// Landscape flips the page orientation.
	Landscape bool `yaml:"landscape"`

	// Headless is on unless explicitly disabled for debugging.
	Headless *bool `yaml:"headless"`
}

func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second}
}

type PDFExporter struct {
	cfg    Config
	logger logging.Logger
}

func NewPDFExporter(cfg Config, logger logging.Logger) *PDFExporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &PDFExporter{
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "export"}),
	}
}

// ExportHTML renders documentHTML and returns the PDF bytes. The document is
// loaded through a data: URL, so no server round-trip happens during the
// render.
func (e *PDFExporter) ExportHTML(ctx context.Context, documentHTML string) ([]byte, error) {
	var opts []chromedp.ExecAllocatorOption
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	if e.cfg.Headless != nil && !*e.cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, e.cfg.Timeout)
	defer cancelRun()

	dataURL := "data:text/html;charset=utf-8," + url.PathEscape(documentHTML)

	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate(dataURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, printErr := page.PrintToPDF().
				WithPrintBackground(true).
				WithLandscape(e.cfg.Landscape).
				Do(ctx)
			if printErr != nil {
				return printErr
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}

	e.logger.Info("exported pdf",
		logging.Field{Key: "html_bytes", Value: len(documentHTML)},
		logging.Field{Key: "pdf_bytes", Value: len(pdf)})
	return pdf, nil
}
