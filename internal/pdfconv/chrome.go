package pdfconv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// htmlToPDFChrome renders an HTML file to PDF through headless Chrome.
// Chrome produces better fidelity than LibreOffice for styled HTML, but it
// needs a Chrome or Chromium binary on the host, so it sits behind the
// enableChrome config switch.
func (c *Converter) htmlToPDFChrome(ctx context.Context, inputPath string) (string, error) {
	abs, err := filepath.Abs(inputPath)
	if err != nil {
		return "", err
	}
	outputPath := filepath.Join(c.opts.Workspace, stem(inputPath)+".pdf")

	err = c.pool.Run(ctx, func() error {
		runCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(runCtx,
			append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
			)...)
		defer cancelAlloc()

		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
		defer cancelBrowser()

		var pdfData []byte
		err := chromedp.Run(browserCtx,
			chromedp.Navigate("file://"+abs),
			chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				pdfData, _, err = page.PrintToPDF().
					WithPrintBackground(true).
					Do(ctx)
				return err
			}),
		)
		if err != nil {
			return fmt.Errorf("chrome render: %w", err)
		}
		return os.WriteFile(outputPath, pdfData, 0o644)
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("converted html to pdf", "input", inputPath, "output", outputPath)
	return outputPath, nil
}
