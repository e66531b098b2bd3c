package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-pdf/fpdf"

	"sales-dashboard/internal/models"
)

// Renderer turns report content into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, r *Report) ([]byte, error)
}

// NewRenderer returns the renderer named by kind ("fpdf" or "chrome").
func NewRenderer(kind string, chromeTimeout time.Duration) (Renderer, error) {
	switch kind {
	case "", "fpdf":
		return FPDFRenderer{}, nil
	case "chrome":
		return &ChromeRenderer{Timeout: chromeTimeout}, nil
	default:
		return nil, fmt.Errorf("unknown pdf renderer %q", kind)
	}
}

// FPDFRenderer lays the report out directly with fpdf. It needs no external
// processes.
type FPDFRenderer struct{}

func (FPDFRenderer) Render(_ context.Context, r *Report) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	// Core fonts are cp1252; uploaded product names are UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	line := func(h float64, text, align string) {
		pdf.CellFormat(0, h, tr(text), "", 1, align, false, 0, "")
	}

	pdf.SetTitle(r.Title, true)
	pdf.SetCreator("sales-dashboard", true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	line(12, r.Title, "C")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	line(6, subtitle(r), "C")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	line(9, "Key Performance Indicators", "L")
	pdf.SetFont("Helvetica", "", 12)
	for _, l := range r.KPILines {
		line(7, l, "L")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	line(9, "Top 5 Products", "L")
	pdf.SetFont("Helvetica", "", 12)
	if len(r.TopProducts) == 0 {
		line(7, "No data for the selected period.", "L")
	}
	for _, p := range r.TopProducts {
		line(7, productLine(p), "L")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func productLine(p RankedProduct) string {
	return fmt.Sprintf("%d. %s: %s", p.Rank, p.Name, FormatCurrency(p.Revenue))
}

func subtitle(r *Report) string {
	s := "Generated " + r.GeneratedAt.Format("2006-01-02 15:04")
	if !r.Range.Start.IsZero() {
		s += fmt.Sprintf(" | Data from %s to %s",
			r.Range.Start.Format(models.DateLayout), r.Range.End.Format(models.DateLayout))
	}
	return s
}

// ChromeRenderer prints the HTML report through headless Chrome. It needs
// a Chrome or Chromium binary on the host.
type ChromeRenderer struct {
	Timeout time.Duration
	// ExecPath overrides the browser binary lookup.
	ExecPath string
}

func (c *ChromeRenderer) Render(ctx context.Context, r *Report) ([]byte, error) {
	var html strings.Builder
	if err := HTML(r).Render(ctx, &html); err != nil {
		return nil, fmt.Errorf("render report html: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var out []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html.String()).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				Do(ctx)
			if err != nil {
				return err
			}
			out = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print to pdf: %w", err)
	}
	return out, nil
}
