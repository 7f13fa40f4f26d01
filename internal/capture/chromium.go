package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 paper and the preview viewport, matching the @page rule of the
// rendered document.
const (
	PaperWidthInches  = 8.27
	PaperHeightInches = 11.69

	DefaultWidth   = 794
	DefaultHeight  = 1123
	DefaultTimeout = 60 * time.Second
)

// ErrEmptyDocument is returned when there is nothing to print.
var ErrEmptyDocument = errors.New("capture: empty document")

// Options configures the headless Chromium instance.
type Options struct {
	// ExecPath selects the browser binary; empty lets chromedp search.
	ExecPath string

	// NoSandbox is needed when running as root inside containers.
	NoSandbox bool

	// Width and Height are the preview viewport in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds one whole print or capture. If zero, DefaultTimeout
	// is used.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Printer turns an HTML document into a PDF.
type Printer interface {
	PrintPDF(ctx context.Context, html []byte) ([]byte, error)
}

// Chromium prints through a fresh headless browser per call.
type Chromium struct {
	Options Options
}

// NewChromium returns a Chromium printer with defaults applied.
func NewChromium(opts Options) *Chromium {
	return &Chromium{Options: opts.withDefaults()}
}

// PrintPDF loads html into a blank page and prints it to A4 with
// background graphics, honoring the document's own @page size.
func (c *Chromium) PrintPDF(parentCtx context.Context, html []byte) ([]byte, error) {
	if len(html) == 0 {
		return nil, ErrEmptyDocument
	}

	var pdf []byte
	err := c.run(parentCtx, html, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(PaperWidthInches).
			WithPaperHeight(PaperHeightInches).
			WithPreferCSSPageSize(true).
			Do(ctx)
		if err != nil {
			return err
		}
		pdf = buf
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// CapturePNG renders html and takes a screenshot of the first viewport,
// which shows the first day's timeline page.
func (c *Chromium) CapturePNG(parentCtx context.Context, html []byte) ([]byte, error) {
	if len(html) == 0 {
		return nil, ErrEmptyDocument
	}

	var png []byte
	err := c.run(parentCtx, html,
		// Small extra delay to allow final paints.
		chromedp.Sleep(200*time.Millisecond),
		chromedp.CaptureScreenshot(&png),
	)
	if err != nil {
		return nil, err
	}
	return png, nil
}

// run starts a browser, loads html into about:blank and runs the final
// actions, all bounded by the configured timeout.
func (c *Chromium) run(parentCtx context.Context, html []byte, final ...chromedp.Action) error {
	opts := c.Options.withDefaults()

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	// Apply timeout to the entire sequence, browser start-up included.
	timeoutCtx, timeoutCancel := context.WithTimeout(parentCtx, opts.Timeout)
	defer timeoutCancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	tasks = append(tasks, final...)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return nil
}
