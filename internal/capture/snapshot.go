// Package capture renders the local week page to a PNG with headless Chromium.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	appLog "jarviscal/internal/log"
)

// Default viewport of the week page snapshot.
const (
	DefaultWidth   = 1600
	DefaultHeight  = 1000
	DefaultTimeout = 30 * time.Second
)

// readySelector is set by the week page once the grid is rendered.
const readySelector = `[data-ready="true"]`

// Options defines parameters for a snapshot.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/week?date=2025-11-10".
	URL string

	// OutputPath is where the PNG is written. Empty means the bytes are
	// only returned.
	OutputPath string

	// Width and Height are the viewport in pixels; zero selects the defaults.
	Width  int
	Height int

	// Timeout bounds the whole capture; zero selects DefaultTimeout.
	Timeout time.Duration
}

func (o *Options) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return nil
}

// Snapshot launches headless Chromium, loads opts.URL, waits for the page
// to report data-ready="true" and returns a full-page PNG.
func Snapshot(parentCtx context.Context, opts Options) ([]byte, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.WindowSize(opts.Width, opts.Height),
		)...,
	)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	started := time.Now()
	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if opts.OutputPath != "" {
		if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
			return nil, fmt.Errorf("capture: failed to write PNG: %w", err)
		}
	}

	appLog.Info("snapshot captured",
		"url", opts.URL,
		"output", opts.OutputPath,
		"bytes", len(png),
		"elapsed", time.Since(started).String(),
	)
	return png, nil
}
