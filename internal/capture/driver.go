// Package capture drives a headless Chrome to produce one PNG per call.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eurogig/webtimelapse/internal/config"
)

const (
	// MaxFullPageHeight caps full-page captures to keep pathological pages
	// from exhausting memory.
	MaxFullPageHeight = 20000

	// PageLoadTimeout bounds a single navigation.
	PageLoadTimeout = 120 * time.Second

	// resizeSettle gives layout a moment after a full-page resize.
	resizeSettle = 500 * time.Millisecond
)

var (
	ErrNavigationFailed = errors.New("navigation failed")
	ErrCaptureFailed    = errors.New("capture failed")
	ErrBrowserLaunch    = errors.New("browser launch failed")
)

// CaptureError describes a failed capture. Kind is ErrNavigationFailed or
// ErrCaptureFailed; both are matched by errors.Is.
type CaptureError struct {
	Kind error
	URL  string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *CaptureError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Page is the slice of browser-tab behaviour the driver needs.
type Page interface {
	SetViewport(ctx context.Context, width, height int) error
	Navigate(ctx context.Context, url string) error
	ScrollToTop(ctx context.Context) error
	ContentHeight(ctx context.Context) (int, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Capturer produces one image per call.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Driver captures the configured URL through a Page it does not own.
type Driver struct {
	page     Page
	url      string
	width    int
	height   int
	fullPage bool
	loadWait time.Duration
	logger   *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDriver builds a Driver for session s on page.
func NewDriver(page Page, s config.Session, logger *slog.Logger) *Driver {
	return &Driver{
		page:     page,
		url:      s.URL,
		width:    s.Width,
		height:   s.Height,
		fullPage: s.FullPage,
		loadWait: s.LoadWait,
		logger:   logger,
		sleep:    Sleep,
	}
}

// Capture loads the page and returns a PNG of it. Each call starts from the
// configured viewport, so a previous full-page resize never carries over.
func (d *Driver) Capture(ctx context.Context) ([]byte, error) {
	if err := d.page.SetViewport(ctx, d.width, d.height); err != nil {
		return nil, &CaptureError{Kind: ErrCaptureFailed, URL: d.url, Err: fmt.Errorf("reset viewport: %w", err)}
	}

	navCtx, cancel := context.WithTimeout(ctx, PageLoadTimeout)
	err := d.page.Navigate(navCtx, d.url)
	cancel()
	if err != nil {
		return nil, &CaptureError{Kind: ErrNavigationFailed, URL: d.url, Err: err}
	}

	if err := d.sleep(ctx, d.loadWait); err != nil {
		return nil, &CaptureError{Kind: ErrCaptureFailed, URL: d.url, Err: err}
	}

	if err := d.page.ScrollToTop(ctx); err != nil {
		d.logger.Debug("scroll to top failed", "error", err)
	}

	if d.fullPage {
		img, err := d.captureFullPage(ctx)
		if err == nil {
			return img, nil
		}
		d.logger.Warn("full-page capture failed, falling back to viewport", "url", d.url, "error", err)
		if err := d.page.SetViewport(ctx, d.width, d.height); err != nil {
			return nil, &CaptureError{Kind: ErrCaptureFailed, URL: d.url, Err: fmt.Errorf("reset viewport: %w", err)}
		}
	}

	img, err := d.page.Screenshot(ctx)
	if err != nil {
		return nil, &CaptureError{Kind: ErrCaptureFailed, URL: d.url, Err: err}
	}
	return img, nil
}

func (d *Driver) captureFullPage(ctx context.Context) ([]byte, error) {
	total, err := d.page.ContentHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("query page height: %w", err)
	}

	h := ClampHeight(total, d.height)
	if h != total {
		d.logger.Debug("page height clamped", "reported", total, "used", h)
	}

	if err := d.page.SetViewport(ctx, d.width, h); err != nil {
		return nil, fmt.Errorf("resize viewport to %dx%d: %w", d.width, h, err)
	}
	if err := d.sleep(ctx, resizeSettle); err != nil {
		return nil, err
	}
	return d.page.Screenshot(ctx)
}

// ClampHeight bounds a reported page height to [minHeight, MaxFullPageHeight].
// A page shorter than the viewport is captured at the viewport height.
func ClampHeight(reported, minHeight int) int {
	h := reported
	if h < minHeight {
		h = minHeight
	}
	if h > MaxFullPageHeight {
		h = MaxFullPageHeight
	}
	return h
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
