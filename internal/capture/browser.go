package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Options configures the browser launched for a session.
type Options struct {
	// Width and Height size the window and the initial viewport.
	Width  int
	Height int

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome via launcher.
	RemoteURL string

	// ChromeBin overrides the Chrome binary launcher would pick.
	ChromeBin string

	// Stealth opens the tab with go-rod/stealth evasions applied.
	Stealth bool

	// NoSandbox disables the Chrome sandbox, needed when running as root in containers.
	NoSandbox bool

	Logger *slog.Logger
}

// Browser is a Chrome process (or remote connection) with one tab that is
// reused for every capture of the session.
type Browser struct {
	opts    Options
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Chrome, connects to it and opens the capture tab. Any error
// wraps ErrBrowserLaunch, and nothing is left running on failure.
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger
	b := &Browser{opts: opts}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
	}

	wsURL := opts.RemoteURL
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		// The launcher is not bound to ctx: an interrupt must not kill Chrome
		// under a capture that is still finishing.
		l := launcher.New().
			Headless(true).
			Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height)).
			Set("hide-scrollbars").
			Set("disable-gpu")
		if opts.ChromeBin != "" {
			l = l.Bin(opts.ChromeBin)
		}
		if opts.NoSandbox {
			l = l.NoSandbox(true)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: launch: %v", ErrBrowserLaunch, err)
		}
		wsURL = u
		b.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL)
	}

	rb := rod.New().ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: connect: %v", ErrBrowserLaunch, err)
	}
	b.browser = rb

	var page *rod.Page
	var err error
	if opts.Stealth {
		page, err = stealth.Page(rb)
	} else {
		page, err = rb.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("%w: create tab: %v", ErrBrowserLaunch, err)
	}
	b.page = page

	return b, nil
}

// WithBrowser launches a browser, runs fn with it and always releases it,
// whichever way fn returns.
func WithBrowser(ctx context.Context, opts Options, fn func(*Browser) error) (err error) {
	b, err := Launch(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(b)
}

// Page returns the capture tab.
func (b *Browser) Page() Page {
	return &rodPage{page: b.page, logger: b.opts.Logger}
}

// Close shuts down the tab and Chrome. A remote Chrome is left running; only
// our tab is closed. Safe to call more than once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if b.page != nil {
			if err := b.page.Close(); err != nil && b.opts.RemoteURL != "" {
				errs = append(errs, fmt.Errorf("close tab: %w", err))
			}
		}
		if b.browser != nil && b.opts.RemoteURL == "" {
			if err := b.browser.Close(); err != nil {
				b.opts.Logger.Debug("browser: close", "error", err)
			}
		}
		if b.lnch != nil {
			b.lnch.Cleanup()
		}
		b.closeErr = errors.Join(errs...)
		b.opts.Logger.Info("browser: released")
	})
	return b.closeErr
}

// rodPage adapts a rod tab to Page.
type rodPage struct {
	page   *rod.Page
	logger *slog.Logger
}

func (p *rodPage) SetViewport(ctx context.Context, width, height int) error {
	return p.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	if err := pg.WaitLoad(); err != nil {
		p.logger.Warn("browser: wait load", "url", url, "error", err)
	}
	return nil
}

func (p *rodPage) ScrollToTop(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, 0)`)
	return err
}

const contentHeightJS = `() => {
	const body = document.body, html = document.documentElement;
	return Math.max(
		body ? body.scrollHeight : 0, body ? body.offsetHeight : 0,
		html.clientHeight, html.scrollHeight, html.offsetHeight
	);
}`

func (p *rodPage) ContentHeight(ctx context.Context) (int, error) {
	res, err := p.page.Context(ctx).Eval(contentHeightJS)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}
