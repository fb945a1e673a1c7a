package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/user/valuation-service/internal/repository"
	"github.com/user/valuation-service/pkg/utils"
)

// Options configures the shared browser.
type Options struct {
	Headless        bool
	ExecPath        string
	PageLoadTimeout time.Duration
	UserAgents      *utils.UserAgents
	Logger          *slog.Logger
}

// Browser owns one Chrome process. Listing pages and detail pages open as tabs in it.
type Browser struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	timeout       time.Duration
	agents        *utils.UserAgents
	logger        *slog.Logger
}

// NewBrowser starts Chrome and returns a Browser ready to open tabs.
func NewBrowser(opts Options) (*Browser, error) {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	if opts.UserAgents == nil {
		opts.UserAgents = utils.NewUserAgents()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgents.Next()),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run with no actions launches the browser so a missing binary fails here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Browser{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		timeout:       opts.PageLoadTimeout,
		agents:        opts.UserAgents,
		logger:        opts.Logger,
	}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// newTab opens a tab bound to ctx with the page load timeout applied.
// The returned cancel closes the tab.
func (b *Browser) newTab(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancelTab)
	return tabCtx, func() {
		stop()
		cancelTimeout()
		cancelTab()
	}
}

// prepareTab rotates the user agent and sets British English headers for the tab.
func (b *Browser) prepareTab() chromedp.Action {
	return chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(b.agents.Next()).WithAcceptLanguage("en-GB,en;q=0.9"),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-GB,en;q=0.9"}),
	}
}

// classify maps a chromedp failure onto the repository sentinels.
func classify(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", url, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", repository.ErrPageTimeout, url, err)
	}
	return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, url, err)
}
