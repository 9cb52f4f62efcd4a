// Package browser drives a Chrome instance through the DevTools protocol:
// the webmail tab the automation works on and the short lived tabs used
// to visit links.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/jakopako/mailwalk/internal/config"
	"github.com/jakopako/mailwalk/internal/log"
)

// Browser is a running Chrome instance, either launched by us or reached
// through a remote DevTools url.
type Browser struct {
	cfg           config.BrowserConfig
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelTabs    []context.CancelFunc
	logger        *slog.Logger
}

// New prepares the allocator. Chrome is started or attached to on the
// first call to Start.
func New(cfg config.BrowserConfig) *Browser {
	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if cfg.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		opts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.WindowSize(1920, 1080), // desktop view, the mail UI hides controls on narrow screens
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
		)
		if cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
		}
		if cfg.UserDataDir != "" {
			opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return &Browser{
		cfg:           cfg,
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		logger:        slog.With(slog.String("component", "browser")),
	}
}

// Start launches or attaches to the browser.
func (b *Browser) Start(ctx context.Context) error {
	// The first run allocates the browser and must not use a context
	// that is cancelled afterwards, that would stop the browser.
	if err := chromedp.Run(b.browserCtx); err != nil {
		return fmt.Errorf("error starting browser: %w", err)
	}
	actions := []chromedp.Action{}
	// log chrome version in debug mode
	if log.Debug {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			protocolVersion, product, revision, userAgent, jsVersion, err := cdpbrowser.GetVersion().Do(ctx)
			if err != nil {
				b.logger.Warn("failed to get chrome version", slog.String("err", err.Error()))
				return nil
			}
			b.logger.Debug(fmt.Sprintf("chrome version: protocolVersion=%s, product=%s, revision=%s, userAgent=%s, jsVersion=%s",
				protocolVersion, product, revision, userAgent, jsVersion))
			return nil
		}))
	}
	return b.run(ctx, b.browserCtx, actions...)
}

// Close closes the tabs we opened and, if we launched it, the browser.
func (b *Browser) Close() {
	for _, cancel := range b.cancelTabs {
		cancel()
	}
	b.cancelBrowser()
	b.cancelAlloc()
}

// run executes actions in the chromedp context cdpCtx while honouring the
// cancellation of ctx.
func (b *Browser) run(ctx, cdpCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(cdpCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// OpenMail returns the webmail tab. An open tab of the mail host is reused,
// otherwise the initial tab navigates to the configured mail url.
func (b *Browser) OpenMail(ctx context.Context) (*ChromePage, error) {
	if err := b.Start(ctx); err != nil {
		return nil, err
	}
	mailURL, err := url.Parse(b.cfg.MailURL)
	if err != nil || mailURL.Host == "" {
		return nil, fmt.Errorf("invalid mail url %q", b.cfg.MailURL)
	}

	targets, err := chromedp.Targets(b.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("error listing tabs: %w", err)
	}
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		tu, err := url.Parse(t.URL)
		if err != nil || tu.Host != mailURL.Host {
			continue
		}
		b.logger.Info(fmt.Sprintf("reusing open mail tab %s", t.URL))
		tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithTargetID(t.TargetID))
		b.cancelTabs = append(b.cancelTabs, cancel)
		if err := chromedp.Run(tabCtx); err != nil {
			return nil, fmt.Errorf("error attaching to mail tab: %w", err)
		}
		return b.newPage(tabCtx), nil
	}

	b.logger.Info(fmt.Sprintf("opening %s", b.cfg.MailURL))
	if err := b.run(ctx, b.browserCtx,
		chromedp.Navigate(b.cfg.MailURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("error opening mail: %w", err)
	}
	return b.newPage(b.browserCtx), nil
}

func (b *Browser) newPage(tabCtx context.Context) *ChromePage {
	return &ChromePage{
		b:      b,
		tabCtx: tabCtx,
		logger: b.logger.With(slog.String("tab", "mail")),
	}
}

// VisitTab opens urlStr in a new tab, waits until it has loaded, keeps it
// open for the configured hold time and closes it. A tab that cannot be
// closed is only logged since it may already have been closed by the page.
func (b *Browser) VisitTab(ctx context.Context, urlStr string) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("url", urlStr))
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	if err := chromedp.Run(tabCtx); err != nil {
		return fmt.Errorf("error opening tab: %w", err)
	}

	loadTimeout := b.cfg.TabTimeout
	if loadTimeout <= 0 {
		loadTimeout = time.Minute
	}
	loadCtx, cancelLoad := context.WithTimeout(ctx, loadTimeout)
	defer cancelLoad()
	// Navigate returns once the load event has fired.
	if err := b.run(loadCtx, tabCtx, chromedp.Navigate(urlStr)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("tab did not finish loading within %v", loadTimeout)
		}
		return fmt.Errorf("error loading tab: %w", err)
	}
	logger.Debug("tab has finished loading")

	hold := time.NewTimer(b.cfg.TabHold)
	select {
	case <-ctx.Done():
		hold.Stop()
		return ctx.Err()
	case <-hold.C:
	}

	if err := b.run(context.WithoutCancel(ctx), tabCtx, page.Close()); err != nil {
		logger.Warn(fmt.Sprintf("could not close tab, it might have been closed already: %v", err))
	} else {
		logger.Debug("closed tab")
	}
	return nil
}

// mailHost returns the host of a mail url, used in debug file names.
func mailHost(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "page"
	}
	return strings.ReplaceAll(u.Host, ":", "_")
}
