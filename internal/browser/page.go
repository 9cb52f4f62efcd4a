package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/jakopako/mailwalk/internal/dom"
	"github.com/jakopako/mailwalk/internal/utils"
)

// ChromePage is the webmail tab. It implements dom.Page.
type ChromePage struct {
	b      *Browser
	tabCtx context.Context
	logger *slog.Logger
}

var _ dom.Page = (*ChromePage)(nil)

// Snapshot reads the outer html of the whole document.
func (p *ChromePage) Snapshot(ctx context.Context) (*dom.Snapshot, error) {
	var body, location string
	err := p.b.run(ctx, p.tabCtx,
		chromedp.Location(&location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := cdpdom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			body, err = cdpdom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("error reading document: %w", err)
	}
	return dom.NewSnapshot(location, body)
}

// nodes returns the nodes currently matching selector without waiting.
func nodes(ctx context.Context, selector string) ([]*cdp.Node, error) {
	var ns []*cdp.Node
	if err := chromedp.Nodes(selector, &ns, chromedp.ByQueryAll, chromedp.AtLeast(0)).Do(ctx); err != nil {
		return nil, err
	}
	return ns, nil
}

func pick(ns []*cdp.Node, el dom.Element) (*cdp.Node, error) {
	i := el.Index
	if i < 0 {
		i += len(ns)
	}
	if i < 0 || i >= len(ns) {
		return nil, fmt.Errorf("no element %s (%d matches)", el, len(ns))
	}
	return ns[i], nil
}

// Click performs a mouse click on the addressed element.
func (p *ChromePage) Click(ctx context.Context, el dom.Element) error {
	return p.b.run(ctx, p.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		ns, err := nodes(ctx, el.Selector)
		if err != nil {
			return err
		}
		n, err := pick(ns, el)
		if err != nil {
			return err
		}
		p.logger.Debug(fmt.Sprintf("clicking on node %s", el))
		return chromedp.MouseClickNode(n).Do(ctx)
	}))
}

// Submit sets the value of the first input matching selector and presses
// Enter in it, the same way a person would start a search.
func (p *ChromePage) Submit(ctx context.Context, selector, value string) error {
	return p.b.run(ctx, p.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		ns, err := nodes(ctx, selector)
		if err != nil {
			return err
		}
		n, err := pick(ns, dom.Element{Selector: selector})
		if err != nil {
			return err
		}
		ids := []cdp.NodeID{n.NodeID}
		if err := chromedp.SetValue(ids, value, chromedp.ByNodeID).Do(ctx); err != nil {
			return err
		}
		p.logger.Debug(fmt.Sprintf("submitting %q in %s", value, selector))
		return chromedp.KeyEventNode(n, kb.Enter).Do(ctx)
	}))
}

// SaveScreenshot writes a png of the tab to the debug directory and
// returns its path.
func (p *ChromePage) SaveScreenshot(ctx context.Context, name string) (string, error) {
	dir := p.b.cfg.DebugDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create debug directory: %w", err)
		}
	}
	r, err := utils.RandomString(fmt.Sprintf("%s-%s", mailHost(p.b.cfg.MailURL), name))
	if err != nil {
		return "", err
	}
	var buf []byte
	if err := p.b.run(ctx, p.tabCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", err
	}
	filename := filepath.Join(dir, r+".png")
	p.logger.Debug(fmt.Sprintf("writing screenshot to file %s", filename))
	return filename, os.WriteFile(filename, buf, 0o644)
}
