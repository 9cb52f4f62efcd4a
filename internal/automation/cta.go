package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jakopako/mailwalk/internal/dom"
	"github.com/jakopako/mailwalk/internal/log"
	"github.com/jakopako/mailwalk/internal/messaging"
	"github.com/jakopako/mailwalk/internal/utils"
)

// visitCTAs visits every call to action link of the open email, one after
// the other, and then reports the email. Failed visits are logged and
// skipped, a failed report ends the run. found reports whether the email
// had at least one link.
func (r *Runner) visitCTAs(ctx context.Context, rn *run, snap *dom.Snapshot) (found bool, err error) {
	for _, expr := range rn.ctaPaths {
		link, ok, err := snap.XPathLink(expr)
		if err != nil {
			return found, err
		}
		if !ok {
			continue
		}
		found = true
		r.success(ctx, "CTA link found for sender %q: %s", rn.sender.Sender, utils.ShortenString(link, logLinkLength))
		if err := r.visit(ctx, link); err != nil {
			return found, err
		}
	}

	if err := r.reportEmail(ctx, rn); err != nil {
		return found, err
	}
	if !found {
		r.info(ctx, "No CTA button was found.")
	}
	return found, nil
}

// visit asks the background service to open link in a new tab and waits
// until the tab has been closed again. Only a cancelled context is
// returned as an error.
func (r *Runner) visit(ctx context.Context, link string) error {
	msg, err := messaging.NewMessage(messaging.OpenAndWait, messaging.OpenPayload{URL: link})
	if err != nil {
		return err
	}
	rctx, cancel := context.WithTimeout(ctx, r.opts.TabResponseTimeout)
	defer cancel()
	resp, err := r.bus.Request(rctx, msg)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.tabFailed(ctx, &TabServiceError{URL: link, Reason: err.Error()})
		return nil
	}
	if !resp.OK() {
		r.tabFailed(ctx, &TabServiceError{URL: link, Reason: resp.Message})
		return nil
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("visited %s", link))
	return nil
}

func (r *Runner) tabFailed(ctx context.Context, err *TabServiceError) {
	r.warn(ctx, "The link tab failed to close automatically: %v", err)
}

// reportEmail sends the stat for the processed email of the current
// sender.
func (r *Runner) reportEmail(ctx context.Context, rn *run) error {
	msg, err := messaging.NewMessage(messaging.Logger, messaging.LoggerPayload{
		AccessToken: rn.token,
		Sender:      rn.sender.Sender,
		Email:       rn.Account,
	})
	if err != nil {
		return err
	}
	resp, err := r.bus.Request(ctx, msg)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrLoggerAPI, err)
	}
	if !resp.OK() {
		if resp.Message != "" {
			return fmt.Errorf("%w: %s", ErrLoggerAPI, resp.Message)
		}
		return ErrLoggerAPI
	}
	return nil
}
