package automation

import (
	"context"
	"errors"

	"github.com/jakopako/mailwalk/internal/dom"
	"github.com/jakopako/mailwalk/internal/utils"
)

// Subjects and links are cut to these lengths in log entries.
const (
	logSubjectLength = 80
	logLinkLength    = 120
)

// paginate opens the first email of the result list and walks to older
// emails until the older button is missing or disabled.
func (r *Runner) paginate(ctx context.Context, rn *run) error {
	rows, err := r.waiter.WaitForAll(ctx, firstResultRow)
	if err != nil {
		return err
	}
	if err := r.page.Click(ctx, rows[len(rows)-1]); err != nil {
		return err
	}
	if _, err := r.waiter.WaitFor(ctx, emailOpened); err != nil {
		return err
	}
	if err := r.pacer.Wait(ctx, r.opts.Pace); err != nil {
		return err
	}

	for {
		if err := r.gate.Check(ctx); err != nil {
			return err
		}
		snap, err := r.page.Snapshot(ctx)
		if err != nil {
			return err
		}
		subject, hasSubject := snap.Text(subjectHeading)

		rn.Total++
		rn.sender.NrProcessed++
		r.info(ctx, "Processing email #%d: %s", rn.Total, utils.ShortenString(subject, logSubjectLength))
		found, err := r.visitCTAs(ctx, rn, snap)
		if err != nil {
			return err
		}
		if found {
			rn.sender.NrCTAs++
		}

		older, ok, err := r.olderButton(ctx)
		if err != nil {
			return err
		}
		if !ok {
			r.info(ctx, "Reached the last email in this batch.")
			return nil
		}
		if err := r.page.Click(ctx, older); err != nil {
			return err
		}

		_, err = r.waiter.WaitUntil(ctx, r.opts.PaginationTimeout, func(s *dom.Snapshot) bool {
			next, hasNext := s.Text(subjectHeading)
			return next != subject || hasNext != hasSubject
		})
		if errors.Is(err, dom.ErrConditionTimeout) {
			return ErrPaginationTimeout
		}
		if err != nil {
			return err
		}
		if err := r.pacer.Wait(ctx, r.opts.Pace); err != nil {
			return err
		}
	}
}

// olderButton returns the last older button. ok is false if there is
// none or it is disabled.
func (r *Runner) olderButton(ctx context.Context) (dom.Element, bool, error) {
	last := dom.Element{Selector: olderButton, Index: -1}
	snap, err := r.waiter.WaitUntil(ctx, r.waiter.Timeout, func(s *dom.Snapshot) bool {
		return s.Exists(last)
	})
	if errors.Is(err, dom.ErrConditionTimeout) {
		return dom.Element{}, false, nil
	}
	if err != nil {
		return dom.Element{}, false, err
	}
	if disabled, _ := snap.Attr(last, "aria-disabled"); disabled == "true" {
		return dom.Element{}, false, nil
	}
	return last, true, nil
}
