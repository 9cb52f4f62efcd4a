package automation

import (
	"context"
	"fmt"

	"github.com/jakopako/mailwalk/internal/date"
	"github.com/jakopako/mailwalk/internal/dom"
	"github.com/jakopako/mailwalk/internal/log"
)

// search runs query through the search field. The query is assigned to
// the field and submitted with the Enter key, the page listens for that
// key rather than for a form submission.
func (r *Runner) search(ctx context.Context, query string) error {
	if _, err := r.waiter.WaitFor(ctx, searchInput); err != nil {
		return err
	}
	if err := r.page.Submit(ctx, searchInput, query); err != nil {
		return fmt.Errorf("error submitting search: %w", err)
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("search executed for: %s", query))
	return nil
}

// openSpamFolder activates the spam folder link, revealing it through the
// more button first if the folder list is collapsed.
func (r *Runner) openSpamFolder(ctx context.Context) error {
	snap, err := r.page.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Count(spamLink) == 0 {
		more, err := r.waiter.WaitFor(ctx, moreButton)
		if err != nil {
			return err
		}
		if err := r.page.Click(ctx, more); err != nil {
			return err
		}
		if _, err := r.waiter.WaitFor(ctx, spamLink); err != nil {
			return err
		}
	}
	return r.page.Click(ctx, dom.Element{Selector: spamLink})
}

// cleanSpam moves the emails of all senders found in the spam folder back
// to the inbox so that the inbox searches find them.
func (r *Runner) cleanSpam(ctx context.Context, senders []string) error {
	r.info(ctx, "--- Starting Step 1: Cleaning Spam Folder ---")
	if err := r.gate.Check(ctx); err != nil {
		return err
	}
	if err := r.openSpamFolder(ctx); err != nil {
		return err
	}
	if err := r.pacer.Wait(ctx, r.opts.SpamPace); err != nil {
		return err
	}
	if err := r.search(ctx, SpamQuery(senders)); err != nil {
		return err
	}
	if err := r.pacer.Wait(ctx, r.opts.SpamPace); err != nil {
		return err
	}

	snap, err := r.page.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.ContainsText(noResultsCell, noMessagesText, noSpamText) {
		r.info(ctx, "No relevant emails found in spam. Skipping cleaning.")
		return nil
	}

	boxes, err := r.waiter.WaitForAll(ctx, selectCheckbox)
	if err != nil {
		return err
	}
	if err := r.page.Click(ctx, boxes[len(boxes)-1]); err != nil {
		return err
	}
	if err := r.pacer.Wait(ctx, r.opts.Pace); err != nil {
		return err
	}
	notSpam, err := r.waiter.WaitFor(ctx, notSpamButton)
	if err != nil {
		return err
	}
	if err := r.page.Click(ctx, notSpam); err != nil {
		return err
	}
	if _, err := r.waiter.WaitFor(ctx, confirmAlert); err != nil {
		return err
	}
	r.success(ctx, "Successfully moved relevant spam to inbox.")
	return r.pacer.Wait(ctx, r.opts.ConfirmPace)
}

// processSender searches the unread emails of sender and walks through
// them.
func (r *Runner) processSender(ctx context.Context, rn *run, sender string, days int) error {
	now := r.opts.Now()
	query := InboxQuery(sender, date.SearchAfter(now, days))
	r.info(ctx, "--- Searching emails of %s received since %s ---", sender, date.Display(date.After(now, days), r.opts.Locale))

	if err := r.search(ctx, query); err != nil {
		return err
	}
	if err := r.pacer.Wait(ctx, r.opts.SearchPace); err != nil {
		return err
	}
	if _, err := r.waiter.WaitFor(ctx, resultsContainer); err != nil {
		return err
	}
	if err := r.pacer.Wait(ctx, r.opts.SearchPace); err != nil {
		return err
	}

	snap, err := r.page.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.ContainsText("", noMessagesText) {
		rn.sender.NoMatches = true
		r.info(ctx, "Search returned no messages for sender %s", sender)
		return nil
	}

	if err := r.paginate(ctx, rn); err != nil {
		return err
	}
	r.success(ctx, "--- Finished processing for sender %s: %d emails ---", sender, rn.sender.NrProcessed)
	return r.pacer.Wait(ctx, r.opts.SearchPace)
}
