package automation

import (
	"fmt"
	"strings"
)

// Structural queries against the webmail UI. They are owned by a third
// party and break whenever its markup changes.
const (
	searchInput      = `input[aria-label="Search mail"]`
	resultsContainer = `div.ae4[gh="tl"]`
	firstResultRow   = `table[role="grid"] tr.zA:first-of-type`
	emailOpened      = `button[aria-label="Print all"]`
	subjectHeading   = `h2.hP`
	olderButton      = `div[role="button"][data-tooltip="Older"]`
	spamLink         = `a[href$="#spam"]`
	moreButton       = `div.TK .n6 span[role="button"]`
	noResultsCell    = `td.TC`
	selectCheckbox   = `span[role="checkbox"]`
	notSpamButton    = `div[role="button"][data-tooltip="Not spam"]`
	confirmAlert     = `div[role='alert']`
)

// Texts the webmail UI shows for an empty result list.
const (
	noMessagesText = "No messages matched your search"
	noSpamText     = "You don't have any spam here"
)

func fromFilter(sender string) string {
	return fmt.Sprintf(`from:"%s"`, sender)
}

// InboxQuery searches the unread inbox emails of sender received after
// the given search date.
func InboxQuery(sender, after string) string {
	return fmt.Sprintf("in:inbox is:unread (%s) after:%s", fromFilter(sender), after)
}

// SpamQuery searches the spam folder for emails of any of the senders.
func SpamQuery(senders []string) string {
	filters := make([]string, len(senders))
	for i, s := range senders {
		filters[i] = fromFilter(s)
	}
	return fmt.Sprintf("in:spam (%s)", strings.Join(filters, " OR "))
}
