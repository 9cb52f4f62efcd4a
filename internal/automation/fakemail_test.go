package automation

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/jakopako/mailwalk/internal/dom"
)

const fakeMailURL = "https://mail.example.com/mail/u/0/#inbox"

type fakeEmail struct {
	subject string
	links   []string
}

// fakeMail renders the states of the webmail UI the automation walks
// through and reacts to clicks and searches like the real one.
type fakeMail struct {
	mu sync.Mutex

	title         string
	spamCollapsed bool
	noSearchInput bool
	noOlder       bool
	stuck         bool
	staleViews    bool
	inbox         map[string][]fakeEmail
	spam          map[string][]fakeEmail

	moreOpened bool
	view       string
	listSpam   bool
	results    []fakeEmail
	selected   bool
	toast      bool
	current    int
	advanceIn  int
	opened     int

	actions  []string
	queries  []string
	onAction func(action string)
}

func newFakeMail() *fakeMail {
	return &fakeMail{
		title: "Inbox (3) - jane.doe@example.com - Mail",
		inbox: map[string][]fakeEmail{},
		spam:  map[string][]fakeEmail{},
		view:  "inbox",
	}
}

var fromPattern = regexp.MustCompile(`from:"([^"]+)"`)

func (m *fakeMail) record(action string) {
	m.actions = append(m.actions, action)
	if m.onAction != nil {
		m.onAction(action)
	}
}

func (m *fakeMail) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.actions...)
}

func (m *fakeMail) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Opened returns how many emails have been opened from a result list.
func (m *fakeMail) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

func (m *fakeMail) Snapshot(ctx context.Context) (*dom.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.advanceIn > 0 {
		m.advanceIn--
		if m.advanceIn == 0 {
			m.current++
		}
	}
	return dom.NewSnapshot(fakeMailURL, m.render())
}

func (m *fakeMail) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>", html.EscapeString(m.title))
	if !m.noSearchInput {
		b.WriteString(`<form><input aria-label="Search mail" name="q"></form>`)
	}
	b.WriteString(`<div class="TK"><div class="n6"><span role="button">More</span></div>`)
	if !m.spamCollapsed || m.moreOpened {
		b.WriteString(`<a href="https://mail.example.com/mail/u/0/#spam">Spam</a>`)
	}
	b.WriteString(`</div>`)
	b.WriteString(`<div class="ae4" gh="tl">`)
	switch m.view {
	case "list":
		if len(m.results) == 0 {
			b.WriteString(`<table class="F"><tbody><tr><td class="TC">No messages matched your search</td></tr></tbody></table>`)
			break
		}
		b.WriteString(`<table role="grid"><tbody>`)
		for _, e := range m.results {
			fmt.Fprintf(&b, `<tr class="zA"><td><span role="checkbox"></span></td><td>%s</td></tr>`, html.EscapeString(e.subject))
		}
		b.WriteString(`</tbody></table>`)
		b.WriteString(`<div class="toolbar"><span role="checkbox" aria-label="Select all"></span>`)
		if m.listSpam {
			b.WriteString(`<div role="button" data-tooltip="Not spam">Not spam</div>`)
		}
		b.WriteString(`</div>`)
	case "spam":
		if len(m.spam) == 0 {
			b.WriteString(`<table class="F"><tbody><tr><td class="TC">You don't have any spam here</td></tr></tbody></table>`)
		}
	case "email":
		e := m.results[m.current]
		b.WriteString(`<button aria-label="Print all">Print</button>`)
		fmt.Fprintf(&b, `<h2 class="hP">%s</h2><div class="a3s">`, html.EscapeString(e.subject))
		for _, l := range e.links {
			fmt.Fprintf(&b, `<a class="cta" href="%s">Open offer</a>`, html.EscapeString(l))
		}
		b.WriteString(`<a href="https://mail.example.com/settings">Settings</a></div>`)
		if !m.noOlder {
			// a stale copy from an earlier view stays in the document
			b.WriteString(`<div role="button" data-tooltip="Older" aria-disabled="false" style="display:none"></div>`)
			disabled := m.current == len(m.results)-1
			fmt.Fprintf(&b, `<div role="button" data-tooltip="Older" aria-disabled="%t">Older</div>`, disabled)
		}
	}
	b.WriteString(`</div>`)
	if m.staleViews {
		b.WriteString(`<script>var emptyText = "No messages matched your search";</script>`)
		b.WriteString(`<div hidden><table class="F"><tbody><tr><td class="TC">No messages matched your search</td></tr></tbody></table></div>`)
		b.WriteString(`<div style="display: none">No messages matched your search</div>`)
	}
	if m.toast {
		b.WriteString(`<div role='alert'>Conversation moved to Inbox.</div>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func (m *fakeMail) Click(ctx context.Context, el dom.Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("click " + el.String())
	switch el.Selector {
	case moreButton:
		m.moreOpened = true
	case spamLink:
		if m.spamCollapsed && !m.moreOpened {
			return fmt.Errorf("spam link is not visible")
		}
		m.view = "spam"
	case firstResultRow:
		if m.view != "list" || len(m.results) == 0 {
			return fmt.Errorf("no result row")
		}
		m.view, m.current = "email", 0
		m.opened++
	case olderButton:
		if m.view != "email" || m.current == len(m.results)-1 {
			return fmt.Errorf("older button is disabled")
		}
		if !m.stuck {
			m.advanceIn = 2
			m.opened++
		}
	case selectCheckbox:
		// the select all box comes after the row boxes
		m.selected = el.Index == -1 || el.Index == len(m.results)
	case notSpamButton:
		if !m.listSpam {
			return fmt.Errorf("no not spam button")
		}
		if m.selected {
			for s, emails := range m.spam {
				m.inbox[s] = append(m.inbox[s], emails...)
			}
			m.spam = map[string][]fakeEmail{}
			m.results = nil
		}
		m.toast = true
	default:
		return fmt.Errorf("unexpected click on %s", el)
	}
	return nil
}

func (m *fakeMail) Submit(ctx context.Context, selector, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if selector != searchInput || m.noSearchInput {
		return fmt.Errorf("no input %s", selector)
	}
	m.record("search " + value)
	m.queries = append(m.queries, value)
	m.results, m.selected, m.toast = nil, false, false
	m.listSpam = strings.HasPrefix(value, "in:spam")
	for _, match := range fromPattern.FindAllStringSubmatch(value, -1) {
		if m.listSpam {
			m.results = append(m.results, m.spam[match[1]]...)
		} else {
			m.results = append(m.results, m.inbox[match[1]]...)
		}
	}
	m.view = "list"
	return nil
}
