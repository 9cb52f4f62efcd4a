package automation

import (
	"time"

	"github.com/jakopako/mailwalk/internal/config"
	"github.com/jakopako/mailwalk/internal/pace"
)

// Options holds the timing parameters of a run.
type Options struct {
	// Provider selects the call to action paths of the settings.
	Provider           string
	PollInterval       time.Duration
	ElementTimeout     time.Duration
	PaginationTimeout  time.Duration
	TabResponseTimeout time.Duration
	// Pace separates ordinary UI actions, SearchPace follows searches,
	// SpamPace follows actions in the spam folder and ConfirmPace follows
	// the confirmation of the spam move.
	Pace        pace.Range
	SearchPace  pace.Range
	SpamPace    pace.Range
	ConfirmPace pace.Range
	// Locale is used for dates in log lines.
	Locale string
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func paceRange(p config.PaceConfig) pace.Range {
	return pace.Range{Min: p.Min, Max: p.Max}
}

// NewOptions derives the options from the configuration.
func NewOptions(c *config.Config) Options {
	a := c.Automation
	return Options{
		Provider:           c.API.Provider,
		PollInterval:       a.PollInterval,
		ElementTimeout:     a.ElementTimeout,
		PaginationTimeout:  a.PaginationTimeout,
		TabResponseTimeout: a.TabResponseTimeout,
		Pace:               paceRange(a.Pace),
		SearchPace:         paceRange(a.SearchPace),
		SpamPace:           paceRange(a.SpamPace),
		ConfirmPace:        paceRange(a.ConfirmPace),
		Locale:             a.Locale,
		Now:                time.Now,
	}
}
