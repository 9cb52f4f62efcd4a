package automation

import (
	"errors"
	"fmt"

	"github.com/jakopako/mailwalk/internal/dom"
	"github.com/jakopako/mailwalk/internal/runstate"
)

var (
	// ErrCancelled is returned when a stop request has been observed.
	ErrCancelled = runstate.ErrCancelled
	// ErrElementTimeout matches every *ElementTimeoutError.
	ErrElementTimeout = dom.ErrElementTimeout
	// ErrPaginationTimeout is returned when the next email did not show
	// up after clicking the older button.
	ErrPaginationTimeout = errors.New("timed out waiting for the next email to load after clicking 'Older'")
	// ErrConfigMissing is returned when the account settings lack the call
	// to action paths.
	ErrConfigMissing = errors.New("could not load required CTA settings from storage")
	// ErrLoggerAPI is returned when a processed email could not be
	// reported.
	ErrLoggerAPI = errors.New("logger API error")
)

// ElementTimeoutError is returned when an expected element did not appear.
type ElementTimeoutError = dom.TimeoutError

// TabServiceError describes a failed link visit. It is only ever logged.
type TabServiceError struct {
	URL    string
	Reason string
}

func (e *TabServiceError) Error() string {
	return fmt.Sprintf("visiting %s failed: %s", e.URL, e.Reason)
}
