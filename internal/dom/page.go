package dom

import "context"

// Page is the live host document.
type Page interface {
	// Snapshot returns a fresh copy of the current document.
	Snapshot(ctx context.Context) (*Snapshot, error)
	// Click performs a pointer click on the addressed element.
	Click(ctx context.Context, el Element) error
	// Submit assigns value to the first input matching selector and
	// presses Enter in it.
	Submit(ctx context.Context, selector, value string) error
}
