package dom

import (
	"context"
	"errors"
	"sync"
)

// MockPage serves a fixed sequence of documents. The n-th snapshot returns
// Documents[n], the last document is repeated once the sequence is
// exhausted. Clicks and submits are recorded.
type MockPage struct {
	URL       string
	Documents []string

	mu        sync.Mutex
	snapshots int
	clicks    []Element
	submits   []string
}

func NewMockPage(url string, documents ...string) *MockPage {
	return &MockPage{URL: url, Documents: documents}
}

func (m *MockPage) Snapshot(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	if len(m.Documents) == 0 {
		m.mu.Unlock()
		return nil, errors.New("page not found")
	}
	i := min(m.snapshots, len(m.Documents)-1)
	m.snapshots++
	doc := m.Documents[i]
	m.mu.Unlock()
	return NewSnapshot(m.URL, doc)
}

func (m *MockPage) Click(ctx context.Context, el Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, el)
	return nil
}

func (m *MockPage) Submit(ctx context.Context, selector, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits = append(m.submits, value)
	return nil
}

// Snapshots returns how many snapshots have been taken so far.
func (m *MockPage) Snapshots() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots
}

func (m *MockPage) Clicks() []Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Element(nil), m.clicks...)
}

func (m *MockPage) Submits() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submits...)
}
