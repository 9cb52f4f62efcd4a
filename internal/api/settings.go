package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/jsonquery"
)

// Settings is the settings document of an account. It is kept as raw JSON
// since only parts of it are interpreted.
type Settings struct {
	raw json.RawMessage
	doc *jsonquery.Node
}

// ParseSettings parses a settings document.
func ParseSettings(raw json.RawMessage) (*Settings, error) {
	doc, err := jsonquery.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("error parsing settings: %w", err)
	}
	return &Settings{raw: append(json.RawMessage(nil), raw...), doc: doc}, nil
}

// Raw returns the document as received.
func (s *Settings) Raw() json.RawMessage {
	return s.raw
}

// CTAPaths returns the path expressions locating call to action links in
// emails of the given provider, in document order.
func (s *Settings) CTAPaths(provider string) ([]string, error) {
	if provider == "" || strings.ContainsAny(provider, "/[]()@*") {
		return nil, fmt.Errorf("invalid provider %q", provider)
	}
	nodes, err := jsonquery.QueryAll(s.doc, "cta/"+provider+"/*")
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(nodes))
	for _, n := range nodes {
		v, ok := n.Value().(string)
		if !ok {
			return nil, errors.New("cta path expressions must be strings")
		}
		if v = strings.TrimSpace(v); v != "" {
			paths = append(paths, v)
		}
	}
	return paths, nil
}
