package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ShortenString cuts s to at most l characters and marks the cut with an
// ellipsis. l == 0 disables shortening.
func ShortenString(s string, l int) string {
	r := []rune(s)
	if l <= 0 || len(r) <= l {
		return s
	}
	return string(r[:l]) + "..."
}

// RandomString appends a random hex suffix to base, eg for file names.
func RandomString(base string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(b)), nil
}

// ClosestMatch returns the candidate with the smallest edit distance to s,
// compared case insensitively. ok is false if there are no candidates or
// the best one differs in more than half of its characters.
func ClosestMatch(s string, candidates []string) (match string, ok bool) {
	best := -1
	ls := strings.ToLower(s)
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(ls, strings.ToLower(c))
		if best == -1 || d < best {
			best = d
			match = c
		}
	}
	if best == -1 || best > max(len(s), len(match))/2 {
		return "", false
	}
	return match, true
}
