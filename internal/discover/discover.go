// Package discover turns external job boards into JobPostings. Each
// source answers one (term, location) query; fan-out across units is owned
// by the pipeline.
package discover

import (
	"context"
	"regexp"
	"strings"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/filter"
)

// Unit is one discovery work item.
type Unit struct {
	Term     string
	Location string
	Board    string
}

// Source produces raw postings for one board.
type Source interface {
	Name() string
	Discover(ctx context.Context, term, location string) ([]domain.JobPosting, error)
}

var reAddress = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// extractCandidates scans free text for recipient addresses, preserving
// first-seen order.
func extractCandidates(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range reAddress.FindAllString(text, -1) {
		addr := strings.ToLower(strings.TrimSpace(m))
		if seen[addr] || !filter.ValidAddress(addr) {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

// matchesTerm is the client-side query filter for sources whose upstream
// has no search API. An empty term matches everything.
func matchesTerm(term, title, description string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), term) ||
		strings.Contains(strings.ToLower(description), term)
}

func matchesLocation(want, have string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(have), want)
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
