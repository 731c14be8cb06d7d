// Package filter decides whether a posting may enter the outreach pipeline.
// Pure functions over configuration and input; no state, no side effects.
package filter

import (
	"regexp"
	"strings"

	"outreach-engine/internal/domain"
)

// addressRe is a simplified RFC-5322 shape: local@domain.tld with a 2+ char
// TLD and no consecutive dots in the domain.
var addressRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}$`)

type Engine struct {
	rejectTitles  []string
	emailPatterns []string
}

func New(rejectTitles, emailPatterns []string) *Engine {
	e := &Engine{}
	for _, t := range rejectTitles {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			e.rejectTitles = append(e.rejectTitles, t)
		}
	}
	for _, p := range emailPatterns {
		p = strings.TrimSpace(p)
		if p != "" {
			e.emailPatterns = append(e.emailPatterns, p)
		}
	}
	return e
}

// Accept filters one posting. It returns the surviving candidate addresses
// in their original order and an empty reason, or nil and the reject
// reason. Title rejection wins over everything else.
func (e *Engine) Accept(title string, candidates []string) (kept []string, reason string) {
	if e.rejectsTitle(title) {
		return nil, domain.ReasonTitleFiltered
	}

	for _, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || !ValidAddress(c) {
			continue
		}
		if e.rejectsEmail(c) {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil, domain.ReasonNoValidEmail
	}
	return kept, ""
}

func (e *Engine) rejectsTitle(title string) bool {
	t := strings.ToLower(title)
	for _, pat := range e.rejectTitles {
		if strings.Contains(t, pat) {
			return true
		}
	}
	return false
}

func (e *Engine) rejectsEmail(email string) bool {
	for _, pat := range e.emailPatterns {
		if matchesPattern(email, pat) {
			return true
		}
	}
	return false
}

// matchesPattern supports three kinds: "starts_with:<p>", "contains:<p>"
// and a bare pattern, which is treated as contains.
func matchesPattern(email, pattern string) bool {
	if email == "" || pattern == "" {
		return false
	}
	email = strings.ToLower(email)

	if p, ok := strings.CutPrefix(pattern, "starts_with:"); ok {
		return strings.HasPrefix(email, strings.ToLower(p))
	}
	if p, ok := strings.CutPrefix(pattern, "contains:"); ok {
		return strings.Contains(email, strings.ToLower(p))
	}
	return strings.Contains(email, strings.ToLower(pattern))
}

// ValidAddress reports whether s looks like a deliverable address.
func ValidAddress(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "..") {
		return false
	}
	return addressRe.MatchString(s)
}

// ExtractAddresses splits a comma/semicolon separated blob into validated,
// lowercased, order-preserving unique addresses. Invalid entries are
// silently dropped.
func ExtractAddresses(raw string) []string {
	if raw == "" {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' }) {
		addr := strings.ToLower(strings.TrimSpace(part))
		if addr == "" || seen[addr] || !ValidAddress(addr) {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}
