// Package compose writes the outreach message for one posting. Strategies
// are tried in order and the first success wins; callers see a single
// Composer and never learn which strategy produced the text.
package compose

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"outreach-engine/internal/domain"
)

// Message is one composed outreach email.
type Message struct {
	Subject string
	Body    string
	Mode    string // which strategy produced it: "llm" or "template"
}

// Profile describes the sender on whose behalf messages are written.
type Profile struct {
	Name       string
	Phone      string
	Portfolio  string
	GitHub     string
	LinkedIn   string
	ResumeLink string
	Context    string // applicant background blurb fed to the LLM
	MinWords   int
	MaxWords   int
}

type Composer interface {
	Compose(ctx context.Context, posting domain.JobPosting, profile Profile) (Message, error)
}

// Chain tries each composer in order.
type Chain []Composer

func (c Chain) Compose(ctx context.Context, posting domain.JobPosting, profile Profile) (Message, error) {
	var lastErr error
	for _, strategy := range c {
		msg, err := strategy.Compose(ctx, posting, profile)
		if err == nil {
			return msg, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no composition strategies configured")
	}
	return Message{}, errors.Mark(lastErr, domain.ErrGeneration)
}

// replacements maps template placeholders to their values.
func replacements(posting domain.JobPosting, p Profile) map[string]string {
	return map[string]string{
		"job_title":         posting.Title,
		"company":           posting.Company,
		"contact_name":      p.Name,
		"contact_phone":     p.Phone,
		"contact_portfolio": p.Portfolio,
		"contact_github":    p.GitHub,
		"contact_linkedin":  p.LinkedIn,
		"resume_drive_link": p.ResumeLink,
	}
}

func expand(s string, repl map[string]string) string {
	// literal \n survives yaml single-line values
	s = strings.ReplaceAll(s, `\n`, "\n")
	for k, v := range repl {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func truncateWords(s string, max int) string {
	if max <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}
