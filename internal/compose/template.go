package compose

import (
	"context"

	"outreach-engine/internal/domain"
)

// Template is the static fallback strategy. It cannot fail, which is what
// makes it a safe chain terminator: a generation failure upstream never
// fails the row.
type Template struct {
	Subject string
	Body    string
}

func (t Template) Compose(_ context.Context, posting domain.JobPosting, profile Profile) (Message, error) {
	repl := replacements(posting, profile)
	return Message{
		Subject: expand(t.Subject, repl),
		Body:    expand(t.Body, repl),
		Mode:    "template",
	}, nil
}
