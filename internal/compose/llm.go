package compose

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	openai "github.com/sashabaranov/go-openai"

	"outreach-engine/internal/domain"
)

const systemPrompt = "You are a professional job applicant writing cold emails. " +
	"Write naturally in first person. No markdown formatting. No HTML. " +
	"No bold/italic. Plain text only."

const userPromptFmt = `You are writing a professional cold outreach email on behalf of a job applicant.

## Applicant Context
%s

## Target Position
- Title: %s
- Company: %s

## Job Description
%s

Write the email as:
SUBJECT: <subject line>

<body, %d-%d words, no signature block>`

// descriptionLimit keeps huge postings from blowing the prompt budget.
const descriptionLimit = 3000

var (
	reSubject = regexp.MustCompile(`(?i)^SUBJECT:\s*(.+?)(?:\n\n|\n)`)
	// signature lines the model injects despite the prompt
	reSignoff = regexp.MustCompile(`(?im)^(best regards|kind regards|sincerely|thanks|thank you),?\s*$`)
)

// LLM generates a personalised message through an OpenAI-compatible API.
type LLM struct {
	client *openai.Client
	model  string
}

func NewLLM(baseURL, apiKey, model string) *LLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLM{client: openai.NewClientWithConfig(cfg), model: model}
}

func (l *LLM) Compose(ctx context.Context, posting domain.JobPosting, profile Profile) (Message, error) {
	desc := posting.Description
	if len(desc) > descriptionLimit {
		desc = desc[:descriptionLimit]
	}
	prompt := fmt.Sprintf(userPromptFmt,
		profile.Context, posting.Title, posting.Company, desc,
		profile.MinWords, profile.MaxWords)

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   1024,
	})
	if err != nil {
		return Message{}, errors.Mark(errors.Wrap(err, "llm chat completion"), domain.ErrGeneration)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Message{}, errors.Mark(errors.New("llm returned empty response"), domain.ErrGeneration)
	}

	subject, body := parseResponse(resp.Choices[0].Message.Content)
	body = cleanupBody(body, profile.MaxWords)
	body += footer(profile)

	return Message{Subject: subject, Body: body, Mode: "llm"}, nil
}

// parseResponse splits the model output into subject and body. Without a
// SUBJECT: prefix the first line is taken as the subject.
func parseResponse(raw string) (subject, body string) {
	raw = strings.TrimSpace(raw)
	if m := reSubject.FindStringSubmatchIndex(raw); m != nil {
		subject = strings.TrimSpace(raw[m[2]:m[3]])
		body = strings.TrimSpace(raw[m[1]:])
	} else {
		line, rest, _ := strings.Cut(raw, "\n")
		subject = strings.TrimSpace(line)
		body = strings.TrimSpace(rest)
	}
	subject = strings.Trim(subject, `"'`)
	return subject, body
}

func cleanupBody(body string, maxWords int) string {
	body = reSignoff.ReplaceAllString(body, "")
	// collapse 3+ blank lines left by the cleanup
	for strings.Contains(body, "\n\n\n") {
		body = strings.ReplaceAll(body, "\n\n\n", "\n\n")
	}
	body = truncateWords(body, maxWords)
	return strings.TrimSpace(body)
}

func footer(p Profile) string {
	var b strings.Builder
	b.WriteString("\n\n")
	if p.ResumeLink != "" {
		fmt.Fprintf(&b, "Resume: %s\n", p.ResumeLink)
	}
	b.WriteString(p.Name)
	if p.Phone != "" {
		b.WriteString("\n" + p.Phone)
	}
	if p.Portfolio != "" {
		b.WriteString("\nPortfolio: " + p.Portfolio)
	}
	if p.GitHub != "" {
		b.WriteString("\nGitHub: " + p.GitHub)
	}
	return b.String()
}
