package discover

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"outreach-engine/internal/config"
	"outreach-engine/internal/domain"
)

// Lever reads the public postings JSON API at api.lever.co.
type Lever struct {
	boards  []config.Board
	hc      *http.Client
	limiter *HostLimiter
}

func NewLever(boards []config.Board, limiter *HostLimiter) *Lever {
	return &Lever{
		boards:  boards,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (l *Lever) Name() string { return "lever" }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"` // title
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"` // ms epoch
	Categories struct {
		Location string `json:"location"`
		Team     string `json:"team"`
	} `json:"categories"`
	Description string `json:"descriptionPlain"`
}

func (l *Lever) Discover(ctx context.Context, term, location string) ([]domain.JobPosting, error) {
	var out []domain.JobPosting
	var lastErr error
	for _, board := range l.boards {
		postings, err := l.fetchBoard(ctx, board, term, location)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, postings...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, errors.Mark(lastErr, domain.ErrDiscovery)
	}
	return out, nil
}

func (l *Lever) fetchBoard(ctx context.Context, board config.Board, term, location string) ([]domain.JobPosting, error) {
	apiURL := fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", board.Slug)

	if l.limiter != nil {
		if err := l.limiter.WaitURL(ctx, apiURL); err != nil {
			return nil, err
		}
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	req.Header.Set("User-Agent", "outreach-engine/1.0 (+local)")

	res, err := l.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "lever get")
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, errors.Newf("lever status %d", res.StatusCode)
	}

	var postings []leverPosting
	if err := json.NewDecoder(res.Body).Decode(&postings); err != nil {
		return nil, errors.Wrap(err, "lever decode")
	}

	out := make([]domain.JobPosting, 0, len(postings))
	for _, p := range postings {
		title := strings.TrimSpace(p.Text)
		if p.ID == "" || title == "" {
			continue
		}
		loc := cleanText(p.Categories.Location)
		if !matchesTerm(term, title, p.Description) || !matchesLocation(location, loc) {
			continue
		}
		cands := extractCandidates(p.Description)
		if len(cands) == 0 {
			continue
		}
		discovered := time.Now().UTC()
		if p.CreatedAt > 0 {
			discovered = time.UnixMilli(p.CreatedAt).UTC()
		}
		out = append(out, domain.JobPosting{
			Board:        l.Name(),
			Company:      board.Name,
			Title:        title,
			Location:     loc,
			Description:  p.Description,
			Candidates:   cands,
			DiscoveredAt: discovered,
		})
	}
	return out, nil
}
