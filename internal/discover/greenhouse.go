package discover

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"

	"outreach-engine/internal/config"
	"outreach-engine/internal/domain"
)

// Greenhouse scrapes boards.greenhouse.io company boards. The board page
// only lists anchors; each job page is hydrated for location, description
// and candidate addresses.
type Greenhouse struct {
	boards  []config.Board
	hc      *http.Client
	limiter *HostLimiter
}

func NewGreenhouse(boards []config.Board, limiter *HostLimiter) *Greenhouse {
	return &Greenhouse{
		boards:  boards,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (g *Greenhouse) Name() string { return "greenhouse" }

func (g *Greenhouse) Discover(ctx context.Context, term, location string) ([]domain.JobPosting, error) {
	var out []domain.JobPosting
	var lastErr error
	for _, board := range g.boards {
		postings, err := g.fetchBoard(ctx, board, term, location)
		if err != nil {
			// one board down must not sink the others
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

func (g *Greenhouse) fetchBoard(ctx context.Context, board config.Board, term, location string) ([]domain.JobPosting, error) {
	boardURL := fmt.Sprintf("https://boards.greenhouse.io/%s", board.Slug)

	doc, err := g.get(ctx, boardURL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var jobURLs []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		abs := href
		if strings.HasPrefix(href, "/") {
			abs = "https://boards.greenhouse.io" + href
		}
		low := strings.ToLower(abs)
		if !strings.Contains(low, "boards.greenhouse.io") || !strings.Contains(low, "/jobs/") {
			return
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		jobURLs = append(jobURLs, abs)
	})

	var out []domain.JobPosting
	for _, u := range jobURLs {
		p, err := g.fetchJob(ctx, board, u)
		if err != nil {
			continue // keep the rest of the board
		}
		if !matchesTerm(term, p.Title, p.Description) || !matchesLocation(location, p.Location) {
			continue
		}
		if len(p.Candidates) == 0 {
			continue // nothing to contact
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *Greenhouse) fetchJob(ctx context.Context, board config.Board, jobURL string) (domain.JobPosting, error) {
	doc, err := g.get(ctx, jobURL)
	if err != nil {
		return domain.JobPosting{}, err
	}

	title := cleanText(doc.Find("h1").First().Text())
	loc := cleanText(doc.Find(".location").First().Text())
	desc := cleanText(doc.Find("#content").First().Text())
	if desc == "" {
		desc = cleanText(doc.Find("body").Text())
	}

	return domain.JobPosting{
		Board:        g.Name(),
		Company:      board.Name,
		Title:        title,
		Location:     loc,
		Description:  desc,
		Candidates:   extractCandidates(desc),
		DiscoveredAt: time.Now().UTC(),
	}, nil
}

func (g *Greenhouse) get(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if g.limiter != nil {
		if err := g.limiter.WaitURL(ctx, rawURL); err != nil {
			return nil, err
		}
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	req.Header.Set("User-Agent", "outreach-engine/1.0 (+local)")

	res, err := g.hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "greenhouse get")
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, errors.Newf("greenhouse status %d", res.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "greenhouse parse html")
	}
	return doc, nil
}
