package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"outreach-engine/internal/discover"
	"outreach-engine/internal/domain"
)

// discoverAndPersist fans out over (term x location x board) units with
// bounded parallelism, merges and dedupes the postings, and batch-writes
// them as pending rows. A failed unit is logged and excluded; a failed
// batch write aborts the run — nothing was collected, so there is nothing
// to resume.
func (o *Orchestrator) discoverAndPersist(ctx context.Context, stats *domain.RunStats) error {
	units := o.units()

	var (
		mu      sync.Mutex
		merged  []domain.JobPosting
		unitErr []string
	)

	var g errgroup.Group
	g.SetLimit(max(o.Concurrency, 1))

	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		src := o.sourceByName(u.Board)
		if src == nil {
			continue
		}
		g.Go(func() error {
			uctx, cancel := context.WithTimeout(ctx, o.UnitTimeout)
			defer cancel()

			postings, err := src.Discover(uctx, u.Term, u.Location)
			if err != nil {
				// best-effort: one bad unit never sinks the run
				o.Log.Warnw("discovery unit failed",
					"board", u.Board, "term", u.Term, "location", u.Location, "err", err)
				mu.Lock()
				unitErr = append(unitErr, fmt.Sprintf("discovery %s(%s,%s): %v", u.Board, u.Term, u.Location, err))
				mu.Unlock()
				return nil
			}
			if len(postings) == 0 {
				return nil
			}
			mu.Lock()
			merged = append(merged, postings...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stats.Errors = append(stats.Errors, unitErr...)

	postings := dedupePostings(merged)
	stats.Scraped = len(postings)
	o.Log.Infow("discovery complete",
		"units", len(units), "raw", len(merged), "unique", len(postings))

	if len(postings) == 0 {
		return nil
	}

	rows := make([]domain.OutreachRow, 0, len(postings))
	for _, p := range postings {
		rows = append(rows, domain.OutreachRow{Posting: p, Status: domain.StatusPending})
	}
	if _, err := o.Store.AppendRows(ctx, rows); err != nil {
		o.Log.Errorw("phase 1 batch write failed", "rows", len(rows), "err", err)
		stats.Errors = append(stats.Errors, err.Error())
		return err
	}
	return nil
}

// units expands the configured search matrix. Empty term/location lists
// still produce one unit per board.
func (o *Orchestrator) units() []discover.Unit {
	terms := o.SearchTerms
	if len(terms) == 0 {
		terms = []string{""}
	}
	locations := o.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}

	var out []discover.Unit
	for _, term := range terms {
		for _, loc := range locations {
			for _, src := range o.Sources {
				out = append(out, discover.Unit{Term: term, Location: loc, Board: src.Name()})
			}
		}
	}
	return out
}

func (o *Orchestrator) sourceByName(name string) discover.Source {
	for _, s := range o.Sources {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// dedupePostings drops postings with the same (title, company, location,
// board), keeping the first occurrence.
func dedupePostings(in []domain.JobPosting) []domain.JobPosting {
	seen := map[string]bool{}
	out := make([]domain.JobPosting, 0, len(in))
	for _, p := range in {
		key := p.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
