package domain

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an OutreachRow. A row is created as
// StatusPending in phase 1 and moved to exactly one terminal status in
// phase 2. Rows left pending belong to an interrupted run and are picked
// up again on the next invocation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusDryRun  Status = "dry_run"
)

func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusSkipped || s == StatusFailed || s == StatusDryRun
}

// Skip and failure reasons recorded on rows and in run stats.
const (
	ReasonTitleFiltered      = "title_filtered"
	ReasonNoValidEmail       = "no_valid_email"
	ReasonExactDuplicate     = "exact_duplicate"
	ReasonDomainCooldown     = "domain_cooldown"
	ReasonCompanyCooldown    = "company_cooldown"
	ReasonDailyCapReached    = "daily_cap_reached"
	ReasonStorageWriteFailed = "storage_write_failed"
)

// Run-level markers stored in RunStats.Note.
const (
	NoteSkippedWeekend = "skipped_weekend"
	NoteCancelled      = "cancelled"
)

// JobPosting is one listing as returned by a discovery source. Immutable
// once discovered; persisted verbatim in phase 1.
type JobPosting struct {
	Board        string
	Company      string
	Title        string
	Location     string
	Description  string
	Candidates   []string // candidate recipient addresses, discovery order
	DiscoveredAt time.Time
}

// Key identifies a posting for phase-1 deduplication.
func (p JobPosting) Key() string {
	return strings.ToLower(strings.Join([]string{p.Title, p.Company, p.Location, p.Board}, "|"))
}

// OutreachRow is the unit of crash recovery: one posting plus its
// processing outcome.
type OutreachRow struct {
	ID          int64
	Posting     JobPosting
	Status      Status
	Recipient   string
	SkipReason  string
	ProcessedAt time.Time
}

// ContactRecord is an append-only record of one confirmed send. It is the
// only input to dedup decisions and is never mutated or deleted.
type ContactRecord struct {
	Email   string
	Domain  string
	Company string
	SentAt  time.Time
}

// RunStats aggregates one pipeline run.
type RunStats struct {
	RunID     string
	Mode      string
	StartedAt time.Time
	EndedAt   time.Time
	Scraped   int
	Sent      int
	Skipped   int
	Failed    int
	DryRun    int
	Errors    []string
	Note      string
}

func (s RunStats) Processed() int {
	return s.Sent + s.Skipped + s.Failed + s.DryRun
}
