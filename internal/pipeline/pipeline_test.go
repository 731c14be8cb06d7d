package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outreach-engine/internal/compose"
	"outreach-engine/internal/discover"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/filter"
	"outreach-engine/internal/pace"
	"outreach-engine/internal/report"
)

// ---- fakes ----

type memStore struct {
	mu       sync.Mutex
	rows     []domain.OutreachRow
	contacts []domain.ContactRecord
	stats    []domain.RunStats
	nextID   int64

	listContactsErr error
	appendRowsErr   error
	updateRowErr    error
}

func (m *memStore) AppendRows(_ context.Context, rows []domain.OutreachRow) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendRowsErr != nil {
		return nil, m.appendRowsErr
	}
	var ids []int64
	for _, r := range rows {
		m.nextID++
		r.ID = m.nextID
		r.Status = domain.StatusPending
		m.rows = append(m.rows, r)
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *memStore) UpdateRow(_ context.Context, id int64, status domain.Status, recipient, reason string, processedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateRowErr != nil {
		return m.updateRowErr
	}
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].Status = status
			m.rows[i].Recipient = recipient
			m.rows[i].SkipReason = reason
			m.rows[i].ProcessedAt = processedAt
			return nil
		}
	}
	return errors.Newf("row %d not found", id)
}

func (m *memStore) ListPendingRows(context.Context) ([]domain.OutreachRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutreachRow
	for _, r := range m.rows {
		if r.Status == domain.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) AppendContact(_ context.Context, rec domain.ContactRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts, rec)
	return nil
}

func (m *memStore) ListContacts(context.Context, time.Time) ([]domain.ContactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listContactsErr != nil {
		return nil, m.listContactsErr
	}
	return append([]domain.ContactRecord(nil), m.contacts...), nil
}

func (m *memStore) AppendRunStats(_ context.Context, st domain.RunStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, st)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) row(id int64) domain.OutreachRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			return r
		}
	}
	return domain.OutreachRow{}
}

type fakeSource struct {
	name     string
	postings []domain.JobPosting
	err      error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Discover(context.Context, string, string) ([]domain.JobPosting, error) {
	return f.postings, f.err
}

type fakeComposer struct {
	err   error
	calls int
}

func (f *fakeComposer) Compose(_ context.Context, p domain.JobPosting, _ compose.Profile) (compose.Message, error) {
	f.calls++
	if f.err != nil {
		return compose.Message{}, f.err
	}
	return compose.Message{Subject: "About " + p.Title, Body: "hello", Mode: "template"}, nil
}

type fakeTransport struct {
	mu    sync.Mutex
	sent  []string // recipients in delivery order
	err   error
	calls int
}

func (f *fakeTransport) Deliver(_ context.Context, to, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

// ---- harness ----

var monday = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // a Monday

func posting(title, company string, candidates ...string) domain.JobPosting {
	return domain.JobPosting{
		Board:        "greenhouse",
		Company:      company,
		Title:        title,
		Location:     "Remote",
		Description:  "desc",
		Candidates:   candidates,
		DiscoveredAt: monday,
	}
}

func newOrchestrator(st *memStore, tr *fakeTransport, sources ...discover.Source) *Orchestrator {
	log := zap.NewNop().Sugar()
	return &Orchestrator{
		Log:       log,
		Store:     st,
		Sources:   sources,
		Composer:  &fakeComposer{},
		Transport: tr,
		Filter:    filter.New([]string{"recruiter"}, []string{"starts_with:hr@", "contains:noreply"}),
		Pacer:     pace.New(time.Millisecond, 0),
		Reporter:  &report.Reporter{Log: log, Store: st, Transport: tr},

		Mode:                "default",
		SearchTerms:         []string{"engineer"},
		Locations:           []string{"remote"},
		Concurrency:         2,
		UnitTimeout:         time.Second,
		DomainCooldownDays:  5,
		CompanyCooldownDays: 1,
		Now:                 func() time.Time { return monday },
	}
}

// ---- tests ----

func TestRunHappyPath(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com"),
		posting("Technical Recruiter", "Globex", "bob@globex.com"),
	}}
	o := newOrchestrator(st, tr, src)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Scraped)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Processed())
	assert.Equal(t, []string{"jane@acme.com"}, tr.sent)

	sent := st.row(1)
	assert.Equal(t, domain.StatusSent, sent.Status)
	assert.Equal(t, "jane@acme.com", sent.Recipient)

	skipped := st.row(2)
	assert.Equal(t, domain.StatusSkipped, skipped.Status)
	assert.Equal(t, domain.ReasonTitleFiltered, skipped.SkipReason)
	assert.Empty(t, skipped.Recipient)

	// confirmed send recorded for future dedup
	require.Len(t, st.contacts, 1)
	assert.Equal(t, "jane@acme.com", st.contacts[0].Email)
	assert.Equal(t, "acme.com", st.contacts[0].Domain)

	// stats persisted once
	require.Len(t, st.stats, 1)
	assert.Equal(t, stats.RunID, st.stats[0].RunID)
}

func TestRunFiltersCandidatesNotPostings(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "hr@acme.com", "jane@acme.com"),
	}}
	o := newOrchestrator(st, tr, src)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	// hr@ filtered out, the next candidate is used
	assert.Equal(t, []string{"jane@acme.com"}, tr.sent)
}

func TestRunDryRun(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com"),
	}}
	o := newOrchestrator(st, tr, src)
	o.DryRun = true

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DryRun)
	assert.Zero(t, stats.Sent)
	assert.Zero(t, tr.calls, "dry run must never touch the transport")
	assert.Equal(t, domain.StatusDryRun, st.row(1).Status)
	// dedup state advances so a later live run honors the dry-run decision
	assert.Len(t, st.contacts, 1)
}

func TestRunDeliveryFailure(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{err: errors.New("smtp: 451 try later")}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com"),
	}}
	o := newOrchestrator(st, tr, src)

	stats, err := o.Run(context.Background())
	require.NoError(t, err, "a failed row does not abort the run")

	assert.Equal(t, 1, stats.Failed)
	assert.NotEmpty(t, stats.Errors)
	row := st.row(1)
	assert.Equal(t, domain.StatusFailed, row.Status)
	assert.Equal(t, "delivery_error", row.SkipReason)
	// no contact recorded without a confirmed send
	assert.Empty(t, st.contacts)
}

func TestRunGenerationFailure(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com"),
	}}
	o := newOrchestrator(st, tr, src)
	o.Composer = &fakeComposer{err: errors.New("model unavailable")}

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, "generation_failed", st.row(1).SkipReason)
	assert.Zero(t, tr.calls)
}

func TestRunDedupBlocksAndFallsThrough(t *testing.T) {
	st := &memStore{}
	st.contacts = []domain.ContactRecord{{
		Email: "jane@acme.com", Domain: "acme.com", Company: "Acme", SentAt: monday,
	}}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		// first candidate is an exact duplicate, second is a fresh domain
		posting("Backend Engineer", "Other Co", "jane@acme.com", "bob@globex.com"),
	}}
	o := newOrchestrator(st, tr, src)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, []string{"bob@globex.com"}, tr.sent)
}

func TestRunDedupSkipRecordsLastReason(t *testing.T) {
	st := &memStore{}
	st.contacts = []domain.ContactRecord{{
		Email: "jane@acme.com", Domain: "acme.com", Company: "Acme", SentAt: monday,
	}}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com", "bob@acme.com"),
	}}
	o := newOrchestrator(st, tr, src)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, tr.calls)
	// jane@ is exact, bob@ is domain cooldown; the last evaluated reason wins
	assert.Equal(t, domain.ReasonDomainCooldown, st.row(1).SkipReason)
}

func TestRunDailyCap(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com"),
		posting("Platform Engineer", "Globex", "bob@globex.com"),
	}}
	o := newOrchestrator(st, tr, src)
	o.Pacer = pace.New(time.Millisecond, 1)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, domain.ReasonDailyCapReached, st.row(2).SkipReason)
}

func TestRunWeekendSkip(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com"),
	}}
	o := newOrchestrator(st, tr, src)
	o.WeekendSkip = true
	o.Now = func() time.Time { return time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC) } // Saturday

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.NoteSkippedWeekend, stats.Note)
	assert.Zero(t, stats.Processed())
	assert.Empty(t, st.rows, "weekend skip must not discover or write rows")
	// the skipped run is still reported
	require.Len(t, st.stats, 1)
	assert.Equal(t, domain.NoteSkippedWeekend, st.stats[0].Note)
}

func TestRunResumesPendingRows(t *testing.T) {
	st := &memStore{}
	// a previous interrupted run left one terminal and two pending rows
	st.rows = []domain.OutreachRow{
		{ID: 1, Posting: posting("Done Engineer", "Acme", "a@acme.com"), Status: domain.StatusSent, Recipient: "a@acme.com"},
		{ID: 2, Posting: posting("Backend Engineer", "Globex", "jane@globex.com"), Status: domain.StatusPending},
		{ID: 3, Posting: posting("Platform Engineer", "Initech", "bob@initech.com"), Status: domain.StatusPending},
	}
	st.nextID = 3
	tr := &fakeTransport{}
	o := newOrchestrator(st, tr) // no sources: discovery contributes nothing

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.Scraped)
	assert.Equal(t, 2, stats.Sent)
	assert.Equal(t, []string{"jane@globex.com", "bob@initech.com"}, tr.sent)
	// the terminal row was not touched
	assert.Equal(t, "a@acme.com", st.row(1).Recipient)
	assert.Equal(t, domain.StatusSent, st.row(1).Status)
}

func TestRunDiscoveryUnitFailureIsBestEffort(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{}
	bad := &fakeSource{name: "lever", err: errors.New("api unreachable")}
	good := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com"),
	}}
	o := newOrchestrator(st, tr, bad, good)

	stats, err := o.Run(context.Background())
	require.NoError(t, err, "one failed source must not abort the run")

	assert.Equal(t, 1, stats.Scraped)
	assert.Equal(t, 1, stats.Sent)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "lever")
}

func TestRunDuplicatePostingsCollapse(t *testing.T) {
	st := &memStore{}
	tr := &fakeTransport{}
	same := posting("Backend Engineer", "Acme", "jane@acme.com")
	a := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{same, same}}
	o := newOrchestrator(st, tr, a)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Scraped)
	assert.Len(t, st.rows, 1)
}

func TestRunAbortsWhenContactsUnreadable(t *testing.T) {
	st := &memStore{listContactsErr: errors.New("disk gone")}
	tr := &fakeTransport{}
	o := newOrchestrator(st, tr, &fakeSource{name: "greenhouse"})

	stats, err := o.Run(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, stats.Errors)
	assert.Empty(t, st.rows)
}

func TestRunAbortsWhenPhase1WriteFails(t *testing.T) {
	st := &memStore{appendRowsErr: errors.New("disk full")}
	tr := &fakeTransport{}
	src := &fakeSource{name: "greenhouse", postings: []domain.JobPosting{
		posting("Backend Engineer", "Acme", "jane@acme.com"),
	}}
	o := newOrchestrator(st, tr, src)

	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Zero(t, tr.calls)
	// the abort is still reported
	require.Len(t, st.stats, 1)
}

func TestRunCancellationLeavesRowsPending(t *testing.T) {
	st := &memStore{}
	st.rows = []domain.OutreachRow{
		{ID: 1, Posting: posting("Backend Engineer", "Acme", "jane@acme.com"), Status: domain.StatusPending},
		{ID: 2, Posting: posting("Platform Engineer", "Globex", "bob@globex.com"), Status: domain.StatusPending},
	}
	st.nextID = 2
	tr := &fakeTransport{}
	o := newOrchestrator(st, tr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := o.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.NoteCancelled, stats.Note)
	assert.Zero(t, stats.Processed())
	assert.Equal(t, domain.StatusPending, st.row(1).Status)
	assert.Equal(t, domain.StatusPending, st.row(2).Status)
	// the cancelled run is still recorded
	require.Len(t, st.stats, 1)
	assert.Equal(t, domain.NoteCancelled, st.stats[0].Note)
}

func TestRunRowUpdateFailureCounted(t *testing.T) {
	st := &memStore{updateRowErr: errors.New("disk full")}
	st.rows = []domain.OutreachRow{
		{ID: 1, Posting: posting("Technical Recruiter", "Acme", "jane@acme.com"), Status: domain.StatusPending},
	}
	st.nextID = 1
	tr := &fakeTransport{}
	o := newOrchestrator(st, tr)

	stats, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	require.NotEmpty(t, stats.Errors)
	assert.Contains(t, stats.Errors[0], domain.ReasonStorageWriteFailed)
}
