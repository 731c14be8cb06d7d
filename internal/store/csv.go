package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"outreach-engine/internal/domain"
)

// CSV is the flat-file Storage backend: three files under one directory.
// A flock guards the directory so two concurrent runs cannot interleave
// writes. Row updates rewrite the outreach file atomically (tmp+rename);
// everything else is append-only.
type CSV struct {
	dir  string
	lock *flock.Flock
}

var (
	outreachHeader = []string{"id", "board", "company", "title", "location", "description", "candidates", "discovered_at", "status", "recipient", "skip_reason", "processed_at"}
	contactsHeader = []string{"email", "domain", "company", "sent_at"}
	statsHeader    = []string{"run_id", "mode", "started_at", "ended_at", "scraped", "sent", "skipped", "failed", "dry_run", "errors", "note"}
)

func OpenCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.StorageErr(err, "create csv dir")
	}
	lock := flock.New(filepath.Join(dir, ".outreach.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, domain.StorageErr(err, "lock csv dir")
	}
	if !ok {
		return nil, domain.StorageErr(fmt.Errorf("%s is locked by another run", dir), "lock csv dir")
	}
	return &CSV{dir: dir, lock: lock}, nil
}

func (c *CSV) Close() error {
	if c == nil || c.lock == nil {
		return nil
	}
	return c.lock.Unlock()
}

func (c *CSV) outreachPath() string { return filepath.Join(c.dir, "outreach.csv") }
func (c *CSV) contactsPath() string { return filepath.Join(c.dir, "contacts.csv") }
func (c *CSV) statsPath() string    { return filepath.Join(c.dir, "run_stats.csv") }

func readAll(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		recs = recs[1:] // drop header
	}
	return recs, nil
}

func appendRecords(path string, header []string, recs [][]string) error {
	fresh := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fresh = true
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// writeAll replaces path with header+recs via tmp+rename so a crash never
// leaves a half-written file.
func writeAll(path string, header []string, recs [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return err
	}
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			_ = f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *CSV) nextID() (int64, error) {
	recs, err := readAll(c.outreachPath(), outreachHeader)
	if err != nil {
		return 0, err
	}
	var max int64
	for _, rec := range recs {
		if id, err := strconv.ParseInt(rec[0], 10, 64); err == nil && id > max {
			max = id
		}
	}
	return max + 1, nil
}

func (c *CSV) AppendRows(ctx context.Context, rows []domain.OutreachRow) ([]int64, error) {
	id, err := c.nextID()
	if err != nil {
		return nil, domain.StorageErr(err, "append rows")
	}
	ids := make([]int64, 0, len(rows))
	recs := make([][]string, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, []string{
			strconv.FormatInt(id, 10),
			r.Posting.Board,
			r.Posting.Company,
			r.Posting.Title,
			r.Posting.Location,
			r.Posting.Description,
			strings.Join(r.Posting.Candidates, ";"),
			r.Posting.DiscoveredAt.UTC().Format(time.RFC3339),
			string(domain.StatusPending),
			"", "", "",
		})
		ids = append(ids, id)
		id++
	}
	if err := appendRecords(c.outreachPath(), outreachHeader, recs); err != nil {
		return nil, domain.StorageErr(err, "append rows")
	}
	return ids, nil
}

func (c *CSV) UpdateRow(ctx context.Context, id int64, status domain.Status, recipient, reason string, processedAt time.Time) error {
	recs, err := readAll(c.outreachPath(), outreachHeader)
	if err != nil {
		return domain.StorageErr(err, "update row")
	}
	found := false
	for i, rec := range recs {
		if rec[0] == strconv.FormatInt(id, 10) {
			rec[8] = string(status)
			rec[9] = recipient
			rec[10] = reason
			rec[11] = processedAt.UTC().Format(time.RFC3339)
			recs[i] = rec
			found = true
			break
		}
	}
	if !found {
		return domain.StorageErr(fmt.Errorf("row %d not found", id), "update row")
	}
	if err := writeAll(c.outreachPath(), outreachHeader, recs); err != nil {
		return domain.StorageErr(err, "update row")
	}
	return nil
}

func (c *CSV) ListPendingRows(ctx context.Context) ([]domain.OutreachRow, error) {
	recs, err := readAll(c.outreachPath(), outreachHeader)
	if err != nil {
		return nil, domain.StorageErr(err, "list pending rows")
	}
	var out []domain.OutreachRow
	for _, rec := range recs {
		if rec[8] != string(domain.StatusPending) {
			continue
		}
		id, _ := strconv.ParseInt(rec[0], 10, 64)
		disc, _ := time.Parse(time.RFC3339, rec[7])
		var cands []string
		if rec[6] != "" {
			cands = strings.Split(rec[6], ";")
		}
		out = append(out, domain.OutreachRow{
			ID: id,
			Posting: domain.JobPosting{
				Board:        rec[1],
				Company:      rec[2],
				Title:        rec[3],
				Location:     rec[4],
				Description:  rec[5],
				Candidates:   cands,
				DiscoveredAt: disc,
			},
			Status: domain.StatusPending,
		})
	}
	return out, nil
}

func (c *CSV) AppendContact(ctx context.Context, rec domain.ContactRecord) error {
	err := appendRecords(c.contactsPath(), contactsHeader, [][]string{{
		strings.ToLower(rec.Email),
		strings.ToLower(rec.Domain),
		rec.Company,
		rec.SentAt.UTC().Format(time.RFC3339),
	}})
	return domain.StorageErr(err, "append contact")
}

func (c *CSV) ListContacts(ctx context.Context, since time.Time) ([]domain.ContactRecord, error) {
	recs, err := readAll(c.contactsPath(), contactsHeader)
	if err != nil {
		return nil, domain.StorageErr(err, "list contacts")
	}
	var out []domain.ContactRecord
	for _, rec := range recs {
		sentAt, err := time.Parse(time.RFC3339, rec[3])
		if err != nil {
			continue
		}
		if !since.IsZero() && sentAt.Before(since) {
			continue
		}
		out = append(out, domain.ContactRecord{
			Email:   rec[0],
			Domain:  rec[1],
			Company: rec[2],
			SentAt:  sentAt,
		})
	}
	return out, nil
}

func (c *CSV) AppendRunStats(ctx context.Context, st domain.RunStats) error {
	err := appendRecords(c.statsPath(), statsHeader, [][]string{{
		st.RunID,
		st.Mode,
		st.StartedAt.UTC().Format(time.RFC3339),
		st.EndedAt.UTC().Format(time.RFC3339),
		strconv.Itoa(st.Scraped),
		strconv.Itoa(st.Sent),
		strconv.Itoa(st.Skipped),
		strconv.Itoa(st.Failed),
		strconv.Itoa(st.DryRun),
		strings.Join(st.Errors, "; "),
		st.Note,
	}})
	return domain.StorageErr(err, "append run stats")
}
