package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"outreach-engine/internal/domain"
)

// SQLite is the tabular Storage backend.
type SQLite struct {
	pool *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	// modernc sqlite uses DSN like: file:foo.db?_pragma=busy_timeout(5000)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)

	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, domain.StorageErr(err, "open sqlite")
	}

	pool.SetMaxOpenConns(1) // sqlite typically wants 1 writer
	pool.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, domain.StorageErr(err, "ping sqlite")
	}

	if err := migrate(pool); err != nil {
		_ = pool.Close()
		return nil, domain.StorageErr(err, "migrate")
	}

	return &SQLite{pool: pool}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS outreach (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  board TEXT NOT NULL,
  company TEXT NOT NULL,
  title TEXT NOT NULL,
  location TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  candidates TEXT NOT NULL DEFAULT '[]',
  discovered_at TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  recipient TEXT NOT NULL DEFAULT '',
  skip_reason TEXT NOT NULL DEFAULT '',
  processed_at TEXT NOT NULL DEFAULT ''
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS contacts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email TEXT NOT NULL,
  domain TEXT NOT NULL,
  company TEXT NOT NULL,
  sent_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS run_stats (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  mode TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL,
  scraped INTEGER NOT NULL DEFAULT 0,
  sent INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  dry_run INTEGER NOT NULL DEFAULT 0,
  errors TEXT NOT NULL DEFAULT '[]',
  note TEXT NOT NULL DEFAULT ''
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_outreach_status ON outreach(status);
`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_contacts_domain ON contacts(domain);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) AppendRows(ctx context.Context, rows []domain.OutreachRow) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		candB, _ := json.Marshal(r.Posting.Candidates)
		res, err := s.pool.ExecContext(ctx, `
INSERT INTO outreach(board, company, title, location, description, candidates, discovered_at, status)
VALUES(?,?,?,?,?,?,?,?);`,
			r.Posting.Board,
			r.Posting.Company,
			r.Posting.Title,
			r.Posting.Location,
			r.Posting.Description,
			string(candB),
			r.Posting.DiscoveredAt.UTC().Format(time.RFC3339),
			string(domain.StatusPending),
		)
		if err != nil {
			return ids, domain.StorageErr(err, "append outreach row")
		}
		id, _ := res.LastInsertId()
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLite) UpdateRow(ctx context.Context, id int64, status domain.Status, recipient, reason string, processedAt time.Time) error {
	res, err := s.pool.ExecContext(ctx, `
UPDATE outreach
SET status = ?, recipient = ?, skip_reason = ?, processed_at = ?
WHERE id = ?;`,
		string(status), recipient, reason, processedAt.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return domain.StorageErr(err, "update outreach row")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.StorageErr(fmt.Errorf("row %d not found", id), "update outreach row")
	}
	return nil
}

func (s *SQLite) ListPendingRows(ctx context.Context) ([]domain.OutreachRow, error) {
	rows, err := s.pool.QueryContext(ctx, `
SELECT id, board, company, title, location, description, candidates, discovered_at
FROM outreach
WHERE status = 'pending'
ORDER BY id ASC;`)
	if err != nil {
		return nil, domain.StorageErr(err, "list pending rows")
	}
	defer rows.Close()

	var out []domain.OutreachRow
	for rows.Next() {
		var r domain.OutreachRow
		var candJSON, discStr string
		if err := rows.Scan(
			&r.ID,
			&r.Posting.Board,
			&r.Posting.Company,
			&r.Posting.Title,
			&r.Posting.Location,
			&r.Posting.Description,
			&candJSON,
			&discStr,
		); err != nil {
			return nil, domain.StorageErr(err, "scan pending row")
		}
		_ = json.Unmarshal([]byte(candJSON), &r.Posting.Candidates)
		r.Posting.DiscoveredAt, _ = time.Parse(time.RFC3339, discStr)
		r.Status = domain.StatusPending
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageErr(err, "list pending rows")
	}
	return out, nil
}

func (s *SQLite) AppendContact(ctx context.Context, rec domain.ContactRecord) error {
	_, err := s.pool.ExecContext(ctx, `
INSERT OR IGNORE INTO contacts(email, domain, company, sent_at)
VALUES(?,?,?,?);`,
		strings.ToLower(rec.Email),
		strings.ToLower(rec.Domain),
		rec.Company,
		rec.SentAt.UTC().Format(time.RFC3339),
	)
	return domain.StorageErr(err, "append contact")
}

func (s *SQLite) ListContacts(ctx context.Context, since time.Time) ([]domain.ContactRecord, error) {
	rows, err := s.pool.QueryContext(ctx, `
SELECT email, domain, company, sent_at
FROM contacts
WHERE sent_at >= ?
ORDER BY id ASC;`,
		since.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, domain.StorageErr(err, "list contacts")
	}
	defer rows.Close()

	var out []domain.ContactRecord
	for rows.Next() {
		var rec domain.ContactRecord
		var sentStr string
		if err := rows.Scan(&rec.Email, &rec.Domain, &rec.Company, &sentStr); err != nil {
			return nil, domain.StorageErr(err, "scan contact")
		}
		rec.SentAt, _ = time.Parse(time.RFC3339, sentStr)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageErr(err, "list contacts")
	}
	return out, nil
}

func (s *SQLite) AppendRunStats(ctx context.Context, st domain.RunStats) error {
	errB, _ := json.Marshal(st.Errors)
	_, err := s.pool.ExecContext(ctx, `
INSERT INTO run_stats(run_id, mode, started_at, ended_at, scraped, sent, skipped, failed, dry_run, errors, note)
VALUES(?,?,?,?,?,?,?,?,?,?,?);`,
		st.RunID,
		st.Mode,
		st.StartedAt.UTC().Format(time.RFC3339),
		st.EndedAt.UTC().Format(time.RFC3339),
		st.Scraped,
		st.Sent,
		st.Skipped,
		st.Failed,
		st.DryRun,
		string(errB),
		st.Note,
	)
	return domain.StorageErr(err, "append run stats")
}
