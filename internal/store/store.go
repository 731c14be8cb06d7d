// Package store persists outreach rows, contact records and run stats.
// Two backends satisfy the same contract: sqlite (tabular) and csv
// (flat-file). The pipeline never branches on backend identity.
package store

import (
	"context"
	"time"

	"outreach-engine/internal/domain"
)

// Storage is the persistence contract the pipeline requires. Each row
// update is an independent atomic write; resumability depends on row-level
// durability, so no multi-row transactions are needed.
type Storage interface {
	// AppendRows persists postings as pending rows and returns their ids
	// in input order.
	AppendRows(ctx context.Context, rows []domain.OutreachRow) ([]int64, error)

	// UpdateRow moves one row to a terminal status.
	UpdateRow(ctx context.Context, id int64, status domain.Status, recipient, reason string, processedAt time.Time) error

	// ListPendingRows returns pending rows in persisted order.
	ListPendingRows(ctx context.Context) ([]domain.OutreachRow, error)

	AppendContact(ctx context.Context, rec domain.ContactRecord) error

	// ListContacts returns contact records with SentAt >= since, oldest
	// first. A zero since returns the full history.
	ListContacts(ctx context.Context, since time.Time) ([]domain.ContactRecord, error)

	AppendRunStats(ctx context.Context, stats domain.RunStats) error

	Close() error
}
