package pipeline

import (
	"context"
	"time"

	"outreach-engine/internal/dedup"
	"outreach-engine/internal/domain"
)

const (
	rowUpdateAttempts = 3
	rowUpdateBackoff  = 500 * time.Millisecond
)

// processPending is phase 2: strictly sequential over the pending rows,
// by design — the pacer's interval and the dedup cooldowns need a single
// ordered view of prior sends, which sequential processing gives us
// without per-recipient locking. Rows already terminal are never
// revisited; rows left pending survive for the next run.
func (o *Orchestrator) processPending(ctx context.Context, eng *dedup.Engine, runNow time.Time, stats *domain.RunStats) error {
	rows, err := o.Store.ListPendingRows(ctx)
	if err != nil {
		stats.Errors = append(stats.Errors, err.Error())
		return err
	}
	o.Log.Infow("processing pending rows", "count", len(rows), "dry_run", o.DryRun)

	for _, row := range rows {
		if ctx.Err() != nil {
			o.Log.Warnw("run cancelled, remaining rows stay pending", "row", row.ID)
			stats.Note = domain.NoteCancelled
			break
		}
		o.processRow(ctx, row, eng, runNow, stats)
	}
	return nil
}

func (o *Orchestrator) processRow(ctx context.Context, row domain.OutreachRow, eng *dedup.Engine, runNow time.Time, stats *domain.RunStats) {
	posting := row.Posting

	// 1. filter
	candidates, reason := o.Filter.Accept(posting.Title, posting.Candidates)
	if reason != "" {
		o.finishRow(ctx, row, domain.StatusSkipped, "", reason, stats)
		return
	}

	// 2. dedup: first allowed candidate wins, in discovery order
	var recipient, lastReason string
	for _, cand := range candidates {
		d := eng.Check(cand, posting.Company, runNow)
		if d.Allow {
			recipient = cand
			break
		}
		lastReason = d.Reason
	}
	if recipient == "" {
		o.finishRow(ctx, row, domain.StatusSkipped, "", lastReason, stats)
		return
	}

	// 3. daily cap before the interval wait: an exhausted cap must not
	// burn a pacing slot
	if !o.Pacer.TakeQuota(runNow) {
		o.finishRow(ctx, row, domain.StatusSkipped, "", domain.ReasonDailyCapReached, stats)
		return
	}
	if err := o.Pacer.Wait(ctx); err != nil {
		// cancelled mid-wait: row stays pending for the next run
		stats.Note = domain.NoteCancelled
		return
	}

	// 4. compose; the chain falls back to the template internally
	msg, err := o.Composer.Compose(ctx, posting, o.Profile)
	if err != nil {
		o.Log.Errorw("composition failed", "row", row.ID, "err", err)
		stats.Errors = append(stats.Errors, err.Error())
		o.finishRow(ctx, row, domain.StatusFailed, recipient, "generation_failed", stats)
		return
	}

	// 5. dry run exercises everything except the transport; dedup state
	// still advances so a later live run honors these decisions
	if o.DryRun {
		o.Log.Infow("dry run, would send", "to", recipient, "title", posting.Title, "company", posting.Company)
		o.recordContact(ctx, eng, recipient, posting.Company, runNow, stats)
		o.finishRow(ctx, row, domain.StatusDryRun, recipient, "", stats)
		return
	}

	// 6. deliver; only a confirmed send consumes dedup state
	if err := o.Transport.Deliver(ctx, recipient, msg.Subject, msg.Body, o.Attachment); err != nil {
		o.Log.Errorw("delivery failed", "row", row.ID, "to", recipient, "err", err)
		stats.Errors = append(stats.Errors, err.Error())
		o.finishRow(ctx, row, domain.StatusFailed, recipient, "delivery_error", stats)
		return
	}
	o.Log.Infow("sent", "to", recipient, "title", posting.Title, "company", posting.Company, "mode", msg.Mode)
	o.recordContact(ctx, eng, recipient, posting.Company, runNow, stats)
	o.finishRow(ctx, row, domain.StatusSent, recipient, "", stats)
}

func (o *Orchestrator) recordContact(ctx context.Context, eng *dedup.Engine, email, company string, runNow time.Time, stats *domain.RunStats) {
	rec := domain.ContactRecord{
		Email:   email,
		Domain:  dedup.Domain(email),
		Company: company,
		SentAt:  runNow,
	}
	eng.Record(rec)
	if err := o.Store.AppendContact(ctx, rec); err != nil {
		// the in-memory view still protects the rest of this run
		o.Log.Errorw("append contact failed", "email", email, "err", err)
		stats.Errors = append(stats.Errors, err.Error())
	}
}

// finishRow moves a row to its terminal status with bounded retries. If
// the store refuses all attempts the row is counted failed and stays
// pending on disk, which the next run will retry.
func (o *Orchestrator) finishRow(ctx context.Context, row domain.OutreachRow, status domain.Status, recipient, reason string, stats *domain.RunStats) {
	var err error
	for attempt := 1; attempt <= rowUpdateAttempts; attempt++ {
		err = o.Store.UpdateRow(ctx, row.ID, status, recipient, reason, o.now())
		if err == nil {
			o.count(status, stats)
			return
		}
		if attempt < rowUpdateAttempts {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-time.After(rowUpdateBackoff):
				continue
			}
			break
		}
	}
	o.Log.Errorw("row update failed", "row", row.ID, "status", status, "err", err)
	stats.Errors = append(stats.Errors, domain.ReasonStorageWriteFailed+": "+err.Error())
	stats.Failed++
}

func (o *Orchestrator) count(status domain.Status, stats *domain.RunStats) {
	switch status {
	case domain.StatusSent:
		stats.Sent++
	case domain.StatusSkipped:
		stats.Skipped++
	case domain.StatusFailed:
		stats.Failed++
	case domain.StatusDryRun:
		stats.DryRun++
	}
}
