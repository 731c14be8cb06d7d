// Package report finalizes a run: persist its stats and mail the operator
// a digest. Both steps are best effort — the run's real outcome already
// lives in the outreach rows and contact records.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/mail"
	"outreach-engine/internal/store"
)

type Reporter struct {
	Log       *zap.SugaredLogger
	Store     store.Storage
	Transport mail.Transport
	To        string // operator address; empty disables the digest mail
}

// Finalize persists stats and dispatches the digest. Failures are logged,
// never returned: nothing after phase 2 may fail the run.
func (r *Reporter) Finalize(ctx context.Context, stats domain.RunStats) {
	if err := r.Store.AppendRunStats(ctx, stats); err != nil {
		r.Log.Errorw("persist run stats failed", "run_id", stats.RunID, "err", err)
	}

	if r.To == "" {
		r.Log.Debugw("no report address configured, skipping digest")
		return
	}
	subject, body := Render(stats)
	if err := r.Transport.Deliver(ctx, r.To, subject, body, ""); err != nil {
		r.Log.Errorw("digest delivery failed", "to", r.To, "err", err)
		return
	}
	r.Log.Infow("digest sent", "to", r.To)
}

// Render builds the digest subject and body.
func Render(stats domain.RunStats) (subject, body string) {
	prefix := ""
	if stats.DryRun > 0 && stats.Sent == 0 {
		prefix = "[DRY RUN] "
	}
	subject = fmt.Sprintf("%sOutreach report: %s - %d emails sent", prefix, strings.ToUpper(stats.Mode), stats.Sent)

	duration := stats.EndedAt.Sub(stats.StartedAt)
	var b strings.Builder
	fmt.Fprintf(&b, "Outreach Run Report\n%s\n\n", strings.Repeat("=", 40))
	fmt.Fprintf(&b, "Run:        %s (%s)\n", stats.RunID, stats.Mode)
	fmt.Fprintf(&b, "Started:    %s\n", stats.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:   %.1f minutes (%.0fs)\n", duration.Minutes(), duration.Seconds())
	if stats.Note != "" {
		fmt.Fprintf(&b, "Note:       %s\n", stats.Note)
	}
	fmt.Fprintf(&b, "\nPipeline Summary\n%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(&b, "Discovered:  %d\n", stats.Scraped)
	fmt.Fprintf(&b, "Sent:        %d\n", stats.Sent)
	fmt.Fprintf(&b, "Dry-run:     %d\n", stats.DryRun)
	fmt.Fprintf(&b, "Skipped:     %d\n", stats.Skipped)
	fmt.Fprintf(&b, "Failed:      %d\n", stats.Failed)
	fmt.Fprintf(&b, "Success:     %s\n", rate(stats.Sent+stats.DryRun, stats.Sent+stats.DryRun+stats.Failed))
	if len(stats.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors\n%s\n", strings.Repeat("-", 40))
		for _, e := range stats.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return subject, b.String()
}

func rate(success, total int) string {
	if total == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", float64(success)/float64(total)*100)
}
