package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outreach-engine/internal/domain"
)

func sampleStats() domain.RunStats {
	return domain.RunStats{
		RunID:     "7b0c2f2e",
		Mode:      "default",
		StartedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 3, 2, 9, 12, 0, 0, time.UTC),
		Scraped:   10,
		Sent:      4,
		Skipped:   3,
		Failed:    1,
	}
}

func TestRenderLiveRun(t *testing.T) {
	subject, body := Render(sampleStats())

	assert.Equal(t, "Outreach report: DEFAULT - 4 emails sent", subject)
	assert.Contains(t, body, "Run:        7b0c2f2e (default)")
	assert.Contains(t, body, "Started:    2026-03-02T09:00:00Z")
	assert.Contains(t, body, "Duration:   12.0 minutes")
	assert.Contains(t, body, "Discovered:  10")
	assert.Contains(t, body, "Sent:        4")
	assert.Contains(t, body, "Success:     80.0%")
	assert.NotContains(t, body, "Errors")
	assert.NotContains(t, body, "Note:")
}

func TestRenderDryRun(t *testing.T) {
	stats := sampleStats()
	stats.Sent = 0
	stats.DryRun = 5

	subject, body := Render(stats)
	assert.Contains(t, subject, "[DRY RUN]")
	assert.Contains(t, body, "Dry-run:     5")
}

func TestRenderErrorsAndNote(t *testing.T) {
	stats := sampleStats()
	stats.Note = domain.NoteCancelled
	stats.Errors = []string{"discovery lever(go,remote): timeout", "smtp send: 451"}

	_, body := Render(stats)
	assert.Contains(t, body, "Note:       cancelled")
	assert.Contains(t, body, "- discovery lever(go,remote): timeout")
	assert.Contains(t, body, "- smtp send: 451")
}

func TestRenderNoProcessedRows(t *testing.T) {
	stats := sampleStats()
	stats.Sent, stats.Skipped, stats.Failed, stats.DryRun = 0, 0, 0, 0

	subject, body := Render(stats)
	assert.Equal(t, "Outreach report: DEFAULT - 0 emails sent", subject)
	assert.Contains(t, body, "Success:     N/A")
}
