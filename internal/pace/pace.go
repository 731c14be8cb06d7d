// Package pace spreads sends out over time and caps them per day.
package pace

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const DefaultInterval = 30 * time.Second

// Pacer grants send slots: Wait blocks until the configured interval has
// elapsed since the previous slot, TakeQuota enforces the per-day cap.
// The quota counter resets when the calendar day changes.
type Pacer struct {
	lim *rate.Limiter

	mu        sync.Mutex
	day       string
	used      int
	maxPerDay int
}

func New(interval time.Duration, maxPerDay int) *Pacer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pacer{
		lim:       rate.NewLimiter(rate.Every(interval), 1),
		maxPerDay: maxPerDay,
	}
}

// Wait blocks until the next slot is available or ctx is done. The first
// slot of a run is granted immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}

// RemainingQuota returns how many sends are left for the given day.
// A non-positive cap means unlimited.
func (p *Pacer) RemainingQuota(day time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roll(day)
	if p.maxPerDay <= 0 {
		return int(^uint(0) >> 1)
	}
	left := p.maxPerDay - p.used
	if left < 0 {
		return 0
	}
	return left
}

// TakeQuota consumes one slot from the daily cap. It returns false once
// the cap is exhausted, without consuming anything.
func (p *Pacer) TakeQuota(day time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roll(day)
	if p.maxPerDay > 0 && p.used >= p.maxPerDay {
		return false
	}
	p.used++
	return true
}

func (p *Pacer) roll(day time.Time) {
	key := day.UTC().Format("2006-01-02")
	if key != p.day {
		p.day = key
		p.used = 0
	}
}
