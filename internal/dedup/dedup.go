// Package dedup decides whether a candidate recipient may be contacted,
// based on the append-only contact history.
//
// Cooldown windows use calendar-day difference, not elapsed duration: a
// send N days ago is outside an N-day window, N-1 days ago is inside.
// Callers pass one fixed now per run so the boundary is stable across the
// whole batch.
package dedup

import (
	"strings"
	"time"

	"outreach-engine/internal/domain"
)

const (
	DefaultDomainCooldownDays  = 5
	DefaultCompanyCooldownDays = 1
)

// Decision is the outcome of one Check.
type Decision struct {
	Allow  bool
	Reason string
}

var allow = Decision{Allow: true}

func skip(reason string) Decision { return Decision{Reason: reason} }

// Engine evaluates candidates against contact records. Check never
// records: advancing the history after a confirmed send is the explicit
// Record call, so a failed delivery cannot consume dedup state.
type Engine struct {
	domainDays  int
	companyDays int
	records     []domain.ContactRecord
}

func New(records []domain.ContactRecord, domainDays, companyDays int) *Engine {
	if domainDays <= 0 {
		domainDays = DefaultDomainCooldownDays
	}
	if companyDays <= 0 {
		companyDays = DefaultCompanyCooldownDays
	}
	return &Engine{
		domainDays:  domainDays,
		companyDays: companyDays,
		records:     append([]domain.ContactRecord(nil), records...),
	}
}

// Check evaluates the rules in order, first match wins:
//  1. exact address already contacted
//  2. same domain within the domain cooldown
//  3. same company (case-insensitive) within the company cooldown
func (e *Engine) Check(email, company string, now time.Time) Decision {
	email = strings.ToLower(strings.TrimSpace(email))
	dom := Domain(email)
	company = strings.ToLower(strings.TrimSpace(company))

	for _, rec := range e.records {
		if strings.ToLower(rec.Email) == email {
			return skip(domain.ReasonExactDuplicate)
		}
	}
	for _, rec := range e.records {
		if dom != "" && strings.ToLower(rec.Domain) == dom {
			if daysBetween(rec.SentAt, now) < e.domainDays {
				return skip(domain.ReasonDomainCooldown)
			}
		}
	}
	for _, rec := range e.records {
		if company != "" && strings.ToLower(rec.Company) == company {
			if daysBetween(rec.SentAt, now) < e.companyDays {
				return skip(domain.ReasonCompanyCooldown)
			}
		}
	}
	return allow
}

// Record appends a confirmed send to the in-memory view. The caller is
// responsible for the durable append to storage.
func (e *Engine) Record(rec domain.ContactRecord) {
	e.records = append(e.records, rec)
}

// Domain returns the part after '@', lowercased, or "".
func Domain(email string) string {
	_, dom, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(dom))
}

// daysBetween counts whole calendar days from a to b, ignoring time of day.
func daysBetween(a, b time.Time) int {
	au := a.UTC()
	bu := b.UTC()
	ad := time.Date(au.Year(), au.Month(), au.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(bu.Year(), bu.Month(), bu.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad) / (24 * time.Hour))
}
