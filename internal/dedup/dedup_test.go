package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"outreach-engine/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func rec(email, company string, sentAt time.Time) domain.ContactRecord {
	return domain.ContactRecord{
		Email:   email,
		Domain:  Domain(email),
		Company: company,
		SentAt:  sentAt,
	}
}

func TestCheckExactDuplicate(t *testing.T) {
	e := New([]domain.ContactRecord{rec("jane@acme.com", "Acme", day(-300))}, 5, 1)

	// an exact match never expires, regardless of how old the record is
	d := e.Check("Jane@Acme.com", "Other", day(0))
	assert.False(t, d.Allow)
	assert.Equal(t, domain.ReasonExactDuplicate, d.Reason)
}

func TestCheckDomainCooldownBoundary(t *testing.T) {
	e := New([]domain.ContactRecord{rec("jane@acme.com", "Acme", day(0))}, 5, 1)

	// day 4 is inside a 5-day window, day 5 is outside
	d := e.Check("john@acme.com", "Acme Inc", day(4))
	assert.False(t, d.Allow)
	assert.Equal(t, domain.ReasonDomainCooldown, d.Reason)

	d = e.Check("john@acme.com", "Other Co", day(5))
	assert.True(t, d.Allow)
}

func TestCheckCompanyCooldownBoundary(t *testing.T) {
	e := New([]domain.ContactRecord{rec("jane@acme.com", "Acme", day(0))}, 5, 1)

	// different domain, same company name: blocked same day only
	d := e.Check("jane@acme.io", "ACME", day(0))
	assert.False(t, d.Allow)
	assert.Equal(t, domain.ReasonCompanyCooldown, d.Reason)

	d = e.Check("jane@acme.io", "acme", day(1))
	assert.True(t, d.Allow)
}

func TestCheckRuleOrder(t *testing.T) {
	e := New([]domain.ContactRecord{rec("jane@acme.com", "Acme", day(0))}, 5, 1)

	// all three rules match; the exact rule reports first
	d := e.Check("jane@acme.com", "Acme", day(0))
	assert.Equal(t, domain.ReasonExactDuplicate, d.Reason)

	// domain beats company
	d = e.Check("other@acme.com", "Acme", day(0))
	assert.Equal(t, domain.ReasonDomainCooldown, d.Reason)
}

func TestCheckDoesNotRecord(t *testing.T) {
	e := New(nil, 5, 1)

	for range 3 {
		d := e.Check("jane@acme.com", "Acme", day(0))
		assert.True(t, d.Allow)
	}

	e.Record(rec("jane@acme.com", "Acme", day(0)))
	d := e.Check("jane@acme.com", "Acme", day(0))
	assert.False(t, d.Allow)
}

func TestCheckCalendarDaysNotElapsedHours(t *testing.T) {
	// 23:30 yesterday to 00:30 today is one calendar day apart even though
	// only an hour elapsed
	sent := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	now := time.Date(2026, 3, 2, 0, 30, 0, 0, time.UTC)
	e := New([]domain.ContactRecord{rec("jane@acme.com", "Acme", sent)}, 5, 1)

	d := e.Check("jane@acme.io", "Acme", now)
	assert.True(t, d.Allow, "company cooldown of 1 day should be over")
}

func TestNewDefaults(t *testing.T) {
	e := New(nil, 0, -1)
	assert.Equal(t, DefaultDomainCooldownDays, e.domainDays)
	assert.Equal(t, DefaultCompanyCooldownDays, e.companyDays)
}

func TestDomain(t *testing.T) {
	assert.Equal(t, "acme.com", Domain("Jane@Acme.COM"))
	assert.Equal(t, "", Domain("not-an-address"))
	assert.Equal(t, "", Domain(""))
}
