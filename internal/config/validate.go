package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string
	Warnings []string
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy with defaults filled in,
// plus everything a run would trip over later. Credential presence is
// checked at startup (keyring), not here.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Filters.RejectTitles = trimList(out.Filters.RejectTitles)
	out.Filters.EmailPatterns = trimList(out.Filters.EmailPatterns)
	out.Discovery.SearchTerms = trimList(out.Discovery.SearchTerms)
	out.Discovery.Locations = trimList(out.Discovery.Locations)
	out.Discovery.Mailbox.SubjectAny = trimList(out.Discovery.Mailbox.SubjectAny)

	// ---- Defaults ----

	if len(out.Filters.RejectTitles) == 0 {
		out.Filters.RejectTitles = append([]string(nil), defaultRejectTitles...)
	}
	if len(out.Filters.EmailPatterns) == 0 {
		out.Filters.EmailPatterns = append([]string(nil), defaultEmailPatterns...)
	}
	if out.Dedup.DomainCooldownDays <= 0 {
		out.Dedup.DomainCooldownDays = 5
	}
	if out.Dedup.CompanyCooldownDays <= 0 {
		out.Dedup.CompanyCooldownDays = 1
	}
	if out.Sending.IntervalSeconds <= 0 {
		out.Sending.IntervalSeconds = 30
	}
	if out.Discovery.Concurrency <= 0 {
		out.Discovery.Concurrency = 4
	}
	if out.Storage.Backend == "" {
		out.Storage.Backend = "sqlite"
	}
	if out.Template.Subject == "" {
		out.Template.Subject = defaultTemplateSubject
	}
	if out.Template.Body == "" {
		out.Template.Body = defaultTemplateBody
	}
	if out.App.Mode == "" {
		out.App.Mode = "default"
	}
	if out.Profile.MinWords <= 0 {
		out.Profile.MinWords = 120
	}
	if out.Profile.MaxWords <= 0 {
		out.Profile.MaxWords = 300
	}

	// ---- Validation rules ----

	switch out.Storage.Backend {
	case "sqlite":
		if strings.TrimSpace(out.Storage.SQLitePath) == "" {
			res.addErr("storage.sqlite_path is required when storage.backend=sqlite")
		}
	case "csv":
		if strings.TrimSpace(out.Storage.CSVDir) == "" {
			res.addErr("storage.csv_dir is required when storage.backend=csv")
		}
	default:
		res.addErr("storage.backend must be sqlite or csv, got %q", out.Storage.Backend)
	}

	anySource := out.Discovery.Greenhouse.Enabled || out.Discovery.Lever.Enabled || out.Discovery.Mailbox.Enabled
	if !anySource {
		res.addErr("no discovery sources enabled: enable greenhouse, lever or mailbox")
	}
	if len(out.Discovery.SearchTerms) == 0 {
		res.addWarn("discovery.search_terms is empty; every posting will match")
	}

	if out.Discovery.Mailbox.Enabled {
		if strings.TrimSpace(out.Discovery.Mailbox.IMAPHost) == "" {
			res.addErr("discovery.mailbox.imap_host is required when mailbox is enabled")
		}
		if strings.TrimSpace(out.Discovery.Mailbox.Username) == "" {
			res.addErr("discovery.mailbox.username is required when mailbox is enabled")
		}
	}

	if !out.Sending.DryRun {
		if strings.TrimSpace(out.SMTP.Host) == "" {
			res.addErr("smtp.host is required outside dry-run")
		}
		if strings.TrimSpace(out.SMTP.From) == "" {
			res.addErr("smtp.from is required outside dry-run")
		}
	}
	if out.Sending.MaxPerDay <= 0 {
		res.addWarn("sending.max_per_day is unset; the daily cap is disabled")
	}
	if out.Sending.IntervalSeconds < 10 {
		res.addWarn("sending.interval_seconds=%d is very low and may trip provider limits", out.Sending.IntervalSeconds)
	}

	if out.LLM.Enabled && strings.TrimSpace(out.LLM.Model) == "" {
		res.addErr("llm.model is required when llm.enabled=true")
	}
	if out.Report.Email == "" {
		res.addWarn("report.email is empty; run summaries will not be mailed")
	}

	return out, res
}
