package config

// Built-in filter defaults, applied when the config leaves the lists
// empty. Overridable per install via filters.reject_titles and
// filters.email_patterns.

var defaultRejectTitles = []string{
	"teacher",
	"professor",
	"instructor",
	"tutor",
	"nurse",
	"nursing",
	"medical assistant",
	"healthcare",
	"cashier",
	"retail associate",
	"sales associate",
	"customer service",
	"call center",
	"receptionist",
	"driver",
	"security guard",
	"cleaning",
	"janitor",
	"hr manager",
	"hr coordinator",
	"recruiter",
	"talent acquisition",
	"accountant",
	"auditor",
	"lawyer",
	"paralegal",
	"chef",
	"cook",
	"warehouse",
	"electrician",
	"plumber",
	"mechanic",
}

// Addresses that accept applications but never a human reply.
var defaultEmailPatterns = []string{
	"starts_with:accommodation@",
	"contains:accessibility",
	"contains:accommodation",
	"contains:no-reply",
	"contains:noreply",
	"contains:do-not-reply",
}

var defaultTemplateSubject = "Software Engineer - Exploring Opportunities at {company}"

var defaultTemplateBody = `Hello,

I came across the {job_title} opening at {company} and wanted to reach out directly. I'm a software engineer actively looking for my next role, and the position looks like a strong match for my background.

I'd welcome the chance to share more about my experience and hear about the team's needs.

Best regards,
{contact_name}
{contact_phone}
Portfolio: {contact_portfolio}
GitHub: {contact_github}`
