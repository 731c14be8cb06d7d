package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Board struct {
	Slug string `yaml:"slug"`
	Name string `yaml:"name"`
}

type Config struct {
	App struct {
		DataDir string `yaml:"data_dir"`
		Mode    string `yaml:"mode"` // free-form label carried into run stats
	} `yaml:"app"`

	Storage struct {
		Backend    string `yaml:"backend"` // sqlite | csv
		SQLitePath string `yaml:"sqlite_path"`
		CSVDir     string `yaml:"csv_dir"`
	} `yaml:"storage"`

	Discovery struct {
		Concurrency    int      `yaml:"concurrency"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		SearchTerms    []string `yaml:"search_terms"`
		Locations      []string `yaml:"locations"`

		Greenhouse struct {
			Enabled bool    `yaml:"enabled"`
			Boards  []Board `yaml:"boards"`
		} `yaml:"greenhouse"`

		Lever struct {
			Enabled bool    `yaml:"enabled"`
			Boards  []Board `yaml:"boards"`
		} `yaml:"lever"`

		Mailbox struct {
			Enabled        bool     `yaml:"enabled"`
			IMAPHost       string   `yaml:"imap_host"`
			IMAPPort       int      `yaml:"imap_port"`
			Username       string   `yaml:"username"`
			Mailbox        string   `yaml:"mailbox"`
			SubjectAny     []string `yaml:"subject_any"`
			KeyringAccount string   `yaml:"keyring_account"`
		} `yaml:"mailbox"`
	} `yaml:"discovery"`

	Filters struct {
		RejectTitles  []string `yaml:"reject_titles"`
		EmailPatterns []string `yaml:"email_patterns"`
	} `yaml:"filters"`

	Dedup struct {
		DomainCooldownDays  int `yaml:"domain_cooldown_days"`
		CompanyCooldownDays int `yaml:"company_cooldown_days"`
	} `yaml:"dedup"`

	Sending struct {
		IntervalSeconds int  `yaml:"interval_seconds"`
		MaxPerDay       int  `yaml:"max_per_day"`
		DryRun          bool `yaml:"dry_run"`
		WeekendSkip     bool `yaml:"weekend_skip"`
	} `yaml:"sending"`

	SMTP struct {
		Host           string `yaml:"host"`
		Port           int    `yaml:"port"`
		From           string `yaml:"from"`
		SenderName     string `yaml:"sender_name"`
		Username       string `yaml:"username"`
		KeyringAccount string `yaml:"keyring_account"`
	} `yaml:"smtp"`

	LLM struct {
		Enabled        bool   `yaml:"enabled"`
		BaseURL        string `yaml:"base_url"`
		Model          string `yaml:"model"`
		KeyringAccount string `yaml:"keyring_account"`
	} `yaml:"llm"`

	Profile struct {
		Name        string `yaml:"name"`
		Phone       string `yaml:"phone"`
		Portfolio   string `yaml:"portfolio"`
		GitHub      string `yaml:"github"`
		LinkedIn    string `yaml:"linkedin"`
		ResumeLink  string `yaml:"resume_link"`
		ResumeFile  string `yaml:"resume_file"`
		ContextFile string `yaml:"context_file"`
		MinWords    int    `yaml:"min_words"`
		MaxWords    int    `yaml:"max_words"`
	} `yaml:"profile"`

	Template struct {
		Subject string `yaml:"subject"`
		Body    string `yaml:"body"`
	} `yaml:"template"`

	Report struct {
		Email string `yaml:"email"`
	} `yaml:"report"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) SendInterval() time.Duration {
	if c.Sending.IntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Sending.IntervalSeconds) * time.Second
}

func (c Config) DiscoveryTimeout() time.Duration {
	if c.Discovery.TimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Discovery.TimeoutSeconds) * time.Second
}
