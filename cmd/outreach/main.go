package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"outreach-engine/internal/compose"
	"outreach-engine/internal/config"
	"outreach-engine/internal/discover"
	"outreach-engine/internal/domain"
	"outreach-engine/internal/filter"
	"outreach-engine/internal/mail"
	"outreach-engine/internal/pace"
	"outreach-engine/internal/pipeline"
	"outreach-engine/internal/report"
	"outreach-engine/internal/secrets"
	"outreach-engine/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath = flag.String("config", "config/config.yml", "path to config file")
		dryRun  = flag.Bool("dry-run", false, "force dry-run mode regardless of config")
	)
	flag.Parse()

	log := buildLogger()
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Errorw("config load failed", "path", *cfgPath, "err", err)
		return 2
	}
	cfg, validation := config.NormalizeAndValidate(cfg)
	for _, w := range validation.Warnings {
		log.Warnw("config warning", "warning", w)
	}
	if !validation.OK() {
		for _, e := range validation.Errors {
			log.Errorw("config error", "error", e)
		}
		return 2
	}
	if *dryRun {
		cfg.Sending.DryRun = true
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Errorw("store open failed", "backend", cfg.Storage.Backend, "err", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	transport, err := buildTransport(cfg, log)
	if err != nil {
		// missing transport credentials abort before any processing
		log.Errorw("transport setup failed", "err", err)
		return 1
	}

	orch := &pipeline.Orchestrator{
		Log:       log,
		Store:     st,
		Sources:   buildSources(cfg, log),
		Composer:  buildComposer(cfg, log),
		Transport: transport,
		Filter:    filter.New(cfg.Filters.RejectTitles, cfg.Filters.EmailPatterns),
		Pacer:     pace.New(cfg.SendInterval(), cfg.Sending.MaxPerDay),
		Reporter: &report.Reporter{
			Log:       log,
			Store:     st,
			Transport: transport,
			To:        cfg.Report.Email,
		},
		Profile:             buildProfile(cfg, log),
		Attachment:          cfg.Profile.ResumeFile,
		Mode:                cfg.App.Mode,
		SearchTerms:         cfg.Discovery.SearchTerms,
		Locations:           cfg.Discovery.Locations,
		Concurrency:         cfg.Discovery.Concurrency,
		UnitTimeout:         cfg.DiscoveryTimeout(),
		DomainCooldownDays:  cfg.Dedup.DomainCooldownDays,
		CompanyCooldownDays: cfg.Dedup.CompanyCooldownDays,
		DryRun:              cfg.Sending.DryRun,
		WeekendSkip:         cfg.Sending.WeekendSkip,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := orch.Run(ctx)
	if err != nil {
		log.Errorw("run aborted", "run_id", stats.RunID, "err", err)
		return 1
	}
	log.Infow("run complete",
		"run_id", stats.RunID,
		"scraped", stats.Scraped,
		"sent", stats.Sent,
		"dry_run", stats.DryRun,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"note", stats.Note,
	)
	return 0
}

func buildLogger() *zap.SugaredLogger {
	if os.Getenv("OUTREACH_DEBUG") != "" {
		l, _ := zap.NewDevelopment()
		return l.Sugar()
	}
	l, _ := zap.NewProduction()
	return l.Sugar()
}

func openStore(cfg config.Config) (store.Storage, error) {
	switch cfg.Storage.Backend {
	case "csv":
		return store.OpenCSV(cfg.Storage.CSVDir)
	default:
		return store.OpenSQLite(cfg.Storage.SQLitePath)
	}
}

func buildSources(cfg config.Config, log *zap.SugaredLogger) []discover.Source {
	limiter := discover.NewHostLimiter(2, 4)

	var sources []discover.Source
	if cfg.Discovery.Greenhouse.Enabled {
		sources = append(sources, discover.NewGreenhouse(cfg.Discovery.Greenhouse.Boards, limiter))
	}
	if cfg.Discovery.Lever.Enabled {
		sources = append(sources, discover.NewLever(cfg.Discovery.Lever.Boards, limiter))
	}
	if cfg.Discovery.Mailbox.Enabled {
		pw, err := secrets.Get(cfg.Discovery.Mailbox.KeyringAccount)
		if err != nil {
			log.Warnw("mailbox source disabled, no credential in keyring",
				"account", cfg.Discovery.Mailbox.KeyringAccount, "err", err)
		} else {
			sources = append(sources, discover.NewMailbox(cfg, pw))
		}
	}
	return sources
}

func buildComposer(cfg config.Config, log *zap.SugaredLogger) compose.Composer {
	// template last: composition then never fails a row on its own
	chain := compose.Chain{}
	if cfg.LLM.Enabled {
		key, err := secrets.Get(cfg.LLM.KeyringAccount)
		if err != nil {
			log.Warnw("llm composer disabled, no api key in keyring",
				"account", cfg.LLM.KeyringAccount, "err", err)
		} else {
			chain = append(chain, compose.NewLLM(cfg.LLM.BaseURL, key, cfg.LLM.Model))
		}
	}
	chain = append(chain, compose.Template{
		Subject: cfg.Template.Subject,
		Body:    cfg.Template.Body,
	})
	return chain
}

func buildProfile(cfg config.Config, log *zap.SugaredLogger) compose.Profile {
	p := compose.Profile{
		Name:       cfg.Profile.Name,
		Phone:      cfg.Profile.Phone,
		Portfolio:  cfg.Profile.Portfolio,
		GitHub:     cfg.Profile.GitHub,
		LinkedIn:   cfg.Profile.LinkedIn,
		ResumeLink: cfg.Profile.ResumeLink,
		MinWords:   cfg.Profile.MinWords,
		MaxWords:   cfg.Profile.MaxWords,
	}
	if cfg.Profile.ContextFile != "" {
		b, err := os.ReadFile(cfg.Profile.ContextFile)
		if err != nil {
			log.Warnw("context file not readable, composing without it",
				"path", cfg.Profile.ContextFile, "err", err)
		} else {
			p.Context = string(b)
		}
	}
	return p
}

func buildTransport(cfg config.Config, log *zap.SugaredLogger) (mail.Transport, error) {
	if cfg.SMTP.Host == "" {
		// dry-run without SMTP: nothing may be delivered, including the digest
		return nopTransport{log: log}, nil
	}
	password, err := secrets.Get(cfg.SMTP.KeyringAccount)
	if err != nil {
		if cfg.Sending.DryRun {
			log.Warnw("smtp credential missing, dry-run continues without transport", "err", err)
			return nopTransport{log: log}, nil
		}
		return nil, err
	}
	smtp := &mail.SMTP{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		From:       cfg.SMTP.From,
		SenderName: cfg.SMTP.SenderName,
		Username:   cfg.SMTP.Username,
		Password:   password,
		Log:        log,
	}
	return &mail.Retry{Next: smtp, Log: log}, nil
}

// nopTransport refuses every delivery. Used when no SMTP account is
// configured, which only dry-run setups may run with.
type nopTransport struct {
	log *zap.SugaredLogger
}

func (n nopTransport) Deliver(_ context.Context, to, subject, _, _ string) error {
	n.log.Infow("no transport configured, dropping message", "to", to, "subject", subject)
	return domain.DeliveryErr(fmt.Errorf("no smtp transport configured"), "deliver")
}
