package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/evidence"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/extract"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/knowledge"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/notify"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/scheduler"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/task"
	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/textgen"
)

// appEnv bundles the wired collaborators a command needs.
type appEnv struct {
	registry  task.Registry
	scheduler *scheduler.Scheduler
	extractor *extract.Extractor
}

func (e *appEnv) Close() {
	if err := e.registry.Close(); err != nil {
		zap.L().Warn("registry close failed", zap.Error(err))
	}
}

// initEnv validates config for the given mode and wires the full stack.
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	registry, err := initRegistry(ctx)
	if err != nil {
		return nil, err
	}

	providers := []textgen.Provider{
		textgen.NewAnthropicProvider(cfg.Anthropic.Key, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens),
	}
	if cfg.OpenAI.Key != "" {
		providers = append(providers, textgen.NewOpenAIProvider(
			cfg.OpenAI.Key, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens,
			textgen.WithOpenAIBaseURL(cfg.OpenAI.BaseURL)))
	}
	client := textgen.NewFailover(time.Duration(cfg.Generate.CallTimeoutSecs)*time.Second, providers...)

	fetcher := evidence.NewFetcher(
		evidence.NewClassifier(cfg.Fetch.Tier1Domains, cfg.Fetch.Tier2Domains),
		evidence.WithMaxConcurrency(cfg.Fetch.MaxConcurrency),
		evidence.WithTimeout(time.Duration(cfg.Fetch.TimeoutSecs)*time.Second),
		evidence.WithMaxBodyChars(cfg.Fetch.MaxBodyChars),
		evidence.WithUserAgent(cfg.Fetch.UserAgent),
	)

	extractOpts := []extract.ExtractorOption{
		extract.WithPdfTools(cfg.Extract.PdfToTextPath, cfg.Extract.PdfToPpmPath),
		extract.WithOCRCharMinimum(cfg.Extract.OCRCharMinimum),
	}
	if cfg.Mistral.Key != "" {
		extractOpts = append(extractOpts, extract.WithOCR(extract.NewMistralOCR(cfg.Mistral.Key, cfg.Mistral.Model)))
	}
	extractor := extract.NewExtractor(extractOpts...)

	opts := []scheduler.Option{scheduler.WithTemperature(cfg.Generate.Temperature)}
	if notifier := initNotifier(); notifier != nil {
		opts = append(opts, scheduler.WithNotifier(notifier))
	}

	sched := scheduler.New(client, fetcher, knowledge.NewCorpus(cfg.Knowledge.Dir), registry, opts...)

	return &appEnv{
		registry:  registry,
		scheduler: sched,
		extractor: extractor,
	}, nil
}

// initRegistry opens the configured task registry backend.
func initRegistry(ctx context.Context) (task.Registry, error) {
	switch cfg.Registry.Driver {
	case "", "memory":
		return task.NewMemory(), nil
	case "sqlite":
		return task.NewSQLite(cfg.Registry.SQLitePath)
	case "postgres":
		return task.NewPostgres(ctx, cfg.Registry.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown registry driver %q", cfg.Registry.Driver)
	}
}

// initNotifier builds the completion notifier fan-out, or nil when no
// channel is configured.
func initNotifier() notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.NotionToken != "" && cfg.Notify.NotionDatabaseID != "" {
		notifiers = append(notifiers, notify.NewNotion(cfg.Notify.NotionToken, cfg.Notify.NotionDatabaseID))
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notify.NewMulti(notifiers...)
}
