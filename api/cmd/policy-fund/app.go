package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"policy-fund-backend/api/internal/config"
	"policy-fund-backend/api/internal/handle"
	"policy-fund-backend/api/internal/llm"
	"policy-fund-backend/api/internal/llm/gemini"
	"policy-fund-backend/api/internal/llm/gpt"
	"policy-fund-backend/api/internal/llm/openai"
	"policy-fund-backend/api/internal/metrics"
	"policy-fund-backend/api/internal/prompt"
	"policy-fund-backend/api/internal/service"
	"policy-fund-backend/api/internal/store"
)

const usageQueueSize = 256

// app is the wiring shared by serve and bot.
type app struct {
	svc *service.Service

	db     *sql.DB
	repo   *store.UsageRepo
	gemini *gemini.Engine

	stopWriter context.CancelFunc
	writerWG   sync.WaitGroup
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	composer, err := prompt.New(prompt.Config{
		ChatPersona: cfg.ChatPersona,
		BlogPersona: cfg.BlogPersona,
		Disclaimer:  cfg.Disclaimer,
	})
	if err != nil {
		return nil, err
	}

	a := &app{}
	engines := a.buildEngines(ctx, cfg, log)

	var usage chan store.UsageEvent
	if cfg.DatabaseURL != "" {
		db, err := openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info("db connected", zap.String("dsn", safeDSNSummary(cfg.DatabaseURL)))

		a.db = db
		a.repo = store.NewUsageRepo(db)
		if err := a.repo.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}

		usage = make(chan store.UsageEvent, usageQueueSize)
		wctx, cancel := context.WithCancel(context.Background())
		a.stopWriter = cancel
		a.writerWG.Add(1)
		go func() {
			defer a.writerWG.Done()
			runUsageWriter(wctx, usage, a.repo, log)
		}()
	}

	a.svc = service.New(service.Options{
		Composer: composer,
		Engines:  engines,
		Provider: cfg.Provider,
		Timeout:  cfg.UpstreamTimeout,
		Logger:   log,
		Usage:    usage,
	})
	name, model := a.svc.Provider()
	log.Info("llm provider selected", zap.String("provider", name), zap.String("model", model))
	return a, nil
}

// buildEngines constructs every variant. One that cannot be built is replaced
// by llm.Unavailable so that requests fail with a configuration error.
func (a *app) buildEngines(ctx context.Context, cfg *config.Config, log *zap.Logger) *llm.Engines {
	engs := &llm.Engines{}

	if e, err := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, nil); err != nil {
		engs.OpenAIChat = unavailable(llm.ProviderOpenAIChat, cfg, err, log)
	} else {
		engs.OpenAIChat = e
	}

	if e, err := gpt.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIReasoningEffort, cfg.OpenAIBaseURL); err != nil {
		engs.OpenAIResponses = unavailable(llm.ProviderOpenAIResponses, cfg, err, log)
	} else {
		engs.OpenAIResponses = e
	}

	if e, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel); err != nil {
		engs.Gemini = unavailable(llm.ProviderGemini, cfg, err, log)
	} else {
		engs.Gemini = e
		a.gemini = e
	}
	return engs
}

func unavailable(provider string, cfg *config.Config, err error, log *zap.Logger) llm.Engine {
	if provider == cfg.Provider {
		log.Warn("selected llm provider is unavailable", zap.String("provider", provider), zap.Error(err))
	}
	if !errors.Is(err, llm.ErrConfiguration) {
		err = fmt.Errorf("%w: %v", llm.ErrConfiguration, err)
	}
	return &llm.Unavailable{Provider: provider, Err: err}
}

// pinger returns the database for /healthz, or nil when none is configured.
func (a *app) pinger() handle.Pinger {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

// Close stops the usage writer after it drains and releases clients.
func (a *app) Close() {
	if a.stopWriter != nil {
		a.stopWriter()
		a.writerWG.Wait()
	}
	if a.gemini != nil {
		_ = a.gemini.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// usageRecorder is the part of *store.UsageRepo the writer needs.
type usageRecorder interface {
	Record(ctx context.Context, e store.UsageEvent) error
}

// runUsageWriter reads usage events from the channel and persists them.
// On context cancellation it drains remaining events before returning.
func runUsageWriter(ctx context.Context, ch <-chan store.UsageEvent, repo usageRecorder, log *zap.Logger) {
	record := func(ctx context.Context, e store.UsageEvent) {
		if err := repo.Record(ctx, e); err != nil {
			metrics.UsageRecordErrorsTotal.Inc()
			log.Warn("usage write error", zap.Error(err))
			return
		}
		metrics.UsageRecordedTotal.Inc()
	}

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			record(ctx, e)
		case <-ctx.Done():
			for {
				select {
				case e, ok := <-ch:
					if !ok {
						return
					}
					record(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}
