package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/cache/memory"
	"github.com/kitbuilder587/ba-analyser/internal/config"
	"github.com/kitbuilder587/ba-analyser/internal/domain"
	"github.com/kitbuilder587/ba-analyser/internal/llm"
	"github.com/kitbuilder587/ba-analyser/internal/llm/anthropic"
	"github.com/kitbuilder587/ba-analyser/internal/llm/mock"
	"github.com/kitbuilder587/ba-analyser/internal/llm/openrouter"
	"github.com/kitbuilder587/ba-analyser/internal/metrics"
	"github.com/kitbuilder587/ba-analyser/internal/repository"
	"github.com/kitbuilder587/ba-analyser/internal/repository/postgres"
	"github.com/kitbuilder587/ba-analyser/internal/repository/sqlite"
	"github.com/kitbuilder587/ba-analyser/internal/session"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

// app - все зависимости одного запуска команды
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	llm      llm.Client
	cache    *memory.Cache[analyser.Detection]
	detector *analyser.Detector
	factory  *analyser.Factory
	stories  *stories.Generator
	repo     repository.IterationRepository
	closers  []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts options) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: opts.metrics,
	}
	if a.metrics == nil {
		a.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	}

	base := opts.llm
	if base == nil {
		var err error
		base, err = newProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	// ретраи снаружи: каждая попытка попадает в метрики
	a.llm = llm.NewRetryingClient(
		llm.NewInstrumentedClient(base, a.metrics),
		llm.RetryConfig{
			MaxAttempts: cfg.LLM.Retry.Attempts,
			MinWait:     cfg.LLM.Retry.MinWait,
			MaxWait:     cfg.LLM.Retry.MaxWait,
		},
		logger,
	)

	a.cache = memory.New[analyser.Detection]()
	a.closers = append(a.closers, a.cache.Stop)

	a.detector = analyser.NewDetector(analyser.DetectorDeps{
		LLM:     a.llm,
		Cache:   a.cache,
		TTL:     cfg.Cache.TTL,
		Logger:  logger,
		Metrics: a.metrics,
	})
	a.factory = analyser.NewFactory(analyser.Deps{
		LLM:         a.llm,
		Logger:      logger,
		Metrics:     a.metrics,
		Temperature: cfg.LLM.Temperature,
		Concurrency: cfg.Analysis.DimensionConcurrency,
	})
	a.stories = stories.New(stories.Deps{
		LLM:                   a.llm,
		Logger:                logger,
		Temperature:           cfg.LLM.Temperature,
		GenerationTemperature: cfg.LLM.GenerationTemperature,
	})

	repo, closeRepo, err := openStore(ctx, cfg.Store)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.repo = repo
	a.closers = append(a.closers, closeRepo)

	logger.Debug("application initialised",
		zap.String("provider", a.llm.Name()),
		zap.String("store", cfg.Store.Type),
	)
	return a, nil
}

func newProvider(cfg *config.Config, logger *zap.Logger) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(anthropic.Config{
			APIKey:      cfg.LLM.Anthropic.APIKey,
			Model:       cfg.LLM.Anthropic.Model,
			BaseURL:     cfg.LLM.Anthropic.BaseURL,
			Timeout:     cfg.LLM.Timeout,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, logger), nil
	case config.ProviderOpenRouter:
		return openrouter.New(openrouter.Config{
			APIKey:      cfg.LLM.OpenRouter.APIKey,
			Model:       cfg.LLM.OpenRouter.Model,
			BaseURL:     cfg.LLM.OpenRouter.BaseURL,
			Timeout:     cfg.LLM.Timeout,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, logger), nil
	case config.ProviderMock:
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownProvider, cfg.LLM.Provider)
	}
}

// openStore - архив итераций по STORE_TYPE
func openStore(ctx context.Context, cfg config.StoreConfig) (repository.IterationRepository, func(), error) {
	switch cfg.Type {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return sqlite.NewIterationRepo(db), func() { db.Close() }, nil
	case config.StorePostgres:
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		return postgres.NewIterationRepo(db), db.Close, nil
	default:
		return repository.NewMemoryIterationRepository(), func() {}, nil
	}
}

func (a *app) newAnalyser(t domain.ArtifactType) analyser.Analyser {
	return a.factory.ForType(t)
}

func (a *app) newSessions() *session.Manager {
	return session.NewManager(session.Deps{
		NewAnalyser: a.newAnalyser,
		LLM:         a.llm,
		Repo:        a.repo,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.logger.Sync()
}
