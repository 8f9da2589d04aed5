// Package app builds the long-lived services shared by the binaries from a
// Config.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/categorymemory"
	"github.com/dvloznov/budget-bot/internal/config"
	"github.com/dvloznov/budget-bot/internal/gcsuploader"
	"github.com/dvloznov/budget-bot/internal/gemini"
	infraBQ "github.com/dvloznov/budget-bot/internal/infra/bigquery"
	"github.com/dvloznov/budget-bot/internal/ledger"
	"github.com/dvloznov/budget-bot/internal/pipeline"
)

// App holds the wired services. Storage and Gemini are nil when not configured.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Repo    *infraBQ.Repository
	Matcher *categorymemory.Matcher
	Chain   *categorize.Chain
	Ledger  *ledger.Service
	Storage *gcsuploader.Client
	Gemini  *gemini.Client
}

// New connects to BigQuery, and to GCS and Gemini when configured, and wires
// the matcher, categorisation chain and ledger on top.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.RequireProject(); err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	repo, err := infraBQ.NewRepository(ctx, infraBQ.Dataset{ProjectID: cfg.ProjectID, DatasetID: cfg.Dataset})
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	a := &App{Config: cfg, Log: log, Repo: repo}

	if cfg.Bucket != "" {
		storage, err := gcsuploader.NewClient(ctx, cfg.Bucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app.New: %w", err)
		}
		a.Storage = storage
	} else {
		log.Warn().Msg("No GCS bucket configured - receipt uploads will be disabled")
	}

	model, err := gemini.NewClient(ctx, cfg.GeminiModel, cfg.GeminiKey, log)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable - LLM categorization and receipt reading disabled")
	} else {
		a.Gemini = model
	}

	tuning := cfg.Tuning
	a.Matcher = categorymemory.NewMatcher(repo.MemoryStore(), tuning.Normalizer(), tuning.MatcherParams(), log)

	opts := categorize.Options{
		Memory:              a.Matcher,
		Patterns:            a.Matcher,
		Normalizer:          tuning.Normalizer(),
		BayesMinSamples:     tuning.Categorize.BayesMinSamples,
		BayesMinProbability: tuning.Categorize.BayesMinProbability,
	}
	if a.Gemini != nil {
		opts.LLM = a.Gemini
	}
	a.Chain = categorize.NewDefaultChain(opts, log)

	a.Ledger = ledger.NewService(tuning.Parser(), a.Chain, a.Matcher, repo, repo, tuning.Categorize.FallbackCategory, log).
		WithLimits(repo)

	return a, nil
}

// PipelineDeps returns the receipt pipeline collaborators, or nil when
// storage or the model is missing.
func (a *App) PipelineDeps() *pipeline.Deps {
	if a.Storage == nil || a.Gemini == nil {
		return nil
	}
	return &pipeline.Deps{
		Storage:         a.Storage,
		Analyzer:        a.Gemini,
		Categorizer:     a.Ledger,
		Transactions:    a.Repo,
		Memory:          a.Matcher,
		Currencies:      a.Config.Tuning.CurrencyTable(),
		DefaultCurrency: a.Config.Tuning.DefaultCurrency,
		Log:             a.Log,
	}
}

// Close releases the clients.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Log.Error().Err(err).Msg("Failed to close storage client")
		}
	}
	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil {
			a.Log.Error().Err(err).Msg("Failed to close BigQuery client")
		}
	}
}
