package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/trii-invest/insightd/internal/audit"
	"github.com/trii-invest/insightd/internal/config"
	"github.com/trii-invest/insightd/internal/contextserver"
	"github.com/trii-invest/insightd/internal/db"
	"github.com/trii-invest/insightd/internal/embeddings"
	"github.com/trii-invest/insightd/internal/llm"
	"github.com/trii-invest/insightd/internal/logging"
	"github.com/trii-invest/insightd/internal/orchestrator"
	"github.com/trii-invest/insightd/internal/profiles"
	"github.com/trii-invest/insightd/internal/providers"
	"github.com/trii-invest/insightd/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `insightd init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	opts := logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	if verbose {
		opts.Level = "debug"
	}
	return logging.New(opts)
}

// backendSpec converts a configured backend into the factory's input.
func backendSpec(b config.BackendConfig) llm.BackendSpec {
	return llm.BackendSpec{
		Kind:      b.Kind,
		Model:     b.Model,
		Name:      b.Name,
		BaseURL:   b.BaseURL,
		ModelPath: b.ModelPath,
		RPM:       b.RPM,
		Options: llm.Options{
			Timeout:     time.Duration(b.TimeoutSeconds) * time.Second,
			MaxTokens:   b.MaxTokens,
			Temperature: b.Temperature,
		},
	}
}

// policyOverrides converts configured policy levels. Validate has already
// rejected unknown level names.
func policyOverrides(cfg *config.Config) orchestrator.Policies {
	if len(cfg.Policies) == 0 {
		return nil
	}
	out := make(orchestrator.Policies, len(cfg.Policies))
	for level, p := range cfg.Policies {
		out[orchestrator.Complexity(level)] = orchestrator.Policy{
			Preferred:   p.Preferred,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		}
	}
	return out
}

func fallbackChain(cfg *config.Config) []string {
	if len(cfg.Context.FallbackChain) > 0 {
		return cfg.Context.FallbackChain
	}
	return orchestrator.DefaultFallbackChain()
}

// newContextServer builds a context server with every configured backend
// registered but no providers.
func newContextServer(cfg *config.Config, logger *zap.Logger) (*contextserver.Server, error) {
	contexts := contextserver.New(
		contextserver.WithCacheTTL(time.Duration(cfg.Context.CacheTTLSeconds)*time.Second),
		contextserver.WithFallbackChain(fallbackChain(cfg)),
		contextserver.WithLogger(logger.Named("contextserver")),
	)
	for _, b := range cfg.Backends {
		a, err := llm.New(backendSpec(b))
		if err != nil {
			return nil, fmt.Errorf("creating backend %s: %w", b.ID(), err)
		}
		contexts.RegisterAdapter(a)
	}
	return contexts, nil
}

// app holds every component a long-running command needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *db.DB
	audit    *audit.Store
	profiles *profiles.Store
	users    *providers.UserProfile
	notes    *vectordb.ChromemStore
	contexts *contextserver.Server
	orch     *orchestrator.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}

	a.db, err = db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.audit = audit.NewStore(a.db)
	a.profiles = profiles.NewStore(a.db)

	a.contexts, err = newContextServer(cfg, logger)
	if err != nil {
		a.db.Close()
		return nil, err
	}

	a.contexts.RegisterProvider(providers.NewMarketData(providers.MarketDataConfig{
		BaseURL:     cfg.MarketData.BaseURL,
		AnalysisURL: cfg.MarketData.AnalysisURL,
		Timeout:     time.Duration(cfg.MarketData.TimeoutSeconds) * time.Second,
	}, logger.Named("marketdata")))

	a.users = providers.NewUserProfile(a.profiles)
	a.contexts.RegisterProvider(a.users)

	embedder, err := embeddings.New(cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	if err != nil {
		a.db.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	if embedder != nil {
		a.notes, err = vectordb.NewChromemStore(embedder)
		if err != nil {
			a.db.Close()
			return nil, fmt.Errorf("creating note store: %w", err)
		}
		if err := a.notes.Load(ctx, cfg.Notes.Dir); err != nil {
			logger.Warn("research notes not loaded, starting empty",
				zap.String("dir", cfg.Notes.Dir), zap.Error(err))
		}
		a.contexts.RegisterProvider(providers.NewResearchNotes(a.notes, cfg.Notes.TopK))
	}

	opts := []orchestrator.Option{
		orchestrator.WithPolicies(policyOverrides(cfg)),
		orchestrator.WithLogger(logger.Named("orchestrator")),
	}
	if cfg.Audit {
		opts = append(opts, orchestrator.WithRecorder(a.audit))
	}
	a.orch, err = orchestrator.New(a.contexts, opts...)
	if err != nil {
		a.db.Close()
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	return a, nil
}

// noteStore returns the note store as an interface value, nil when research
// notes are disabled.
func (a *app) noteStore() vectordb.NoteStore {
	if a.notes == nil {
		return nil
	}
	return a.notes
}

// Close persists research notes and releases the database.
func (a *app) Close() {
	if a.notes != nil {
		if err := os.MkdirAll(a.cfg.Notes.Dir, 0o755); err != nil {
			a.logger.Warn("creating notes directory", zap.Error(err))
		} else if err := a.notes.Persist(context.Background(), a.cfg.Notes.Dir); err != nil {
			a.logger.Warn("persisting research notes", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
