package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/naqeebali-shamsi/intellifill/internal/extract"
	"github.com/naqeebali-shamsi/intellifill/internal/mapper"
	"github.com/naqeebali-shamsi/intellifill/internal/model"
	"github.com/naqeebali-shamsi/intellifill/internal/profile"
	"github.com/naqeebali-shamsi/intellifill/internal/reprocess"
	"github.com/naqeebali-shamsi/intellifill/internal/store"
	"github.com/naqeebali-shamsi/intellifill/internal/templates"
)

// appEnv holds the initialized store and pipeline services shared by the
// commands and the API server.
type appEnv struct {
	Store     store.Store
	Extractor *extract.Extractor
	Mapper    *mapper.Mapper
	Matcher   *templates.Matcher
	FormTypes map[string][]string
	Profiles  *profile.Service
	Reprocess *reprocess.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// queueDispatcher hands queued attempts to the external extraction queue.
// The queue collaborator is deployed separately; here the handoff is a
// structured log line the queue tails.
type queueDispatcher struct{}

func (queueDispatcher) Dispatch(_ context.Context, attempt model.ReprocessAttempt, settings model.ExtractionSettings) error {
	zap.L().Info("dispatching extraction job",
		zap.String("document_id", attempt.DocumentID),
		zap.Int("attempt", attempt.AttemptNumber),
		zap.Int("dpi", settings.DPI),
		zap.Duration("timeout", settings.Timeout),
		zap.String("priority", settings.Priority),
	)
	return nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "intellifill.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv sets up the store and builds the pipeline services. Callers should
// defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	patterns := extract.DefaultPatterns()
	if cfg.Extract.PatternsPath != "" {
		patterns, err = extract.LoadPatterns(cfg.Extract.PatternsPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		zap.L().Info("pattern library loaded", zap.Int("patterns", len(patterns)))
	}

	synonyms := mapper.DefaultSynonyms()
	if cfg.Mapper.SynonymsPath != "" {
		synonyms, err = mapper.LoadSynonyms(cfg.Mapper.SynonymsPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	formTypes := templates.DefaultFormTypeLibrary()
	if cfg.Templates.FormTypesPath != "" {
		formTypes, err = templates.LoadFormTypeLibrary(cfg.Templates.FormTypesPath)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	return &appEnv{
		Store:     st,
		Extractor: extract.New(patterns, cfg.Extract.NeutralConfidence),
		Mapper:    mapper.New(synonyms, cfg.Mapper.FuzzyThreshold, cfg.Mapper.MinConfidence),
		Matcher:   templates.NewMatcher(cfg.Templates.MinSimilarity, cfg.Templates.FuzzyThreshold),
		FormTypes: formTypes,
		Profiles:  profile.NewService(st, time.Duration(cfg.Profile.CacheTTLMinutes)*time.Minute),
		Reprocess: reprocess.NewService(st, queueDispatcher{}, reprocess.Config{
			MaxAttempts:   cfg.Reprocess.MaxAttempts,
			MaxBatchSize:  cfg.Reprocess.MaxBatchSize,
			DispatchRate:  cfg.Reprocess.DispatchRate,
			DispatchBurst: cfg.Reprocess.DispatchBurst,
			Concurrency:   cfg.Reprocess.Concurrency,
		}),
	}, nil
}
