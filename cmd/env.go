package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scanvoice/review-engine/internal/confidence"
	"github.com/scanvoice/review-engine/internal/correction"
	"github.com/scanvoice/review-engine/internal/jobstatus"
	"github.com/scanvoice/review-engine/internal/store"
)

// reviewEnv bundles the collaborators most commands need.
type reviewEnv struct {
	Store   store.Store
	Service *correction.Service
	Engine  jobstatus.Engine
}

func (e *reviewEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "review.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initEnv(ctx context.Context) (*reviewEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	confCfg, err := loadConfidenceConfig()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var engine jobstatus.Engine
	if cfg.Engine.BaseURL != "" {
		engine = jobstatus.NewHTTPEngine(
			cfg.Engine.BaseURL,
			cfg.Engine.PollPerSecond,
			time.Duration(cfg.Engine.TimeoutSecs)*time.Second,
		)
	} else {
		zap.L().Debug("REVIEW_ENGINE_BASE_URL not set, job status lookups disabled")
	}

	return &reviewEnv{
		Store:   st,
		Service: correction.NewService(st, confidence.NewModel(confCfg), nil),
		Engine:  engine,
	}, nil
}

func loadConfidenceConfig() (*confidence.Config, error) {
	if cfg.Confidence.WeightsFile == "" {
		return nil, nil
	}
	c, err := confidence.LoadConfig(cfg.Confidence.WeightsFile)
	if err != nil {
		return nil, eris.Wrapf(err, "load confidence weights from %s", cfg.Confidence.WeightsFile)
	}
	zap.L().Info("confidence weights loaded", zap.String("file", cfg.Confidence.WeightsFile))
	return c, nil
}
