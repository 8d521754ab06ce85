package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pleiade/zoneshare/internal/analysis"
	"github.com/pleiade/zoneshare/internal/db"
	"github.com/pleiade/zoneshare/internal/metrics"
	"github.com/pleiade/zoneshare/internal/source"
)

// appEnv holds the collaborators shared by the subcommands.
type appEnv struct {
	Pool     *pgxpool.Pool
	Loader   *source.Loader
	Metrics  *metrics.Provider
	Analyzer *analysis.Analyzer
}

// Close releases the database pool, if any.
func (e *appEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// initEnv validates the configuration and wires the loader and analyzer. The
// PostGIS pool is only opened when database.url is set.
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env := &appEnv{Metrics: metrics.New()}
	if cfg.Database.URL != "" {
		pool, err := db.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, eris.Wrap(err, "connect database")
		}
		env.Pool = pool
		env.Loader = source.NewLoader(pool)
	} else {
		env.Loader = source.NewLoader(nil)
	}

	a, err := analysis.New(cfg, env.Loader, analysis.WithRecorder(env.Metrics))
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init analyzer")
	}
	env.Analyzer = a

	zap.L().Debug("environment ready",
		zap.Bool("database", env.Pool != nil),
		zap.Int("layers", len(cfg.Layers)),
	)
	return env, nil
}
