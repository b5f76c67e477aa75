// Package app wires the map service components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/mohammed-shakir/botanitours-map/internal/cache/redisstore"
	"github.com/mohammed-shakir/botanitours-map/internal/clusters"
	"github.com/mohammed-shakir/botanitours-map/internal/core/config"
	"github.com/mohammed-shakir/botanitours-map/internal/core/model"
	"github.com/mohammed-shakir/botanitours-map/internal/core/router"
	"github.com/mohammed-shakir/botanitours-map/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/botanitours-map/internal/popup"
	"github.com/mohammed-shakir/botanitours-map/internal/session"
	"github.com/mohammed-shakir/botanitours-map/internal/staticdata"
	"github.com/mohammed-shakir/botanitours-map/internal/store"
	"github.com/mohammed-shakir/botanitours-map/internal/store/sqlitestore"
	"github.com/mohammed-shakir/botanitours-map/internal/strategy"
)

type App struct {
	cfg config.Config
	log *slog.Logger

	store    *sqlitestore.Store // nil when disabled or failed to open
	redis    *redisstore.Client // nil when the popup cache is off
	popups   *popup.Cached
	static   *staticdata.Loader
	sessions *session.Registry

	api http.Handler
}

// New builds the service. A store or Redis that cannot be reached is logged and
// left out; only bad configuration is an error.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	mapping, err := clusters.Parse(cfg.Clusters)
	if err != nil {
		return nil, fmt.Errorf("CLUSTERS: %w", err)
	}
	static, err := staticdata.New(os.DirFS(cfg.DataDir), cfg.StaticCacheSize)
	if err != nil {
		return nil, fmt.Errorf("static data: %w", err)
	}

	a := &App{cfg: cfg, log: log, static: static}

	var q store.Querier
	if cfg.StoreEnabled {
		st, err := sqlitestore.Open(ctx, cfg.DBPath, true)
		if err != nil {
			log.Error("store unavailable, live queries disabled", "path", cfg.DBPath, "err", err)
		} else {
			a.store = st
			q = st
		}
	}

	var describer popup.Describer = popup.NewResolver(q)
	if cfg.RedisAddr != "" {
		rc, err := redisstore.New(ctx, cfg.RedisAddr, redisstore.WithPoolSize(cfg.RedisPoolSize))
		if err != nil {
			log.Warn("popup cache disabled", "addr", cfg.RedisAddr, "err", err)
		} else {
			a.redis = rc
			a.popups = popup.NewCached(describer, rc, cfg.PopupCacheTTL, cfg.CacheOpTimeout, log)
			describer = a.popups
		}
	}

	f := cfg.Features
	a.sessions = session.NewRegistry(cfg.SessionMax, cfg.SessionTTL, session.Deps{
		Strategy: strategy.New(mapping, strategy.Options{
			GardenStaticFile:       f.GardenStaticFile,
			TextFilter:             f.TextFilter,
			PanToNearest:           f.PanToNearest,
			TextFilterSpatialBound: f.TextFilterSpatialBound,
			DiscardStaleResults:    f.DiscardStaleResults,
		}),
		Static:       static,
		Store:        q,
		Popups:       describer,
		Log:          log,
		QueryTimeout: cfg.QueryTimeout,
	})

	a.api = router.New(router.Deps{
		Sessions:    a.sessions,
		DefaultView: model.NewViewport(cfg.DefaultLon, cfg.DefaultLat, cfg.DefaultLon, cfg.DefaultLat, cfg.DefaultZoom),
		Log:         log,
	})
	return a, nil
}

func (a *App) API() http.Handler { return a.api }

func (a *App) Sessions() *session.Registry { return a.sessions }

// Readiness requires an open store when one is configured. Redis is reported
// but never blocks readiness since popups fall through to the store.
func (a *App) Readiness(ctx context.Context) (bool, map[string]string) {
	comps := map[string]string{}
	ready := true

	switch {
	case !a.cfg.StoreEnabled:
		comps["store"] = "disabled"
	case a.store == nil:
		comps["store"] = "down"
		ready = false
	case a.store.Ping(ctx) != nil:
		comps["store"] = "down"
		ready = false
	default:
		comps["store"] = "up"
	}

	if a.redis != nil {
		if err := a.redis.Ping(ctx); err != nil {
			comps["redis"] = "down"
		} else {
			comps["redis"] = "up"
		}
	}
	return ready, comps
}

// Invalidation returns the Kafka consumer, or nil when invalidation is off.
func (a *App) Invalidation() *kafkaconsumer.Consumer {
	ic := a.cfg.Invalidation
	if !ic.Enabled {
		return nil
	}
	kcfg := kafkaconsumer.NewConfig(ic.Brokers, ic.Topic, ic.GroupID)
	kcfg.LogLevel = a.cfg.LogLevel

	targets := kafkaconsumer.Targets{Sessions: a.sessions, Static: a.static}
	if a.popups != nil {
		targets.Popups = a.popups
	}
	return kafkaconsumer.New(kcfg, a.log, targets)
}

func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
