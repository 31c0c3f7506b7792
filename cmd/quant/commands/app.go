package commands

import (
	"context"
	"fmt"

	"github.com/wonny/factorlab/internal/audit"
	"github.com/wonny/factorlab/internal/backtest"
	"github.com/wonny/factorlab/internal/calendar"
	"github.com/wonny/factorlab/internal/s0_data"
	"github.com/wonny/factorlab/internal/s1_universe"
	"github.com/wonny/factorlab/pkg/config"
	"github.com/wonny/factorlab/pkg/database"
	"github.com/wonny/factorlab/pkg/logger"
	"github.com/wonny/factorlab/pkg/redis"
)

// app holds the dependencies shared by every command
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	cache  *redis.Client
	cal    *calendar.Calendar
	prices *s0_data.PriceRepository
	runs   *audit.Repository
	engine *backtest.GroupEngine
}

// loadConfig reads the environment and applies the global flags
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, logger.New(cfg), nil
}

// bootstrap connects to PostgreSQL and Redis, loads the trading calendar and
// listings once and wires the group engine.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 1. Connect to database
	db, err := database.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 2. Redis (비활성 시 모든 조회는 캐시 miss)
	cache, err := redis.New(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 3. Trading calendar
	cal, err := calendar.Load(ctx, calendar.NewCachedRepository(calendar.NewRepository(db.Pool), cache))
	if err != nil {
		cache.Close()
		db.Close()
		return nil, fmt.Errorf("load calendar: %w", err)
	}

	// 4. Universe provider (listings loaded once)
	membership := s1_universe.NewCachedSource(s1_universe.NewRepository(db.Pool), cache)
	provider := s1_universe.NewProvider(membership, cal, cfg.Backtest.NewListingDays, log)
	if err := provider.Load(ctx); err != nil {
		cache.Close()
		db.Close()
		return nil, fmt.Errorf("load listings: %w", err)
	}

	prices := s0_data.NewPriceRepository(db.Pool)
	engine := backtest.NewGroupEngine(backtest.Deps{
		Factors:      s0_data.NewFactorRepository(db.Pool),
		Prices:       prices,
		Fundamentals: s0_data.NewFundamentalRepository(db.Pool),
		Universe:     provider,
		Calendar:     cal,
		Workers:      cfg.Backtest.UniverseWorkers,
	}, log)

	log.WithFields(map[string]interface{}{
		"calendar_from": cal.First().Format("2006-01-02"),
		"calendar_to":   cal.Last().Format("2006-01-02"),
		"redis":         cache.Enabled(),
	}).Info("Dependencies initialized")

	return &app{
		cfg:    cfg,
		log:    log,
		db:     db,
		cache:  cache,
		cal:    cal,
		prices: prices,
		runs:   audit.NewRepository(db.Pool),
		engine: engine,
	}, nil
}

// Close releases the connections
func (a *app) Close() {
	a.cache.Close()
	a.db.Close()
}
