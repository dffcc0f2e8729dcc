// Package cli implements the collector's cobra subcommands.
package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/adapter/stooq"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/adapter/yahooquote"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/collect"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/config"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/metrics"
	"github.com/joungwon-dreams/joungwon-stocks-sub002/internal/platform/sqlite"
	collectedrepo "github.com/joungwon-dreams/joungwon-stocks-sub002/internal/repository/collected"
	executionrepo "github.com/joungwon-dreams/joungwon-stocks-sub002/internal/repository/execution"
	healthrepo "github.com/joungwon-dreams/joungwon-stocks-sub002/internal/repository/health"
	sourcerepo "github.com/joungwon-dreams/joungwon-stocks-sub002/internal/repository/source"
	targetrepo "github.com/joungwon-dreams/joungwon-stocks-sub002/internal/repository/target"
)

// app bundles everything a command needs. All state is instance-owned; the
// orchestrator's Shutdown closes the database.
type app struct {
	cfg      config.Config
	db       *sqlite.DB
	registry *prometheus.Registry

	sources    *sourcerepo.Repository
	targets    *targetrepo.Repository
	executions *executionrepo.Repository
	health     *healthrepo.Repository
	collected  *collectedrepo.Repository

	orch *collect.Orchestrator
}

func newApp() (*app, error) {
	cfg := config.Load()

	db, err := sqlite.Open(cfg.DBPath, sqlite.WithBusyTimeout(cfg.DBBusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{
		cfg:        cfg,
		db:         db,
		registry:   prometheus.NewRegistry(),
		sources:    sourcerepo.NewRepository(db.DB),
		targets:    targetrepo.NewRepository(db.DB),
		executions: executionrepo.NewRepository(db.DB),
		health:     healthrepo.NewRepository(db.DB),
		collected:  collectedrepo.NewRepository(db.DB),
	}

	factory := collect.NewFactory()
	factory.Register(yahooquote.Kind, func(src collect.Source) collect.Adapter {
		return yahooquote.New(src)
	})
	factory.Register(stooq.Kind, func(src collect.Source) collect.Adapter {
		return stooq.New(src)
	})

	a.orch = collect.NewOrchestrator(collect.Deps{
		Sources:          a.sources,
		Targets:          a.targets,
		Executions:       a.executions,
		Collected:        a.collected,
		Health:           a.health,
		Factory:          factory,
		Observer:         metrics.New(a.registry),
		MaxConcurrent:    cfg.MaxConcurrent,
		MaxRetries:       cfg.MaxRetries,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		DefaultRateLimit: cfg.DefaultRateLimit,
		TargetLimit:      cfg.TargetLimit,
		Closer:           db,
	})
	return a, nil
}

func (a *app) close() {
	_ = a.orch.Shutdown()
}

// targetsFromArgs builds ad-hoc targets from explicit ticker symbols.
func targetsFromArgs(args []string) []collect.Target {
	targets := make([]collect.Target, 0, len(args))
	for _, sym := range args {
		targets = append(targets, collect.Target{Symbol: sym, IsActive: true})
	}
	return targets
}
