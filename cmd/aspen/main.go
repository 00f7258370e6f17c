package main

import (
	"context"
	"fmt"
	"os"

	"github.com/josephdodge8141/aspen-backend/api"
	"github.com/josephdodge8141/aspen-backend/bootstrap"
	"github.com/josephdodge8141/aspen-backend/clients"
	"github.com/josephdodge8141/aspen-backend/config"
	"github.com/josephdodge8141/aspen-backend/database"
	"github.com/josephdodge8141/aspen-backend/database/migration"
	"github.com/josephdodge8141/aspen-backend/engine"
	"github.com/josephdodge8141/aspen-backend/httpclient"
	"github.com/josephdodge8141/aspen-backend/nodes"
	"github.com/josephdodge8141/aspen-backend/observability"
	"github.com/josephdodge8141/aspen-backend/runs"
	"github.com/josephdodge8141/aspen-backend/server"
	"github.com/josephdodge8141/aspen-backend/sse"
	"github.com/josephdodge8141/aspen-backend/store"
	"github.com/josephdodge8141/aspen-backend/store/memory"
	"github.com/josephdodge8141/aspen-backend/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aspen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	var cfg appConfig
	if err := config.LoadConfig("aspen", &cfg); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}
	log := app.Logger

	// Telemetry is optional; when enabled both providers export to the same
	// OTLP endpoint and are flushed on shutdown.
	var metrics *observability.Metrics
	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName:    cfg.Name,
			ServiceVersion: cfg.Version,
			Environment:    cfg.Environment,
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			SampleRate:     cfg.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		app.OnStop(func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		})

		mc := observability.DefaultMeterConfig(cfg.Name)
		mc.ServiceVersion = cfg.Version
		mc.Environment = cfg.Environment
		mc.Endpoint = cfg.Tracing.Endpoint
		mc.Insecure = cfg.Tracing.Insecure
		mp, err := observability.InitMeter(ctx, &mc)
		if err != nil {
			return fmt.Errorf("initializing meter: %w", err)
		}
		app.OnStop(func(ctx context.Context) error {
			return mp.Shutdown(ctx)
		})
		if metrics, err = observability.NewMetrics(observability.Meter(cfg.Name)); err != nil {
			return fmt.Errorf("building metric instruments: %w", err)
		}
	}

	// Node service backends share one outbound HTTP client.
	hc, err := httpclient.New(cfg.HTTP, log)
	if err != nil {
		return fmt.Errorf("building http client: %w", err)
	}
	deps := clients.Build(cfg.Clients, hc)
	deps.ExprTimeout = cfg.Engine.ExprTimeout
	services := nodes.NewRegistry(deps)

	runReg := runs.NewRegistry(
		runs.WithTTL(cfg.Runs.TTL),
		runs.WithGCInterval(cfg.Runs.GCInterval),
		runs.WithLogger(log),
	)
	app.OnStop(func(context.Context) error {
		runReg.Close()
		return nil
	})

	sseComp := sse.NewComponent("/api/v1/runs/:id/events")
	if err := app.RegisterComponent(sseComp); err != nil {
		return err
	}

	var dbComp *database.Component
	if cfg.Database.Enabled {
		dbComp = database.NewComponent(cfg.Database, log).
			WithMigrator(migration.NewRunner(log, postgres.Migrations...))
		if err := app.RegisterComponent(dbComp); err != nil {
			return err
		}
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(cfg.Name, app.Components.HealthAll)
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}

	// Business wiring runs after infrastructure is up so the store can use
	// the live connection pool.
	app.OnConfigure(func(_ context.Context, a *bootstrap.App) error {
		var st store.Store
		if dbComp != nil {
			st = postgres.New(dbComp.DB())
		} else {
			log.Warn("database disabled, using in-memory workflow store")
			st = memory.New()
		}

		engOpts := []engine.Option{
			engine.WithLogger(log),
			engine.WithBroadcaster(sseComp.Hub()),
			engine.WithResolver(store.Resolver{Store: st}),
			engine.WithExprTimeout(cfg.Engine.ExprTimeout),
		}
		if cfg.Engine.MaxDepth > 0 {
			engOpts = append(engOpts, engine.WithMaxDepth(cfg.Engine.MaxDepth))
		}
		if metrics != nil {
			engOpts = append(engOpts, engine.WithMetrics(metrics))
		}
		eng := engine.New(services, runReg, engOpts...)

		apiOpts := []api.Option{
			api.WithStore(st),
			api.WithHub(sseComp.Hub()),
			api.WithLogger(log),
		}
		if metrics != nil {
			apiOpts = append(apiOpts, api.WithMetrics(metrics))
		}
		handlers := api.New(services, eng, runReg, apiOpts...)
		handlers.RegisterRoutes(srv.GinEngine())
		return nil
	})

	return app.Run(ctx)
}
