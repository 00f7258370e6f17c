// Package bootstrap orchestrates application lifecycle for the workflow
// services.
//
// It provides typed configuration handling, component registration, and
// startup/shutdown hooks for service initialization.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(dbComponent)
//	app.RegisterComponent(serverComponent)
//	if err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The bootstrap package handles component initialization in registration
// order, graceful shutdown on OS signals, and health aggregation.
package bootstrap
