package main

import (
	"fmt"
	"os"

	"github.com/nvaughn/polipulse/internal/config"
	"github.com/nvaughn/polipulse/internal/logging"
	"github.com/nvaughn/polipulse/internal/provider"
	"github.com/nvaughn/polipulse/internal/store"
)

// env shared by every subcommand: config, store, and the provider
// factory.
type env struct {
	cfg     *config.Config
	store   *store.Store
	factory *provider.Factory
}

// openEnv initializes logging, config and the store. Exits on config
// failure; storage failures degrade to in-memory per store semantics.
func openEnv() *env {
	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "ppx: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ppx: load config: %v\n", err)
		os.Exit(1)
	}

	st := store.Open(store.Options{
		DatabasePath: cfg.DatabasePath(),
		LegacyPath:   cfg.LegacyPath(),
	})

	return &env{
		cfg:     cfg,
		store:   st,
		factory: provider.NewFactory(),
	}
}

func (e *env) close() {
	e.store.Close()
	logging.Close()
}

// provider returns the active backend for the live configuration.
func (e *env) provider() provider.Provider {
	return e.factory.Get(e.cfg.Provider)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ppx: "+format+"\n", args...)
	os.Exit(1)
}
