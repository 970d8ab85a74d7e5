// Package wiring assembles a planning engine and its collaborators from
// configuration.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/taskforge/internal/infrastructure/config"
	"github.com/felixgeelhaar/taskforge/internal/infrastructure/watch"
	"github.com/felixgeelhaar/taskforge/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/taskforge/pkg/ai"
	"github.com/felixgeelhaar/taskforge/pkg/application"
	domainai "github.com/felixgeelhaar/taskforge/pkg/domain/ai"
	"github.com/felixgeelhaar/taskforge/pkg/domain/events"
	"github.com/felixgeelhaar/taskforge/pkg/domain/history"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/policy/rules"
	"github.com/felixgeelhaar/taskforge/pkg/domain/strategy"
	"github.com/felixgeelhaar/taskforge/pkg/domain/worker"
	"github.com/felixgeelhaar/taskforge/pkg/plugin"
	"github.com/felixgeelhaar/taskforge/pkg/storage"
)

// Runtime is a fully wired engine plus the resources it holds open.
type Runtime struct {
	Config    *config.Config
	Engine    *application.Engine
	Provider  domainai.Provider
	Validator policy.Validator
	// History is nil when history.path is empty; the engine then runs without examples.
	History *storage.SQLiteHistoryStore
	// Audit is nil when audit.path is empty.
	Audit *storage.FileAuditLog
	// Notifier is nil when no webhooks are configured.
	Notifier *webhook.Notifier
	Logger   *slog.Logger

	loader *plugin.Loader
}

// Build wires a Runtime. Only resources the operator explicitly configured
// fail the build; a generation backend that cannot start is logged and the
// engine falls back to skeleton plans.
func Build(cfg *config.Config, logger *slog.Logger) (rt *Runtime, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	provider, perr := ai.NewProvider(cfg.Generation)
	if perr != nil {
		logger.Warn("generation backend unavailable; plans will use the skeleton fallback",
			"provider", cfg.Generation.Provider, "error", perr)
	} else {
		rt.Provider = provider
	}

	if rt.Validator, err = rt.buildValidator(); err != nil {
		return nil, err
	}

	var store history.Store
	if cfg.History.Path != "" {
		h, err := storage.NewSQLiteHistoryStore(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		rt.History = h
		store = h
	}

	dispatcher := events.NewDispatcher()
	dispatcher.Register(events.NewLoggingHandler(logger).Registration())
	if cfg.Audit.Path != "" {
		a, err := storage.NewFileAuditLog(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		rt.Audit = a
		dispatcher.Register(events.NewAuditHandler(a, logger).Registration())
	}
	if hooks := cfg.Notify.Webhooks; len(hooks) > 0 {
		var dl *webhook.DeadLetterStore
		if cfg.Notify.DeadLetterPath != "" {
			dl = webhook.NewDeadLetterStore(cfg.Notify.DeadLetterPath)
		}
		rt.Notifier = webhook.NewNotifier(hooks, dl, logger)
		dispatcher.Register(rt.Notifier.Registration())
	}

	registry := worker.NewRegistry()
	if cfg.Registry.WorkersFile != "" {
		if err := storage.SeedRegistry(registry, cfg.Registry.WorkersFile); err != nil {
			return nil, fmt.Errorf("seed worker registry: %w", err)
		}
	}

	catalog := strategy.NewDefaultCatalog()
	if cfg.Catalog.StrategiesFile != "" {
		if catalog, err = storage.NewCatalogFromFile(cfg.Catalog.StrategiesFile); err != nil {
			return nil, fmt.Errorf("load strategy catalog: %w", err)
		}
	}

	deps := application.EngineDeps{
		Provider:   rt.Provider,
		Validator:  rt.Validator,
		Registry:   registry,
		Catalog:    catalog,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
	if store != nil {
		deps.History = store
	}
	rt.Engine = application.NewEngine(deps, cfg.EngineConfig())
	return rt, nil
}

func (rt *Runtime) buildValidator() (policy.Validator, error) {
	vc := rt.Config.Validation
	if vc.Plugin == "" {
		rs := policy.NewRuleSet(rules.Default(vc.MaxContentLength)...)
		rs.MinScore = vc.MinScore
		return rs, nil
	}
	rt.loader = plugin.NewLoader()
	v, err := rt.loader.Load(vc.Plugin)
	if err != nil {
		return nil, fmt.Errorf("load validator plugin: %w", err)
	}
	rt.Logger.Info("using validator plugin", "path", vc.Plugin)
	return v, nil
}

// WatchWorkers reloads the registry from the workers file until ctx ends.
// It returns immediately when watching is not configured.
func (rt *Runtime) WatchWorkers(ctx context.Context) error {
	rc := rt.Config.Registry
	if !rc.Watch || rc.WorkersFile == "" {
		return nil
	}
	r := &watch.WorkerReloader{Registry: rt.Engine.Registry, Path: rc.WorkersFile, Logger: rt.Logger}
	return r.Watch(ctx, 250*time.Millisecond)
}

// Close waits for pending webhook deliveries, then releases the history
// database and any validator plugin processes.
func (rt *Runtime) Close() error {
	if rt.Notifier != nil {
		rt.Notifier.Wait()
	}
	var errs []error
	if rt.History != nil {
		errs = append(errs, rt.History.Close())
	}
	if rt.loader != nil {
		rt.loader.Cleanup()
	}
	return errors.Join(errs...)
}
