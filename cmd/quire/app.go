package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackzampolin/quire/internal/config"
	"github.com/jackzampolin/quire/internal/export"
	"github.com/jackzampolin/quire/internal/generate"
	"github.com/jackzampolin/quire/internal/home"
	"github.com/jackzampolin/quire/internal/invoke"
	"github.com/jackzampolin/quire/internal/jobs"
	"github.com/jackzampolin/quire/internal/llmcall"
	"github.com/jackzampolin/quire/internal/prompts"
	"github.com/jackzampolin/quire/internal/prompts/novel"
	"github.com/jackzampolin/quire/internal/providers"
	"github.com/jackzampolin/quire/internal/reconcile"
)

// app is the environment shared by the job commands.
type app struct {
	logger   *slog.Logger
	home     *home.Dir
	cfg      *config.Manager
	registry *providers.Registry
	resolver *prompts.Resolver

	callLog *os.File
	sink    *llmcall.Sink
}

// runFlags are the job options shared by generate and reconcile.
type runFlags struct {
	backends   []string
	dryRun     bool
	outDir     string
	formats    []string
	noExport   bool
	noLog      bool
	noOptimize bool
	noEnrich   bool
}

// newApp loads config and providers. The registry follows config file
// changes for as long as the app lives.
func newApp(ctx context.Context) (*app, error) {
	logger := slog.Default()

	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	file := cfgFile
	if file == "" && h.ConfigExists() {
		file = h.ConfigPath()
	}
	cfgMgr, err := config.NewManager(file, logger)
	if err != nil {
		return nil, err
	}

	registry, err := providers.NewRegistryFromConfig(cfgMgr.Get().ToProviderRegistryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create providers: %w", err)
	}
	registry.SetLogger(logger)

	if cfgMgr.File() != "" {
		cfgMgr.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
		})
		cfgMgr.WatchConfig()
	}

	return &app{
		logger:   logger,
		home:     h,
		cfg:      cfgMgr,
		registry: registry,
		resolver: novel.NewResolver(prompts.NewStore(h.PromptsPath(), logger), logger),
	}, nil
}

// startCallLog opens today's call log and starts the batching sink.
func (a *app) startCallLog(ctx context.Context) (*llmcall.Recorder, error) {
	f, err := a.home.OpenCallLog(time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	a.callLog = f
	a.sink = llmcall.NewSink(llmcall.SinkConfig{Writer: f, Logger: a.logger})
	a.sink.Start(context.WithoutCancel(ctx))
	return llmcall.NewRecorder(a.sink), nil
}

// Close flushes the call log.
func (a *app) Close() {
	if a.sink != nil {
		a.sink.Stop()
	}
	if a.callLog != nil {
		a.callLog.Close()
	}
}

// backends resolves the backend order: --dry-run, then --backend, then config.
func (a *app) backends(f runFlags) []invoke.Backend {
	if f.dryRun {
		return []invoke.Backend{{Name: "dry-run", Model: "dry-run", Client: providers.NewDryRunClient()}}
	}
	order := f.backends
	if len(order) == 0 {
		order = a.cfg.Get().Defaults.Backends
	}
	return a.registry.Backends(order)
}

// invoker builds the Invocation Layer from config.
func (a *app) invoker(ctx context.Context, f runFlags) (*invoke.Invoker, error) {
	var rec *llmcall.Recorder
	if !f.noLog {
		var err error
		if rec, err = a.startCallLog(ctx); err != nil {
			return nil, err
		}
	}
	ic := a.cfg.Get().Invoke
	inv, err := invoke.New(invoke.Config{
		Backends:         a.backends(f),
		CallTimeout:      config.Seconds(ic.CallTimeoutSeconds),
		EmptySwitchAfter: ic.EmptySwitchAfter,
		EmptyBudget:      ic.EmptyBudget,
		EmptyDelay:       config.Seconds(ic.EmptyDelaySeconds),
		RateLimitRetries: ic.RateLimitRetries,
		RateLimitDelay:   config.Seconds(ic.RateLimitDelaySeconds),
		TransientRetries: ic.TransientRetries,
		TransientBase:    config.Seconds(ic.TransientBaseSeconds),
		TransientMax:     config.Seconds(ic.TransientMaxSeconds),
		Temperature:      ic.Temperature,
		MaxTokens:        ic.MaxTokens,
		Recorder:         rec,
		Logger:           a.logger,
	})
	if err != nil {
		if errors.Is(err, invoke.ErrNoBackends) {
			return nil, fmt.Errorf("%w: set an API key for one of %v or use --dry-run", err, a.cfg.Get().Defaults.Backends)
		}
		return nil, err
	}
	return inv, nil
}

// exporter returns nil when exports are disabled.
func (a *app) exporter(f runFlags) (jobs.Exporter, error) {
	if f.noExport {
		return nil, nil
	}
	ec := a.cfg.Get().Export
	dir := f.outDir
	if dir == "" {
		dir = a.home.OutputPath()
	}
	formats := f.formats
	if len(formats) == 0 {
		formats = ec.Formats
	}
	w, err := export.NewWriter(export.Config{
		Dir:      dir,
		Formats:  formats,
		Author:   ec.Author,
		Language: ec.Language,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// manager wires a job manager for one CLI run.
func (a *app) manager(ctx context.Context, f runFlags) (*jobs.Manager, error) {
	inv, err := a.invoker(ctx, f)
	if err != nil {
		return nil, err
	}
	exp, err := a.exporter(f)
	if err != nil {
		return nil, err
	}
	c := a.cfg.Get()
	return jobs.NewManager(jobs.Config{
		Invoker:           inv,
		Resolver:          a.resolver,
		Exporter:          exp,
		MaxConcurrentJobs: c.Defaults.MaxConcurrentJobs,
		BatchSize:         c.Defaults.BatchSize,
		OptimizeSystem:    c.Generation.OptimizeSystem && !f.noOptimize,
		Runner: generate.Config{
			ContextChars: c.Generation.ContextChars,
			SummaryChars: c.Generation.SummaryChars,
			SummaryRunes: c.Generation.SummaryRunes,
		},
		Reconciler: reconcile.Config{
			MaxRun:       c.Reconcile.MaxRun,
			Neighbors:    c.Reconcile.Neighbors,
			ContextChars: c.Reconcile.ContextChars,
			Attempts:     c.Reconcile.Attempts,
			RetryDelay:   config.Seconds(c.Reconcile.RetryDelaySeconds),
			Enrich:       c.Reconcile.Enrich && !f.noEnrich,
		},
		OnProgress: func(id string, p jobs.Progress) {
			a.logger.Info("progress", "job_id", id, "phase", p.Phase, "completed", p.Completed, "total", p.Total, "task", p.Message)
		},
		Logger: a.logger,
	})
}
