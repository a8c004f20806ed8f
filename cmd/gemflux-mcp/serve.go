package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jplfaria/gem-flux-mcp/internal/analysis"
	"github.com/jplfaria/gem-flux-mcp/internal/api/mcp"
	"github.com/jplfaria/gem-flux-mcp/internal/biochem"
	"github.com/jplfaria/gem-flux-mcp/internal/collab"
	"github.com/jplfaria/gem-flux-mcp/internal/collab/remote"
	"github.com/jplfaria/gem-flux-mcp/internal/collab/template"
	"github.com/jplfaria/gem-flux-mcp/internal/config"
	"github.com/jplfaria/gem-flux-mcp/internal/library"
	"github.com/jplfaria/gem-flux-mcp/internal/metrics"
	"github.com/jplfaria/gem-flux-mcp/internal/notify"
	"github.com/jplfaria/gem-flux-mcp/internal/pipeline"
	"github.com/jplfaria/gem-flux-mcp/internal/session"
)

var (
	serveTransport   string
	serveAddr        string
	serveMetricsAddr string
	serveLogLevel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve MCP tools over stdio or WebSocket",
	Long: `Start the MCP server.

Settings come from GEMFLUX_* environment variables; flags given on the command
line take precedence.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "Transport: stdio or websocket (env GEMFLUX_TRANSPORT)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "WebSocket listen address (env GEMFLUX_ADDR)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Prometheus listen address (env GEMFLUX_METRICS_ADDR)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level: debug, info, warn, error (env GEMFLUX_LOG_LEVEL)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Server.MetricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           a.metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer shutdown(metricsSrv, logger)
	}

	switch cfg.Server.Transport {
	case config.TransportWebSocket:
		return serveWebSocket(ctx, cfg.Server.Addr, a, logger)
	default:
		logger.Info("ready, serving JSON-RPC 2.0 on stdin/stdout", zap.String("version", version))
		err := mcp.NewStdioTransport(a.server, os.Stdin, os.Stdout, logger).Serve(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// applyFlags overrides environment settings with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("transport") {
		cfg.Server.Transport = serveTransport
	}
	if flags.Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if flags.Changed("metrics-addr") {
		cfg.Server.MetricsAddr = serveMetricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Server.LogLevel = serveLogLevel
	}
}

// app holds the wired server and the resources that must be released.
type app struct {
	server  *mcp.Server
	metrics *metrics.Metrics
	biochem *biochem.Database
	solver  *remote.Client
	watcher *notify.DirWatcher
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.biochem != nil {
		_ = a.biochem.Close()
	}
}

// newApp loads the reference data and wires the session, the collaborators
// and the MCP server.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	lib, err := loadLibrary(cfg.Data.MediaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load media library: %w", err)
	}
	templates, err := loadTemplates(cfg.Data.TemplateDir, logger.Named("template"))
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	bcfg := biochem.Config{DSN: cfg.Data.BiochemDSN}
	if cfg.Data.BiochemDir != "" {
		bcfg.Data = os.DirFS(cfg.Data.BiochemDir)
	}
	db, err := biochem.Open(ctx, bcfg, logger.Named("biochem"))
	if err != nil {
		return nil, err
	}

	sess, err := session.New(ctx, session.Options{
		MaxModels: cfg.Session.MaxModels,
		MaxMedia:  cfg.Session.MaxMedia,
		IDRetries: cfg.Session.IDRetries,
		Library:   lib,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.SetRecords(sess.Models.Len(), sess.Media.Len())

	solver := remote.New(remote.Config{
		BaseURL:           cfg.Solver.URL,
		Timeout:           cfg.Solver.Timeout,
		RequestsPerSecond: cfg.Solver.RequestsPerSecond,
		Burst:             cfg.Solver.Burst,
		Breaker: collab.BreakerConfig{
			MaxFailures: uint32(cfg.Solver.BreakerMaxFailures),
			Timeout:     cfg.Solver.BreakerTimeout,
		},
	}, logger.Named("solver"))

	battery := cfg.Pipeline.CorrectionMedia
	if len(battery) == 0 {
		battery = lib.BatteryIDs()
	}
	p := pipeline.New(sess, pipeline.Deps{
		Reconstructor: templates,
		Catalog:       templates,
		Corrector:     solver,
		Gapfiller:     solver,
		Names:         db,
		Metrics:       m,
		Logger:        logger.Named("pipeline"),
	}, pipeline.Config{
		StageTimeout:    cfg.Pipeline.StageTimeout,
		MaxLineageDepth: cfg.Session.MaxLineageDepth,
		DefaultTemplate: cfg.Pipeline.DefaultTemplate,
		DefaultUptake:   cfg.Pipeline.DefaultUptake,
		MinGrowth:       cfg.Pipeline.MinGrowth,
		CorrectionMedia: battery,
	})
	gw := analysis.New(sess, solver, db, m, logger.Named("analysis"), analysis.Config{
		FluxThreshold: cfg.Pipeline.FluxThreshold,
		DefaultUptake: cfg.Pipeline.DefaultUptake,
	})

	srv := mcp.NewServer(sess, p, gw,
		mcp.WithTemplates(templates),
		mcp.WithBiochem(db),
		mcp.WithMetrics(m),
		mcp.WithLogger(logger.Named("mcp")),
		mcp.WithDefaults(cfg.Pipeline.DefaultTemplate, cfg.Pipeline.DefaultUptake),
		mcp.WithVersion(version),
	)

	compounds, reactions, err := db.Counts(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("server wired",
		zap.String("session", sess.ID),
		zap.Int("predefined_media", lib.Len()),
		zap.Int("compounds", compounds),
		zap.Int("reactions", reactions),
		zap.Strings("correction_media", battery),
		zap.String("solver", cfg.Solver.URL))

	a := &app{server: srv, metrics: m, biochem: db, solver: solver}
	if cfg.Data.WatchTemplates {
		dir := cfg.Data.TemplateDir
		a.watcher = notify.NewDirWatcher(dir, "*.yaml", func() {
			if err := templates.Reload(os.DirFS(dir)); err != nil {
				logger.Warn("template reload failed, keeping current templates", zap.Error(err))
			}
		}, logger)
		if err := a.watcher.Start(); err != nil {
			a.watcher = nil
			a.close()
			return nil, fmt.Errorf("failed to watch templates: %w", err)
		}
	}
	return a, nil
}

func loadLibrary(path string) (*library.Library, error) {
	if path == "" {
		return library.Default()
	}
	return library.LoadFile(path)
}

func loadTemplates(dir string, logger *zap.Logger) (*template.Registry, error) {
	if dir == "" {
		return template.Default(logger)
	}
	return template.Load(os.DirFS(dir), logger)
}

// serveWebSocket serves MCP over WebSocket at /mcp until ctx is done.
func serveWebSocket(ctx context.Context, addr string, a *app, logger *zap.Logger) error {
	ws := mcp.NewWebSocketHandler(a.server, logger)
	mux := http.NewServeMux()
	mux.Handle("/mcp", ws)
	mux.HandleFunc("/healthz", a.health)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("websocket listening", zap.String("addr", addr), zap.String("path", "/mcp"))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown(httpSrv, logger)
		ws.Wait()
		return nil
	}
}

// health reports liveness and the solver circuit state. An open circuit does
// not fail the probe.
func (a *app) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":         "ok",
		"solver_circuit": a.solver.BreakerState(),
	})
}

func shutdown(srv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", zap.String("addr", srv.Addr), zap.Error(err))
	}
}
