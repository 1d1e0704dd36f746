package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	utcp "github.com/universal-tool-calling-protocol/go-utcp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"

	"github.com/Protocol-Lattice/calendar-agent/internal/config"
	"github.com/Protocol-Lattice/calendar-agent/internal/observability"
	"github.com/Protocol-Lattice/calendar-agent/pkg/models"
	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
	"github.com/Protocol-Lattice/calendar-agent/pkg/runstore"
	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
	"github.com/Protocol-Lattice/calendar-agent/pkg/tools/calendar"
	"github.com/Protocol-Lattice/calendar-agent/pkg/tools/email"
	"github.com/Protocol-Lattice/calendar-agent/pkg/tools/utcptool"
)

// recentLister is implemented by every run store.
type recentLister interface {
	Recent(ctx context.Context, limit int) ([]runstore.Summary, error)
}

// app bundles everything a command needs.
type app struct {
	cfg          *config.Config
	logger       zerolog.Logger
	registry     *tools.Registry
	orchestrator *orchestrator.Orchestrator
	history      recentLister
	closers      []func()
}

func loadConfig() (*config.Config, error) {
	if globalFlags.EnvFile != "" {
		if err := godotenv.Load(globalFlags.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", globalFlags.EnvFile, err)
		}
	}
	return config.LoadFromEnv()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: observability.WithCorrelationID(observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty), ""),
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		a.serveMetrics(reg)
	}

	registry, err := a.buildRegistry(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry

	recorder, err := a.buildRecorder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	router := models.NewRouter(models.RouterOptions{
		Sampling:          cfg.Sampling(),
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
		CacheSize:         cfg.CacheSize,
		CacheTTL:          cfg.CacheTTL,
	})
	a.orchestrator = orchestrator.New(router,
		orchestrator.WithSystemPrompt(cfg.SystemPrompt),
		orchestrator.WithMaxDecisionRetries(cfg.MaxDecisionRetries),
		orchestrator.WithRetryPolicy(cfg.RetryPolicy()),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithRecorder(recorder),
	)
	return a, nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(reg))
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Str("addr", a.cfg.MetricsAddr).Msg("metrics server stopped")
		}
	}()
	a.logger.Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// tokenSource builds refresh-token credentials for the Google APIs.
func tokenSource(ctx context.Context, cfg *config.Config) oauth2.TokenSource {
	oc := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope, gmail.GmailReadonlyScope, gmail.GmailSendScope},
	}
	return oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GoogleRefreshToken})
}

func (a *app) buildRegistry(ctx context.Context) (*tools.Registry, error) {
	cfg := a.cfg
	loc := cfg.Location()
	registry, err := tools.NewRegistry(&tools.ClockTool{Location: loc})
	if err != nil {
		return nil, err
	}

	var events calendar.EventService
	var mail email.MailService
	if cfg.GoogleConfigured() {
		ts := tokenSource(ctx, cfg)
		svc, err := calendar.NewGoogleService(ctx, ts, cfg.CalendarID, loc)
		if err != nil {
			return nil, fmt.Errorf("calendar service: %w", err)
		}
		events = svc
		if cfg.EmailEnabled {
			gs, err := email.NewGmailService(ctx, ts)
			if err != nil {
				return nil, fmt.Errorf("gmail service: %w", err)
			}
			mail = gs
		}
	} else {
		a.logger.Warn().Msg("Google credentials not configured; calendar tools are disabled")
	}

	// Tools backed by a nil service stay registered but report disabled,
	// so they never reach the manifest.
	family := calendar.Tools(events, calendar.WithLocation(loc))
	if cfg.EmailEnabled {
		family = append(family, email.Tools(mail)...)
	}
	for _, t := range family {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	if cfg.UTCPProvidersFile != "" {
		client, err := utcp.NewUTCPClient(ctx, &utcp.UtcpClientConfig{ProvidersFilePath: cfg.UTCPProvidersFile}, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("utcp client: %w", err)
		}
		external, err := utcptool.Discover(client, "", cfg.UTCPToolLimit)
		if err != nil {
			return nil, err
		}
		for _, t := range external {
			if err := registry.Register(t); err != nil {
				a.logger.Warn().Err(err).Str("tool", t.Spec().Name).Msg("skipping utcp tool")
			}
		}
	}
	return registry, nil
}

func (a *app) buildRecorder(ctx context.Context) (orchestrator.Recorder, error) {
	cfg := a.cfg
	memory := runstore.NewMemory(cfg.MemoryRuns)
	recorders := []orchestrator.Recorder{memory}
	a.history = memory

	if cfg.PostgresDSN != "" {
		pg, err := runstore.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.CreateSchema(ctx); err != nil {
			return nil, fmt.Errorf("create run schema: %w", err)
		}
		recorders = append(recorders, pg)
		a.history = pg
	}
	if cfg.MongoURI != "" {
		mg, err := runstore.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, func() { _ = mg.Close() })
		recorders = append(recorders, mg)
		if cfg.PostgresDSN == "" {
			a.history = mg
		}
	}
	return runstore.Multi(recorders...), nil
}

// Close releases stores and servers in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
