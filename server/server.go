// Package server wires the store, the vector engine and the HTTP surface
// into one runnable instance.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/cohort/engine"
	"github.com/hrygo/cohort/engine/aggregate"
	"github.com/hrygo/cohort/engine/encoder"
	"github.com/hrygo/cohort/engine/metrics"
	"github.com/hrygo/cohort/internal/profile"
	"github.com/hrygo/cohort/plugin/notifier"
	apiv1 "github.com/hrygo/cohort/server/router/api/v1"
	"github.com/hrygo/cohort/server/service/maintenance"
	"github.com/hrygo/cohort/server/service/proposal"
	"github.com/hrygo/cohort/server/service/recommend"
	"github.com/hrygo/cohort/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo

	exporter     *metrics.Exporter
	orchestrator *maintenance.Orchestrator
	proposals    *proposal.Service

	sweepCancel context.CancelFunc
}

// NewServer assembles the full instance: encoders, orchestrator, services and
// routes. Nothing starts listening until Start is called.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	exporter := metrics.NewExporter(metrics.DefaultConfig())
	aggregator := aggregate.New(store)

	hashing := encoder.NewHashing(profile.VectorDimension)

	// The hashing encoder is always the deterministic baseline. When an
	// embedding key is configured it becomes the primary encoder and hashing
	// turns into the fallback, so a provider outage degrades quality instead
	// of halting vector maintenance.
	var primary encoder.Encoder = hashing
	var fallback encoder.Encoder
	if profile.IsEmbeddingEnabled() {
		embeddingService, err := engine.NewEmbeddingService(&engine.EmbeddingConfig{
			APIKey:     profile.EmbeddingAPIKey,
			BaseURL:    profile.EmbeddingBaseURL,
			Model:      profile.EmbeddingModel,
			Dimensions: profile.VectorDimension,
			Timeout:    profile.EmbeddingTimeout,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create embedding service")
		}
		primary = encoder.NewEmbedding(embeddingService)
		fallback = hashing
		slog.Info("embedding encoder enabled",
			"provider", profile.EmbeddingProvider,
			"model", profile.EmbeddingModel,
			"dimension", profile.VectorDimension)
	} else {
		slog.Info("using deterministic hashing encoder", "dimension", profile.VectorDimension)
	}

	orchestrator := maintenance.New(
		store,
		aggregator,
		primary,
		fallback,
		exporter,
		profile.MaintenanceDebounce,
		profile.MaintenanceWorkers,
	)

	webhookNotifier := notifier.New(profile.NotifyWebhookURL)
	proposalService := proposal.NewService(store, aggregator, webhookNotifier, exporter, profile)
	recommendService := recommend.NewService(store, profile)

	s := &Server{
		Profile:      profile,
		Store:        store,
		echoServer:   e,
		exporter:     exporter,
		orchestrator: orchestrator,
		proposals:    proposalService,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	e.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	apiV1Service := apiv1.NewAPIV1Service(profile, store, recommendService, proposalService, orchestrator)
	apiV1Service.Register(e)

	return s, nil
}

// Start begins serving in the background and kicks off the proposal sweep
// when configured.
func (s *Server) Start(ctx context.Context) error {
	if s.Profile.ProposalSweepInterval > 0 {
		sweepCtx, cancel := context.WithCancel(ctx)
		s.sweepCancel = cancel
		go s.proposals.RunSweep(sweepCtx, s.Profile.ProposalSweepInterval)
		slog.Info("proposal sweep enabled", "interval", s.Profile.ProposalSweepInterval)
	}

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown drains the HTTP server, stops the sweep, waits out in-flight
// vector recomputations and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.sweepCancel != nil {
		s.sweepCancel()
	}

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	s.orchestrator.Close()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("cohort stopped properly")
}
