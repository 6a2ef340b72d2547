// Trackbridge - Jellyfin to MediaTracker Watch-State Sync
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trackbridge/trackbridge

// Package main is the entry point for the Trackbridge daemon.
//
// Trackbridge watches playback sessions on a Jellyfin server and mirrors
// watch state to MediaTracker: throttled progress updates while something is
// playing, and a one-shot seen notification once a user gets far enough
// through an item.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML file, env vars)
//  2. Sync pipeline: debounce store, session translator, dispatch workers
//  3. Jellyfin integration: WebSocket subscription plus optional polling
//  4. Status server: /healthz, /readyz and Prometheus /metrics
//
// Everything runs under a Suture supervisor tree, so a crashing component
// restarts without taking the rest of the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (JELLYFIN_URL, JELLYFIN_API_KEY, TRACKER_URL, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// The user-to-token map is file-only:
//
//	tracker:
//	  url: http://localhost:7481
//	  users:
//	    - id: 0b54a9e1-35a4-40f3-9c0f-2e1b9a9a0001
//	      token: alices-mediatracker-token
//
// # Signal Handling
//
// The daemon shuts down gracefully on SIGINT and SIGTERM: event sources
// disconnect, dispatch workers drain, the status server stops.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/trackbridge/trackbridge/internal/bridge"
	"github.com/trackbridge/trackbridge/internal/config"
	"github.com/trackbridge/trackbridge/internal/debounce"
	"github.com/trackbridge/trackbridge/internal/dispatch"
	"github.com/trackbridge/trackbridge/internal/jellyfin"
	"github.com/trackbridge/trackbridge/internal/logging"
	"github.com/trackbridge/trackbridge/internal/server"
	"github.com/trackbridge/trackbridge/internal/supervisor"
	"github.com/trackbridge/trackbridge/internal/translate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("jellyfin", cfg.Jellyfin.URL).
		Str("tracker", cfg.Tracker.URL).
		Int("users", len(cfg.Tracker.Users)).
		Msg("Trackbridge starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outbound side: MediaTracker client and the dispatch pipeline.
	tracker := dispatch.NewClient(cfg.Tracker.URL, &cfg.Tracker,
		dispatch.WithTimeout(cfg.Dispatch.Timeout),
		dispatch.WithRateLimit(cfg.Dispatch.RatePerSecond),
	)

	store := debounce.NewStore()

	// The Jellyfin manager feeds the bridge, and the bridge's translator
	// needs the manager's series resolver; wire the translator in last.
	syncBridge := bridge.New(bridge.Config{
		Workers:         cfg.Dispatch.Workers,
		QueueSize:       cfg.Dispatch.QueueSize,
		DispatchTimeout: cfg.Dispatch.Timeout,
	}, store, nil, tracker)

	manager := jellyfin.NewManager(&cfg.Jellyfin, syncBridge)
	syncBridge.SetTranslator(translate.NewTranslator(manager.Resolver()))

	// Supervisor tree: pipeline layer first so the workers are draining
	// before the event sources connect.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(syncBridge)
	tree.AddPipelineService(&jellyfinStarter{manager: manager, ready: syncBridge.Started()})

	statusServer := server.New(cfg.Server, map[string]server.ReadinessCheck{
		"queue": func() error {
			select {
			case <-syncBridge.Started():
				return nil
			default:
				return errors.New("dispatch workers not running")
			}
		},
	})
	tree.AddAPIService(statusServer)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	_ = syncBridge.Close()
	logging.Info().Msg("Trackbridge stopped")
}

// jellyfinStarter delays the Jellyfin integration until the dispatch workers
// are subscribed, so no accepted observation is published into a queue with
// no consumer.
type jellyfinStarter struct {
	manager *jellyfin.Manager
	ready   <-chan struct{}
}

func (j *jellyfinStarter) Serve(ctx context.Context) error {
	select {
	case <-j.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	svc := &supervisor.StartStopService{Name: "jellyfin", Service: j.manager}
	return svc.Serve(ctx)
}

func (j *jellyfinStarter) String() string {
	return "jellyfin-starter"
}
