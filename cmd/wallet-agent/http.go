package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/HopNGo/TripWallet/config"
	"github.com/HopNGo/TripWallet/internal/services/agent"
	"github.com/HopNGo/TripWallet/internal/services/wallet"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type agentHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	agent *agent.Agent
	svc   *wallet.Service
	cfg   *config.Config
}

// Операционный HTTP агента: здоровье, статистика циклов и ручной запуск sync.
func runAgentHTTPServer(ctx context.Context, opts agentHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.agent == nil {
			_, _ = w.Write([]byte(`{"error":"agent not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.agent.Stats())
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.svc == nil {
			_, _ = w.Write([]byte(`{"error":"wallet not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"online":  opts.svc.Online(),
			"syncing": opts.svc.Syncing(),
		})
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Секреты не отдаём, только операционные настройки агента.
		out := map[string]any{
			"syncIntervalSeconds":  opts.cfg.Wallet.AgentSyncIntervalSeconds,
			"probeIntervalSeconds": opts.cfg.Wallet.AgentProbeIntervalSeconds,
			"watchBatchSize":       opts.cfg.Wallet.AgentWatchBatchSize,
			"rateLimitPerMinute":   opts.cfg.Wallet.AgentRateLimitPerMinute,
			"watchIntervalSeconds": opts.cfg.Wallet.WatchIntervalSeconds,
			"watchMaxAttempts":     opts.cfg.Wallet.WatchMaxAttempts,
			"syncLimitItineraries": opts.cfg.Wallet.SyncLimitItineraries,
			"syncLimitBookings":    opts.cfg.Wallet.SyncLimitBookings,
			"syncLimitTickets":     opts.cfg.Wallet.SyncLimitTickets,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.agent == nil {
			_, _ = w.Write([]byte(`{"error":"agent not wired"}`))
			return
		}
		opts.agent.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); err == nil {
			r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Cache-Control", "no-store")
				http.ServeFile(w, r, opts.swaggerPath)
			})
			swaggerURL := "/swagger.json"
			if fi, err := os.Stat(opts.swaggerPath); err == nil {
				swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
			}
			r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
		}
	}

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
