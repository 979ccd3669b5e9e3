package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridepool/governance/internal/config"
	"github.com/ridepool/governance/internal/events"
	"github.com/ridepool/governance/internal/middleware"
	"github.com/ridepool/governance/internal/registry"
	"github.com/ridepool/governance/internal/service"
	"github.com/ridepool/governance/internal/storage/sqlite"
	"github.com/ridepool/governance/internal/sweeper"
	"github.com/ridepool/governance/pkg/logging"
)

// The governance core is consumed as a library by the per-domain HTTP
// services; this binary hosts the parts that must run on their own: the
// expiry sweeper, Prometheus metrics and a small read-only ops surface.
func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	reg := registry.NewHTTPClient(cfg.RegistryURL, cfg.RegistryTimeout)

	var publisher events.Publisher = events.LogPublisher{}
	if cfg.RedisAddr != "" {
		redisPub := events.NewRedisPublisher(cfg.RedisAddr)
		defer redisPub.Close()
		publisher = redisPub
		slog.Info("Publishing events over Redis", "addr", cfg.RedisAddr)
	}

	gate := service.ApprovalGate{
		AbsoluteThreshold: cfg.ApprovalThreshold,
		AvailableFraction: cfg.ApprovalFraction,
	}
	proposals := service.NewProposalService(store, reg, publisher)
	treasury := service.NewTreasuryService(store, reg, publisher, gate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sw := sweeper.New(store, proposals, cfg.SweepInterval)
	go sw.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// On-demand sweep for operators; the periodic loop keeps running.
	mux.HandleFunc("POST /internal/sweep", func(w http.ResponseWriter, r *http.Request) {
		resolved := sw.RunOnce(r.Context())
		writeJSON(w, map[string]int{"resolved": resolved})
	})

	mux.HandleFunc("GET /internal/groups/{groupID}/balance", func(w http.ResponseWriter, r *http.Request) {
		balance, err := treasury.GetBalance(r.Context(), r.PathValue("groupID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, balance)
	})

	mux.HandleFunc("GET /internal/groups/{groupID}/transactions", func(w http.ResponseWriter, r *http.Request) {
		limit := intQuery(r, "limit", 50)
		offset := intQuery(r, "offset", 0)
		txs, err := treasury.GetTransactionHistory(r.Context(), r.PathValue("groupID"), limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, txs)
	})

	server := &http.Server{Addr: cfg.ListenAddr, Handler: middleware.Logging(mux)}
	go func() {
		slog.Info("Server starting", "address", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func intQuery(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}
