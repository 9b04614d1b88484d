package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
)

type breakerState interface {
	State() gobreaker.State
}

// metricsRouter exposes Prometheus metrics and liveness. /health/push reports
// 503 while the push circuit breaker is open.
func metricsRouter(breaker breakerState) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/push", func(w http.ResponseWriter, _ *http.Request) {
		state := breaker.State()
		status := http.StatusOK
		if state == gobreaker.StateOpen {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"breaker": state.String()})
	})

	return r
}

// startMetricsServer serves metricsRouter on addr in the background and
// returns a function that shuts it down.
func startMetricsServer(addr string, log *slog.Logger, breaker breakerState) func() {
	server := &http.Server{
		Addr:              addr,
		Handler:           metricsRouter(breaker),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", slog.Any("err", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("metrics server shutdown", slog.Any("err", err))
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
