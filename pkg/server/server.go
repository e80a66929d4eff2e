// Package server exposes a small read-only operational HTTP surface for a
// running trader: its status, its learned price tables, and Prometheus
// metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gridtrader/gridtrader/pkg/log"
	"github.com/gridtrader/gridtrader/pkg/trader"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the debug API for one trader.
type Server struct {
	trader *trader.Trader

	listenAddr string
	httpServer *http.Server
}

// New builds a Server for the given trader. Handlers read trader state
// through its synchronized accessors, so the server can run alongside the
// round loop.
func New(t *trader.Trader, listenAddr string) *Server {
	return &Server{trader: t, listenAddr: listenAddr}
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/pricetable", s.handlePriceTable)
	mux.Handle("GET /metrics", promhttp.Handler())
	return gziphandler.GzipHandler(mux)
}

// Run starts the server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capture server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	triggers := s.trader.Triggers()
	writeJSON(w, struct {
		AgentID     string    `json:"agentID"`
		BuyTrigger  bool      `json:"buyTrigger"`
		SellTrigger bool      `json:"sellTrigger"`
		Timestamp   time.Time `json:"timestamp"`
	}{
		AgentID:     s.trader.ID(),
		BuyTrigger:  triggers.Buy,
		SellTrigger: triggers.Sell,
		Timestamp:   time.Now().UTC(),
	})
}

func (s *Server) handlePriceTable(w http.ResponseWriter, r *http.Request) {
	snap := s.trader.Snapshot(0)
	switch side := r.URL.Query().Get("side"); side {
	case "bid":
		writeJSON(w, snap.BidPrices)
	case "ask":
		writeJSON(w, snap.AskPrices)
	default:
		writeJSONError(w, fmt.Sprintf("unknown side %q (want bid or ask)", side), http.StatusBadRequest)
	}
}
