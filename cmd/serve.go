package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skylinedata/rental-ingest/internal/config"
	"github.com/skylinedata/rental-ingest/internal/monitoring"
	"github.com/skylinedata/rental-ingest/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ingestion status API",
	Long:  "Exposes the run log and health over HTTP: GET /healthz, GET /api/runs, GET /api/metrics. Intended for the downstream dashboard.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		addr := resolveAddr(serveAddr, cfg.Server.Port)
		zap.L().Info("starting status API", zap.String("addr", addr))
		return startServer(ctx, buildRouter(st, cfg), addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address host:port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolveAddr prefers the flag value over the configured port.
func resolveAddr(flagAddr string, cfgPort int) string {
	if flagAddr != "" {
		return flagAddr
	}
	return fmt.Sprintf(":%d", cfgPort)
}

// buildRouter assembles the status API routes over the given store.
func buildRouter(st store.Store, cfg *config.Config) http.Handler {
	checker := monitoring.NewChecker(st, cfg)
	collector := monitoring.NewCollector(st)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		report := checker.Check(req.Context())
		code := http.StatusOK
		if !report.OK {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RunFilter{
			Source: req.URL.Query().Get("source"),
			Status: req.URL.Query().Get("status"),
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 1 {
				http.Error(w, `{"error":"invalid limit"}`, http.StatusBadRequest)
				return
			}
			filter.Limit = limit
		}

		runs, err := st.ListRuns(req.Context(), filter)
		if err != nil {
			zap.L().Error("list runs", zap.Error(err))
			http.Error(w, `{"error":"run log unavailable"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Get("/api/metrics", func(w http.ResponseWriter, req *http.Request) {
		hours := alertLookbackHours
		if v := req.URL.Query().Get("hours"); v != "" {
			h, err := strconv.Atoi(v)
			if err != nil || h < 0 {
				http.Error(w, `{"error":"invalid hours"}`, http.StatusBadRequest)
				return
			}
			hours = h
		}

		snap, err := collector.Collect(req.Context(), hours)
		if err != nil {
			zap.L().Error("collect metrics", zap.Error(err))
			http.Error(w, `{"error":"run log unavailable"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return r
}

// startServer runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
