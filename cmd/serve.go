package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/final-funnel/funnel-cli/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for uploads, runs, filters, and saved queries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/filters", func(w http.ResponseWriter, req *http.Request) {
			opts, err := e.Filters.Options(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, opts)
		})

		r.Post("/ingest", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				File   string `json:"file"`
				Strict bool   `json:"strict"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
				return
			}
			if body.File == "" {
				writeError(w, http.StatusBadRequest, eris.New("file is required"))
				return
			}

			// Runs asynchronously; progress lands in upload_runs.
			go func() {
				opts := pipelineOptions()
				opts.Strict = opts.Strict || body.Strict
				rep, runLog, err := e.Pipeline.Run(ctx, body.File, opts)
				if err != nil {
					zap.L().Error("ingest failed", zap.String("file", body.File), zap.Error(err))
					return
				}
				if err := e.Store.CreateRun(ctx, rep, runLog); err != nil {
					zap.L().Warn("run report not persisted", zap.Error(err))
				}
			}()

			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "file": body.File})
		})

		r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
			runs, err := e.Store.ListRuns(req.Context(), 100)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
			rep, runLog, err := e.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if rep == nil {
				writeError(w, http.StatusNotFound, eris.New("run not found"))
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"report": rep, "log": runLog})
		})

		r.Get("/queries", func(w http.ResponseWriter, req *http.Request) {
			queries, err := e.Store.ListQueries(req.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, queries)
		})

		r.Post("/queries", func(w http.ResponseWriter, req *http.Request) {
			var q model.SavedQuery
			if err := json.NewDecoder(req.Body).Decode(&q); err != nil {
				writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
				return
			}
			saved, err := e.Store.SaveQuery(req.Context(), q)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusCreated, saved)
		})

		r.Delete("/queries/{id}", func(w http.ResponseWriter, req *http.Request) {
			if err := e.Store.DeleteQuery(req.Context(), chi.URLParam(req, "id")); err != nil {
				writeError(w, http.StatusNotFound, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
