package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/jobs"
)

// maxUploadBytes caps order document uploads.
const maxUploadBytes = 32 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for order processing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tracker := jobs.NewTracker()
		api := &apiServer{env: env, tracker: tracker}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.routes(ctx),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

type apiServer struct {
	env     *env
	tracker *jobs.Tracker
}

func (s *apiServer) routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/process", s.handleProcess(ctx))
	r.Get("/api/status/{id}", s.handleStatus)
	r.Get("/api/result/{id}", s.handleResult)
	r.Get("/api/keys", s.handleKeyStats)

	return r
}

// handleProcess accepts a multipart order document and starts an
// asynchronous processing job.
func (s *apiServer) handleProcess(serverCtx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
			return
		}
		defer file.Close()

		path, err := saveUpload(file, header.Filename)
		if err != nil {
			zap.L().Error("upload save failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store upload"})
			return
		}

		jobID := s.tracker.Create()
		s.tracker.SetProcessing(jobID)

		go func() {
			defer os.Remove(path)

			runner := s.env.runner(func(stage string, percent int) {
				s.tracker.SetProgress(jobID, stage, percent)
			})

			state, err := runner.RunFile(serverCtx, path)
			if err != nil {
				zap.L().Error("job failed",
					zap.String("job_id", jobID),
					zap.Error(err),
				)
				s.tracker.Fail(jobID, err)
				return
			}
			s.tracker.Complete(jobID, state)
			zap.L().Info("job complete",
				zap.String("job_id", jobID),
				zap.String("rfp_id", state.RFPID),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id": jobID,
			"status": string(jobs.StatusProcessing),
		})
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.tracker.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	// Status responses stay small; the result is served separately.
	job.Result = nil
	writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	job, ok := s.tracker.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	if job.Status != jobs.StatusCompleted {
		writeJSON(w, http.StatusAccepted, map[string]string{
			"job_id": job.ID,
			"status": string(job.Status),
		})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleKeyStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.env.Pool.MaskedStats())
}

func saveUpload(file io.Reader, filename string) (string, error) {
	dir, err := os.MkdirTemp("", "rfp-upload-*")
	if err != nil {
		return "", eris.Wrap(err, "create upload dir")
	}

	path := filepath.Join(dir, filepath.Base(filename))
	out, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "create upload file")
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		return "", eris.Wrap(err, "write upload file")
	}
	return path, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
