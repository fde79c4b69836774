package web

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/jobcache/client"
	"github.com/RezaEskandarii/jobcache/internal/state"
	"github.com/RezaEskandarii/jobcache/types"
	"log/slog"
	"net/http"
	"time"
)

const apiPrefix = "/api/fibonacci"

// JobService is the job manager as seen by the API.
type JobService interface {
	Submit(ctx context.Context, input int64) (client.Submission, error)
	Status(ctx context.Context, jobID string) (*types.JobRecord, error)
	Artifact(ctx context.Context, jobID string) (string, error)
	Stats() client.ManagerStats
}

type HttpRouteHandler struct {
	jobs     JobService
	maxInput int64
	Port     uint
	logger   *slog.Logger
}

func NewRouteHandler(jobs JobService, maxInput int64, port uint, logger *slog.Logger) *HttpRouteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HttpRouteHandler{
		jobs:     jobs,
		maxInput: maxInput,
		Port:     port,
		logger:   logger,
	}
}

// Routes returns the API and index page on a fresh mux.
func (handler *HttpRouteHandler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+apiPrefix+"/test", handler.handleTest)
	mux.HandleFunc("POST "+apiPrefix, handler.handleSubmit)
	mux.HandleFunc("POST "+apiPrefix+"/{$}", handler.handleSubmit)
	mux.HandleFunc("GET "+apiPrefix+"/status/{jobId}", handler.handleStatus)
	mux.HandleFunc("GET "+apiPrefix+"/download/{jobId}", handler.handleDownload)
	mux.HandleFunc("GET "+apiPrefix+"/stats", handler.handleStats)
	mux.HandleFunc("GET /{$}", handler.handleIndex)
	return handler.recoverMiddleware(mux)
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (handler *HttpRouteHandler) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", handler.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		printBanner(addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (handler *HttpRouteHandler) handleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "API is working correctly",
	})
}

func (handler *HttpRouteHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	n, msg := handler.parseInput(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	sub, err := handler.jobs.Submit(r.Context(), n)
	if errors.Is(err, client.ErrBacklogFull) {
		writeError(w, http.StatusServiceUnavailable, "Job queue is full, try again later")
		return
	}
	if err != nil {
		handler.internalError(w, "failed to submit job", err)
		return
	}

	if sub.FromCache {
		writeJSON(w, http.StatusOK, map[string]any{
			"jobId":       sub.JobID,
			"status":      state.StatusCompleted,
			"n":           n,
			"result":      sub.Result,
			"downloadUrl": downloadURL(sub.JobID),
			"fromCache":   true,
			"message":     "Result retrieved from cache",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":   sub.JobID,
		"status":  sub.Status,
		"message": "Fibonacci calculation has been queued",
	})
}

func (handler *HttpRouteHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	rec, err := handler.jobs.Status(r.Context(), jobID)
	if errors.Is(err, client.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "Job not found or expired")
		return
	}
	if err != nil {
		handler.internalError(w, "failed to load job", err)
		return
	}

	body := map[string]any{
		"jobId":  jobID,
		"status": rec.Status,
		"n":      rec.Input,
	}
	switch rec.Status {
	case state.StatusCompleted:
		body["result"] = rec.Result
		body["downloadUrl"] = downloadURL(jobID)
	case state.StatusFailed:
		body["error"] = rec.Error
	}
	writeJSON(w, http.StatusOK, body)
}

func (handler *HttpRouteHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	path, err := handler.jobs.Artifact(r.Context(), jobID)
	switch {
	case errors.Is(err, client.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Job not found or expired")
		return
	case errors.Is(err, client.ErrJobNotCompleted):
		writeError(w, http.StatusBadRequest, "Job is not completed yet")
		return
	case errors.Is(err, client.ErrArtifactMissing):
		writeError(w, http.StatusNotFound, "PDF file not found or expired")
		return
	case err != nil:
		handler.internalError(w, "failed to resolve artifact", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="fibonacci-%s.pdf"`, jobID))
	http.ServeFile(w, r, path)
}

func (handler *HttpRouteHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := handler.jobs.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"maxWorkers":    stats.Ceiling,
		"activeWorkers": stats.Active,
		"queueLength":   stats.Backlog,
		"storeMode":     stats.StoreMode,
	})
}

func (handler *HttpRouteHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	render(w, indexData{
		Stats:    handler.jobs.Stats(),
		MaxInput: handler.maxInput,
		Prefix:   apiPrefix,
		Statuses: state.AllStatuses,
	})
}

func (handler *HttpRouteHandler) internalError(w http.ResponseWriter, msg string, err error) {
	handler.logger.Error(msg, slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (handler *HttpRouteHandler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				handler.logger.Error("panic in handler", slog.String("path", r.URL.Path), slog.Any("panic", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error":   "Internal server error",
					"message": fmt.Sprint(rec),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func downloadURL(jobID string) string {
	return apiPrefix + "/download/" + jobID
}
