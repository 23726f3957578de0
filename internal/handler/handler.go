package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angeloszaimis/keepalive/internal/project"
	"github.com/angeloszaimis/keepalive/internal/scheduler"
)

type Registry interface {
	List(ctx context.Context) ([]project.Project, error)
	Add(ctx context.Context, name, connectionURL, credential string) (*project.Project, error)
	Update(ctx context.Context, id string, u project.Update) (*project.Project, error)
	Delete(ctx context.Context, id string) error
}

type Scheduler interface {
	Start(ctx context.Context)
	RunNow(ctx context.Context) ([]project.PingResult, error)
	Status(ctx context.Context) (scheduler.Status, error)
}

// KeepaliveHandler exposes registry and scheduler operations as JSON endpoints.
type KeepaliveHandler struct {
	logger     *slog.Logger
	registry   Registry
	scheduler  Scheduler
	cronSecret string
	// appCtx outlives requests; the scheduler loop started over HTTP runs on it.
	appCtx context.Context
}

type addProjectRequest struct {
	Name          string `json:"name"`
	ConnectionURL string `json:"connection_url"`
	Credential    string `json:"credential"`
}

type cycleSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type runResponse struct {
	Success   bool                 `json:"success"`
	ElapsedMS int64                `json:"elapsed_ms"`
	Summary   *cycleSummary        `json:"summary,omitempty"`
	Results   []project.PingResult `json:"results,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func NewKeepaliveHandler(appCtx context.Context, logger *slog.Logger, registry Registry, sched Scheduler, cronSecret string) *KeepaliveHandler {
	return &KeepaliveHandler{
		logger:     logger,
		registry:   registry,
		scheduler:  sched,
		cronSecret: cronSecret,
		appCtx:     appCtx,
	}
}

func (h *KeepaliveHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.registry.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *KeepaliveHandler) AddProject(w http.ResponseWriter, r *http.Request) {
	var req addProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := h.registry.Add(r.Context(), req.Name, req.ConnectionURL, req.Credential)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Project added", slog.String("project", p.ID), slog.String("name", p.Name))
	writeJSON(w, http.StatusCreated, p)
}

func (h *KeepaliveHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var u project.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := h.registry.Update(r.Context(), chi.URLParam(r, "id"), u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *KeepaliveHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("Project deleted", slog.String("project", id))
	w.WriteHeader(http.StatusNoContent)
}

// RunCycle is the external trigger. It waits for the cycle and reports
// elapsed time with either the full results or an error payload.
func (h *KeepaliveHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// The cycle must finish and persist even if the caller disconnects.
	results, err := h.scheduler.RunNow(context.WithoutCancel(r.Context()))
	elapsed := time.Since(start).Milliseconds()

	if errors.Is(err, scheduler.ErrCycleInProgress) {
		writeJSON(w, http.StatusConflict, runResponse{Success: false, ElapsedMS: elapsed, Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Triggered ping cycle failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, runResponse{Success: false, ElapsedMS: elapsed, Error: err.Error()})
		return
	}

	summary := &cycleSummary{Total: len(results)}
	for _, res := range results {
		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	writeJSON(w, http.StatusOK, runResponse{
		Success:   true,
		ElapsedMS: elapsed,
		Summary:   summary,
		Results:   results,
	})
}

func (h *KeepaliveHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.scheduler.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// StartScheduler starts the timer loop. Repeated calls are no-ops.
func (h *KeepaliveHandler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Start(h.appCtx)

	status, err := h.scheduler.Status(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RequireCronSecret rejects requests without "Authorization: Bearer <secret>".
// With no secret configured every request is rejected.
func (h *KeepaliveHandler) RequireCronSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.cronSecret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
			h.logger.Warn("Rejected unauthorized keepalive trigger",
				slog.String("from", r.RemoteAddr),
				slog.String("path", r.URL.Path))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *KeepaliveHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, project.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, project.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("Request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
