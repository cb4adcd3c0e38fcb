package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/davidbz/liftplan/internal/domain"
	"github.com/davidbz/liftplan/internal/observability"
	"github.com/davidbz/liftplan/internal/service"
)

// maxBodyBytes caps request bodies; a session document is a few KB.
const maxBodyBytes = 1 << 20

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	PlanID  string `json:"plan_id"`
	DayName string `json:"day_name"`
	Date    string `json:"date,omitempty"`
}

// SessionBody wraps a session document for update and completion.
type SessionBody struct {
	Session *domain.SessionDocument `json:"session,omitempty"`
}

// Handler handles HTTP requests.
type Handler struct {
	plans    *service.PlanService
	sessions *service.SessionService
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(plans *service.PlanService, sessions *service.SessionService) *Handler {
	return &Handler{
		plans:    plans,
		sessions: sessions,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.HandleHealth)

	r.Route("/v1/plans", func(r chi.Router) {
		r.Post("/", h.HandleCreatePlan)
		r.Get("/", h.HandleListPlans)
		r.Get("/{id}", h.HandleGetPlan)
		r.Delete("/{id}", h.HandleArchivePlan)
		r.Post("/{id}/next-cycle", h.HandleNextCycle)
		r.Get("/{id}/sessions", h.HandleSessionHistory)
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreateSession)
		r.Get("/{id}", h.HandleGetSession)
		r.Put("/{id}", h.HandleUpdateSession)
		r.Post("/{id}/complete", h.HandleCompleteSession)
	})

	return r
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleCreatePlan generates a plan from preferences.
func (h *Handler) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var prefs domain.Preferences
	if err := decodeBody(w, r, &prefs, false); err != nil {
		writeError(w, r, err)
		return
	}

	plan, err := h.plans.Generate(r.Context(), prefs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

// HandleListPlans lists plans, newest first.
func (h *Handler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	includeArchived := false
	if raw := r.URL.Query().Get("include_archived"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: include_archived must be a boolean", domain.ErrInvalidInput))
			return
		}
		includeArchived = parsed
	}

	plans, err := h.plans.List(r.Context(), includeArchived)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, plans)
}

// HandleGetPlan returns one plan.
func (h *Handler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// HandleArchivePlan archives a plan.
func (h *Handler) HandleArchivePlan(w http.ResponseWriter, r *http.Request) {
	if err := h.plans.Archive(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleNextCycle generates the cycle following a plan. The body is optional.
func (h *Handler) HandleNextCycle(w http.ResponseWriter, r *http.Request) {
	var req service.NextCycleRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	plan, err := h.plans.NextCycle(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

// HandleSessionHistory lists a plan's sessions, oldest first.
func (h *Handler) HandleSessionHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.sessions.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// HandleCreateSession starts a session from a plan day.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.sessions.Create(r.Context(), req.PlanID, req.DayName, req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// HandleGetSession returns one session.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := observability.WithSessionID(r.Context(), id)

	record, err := h.sessions.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// HandleUpdateSession replaces the document of an in-progress session.
func (h *Handler) HandleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := observability.WithSessionID(r.Context(), id)

	var body SessionBody
	if err := decodeBody(w, r, &body, false); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Session == nil {
		writeError(w, r, fmt.Errorf("%w: session is required", domain.ErrInvalidInput))
		return
	}

	record, err := h.sessions.Update(ctx, id, *body.Session)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// HandleCompleteSession finalises a session, optionally with a last document.
func (h *Handler) HandleCompleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := observability.WithSessionID(r.Context(), id)

	var body SessionBody
	if err := decodeBody(w, r, &body, true); err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.sessions.Complete(ctx, id, body.Session)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// decodeBody reads a JSON body into dst. With optional set an empty body
// leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
