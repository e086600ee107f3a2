package handler

import (
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/event-seat-registration/internal/apperr"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/auth"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/model"
	"github.com/Shivanand-hulikatti/event-seat-registration/internal/service"
	"github.com/go-chi/chi/v5"
)

// RegistrationHandler serves seat registration, cancellation and the
// caller's dashboard. Every route requires an authenticated user.
type RegistrationHandler struct {
	svc *service.RegistrationService
	log *slog.Logger
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{svc: svc, log: logger}
}

// Register handles POST /events/{id}/register
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}

	res, err := h.svc.Register(r.Context(), userID, chi.URLParam(r, "id"))
	h.writeResult(w, r, res, err, http.StatusCreated, "registered successfully")
}

// Cancel handles DELETE /events/{id}/register
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}

	res, err := h.svc.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	h.writeResult(w, r, res, err, http.StatusOK, "registration cancelled")
}

func (h *RegistrationHandler) writeResult(w http.ResponseWriter, r *http.Request, res service.Result, err error, status int, msg string) {
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if !res.Outcome.OK() {
		writeServiceError(w, r, h.log, res.Outcome.Err())
		return
	}
	writeJSON(w, status, model.RegistrationResponse{
		Outcome:        res.Outcome.String(),
		Message:        msg,
		Registration:   res.Registration,
		AvailableSeats: res.AvailableSeats,
	})
}

// Dashboard handles GET /me/dashboard
func (h *RegistrationHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, h.log, apperr.ErrUnauthenticated)
		return
	}

	d, err := h.svc.Dashboard(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}
