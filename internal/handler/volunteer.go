package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/broken-weave/internal/apperror"
	"github.com/sakif/broken-weave/internal/model"
	"github.com/sakif/broken-weave/internal/service"
)

// VolunteerHandler serves volunteer sign-up and the admin volunteer list.
type VolunteerHandler struct {
	volunteers *service.VolunteerService
	logger     *slog.Logger
}

func NewVolunteerHandler(volunteers *service.VolunteerService, logger *slog.Logger) *VolunteerHandler {
	return &VolunteerHandler{volunteers: volunteers, logger: logger}
}

// HandleRegister creates a new volunteer.
//
// POST /api/volunteer/register
func (h *VolunteerHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var v model.Volunteer
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	if err := h.volunteers.Register(r.Context(), &v); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "volunteer registered successfully",
		"volunteerId": v.ID,
	})
}

// HandleList returns every volunteer, newest first.
//
// GET /api/volunteers
func (h *VolunteerHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	volunteers, err := h.volunteers.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, volunteers)
}
