package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/broken-weave/internal/apperror"
	"github.com/sakif/broken-weave/internal/model"
	"github.com/sakif/broken-weave/internal/service"
)

// maxUploadSize bounds how much of a multipart body is held in memory;
// larger uploads spill to temp files, and anything past the limit is
// rejected by the multipart reader.
const maxUploadSize = 10 << 20 // 10 MiB

// PersonHandler serves the missing-person case endpoints.
type PersonHandler struct {
	persons *service.PersonService
	logger  *slog.Logger
}

func NewPersonHandler(persons *service.PersonService, logger *slog.Logger) *PersonHandler {
	return &PersonHandler{persons: persons, logger: logger}
}

type personRequest struct {
	Name              string `json:"name"`
	DOB               string `json:"dob"`
	Category          string `json:"category"`
	LastKnownLocation string `json:"last_known_location"`
	ContactInfo       string `json:"contact_info"`
	Description       string `json:"description"`
}

func (req *personRequest) toModel() *model.Person {
	return &model.Person{
		Name:              req.Name,
		DOB:               req.DOB,
		Category:          req.Category,
		LastKnownLocation: req.LastKnownLocation,
		ContactInfo:       req.ContactInfo,
		Description:       req.Description,
	}
}

// personID parses the {id} route parameter.
func personID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "id must be a positive integer")
	}
	return id, nil
}

// isMultipart reports whether the request body is multipart/form-data.
// The report form posts multipart when an image is attached; the JSON path
// stays available for API clients.
func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return strings.HasPrefix(ct, "multipart/")
}

// parseReport extracts the case fields and the optional image from either
// body encoding. The returned upload is nil when no image was attached;
// its Content reader stays valid until the request body is closed.
func parseReport(r *http.Request) (*model.Person, *service.Upload, error) {
	if !isMultipart(r) {
		var req personRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, nil, apperror.ValidationFailed("body", "invalid JSON body")
		}
		return req.toModel(), nil, nil
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, nil, apperror.ValidationFailed("body", "invalid multipart form")
	}

	p := &model.Person{
		Name:              r.FormValue("name"),
		DOB:               r.FormValue("dob"),
		Category:          r.FormValue("category"),
		LastKnownLocation: r.FormValue("last_known_location"),
		ContactInfo:       r.FormValue("contact_info"),
		Description:       r.FormValue("description"),
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return p, nil, nil
		}
		return nil, nil, apperror.ValidationFailed("image", "invalid image upload")
	}

	upload := &service.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}
	return p, upload, nil
}

// HandleReport creates a new case, with an optional image.
//
// POST /api/missing-persons
// Accepts multipart/form-data (field "image" for the photo) or plain JSON.
func (h *PersonHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	p, upload, err := parseReport(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.persons.Report(r.Context(), p, upload); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "missing person reported successfully",
		"id":       p.ID,
		"imageUrl": p.ImageURL,
	})
}

// HandleList returns all cases, newest first.
//
// GET /api/missing-persons
func (h *PersonHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	persons, err := h.persons.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, persons)
}

// HandleSearch filters cases by substring and category.
//
// GET /api/missing-persons/search?q=...&category=...
func (h *PersonHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")

	results, err := h.persons.Search(r.Context(), query, category)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// HandleSuccessStories returns the most recently reported found cases.
//
// GET /api/success-stories
func (h *PersonHandler) HandleSuccessStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.persons.SuccessStories(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stories": stories})
}

// HandleMarkFound flips a case to found. Admin only.
//
// PATCH /api/missing-persons/{id}/found
func (h *PersonHandler) HandleMarkFound(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.persons.MarkFound(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("missing person %d marked as found", id),
	})
}

// HandleReplaceImage swaps a case's photo. Admin only.
//
// PATCH /api/missing-persons/{id}/image, multipart with field "image"
func (h *PersonHandler) HandleReplaceImage(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("body", "invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("image", "no image file provided"))
		return
	}

	newRef, err := h.persons.ReplaceImage(r.Context(), id, &service.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "photo updated successfully",
		"newImageUrl": newRef,
	})
}

// HandleUpdate overwrites a case's detail fields. Admin only.
//
// PATCH /api/missing-persons/{id}
func (h *PersonHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req personRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	p := req.toModel()
	p.ID = id
	if err := h.persons.Update(r.Context(), p); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("missing person %d updated successfully", id),
	})
}

// HandleDelete removes a case and its image. Admin only.
//
// DELETE /api/missing-persons/{id}
func (h *PersonHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := personID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.persons.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("missing person %d and associated image deleted", id),
	})
}
