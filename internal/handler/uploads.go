package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/broken-weave/internal/storage"
)

// UploadsHandler streams stored case images back to browsers. Serving
// through the storage interface (instead of http.FileServer) keeps the
// same route working whether the bytes sit on local disk or in a bucket.
type UploadsHandler struct {
	files  storage.Store
	logger *slog.Logger
}

func NewUploadsHandler(files storage.Store, logger *slog.Logger) *UploadsHandler {
	return &UploadsHandler{files: files, logger: logger}
}

// HandleServe streams one stored image.
//
// GET /uploads/{name}
func (h *UploadsHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := storage.NameFromRef(storage.URLPrefix + name); err != nil {
		http.NotFound(w, r)
		return
	}

	content, contentType, err := h.files.Open(r.Context(), name)
	if err != nil {
		// the common case is a reference to a since-deleted file
		http.NotFound(w, r)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := io.Copy(w, content); err != nil {
		h.logger.Warn("streaming upload interrupted",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}
