package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
)

// PagesHandler renders the public site. Templates are parsed once at
// startup, not per request.
type PagesHandler struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewPagesHandler parses the HTML templates from templateDir.
func NewPagesHandler(templateDir string, logger *slog.Logger) (*PagesHandler, error) {
	tmpl, err := template.ParseFiles(
		filepath.Join(templateDir, "index.html"),
	)
	if err != nil {
		return nil, err
	}

	return &PagesHandler{templates: tmpl, logger: logger}, nil
}

// HandleIndex serves the single-page frontend.
//
// GET /
func (h *PagesHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		h.logger.Error("rendering index page", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
