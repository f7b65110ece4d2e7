package api

import (
	"errors"
	"net/http"

	"pricefeed.mini/pfo/internal/docs"
)

// @Title: List Documents
// @Route: GET /docs
// @Description: Lists the bundled documentation pages
// @Response: ["api", "overview"]
func (s *Service) HandleDocList(w http.ResponseWriter, r *http.Request) {
	if s.Docs == nil {
		s.writeError(w, http.StatusNotFound, "Documentation not available")
		return
	}
	names, err := s.Docs.ListDocs()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

// @Title: Get Document
// @Route: GET /docs/{name}
// @Description: Renders a documentation page to HTML
// @Response: text/html
func (s *Service) HandleDoc(w http.ResponseWriter, r *http.Request) {
	if s.Docs == nil {
		s.writeError(w, http.StatusNotFound, "Documentation not available")
		return
	}
	html, err := s.Docs.GetDoc(r.PathValue("name"))
	if errors.Is(err, docs.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "Document not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to render document")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
