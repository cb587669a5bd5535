package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ouestoffice/catalog/internal/catalog"
)

// detectResponse carries everything the mapping screen needs: the parsed
// headers, a data preview, the auto-detected mapping and any saved templates
// that match the headers well enough to reuse.
type detectResponse struct {
	Headers   []string            `json:"headers"`
	Preview   []map[string]string `json:"preview"`
	Mapping   catalog.Mapping     `json:"mapping"`
	Missing   []catalog.FieldKey  `json:"missing_required,omitempty"`
	Templates []templateResponse  `json:"templates,omitempty"`
}

type templateResponse struct {
	ID       string          `json:"id"`
	Supplier string          `json:"supplier,omitempty"`
	Name     string          `json:"name"`
	Mapping  catalog.Mapping `json:"mapping"`
}

// handleDetectMapping parses an upload far enough to propose a column
// mapping without creating a job.
func (s *Server) handleDetectMapping(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.Import.MaxFileSize); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("parse upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	supplier := catalog.Supplier(r.FormValue("supplier"))
	kind := catalog.ImportKind(r.FormValue("kind"))

	parsed, err := catalog.ParseFile(header.Filename, data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	mapping, templates, err := s.svc.DetectMapping(r.Context(), supplier, kind, parsed.Headers)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := detectResponse{
		Headers: parsed.Headers,
		Preview: parsed.Preview,
		Mapping: mapping,
		Missing: catalog.MissingRequired(mapping, catalog.FieldsForKind(kind)),
	}
	for i := range templates {
		t := &templates[i]
		resp.Templates = append(resp.Templates, templateResponse{
			ID:       t.ID,
			Supplier: string(t.Supplier),
			Name:     t.Name,
			Mapping:  t.Mapping,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleListTemplates lists saved mapping templates, optionally filtered by
// the supplier query parameter.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	supplier := catalog.Supplier(r.URL.Query().Get("supplier"))
	templates, err := s.svc.ListTemplates(r.Context(), supplier)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for i := range templates {
		t := &templates[i]
		out = append(out, templateResponse{
			ID:       t.ID,
			Supplier: string(t.Supplier),
			Name:     t.Name,
			Mapping:  t.Mapping,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateTemplate saves a mapping under a name for reuse.
func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Supplier string          `json:"supplier"`
		Name     string          `json:"name"`
		Mapping  catalog.Mapping `json:"mapping"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	tpl, err := s.svc.SaveTemplate(r.Context(), catalog.Supplier(req.Supplier), req.Name, req.Mapping)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, templateResponse{
		ID:       tpl.ID,
		Supplier: string(tpl.Supplier),
		Name:     tpl.Name,
		Mapping:  tpl.Mapping,
	})
}

// handleDeleteTemplate removes a saved template.
func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
