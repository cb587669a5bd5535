package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ouestoffice/catalog/internal/catalog"
	"github.com/ouestoffice/catalog/internal/logging"
)

// jobResponse is the JSON shape of an import job.
type jobResponse struct {
	ID           string     `json:"id"`
	Supplier     string     `json:"supplier,omitempty"`
	Filename     string     `json:"filename"`
	Kind         string     `json:"kind"`
	Mode         string     `json:"mode"`
	TotalRows    int        `json:"total_rows"`
	OkRows       int        `json:"ok_rows"`
	ErrorRows    int        `json:"error_rows"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	RolledBackAt *time.Time `json:"rolled_back_at,omitempty"`
}

func toJobResponse(job *catalog.ImportJob) jobResponse {
	return jobResponse{
		ID:           job.ID,
		Supplier:     string(job.Supplier),
		Filename:     job.Filename,
		Kind:         string(job.Kind),
		Mode:         string(job.Mode),
		TotalRows:    job.TotalRows,
		OkRows:       job.OkRows,
		ErrorRows:    job.ErrorRows,
		Status:       string(job.Status),
		CreatedAt:    job.CreatedAt,
		RolledBackAt: job.RolledBackAt,
	}
}

// rowResponse is the JSON shape of one staged row.
type rowResponse struct {
	RowIndex      int               `json:"row_index"`
	Status        string            `json:"status"`
	MappedData    map[string]string `json:"mapped_data"`
	ErrorMessages []string          `json:"error_messages,omitempty"`
	ProductID     *int64            `json:"product_id,omitempty"`
}

// handleCreateImport accepts a multipart upload, stages it and returns the
// new job. Form fields: file, supplier, kind, mode and an optional mapping
// JSON object; without a mapping the columns are auto-detected.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
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
	mode := catalog.ImportMode(r.FormValue("mode"))

	parsed, err := catalog.ParseFile(header.Filename, data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var mapping catalog.Mapping
	if raw := r.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid mapping: %v", err))
			return
		}
	} else {
		mapping, _, err = s.svc.DetectMapping(r.Context(), supplier, kind, parsed.Headers)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
	}

	job, err := s.svc.CreateJob(r.Context(), supplier, header.Filename, kind, mode, len(parsed.Rows))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.svc.Stage(r.Context(), job.ID, parsed, mapping); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	logging.FromContext(r.Context()).Info("import staged",
		"job_id", job.ID,
		"supplier", supplier,
		"rows", len(parsed.Rows),
	)

	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

// handleListImports returns recent jobs, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.svc.Jobs(r.Context(), 50)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetImport returns one job.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// handleImportRows returns a job's rows with their outcomes.
func (s *Server) handleImportRows(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.JobRows(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	out := make([]rowResponse, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		out = append(out, rowResponse{
			RowIndex:      row.RowIndex,
			Status:        string(row.Status),
			MappedData:    row.MappedData,
			ErrorMessages: row.ErrorMessages,
			ProductID:     row.ProductID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleApplyImport runs the apply phase of a staged job. Applies get their
// own deadline: large files outlive the normal request timeout, so the
// request deadline is detached and replaced with the import timeout.
func (s *Server) handleApplyImport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.Import.Timeout)
	defer cancel()

	result, err := s.svc.Apply(ctx, chi.URLParam(r, "jobID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRollbackImport reverts an applied job.
func (s *Server) handleRollbackImport(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Rollback(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
