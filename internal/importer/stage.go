package importer

// stage.go covers the first half of the job state machine: allocating the
// job record and persisting mapped rows in bounded chunks. Each chunk is its
// own transaction, so a failure never corrupts previously committed chunks;
// re-staging after a partial failure is the caller's call.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ouestoffice/catalog/internal/catalog"
)

// CreateJob allocates an import job in the staging state. The mode must
// belong to the kind: catalogue files apply in create or enrich mode,
// pricing files only in price-only mode. Supplier-bound modes require one.
func (s *Service) CreateJob(ctx context.Context, supplier catalog.Supplier, filename string, kind catalog.ImportKind, mode catalog.ImportMode, totalRows int) (*catalog.ImportJob, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown import mode %q", mode)
	}
	if (mode == catalog.ModePriceOnly) != (kind == catalog.KindPricing) {
		return nil, fmt.Errorf("mode %q is not valid for %q imports", mode, kind)
	}
	if supplier == "" && mode != catalog.ModeEnrich {
		return nil, fmt.Errorf("mode %q requires a supplier", mode)
	}

	job := &catalog.ImportJob{
		ID:        uuid.New().String(),
		Supplier:  supplier,
		Filename:  filename,
		Kind:      kind,
		Mode:      mode,
		TotalRows: totalRows,
		Status:    catalog.JobStaging,
		CreatedAt: time.Now(),
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// Stage maps and persists the parsed file's rows for a job. Required fields
// left unmapped block staging entirely: applying such a file could only
// produce a job full of invalid rows.
func (s *Service) Stage(ctx context.Context, jobID string, file *catalog.ParsedFile, mapping catalog.Mapping) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return ErrJobNotFound
	}
	if job.Status != catalog.JobStaging {
		return fmt.Errorf("job %s is %s, expected %s", jobID, job.Status, catalog.JobStaging)
	}

	specs := catalog.FieldsForKind(job.Kind)
	if missing := catalog.MissingRequired(mapping, specs); len(missing) > 0 {
		return fmt.Errorf("mapping leaves required fields unbound: %v", missing)
	}

	rows := make([]catalog.ImportJobRow, 0, len(file.Rows))
	for i, raw := range file.Rows {
		rows = append(rows, catalog.ImportJobRow{
			JobID:      jobID,
			RowIndex:   i + 1,
			RawData:    raw,
			MappedData: catalog.ApplyMapping(raw, mapping),
			Status:     catalog.RowStaging,
		})
	}

	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.store.InsertRows(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("stage rows %d-%d: %w", rows[start].RowIndex, rows[end-1].RowIndex, err)
		}
		slog.Debug("staged chunk",
			"job_id", jobID,
			"from", rows[start].RowIndex,
			"to", rows[end-1].RowIndex,
		)
	}

	if job.TotalRows != len(rows) {
		job.TotalRows = len(rows)
		if err := s.store.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("update job total: %w", err)
		}
	}

	return nil
}

// DetectMapping auto-detects a mapping for uploaded headers and ranks the
// saved templates that could replace it.
func (s *Service) DetectMapping(ctx context.Context, supplier catalog.Supplier, kind catalog.ImportKind, headers []string) (catalog.Mapping, []catalog.ImportMappingTemplate, error) {
	specs := catalog.FieldsForKind(kind)
	mapping := catalog.AutoDetect(headers, specs)

	templates, err := s.store.ListTemplates(ctx, supplier)
	if err != nil {
		return nil, nil, fmt.Errorf("list templates: %w", err)
	}

	return mapping, catalog.RankTemplates(headers, templates, TemplateMatchThreshold), nil
}
