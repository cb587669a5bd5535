package importer

// apply.go is the server-side batch worker for the applying phase. It walks
// a job's rows in row_index order, skips rows already in a terminal status,
// and recounts the job counters from row statuses at the end — so re-running
// apply after a partial failure resumes where it stopped and never double
// counts. Row-level problems are recorded on the row and never abort the
// job; only a failure of the apply machinery itself moves the job to error.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ouestoffice/catalog/internal/catalog"
)

// ApplyResult aggregates one apply run for the caller.
type ApplyResult struct {
	Created           int      `json:"created"`
	Updated           int      `json:"updated"`
	Skipped           int      `json:"skipped"`
	Errors            int      `json:"errors"`
	RollupsRecomputed int      `json:"rollups_recomputed"`
	Details           []string `json:"details,omitempty"`
}

// Apply processes every remaining staging row of a job and recomputes the
// rollup once per distinct affected product.
func (s *Service) Apply(ctx context.Context, jobID string) (*ApplyResult, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Status == catalog.JobRolledBack {
		return nil, fmt.Errorf("job %s was rolled back", jobID)
	}

	job.Status = catalog.JobApplying
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("mark job applying: %w", err)
	}

	rows, err := s.store.JobRows(ctx, jobID)
	if err != nil {
		return nil, s.failJob(ctx, job, fmt.Errorf("load rows: %w", err))
	}

	specs := catalog.FieldsForKind(job.Kind)
	result := &ApplyResult{}
	affected := make(map[int64]bool)
	start := time.Now()

	for i := range rows {
		row := &rows[i]
		if row.Status != catalog.RowStaging {
			result.Skipped++
			continue
		}

		if msgs := catalog.ValidateRow(row.MappedData, specs); len(msgs) > 0 {
			row.Status = catalog.RowInvalid
			row.ErrorMessages = msgs
			result.Errors++
			result.Details = append(result.Details, fmt.Sprintf("row %d: %s", row.RowIndex, msgs[0]))
		} else if err := s.applyRow(ctx, job, row, result, affected); err != nil {
			return nil, s.failJob(ctx, job, fmt.Errorf("apply row %d: %w", row.RowIndex, err))
		}

		if err := s.store.UpdateRow(ctx, row); err != nil {
			return nil, s.failJob(ctx, job, fmt.Errorf("save row %d: %w", row.RowIndex, err))
		}
	}

	products := make([]int64, 0, len(affected))
	for id := range affected {
		products = append(products, id)
	}
	sort.Slice(products, func(i, j int) bool { return products[i] < products[j] })

	for _, productID := range products {
		if err := s.RecomputeProduct(ctx, productID); err != nil {
			return nil, s.failJob(ctx, job, fmt.Errorf("recompute product %d: %w", productID, err))
		}
		result.RollupsRecomputed++
	}

	recount(job, rows)
	job.Status = catalog.JobDone
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("finish job: %w", err)
	}

	slog.Info("import applied",
		"job_id", job.ID,
		"mode", job.Mode,
		"created", result.Created,
		"updated", result.Updated,
		"errors", result.Errors,
		"rollups", result.RollupsRecomputed,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// applyRow dispatches a valid row to its mode's matching and mutation rules.
// A nil return with row.Status set to error means a row-level failure that
// the job survives; a non-nil return aborts the whole apply.
func (s *Service) applyRow(ctx context.Context, job *catalog.ImportJob, row *catalog.ImportJobRow, result *ApplyResult, affected map[int64]bool) error {
	switch job.Mode {
	case catalog.ModeCreate:
		return s.applyCreate(ctx, job, row, result, affected)
	case catalog.ModeEnrich:
		return s.applyEnrich(ctx, row, result)
	case catalog.ModePriceOnly:
		return s.applyPriceOnly(ctx, job, row, result, affected)
	default:
		return fmt.Errorf("unknown import mode %q", job.Mode)
	}
}

// applyCreate matches by supplier reference or EAN, updates the matched
// product and its offer, or creates both when nothing matches.
func (s *Service) applyCreate(ctx context.Context, job *catalog.ImportJob, row *catalog.ImportJobRow, result *ApplyResult, affected map[int64]bool) error {
	product, err := s.matchForCreate(ctx, job, row.MappedData)
	if err != nil {
		return err
	}

	if product == nil {
		product = &catalog.Product{}
		mergeProductFields(product, row.MappedData)
		if err := s.store.CreateProduct(ctx, product); err != nil {
			return rowError(row, result, fmt.Sprintf("create product: %v", err))
		}
		// No snapshot: rollback deletes the product outright.
		result.Created++
	} else {
		row.PreviousSnapshot = &catalog.RowSnapshot{Product: catalog.SnapshotProduct(*product)}
		mergeProductFields(product, row.MappedData)
		if err := s.store.UpdateProduct(ctx, product); err != nil {
			return rowError(row, result, fmt.Sprintf("update product: %v", err))
		}
		result.Updated++
	}

	if err := s.upsertOfferFromRow(ctx, job.Supplier, product.ID, row.MappedData); err != nil {
		return rowError(row, result, fmt.Sprintf("write offer: %v", err))
	}

	row.Status = catalog.RowApplied
	row.ProductID = &product.ID
	affected[product.ID] = true
	return nil
}

// applyEnrich matches strictly by EAN and merges descriptive fields.
// A missing product is a row error, never a creation.
func (s *Service) applyEnrich(ctx context.Context, row *catalog.ImportJobRow, result *ApplyResult) error {
	ean := catalog.RowString(row.MappedData, catalog.FieldEAN)
	if ean == "" {
		return rowError(row, result, "enrich requires an EAN")
	}

	product, err := s.store.ProductByEAN(ctx, ean)
	if err != nil {
		return err
	}
	if product == nil {
		return rowError(row, result, fmt.Sprintf("no matching product for EAN %s", ean))
	}

	row.PreviousSnapshot = &catalog.RowSnapshot{Product: catalog.SnapshotProduct(*product)}
	mergeProductFields(product, row.MappedData)
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return rowError(row, result, fmt.Sprintf("update product: %v", err))
	}

	row.Status = catalog.RowApplied
	row.ProductID = &product.ID
	result.Updated++
	return nil
}

// applyPriceOnly updates only price, tax and stock fields of the offer
// matched by supplier reference. Creates nothing.
func (s *Service) applyPriceOnly(ctx context.Context, job *catalog.ImportJob, row *catalog.ImportJobRow, result *ApplyResult, affected map[int64]bool) error {
	ref := catalog.RowString(row.MappedData, catalog.FieldRefArt)

	offer, err := s.store.OfferBySupplierRef(ctx, job.Supplier, ref)
	if err != nil {
		return err
	}
	if offer == nil {
		return rowError(row, result, fmt.Sprintf("no offer for %s reference %s", job.Supplier, ref))
	}

	row.PreviousSnapshot = &catalog.RowSnapshot{Offer: catalog.SnapshotOffer(*offer)}
	mergeOfferPricing(offer, row.MappedData)
	if err := s.store.UpsertOffer(ctx, offer); err != nil {
		return rowError(row, result, fmt.Sprintf("update offer: %v", err))
	}

	row.Status = catalog.RowApplied
	row.ProductID = &offer.ProductID
	affected[offer.ProductID] = true
	result.Updated++
	return nil
}

// matchForCreate resolves the target product for create mode: EAN first,
// then an existing offer of this supplier with the row's reference.
func (s *Service) matchForCreate(ctx context.Context, job *catalog.ImportJob, mapped map[string]string) (*catalog.Product, error) {
	if ean := catalog.RowString(mapped, catalog.FieldEAN); ean != "" {
		product, err := s.store.ProductByEAN(ctx, ean)
		if err != nil || product != nil {
			return product, err
		}
	}

	ref := catalog.RowString(mapped, catalog.FieldRefArt)
	if ref == "" {
		return nil, nil
	}
	offer, err := s.store.OfferBySupplierRef(ctx, job.Supplier, ref)
	if err != nil || offer == nil {
		return nil, err
	}
	return s.store.ProductByID(ctx, offer.ProductID)
}

// upsertOfferFromRow builds or refreshes this supplier's offer from a
// catalogue row. Rows carrying neither a supplier reference nor an EAN
// write no offer: an empty reference cannot be matched on later runs and
// would collide across unrelated products.
func (s *Service) upsertOfferFromRow(ctx context.Context, supplier catalog.Supplier, productID int64, mapped map[string]string) error {
	ref := catalog.RowString(mapped, catalog.FieldRefArt)
	if ref == "" {
		ref = catalog.RowString(mapped, catalog.FieldEAN)
	}
	if ref == "" {
		return nil
	}

	offer, err := s.store.OfferBySupplierRef(ctx, supplier, ref)
	if err != nil {
		return err
	}
	if offer == nil {
		offer = &catalog.SupplierOffer{
			ProductID:         productID,
			Supplier:          supplier,
			SupplierReference: ref,
			MinQty:            1,
			IsActive:          true,
		}
	}
	offer.ProductID = productID

	mergeOfferPricing(offer, mapped)
	return s.store.UpsertOffer(ctx, offer)
}

// mergeProductFields overlays non-empty mapped values onto the product.
func mergeProductFields(p *catalog.Product, mapped map[string]string) {
	setIfPresent := func(dst *string, key catalog.FieldKey) {
		if v := catalog.RowString(mapped, key); v != "" {
			*dst = v
		}
	}

	setIfPresent(&p.EAN, catalog.FieldEAN)
	setIfPresent(&p.Name, catalog.FieldName)
	setIfPresent(&p.Description, catalog.FieldDescription)
	setIfPresent(&p.Family, catalog.FieldFamily)
	setIfPresent(&p.SubFamily, catalog.FieldSubFamily)

	if d := catalog.RowDecimal(mapped, catalog.FieldPurchasePriceHT); d.Valid {
		p.CostPriceHT = d
	}
}

// mergeOfferPricing overlays the price/tax/stock fields a pricing row may
// carry. Absent columns leave the offer's current values untouched.
func mergeOfferPricing(o *catalog.SupplierOffer, mapped map[string]string) {
	if d := catalog.RowDecimal(mapped, catalog.FieldPurchasePriceHT); d.Valid {
		o.PurchasePriceHT = d
	}
	if d := catalog.RowDecimal(mapped, catalog.FieldPvpTTC); d.Valid {
		o.PvpTTC = d
	}
	if d := catalog.RowDecimal(mapped, catalog.FieldVatRate); d.Valid {
		o.VatRate = d
	}
	if tb := catalog.RowTaxBreakdown(mapped); tb != nil {
		o.TaxBreakdown = tb
	}
	if n, ok := catalog.ParseInt(mapped[string(catalog.FieldStockQty)]); ok && n >= 0 {
		o.StockQty = n
	}
	if n, ok := catalog.ParseInt(mapped[string(catalog.FieldMinQty)]); ok && n >= 1 {
		o.MinQty = n
	}
	if n, ok := catalog.ParseInt(mapped[string(catalog.FieldDeliveryDelay)]); ok {
		o.DeliveryDelayDays = &n
	}
}

// rowError records a row-level failure and keeps the job running.
func rowError(row *catalog.ImportJobRow, result *ApplyResult, msg string) error {
	row.Status = catalog.RowError
	row.ErrorMessages = append(row.ErrorMessages, msg)
	result.Errors++
	result.Details = append(result.Details, fmt.Sprintf("row %d: %s", row.RowIndex, msg))
	return nil
}

// recount derives the job counters from row statuses so retried applies
// never double count.
func recount(job *catalog.ImportJob, rows []catalog.ImportJobRow) {
	ok, errs := 0, 0
	for _, r := range rows {
		switch r.Status {
		case catalog.RowApplied:
			ok++
		case catalog.RowInvalid, catalog.RowError:
			errs++
		}
	}
	job.OkRows = ok
	job.ErrorRows = errs
}

// failJob moves the job to error after an apply-machinery failure. Rows
// already applied stay applied and remain eligible for rollback.
func (s *Service) failJob(ctx context.Context, job *catalog.ImportJob, cause error) error {
	job.Status = catalog.JobError
	if rows, err := s.store.JobRows(ctx, job.ID); err == nil {
		recount(job, rows)
	}
	if err := s.store.UpdateJob(ctx, job); err != nil {
		slog.Error("failed to mark job as errored", "job_id", job.ID, "error", err)
	}
	return cause
}
