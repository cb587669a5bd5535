package importer

// rollback.go reverts every catalog mutation one job performed. The whole
// restore runs in a single transaction: either every applied row is rolled
// back or none is. Rollups for surviving products are recomputed after the
// transaction commits, since restored offers change the derived fields.

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ouestoffice/catalog/internal/catalog"
)

// RollbackResult summarizes one rollback run.
type RollbackResult struct {
	JobID             string `json:"job_id"`
	RowsRolledBack    int    `json:"rows_rolled_back"`
	ProductsDeleted   int    `json:"products_deleted"`
	ProductsRestored  int    `json:"products_restored"`
	OffersRestored    int    `json:"offers_restored"`
	RollupsRecomputed int    `json:"rollups_recomputed"`
}

// Rollback undoes an applied job. Preconditions: the job is done or errored
// and applied at least one row; anything else is rejected before any
// mutation.
func (s *Service) Rollback(ctx context.Context, jobID string) (*RollbackResult, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if (job.Status != catalog.JobDone && job.Status != catalog.JobError) || job.OkRows == 0 {
		return nil, fmt.Errorf("%w: status=%s ok_rows=%d", ErrRollbackNotAllowed, job.Status, job.OkRows)
	}

	result := &RollbackResult{JobID: jobID}
	surviving := make(map[int64]bool)

	err = s.store.WithTx(ctx, func(tx Store) error {
		rows, err := tx.JobRows(ctx, jobID)
		if err != nil {
			return fmt.Errorf("load rows: %w", err)
		}

		for i := range rows {
			row := &rows[i]
			if row.Status != catalog.RowApplied {
				continue
			}

			if err := restoreRow(ctx, tx, row, result, surviving); err != nil {
				return fmt.Errorf("restore row %d: %w", row.RowIndex, err)
			}

			row.Status = catalog.RowRolledBack
			if err := tx.UpdateRow(ctx, row); err != nil {
				return fmt.Errorf("save row %d: %w", row.RowIndex, err)
			}
			result.RowsRolledBack++
		}

		now := time.Now()
		job.Status = catalog.JobRolledBack
		job.RolledBackAt = &now
		if err := tx.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("save job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rollback job %s: %w", jobID, err)
	}

	products := make([]int64, 0, len(surviving))
	for id := range surviving {
		products = append(products, id)
	}
	sort.Slice(products, func(i, j int) bool { return products[i] < products[j] })

	for _, productID := range products {
		if err := s.RecomputeProduct(ctx, productID); err != nil {
			// The restore itself committed; surface the recompute for retry.
			slog.Error("post-rollback recompute failed", "product_id", productID, "error", err)
			s.queue.Enqueue(productID)
			continue
		}
		result.RollupsRecomputed++
	}

	slog.Info("import rolled back",
		"job_id", jobID,
		"rows", result.RowsRolledBack,
		"deleted", result.ProductsDeleted,
		"restored", result.ProductsRestored,
	)

	return result, nil
}

// restoreRow undoes one applied row inside the rollback transaction.
// A row without a snapshot created its product, so the product (and its
// offers) are deleted; a snapshot restores the recorded product or offer
// fields.
func restoreRow(ctx context.Context, tx Store, row *catalog.ImportJobRow, result *RollbackResult, surviving map[int64]bool) error {
	if row.ProductID == nil {
		return fmt.Errorf("applied row has no product id")
	}
	productID := *row.ProductID

	if row.PreviousSnapshot == nil {
		if err := tx.DeleteProduct(ctx, productID); err != nil {
			return fmt.Errorf("delete product %d: %w", productID, err)
		}
		delete(surviving, productID)
		result.ProductsDeleted++
		return nil
	}

	snap := row.PreviousSnapshot

	if snap.Product != nil {
		product, err := tx.ProductByID(ctx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return fmt.Errorf("product %d vanished", productID)
		}
		product.EAN = snap.Product.EAN
		product.Name = snap.Product.Name
		product.Description = snap.Product.Description
		product.Family = snap.Product.Family
		product.SubFamily = snap.Product.SubFamily
		product.CostPriceHT = snap.Product.CostPriceHT
		if err := tx.UpdateProduct(ctx, product); err != nil {
			return fmt.Errorf("restore product %d: %w", productID, err)
		}
		result.ProductsRestored++
	}

	if snap.Offer != nil {
		offer, err := tx.OfferByID(ctx, snap.Offer.OfferID)
		if err != nil {
			return err
		}
		if offer == nil {
			return fmt.Errorf("offer %d vanished", snap.Offer.OfferID)
		}
		offer.PurchasePriceHT = snap.Offer.PurchasePriceHT
		offer.PvpTTC = snap.Offer.PvpTTC
		offer.VatRate = snap.Offer.VatRate
		offer.TaxBreakdown = snap.Offer.TaxBreakdown
		offer.StockQty = snap.Offer.StockQty
		offer.MinQty = snap.Offer.MinQty
		if err := tx.UpsertOffer(ctx, offer); err != nil {
			return fmt.Errorf("restore offer %d: %w", snap.Offer.OfferID, err)
		}
		result.OffersRestored++
	}

	surviving[productID] = true
	return nil
}
