// Package importer drives the staged import pipeline: job creation, chunked
// row staging, batch apply, snapshot-based rollback and the rollup recompute
// that follows every offer mutation. It holds no SQL; persistence goes
// through the Store interface so the pipeline can run against Postgres in
// production and an in-memory fake in tests.
package importer

import (
	"context"
	"errors"
	"time"

	"github.com/ouestoffice/catalog/internal/catalog"
)

// DefaultBatchSize bounds the rows inserted per staging transaction.
var DefaultBatchSize = 500

// ErrRollbackNotAllowed is returned when a rollback precondition fails:
// the job is not in a terminal applyable state or applied no rows.
var ErrRollbackNotAllowed = errors.New("rollback not allowed for this job")

// ErrJobNotFound is returned when a job id resolves to nothing.
var ErrJobNotFound = errors.New("import job not found")

// Store is the persistence surface the pipeline needs. *store.Postgres
// implements it; tests use an in-memory fake.
type Store interface {
	CreateJob(ctx context.Context, job *catalog.ImportJob) error
	GetJob(ctx context.Context, id string) (*catalog.ImportJob, error)
	// ListJobs returns jobs newest first, capped at limit.
	ListJobs(ctx context.Context, limit int) ([]catalog.ImportJob, error)
	UpdateJob(ctx context.Context, job *catalog.ImportJob) error

	// InsertRows persists one staging chunk atomically.
	InsertRows(ctx context.Context, rows []catalog.ImportJobRow) error
	// JobRows returns all rows of a job ordered by row_index.
	JobRows(ctx context.Context, jobID string) ([]catalog.ImportJobRow, error)
	UpdateRow(ctx context.Context, row *catalog.ImportJobRow) error

	ProductByID(ctx context.Context, id int64) (*catalog.Product, error)
	ProductByEAN(ctx context.Context, ean string) (*catalog.Product, error)
	CreateProduct(ctx context.Context, p *catalog.Product) error
	UpdateProduct(ctx context.Context, p *catalog.Product) error
	// DeleteProduct removes a product and its offers.
	DeleteProduct(ctx context.Context, id int64) error

	OfferByID(ctx context.Context, id int64) (*catalog.SupplierOffer, error)
	OfferBySupplierRef(ctx context.Context, supplier catalog.Supplier, ref string) (*catalog.SupplierOffer, error)
	OffersForProduct(ctx context.Context, productID int64) ([]catalog.SupplierOffer, error)
	UpsertOffer(ctx context.Context, o *catalog.SupplierOffer) error
	SetOfferActive(ctx context.Context, offerID int64, active bool) (*catalog.SupplierOffer, error)

	Coefficients(ctx context.Context) ([]catalog.PricingCoefficient, error)
	SaveRollup(ctx context.Context, productID int64, r catalog.Rollup) error

	CreateTemplate(ctx context.Context, t *catalog.ImportMappingTemplate) error
	ListTemplates(ctx context.Context, supplier catalog.Supplier) ([]catalog.ImportMappingTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error

	// WithTx runs fn against a transactional view of the store; fn returning
	// an error rolls every write back.
	WithTx(ctx context.Context, fn func(Store) error) error
	// WithProductLock serializes fn against other writers of the same
	// product (advisory lock in Postgres, mutex in the fake).
	WithProductLock(ctx context.Context, productID int64, fn func(Store) error) error

	// RecentlyUpdatedProductIDs supports the reconcile sweep.
	RecentlyUpdatedProductIDs(ctx context.Context, since time.Time, limit int) ([]int64, error)
}

// Service is the import pipeline entry point.
type Service struct {
	store     Store
	engine    *catalog.RollupEngine
	batchSize int
	queue     *RollupQueue
}

// NewService wires the pipeline. batchSize <= 0 falls back to
// DefaultBatchSize.
func NewService(store Store, engine *catalog.RollupEngine, batchSize int) *Service {
	if engine == nil {
		engine = catalog.NewRollupEngine(nil)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	s := &Service{
		store:     store,
		engine:    engine,
		batchSize: batchSize,
	}
	s.queue = NewRollupQueue(s)
	return s
}

// Queue exposes the post-commit recompute queue for callers that mutate
// offers outside the pipeline (manual toggles).
func (s *Service) Queue() *RollupQueue {
	return s.queue
}

// Job returns one import job, or ErrJobNotFound.
func (s *Service) Job(ctx context.Context, id string) (*catalog.ImportJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Jobs returns recent import jobs, newest first.
func (s *Service) Jobs(ctx context.Context, limit int) ([]catalog.ImportJob, error) {
	return s.store.ListJobs(ctx, limit)
}

// JobRows returns a job's staged rows in row order.
func (s *Service) JobRows(ctx context.Context, jobID string) ([]catalog.ImportJobRow, error) {
	if _, err := s.Job(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.JobRows(ctx, jobID)
}

// Product returns one product with its stored rollup fields, or nil when
// the id is unknown.
func (s *Service) Product(ctx context.Context, id int64) (*catalog.Product, error) {
	return s.store.ProductByID(ctx, id)
}

// ProductOffers returns every offer of a product.
func (s *Service) ProductOffers(ctx context.Context, productID int64) ([]catalog.SupplierOffer, error) {
	return s.store.OffersForProduct(ctx, productID)
}

// RecomputeProduct re-derives and persists one product's rollup under its
// product lock, so a concurrent offer write cannot leave the rollup based on
// a stale offer set. Recomputing an unchanged product is a no-op success.
func (s *Service) RecomputeProduct(ctx context.Context, productID int64) error {
	return s.store.WithProductLock(ctx, productID, func(st Store) error {
		product, err := st.ProductByID(ctx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			// Deleted between enqueue and recompute; nothing to derive.
			return nil
		}

		offers, err := st.OffersForProduct(ctx, productID)
		if err != nil {
			return err
		}
		coefficients, err := st.Coefficients(ctx)
		if err != nil {
			return err
		}

		rollup := s.engine.Compute(offers, *product, coefficients)
		return st.SaveRollup(ctx, productID, rollup)
	})
}

// ToggleOffer flips an offer's active flag and enqueues the product for
// recompute. The caller sees the write immediately; the rollup follows
// through the queue so a recompute failure is observable and retryable
// without undoing the toggle.
func (s *Service) ToggleOffer(ctx context.Context, offerID int64, active bool) (*catalog.SupplierOffer, error) {
	offer, err := s.store.SetOfferActive(ctx, offerID, active)
	if err != nil {
		return nil, err
	}
	s.queue.Enqueue(offer.ProductID)
	return offer, nil
}
