package importer

// memstore_test.go is the in-memory Store used by the pipeline tests.
// WithTx snapshots the whole state and restores it when fn fails, matching
// the all-or-nothing semantics of the real transactional store.

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ouestoffice/catalog/internal/catalog"
)

type memStore struct {
	mu     sync.Mutex
	lockMu sync.Mutex

	jobs      map[string]catalog.ImportJob
	rows      map[string][]catalog.ImportJobRow
	products  map[int64]catalog.Product
	offers    map[int64]catalog.SupplierOffer
	coeffs    []catalog.PricingCoefficient
	templates map[string]catalog.ImportMappingTemplate

	nextProductID int64
	nextOfferID   int64
}

func newMemStore() *memStore {
	return &memStore{
		jobs:      make(map[string]catalog.ImportJob),
		rows:      make(map[string][]catalog.ImportJobRow),
		products:  make(map[int64]catalog.Product),
		offers:    make(map[int64]catalog.SupplierOffer),
		templates: make(map[string]catalog.ImportMappingTemplate),
	}
}

var _ Store = (*memStore)(nil)

func (m *memStore) CreateJob(_ context.Context, job *catalog.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memStore) GetJob(_ context.Context, id string) (*catalog.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *memStore) ListJobs(_ context.Context, limit int) ([]catalog.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]catalog.ImportJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateJob(_ context.Context, job *catalog.ImportJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memStore) InsertRows(_ context.Context, rows []catalog.ImportJobRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.rows[row.JobID] = append(m.rows[row.JobID], row)
	}
	return nil
}

func (m *memStore) JobRows(_ context.Context, jobID string) ([]catalog.ImportJobRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := append([]catalog.ImportJobRow(nil), m.rows[jobID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowIndex < rows[j].RowIndex })
	return rows, nil
}

func (m *memStore) UpdateRow(_ context.Context, row *catalog.ImportJobRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows[row.JobID]
	for i := range rows {
		if rows[i].RowIndex == row.RowIndex {
			rows[i] = *row
			return nil
		}
	}
	return fmt.Errorf("row %s/%d not found", row.JobID, row.RowIndex)
}

func (m *memStore) ProductByID(_ context.Context, id int64) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) ProductByEAN(_ context.Context, ean string) (*catalog.Product, error) {
	if ean == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.EAN == ean {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateProduct(_ context.Context, p *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProductID++
	p.ID = m.nextProductID
	p.UpdatedAt = time.Now()
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) UpdateProduct(_ context.Context, p *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return fmt.Errorf("product %d not found", p.ID)
	}
	p.UpdatedAt = time.Now()
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	for offerID, o := range m.offers {
		if o.ProductID == id {
			delete(m.offers, offerID)
		}
	}
	return nil
}

func (m *memStore) OfferByID(_ context.Context, id int64) (*catalog.SupplierOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memStore) OfferBySupplierRef(_ context.Context, supplier catalog.Supplier, ref string) (*catalog.SupplierOffer, error) {
	if ref == "" {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.offers {
		if o.Supplier == supplier && o.SupplierReference == ref {
			return &o, nil
		}
	}
	return nil, nil
}

func (m *memStore) OffersForProduct(_ context.Context, productID int64) ([]catalog.SupplierOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.SupplierOffer
	for _, o := range m.offers {
		if o.ProductID == productID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpsertOffer(_ context.Context, o *catalog.SupplierOffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.offers {
		if existing.ProductID == o.ProductID && existing.Supplier == o.Supplier &&
			existing.SupplierReference == o.SupplierReference {
			o.ID = id
			o.UpdatedAt = time.Now()
			m.offers[id] = *o
			return nil
		}
	}
	if o.ID == 0 {
		m.nextOfferID++
		o.ID = m.nextOfferID
	}
	o.UpdatedAt = time.Now()
	m.offers[o.ID] = *o
	return nil
}

func (m *memStore) SetOfferActive(_ context.Context, offerID int64, active bool) (*catalog.SupplierOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[offerID]
	if !ok {
		return nil, fmt.Errorf("offer %d not found", offerID)
	}
	o.IsActive = active
	o.UpdatedAt = time.Now()
	m.offers[offerID] = o
	return &o, nil
}

func (m *memStore) Coefficients(_ context.Context) ([]catalog.PricingCoefficient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.PricingCoefficient(nil), m.coeffs...), nil
}

func (m *memStore) SaveRollup(_ context.Context, productID int64, r catalog.Rollup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("product %d not found", productID)
	}
	p.PublicPriceTTC = r.PublicPriceTTC
	p.PublicPriceSource = r.PublicPriceSource
	p.AvailableQtyTotal = r.AvailableQtyTotal
	p.IsAvailable = r.IsAvailable
	p.UpdatedAt = time.Now()
	m.products[productID] = p
	return nil
}

func (m *memStore) CreateTemplate(_ context.Context, t *catalog.ImportMappingTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = *t
	return nil
}

func (m *memStore) ListTemplates(_ context.Context, supplier catalog.Supplier) ([]catalog.ImportMappingTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []catalog.ImportMappingTemplate
	for _, t := range m.templates {
		if supplier == "" || t.Supplier == supplier || t.Supplier == "" {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, id)
	return nil
}

func (m *memStore) WithTx(_ context.Context, fn func(Store) error) error {
	snapshot := m.clone()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *memStore) WithProductLock(_ context.Context, _ int64, fn func(Store) error) error {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	return fn(m)
}

func (m *memStore) RecentlyUpdatedProductIDs(_ context.Context, since time.Time, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, p := range m.products {
		if !p.UpdatedAt.Before(since) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memStore) clone() *memStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := newMemStore()
	for k, v := range m.jobs {
		c.jobs[k] = v
	}
	for k, v := range m.rows {
		c.rows[k] = append([]catalog.ImportJobRow(nil), v...)
	}
	for k, v := range m.products {
		c.products[k] = v
	}
	for k, v := range m.offers {
		c.offers[k] = v
	}
	c.coeffs = append([]catalog.PricingCoefficient(nil), m.coeffs...)
	for k, v := range m.templates {
		c.templates[k] = v
	}
	c.nextProductID = m.nextProductID
	c.nextOfferID = m.nextOfferID
	return c
}

func (m *memStore) restore(c *memStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = c.jobs
	m.rows = c.rows
	m.products = c.products
	m.offers = c.offers
	m.coeffs = c.coeffs
	m.templates = c.templates
	m.nextProductID = c.nextProductID
	m.nextOfferID = c.nextOfferID
}
