package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ouestoffice/catalog/internal/catalog"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ndec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

// Small batch size so multi-row files exercise chunked staging.
func newTestService() (*Service, *memStore) {
	st := newMemStore()
	return NewService(st, catalog.NewRollupEngine(nil), 2), st
}

// catalogueMapping binds canonical column names one to one, so test rows can
// use field keys directly as headers.
var catalogueMapping = catalog.Mapping{
	catalog.FieldName:            "name",
	catalog.FieldEAN:             "ean",
	catalog.FieldRefArt:          "ref_art",
	catalog.FieldFamily:          "family",
	catalog.FieldSubFamily:       "sub_family",
	catalog.FieldDescription:     "description",
	catalog.FieldPurchasePriceHT: "purchase_price_ht",
	catalog.FieldPvpTTC:          "pvp_ttc",
	catalog.FieldVatRate:         "vat_rate",
	catalog.FieldStockQty:        "stock_qty",
}

var pricingMapping = catalog.Mapping{
	catalog.FieldRefArt:          "ref_art",
	catalog.FieldPurchasePriceHT: "purchase_price_ht",
	catalog.FieldPvpTTC:          "pvp_ttc",
	catalog.FieldVatRate:         "vat_rate",
	catalog.FieldStockQty:        "stock_qty",
}

func stageJob(t *testing.T, svc *Service, supplier catalog.Supplier, kind catalog.ImportKind, mode catalog.ImportMode, mapping catalog.Mapping, rows []map[string]string) *catalog.ImportJob {
	t.Helper()
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, supplier, "test.csv", kind, mode, len(rows))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	file := &catalog.ParsedFile{Rows: rows}
	if err := svc.Stage(ctx, job.ID, file, mapping); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	return job
}

func TestCreateJob_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name     string
		supplier catalog.Supplier
		kind     catalog.ImportKind
		mode     catalog.ImportMode
		wantErr  bool
	}{
		{"create catalogue", catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, false},
		{"price only pricing", catalog.SupplierAlkor, catalog.KindPricing, catalog.ModePriceOnly, false},
		{"enrich without supplier", "", catalog.KindCatalogue, catalog.ModeEnrich, false},
		{"unknown mode", catalog.SupplierAlkor, catalog.KindCatalogue, "upsert", true},
		{"price only on catalogue", catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModePriceOnly, true},
		{"create on pricing", catalog.SupplierAlkor, catalog.KindPricing, catalog.ModeCreate, true},
		{"create without supplier", "", catalog.KindCatalogue, catalog.ModeCreate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(ctx, tt.supplier, "f.csv", tt.kind, tt.mode, 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateJob error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStage_MissingRequiredMappingBlocked(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, catalog.SupplierAlkor, "f.csv", catalog.KindCatalogue, catalog.ModeCreate, 1)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	mapping := catalog.Mapping{catalog.FieldEAN: "ean"} // name unbound
	file := &catalog.ParsedFile{Rows: []map[string]string{{"ean": "123"}}}

	if err := svc.Stage(ctx, job.ID, file, mapping); err == nil {
		t.Fatal("Stage should fail when a required field is unmapped")
	}
	if rows, _ := st.JobRows(ctx, job.ID); len(rows) != 0 {
		t.Errorf("rows staged = %d, want 0", len(rows))
	}
}

func TestStage_ChunkedInsertAndRowIndexes(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	rows := []map[string]string{
		{"name": "A"}, {"name": "B"}, {"name": "C"}, {"name": "D"}, {"name": "E"},
	}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, catalogueMapping, rows)

	staged, err := st.JobRows(ctx, job.ID)
	if err != nil {
		t.Fatalf("JobRows: %v", err)
	}
	if len(staged) != 5 {
		t.Fatalf("staged rows = %d, want 5", len(staged))
	}
	for i, row := range staged {
		if row.RowIndex != i+1 {
			t.Errorf("row %d index = %d, want %d", i, row.RowIndex, i+1)
		}
		if row.Status != catalog.RowStaging {
			t.Errorf("row %d status = %s, want staging", i, row.Status)
		}
	}

	got, _ := st.GetJob(ctx, job.ID)
	if got.TotalRows != 5 {
		t.Errorf("TotalRows = %d, want 5", got.TotalRows)
	}
}

func TestApply_CreateMode(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	rows := []map[string]string{
		{"name": "Stylo Bille", "ean": "3700000000017", "ref_art": "A1", "pvp_ttc": "9,90", "stock_qty": "5"},
		{"ean": "3700000000024"}, // no name: invalid
	}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, catalogueMapping, rows)

	result, err := svc.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if result.Created != 1 || result.Errors != 1 || result.Updated != 0 {
		t.Errorf("result = %+v, want created=1 errors=1", result)
	}
	if result.RollupsRecomputed != 1 {
		t.Errorf("RollupsRecomputed = %d, want 1", result.RollupsRecomputed)
	}

	got, _ := st.GetJob(ctx, job.ID)
	if got.Status != catalog.JobDone || got.OkRows != 1 || got.ErrorRows != 1 {
		t.Errorf("job = status %s ok %d err %d, want done/1/1", got.Status, got.OkRows, got.ErrorRows)
	}

	product, _ := st.ProductByEAN(ctx, "3700000000017")
	if product == nil {
		t.Fatal("product not created")
	}
	if product.PublicPriceSource != catalog.SourcePVPAlkor {
		t.Errorf("PublicPriceSource = %q, want PVP_ALKOR", product.PublicPriceSource)
	}
	if !product.PublicPriceTTC.Decimal.Equal(dec("9.9")) {
		t.Errorf("PublicPriceTTC = %v, want 9.9", product.PublicPriceTTC)
	}
	if product.AvailableQtyTotal != 5 || !product.IsAvailable {
		t.Errorf("availability = (%d, %v), want (5, true)", product.AvailableQtyTotal, product.IsAvailable)
	}

	offer, _ := st.OfferBySupplierRef(ctx, catalog.SupplierAlkor, "A1")
	if offer == nil || offer.ProductID != product.ID {
		t.Errorf("offer = %+v, want bound to product %d", offer, product.ID)
	}

	staged, _ := st.JobRows(ctx, job.ID)
	if staged[0].Status != catalog.RowApplied || staged[0].PreviousSnapshot != nil {
		t.Errorf("row 1 = %s snapshot %v, want applied with nil snapshot", staged[0].Status, staged[0].PreviousSnapshot)
	}
	if staged[1].Status != catalog.RowInvalid || len(staged[1].ErrorMessages) == 0 {
		t.Errorf("row 2 = %s %v, want invalid with messages", staged[1].Status, staged[1].ErrorMessages)
	}
}

func TestApply_CreateMatchesExistingByEAN(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	existing := catalog.Product{EAN: "3700000000017", Name: "Old Name", Family: "papeterie"}
	if err := st.CreateProduct(ctx, &existing); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	rows := []map[string]string{
		{"name": "New Name", "ean": "3700000000017", "ref_art": "A1"},
	}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, catalogueMapping, rows)

	result, err := svc.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Created != 0 || result.Updated != 1 {
		t.Errorf("result = %+v, want updated=1 created=0", result)
	}

	product, _ := st.ProductByID(ctx, existing.ID)
	if product.Name != "New Name" {
		t.Errorf("Name = %q, want %q", product.Name, "New Name")
	}
	if product.Family != "papeterie" {
		t.Errorf("Family = %q, absent column must not clear it", product.Family)
	}

	staged, _ := st.JobRows(ctx, job.ID)
	snap := staged[0].PreviousSnapshot
	if snap == nil || snap.Product == nil || snap.Product.Name != "Old Name" {
		t.Errorf("snapshot = %+v, want prior product fields", snap)
	}
}

func TestApply_Idempotent(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	rows := []map[string]string{
		{"name": "Stylo", "ean": "3700000000017", "ref_art": "A1"},
		{"ean": "x"}, // invalid
	}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, catalogueMapping, rows)

	if _, err := svc.Apply(ctx, job.ID); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	second, err := svc.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}

	if second.Created != 0 || second.Updated != 0 || second.Errors != 0 {
		t.Errorf("second apply mutated: %+v", second)
	}
	if second.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", second.Skipped)
	}

	got, _ := st.GetJob(ctx, job.ID)
	if got.OkRows != 1 || got.ErrorRows != 1 {
		t.Errorf("counters after rerun = ok %d err %d, want 1/1 (no double count)", got.OkRows, got.ErrorRows)
	}
	if len(st.products) != 1 {
		t.Errorf("products = %d, want 1", len(st.products))
	}
}

func TestApply_EnrichNeverCreates(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	existing := catalog.Product{EAN: "3700000000017", Name: "Stylo"}
	if err := st.CreateProduct(ctx, &existing); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	rows := []map[string]string{
		{"name": "Stylo", "ean": "3700000000017", "description": "Pointe fine 0.7mm"},
		{"name": "Fantome", "ean": "9999999999999"},
		{"name": "Sans EAN"},
	}
	job := stageJob(t, svc, "", catalog.KindCatalogue, catalog.ModeEnrich, catalogueMapping, rows)

	result, err := svc.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if result.Updated != 1 || result.Errors != 2 {
		t.Errorf("result = %+v, want updated=1 errors=2", result)
	}
	if len(st.products) != 1 {
		t.Errorf("products = %d, enrich must not create", len(st.products))
	}

	product, _ := st.ProductByID(ctx, existing.ID)
	if product.Description != "Pointe fine 0.7mm" {
		t.Errorf("Description = %q, want enriched value", product.Description)
	}
}

func seedProductWithOffer(t *testing.T, st *memStore) (catalog.Product, catalog.SupplierOffer) {
	t.Helper()
	ctx := context.Background()

	product := catalog.Product{EAN: "3700000000017", Name: "Stylo", Family: "papeterie"}
	if err := st.CreateProduct(ctx, &product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	offer := catalog.SupplierOffer{
		ProductID:         product.ID,
		Supplier:          catalog.SupplierAlkor,
		SupplierReference: "A1",
		PvpTTC:            ndec("12.99"),
		StockQty:          5,
		MinQty:            1,
		IsActive:          true,
	}
	if err := st.UpsertOffer(ctx, &offer); err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	return product, offer
}

func TestApply_PriceOnlyUpdatesOfferAndRollup(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	product, _ := seedProductWithOffer(t, st)

	rows := []map[string]string{
		{"ref_art": "A1", "pvp_ttc": "9,99", "stock_qty": "2"},
		{"ref_art": "ZZ", "pvp_ttc": "1,00"}, // unknown reference
	}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindPricing, catalog.ModePriceOnly, pricingMapping, rows)

	result, err := svc.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Updated != 1 || result.Errors != 1 || result.Created != 0 {
		t.Errorf("result = %+v, want updated=1 errors=1", result)
	}

	offer, _ := st.OfferBySupplierRef(ctx, catalog.SupplierAlkor, "A1")
	if !offer.PvpTTC.Decimal.Equal(dec("9.99")) || offer.StockQty != 2 {
		t.Errorf("offer = pvp %v stock %d, want 9.99/2", offer.PvpTTC, offer.StockQty)
	}

	got, _ := st.ProductByID(ctx, product.ID)
	if !got.PublicPriceTTC.Decimal.Equal(dec("9.99")) || got.AvailableQtyTotal != 2 {
		t.Errorf("rollup = %v/%d, want 9.99/2", got.PublicPriceTTC, got.AvailableQtyTotal)
	}
	if got.Name != "Stylo" {
		t.Errorf("Name = %q, price-only must not touch product fields", got.Name)
	}

	staged, _ := st.JobRows(ctx, job.ID)
	snap := staged[0].PreviousSnapshot
	if snap == nil || snap.Offer == nil || !snap.Offer.PvpTTC.Decimal.Equal(dec("12.99")) {
		t.Errorf("snapshot = %+v, want prior offer pricing", snap)
	}
	if snap.Product != nil {
		t.Error("price-only snapshot must not include product fields")
	}
}

func TestApply_CreateWithoutReferenceWritesNoOffer(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	// Only name is required; neither row carries ref_art or ean.
	rows := []map[string]string{
		{"name": "Stylo"},
		{"name": "Cahier"},
	}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, catalogueMapping, rows)

	result, err := svc.Apply(ctx, job.ID)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if result.Created != 2 || result.Errors != 0 {
		t.Errorf("result = %+v, want created=2 errors=0", result)
	}
	if len(st.products) != 2 {
		t.Fatalf("products = %d, want 2", len(st.products))
	}
	if len(st.offers) != 0 {
		t.Errorf("offers = %d, rows without references must not share an offer", len(st.offers))
	}
	for id, p := range st.products {
		if p.PublicPriceTTC.Valid || p.IsAvailable {
			t.Errorf("product %d rollup = %+v, want non-sellable", id, p)
		}
	}
}

func TestRecompute_RefreshesProductTimestamp(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	product, _ := seedProductWithOffer(t, st)

	stale := time.Now().Add(-48 * time.Hour)
	p := st.products[product.ID]
	p.UpdatedAt = stale
	st.products[product.ID] = p

	if err := svc.RecomputeProduct(ctx, product.ID); err != nil {
		t.Fatalf("RecomputeProduct: %v", err)
	}

	got, _ := st.ProductByID(ctx, product.ID)
	if !got.UpdatedAt.After(stale) {
		t.Error("recompute must refresh the product timestamp")
	}

	ids, _ := st.RecentlyUpdatedProductIDs(ctx, time.Now().Add(-time.Hour), 10)
	if len(ids) != 1 || ids[0] != product.ID {
		t.Errorf("recent ids = %v, rollup-only change must keep the product sweepable", ids)
	}
}

func TestRecompute_MultipleReferencesPerSupplier(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	product, _ := seedProductWithOffer(t, st)
	second := catalog.SupplierOffer{
		ProductID:         product.ID,
		Supplier:          catalog.SupplierAlkor,
		SupplierReference: "A2",
		PvpTTC:            ndec("11.50"),
		StockQty:          3,
		MinQty:            1,
		IsActive:          true,
		PriorityRank:      1,
	}
	if err := st.UpsertOffer(ctx, &second); err != nil {
		t.Fatalf("UpsertOffer: %v", err)
	}

	offers, _ := st.OffersForProduct(ctx, product.ID)
	if len(offers) != 2 {
		t.Fatalf("offers = %d, want both references kept", len(offers))
	}

	if err := svc.RecomputeProduct(ctx, product.ID); err != nil {
		t.Fatalf("RecomputeProduct: %v", err)
	}

	got, _ := st.ProductByID(ctx, product.ID)
	// The lower-rank reference wins even though the other is cheaper.
	if !got.PublicPriceTTC.Decimal.Equal(dec("12.99")) {
		t.Errorf("PublicPriceTTC = %v, want 12.99 from the rank-0 reference", got.PublicPriceTTC)
	}
	if got.AvailableQtyTotal != 8 {
		t.Errorf("AvailableQtyTotal = %d, want 8 across both references", got.AvailableQtyTotal)
	}
}

func TestRollback_DeletesCreatedProducts(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	rows := []map[string]string{
		{"name": "Stylo", "ean": "3700000000017", "ref_art": "A1", "pvp_ttc": "9,90", "stock_qty": "5"},
	}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, catalogueMapping, rows)
	if _, err := svc.Apply(ctx, job.ID); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	result, err := svc.Rollback(ctx, job.ID)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if result.RowsRolledBack != 1 || result.ProductsDeleted != 1 {
		t.Errorf("result = %+v, want 1 row, 1 product deleted", result)
	}
	if len(st.products) != 0 || len(st.offers) != 0 {
		t.Errorf("catalog = %d products %d offers, want empty", len(st.products), len(st.offers))
	}

	got, _ := st.GetJob(ctx, job.ID)
	if got.Status != catalog.JobRolledBack || got.RolledBackAt == nil {
		t.Errorf("job = %s rolledBackAt %v, want rolled_back with timestamp", got.Status, got.RolledBackAt)
	}

	staged, _ := st.JobRows(ctx, job.ID)
	if staged[0].Status != catalog.RowRolledBack {
		t.Errorf("row status = %s, want rolled_back", staged[0].Status)
	}
}

func TestRollback_RestoresOfferAndRecomputesRollup(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	product, _ := seedProductWithOffer(t, st)

	rows := []map[string]string{{"ref_art": "A1", "pvp_ttc": "9,99", "stock_qty": "2"}}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindPricing, catalog.ModePriceOnly, pricingMapping, rows)
	if _, err := svc.Apply(ctx, job.ID); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	result, err := svc.Rollback(ctx, job.ID)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if result.OffersRestored != 1 || result.ProductsDeleted != 0 {
		t.Errorf("result = %+v, want 1 offer restored", result)
	}
	if result.RollupsRecomputed != 1 {
		t.Errorf("RollupsRecomputed = %d, want 1", result.RollupsRecomputed)
	}

	offer, _ := st.OfferBySupplierRef(ctx, catalog.SupplierAlkor, "A1")
	if !offer.PvpTTC.Decimal.Equal(dec("12.99")) || offer.StockQty != 5 {
		t.Errorf("offer = pvp %v stock %d, want restored 12.99/5", offer.PvpTTC, offer.StockQty)
	}

	got, _ := st.ProductByID(ctx, product.ID)
	if !got.PublicPriceTTC.Decimal.Equal(dec("12.99")) || got.AvailableQtyTotal != 5 {
		t.Errorf("rollup = %v/%d, want restored 12.99/5", got.PublicPriceTTC, got.AvailableQtyTotal)
	}
}

func TestRollback_Preconditions(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Unknown job
	if _, err := svc.Rollback(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("unknown job error = %v, want ErrJobNotFound", err)
	}

	// Still staging
	rows := []map[string]string{{"name": "Stylo"}}
	job := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, catalogueMapping, rows)
	if _, err := svc.Rollback(ctx, job.ID); !errors.Is(err, ErrRollbackNotAllowed) {
		t.Errorf("staging job error = %v, want ErrRollbackNotAllowed", err)
	}

	// Applied but nothing succeeded
	badRows := []map[string]string{{"ean": "no-name"}}
	badJob := stageJob(t, svc, catalog.SupplierAlkor, catalog.KindCatalogue, catalog.ModeCreate, catalogueMapping, badRows)
	if _, err := svc.Apply(ctx, badJob.ID); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := svc.Rollback(ctx, badJob.ID); !errors.Is(err, ErrRollbackNotAllowed) {
		t.Errorf("zero ok rows error = %v, want ErrRollbackNotAllowed", err)
	}

	// Double rollback
	if _, err := svc.Apply(ctx, job.ID); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := svc.Rollback(ctx, job.ID); err != nil {
		t.Fatalf("first Rollback: %v", err)
	}
	if _, err := svc.Rollback(ctx, job.ID); !errors.Is(err, ErrRollbackNotAllowed) {
		t.Errorf("second rollback error = %v, want ErrRollbackNotAllowed", err)
	}
}

func TestToggleOffer_QueuesRecompute(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	product, offer := seedProductWithOffer(t, st)
	if err := svc.RecomputeProduct(ctx, product.ID); err != nil {
		t.Fatalf("RecomputeProduct: %v", err)
	}

	toggled, err := svc.ToggleOffer(ctx, offer.ID, false)
	if err != nil {
		t.Fatalf("ToggleOffer: %v", err)
	}
	if toggled.IsActive {
		t.Error("offer still active after toggle")
	}
	if svc.Queue().Pending() != 1 {
		t.Errorf("queue pending = %d, want 1", svc.Queue().Pending())
	}

	svc.Queue().Drain(ctx)

	got, _ := st.ProductByID(ctx, product.ID)
	if got.PublicPriceTTC.Valid || got.IsAvailable {
		t.Errorf("rollup after drain = %+v, want non-sellable", got)
	}
	if svc.Queue().Pending() != 0 {
		t.Errorf("queue pending after drain = %d, want 0", svc.Queue().Pending())
	}
}

func TestSaveTemplate_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SaveTemplate(ctx, catalog.SupplierAlkor, "", catalogueMapping); err == nil {
		t.Error("empty name should fail")
	}
	if _, err := svc.SaveTemplate(ctx, catalog.SupplierAlkor, "std", nil); err == nil {
		t.Error("empty mapping should fail")
	}

	tpl, err := svc.SaveTemplate(ctx, catalog.SupplierAlkor, "std", catalogueMapping)
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if tpl.ID == "" {
		t.Error("template id not assigned")
	}

	templates, err := svc.ListTemplates(ctx, catalog.SupplierAlkor)
	if err != nil || len(templates) != 1 {
		t.Fatalf("ListTemplates = (%v, %v), want one template", templates, err)
	}

	if err := svc.DeleteTemplate(ctx, tpl.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	templates, _ = svc.ListTemplates(ctx, catalog.SupplierAlkor)
	if len(templates) != 0 {
		t.Errorf("templates after delete = %d, want 0", len(templates))
	}
}

func TestReconcileSweep_RepairsDrift(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	product, _ := seedProductWithOffer(t, st)

	// Corrupt the stored rollup to simulate drift.
	if err := st.SaveRollup(ctx, product.ID, catalog.Rollup{AvailableQtyTotal: 999}); err != nil {
		t.Fatalf("SaveRollup: %v", err)
	}

	svc.runSweep(ctx, SweepConfig{Lookback: 24 * time.Hour, BatchSize: 10, Interval: time.Hour})

	got, _ := st.ProductByID(ctx, product.ID)
	if got.AvailableQtyTotal != 5 || !got.PublicPriceTTC.Decimal.Equal(dec("12.99")) {
		t.Errorf("rollup after sweep = %d/%v, want repaired 5/12.99", got.AvailableQtyTotal, got.PublicPriceTTC)
	}
}
