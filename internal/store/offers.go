package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ouestoffice/catalog/internal/catalog"
)

const offerColumns = `
	id, product_id, supplier, supplier_reference, purchase_price_ht, pvp_ttc,
	vat_rate, tax_breakdown, stock_qty, min_qty, delivery_delay_days,
	is_active, is_preferred, priority_rank, updated_at`

func scanOffer(row pgx.Row) (*catalog.SupplierOffer, error) {
	var o catalog.SupplierOffer
	var purchase, pvp, vat pgtype.Numeric
	var taxes []byte
	err := row.Scan(
		&o.ID, &o.ProductID, &o.Supplier, &o.SupplierReference, &purchase, &pvp,
		&vat, &taxes, &o.StockQty, &o.MinQty, &o.DeliveryDelayDays,
		&o.IsActive, &o.IsPreferred, &o.PriorityRank, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan offer: %w", err)
	}
	o.PurchasePriceHT = fromNumeric(purchase)
	o.PvpTTC = fromNumeric(pvp)
	o.VatRate = fromNumeric(vat)
	o.TaxBreakdown = catalog.TaxBreakdown{}
	if err := fromJSON(taxes, &o.TaxBreakdown); err != nil {
		return nil, err
	}
	return &o, nil
}

// OfferByID returns the offer or nil when it does not exist.
func (p *Postgres) OfferByID(ctx context.Context, id int64) (*catalog.SupplierOffer, error) {
	return scanOffer(p.db().QueryRow(ctx,
		`SELECT`+offerColumns+` FROM supplier_offers WHERE id = $1`, id))
}

// OfferBySupplierRef returns the supplier's offer carrying the reference,
// or nil. Empty references never match.
func (p *Postgres) OfferBySupplierRef(ctx context.Context, supplier catalog.Supplier, ref string) (*catalog.SupplierOffer, error) {
	if ref == "" {
		return nil, nil
	}
	return scanOffer(p.db().QueryRow(ctx,
		`SELECT`+offerColumns+` FROM supplier_offers WHERE supplier = $1 AND supplier_reference = $2`,
		string(supplier), ref))
}

// OffersForProduct returns every offer of a product, active or not.
func (p *Postgres) OffersForProduct(ctx context.Context, productID int64) ([]catalog.SupplierOffer, error) {
	rows, err := p.db().Query(ctx,
		`SELECT`+offerColumns+` FROM supplier_offers WHERE product_id = $1 ORDER BY priority_rank, id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("select offers: %w", err)
	}
	defer rows.Close()

	var out []catalog.SupplierOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpsertOffer inserts the offer or, when the supplier already has one for
// the product under this reference, overwrites its mutable fields. The
// offer's id and updated_at are filled in either way.
func (p *Postgres) UpsertOffer(ctx context.Context, o *catalog.SupplierOffer) error {
	taxes, err := taxBreakdownJSON(o.TaxBreakdown)
	if err != nil {
		return err
	}
	err = p.db().QueryRow(ctx, `
		INSERT INTO supplier_offers (
			product_id, supplier, supplier_reference, purchase_price_ht, pvp_ttc,
			vat_rate, tax_breakdown, stock_qty, min_qty, delivery_delay_days,
			is_active, is_preferred, priority_rank
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (product_id, supplier, supplier_reference) DO UPDATE SET
			purchase_price_ht   = EXCLUDED.purchase_price_ht,
			pvp_ttc             = EXCLUDED.pvp_ttc,
			vat_rate            = EXCLUDED.vat_rate,
			tax_breakdown       = EXCLUDED.tax_breakdown,
			stock_qty           = EXCLUDED.stock_qty,
			min_qty             = EXCLUDED.min_qty,
			delivery_delay_days = EXCLUDED.delivery_delay_days,
			is_active           = EXCLUDED.is_active,
			is_preferred        = EXCLUDED.is_preferred,
			priority_rank       = EXCLUDED.priority_rank,
			updated_at          = now()
		RETURNING id, updated_at`,
		o.ProductID, string(o.Supplier), o.SupplierReference, toNumeric(o.PurchasePriceHT),
		toNumeric(o.PvpTTC), toNumeric(o.VatRate), taxes, o.StockQty, o.MinQty,
		o.DeliveryDelayDays, o.IsActive, o.IsPreferred, o.PriorityRank,
	).Scan(&o.ID, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert offer: %w", err)
	}
	return nil
}

// SetOfferActive flips the active flag and returns the updated offer.
func (p *Postgres) SetOfferActive(ctx context.Context, offerID int64, active bool) (*catalog.SupplierOffer, error) {
	offer, err := scanOffer(p.db().QueryRow(ctx, `
		UPDATE supplier_offers SET is_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING`+offerColumns, offerID, active))
	if err != nil {
		return nil, fmt.Errorf("toggle offer %d: %w", offerID, err)
	}
	if offer == nil {
		return nil, fmt.Errorf("offer %d not found", offerID)
	}
	return offer, nil
}
