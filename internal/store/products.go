package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ouestoffice/catalog/internal/catalog"
)

const productColumns = `
	id, ean, name, description, family, sub_family, cost_price_ht,
	public_price_ttc, public_price_source, available_qty_total, is_available, updated_at`

func scanProduct(row pgx.Row) (*catalog.Product, error) {
	var p catalog.Product
	var cost, public pgtype.Numeric
	err := row.Scan(
		&p.ID, &p.EAN, &p.Name, &p.Description, &p.Family, &p.SubFamily, &cost,
		&public, &p.PublicPriceSource, &p.AvailableQtyTotal, &p.IsAvailable, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.CostPriceHT = fromNumeric(cost)
	p.PublicPriceTTC = fromNumeric(public)
	return &p, nil
}

// ProductByID returns the product or nil when it does not exist.
func (p *Postgres) ProductByID(ctx context.Context, id int64) (*catalog.Product, error) {
	return scanProduct(p.db().QueryRow(ctx,
		`SELECT`+productColumns+` FROM products WHERE id = $1`, id))
}

// ProductByEAN returns the product carrying the barcode, or nil. Empty EANs
// never match.
func (p *Postgres) ProductByEAN(ctx context.Context, ean string) (*catalog.Product, error) {
	if ean == "" {
		return nil, nil
	}
	return scanProduct(p.db().QueryRow(ctx,
		`SELECT`+productColumns+` FROM products WHERE ean = $1`, ean))
}

// CreateProduct inserts the product and fills in its generated id.
func (p *Postgres) CreateProduct(ctx context.Context, prod *catalog.Product) error {
	err := p.db().QueryRow(ctx, `
		INSERT INTO products (ean, name, description, family, sub_family, cost_price_ht)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, updated_at`,
		prod.EAN, prod.Name, prod.Description, prod.Family, prod.SubFamily, toNumeric(prod.CostPriceHT),
	).Scan(&prod.ID, &prod.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// UpdateProduct saves the descriptive fields. Rollup fields go through
// SaveRollup only.
func (p *Postgres) UpdateProduct(ctx context.Context, prod *catalog.Product) error {
	tag, err := p.db().Exec(ctx, `
		UPDATE products
		SET ean = $2, name = $3, description = $4, family = $5, sub_family = $6,
		    cost_price_ht = $7, updated_at = now()
		WHERE id = $1`,
		prod.ID, prod.EAN, prod.Name, prod.Description, prod.Family, prod.SubFamily,
		toNumeric(prod.CostPriceHT),
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d not found", prod.ID)
	}
	return nil
}

// DeleteProduct removes the product; its offers go with it through the
// foreign key cascade.
func (p *Postgres) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := p.db().Exec(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// SaveRollup writes the derived price/availability fields with a fresh
// updated_at, so rollup-only changes keep the product visible to the
// reconcile sweep.
func (p *Postgres) SaveRollup(ctx context.Context, productID int64, r catalog.Rollup) error {
	tag, err := p.db().Exec(ctx, `
		UPDATE products
		SET public_price_ttc = $2, public_price_source = $3,
		    available_qty_total = $4, is_available = $5, updated_at = now()
		WHERE id = $1`,
		productID, toNumeric(r.PublicPriceTTC), string(r.PublicPriceSource),
		r.AvailableQtyTotal, r.IsAvailable,
	)
	if err != nil {
		return fmt.Errorf("save rollup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d not found", productID)
	}
	return nil
}

// Coefficients returns every category multiplier.
func (p *Postgres) Coefficients(ctx context.Context) ([]catalog.PricingCoefficient, error) {
	rows, err := p.db().Query(ctx,
		`SELECT family, sub_family, multiplier FROM pricing_coefficients ORDER BY family, sub_family`)
	if err != nil {
		return nil, fmt.Errorf("select coefficients: %w", err)
	}
	defer rows.Close()

	var out []catalog.PricingCoefficient
	for rows.Next() {
		var c catalog.PricingCoefficient
		var mult pgtype.Numeric
		if err := rows.Scan(&c.Family, &c.SubFamily, &mult); err != nil {
			return nil, fmt.Errorf("scan coefficient: %w", err)
		}
		if d := fromNumeric(mult); d.Valid {
			c.Multiplier = d.Decimal
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecentlyUpdatedProductIDs lists products touched since the cutoff, oldest
// first so a capped sweep catches up over consecutive runs.
func (p *Postgres) RecentlyUpdatedProductIDs(ctx context.Context, since time.Time, limit int) ([]int64, error) {
	rows, err := p.db().Query(ctx, `
		SELECT id FROM products WHERE updated_at >= $1
		ORDER BY updated_at, id LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent products: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
