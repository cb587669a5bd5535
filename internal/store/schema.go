package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on startup. Every statement is idempotent so restarts
// are safe without a migration tool.
const schema = `
CREATE TABLE IF NOT EXISTS products (
    id                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    ean                 TEXT NOT NULL DEFAULT '',
    name                TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    family              TEXT NOT NULL DEFAULT '',
    sub_family          TEXT NOT NULL DEFAULT '',
    cost_price_ht       NUMERIC(12,4),
    public_price_ttc    NUMERIC(12,4),
    public_price_source TEXT NOT NULL DEFAULT '',
    available_qty_total INTEGER NOT NULL DEFAULT 0,
    is_available        BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS products_ean_key
    ON products (ean) WHERE ean <> '';

CREATE TABLE IF NOT EXISTS supplier_offers (
    id                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    product_id          BIGINT NOT NULL REFERENCES products (id) ON DELETE CASCADE,
    supplier            TEXT NOT NULL,
    supplier_reference  TEXT NOT NULL,
    purchase_price_ht   NUMERIC(12,4),
    pvp_ttc             NUMERIC(12,4),
    vat_rate            NUMERIC(6,3),
    tax_breakdown       JSONB NOT NULL DEFAULT '{}',
    stock_qty           INTEGER NOT NULL DEFAULT 0,
    min_qty             INTEGER NOT NULL DEFAULT 1,
    delivery_delay_days INTEGER,
    is_active           BOOLEAN NOT NULL DEFAULT TRUE,
    is_preferred        BOOLEAN NOT NULL DEFAULT FALSE,
    priority_rank       INTEGER NOT NULL DEFAULT 0,
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (product_id, supplier, supplier_reference)
);

CREATE UNIQUE INDEX IF NOT EXISTS supplier_offers_ref_key
    ON supplier_offers (supplier, supplier_reference) WHERE supplier_reference <> '';

CREATE INDEX IF NOT EXISTS supplier_offers_product_idx
    ON supplier_offers (product_id);

CREATE TABLE IF NOT EXISTS import_jobs (
    id             UUID PRIMARY KEY,
    supplier       TEXT NOT NULL DEFAULT '',
    filename       TEXT NOT NULL,
    kind           TEXT NOT NULL,
    mode           TEXT NOT NULL,
    total_rows     INTEGER NOT NULL DEFAULT 0,
    ok_rows        INTEGER NOT NULL DEFAULT 0,
    error_rows     INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    rolled_back_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS import_job_rows (
    job_id            UUID NOT NULL REFERENCES import_jobs (id) ON DELETE CASCADE,
    row_index         INTEGER NOT NULL,
    raw_data          JSONB NOT NULL DEFAULT '{}',
    mapped_data       JSONB NOT NULL DEFAULT '{}',
    status            TEXT NOT NULL,
    error_messages    JSONB NOT NULL DEFAULT '[]',
    product_id        BIGINT,
    previous_snapshot JSONB,
    PRIMARY KEY (job_id, row_index)
);

CREATE TABLE IF NOT EXISTS import_mapping_templates (
    id         UUID PRIMARY KEY,
    supplier   TEXT NOT NULL DEFAULT '',
    name       TEXT NOT NULL,
    mapping    JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (supplier, name)
);

CREATE TABLE IF NOT EXISTS pricing_coefficients (
    family     TEXT NOT NULL,
    sub_family TEXT NOT NULL DEFAULT '',
    multiplier NUMERIC(8,4) NOT NULL,
    PRIMARY KEY (family, sub_family)
);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
