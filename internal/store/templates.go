package store

import (
	"context"
	"fmt"

	"github.com/ouestoffice/catalog/internal/catalog"
)

// CreateTemplate saves a mapping template. A template with the same name
// for the same supplier is overwritten in place.
func (p *Postgres) CreateTemplate(ctx context.Context, t *catalog.ImportMappingTemplate) error {
	mapping, err := toJSON(t.Mapping)
	if err != nil {
		return err
	}
	_, err = p.db().Exec(ctx, `
		INSERT INTO import_mapping_templates (id, supplier, name, mapping, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (supplier, name) DO UPDATE SET
			mapping = EXCLUDED.mapping, updated_at = EXCLUDED.updated_at`,
		t.ID, string(t.Supplier), t.Name, mapping, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

// ListTemplates returns the supplier's templates plus the global ones.
// An empty supplier lists everything.
func (p *Postgres) ListTemplates(ctx context.Context, supplier catalog.Supplier) ([]catalog.ImportMappingTemplate, error) {
	query := `
		SELECT id, supplier, name, mapping, created_at, updated_at
		FROM import_mapping_templates`
	args := []any{}
	if supplier != "" {
		query += ` WHERE supplier = $1 OR supplier = ''`
		args = append(args, string(supplier))
	}
	query += ` ORDER BY supplier, name`

	rows, err := p.db().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}
	defer rows.Close()

	var out []catalog.ImportMappingTemplate
	for rows.Next() {
		var t catalog.ImportMappingTemplate
		var mapping []byte
		if err := rows.Scan(&t.ID, &t.Supplier, &t.Name, &mapping, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t.Mapping = map[catalog.FieldKey]string{}
		if err := fromJSON(mapping, &t.Mapping); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTemplate removes a saved template.
func (p *Postgres) DeleteTemplate(ctx context.Context, id string) error {
	if _, err := p.db().Exec(ctx, `DELETE FROM import_mapping_templates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
