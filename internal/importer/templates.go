package importer

// templates.go persists reusable column mappings. Saving records the working
// mapping under a name scoped to a supplier (or globally); loading one
// simply hands the stored mapping back to the caller, which overwrites its
// working mapping with it.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ouestoffice/catalog/internal/catalog"
)

// TemplateMatchThreshold is the minimum MatchScore for a saved template to
// be suggested for an upload's headers.
var TemplateMatchThreshold = 0.6

// SaveTemplate records a mapping under a name. An empty supplier makes the
// template global.
func (s *Service) SaveTemplate(ctx context.Context, supplier catalog.Supplier, name string, mapping catalog.Mapping) (*catalog.ImportMappingTemplate, error) {
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("template mapping is empty")
	}

	now := time.Now()
	tpl := &catalog.ImportMappingTemplate{
		ID:        uuid.New().String(),
		Supplier:  supplier,
		Name:      name,
		Mapping:   mapping,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return tpl, nil
}

// ListTemplates returns the templates visible to a supplier: its own plus
// the global ones. An empty supplier lists everything.
func (s *Service) ListTemplates(ctx context.Context, supplier catalog.Supplier) ([]catalog.ImportMappingTemplate, error) {
	templates, err := s.store.ListTemplates(ctx, supplier)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// DeleteTemplate removes a saved template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if err := s.store.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}
