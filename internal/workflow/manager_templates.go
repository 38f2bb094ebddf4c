package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"shipyard/internal/export"
	"shipyard/internal/services"
)

// CreateTemplate validates and stores a reusable job preset.
func (m *Manager) CreateTemplate(ctx context.Context, tmpl export.Template) (*export.Template, error) {
	tmpl.Name = strings.TrimSpace(tmpl.Name)
	if tmpl.Name == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "create template", "template name is required", nil)
	}
	existing, err := m.store.GetTemplate(ctx, tmpl.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "create template", fmt.Sprintf("template %q already exists", tmpl.Name), nil)
	}

	// Reuse request validation so a template can always produce a job.
	draft := Request{
		Name:        tmpl.Name,
		CampaignIDs: []string{"template"},
		Format:      tmpl.Format,
		Destination: tmpl.Destination,
		Options:     tmpl.Options,
	}
	if err := m.normalizeRequest(&draft); err != nil {
		return nil, err
	}
	tmpl.Format = draft.Format
	tmpl.Destination = draft.Destination
	tmpl.ID = uuid.NewString()
	tmpl.UsageCount = 0
	tmpl.CreatedAt = m.now().UTC()
	if err := m.store.InsertTemplate(ctx, &tmpl); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// ListTemplates returns every stored template.
func (m *Manager) ListTemplates(ctx context.Context) ([]*export.Template, error) {
	return m.store.ListTemplates(ctx)
}

// GetTemplate looks a template up by id or name.
func (m *Manager) GetTemplate(ctx context.Context, idOrName string) (*export.Template, error) {
	tmpl, err := m.store.GetTemplate(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "get template", fmt.Sprintf("template %s not found", idOrName), nil)
	}
	return tmpl, nil
}

// DeleteTemplate removes a template.
func (m *Manager) DeleteTemplate(ctx context.Context, id string) error {
	removed, err := m.store.DeleteTemplate(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return services.Wrap(services.ErrNotFound, "workflow", "delete template", fmt.Sprintf("template %s not found", id), nil)
	}
	return nil
}
