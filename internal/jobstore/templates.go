package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shipyard/internal/export"
)

const templateColumns = "id, name, description, category, format_json, destination_json, options_json, usage_count, created_by, created_at"

// InsertTemplate persists a new job template.
func (s *Store) InsertTemplate(ctx context.Context, tmpl *export.Template) error {
	if tmpl == nil {
		return errors.New("template is nil")
	}
	if tmpl.ID == "" || tmpl.Name == "" {
		return errors.New("template id and name are required")
	}
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = time.Now().UTC()
	}
	format, err := marshalJSON("format", tmpl.Format)
	if err != nil {
		return err
	}
	destination, err := marshalJSON("destination", tmpl.Destination)
	if err != nil {
		return err
	}
	options, err := marshalJSON("options", tmpl.Options)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO export_templates (`+templateColumns+`) VALUES (`+makePlaceholders(10)+`)`,
		tmpl.ID,
		tmpl.Name,
		nullableString(tmpl.Description),
		nullableString(tmpl.Category),
		format,
		destination,
		options,
		tmpl.UsageCount,
		nullableString(tmpl.CreatedBy),
		formatTime(tmpl.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// GetTemplate fetches a template by id or name. Missing templates return (nil, nil).
func (s *Store) GetTemplate(ctx context.Context, idOrName string) (*export.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM export_templates WHERE id = ? OR name = ? LIMIT 1`,
		idOrName, idOrName,
	)
	tmpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tmpl, nil
}

// ListTemplates returns templates ordered by usage, most used first.
func (s *Store) ListTemplates(ctx context.Context) ([]*export.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM export_templates ORDER BY usage_count DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*export.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}

// DeleteTemplate removes a template. It reports whether a row was deleted.
func (s *Store) DeleteTemplate(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM export_templates WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete template rows affected: %w", err)
	}
	return affected > 0, nil
}

// IncrementTemplateUsage bumps the usage counter of a template.
func (s *Store) IncrementTemplateUsage(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `UPDATE export_templates SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment template usage: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("increment template usage: template %s not found", id)
	}
	return nil
}

func scanTemplate(scanner interface{ Scan(dest ...any) error }) (*export.Template, error) {
	var (
		tmpl        export.Template
		description sql.NullString
		category    sql.NullString
		format      sql.NullString
		destination sql.NullString
		options     sql.NullString
		createdBy   sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(
		&tmpl.ID,
		&tmpl.Name,
		&description,
		&category,
		&format,
		&destination,
		&options,
		&tmpl.UsageCount,
		&createdBy,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	tmpl.Description = description.String
	tmpl.Category = category.String
	tmpl.CreatedBy = createdBy.String
	if created, err := parseTimeString(createdRaw); err == nil {
		tmpl.CreatedAt = created
	}
	if err := unmarshalJSON("format", format, &tmpl.Format); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("destination", destination, &tmpl.Destination); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("options", options, &tmpl.Options); err != nil {
		return nil, err
	}
	return &tmpl, nil
}
