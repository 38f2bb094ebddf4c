package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shipyard/internal/export"
)

const jobColumns = "id, name, description, created_by, campaign_ids_json, format_json, destination_json, options_json, template_id, status, progress, results_json, errors_json, metadata_json, created_at, updated_at, started_at, completed_at"

// Insert persists a new job. CreatedAt and UpdatedAt are stamped when unset.
func (s *Store) Insert(ctx context.Context, job *export.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.ID == "" {
		return errors.New("job id is required")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	row, err := encodeJob(job)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO export_jobs (`+jobColumns+`) VALUES (`+makePlaceholders(18)+`)`,
		job.ID,
		job.Name,
		nullableString(job.Description),
		nullableString(job.CreatedBy),
		row.campaignIDs,
		row.format,
		row.destination,
		row.options,
		nullableString(job.TemplateID),
		string(job.Status),
		job.Progress,
		row.results,
		row.errors,
		row.metadata,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Update persists every mutable field of an existing job.
func (s *Store) Update(ctx context.Context, job *export.Job) error {
	_, err := s.update(ctx, job, "")
	return err
}

// UpdateIfStatus persists the job only while the stored status still equals
// expected. It reports whether the row was written, which lets the single
// writer detect a concurrent cancellation.
func (s *Store) UpdateIfStatus(ctx context.Context, job *export.Job, expected export.Status) (bool, error) {
	return s.update(ctx, job, expected)
}

func (s *Store) update(ctx context.Context, job *export.Job, expected export.Status) (bool, error) {
	if job == nil {
		return false, errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	row, err := encodeJob(job)
	if err != nil {
		return false, err
	}

	query := `UPDATE export_jobs
         SET name = ?, description = ?, status = ?, progress = ?, results_json = ?,
             errors_json = ?, metadata_json = ?, updated_at = ?, started_at = ?, completed_at = ?
         WHERE id = ?`
	args := []any{
		job.Name,
		nullableString(job.Description),
		string(job.Status),
		job.Progress,
		row.results,
		row.errors,
		row.metadata,
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		job.ID,
	}
	if expected != "" {
		query += " AND status = ?"
		args = append(args, string(expected))
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update job rows affected: %w", err)
	}
	if affected == 0 && expected == "" {
		return false, fmt.Errorf("update job %s: not found", job.ID)
	}
	return affected > 0, nil
}

// UpdateProgress records progress for a processing job. Progress never moves
// backwards; lower values are ignored.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := s.execWithRetry(
		ctx,
		`UPDATE export_jobs SET progress = ?, updated_at = ?
         WHERE id = ? AND status = ? AND progress < ?`,
		progress,
		formatTime(time.Now()),
		id,
		string(export.StatusProcessing),
		progress,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkCancelled moves a queued or processing job to cancelled. It reports false
// when the job is missing or already terminal.
func (s *Store) MarkCancelled(ctx context.Context, id string, at time.Time) (bool, error) {
	timestamp := formatTime(at)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE export_jobs SET status = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		string(export.StatusCancelled),
		timestamp,
		timestamp,
		id,
		string(export.StatusQueued),
		string(export.StatusProcessing),
	)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel job rows affected: %w", err)
	}
	return affected > 0, nil
}

// Get fetches a job by identifier. Missing jobs return (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*export.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// StatusOf returns the stored status of a job without decoding its payload.
func (s *Store) StatusOf(ctx context.Context, id string) (export.Status, bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM export_jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("job status: %w", err)
	}
	return export.Status(status), true, nil
}

// List returns jobs ordered by creation time, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...export.Status) ([]*export.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM export_jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*export.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns job counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[export.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM export_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[export.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[export.Status(status)] = count
	}
	return stats, rows.Err()
}

// PurgeTerminal deletes finished jobs completed before the cutoff.
func (s *Store) PurgeTerminal(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM export_jobs WHERE status IN (?, ?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(export.StatusCompleted),
		string(export.StatusFailed),
		string(export.StatusCancelled),
		formatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return res.RowsAffected()
}

type encodedJob struct {
	campaignIDs string
	format      string
	destination string
	options     string
	results     any
	errors      any
	metadata    string
}

func encodeJob(job *export.Job) (encodedJob, error) {
	var (
		row encodedJob
		err error
	)
	if row.campaignIDs, err = marshalJSON("campaign ids", job.CampaignIDs); err != nil {
		return row, err
	}
	if row.format, err = marshalJSON("format", job.Format); err != nil {
		return row, err
	}
	if row.destination, err = marshalJSON("destination", job.Destination); err != nil {
		return row, err
	}
	if row.options, err = marshalJSON("options", job.Options); err != nil {
		return row, err
	}
	if row.results, err = marshalOptional("results", job.Results, len(job.Results) == 0); err != nil {
		return row, err
	}
	if row.errors, err = marshalOptional("errors", job.Errors, len(job.Errors) == 0); err != nil {
		return row, err
	}
	if row.metadata, err = marshalJSON("metadata", job.Metadata); err != nil {
		return row, err
	}
	return row, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*export.Job, error) {
	var (
		id          string
		name        string
		description sql.NullString
		createdBy   sql.NullString
		campaignIDs sql.NullString
		format      sql.NullString
		destination sql.NullString
		options     sql.NullString
		templateID  sql.NullString
		status      string
		progress    int
		results     sql.NullString
		errorsRaw   sql.NullString
		metadata    sql.NullString
		createdRaw  string
		updatedRaw  string
		startedRaw  sql.NullString
		completeRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&name,
		&description,
		&createdBy,
		&campaignIDs,
		&format,
		&destination,
		&options,
		&templateID,
		&status,
		&progress,
		&results,
		&errorsRaw,
		&metadata,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completeRaw,
	); err != nil {
		return nil, err
	}

	job := &export.Job{
		ID:          id,
		Name:        name,
		Description: description.String,
		CreatedBy:   createdBy.String,
		TemplateID:  templateID.String,
		Status:      export.Status(status),
		Progress:    progress,
		StartedAt:   parseNullableTime(startedRaw),
		CompletedAt: parseNullableTime(completeRaw),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}

	decoders := []struct {
		field  string
		raw    sql.NullString
		target any
	}{
		{"campaign ids", campaignIDs, &job.CampaignIDs},
		{"format", format, &job.Format},
		{"destination", destination, &job.Destination},
		{"options", options, &job.Options},
		{"results", results, &job.Results},
		{"errors", errorsRaw, &job.Errors},
		{"metadata", metadata, &job.Metadata},
	}
	for _, d := range decoders {
		if err := unmarshalJSON(d.field, d.raw, d.target); err != nil {
			return nil, err
		}
	}
	return job, nil
}
