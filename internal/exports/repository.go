package exports

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surveyflow/backend/internal/models"
)

// ErrNotFound is returned when an export does not exist.
var ErrNotFound = errors.New("export not found")

const exportColumns = `id, survey_no, status, object_key, row_count, error_message, created_at, completed_at`

// Repository handles export persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an exports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanExport(row pgx.Row) (*models.Export, error) {
	var e models.Export
	err := row.Scan(&e.ID, &e.SurveyNo, &e.Status, &e.ObjectKey, &e.RowCount, &e.ErrorMessage, &e.CreatedAt, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a pending export.
func (r *Repository) Create(ctx context.Context, surveyNo int64) (*models.Export, error) {
	query := `INSERT INTO response_exports (survey_no) VALUES ($1) RETURNING ` + exportColumns
	return scanExport(r.pool.QueryRow(ctx, query, surveyNo))
}

// Get returns an export by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Export, error) {
	query := `SELECT ` + exportColumns + ` FROM response_exports WHERE id = $1`
	return scanExport(r.pool.QueryRow(ctx, query, id))
}

// MarkCompleted records the uploaded object.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, objectKey string, rowCount int) error {
	const query = `UPDATE response_exports SET status = 'completed', object_key = $2, row_count = $3,
		error_message = '', completed_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, objectKey, rowCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed records why an export failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	const query = `UPDATE response_exports SET status = 'failed', error_message = $2, completed_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, message)
	return err
}

// Delete removes an export record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM response_exports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
