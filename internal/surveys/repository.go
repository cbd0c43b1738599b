package surveys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/pkg/database"
)

var (
	// ErrNotFound is returned when no survey has the requested number.
	ErrNotFound = errors.New("survey not found")
	// ErrNotEditable is returned when a posted or closed survey is modified.
	ErrNotEditable = errors.New("only surveys still being written can be modified")
	// ErrAlreadyPosted is returned when a survey is posted twice.
	ErrAlreadyPosted = errors.New("survey is already posted")
)

// ListQuery selects a page of surveys for the list screen.
type ListQuery struct {
	Page   int // 0-based
	Size   int
	Search string
	Status models.SurveyStatus // zero for every posted survey
}

// Repository handles survey persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a surveys repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the survey header, questions and selections in one transaction and returns
// the new survey number.
func (r *Repository) Create(ctx context.Context, req models.SurveyCreateRequest, closingAt time.Time) (int64, error) {
	const query = `INSERT INTO surveys (user_no, title, description, image_url, tags, open_status_no, status_no, closing_at, post_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $7::smallint = 2 THEN NOW() END)
		RETURNING survey_no`
	info := req.SurveyInfo
	var surveyNo int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query, info.UserNo, info.SurveyTitle, info.SurveyDescription, info.SurveyImageURL,
			info.SurveyTags, int(info.OpenStatusNo), int(info.SurveyStatusNo), closingAt).Scan(&surveyNo)
		if err != nil {
			return fmt.Errorf("insert survey: %w", err)
		}
		return insertQuestions(ctx, tx, surveyNo, req.Questions)
	})
	if err != nil {
		return 0, err
	}
	return surveyNo, nil
}

// Update replaces the header and every question of a survey that is still being written.
func (r *Repository) Update(ctx context.Context, surveyNo int64, req models.SurveyCreateRequest, closingAt time.Time) error {
	const update = `UPDATE surveys SET title = $2, description = $3, image_url = $4, tags = $5, open_status_no = $6,
		status_no = $7, closing_at = $8, post_at = CASE WHEN $7::smallint = 2 THEN NOW() END, updated_at = NOW()
		WHERE survey_no = $1 AND status_no = 1`
	info := req.SurveyInfo
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, update, surveyNo, info.SurveyTitle, info.SurveyDescription, info.SurveyImageURL,
			info.SurveyTags, int(info.OpenStatusNo), int(info.SurveyStatusNo), closingAt)
		if err != nil {
			return fmt.Errorf("update survey: %w", err)
		}
		if tag.RowsAffected() == 0 {
			if _, err := r.statusTx(ctx, tx, surveyNo); err != nil {
				return err
			}
			return ErrNotEditable
		}
		if _, err := tx.Exec(ctx, `DELETE FROM survey_questions WHERE survey_no = $1`, surveyNo); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		return insertQuestions(ctx, tx, surveyNo, req.Questions)
	})
}

func insertQuestions(ctx context.Context, tx pgx.Tx, surveyNo int64, questions []models.QuestionCreate) error {
	const insertQuestion = `INSERT INTO survey_questions (survey_no, question_no, type_no, title, description, required)
		VALUES ($1, $2, $3, $4, $5, $6)`
	const insertSelection = `INSERT INTO survey_selections (survey_no, question_no, selection_no, value, move_to_question_no, end_of_survey, movable)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	batch := &pgx.Batch{}
	for i, q := range questions {
		no := i + 1
		batch.Queue(insertQuestion, surveyNo, no, int(q.QuestionType), q.QuestionTitle, q.QuestionDescription, q.QuestionRequired)
		if !q.QuestionType.IsChoice() {
			continue
		}
		for k, s := range q.Selections {
			moveTo := 0
			if s.QuestionMoveID != nil && !s.IsEndOfSurvey {
				moveTo = *s.QuestionMoveID
			}
			batch.Queue(insertSelection, surveyNo, no, k+1, s.SelectionValue, moveTo, s.IsEndOfSurvey, s.IsMoveable)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert questions: %w", err)
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Status returns the lifecycle state of a survey.
func (r *Repository) Status(ctx context.Context, surveyNo int64) (models.SurveyStatus, error) {
	return r.statusTx(ctx, r.pool, surveyNo)
}

func (r *Repository) statusTx(ctx context.Context, q rowQuerier, surveyNo int64) (models.SurveyStatus, error) {
	var status models.SurveyStatus
	err := q.QueryRow(ctx, `SELECT status_no FROM surveys WHERE survey_no = $1`, surveyNo).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return status, err
}

// GetInfo returns the survey header.
func (r *Repository) GetInfo(ctx context.Context, surveyNo int64) (*models.SurveyInfo, error) {
	const query = `SELECT survey_no, user_no, title, tags, closing_at, open_status_no, description, status_no, post_at, image_url
		FROM surveys WHERE survey_no = $1`
	var (
		info      models.SurveyInfo
		closingAt time.Time
	)
	err := r.pool.QueryRow(ctx, query, surveyNo).Scan(&info.SurveyID, &info.UserNo, &info.SurveyTitle, &info.SurveyTags,
		&closingAt, &info.OpenStatusNo, &info.SurveyDescription, &info.SurveyStatusNo, &info.SurveyPostAt, &info.SurveyImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	info.SurveyInfoID = info.SurveyID
	info.SurveyClosingAt = flow.ClosingDate(closingAt)
	return &info, nil
}

// GetDetail returns the survey in creation-payload shape for the modify screen.
func (r *Repository) GetDetail(ctx context.Context, surveyNo int64) (*models.SurveyDetail, error) {
	info, err := r.GetInfo(ctx, surveyNo)
	if err != nil {
		return nil, err
	}
	items, err := r.SurveyData(ctx, surveyNo)
	if err != nil {
		return nil, err
	}
	return &models.SurveyDetail{SurveyInfo: *info, Questions: flow.QuestionsFromItems(items)}, nil
}

// SurveyData returns the flat (question, selection) rows a respondent's client consumes.
func (r *Repository) SurveyData(ctx context.Context, surveyNo int64) ([]models.SurveyItem, error) {
	const query = `SELECT s.survey_no, s.title, s.image_url, q.question_no, q.type_no, q.title, q.description,
			COALESCE(sel.selection_no, 0), COALESCE(sel.move_to_question_no, 0), COALESCE(sel.value, ''),
			q.required, COALESCE(sel.end_of_survey, FALSE), COALESCE(sel.movable, FALSE)
		FROM surveys s
		JOIN survey_questions q ON q.survey_no = s.survey_no
		LEFT JOIN survey_selections sel ON sel.survey_no = q.survey_no AND sel.question_no = q.question_no
		WHERE s.survey_no = $1
		ORDER BY q.question_no, sel.selection_no`
	rows, err := r.pool.Query(ctx, query, surveyNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.SurveyItem
	for rows.Next() {
		var it models.SurveyItem
		if err := rows.Scan(&it.SurveyNo, &it.SurveyTitle, &it.SurveyImage, &it.SurveyQuestionNo, &it.QuestionTypeNo,
			&it.SurveyQuestionTitle, &it.SurveyQuestionDescription, &it.SelectionNo, &it.SurveyQuestionMoveNo,
			&it.SelectionValue, &it.Required, &it.EndOfSurvey, &it.Movable); err != nil {
			return nil, err
		}
		list = append(list, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		if _, err := r.ClosingAt(ctx, surveyNo); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// ClosingAt returns the instant the survey stops accepting responses.
func (r *Repository) ClosingAt(ctx context.Context, surveyNo int64) (time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, `SELECT closing_at FROM surveys WHERE survey_no = $1`, surveyNo).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return at, err
}

const summaryColumns = `s.survey_no, s.user_no, s.title, s.description, s.image_url, s.tags, s.open_status_no, s.status_no,
	s.post_at, s.closing_at, (SELECT COUNT(*) FROM survey_attendances a WHERE a.survey_no = s.survey_no) AS attend_count`

func scanSummaries(rows pgx.Rows) ([]models.SurveySummary, error) {
	defer rows.Close()
	list := []models.SurveySummary{}
	for rows.Next() {
		var s models.SurveySummary
		if err := rows.Scan(&s.SurveyNo, &s.UserNo, &s.SurveyTitle, &s.SurveyDescription, &s.SurveyImage, &s.SurveyTags,
			&s.OpenStatusNo, &s.SurveyStatusNo, &s.SurveyPostAt, &s.SurveyClosingAt, &s.SurveyAttendCount); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Listing queries share the visibility rule: private surveys and surveys still being written
// never appear on the public screens.
const (
	listed = `s.status_no <> 1 AND s.open_status_no <> 3`

	listFilter = listed + ` AND ($1::smallint = 0 OR s.status_no = $1::smallint)
		AND ($2::text = '' OR s.title ILIKE '%' || $2::text || '%'
			OR EXISTS (SELECT 1 FROM unnest(s.tags) t WHERE t ILIKE '%' || $2::text || '%'))`

	listCountQuery = `SELECT COUNT(*) FROM surveys s WHERE ` + listFilter

	listQuery = `SELECT ` + summaryColumns + ` FROM surveys s WHERE ` + listFilter + `
		ORDER BY s.post_at DESC NULLS LAST, s.survey_no DESC
		LIMIT $3 OFFSET $4`

	recentQuery = `SELECT ` + summaryColumns + ` FROM surveys s
		WHERE ` + listed + ` AND s.status_no = 2 ORDER BY s.post_at DESC NULLS LAST LIMIT $1`

	closingQuery = `SELECT ` + summaryColumns + ` FROM surveys s
		WHERE ` + listed + ` AND s.status_no = 2 AND s.closing_at > NOW() ORDER BY s.closing_at ASC LIMIT $1`

	weeklyQuery = `SELECT ` + summaryColumns + ` FROM surveys s
		WHERE ` + listed + ` AND s.status_no = 2 AND s.post_at >= $1
		ORDER BY attend_count DESC, s.post_at DESC LIMIT $2`

	byUserQuery = `SELECT ` + summaryColumns + ` FROM surveys s
		WHERE s.user_no = $1 AND ($2::smallint = 0 OR s.status_no = $2::smallint)
		ORDER BY s.survey_no DESC`
)

// List returns a page of posted surveys, newest first, optionally narrowed to one status and to
// titles or tags containing the search word.
func (r *Repository) List(ctx context.Context, q ListQuery) (*models.Page[models.SurveySummary], error) {
	var total int
	if err := r.pool.QueryRow(ctx, listCountQuery, int(q.Status), q.Search).Scan(&total); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, listQuery, int(q.Status), q.Search, q.Size, q.Page*q.Size)
	if err != nil {
		return nil, err
	}
	content, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	return NewPage(content, q.Page, q.Size, total), nil
}

// Recent returns the most recently posted surveys still in progress.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.SurveySummary, error) {
	rows, err := r.pool.Query(ctx, recentQuery, limit)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// Closing returns in-progress surveys closest to their deadline.
func (r *Repository) Closing(ctx context.Context, limit int) ([]models.SurveySummary, error) {
	rows, err := r.pool.Query(ctx, closingQuery, limit)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// Weekly returns in-progress surveys posted since the given instant, most attended first.
func (r *Repository) Weekly(ctx context.Context, since time.Time, limit int) ([]models.SurveySummary, error) {
	rows, err := r.pool.Query(ctx, weeklyQuery, since, limit)
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// ListByUser returns every survey a user wrote, whatever its visibility. A zero status lists all.
func (r *Repository) ListByUser(ctx context.Context, userNo int64, status models.SurveyStatus) ([]models.SurveySummary, error) {
	rows, err := r.pool.Query(ctx, byUserQuery, userNo, int(status))
	if err != nil {
		return nil, err
	}
	return scanSummaries(rows)
}

// Delete removes a survey with its questions, responses and exports.
func (r *Repository) Delete(ctx context.Context, surveyNo int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM surveys WHERE survey_no = $1`, surveyNo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWriting removes a survey that is still being written. Posted or closed surveys are kept
// and yield ErrNotEditable.
func (r *Repository) DeleteWriting(ctx context.Context, surveyNo int64) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM surveys WHERE survey_no = $1 AND status_no = 1`, surveyNo)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		if _, err := r.statusTx(ctx, tx, surveyNo); err != nil {
			return err
		}
		return ErrNotEditable
	})
}

// Publish moves a survey from writing to in progress and stamps its post time.
func (r *Repository) Publish(ctx context.Context, surveyNo int64) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE surveys SET status_no = 2, post_at = NOW(), updated_at = NOW()
			WHERE survey_no = $1 AND status_no = 1`, surveyNo)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		if _, err := r.statusTx(ctx, tx, surveyNo); err != nil {
			return err
		}
		return ErrAlreadyPosted
	})
}

// CloseExpired marks in-progress surveys past their closing time as closed and returns how many changed.
func (r *Repository) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE surveys SET status_no = 3, updated_at = NOW()
		WHERE status_no = 2 AND closing_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
