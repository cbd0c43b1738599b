package responses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surveyflow/backend/internal/models"
	"github.com/surveyflow/backend/pkg/database"
)

// ErrAlreadyAttended is returned when a signed-in user submits the same survey twice.
var ErrAlreadyAttended = errors.New("user already attended this survey")

var responseColumns = []string{
	"survey_no", "user_no", "question_no", "question_title", "type_no",
	"selection_no", "selection_value", "subjective_answer", "end_of_survey",
}

// Repository handles response persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a responses repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Submit records the attendance and copies every response row in one transaction. It returns
// the survey's attend count including this submission.
func (r *Repository) Submit(ctx context.Context, surveyNo, userNo int64, rs []models.UserResponse) (int, error) {
	var count int
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO survey_attendances (survey_no, user_no) VALUES ($1, $2)`, surveyNo, userNo)
		if database.IsUniqueViolation(err) {
			return ErrAlreadyAttended
		}
		if err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}

		_, err = tx.CopyFrom(ctx, pgx.Identifier{"survey_responses"}, responseColumns,
			pgx.CopyFromSlice(len(rs), func(i int) ([]any, error) {
				resp := rs[i]
				return []any{
					surveyNo, userNo, int32(resp.SurveyQuestionNo), resp.SurveyQuestionTitle, int16(resp.QuestionTypeNo),
					int32(resp.SelectionNo), resp.SelectionValue, resp.SurveySubjectiveAnswer, resp.EndOfSurvey,
				}, nil
			}))
		if err != nil {
			return fmt.Errorf("copy responses: %w", err)
		}

		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM survey_attendances WHERE survey_no = $1`, surveyNo).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListBySurvey returns every stored response of a survey ordered by submission and question.
func (r *Repository) ListBySurvey(ctx context.Context, surveyNo int64) ([]models.UserResponse, error) {
	const query = `SELECT question_title, selection_value, user_no, survey_no, question_no, type_no,
		selection_no, subjective_answer, end_of_survey
		FROM survey_responses WHERE survey_no = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, surveyNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.UserResponse{}
	for rows.Next() {
		var resp models.UserResponse
		if err := rows.Scan(&resp.SurveyQuestionTitle, &resp.SelectionValue, &resp.UserNo, &resp.SurveyNo,
			&resp.SurveyQuestionNo, &resp.QuestionTypeNo, &resp.SelectionNo, &resp.SurveySubjectiveAnswer,
			&resp.EndOfSurvey); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// AttendCount returns how many submissions a survey has received.
func (r *Repository) AttendCount(ctx context.Context, surveyNo int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM survey_attendances WHERE survey_no = $1`, surveyNo).Scan(&n)
	return n, err
}

// AttendedBy lists the surveys a signed-in user answered, newest first.
func (r *Repository) AttendedBy(ctx context.Context, userNo int64) ([]models.Attendance, error) {
	const query = `SELECT a.survey_no, a.user_no, s.title, a.attended_at
		FROM survey_attendances a JOIN surveys s ON s.survey_no = a.survey_no
		WHERE a.user_no = $1 ORDER BY a.attended_at DESC`
	rows, err := r.pool.Query(ctx, query, userNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Attendance{}
	for rows.Next() {
		var a models.Attendance
		if err := rows.Scan(&a.SurveyNo, &a.UserNo, &a.SurveyTitle, &a.AttendedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
