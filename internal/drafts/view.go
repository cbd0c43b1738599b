package drafts

import (
	"time"

	"github.com/google/uuid"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
)

// SelectionView is a selection with its branch resolved to a question number.
type SelectionView struct {
	ID          uuid.UUID `json:"id"`
	Value       string    `json:"value"`
	Branch      string    `json:"branch"`
	TargetNo    int       `json:"targetNo,omitempty"`
	EndOfSurvey bool      `json:"endOfSurvey"`
}

// QuestionView is a question as the builder screen renders it.
type QuestionView struct {
	ID          uuid.UUID           `json:"id"`
	No          int                 `json:"no"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Type        models.QuestionType `json:"questionType"`
	Required    bool                `json:"required"`
	Skippable   bool                `json:"skippable"`
	Selections  []SelectionView     `json:"selections"`
}

// View is the response body of every draft endpoint.
type View struct {
	ID         uuid.UUID         `json:"id"`
	SurveyNo   int64             `json:"surveyNo"`
	SurveyInfo models.SurveyInfo `json:"surveyInfo"`
	Questions  []QuestionView    `json:"questions"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// NewView renders a session. Skippable marks questions that cannot be made required.
func NewView(s *Session) View {
	v := View{
		ID:         s.ID,
		SurveyNo:   s.SurveyNo,
		SurveyInfo: s.Info,
		Questions:  make([]QuestionView, 0, len(s.Draft.Questions)),
		UpdatedAt:  s.UpdatedAt,
	}
	for i, q := range s.Draft.Questions {
		qv := QuestionView{
			ID:          q.ID,
			No:          i + 1,
			Title:       q.Title,
			Description: q.Description,
			Type:        q.Type,
			Required:    q.Required,
			Skippable:   s.Draft.Skippable(q.ID),
			Selections:  make([]SelectionView, 0, len(q.Selections)),
		}
		for _, sel := range q.Selections {
			sv := SelectionView{ID: sel.ID, Value: sel.Value, Branch: sel.Branch.Kind.String()}
			switch sel.Branch.Kind {
			case flow.BranchMovesTo:
				sv.TargetNo = s.Draft.Number(sel.Branch.Target)
			case flow.BranchEndsSurvey:
				sv.EndOfSurvey = true
			}
			qv.Selections = append(qv.Selections, sv)
		}
		v.Questions = append(v.Questions, qv)
	}
	return v
}
