package attend

import (
	"time"

	"github.com/google/uuid"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
)

// QuestionView is a question with its take-time state.
type QuestionView struct {
	flow.Item
	Hidden bool   `json:"hidden"`
	Anchor string `json:"anchor"`
}

// View is the response body of every attend session endpoint.
type View struct {
	ID        uuid.UUID             `json:"id"`
	SurveyNo  int64                 `json:"surveyNo"`
	UserNo    int64                 `json:"userNo"`
	ClosingAt time.Time             `json:"closingAt"`
	Questions []QuestionView        `json:"questions"`
	Hidden    []int                 `json:"hidden"`
	Responses []models.UserResponse `json:"responses"`
}

// NewView renders a session.
func NewView(s *Session) View {
	p := s.Player
	hidden := p.Hidden()
	v := View{
		ID:        s.ID,
		SurveyNo:  p.SurveyNo,
		UserNo:    p.UserNo,
		ClosingAt: s.ClosingAt,
		Questions: make([]QuestionView, 0, len(p.Items)),
		Hidden:    hidden.Numbers(),
		Responses: p.Responses,
	}
	if v.Hidden == nil {
		v.Hidden = []int{}
	}
	for _, it := range p.Items {
		v.Questions = append(v.Questions, QuestionView{
			Item:   it,
			Hidden: hidden.Contains(it.No),
			Anchor: flow.Anchor(it.No),
		})
	}
	return v
}
