package flow

import (
	"github.com/google/uuid"

	"github.com/surveyflow/backend/internal/models"
)

// QuestionCreates renders the draft as creation payload questions. Question IDs become
// positions and branch targets become 1-based question numbers. A branching selection the
// author left unset continues with the next question, or ends the survey on the last one.
func (d *Draft) QuestionCreates(surveyNo int64) []models.QuestionCreate {
	out := make([]models.QuestionCreate, 0, len(d.Questions))
	for i, q := range d.Questions {
		qc := models.QuestionCreate{
			SurveyID:            surveyNo,
			QuestionID:          int64(i + 1),
			QuestionTitle:       q.Title,
			QuestionDescription: q.Description,
			QuestionRequired:    q.Required,
			QuestionType:        q.Type,
			Selections:          make([]models.SelectionCreate, 0, len(q.Selections)),
		}
		branching := q.Type == models.QuestionTypeMoveable
		for k, s := range q.Selections {
			sc := models.SelectionCreate{
				QuestionID:     int64(i + 1),
				SelectionID:    int64(k + 1),
				SelectionValue: s.Value,
				IsMoveable:     branching,
			}
			if branching {
				b := s.Branch
				if b.Kind == BranchPlain {
					b = d.nextBranch(i)
					if b.Kind == BranchPlain {
						b = EndsSurvey()
					}
				}
				switch b.Kind {
				case BranchMovesTo:
					if no := d.Number(b.Target); no > 0 {
						sc.QuestionMoveID = &no
					}
				case BranchEndsSurvey:
					sc.IsEndOfSurvey = true
				}
			}
			qc.Selections = append(qc.Selections, sc)
		}
		out = append(out, qc)
	}
	return out
}

// DraftFromQuestions rebuilds a draft from creation payload questions, minting stable IDs.
// Targets outside the survey are left unset.
func DraftFromQuestions(questions []models.QuestionCreate) *Draft {
	d := &Draft{Questions: make([]*Question, len(questions))}
	for i, qc := range questions {
		d.Questions[i] = &Question{
			ID:          uuid.New(),
			Title:       qc.QuestionTitle,
			Description: qc.QuestionDescription,
			Type:        qc.QuestionType,
			Required:    qc.QuestionRequired,
		}
	}
	for i, qc := range questions {
		q := d.Questions[i]
		if !qc.QuestionType.IsChoice() {
			continue
		}
		q.Selections = make([]Selection, 0, len(qc.Selections))
		for _, sc := range qc.Selections {
			s := Selection{ID: uuid.New(), Value: sc.SelectionValue}
			if qc.QuestionType == models.QuestionTypeMoveable {
				s.Branch = d.branchTo(sc.QuestionMoveID, sc.IsEndOfSurvey)
			}
			q.Selections = append(q.Selections, s)
		}
	}
	return d
}

// DraftFromItems rebuilds a draft from stored survey data rows.
func DraftFromItems(rows []models.SurveyItem) *Draft {
	return DraftFromQuestions(QuestionsFromItems(rows))
}

// QuestionsFromItems regroups flat survey data rows into creation payload questions.
func QuestionsFromItems(rows []models.SurveyItem) []models.QuestionCreate {
	items := GroupItems(rows)
	questions := make([]models.QuestionCreate, len(items))
	for i, it := range items {
		qc := models.QuestionCreate{
			QuestionID:          int64(it.No),
			QuestionTitle:       it.Title,
			QuestionDescription: it.Description,
			QuestionRequired:    it.Required,
			QuestionType:        it.Type,
			Selections:          []models.SelectionCreate{},
		}
		if len(rows) > 0 {
			qc.SurveyID = rows[0].SurveyNo
		}
		for _, c := range it.Choices {
			sc := models.SelectionCreate{
				QuestionID:     int64(it.No),
				SelectionID:    int64(c.SelectionNo),
				SelectionValue: c.Value,
				IsMoveable:     c.Movable,
				IsEndOfSurvey:  c.EndOfSurvey,
			}
			if c.MoveTo != 0 {
				no := c.MoveTo
				sc.QuestionMoveID = &no
			}
			qc.Selections = append(qc.Selections, sc)
		}
		questions[i] = qc
	}
	return questions
}

func (d *Draft) branchTo(moveID *int, endOfSurvey bool) Branch {
	if endOfSurvey {
		return EndsSurvey()
	}
	if moveID != nil && *moveID >= 1 && *moveID <= len(d.Questions) {
		return MovesTo(d.Questions[*moveID-1].ID)
	}
	return Plain()
}
