package flow

import (
	"slices"

	"github.com/google/uuid"

	"github.com/surveyflow/backend/internal/models"
)

// Target is the author's pick in a branch selector: a question number, or the end of the survey.
type Target struct {
	EndOfSurvey bool `json:"endOfSurvey"`
	QuestionNo  int  `json:"questionNo"`
}

// AddQuestion appends a required single-choice question with one empty selection.
func (d *Draft) AddQuestion() *Question {
	q := newQuestion()
	d.Questions = append(d.Questions, q)
	return q
}

// DuplicateQuestion inserts a copy of the question right after it. The copy gets fresh IDs
// and keeps the original's branch targets.
func (d *Draft) DuplicateQuestion(id uuid.UUID) (*Question, error) {
	i, q, err := d.find(id)
	if err != nil {
		return nil, err
	}
	cp := *q
	cp.ID = uuid.New()
	cp.Selections = make([]Selection, len(q.Selections))
	for k, s := range q.Selections {
		s.ID = uuid.New()
		cp.Selections[k] = s
	}
	d.Questions = slices.Insert(d.Questions, i+1, &cp)
	d.normalize()
	return &cp, nil
}

// RemoveQuestion deletes a question. The last remaining question cannot be removed; the call
// is then a no-op. Branches that targeted the removed question move to the question that takes
// its place, or end the survey when it was last.
func (d *Draft) RemoveQuestion(id uuid.UUID) error {
	i, _, err := d.find(id)
	if err != nil {
		return err
	}
	if len(d.Questions) <= 1 {
		return nil
	}
	d.Questions = slices.Delete(d.Questions, i, i+1)

	replacement := EndsSurvey()
	if i < len(d.Questions) {
		replacement = MovesTo(d.Questions[i].ID)
	}
	for _, q := range d.Questions {
		for k := range q.Selections {
			s := &q.Selections[k]
			if s.Branch.Kind == BranchMovesTo && s.Branch.Target == id {
				s.Branch = replacement
			}
		}
	}
	d.normalize()
	return nil
}

// EditQuestion updates a question's title and description.
func (d *Draft) EditQuestion(id uuid.UUID, title, description string) error {
	_, q, err := d.find(id)
	if err != nil {
		return err
	}
	q.Title = title
	q.Description = description
	return nil
}

// ChangeQuestionType switches the question kind and resets its selections: choice types get a
// single fresh selection, free-text types get none.
func (d *Draft) ChangeQuestionType(id uuid.UUID, t models.QuestionType) error {
	if !t.Valid() {
		return ErrInvalidQuestionType
	}
	i, q, err := d.find(id)
	if err != nil {
		return err
	}
	if q.Type == t {
		return nil
	}
	q.Type = t
	q.Selections = nil
	if t.IsChoice() {
		s := Selection{ID: uuid.New()}
		if t == models.QuestionTypeMoveable {
			s.Branch = d.nextBranch(i)
		}
		q.Selections = []Selection{s}
	}
	return nil
}

// AddSelection appends a selection. On a branching question the new selection moves to the
// next question, or stays unset when the question is last.
func (d *Draft) AddSelection(questionID uuid.UUID) (*Selection, error) {
	i, q, err := d.find(questionID)
	if err != nil {
		return nil, err
	}
	if !q.Type.IsChoice() {
		return nil, ErrNoSelections
	}
	s := Selection{ID: uuid.New()}
	if q.Type == models.QuestionTypeMoveable {
		s.Branch = d.nextBranch(i)
	}
	q.Selections = append(q.Selections, s)
	return &q.Selections[len(q.Selections)-1], nil
}

// RemoveSelection deletes a selection. A question's last selection is kept; the call is then a no-op.
func (d *Draft) RemoveSelection(questionID, selectionID uuid.UUID) error {
	_, q, err := d.find(questionID)
	if err != nil {
		return err
	}
	k := slices.IndexFunc(q.Selections, func(s Selection) bool { return s.ID == selectionID })
	if k < 0 {
		return ErrSelectionNotFound
	}
	if len(q.Selections) <= 1 {
		return nil
	}
	q.Selections = slices.Delete(q.Selections, k, k+1)
	return nil
}

// EditSelection changes the selection label. Branch data is untouched.
func (d *Draft) EditSelection(questionID, selectionID uuid.UUID, value string) error {
	_, q, err := d.find(questionID)
	if err != nil {
		return err
	}
	s, err := q.selection(selectionID)
	if err != nil {
		return err
	}
	s.Value = value
	return nil
}

// SetBranchTarget points a branching selection at a question or at the end of the survey.
// A numeric target never resolves earlier than the next question. Every question strictly
// between the branching question and its target becomes optional.
func (d *Draft) SetBranchTarget(questionID, selectionID uuid.UUID, t Target) error {
	i, q, err := d.find(questionID)
	if err != nil {
		return err
	}
	if q.Type != models.QuestionTypeMoveable {
		return ErrNotBranching
	}
	s, err := q.selection(selectionID)
	if err != nil {
		return err
	}
	if t.EndOfSurvey {
		s.Branch = EndsSurvey()
		return nil
	}

	no := max(t.QuestionNo, i+2)
	if no > len(d.Questions) {
		return ErrInvalidTarget
	}
	s.Branch = MovesTo(d.Questions[no-1].ID)
	d.clearSkipped(i, no-1)
	return nil
}

// Reorder moves the question at index from to index to. Branch targets follow their questions.
func (d *Draft) Reorder(from, to int) error {
	n := len(d.Questions)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrInvalidPosition
	}
	if from == to {
		return nil
	}
	q := d.Questions[from]
	d.Questions = slices.Delete(d.Questions, from, from+1)
	d.Questions = slices.Insert(d.Questions, to, q)
	d.normalize()
	return nil
}

// SetRequired sets the required flag. Making a question required is refused while an earlier
// branch can skip it.
func (d *Draft) SetRequired(id uuid.UUID, required bool) error {
	i, q, err := d.find(id)
	if err != nil {
		return err
	}
	if required && !q.Required && d.skippable(i) {
		return ErrRequiredInSkipRange
	}
	q.Required = required
	return nil
}
