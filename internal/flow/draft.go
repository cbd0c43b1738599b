// Package flow holds the survey-flow engine: the Draft that authors edit, with its branch
// rules, and the Player that interprets those branches while a respondent answers.
package flow

import (
	"github.com/google/uuid"

	"github.com/surveyflow/backend/internal/models"
)

// BranchKind tags the variant held by a Branch.
type BranchKind int

const (
	// BranchPlain continues with the next question. Branching selections stay plain until the
	// author picks a destination.
	BranchPlain BranchKind = iota
	// BranchMovesTo jumps to the target question.
	BranchMovesTo
	// BranchEndsSurvey finishes the survey.
	BranchEndsSurvey
)

func (k BranchKind) String() string {
	switch k {
	case BranchMovesTo:
		return "moves_to"
	case BranchEndsSurvey:
		return "ends_survey"
	default:
		return "plain"
	}
}

// Branch is what choosing a selection does to the flow. Target is set only for BranchMovesTo.
type Branch struct {
	Kind   BranchKind `json:"kind"`
	Target uuid.UUID  `json:"target"`
}

// Plain returns a branch that continues with the next question.
func Plain() Branch { return Branch{Kind: BranchPlain} }

// MovesTo returns a branch that jumps to the question with the given ID.
func MovesTo(questionID uuid.UUID) Branch { return Branch{Kind: BranchMovesTo, Target: questionID} }

// EndsSurvey returns a branch that finishes the survey.
func EndsSurvey() Branch { return Branch{Kind: BranchEndsSurvey} }

// Selection is one option of a choice question.
type Selection struct {
	ID     uuid.UUID `json:"id"`
	Value  string    `json:"value"`
	Branch Branch    `json:"branch"`
}

// Question is one authored question. Its number is its position in the draft plus one.
type Question struct {
	ID          uuid.UUID           `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Type        models.QuestionType `json:"type"`
	Required    bool                `json:"required"`
	Selections  []Selection         `json:"selections"`
}

// Draft is an ordered list of questions being authored.
type Draft struct {
	Questions []*Question `json:"questions"`
}

// NewDraft returns a draft holding one empty single-choice question.
func NewDraft() *Draft {
	d := &Draft{}
	d.AddQuestion()
	return d
}

func newQuestion() *Question {
	return &Question{
		ID:         uuid.New(),
		Type:       models.QuestionTypeSingle,
		Required:   true,
		Selections: []Selection{{ID: uuid.New()}},
	}
}

// Number returns the 1-based number of the question, or 0 if it is not in the draft.
func (d *Draft) Number(id uuid.UUID) int {
	return d.index(id) + 1
}

func (d *Draft) index(id uuid.UUID) int {
	for i, q := range d.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

func (d *Draft) find(id uuid.UUID) (int, *Question, error) {
	i := d.index(id)
	if i < 0 {
		return -1, nil, ErrQuestionNotFound
	}
	return i, d.Questions[i], nil
}

func (q *Question) selection(id uuid.UUID) (*Selection, error) {
	for k := range q.Selections {
		if q.Selections[k].ID == id {
			return &q.Selections[k], nil
		}
	}
	return nil, ErrSelectionNotFound
}

// nextBranch is the default branch for a new selection of a branching question at index i.
func (d *Draft) nextBranch(i int) Branch {
	if i+1 < len(d.Questions) {
		return MovesTo(d.Questions[i+1].ID)
	}
	return Plain()
}

// skippable reports whether an earlier branching question can jump over the question at index i.
func (d *Draft) skippable(i int) bool {
	for j := 0; j < i; j++ {
		q := d.Questions[j]
		if q.Type != models.QuestionTypeMoveable {
			continue
		}
		for _, s := range q.Selections {
			if s.Branch.Kind != BranchMovesTo {
				continue
			}
			if d.index(s.Branch.Target) > i {
				return true
			}
		}
	}
	return false
}

// Skippable reports whether the question can be bypassed by an earlier branch.
func (d *Draft) Skippable(id uuid.UUID) bool {
	i := d.index(id)
	return i >= 0 && d.skippable(i)
}

// clearSkipped marks every question strictly between index from and index to as optional.
func (d *Draft) clearSkipped(from, to int) {
	for k := from + 1; k < to && k < len(d.Questions); k++ {
		d.Questions[k].Required = false
	}
}

// normalize repairs branch targets after the question order changed and re-applies the
// optional-in-skip-range rule. A target that no longer lies ahead of its question falls back
// to the next question, or to the end of the survey for the last question.
func (d *Draft) normalize() {
	for i, q := range d.Questions {
		if q.Type != models.QuestionTypeMoveable {
			continue
		}
		for k := range q.Selections {
			s := &q.Selections[k]
			if s.Branch.Kind != BranchMovesTo {
				continue
			}
			if d.index(s.Branch.Target) <= i {
				if i+1 < len(d.Questions) {
					s.Branch = MovesTo(d.Questions[i+1].ID)
				} else {
					s.Branch = EndsSurvey()
				}
			}
			d.clearSkipped(i, d.index(s.Branch.Target))
		}
	}
}
