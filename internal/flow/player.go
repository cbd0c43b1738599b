package flow

import (
	"slices"
	"sort"

	"github.com/surveyflow/backend/internal/models"
)

// Choice is a selection as the respondent sees it.
type Choice struct {
	SelectionNo int    `json:"selectionNo"`
	Value       string `json:"selectionValue"`
	Movable     bool   `json:"movable"`
	MoveTo      int    `json:"surveyQuestionMoveNo"`
	EndOfSurvey bool   `json:"endOfSurvey"`
}

// Item is a question rebuilt from survey data rows.
type Item struct {
	No          int                 `json:"surveyQuestionNo"`
	Type        models.QuestionType `json:"questionTypeNo"`
	Title       string              `json:"surveyQuestionTitle"`
	Description string              `json:"surveyQuestionDescription"`
	Required    bool                `json:"required"`
	Choices     []Choice            `json:"choices"`
}

func (it Item) choice(selectionNo int) (Choice, bool) {
	for _, c := range it.Choices {
		if c.SelectionNo == selectionNo {
			return c, true
		}
	}
	return Choice{}, false
}

// GroupItems groups flat survey rows by question number, in ascending question order.
func GroupItems(rows []models.SurveyItem) []Item {
	var items []Item
	index := make(map[int]int)
	for _, r := range rows {
		i, ok := index[r.SurveyQuestionNo]
		if !ok {
			items = append(items, Item{
				No:          r.SurveyQuestionNo,
				Type:        r.QuestionTypeNo,
				Title:       r.SurveyQuestionTitle,
				Description: r.SurveyQuestionDescription,
				Required:    r.Required,
			})
			i = len(items) - 1
			index[r.SurveyQuestionNo] = i
		}
		if r.SelectionNo == 0 {
			continue
		}
		items[i].Choices = append(items[i].Choices, Choice{
			SelectionNo: r.SelectionNo,
			Value:       r.SelectionValue,
			Movable:     r.Movable,
			MoveTo:      r.SurveyQuestionMoveNo,
			EndOfSurvey: r.EndOfSurvey,
		})
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].No < items[b].No })
	return items
}

// SelectionEvent is a respondent picking or clearing an option.
type SelectionEvent struct {
	QuestionNo   int
	MoveTo       int
	QuestionType models.QuestionType
	Movable      bool
	Unchecked    bool
	EndOfSurvey  bool
}

// ChoiceRef names a picked option.
type ChoiceRef struct {
	SelectionNo    int    `json:"selectionNo"`
	SelectionValue string `json:"selectionValue"`
}

// Answer is a respondent's answer to one question. Multi-select questions use Choices,
// single and branching questions use Choice (nil clears it), free-text questions use Text.
type Answer struct {
	Choices []ChoiceRef `json:"choices,omitempty"`
	Choice  *ChoiceRef  `json:"choice,omitempty"`
	Text    string      `json:"text,omitempty"`
}

// Player tracks one respondent's pass through a survey: the branches chosen so far and the
// responses collected. It is serialisable so sessions can be stored between requests.
type Player struct {
	SurveyNo  int64                 `json:"surveyNo"`
	UserNo    int64                 `json:"userNo"`
	Items     []Item                `json:"items"`
	Triggers  map[int]Trigger       `json:"triggers"`
	Responses []models.UserResponse `json:"responses"`
}

// NewPlayer starts a pass over items with nothing answered.
func NewPlayer(surveyNo, userNo int64, items []Item) *Player {
	return &Player{
		SurveyNo:  surveyNo,
		UserNo:    userNo,
		Items:     items,
		Triggers:  make(map[int]Trigger),
		Responses: []models.UserResponse{},
	}
}

func (p *Player) item(no int) (Item, bool) {
	for _, it := range p.Items {
		if it.No == no {
			return it, true
		}
	}
	return Item{}, false
}

func (p *Player) numbers() []int {
	out := make([]int, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.No
	}
	return out
}

// Hidden returns the questions currently hidden by chosen branches.
func (p *Player) Hidden() HiddenSet {
	return Hide(p.numbers(), p.Triggers)
}

// Visible returns the questions that are not hidden, in order.
func (p *Player) Visible() []Item {
	hidden := p.Hidden()
	out := make([]Item, 0, len(p.Items))
	for _, it := range p.Items {
		if !hidden.Contains(it.No) {
			out = append(out, it)
		}
	}
	return out
}

// ResponsesFor returns the stored responses for question no.
func (p *Player) ResponsesFor(no int) []models.UserResponse {
	var out []models.UserResponse
	for _, r := range p.Responses {
		if r.SurveyQuestionNo == no {
			out = append(out, r)
		}
	}
	return out
}

// Click applies a selection event to the chosen branches and prunes responses that no longer
// apply: clearing or ending the survey drops the question's own response, ending the survey
// drops every later response, and any response or branch on a question that is now hidden is
// dropped too.
func (p *Player) Click(ev SelectionEvent) {
	if p.Triggers == nil {
		p.Triggers = make(map[int]Trigger)
	}
	switch {
	case ev.Unchecked:
		delete(p.Triggers, ev.QuestionNo)
	case ev.EndOfSurvey:
		p.Triggers[ev.QuestionNo] = Trigger{EndOfSurvey: true}
	case ev.Movable && ev.QuestionType == models.QuestionTypeMoveable:
		p.Triggers[ev.QuestionNo] = Trigger{MoveTo: ev.MoveTo}
	default:
		delete(p.Triggers, ev.QuestionNo)
	}

	if ev.Unchecked || ev.EndOfSurvey {
		p.dropResponses(func(r models.UserResponse) bool {
			return r.SurveyQuestionNo == ev.QuestionNo ||
				(ev.EndOfSurvey && r.SurveyQuestionNo > ev.QuestionNo)
		})
	}
	p.settle()
}

// settle drops branches and responses recorded on hidden questions.
func (p *Player) settle() {
	hidden := p.Hidden()
	for q := range p.Triggers {
		if hidden.Contains(q) {
			delete(p.Triggers, q)
		}
	}
	p.dropResponses(func(r models.UserResponse) bool { return hidden.Contains(r.SurveyQuestionNo) })
}

func (p *Player) dropResponses(drop func(models.UserResponse) bool) {
	p.Responses = slices.DeleteFunc(p.Responses, drop)
	if p.Responses == nil {
		p.Responses = []models.UserResponse{}
	}
}

// Answer records the answer to question no, replacing any earlier answer to it. Single-choice
// and branching answers go through Choose, or Clear when no selection is given, so the hidden
// set always follows the recorded pick.
func (p *Player) Answer(no int, a Answer) error {
	it, ok := p.item(no)
	if !ok {
		return ErrQuestionNotFound
	}
	if p.Hidden().Contains(no) {
		return ErrQuestionHidden
	}
	if it.Type == models.QuestionTypeSingle || it.Type == models.QuestionTypeMoveable {
		if a.Choice == nil || a.Choice.SelectionNo == 0 {
			return p.Clear(no)
		}
		return p.Choose(no, a.Choice.SelectionNo)
	}

	base := p.response(it)
	var next []models.UserResponse
	switch {
	case it.Type == models.QuestionTypeMultiple:
		for _, ref := range a.Choices {
			c, ok := it.choice(ref.SelectionNo)
			if !ok {
				return ErrSelectionNotFound
			}
			r := base
			value := c.Value
			r.SelectionValue = &value
			r.SelectionNo = c.SelectionNo
			next = append(next, r)
		}
	case it.Type.IsFreeText():
		r := base
		text := a.Text
		r.SurveySubjectiveAnswer = &text
		next = append(next, r)
	}
	p.replace(no, next...)
	return nil
}

func (p *Player) response(it Item) models.UserResponse {
	return models.UserResponse{
		SurveyQuestionTitle: it.Title,
		UserNo:              p.UserNo,
		SurveyNo:            p.SurveyNo,
		SurveyQuestionNo:    it.No,
		QuestionTypeNo:      it.Type,
	}
}

func (p *Player) replace(no int, next ...models.UserResponse) {
	p.dropResponses(func(r models.UserResponse) bool { return r.SurveyQuestionNo == no })
	p.Responses = append(p.Responses, next...)
}

// Choose picks one selection of a single-choice or branching question, applying its branch.
func (p *Player) Choose(no, selectionNo int) error {
	it, ok := p.item(no)
	if !ok {
		return ErrQuestionNotFound
	}
	if it.Type != models.QuestionTypeSingle && it.Type != models.QuestionTypeMoveable {
		return ErrNotSingleChoice
	}
	if p.Hidden().Contains(no) {
		return ErrQuestionHidden
	}
	c, ok := it.choice(selectionNo)
	if !ok {
		return ErrSelectionNotFound
	}

	moveTo := no
	if c.Movable {
		moveTo = c.MoveTo
	}
	p.Click(SelectionEvent{
		QuestionNo:   no,
		MoveTo:       moveTo,
		QuestionType: it.Type,
		Movable:      c.Movable,
		EndOfSurvey:  c.EndOfSurvey,
	})
	r := p.response(it)
	value := c.Value
	r.SelectionValue = &value
	r.SelectionNo = c.SelectionNo
	r.EndOfSurvey = c.EndOfSurvey
	p.replace(no, r)
	return nil
}

// Clear removes the answer to question no and retracts any branch it chose.
func (p *Player) Clear(no int) error {
	it, ok := p.item(no)
	if !ok {
		return ErrQuestionNotFound
	}
	p.Click(SelectionEvent{QuestionNo: no, MoveTo: no, QuestionType: it.Type, Unchecked: true})
	return nil
}
