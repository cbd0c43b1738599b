package flow

import (
	"fmt"
	"strings"
	"time"

	"github.com/surveyflow/backend/internal/models"
)

// IncompleteError reports the first visible required question without a usable answer.
type IncompleteError struct {
	QuestionNo int
	Title      string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("question %d requires an answer", e.QuestionNo)
}

// Anchor is the element id the client scrolls to.
func (e *IncompleteError) Anchor() string {
	return Anchor(e.QuestionNo)
}

// Anchor returns the element id of question no.
func Anchor(no int) string {
	return fmt.Sprintf("question-%d", no)
}

// CheckOpen reports ErrSurveyClosed once now is past closingAt. A zero closingAt never closes.
func CheckOpen(now, closingAt time.Time) error {
	if !closingAt.IsZero() && now.After(closingAt) {
		return ErrSurveyClosed
	}
	return nil
}

// Validate checks that the pass can be submitted at now. A closed survey is rejected before any
// answer is looked at. Hidden questions are skipped; a visible required question needs a
// response, and free-text answers must not be blank.
func (p *Player) Validate(now, closingAt time.Time) error {
	if err := CheckOpen(now, closingAt); err != nil {
		return err
	}
	hidden := p.Hidden()
	for _, it := range p.Items {
		if !it.Required || hidden.Contains(it.No) {
			continue
		}
		rs := p.ResponsesFor(it.No)
		if len(rs) == 0 {
			return &IncompleteError{QuestionNo: it.No, Title: it.Title}
		}
		if it.Type.IsFreeText() {
			text := rs[0].SurveySubjectiveAnswer
			if text == nil || strings.TrimSpace(*text) == "" {
				return &IncompleteError{QuestionNo: it.No, Title: it.Title}
			}
		}
	}
	return nil
}

// Replay rebuilds a pass from a flat list of submitted responses by answering the questions in
// order. Selection values and end-of-survey flags are taken from the survey, not the client.
func Replay(surveyNo, userNo int64, items []Item, responses []models.UserResponse) (*Player, error) {
	p := NewPlayer(surveyNo, userNo, items)
	byQuestion := make(map[int][]models.UserResponse)
	for _, r := range responses {
		if r.SurveyNo != surveyNo {
			return nil, ErrSurveyMismatch
		}
		if _, ok := p.item(r.SurveyQuestionNo); !ok {
			return nil, fmt.Errorf("question %d: %w", r.SurveyQuestionNo, ErrQuestionNotFound)
		}
		byQuestion[r.SurveyQuestionNo] = append(byQuestion[r.SurveyQuestionNo], r)
	}

	for _, it := range items {
		rs, ok := byQuestion[it.No]
		if !ok {
			continue
		}
		var err error
		switch {
		case it.Type == models.QuestionTypeMultiple:
			a := Answer{}
			for _, r := range rs {
				a.Choices = append(a.Choices, ChoiceRef{SelectionNo: r.SelectionNo})
			}
			err = p.Answer(it.No, a)
		case it.Type.IsFreeText():
			text := ""
			if rs[0].SurveySubjectiveAnswer != nil {
				text = *rs[0].SurveySubjectiveAnswer
			}
			err = p.Answer(it.No, Answer{Text: text})
		default:
			err = p.Choose(it.No, rs[0].SelectionNo)
		}
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", it.No, err)
		}
	}
	return p, nil
}

// ClosingInstant returns the moment a survey closing on date (yyyy-mm-dd) stops accepting
// responses: the start of the following day, UTC.
func ClosingInstant(date string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("closing date %q: %w", date, err)
	}
	return d.AddDate(0, 0, 1), nil
}

// ClosingDate is the inverse of ClosingInstant: the last calendar day a survey accepting
// responses until instant is open.
func ClosingDate(instant time.Time) string {
	return instant.UTC().AddDate(0, 0, -1).Format(time.DateOnly)
}
