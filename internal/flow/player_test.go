package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveyflow/backend/internal/models"
)

// Q1 branches: A moves to Q3, B ends the survey. Q2 and Q3 are required short answers.
func branchingItems() []Item {
	return []Item{
		{No: 1, Type: models.QuestionTypeMoveable, Title: "Q1", Required: true, Choices: []Choice{
			{SelectionNo: 1, Value: "A", Movable: true, MoveTo: 3},
			{SelectionNo: 2, Value: "B", Movable: true, EndOfSurvey: true},
		}},
		{No: 2, Type: models.QuestionTypeShortAnswer, Title: "Q2", Required: true},
		{No: 3, Type: models.QuestionTypeShortAnswer, Title: "Q3", Required: true},
	}
}

func longItems() []Item {
	return []Item{
		{No: 1, Type: models.QuestionTypeMoveable, Title: "Q1", Choices: []Choice{
			{SelectionNo: 1, Value: "skip to 3", Movable: true, MoveTo: 3},
			{SelectionNo: 2, Value: "skip to 4", Movable: true, MoveTo: 4},
			{SelectionNo: 3, Value: "next", Movable: true, MoveTo: 2},
		}},
		{No: 2, Type: models.QuestionTypeShortAnswer, Title: "Q2"},
		{No: 3, Type: models.QuestionTypeMoveable, Title: "Q3", Choices: []Choice{
			{SelectionNo: 1, Value: "skip to 5", Movable: true, MoveTo: 5},
			{SelectionNo: 2, Value: "stop", Movable: true, EndOfSurvey: true},
		}},
		{No: 4, Type: models.QuestionTypeLongAnswer, Title: "Q4"},
		{No: 5, Type: models.QuestionTypeMultiple, Title: "Q5", Choices: []Choice{
			{SelectionNo: 1, Value: "red"},
			{SelectionNo: 2, Value: "green"},
			{SelectionNo: 3, Value: "blue"},
		}},
	}
}

func responseNumbers(p *Player) []int {
	var out []int
	for _, r := range p.Responses {
		out = append(out, r.SurveyQuestionNo)
	}
	return out
}

func TestPlayerExampleSurvey(t *testing.T) {
	p := NewPlayer(7, 1, branchingItems())

	require.NoError(t, p.Choose(1, 2))
	assert.Equal(t, []int{2, 3}, p.Hidden().Numbers())
	assert.NoError(t, p.Validate(time.Now(), time.Time{}))

	require.NoError(t, p.Choose(1, 1))
	assert.Equal(t, []int{2}, p.Hidden().Numbers())
	var incomplete *IncompleteError
	require.ErrorAs(t, p.Validate(time.Now(), time.Time{}), &incomplete)
	assert.Equal(t, 3, incomplete.QuestionNo)
	assert.Equal(t, "question-3", incomplete.Anchor())
}

func TestChoosingTheSameBranchTwice(t *testing.T) {
	p := NewPlayer(7, 1, longItems())
	require.NoError(t, p.Choose(1, 2))
	once := p.Hidden()

	require.NoError(t, p.Choose(1, 2))
	assert.Equal(t, once, p.Hidden())
	assert.Equal(t, HiddenSet{1: {2, 3}}, once)
	assert.Len(t, p.ResponsesFor(1), 1)
}

func TestUnselectRestoresEverything(t *testing.T) {
	p := NewPlayer(7, 1, longItems())
	require.NoError(t, p.Answer(4, Answer{Text: "notes"}))
	before := p.Hidden()

	require.NoError(t, p.Choose(1, 2))
	require.NoError(t, p.Choose(1, 1))
	require.NoError(t, p.Clear(1))

	assert.Equal(t, before, p.Hidden())
	assert.Empty(t, p.Hidden().Numbers())
	assert.Empty(t, p.ResponsesFor(1))
	assert.Equal(t, []int{4}, responseNumbers(p), "Q4 was never hidden by these choices")
	assert.Empty(t, p.Triggers)
}

func TestHiddenQuestionsLoseTheirResponses(t *testing.T) {
	p := NewPlayer(7, 1, longItems())
	require.NoError(t, p.Answer(2, Answer{Text: "draft"}))
	require.NoError(t, p.Answer(4, Answer{Text: "long text"}))

	require.NoError(t, p.Choose(1, 2))
	assert.Equal(t, []int{4, 1}, responseNumbers(p))

	require.NoError(t, p.Clear(1))
	assert.Equal(t, []int{4}, responseNumbers(p))
	assert.Empty(t, p.Hidden())
}

func TestEndOfSurveyDominates(t *testing.T) {
	p := NewPlayer(7, 1, longItems())
	require.NoError(t, p.Choose(1, 1))
	require.NoError(t, p.Answer(4, Answer{Text: "before"}))
	require.NoError(t, p.Answer(5, Answer{Choices: []ChoiceRef{{SelectionNo: 1}, {SelectionNo: 3}}}))

	require.NoError(t, p.Choose(3, 2))

	hidden := p.Hidden()
	for _, no := range []int{4, 5} {
		assert.True(t, hidden.Contains(no), "question %d", no)
	}
	assert.Equal(t, []int{4, 5}, hidden[3])
	assert.Equal(t, []int{1, 3}, responseNumbers(p))
	rs := p.ResponsesFor(3)
	require.Len(t, rs, 1)
	assert.True(t, rs[0].EndOfSurvey)

	// Changing the end-of-survey choice to a forward branch shows the questions again.
	require.NoError(t, p.Choose(3, 1))
	assert.Equal(t, []int{2, 4}, p.Hidden().Numbers())
}

func TestEarlierBranchSupersedesLaterTrigger(t *testing.T) {
	p := NewPlayer(7, 1, longItems())
	require.NoError(t, p.Choose(1, 1))
	require.NoError(t, p.Choose(3, 1))
	assert.Equal(t, []int{2, 4}, p.Hidden().Numbers())

	require.NoError(t, p.Choose(1, 2))
	assert.Equal(t, []int{2, 3}, p.Hidden().Numbers())
	assert.NotContains(t, p.Triggers, 3)
	assert.Empty(t, p.ResponsesFor(3))

	err := p.Choose(3, 1)
	assert.ErrorIs(t, err, ErrQuestionHidden)
}

func TestClickEvents(t *testing.T) {
	p := NewPlayer(7, 1, longItems())

	p.Click(SelectionEvent{QuestionNo: 1, QuestionType: models.QuestionTypeMoveable, EndOfSurvey: true})
	assert.Equal(t, []int{2, 3, 4, 5}, p.Hidden().Numbers())

	p.Click(SelectionEvent{QuestionNo: 1, QuestionType: models.QuestionTypeMoveable, Movable: true, MoveTo: 3})
	assert.Equal(t, []int{2}, p.Hidden().Numbers())

	p.Click(SelectionEvent{QuestionNo: 1, QuestionType: models.QuestionTypeMoveable, MoveTo: 0})
	assert.Empty(t, p.Hidden().Numbers(), "a non-branching pick retracts the trigger")

	p.Click(SelectionEvent{QuestionNo: 1, QuestionType: models.QuestionTypeMoveable, Movable: true, MoveTo: 5})
	p.Click(SelectionEvent{QuestionNo: 1, QuestionType: models.QuestionTypeMoveable, Unchecked: true})
	assert.Empty(t, p.Hidden().Numbers())
}

func TestAnswer(t *testing.T) {
	t.Run("multi select keeps one response per option", func(t *testing.T) {
		p := NewPlayer(7, 1, longItems())
		require.NoError(t, p.Answer(5, Answer{Choices: []ChoiceRef{{SelectionNo: 1}, {SelectionNo: 2}}}))
		rs := p.ResponsesFor(5)
		require.Len(t, rs, 2)
		assert.Equal(t, "red", *rs[0].SelectionValue)
		assert.Equal(t, "green", *rs[1].SelectionValue)

		require.NoError(t, p.Answer(5, Answer{Choices: []ChoiceRef{{SelectionNo: 3}}}))
		rs = p.ResponsesFor(5)
		require.Len(t, rs, 1)
		assert.Equal(t, 3, rs[0].SelectionNo)

		assert.ErrorIs(t, p.Answer(5, Answer{Choices: []ChoiceRef{{SelectionNo: 9}}}), ErrSelectionNotFound)
	})

	t.Run("free text", func(t *testing.T) {
		p := NewPlayer(7, 1, longItems())
		require.NoError(t, p.Answer(4, Answer{Text: "hello"}))
		rs := p.ResponsesFor(4)
		require.Len(t, rs, 1)
		assert.Equal(t, 0, rs[0].SelectionNo)
		assert.Nil(t, rs[0].SelectionValue)
		assert.Equal(t, "hello", *rs[0].SurveySubjectiveAnswer)
		assert.Equal(t, models.QuestionTypeLongAnswer, rs[0].QuestionTypeNo)
		assert.Equal(t, int64(7), rs[0].SurveyNo)
		assert.Equal(t, int64(1), rs[0].UserNo)
	})

	t.Run("empty single choice removes the response", func(t *testing.T) {
		p := NewPlayer(7, 1, branchingItems())
		require.NoError(t, p.Answer(1, Answer{Choice: &ChoiceRef{SelectionNo: 1}}))
		require.Len(t, p.ResponsesFor(1), 1)

		require.NoError(t, p.Answer(1, Answer{}))
		assert.Empty(t, p.ResponsesFor(1))
	})

	t.Run("branching answer applies its branch", func(t *testing.T) {
		p := NewPlayer(7, 1, branchingItems())
		require.NoError(t, p.Answer(1, Answer{Choice: &ChoiceRef{SelectionNo: 2}}))
		assert.Equal(t, []int{2, 3}, p.Hidden().Numbers())
		require.Len(t, p.Responses, 1)
		assert.True(t, p.Responses[0].EndOfSurvey)

		assert.ErrorIs(t, p.Answer(3, Answer{Text: "x"}), ErrQuestionHidden)
		assert.NoError(t, p.Validate(time.Now(), time.Time{}))
	})

	t.Run("empty branching answer retracts the branch", func(t *testing.T) {
		p := NewPlayer(7, 1, branchingItems())
		require.NoError(t, p.Choose(1, 2))
		require.NoError(t, p.Answer(1, Answer{}))
		assert.Empty(t, p.Hidden().Numbers())
		assert.Empty(t, p.Responses)

		require.NoError(t, p.Answer(1, Answer{Choice: &ChoiceRef{SelectionNo: 1}}))
		assert.Equal(t, []int{2}, p.Hidden().Numbers())
		assert.ErrorIs(t, p.Answer(1, Answer{Choice: &ChoiceRef{SelectionNo: 9}}), ErrSelectionNotFound)
		assert.Equal(t, []int{2}, p.Hidden().Numbers())
	})

	t.Run("unknown question", func(t *testing.T) {
		p := NewPlayer(7, 1, branchingItems())
		assert.ErrorIs(t, p.Answer(9, Answer{Text: "x"}), ErrQuestionNotFound)
		assert.ErrorIs(t, p.Choose(2, 1), ErrNotSingleChoice)
	})
}

func TestValidate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	items := branchingItems()
	items[0].Required = false

	t.Run("hidden required question does not block", func(t *testing.T) {
		p := NewPlayer(7, 1, items)
		require.NoError(t, p.Choose(1, 2))
		assert.NoError(t, p.Validate(now, now.Add(time.Hour)))
	})

	t.Run("visible required question blocks", func(t *testing.T) {
		p := NewPlayer(7, 1, items)
		require.NoError(t, p.Choose(1, 2))
		require.NoError(t, p.Clear(1))

		var incomplete *IncompleteError
		require.ErrorAs(t, p.Validate(now, now.Add(time.Hour)), &incomplete)
		assert.Equal(t, 2, incomplete.QuestionNo)
	})

	t.Run("blank text does not count", func(t *testing.T) {
		p := NewPlayer(7, 1, items)
		require.NoError(t, p.Answer(2, Answer{Text: "   "}))
		require.NoError(t, p.Answer(3, Answer{Text: "ok"}))

		var incomplete *IncompleteError
		require.ErrorAs(t, p.Validate(now, time.Time{}), &incomplete)
		assert.Equal(t, 2, incomplete.QuestionNo)
	})

	t.Run("closed survey is rejected first", func(t *testing.T) {
		p := NewPlayer(7, 1, items)
		assert.ErrorIs(t, p.Validate(now, now.Add(-time.Minute)), ErrSurveyClosed)
	})
}

func TestHideIsAPureFold(t *testing.T) {
	numbers := []int{1, 2, 3, 4, 5, 6}
	triggers := map[int]Trigger{
		1: {MoveTo: 3},
		2: {EndOfSurvey: true},
		4: {MoveTo: 6},
	}
	first := Hide(numbers, triggers)
	assert.Equal(t, HiddenSet{1: {2}, 4: {5}}, first, "trigger on hidden question 2 is ignored")
	assert.Equal(t, first, Hide(numbers, triggers))
	assert.False(t, first.Contains(3))
}

func TestGroupItems(t *testing.T) {
	rows := []models.SurveyItem{
		{SurveyQuestionNo: 2, QuestionTypeNo: models.QuestionTypeShortAnswer, SurveyQuestionTitle: "Why?", Required: true},
		{SurveyQuestionNo: 1, QuestionTypeNo: models.QuestionTypeMoveable, SurveyQuestionTitle: "Pick", SelectionNo: 1, SelectionValue: "A", Movable: true, SurveyQuestionMoveNo: 2},
		{SurveyQuestionNo: 1, QuestionTypeNo: models.QuestionTypeMoveable, SurveyQuestionTitle: "Pick", SelectionNo: 2, SelectionValue: "B", Movable: true, EndOfSurvey: true},
	}

	items := GroupItems(rows)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].No)
	assert.Equal(t, []Choice{
		{SelectionNo: 1, Value: "A", Movable: true, MoveTo: 2},
		{SelectionNo: 2, Value: "B", Movable: true, EndOfSurvey: true},
	}, items[0].Choices)
	assert.Equal(t, 2, items[1].No)
	assert.Empty(t, items[1].Choices)
	assert.True(t, items[1].Required)
}
