package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surveyflow/backend/internal/models"
)

func TestQuestionCreatesRendersNumbers(t *testing.T) {
	d := newTestDraft(t, 4)
	q1 := makeBranching(t, d, 0)
	require.NoError(t, d.EditSelection(q1.ID, q1.Selections[0].ID, "jump"))
	require.NoError(t, d.SetBranchTarget(q1.ID, q1.Selections[0].ID, Target{QuestionNo: 4}))
	s, err := d.AddSelection(q1.ID)
	require.NoError(t, err)
	require.NoError(t, d.SetBranchTarget(q1.ID, s.ID, Target{EndOfSurvey: true}))
	last := makeBranching(t, d, 3)

	out := d.QuestionCreates(12)
	require.Len(t, out, 4)

	first := out[0]
	assert.Equal(t, int64(12), first.SurveyID)
	assert.Equal(t, int64(1), first.QuestionID)
	require.Len(t, first.Selections, 2)
	assert.Equal(t, "jump", first.Selections[0].SelectionValue)
	assert.True(t, first.Selections[0].IsMoveable)
	require.NotNil(t, first.Selections[0].QuestionMoveID)
	assert.Equal(t, 4, *first.Selections[0].QuestionMoveID)
	assert.True(t, first.Selections[1].IsEndOfSurvey)
	assert.Nil(t, first.Selections[1].QuestionMoveID)

	assert.False(t, out[1].QuestionRequired)
	assert.False(t, out[1].Selections[0].IsMoveable)

	require.Equal(t, models.QuestionTypeMoveable, last.Type)
	assert.True(t, out[3].Selections[0].IsEndOfSurvey, "unset branch on the last question ends the survey")
}

func TestDraftFromQuestionsRestoresTargets(t *testing.T) {
	req := validRequest()
	d := DraftFromQuestions(req.Questions)
	require.Len(t, d.Questions, 3)

	q1 := d.Questions[0]
	assert.Equal(t, MovesTo(d.Questions[1].ID), q1.Selections[0].Branch)
	assert.Equal(t, EndsSurvey(), q1.Selections[1].Branch)
	assert.Empty(t, d.Questions[2].Selections)

	again := d.QuestionCreates(0)
	assert.Equal(t, 2, *again[0].Selections[0].QuestionMoveID)
	assert.True(t, again[0].Selections[1].IsEndOfSurvey)
}

func TestDraftFromItems(t *testing.T) {
	rows := []models.SurveyItem{
		{SurveyQuestionNo: 1, QuestionTypeNo: models.QuestionTypeMoveable, SurveyQuestionTitle: "Go on?", Required: true,
			SelectionNo: 1, SelectionValue: "skip", Movable: true, SurveyQuestionMoveNo: 3},
		{SurveyQuestionNo: 1, QuestionTypeNo: models.QuestionTypeMoveable, SurveyQuestionTitle: "Go on?", Required: true,
			SelectionNo: 2, SelectionValue: "stop", Movable: true, EndOfSurvey: true},
		{SurveyQuestionNo: 2, QuestionTypeNo: models.QuestionTypeShortAnswer, SurveyQuestionTitle: "Why?"},
		{SurveyQuestionNo: 3, QuestionTypeNo: models.QuestionTypeShortAnswer, SurveyQuestionTitle: "Bye", Required: true},
	}

	d := DraftFromItems(rows)
	require.Len(t, d.Questions, 3)
	assert.Equal(t, MovesTo(d.Questions[2].ID), d.Questions[0].Selections[0].Branch)
	assert.Equal(t, EndsSurvey(), d.Questions[0].Selections[1].Branch)
	assert.False(t, d.Questions[1].Required)
	assert.Equal(t, "Bye", d.Questions[2].Title)
}
