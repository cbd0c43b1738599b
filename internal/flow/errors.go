package flow

import "errors"

var (
	// ErrQuestionNotFound is returned when a question ID or number is not part of the survey.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSelectionNotFound is returned when a selection is not part of its question.
	ErrSelectionNotFound = errors.New("selection not found")
	// ErrRequiredInSkipRange rejects making a question required while an earlier branch can skip it.
	ErrRequiredInSkipRange = errors.New("cannot require a question between branches")
	// ErrInvalidTarget is returned for branch targets past the last question.
	ErrInvalidTarget = errors.New("invalid branch target")
	// ErrNotBranching is returned when a branch target is set on a non-branching question.
	ErrNotBranching = errors.New("question is not a branching question")
	// ErrNoSelections is returned when selections are edited on a free-text question.
	ErrNoSelections = errors.New("question type has no selections")
	// ErrInvalidQuestionType is returned for question types outside 1..5.
	ErrInvalidQuestionType = errors.New("invalid question type")
	// ErrInvalidPosition is returned when a reorder index is out of range.
	ErrInvalidPosition = errors.New("invalid question position")
	// ErrQuestionHidden is returned when a hidden question is answered.
	ErrQuestionHidden = errors.New("question is hidden by an earlier answer")
	// ErrNotSingleChoice is returned when a single pick is made on a question that is not single choice.
	ErrNotSingleChoice = errors.New("question is not single choice")
	// ErrSurveyClosed is returned when a submission arrives after the closing time.
	ErrSurveyClosed = errors.New("survey is already closed")
	// ErrSurveyNotPosted is returned when a survey still being written is started or answered.
	ErrSurveyNotPosted = errors.New("survey is not posted yet")
	// ErrSurveyMismatch is returned when a submitted response belongs to another survey.
	ErrSurveyMismatch = errors.New("response does not belong to this survey")
)
