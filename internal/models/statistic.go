package models

import "time"

// StatisticRow is one aggregated row of the survey result endpoint: a selection with its
// pick count, or a distinct free-text answer with its count.
type StatisticRow struct {
	SurveyPostAt                *time.Time   `json:"surveyPostAt,omitempty"`
	SurveyNo                    int64        `json:"surveyNo"`
	SurveyTitle                 string       `json:"surveyTitle"`
	SurveyQuestionNo            int          `json:"surveyQuestionNo"`
	SurveyQuestionTitle         string       `json:"surveyQuestionTitle"`
	QuestionTypeNo              QuestionType `json:"questionTypeNo"`
	SelectionNo                 int          `json:"selectionNo"`
	SelectionValue              string       `json:"selectionValue"`
	SelectionCount              int          `json:"selectionCount"`
	SurveySubjectiveAnswer      string       `json:"surveySubjectiveAnswer"`
	SurveySubjectiveAnswerCount int          `json:"surveySubjectiveAnswerCount"`
}

// SurveyResult is the cached statistics body for one survey.
type SurveyResult struct {
	SurveyNo    int64          `json:"surveyNo"`
	AttendCount int            `json:"attendCount"`
	Rows        []StatisticRow `json:"rows"`
	ComputedAt  time.Time      `json:"computedAt"`
}
