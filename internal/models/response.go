package models

import "time"

// UserResponse is one answer record. Multi-select questions produce one record per picked option.
type UserResponse struct {
	SurveyQuestionTitle    string       `json:"surveyQuestionTitle"`
	SelectionValue         *string      `json:"selectionValue"`
	UserNo                 int64        `json:"userNo"`
	SurveyNo               int64        `json:"surveyNo"`
	SurveyQuestionNo       int          `json:"surveyQuestionNo"`
	QuestionTypeNo         QuestionType `json:"questionTypeNo"`
	SelectionNo            int          `json:"selectionNo"`
	SurveySubjectiveAnswer *string      `json:"surveySubjectiveAnswer"`
	EndOfSurvey            bool         `json:"endOfSurvey"`
}

// Attendance records that a user submitted a survey.
type Attendance struct {
	SurveyNo    int64     `json:"surveyNo"`
	UserNo      int64     `json:"userNo"`
	SurveyTitle string    `json:"surveyTitle"`
	AttendedAt  time.Time `json:"attendedAt"`
}
