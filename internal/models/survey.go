package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// QuestionType is the numeric question kind used on the wire.
type QuestionType int

const (
	QuestionTypeSingle      QuestionType = 1
	QuestionTypeMoveable    QuestionType = 2
	QuestionTypeMultiple    QuestionType = 3
	QuestionTypeShortAnswer QuestionType = 4
	QuestionTypeLongAnswer  QuestionType = 5
)

// Valid reports whether t is one of the five known types.
func (t QuestionType) Valid() bool {
	return t >= QuestionTypeSingle && t <= QuestionTypeLongAnswer
}

// IsChoice reports whether answers are picked from selections.
func (t QuestionType) IsChoice() bool {
	return t >= QuestionTypeSingle && t <= QuestionTypeMultiple
}

// IsFreeText reports whether answers are typed text.
func (t QuestionType) IsFreeText() bool {
	return t == QuestionTypeShortAnswer || t == QuestionTypeLongAnswer
}

// UnmarshalJSON accepts both "2" (creation payloads) and 2 (survey data rows).
func (t *QuestionType) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*t = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("question type %q: %w", b, err)
	}
	*t = QuestionType(n)
	return nil
}

// OpenStatus controls who may attend a survey.
type OpenStatus int

const (
	OpenStatusPublic   OpenStatus = 1
	OpenStatusOnlyUser OpenStatus = 2
	OpenStatusPrivate  OpenStatus = 3
)

// SurveyStatus is the lifecycle state of a survey.
type SurveyStatus int

const (
	SurveyStatusWriting  SurveyStatus = 1
	SurveyStatusProgress SurveyStatus = 2
	SurveyStatusClosed   SurveyStatus = 3
)

// SurveyTags maps tag names to their keys.
var SurveyTags = map[string]int{
	"DAILY":     0,
	"WORK":      1,
	"NOTICE":    2,
	"IMPORTANT": 3,
	"ETC":       4,
}

// SurveyInfo is the survey header shared by creation, update and detail payloads.
type SurveyInfo struct {
	SurveyID          int64        `json:"surveyId"`
	SurveyInfoID      int64        `json:"surveyInfoId"`
	UserNo            int64        `json:"userNo"`
	SurveyTitle       string       `json:"surveyTitle" binding:"required,max=255"`
	SurveyTags        []string     `json:"surveyTags" binding:"required,min=1,max=2,dive,oneof=DAILY WORK NOTICE IMPORTANT ETC"`
	SurveyClosingAt   string       `json:"surveyClosingAt" binding:"required,datetime=2006-01-02"`
	OpenStatusNo      OpenStatus   `json:"openStatusNo" binding:"min=1,max=3"`
	SurveyDescription string       `json:"surveyDescription" binding:"required"`
	SurveyStatusNo    SurveyStatus `json:"surveyStatusNo" binding:"min=1,max=3"`
	SurveyPostAt      *time.Time   `json:"surveyPostAt,omitempty"`
	SurveyImageURL    string       `json:"surveyImageUrl,omitempty"`
}

// SelectionCreate is one authored selection in a creation payload.
type SelectionCreate struct {
	QuestionID     int64  `json:"questionId"`
	SelectionID    int64  `json:"selectionId"`
	QuestionMoveID *int   `json:"questionMoveId,omitempty"`
	SelectionValue string `json:"selectionValue" binding:"required"`
	IsMoveable     bool   `json:"isMoveable"`
	IsEndOfSurvey  bool   `json:"isEndOfSurvey"`
}

// QuestionCreate is one authored question in a creation payload.
type QuestionCreate struct {
	SurveyID            int64             `json:"surveyId"`
	QuestionID          int64             `json:"questionId"`
	QuestionTitle       string            `json:"questionTitle" binding:"required,max=255"`
	QuestionDescription string            `json:"questionDescription"`
	QuestionRequired    bool              `json:"questionRequired"`
	QuestionType        QuestionType      `json:"questionType" binding:"min=1,max=5"`
	Selections          []SelectionCreate `json:"selections" binding:"dive"`
}

// SurveyCreateRequest is the body for POST and PUT /api/surveys.
type SurveyCreateRequest struct {
	SurveyInfo SurveyInfo       `json:"surveyInfoCreateDto"`
	Questions  []QuestionCreate `json:"surveyQuestionCreateDtoList" binding:"required,min=1,dive"`
}

// SurveyDetail is a stored survey in creation-payload shape, used by the modify screen.
type SurveyDetail struct {
	SurveyInfo SurveyInfo       `json:"surveyInfo"`
	Questions  []QuestionCreate `json:"questions"`
}

// SurveySummary is a survey card in list endpoints.
type SurveySummary struct {
	SurveyNo          int64        `json:"surveyNo"`
	UserNo            int64        `json:"userNo"`
	SurveyTitle       string       `json:"surveyTitle"`
	SurveyDescription string       `json:"surveyDescription"`
	SurveyImage       string       `json:"surveyImage"`
	SurveyTags        []string     `json:"surveyTags"`
	OpenStatusNo      OpenStatus   `json:"openStatusNo"`
	SurveyStatusNo    SurveyStatus `json:"surveyStatusNo"`
	SurveyPostAt      *time.Time   `json:"surveyPostAt,omitempty"`
	SurveyClosingAt   time.Time    `json:"surveyClosingAt"`
	SurveyAttendCount int          `json:"surveyAttendCount"`
}

// Page is a paged list result.
type Page[T any] struct {
	Content       []T `json:"content"`
	Page          int `json:"page"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

