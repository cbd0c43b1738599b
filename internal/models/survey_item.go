package models

// SurveyItem is one flattened (question, selection) row of survey data.
// Free-text questions appear as a single row with SelectionNo 0.
type SurveyItem struct {
	SurveyNo                  int64        `json:"surveyNo"`
	SurveyTitle               string       `json:"surveyTitle"`
	SurveyImage               string       `json:"surveyImage"`
	SurveyQuestionNo          int          `json:"surveyQuestionNo"`
	QuestionTypeNo            QuestionType `json:"questionTypeNo"`
	SurveyQuestionTitle       string       `json:"surveyQuestionTitle"`
	SurveyQuestionDescription string       `json:"surveyQuestionDescription"`
	SelectionNo               int          `json:"selectionNo"`
	SurveyQuestionMoveNo      int          `json:"surveyQuestionMoveNo"`
	SelectionValue            string       `json:"selectionValue"`
	Required                  bool         `json:"required"`
	EndOfSurvey               bool         `json:"endOfSurvey"`
	Movable                   bool         `json:"movable"`
}

// SurveyData is the body of the survey-data endpoint.
type SurveyData struct {
	Content []SurveyItem `json:"content"`
}
