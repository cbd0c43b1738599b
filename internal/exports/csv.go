package exports

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/surveyflow/backend/internal/models"
)

// Header is the first CSV record of every export.
var Header = []string{
	"survey_no", "user_no", "question_no", "question_title", "question_type",
	"selection_no", "selection_value", "subjective_answer", "end_of_survey",
}

// WriteCSV writes one record per response after the header.
func WriteCSV(w io.Writer, rs []models.UserResponse) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rs {
		record := []string{
			strconv.FormatInt(r.SurveyNo, 10),
			strconv.FormatInt(r.UserNo, 10),
			strconv.Itoa(r.SurveyQuestionNo),
			r.SurveyQuestionTitle,
			strconv.Itoa(int(r.QuestionTypeNo)),
			strconv.Itoa(r.SelectionNo),
			deref(r.SelectionValue),
			deref(r.SurveySubjectiveAnswer),
			strconv.FormatBool(r.EndOfSurvey),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
