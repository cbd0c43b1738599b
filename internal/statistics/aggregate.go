// Package statistics aggregates stored responses into per-question result rows.
package statistics

import (
	"sort"
	"strings"

	"github.com/surveyflow/backend/internal/flow"
	"github.com/surveyflow/backend/internal/models"
)

// Aggregate counts responses per selection for choice questions and per distinct answer for
// free-text questions. Rows follow question order, then selection order; free-text answers are
// ordered by count, most frequent first. A free-text question nobody answered yields one row with
// an empty answer so every question appears in the result.
func Aggregate(info models.SurveyInfo, rows []models.SurveyItem, responses []models.UserResponse) []models.StatisticRow {
	type key struct{ question, selection int }
	picks := make(map[key]int)
	answers := make(map[int]map[string]int)
	for _, r := range responses {
		if r.QuestionTypeNo.IsFreeText() {
			if r.SurveySubjectiveAnswer == nil {
				continue
			}
			text := strings.TrimSpace(*r.SurveySubjectiveAnswer)
			if text == "" {
				continue
			}
			if answers[r.SurveyQuestionNo] == nil {
				answers[r.SurveyQuestionNo] = make(map[string]int)
			}
			answers[r.SurveyQuestionNo][text]++
			continue
		}
		picks[key{r.SurveyQuestionNo, r.SelectionNo}]++
	}

	out := []models.StatisticRow{}
	for _, it := range flow.GroupItems(rows) {
		base := models.StatisticRow{
			SurveyPostAt:        info.SurveyPostAt,
			SurveyNo:            info.SurveyID,
			SurveyTitle:         info.SurveyTitle,
			SurveyQuestionNo:    it.No,
			SurveyQuestionTitle: it.Title,
			QuestionTypeNo:      it.Type,
		}
		if !it.Type.IsFreeText() {
			for _, c := range it.Choices {
				row := base
				row.SelectionNo = c.SelectionNo
				row.SelectionValue = c.Value
				row.SelectionCount = picks[key{it.No, c.SelectionNo}]
				out = append(out, row)
			}
			continue
		}

		counts := answers[it.No]
		if len(counts) == 0 {
			out = append(out, base)
			continue
		}
		texts := make([]string, 0, len(counts))
		for text := range counts {
			texts = append(texts, text)
		}
		sort.Slice(texts, func(a, b int) bool {
			if counts[texts[a]] != counts[texts[b]] {
				return counts[texts[a]] > counts[texts[b]]
			}
			return texts[a] < texts[b]
		})
		for _, text := range texts {
			row := base
			row.SurveySubjectiveAnswer = text
			row.SurveySubjectiveAnswerCount = counts[text]
			out = append(out, row)
		}
	}
	return out
}
