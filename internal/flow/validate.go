package flow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/surveyflow/backend/internal/models"
)

// Field rules live in the binding tags of the creation payload; the checks below add the rules
// that span several fields.
var fieldRules = newFieldValidator()

func newFieldValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError is one failed creation rule. Field is the JSON path inside the payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every failed rule of a creation payload.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Field + ": " + e.Message
	}
	return strings.Join(msgs, "; ")
}

func (v *ValidationErrors) add(field, format string, args ...any) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// DecodeError returns err unless it only reports failed binding tags. Handlers bind creation
// payloads with it and leave the field rules to ValidateCreateRequest, which reports them
// together with the cross-field rules.
func DecodeError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		return nil
	}
	return err
}

func fieldErrors(err error) ValidationErrors {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return ValidationErrors{{Message: err.Error()}}
	}
	errs := make(ValidationErrors, 0, len(fields))
	for _, fe := range fields {
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		errs = append(errs, FieldError{Field: path, Message: fieldMessage(fe)})
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	counted := "characters"
	if k := fe.Kind(); k == reflect.Slice || k == reflect.Array {
		counted = "items"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.Int {
			return "must be at most " + fe.Param()
		}
		return fmt.Sprintf("must have at most %s %s", fe.Param(), counted)
	case "min":
		if fe.Kind() == reflect.Int {
			return "must be at least " + fe.Param()
		}
		return fmt.Sprintf("must have at least %s %s", fe.Param(), counted)
	case "oneof":
		return fmt.Sprintf("%v is not one of %s", fe.Value(), fe.Param())
	case "datetime":
		return "must be a yyyy-mm-dd calendar date"
	}
	return fmt.Sprintf("failed %s rule", fe.Tag())
}

// trimmed copies the text fields without surrounding blanks so whitespace-only text fails the
// required rules.
func trimmed(req models.SurveyCreateRequest) models.SurveyCreateRequest {
	req.SurveyInfo.SurveyTitle = strings.TrimSpace(req.SurveyInfo.SurveyTitle)
	req.SurveyInfo.SurveyDescription = strings.TrimSpace(req.SurveyInfo.SurveyDescription)
	if req.Questions == nil {
		return req
	}
	questions := make([]models.QuestionCreate, len(req.Questions))
	for i, q := range req.Questions {
		q.QuestionTitle = strings.TrimSpace(q.QuestionTitle)
		if q.Selections != nil {
			selections := make([]models.SelectionCreate, len(q.Selections))
			for k, s := range q.Selections {
				s.SelectionValue = strings.TrimSpace(s.SelectionValue)
				selections[k] = s
			}
			q.Selections = selections
		}
		questions[i] = q
	}
	req.Questions = questions
	return req
}

const questionsField = "surveyQuestionCreateDtoList"

// validateQuestionRules checks the rules that relate a question's type to its selections.
func validateQuestionRules(questions []models.QuestionCreate) ValidationErrors {
	var errs ValidationErrors
	for i, q := range questions {
		field := fmt.Sprintf("%s[%d]", questionsField, i)
		if !q.QuestionType.Valid() || !q.QuestionType.IsChoice() {
			continue
		}
		if len(q.Selections) == 0 {
			errs.add(field+".selections", "question %d: add at least one selection", i+1)
			continue
		}
		for k, s := range q.Selections {
			sf := fmt.Sprintf("%s.selections[%d]", field, k)
			if q.QuestionType != models.QuestionTypeMoveable {
				if s.IsMoveable || s.IsEndOfSurvey || s.QuestionMoveID != nil {
					errs.add(sf, "question %d: only branching questions can move", i+1)
				}
				continue
			}
			validateBranch(&errs, sf, i, len(questions), s)
		}
	}
	return errs
}

func validateBranch(errs *ValidationErrors, field string, index, total int, s models.SelectionCreate) {
	if !s.IsMoveable {
		errs.add(field+".isMoveable", "question %d: branching selections must be moveable", index+1)
	}
	hasTarget := s.QuestionMoveID != nil && *s.QuestionMoveID > 0
	switch {
	case hasTarget && s.IsEndOfSurvey:
		errs.add(field, "question %d: a selection cannot both move and end the survey", index+1)
	case !hasTarget && !s.IsEndOfSurvey:
		errs.add(field, "question %d: choose where selection %q leads", index+1, s.SelectionValue)
	case hasTarget:
		if no := *s.QuestionMoveID; no < index+2 || no > total {
			errs.add(field+".questionMoveId", "question %d: target %d must come after the question", index+1, no)
		}
	}
}

// ValidateCreateRequest checks a full creation payload: the binding tags of the payload types
// first, then the branch rules between questions.
func ValidateCreateRequest(req models.SurveyCreateRequest) error {
	req = trimmed(req)
	var errs ValidationErrors
	if err := fieldRules.Struct(req); err != nil {
		errs = fieldErrors(err)
	}
	errs = append(errs, validateQuestionRules(req.Questions)...)
	if len(errs) == 0 {
		return nil
	}
	return errs
}
