package services

import (
	"fmt"
	"strings"
)

// ValidateAnswers checks answers against the survey's questions and returns them in canonical
// form: strings for single-valued questions and []string for MULTI_SELECT.
func ValidateAnswers(sv *Survey, answers Answers) (Answers, error) {
	out := make(Answers, len(answers))
	for qid, raw := range answers {
		q := sv.question(qid)
		if q == nil {
			return nil, NewInvalidError(fmt.Sprintf("unknown question %q", qid))
		}
		if raw == nil {
			continue
		}
		switch q.Type {
		case QuestionMultiSelect:
			values, ok := stringList(raw)
			if !ok {
				return nil, NewInvalidError(fmt.Sprintf("question %q expects a list of options", qid))
			}
			for _, v := range values {
				if !allowedOption(q, v) {
					return nil, NewInvalidError(fmt.Sprintf("%q is not an option of question %q", v, qid))
				}
			}
			out[qid] = values
		default:
			s, ok := raw.(string)
			if !ok {
				return nil, NewInvalidError(fmt.Sprintf("question %q expects a single value", qid))
			}
			if q.Type == QuestionSingleSelect && strings.TrimSpace(s) != "" && !allowedOption(q, s) {
				return nil, NewInvalidError(fmt.Sprintf("%q is not an option of question %q", s, qid))
			}
			out[qid] = s
		}
	}
	for _, q := range sv.Questions {
		if q.Required && len(answerValues(out[q.ID])) == 0 {
			return nil, NewInvalidError(fmt.Sprintf("question %q is required", q.Text))
		}
	}
	return out, nil
}

func stringList(v any) ([]string, bool) {
	switch val := v.(type) {
	case []string:
		return append([]string{}, val...), true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func allowedOption(q *Question, v string) bool {
	if len(q.Options) == 0 {
		return true
	}
	for _, opt := range q.Options {
		if opt == v {
			return true
		}
	}
	return false
}

func validateQuestion(q *Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return NewInvalidError("Question text required")
	}
	if !q.Type.Valid() {
		return NewInvalidError(fmt.Sprintf("unknown question type %q", q.Type))
	}
	if !q.Type.IsSelect() {
		q.Options = nil
	}
	return nil
}
