package services

import "strings"

// QuestionSummary is the read-side view of one question across all responses.
// Text questions carry Answers; select questions carry Counts.
type QuestionSummary struct {
	QuestionID string         `json:"question_id"`
	Text       string         `json:"text"`
	Type       QuestionType   `json:"type"`
	Answered   int            `json:"answered"`
	Answers    []string       `json:"answers,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
}

// Aggregate summarises responses per question in question order. It does not modify its inputs.
func Aggregate(questions []*Question, responses []*Response) []QuestionSummary {
	out := make([]QuestionSummary, 0, len(questions))
	for _, q := range questions {
		if q == nil {
			continue
		}
		sum := QuestionSummary{QuestionID: q.ID, Text: q.Text, Type: q.Type}
		if q.Type.IsSelect() {
			sum.Counts = make(map[string]int, len(q.Options))
			for _, opt := range q.Options {
				sum.Counts[opt] = 0
			}
		} else {
			sum.Answers = []string{}
		}
		for _, r := range responses {
			if r == nil {
				continue
			}
			values := answerValues(r.Data[q.ID])
			if len(values) == 0 {
				continue
			}
			sum.Answered++
			if q.Type.IsSelect() {
				for _, v := range values {
					sum.Counts[v]++
				}
			} else {
				sum.Answers = append(sum.Answers, values...)
			}
		}
		out = append(out, sum)
	}
	return out
}

// answerValues flattens a stored answer into its non-empty string values.
func answerValues(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return []string{val}
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
