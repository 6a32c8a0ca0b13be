package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleSurveyor    Role = "SURVEYOR"
	RoleParticipant Role = "PARTICIPANT"
)

// Actor is the authenticated caller of an operation. A zero Actor is anonymous.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Authenticated() bool { return strings.TrimSpace(a.ID) != "" }

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type SurveyStatus string

const (
	StatusDraft     SurveyStatus = "DRAFT"
	StatusActive    SurveyStatus = "ACTIVE"
	StatusCompleted SurveyStatus = "COMPLETED"
)

func (s SurveyStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted:
		return true
	}
	return false
}

type QuestionType string

const (
	QuestionText         QuestionType = "TEXT"
	QuestionLongText     QuestionType = "LONG_TEXT"
	QuestionSingleSelect QuestionType = "SINGLE_SELECT"
	QuestionMultiSelect  QuestionType = "MULTI_SELECT"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionLongText, QuestionSingleSelect, QuestionMultiSelect:
		return true
	}
	return false
}

func (t QuestionType) IsSelect() bool {
	return t == QuestionSingleSelect || t == QuestionMultiSelect
}

type User struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         Role         `json:"role"`
	Demographics Demographics `json:"demographics,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Demographics is a loosely typed attribute bag. Known keys: dob, gender, annualIncome.
type Demographics map[string]any

func (d Demographics) Gender() string {
	s, _ := d["gender"].(string)
	return strings.TrimSpace(s)
}

var dobLayouts = []string{"2006-01-02", time.RFC3339Nano, time.RFC3339}

func (d Demographics) DateOfBirth() (time.Time, bool) {
	s, _ := d["dob"].(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (d Demographics) AnnualIncome() (float64, bool) {
	switch v := d["annualIncome"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Targeting narrows which participants see a survey. Nil or zero fields impose no constraint.
type Targeting struct {
	Gender          string   `json:"gender,omitempty"`
	MinAge          *int     `json:"minAge,omitempty"`
	MinAnnualIncome *float64 `json:"minAnnualIncome,omitempty"`
}

func (t *Targeting) empty() bool {
	if t == nil {
		return true
	}
	_, age := t.minAge()
	_, income := t.minIncome()
	return (t.Gender == "" || t.Gender == GenderAll) && !age && !income
}

func (t *Targeting) minAge() (int, bool) {
	if t.MinAge == nil || *t.MinAge == 0 {
		return 0, false
	}
	return *t.MinAge, true
}

func (t *Targeting) minIncome() (float64, bool) {
	if t.MinAnnualIncome == nil || *t.MinAnnualIncome == 0 {
		return 0, false
	}
	return *t.MinAnnualIncome, true
}

type Survey struct {
	ID            string       `json:"id"`
	CreatorID     string       `json:"creator_id"`
	Title         string       `json:"title"`
	Description   string       `json:"description,omitempty"`
	Status        SurveyStatus `json:"status"`
	Limit         int          `json:"limit"`
	ResponseCount int          `json:"response_count"`
	Targeting     *Targeting   `json:"targeting,omitempty"`
	Questions     []*Question  `json:"questions,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Full reports whether the survey has reached its response limit. A zero limit never fills.
func (s *Survey) Full() bool {
	return s.Limit > 0 && s.ResponseCount >= s.Limit
}

// Open reports whether the survey currently admits responses.
func (s *Survey) Open() bool {
	return s.Status == StatusActive && !s.Full()
}

func (s *Survey) question(id string) *Question {
	for _, q := range s.Questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}

type Question struct {
	ID       string       `json:"id"`
	SurveyID string       `json:"survey_id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Required bool         `json:"required"`
	Options  []string     `json:"options,omitempty"`
	Order    int          `json:"order"`
}

// Answers maps question id to a string (TEXT, LONG_TEXT, SINGLE_SELECT) or a list of strings (MULTI_SELECT).
type Answers map[string]any

type Response struct {
	ID            string    `json:"id"`
	SurveyID      string    `json:"survey_id"`
	ParticipantID string    `json:"participant_id"`
	Data          Answers   `json:"data"`
	CreatedAt     time.Time `json:"created_at"`
}

type HistoryEntry struct {
	Response *Response `json:"response"`
	Survey   *Survey   `json:"survey"`
}
