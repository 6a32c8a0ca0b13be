package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SurveyStore interface {
	CreateSurvey(ctx context.Context, sv *Survey) error
	GetSurvey(ctx context.Context, id string) (*Survey, error)
	UpdateSurvey(ctx context.Context, sv *Survey, withStatus bool) error
	SetSurveyStatus(ctx context.Context, id string, status SurveyStatus, at time.Time) error
	SyncSurvey(ctx context.Context, plan *SurveySync) error
	DeleteSurvey(ctx context.Context, id string) error
	InsertQuestion(ctx context.Context, q *Question, at time.Time) error
	GetQuestion(ctx context.Context, id string) (*Question, error)
	DeleteQuestion(ctx context.Context, surveyID, questionID string, at time.Time) error
	ListSurveysByCreator(ctx context.Context, creatorID string) ([]*Survey, error)
}

// SurveySync is a full rewrite of a survey applied in one transaction.
// Survey carries the new field values; its status is written only when SetStatus is true.
// Every stored question of the survey that is not in Update is deleted.
type SurveySync struct {
	Survey    *Survey
	SetStatus bool
	Update    []*Question
	Create    []*Question
}

type QuestionInput struct {
	ID       string       `json:"id,omitempty"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Required *bool        `json:"required,omitempty"`
	Options  []string     `json:"options,omitempty"`
	Order    *int         `json:"order,omitempty"`
}

type NewSurvey struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Questions   []QuestionInput `json:"questions"`
	Status      SurveyStatus    `json:"status,omitempty"`
	Limit       *int            `json:"limit,omitempty"`
	Targeting   *Targeting      `json:"targeting,omitempty"`
}

type SurveyPatch struct {
	ID          string        `json:"id"`
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *SurveyStatus `json:"status,omitempty"`
	Limit       *int          `json:"limit,omitempty"`
	Targeting   *Targeting    `json:"targeting,omitempty"`
}

type SurveyReplace struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description *string         `json:"description,omitempty"`
	Limit       *int            `json:"limit,omitempty"`
	Status      *SurveyStatus   `json:"status,omitempty"`
	Targeting   *Targeting      `json:"targeting,omitempty"`
	Questions   []QuestionInput `json:"questions"`
}

type NewQuestion struct {
	SurveyID string `json:"survey_id"`
	QuestionInput
}

type DashboardStats struct {
	TotalSurveys   int `json:"total_surveys"`
	TotalResponses int `json:"total_responses"`
	ActiveSurveys  int `json:"active_surveys"`
}

type SurveyService struct {
	store SurveyStore
	now   func() time.Time
	idGen func() string
	log   *zap.Logger
}

func NewSurveyService(store SurveyStore, logger *zap.Logger) *SurveyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SurveyService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
		log:   logger,
	}
}

func (s *SurveyService) CreateSurvey(ctx context.Context, actor Actor, in NewSurvey) (*Survey, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError(msgUnauthenticated)
	}
	if actor.Role != RoleSurveyor && !actor.IsAdmin() {
		return nil, NewForbiddenError("Only surveyors can create surveys")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, NewInvalidError("Title is required")
	}
	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, NewInvalidError("invalid status")
	}
	limit := 0
	if in.Limit != nil {
		limit = *in.Limit
	}
	if limit < 0 {
		return nil, NewInvalidError("limit must not be negative")
	}
	now := s.now()
	sv := &Survey{
		ID:          s.idGen(),
		CreatorID:   actor.ID,
		Title:       title,
		Description: in.Description,
		Status:      status,
		Limit:       limit,
		Targeting:   in.Targeting,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, qi := range in.Questions {
		q, err := s.buildQuestion(sv.ID, qi, i)
		if err != nil {
			return nil, err
		}
		sv.Questions = append(sv.Questions, q)
	}
	if status == StatusActive && len(sv.Questions) == 0 {
		return nil, NewInvalidError(msgNoQuestions)
	}
	if err := s.store.CreateSurvey(ctx, sv); err != nil {
		return nil, storeError("Failed to create survey", err)
	}
	s.log.Info("survey created",
		zap.String("survey_id", sv.ID),
		zap.String("creator_id", actor.ID),
		zap.Int("questions", len(sv.Questions)))
	return sv, nil
}

// GetSurvey returns a survey with its questions. Non-owners only see ACTIVE surveys.
func (s *SurveyService) GetSurvey(ctx context.Context, actor Actor, id string) (*Survey, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError(msgUnauthenticated)
	}
	sv, err := s.store.GetSurvey(ctx, id)
	if err != nil {
		return nil, storeError("Failed to load survey", err)
	}
	if sv == nil {
		return nil, NewNotFoundError(msgSurveyNotFound)
	}
	if sv.CreatorID == actor.ID || actor.IsAdmin() || sv.Status == StatusActive {
		return sv, nil
	}
	return nil, NewNotFoundError(msgSurveyNotFound)
}

func (s *SurveyService) UpdateSurvey(ctx context.Context, actor Actor, patch SurveyPatch) (*Survey, error) {
	sv, err := s.ownedSurvey(ctx, actor, patch.ID, false)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		if err := checkStatusChange(sv, *patch.Status); err != nil {
			return nil, err
		}
	}
	changed := false
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, NewInvalidError("Title is required")
		}
		sv.Title, changed = title, true
	}
	if patch.Description != nil {
		sv.Description, changed = *patch.Description, true
	}
	if patch.Limit != nil {
		if *patch.Limit < 0 {
			return nil, NewInvalidError("limit must not be negative")
		}
		sv.Limit, changed = *patch.Limit, true
	}
	if patch.Targeting != nil {
		sv.Targeting, changed = patch.Targeting, true
	}
	from := sv.Status
	withStatus := patch.Status != nil && *patch.Status != sv.Status
	if !changed && !withStatus {
		return sv, nil
	}
	if withStatus {
		sv.Status = *patch.Status
	}
	sv.UpdatedAt = s.now()
	if err := s.store.UpdateSurvey(ctx, sv, withStatus); err != nil {
		return nil, storeError(msgUpdateFailed, err)
	}
	if withStatus {
		s.log.Info("survey status changed",
			zap.String("survey_id", sv.ID),
			zap.String("from", string(from)),
			zap.String("to", string(sv.Status)))
	}
	return sv, nil
}

// UpdateSurveyStatus applies newStatus. Publishing requires at least one question;
// no other transition is restricted.
func (s *SurveyService) UpdateSurveyStatus(ctx context.Context, actor Actor, id string, newStatus SurveyStatus) (*Survey, error) {
	sv, err := s.ownedSurvey(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	if err := checkStatusChange(sv, newStatus); err != nil {
		return nil, err
	}
	if err := s.setStatus(ctx, sv, newStatus); err != nil {
		return nil, err
	}
	return sv, nil
}

func checkStatusChange(sv *Survey, status SurveyStatus) error {
	if !status.Valid() {
		return NewInvalidError("invalid status")
	}
	if status == StatusActive && len(sv.Questions) == 0 {
		return NewInvalidError(msgNoQuestions)
	}
	return nil
}

func (s *SurveyService) setStatus(ctx context.Context, sv *Survey, status SurveyStatus) error {
	if err := s.store.SetSurveyStatus(ctx, sv.ID, status, s.now()); err != nil {
		return storeError(msgUpdateFailed, err)
	}
	s.log.Info("survey status changed",
		zap.String("survey_id", sv.ID),
		zap.String("from", string(sv.Status)),
		zap.String("to", string(status)))
	sv.Status = status
	return nil
}

// UpdateSurveyFull rewrites the survey fields and reconciles its question set in one transaction.
func (s *SurveyService) UpdateSurveyFull(ctx context.Context, actor Actor, in SurveyReplace) (*Survey, error) {
	sv, err := s.ownedSurvey(ctx, actor, in.ID, false)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, NewInvalidError("Title is required")
	}
	plan := &SurveySync{}
	existing := make(map[string]*Question, len(sv.Questions))
	for _, q := range sv.Questions {
		existing[q.ID] = q
	}
	kept := make(map[string]bool, len(in.Questions))
	final := make([]*Question, 0, len(in.Questions))
	for i, qi := range in.Questions {
		if _, ok := existing[qi.ID]; ok && !kept[qi.ID] {
			q, err := s.buildQuestion(sv.ID, qi, i)
			if err != nil {
				return nil, err
			}
			kept[qi.ID] = true
			plan.Update = append(plan.Update, q)
			final = append(final, q)
			continue
		}
		qi.ID = ""
		q, err := s.buildQuestion(sv.ID, qi, i)
		if err != nil {
			return nil, err
		}
		plan.Create = append(plan.Create, q)
		final = append(final, q)
	}

	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, NewInvalidError("invalid status")
		}
		if *in.Status == StatusActive && len(final) == 0 {
			return nil, NewInvalidError(msgNoQuestions)
		}
		plan.SetStatus = *in.Status != sv.Status
		sv.Status = *in.Status
	}
	if in.Limit != nil {
		if *in.Limit < 0 {
			return nil, NewInvalidError("limit must not be negative")
		}
		sv.Limit = *in.Limit
	}
	if in.Description != nil {
		sv.Description = *in.Description
	}
	if in.Targeting != nil {
		sv.Targeting = in.Targeting
	}
	sv.Title = title
	sv.UpdatedAt = s.now()
	plan.Survey = sv

	if err := s.store.SyncSurvey(ctx, plan); err != nil {
		return nil, storeError(msgUpdateFailed, err)
	}
	sv.Questions = final
	s.log.Info("survey replaced",
		zap.String("survey_id", sv.ID),
		zap.Int("updated", len(plan.Update)),
		zap.Int("created", len(plan.Create)))
	return sv, nil
}

func (s *SurveyService) DeleteSurvey(ctx context.Context, actor Actor, id string) error {
	if _, err := s.ownedSurvey(ctx, actor, id, true); err != nil {
		return err
	}
	if err := s.store.DeleteSurvey(ctx, id); err != nil {
		return storeError("Failed to delete survey", err)
	}
	s.log.Info("survey deleted", zap.String("survey_id", id), zap.String("actor", actor.ID))
	return nil
}

func (s *SurveyService) AddQuestion(ctx context.Context, actor Actor, in NewQuestion) (*Question, error) {
	sv, err := s.ownedSurvey(ctx, actor, in.SurveyID, false)
	if err != nil {
		return nil, err
	}
	next := 0
	for _, q := range sv.Questions {
		if q.Order >= next {
			next = q.Order + 1
		}
	}
	in.ID = ""
	q, err := s.buildQuestion(sv.ID, in.QuestionInput, next)
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertQuestion(ctx, q, s.now()); err != nil {
		return nil, storeError("Failed to add question", err)
	}
	return q, nil
}

func (s *SurveyService) DeleteQuestion(ctx context.Context, actor Actor, questionID, surveyID string) error {
	if !actor.Authenticated() {
		return NewUnauthorizedError(msgUnauthenticated)
	}
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return storeError("Failed to delete question", err)
	}
	if q == nil || (surveyID != "" && q.SurveyID != surveyID) {
		return NewNotFoundError(msgSurveyNotFound)
	}
	if _, err := s.ownedSurvey(ctx, actor, q.SurveyID, false); err != nil {
		return err
	}
	if err := s.store.DeleteQuestion(ctx, q.SurveyID, q.ID, s.now()); err != nil {
		return storeError("Failed to delete question", err)
	}
	return nil
}

func (s *SurveyService) ListMySurveys(ctx context.Context, actor Actor) ([]*Survey, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError(msgUnauthenticated)
	}
	list, err := s.store.ListSurveysByCreator(ctx, actor.ID)
	if err != nil {
		return nil, storeError("Failed to list surveys", err)
	}
	return list, nil
}

func (s *SurveyService) DashboardStats(ctx context.Context, actor Actor) (*DashboardStats, error) {
	list, err := s.ListMySurveys(ctx, actor)
	if err != nil {
		return nil, err
	}
	stats := &DashboardStats{TotalSurveys: len(list)}
	for _, sv := range list {
		stats.TotalResponses += sv.ResponseCount
		if sv.Status == StatusActive {
			stats.ActiveSurveys++
		}
	}
	return stats, nil
}

// ownedSurvey loads a survey the actor may mutate. Missing and foreign surveys are indistinguishable.
func (s *SurveyService) ownedSurvey(ctx context.Context, actor Actor, id string, adminAllowed bool) (*Survey, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError(msgUnauthenticated)
	}
	if strings.TrimSpace(id) == "" {
		return nil, NewNotFoundError(msgSurveyNotFound)
	}
	sv, err := s.store.GetSurvey(ctx, id)
	if err != nil {
		return nil, storeError("Failed to load survey", err)
	}
	if sv == nil {
		return nil, NewNotFoundError(msgSurveyNotFound)
	}
	if sv.CreatorID != actor.ID && !(adminAllowed && actor.IsAdmin()) {
		return nil, NewNotFoundError(msgSurveyNotFound)
	}
	return sv, nil
}

func (s *SurveyService) buildQuestion(surveyID string, in QuestionInput, position int) (*Question, error) {
	q := &Question{
		ID:       in.ID,
		SurveyID: surveyID,
		Text:     strings.TrimSpace(in.Text),
		Type:     in.Type,
		Required: true,
		Options:  append([]string(nil), in.Options...),
		Order:    position,
	}
	if in.Required != nil {
		q.Required = *in.Required
	}
	if in.Order != nil {
		q.Order = *in.Order
	}
	if q.ID == "" {
		q.ID = s.idGen()
	}
	if err := validateQuestion(q); err != nil {
		return nil, err
	}
	return q, nil
}

// storeError keeps ServiceErrors, maps the store's guard sentinels and hides everything else behind msg.
func storeError(msg string, err error) error {
	if _, ok := AsServiceError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrNoQuestions):
		return NewInvalidError(msgNoQuestions)
	case errors.Is(err, ErrSurveyNotFound):
		return NewNotFoundError(msgSurveyNotFound)
	}
	return NewInternalError(msg, err)
}
