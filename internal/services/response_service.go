package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResponseStore persists responses. AdmitResponse must run the duplicate check, the limit check,
// the counter increment, the insert and the completion transition in one transaction, reporting
// rejections as ErrAlreadyResponded, ErrResponseLimit, ErrSurveyClosed or ErrSurveyNotFound.
type ResponseStore interface {
	GetSurvey(ctx context.Context, id string) (*Survey, error)
	AdmitResponse(ctx context.Context, r *Response) (*Admission, error)
	FindResponse(ctx context.Context, surveyID, participantID string) (*Response, error)
	ListResponses(ctx context.Context, surveyID string) ([]*Response, error)
	ListParticipantHistory(ctx context.Context, participantID string) ([]*HistoryEntry, error)
}

// Admission is the store's report of an accepted response.
type Admission struct {
	Count     int
	Completed bool
}

type Submission struct {
	ResponseID string `json:"response_id"`
	Count      int    `json:"count"`
	Completed  bool   `json:"completed"`
}

type ResponseService struct {
	store ResponseStore
	now   func() time.Time
	idGen func() string
	log   *zap.Logger
}

func NewResponseService(store ResponseStore, logger *zap.Logger) *ResponseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		idGen: uuid.NewString,
		log:   logger,
	}
}

// SubmitResponse admits one response from actor. The pre-checks give early answers for the
// common cases; AdmitResponse is authoritative under concurrency.
func (s *ResponseService) SubmitResponse(ctx context.Context, actor Actor, surveyID string, answers Answers) (*Submission, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError("You must be logged in to submit.")
	}
	sv, err := s.store.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, s.submissionFailed(surveyID, actor.ID, err)
	}
	if sv == nil {
		return nil, NewNotFoundError("Survey not found")
	}
	existing, err := s.store.FindResponse(ctx, surveyID, actor.ID)
	if err != nil {
		return nil, s.submissionFailed(surveyID, actor.ID, err)
	}
	if existing != nil {
		return nil, NewConflictError(msgDuplicate)
	}
	// a full survey reports the limit even when it is no longer ACTIVE
	if sv.Full() {
		return nil, NewLimitReachedError(msgLimitReached)
	}
	if !sv.Open() {
		return nil, NewClosedError(msgClosed)
	}
	data, err := ValidateAnswers(sv, answers)
	if err != nil {
		return nil, err
	}

	r := &Response{
		ID:            s.idGen(),
		SurveyID:      surveyID,
		ParticipantID: actor.ID,
		Data:          data,
		CreatedAt:     s.now(),
	}
	adm, err := s.store.AdmitResponse(ctx, r)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyResponded):
		return nil, NewConflictError(msgDuplicate)
	case errors.Is(err, ErrResponseLimit):
		return nil, NewLimitReachedError(msgLimitReached)
	case errors.Is(err, ErrSurveyClosed):
		return nil, NewClosedError(msgClosed)
	case errors.Is(err, ErrSurveyNotFound):
		return nil, NewNotFoundError("Survey not found")
	default:
		return nil, s.submissionFailed(surveyID, actor.ID, err)
	}

	s.log.Info("response admitted",
		zap.String("survey_id", surveyID),
		zap.String("participant_id", actor.ID),
		zap.Int("count", adm.Count),
		zap.Bool("completed", adm.Completed))
	return &Submission{ResponseID: r.ID, Count: adm.Count, Completed: adm.Completed}, nil
}

func (s *ResponseService) submissionFailed(surveyID, participantID string, err error) error {
	s.log.Error("submit response failed",
		zap.String("survey_id", surveyID),
		zap.String("participant_id", participantID),
		zap.Error(err))
	return NewInternalError(msgSubmissionFailed, err)
}

// GetSurveyResponses lists every response of a survey for its creator or an admin.
func (s *ResponseService) GetSurveyResponses(ctx context.Context, actor Actor, surveyID string) ([]*Response, error) {
	if _, err := s.readableSurvey(ctx, actor, surveyID); err != nil {
		return nil, err
	}
	rs, err := s.store.ListResponses(ctx, surveyID)
	if err != nil {
		return nil, storeError("Failed to fetch responses", err)
	}
	return rs, nil
}

// CheckResponse returns the participant's response to a survey, or nil.
func (s *ResponseService) CheckResponse(ctx context.Context, surveyID, participantID string) (*Response, error) {
	r, err := s.store.FindResponse(ctx, surveyID, participantID)
	if err != nil {
		return nil, storeError("Failed to check response", err)
	}
	return r, nil
}

func (s *ResponseService) ParticipantHistory(ctx context.Context, actor Actor) ([]*HistoryEntry, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError("Unauthorized")
	}
	h, err := s.store.ListParticipantHistory(ctx, actor.ID)
	if err != nil {
		return nil, storeError("Failed to fetch history", err)
	}
	return h, nil
}

// readableSurvey loads a survey whose responses the actor may read: its creator or an admin.
func (s *ResponseService) readableSurvey(ctx context.Context, actor Actor, surveyID string) (*Survey, error) {
	return loadReadableSurvey(ctx, s.store.GetSurvey, actor, surveyID)
}

func loadReadableSurvey(ctx context.Context, get func(context.Context, string) (*Survey, error), actor Actor, surveyID string) (*Survey, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError(msgUnauthenticated)
	}
	sv, err := get(ctx, surveyID)
	if err != nil {
		return nil, storeError("Failed to load survey", err)
	}
	if sv == nil || (sv.CreatorID != actor.ID && !actor.IsAdmin()) {
		return nil, NewNotFoundError(msgSurveyNotFound)
	}
	return sv, nil
}
