package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type AnalyticsStore interface {
	GetSurvey(ctx context.Context, id string) (*Survey, error)
	ListResponses(ctx context.Context, surveyID string) ([]*Response, error)
}

// SummaryCache memoizes summaries. A miss is (nil, false, nil).
type SummaryCache interface {
	GetSummary(ctx context.Context, key string) (*SurveySummary, bool, error)
	SetSummary(ctx context.Context, key string, summary *SurveySummary) error
}

type SurveySummary struct {
	SurveyID      string            `json:"survey_id"`
	Title         string            `json:"title"`
	Status        SurveyStatus      `json:"status"`
	Limit         int               `json:"limit"`
	ResponseCount int               `json:"response_count"`
	Questions     []QuestionSummary `json:"questions"`
}

type AnalyticsService struct {
	store AnalyticsStore
	cache SummaryCache
	log   *zap.Logger
}

// NewAnalyticsService builds the read side. cache may be nil.
func NewAnalyticsService(store AnalyticsStore, cache SummaryCache, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{store: store, cache: cache, log: logger}
}

// SummaryKey identifies a summary by survey, accepted responses and definition revision.
// Responses are append-only and every definition edit moves UpdatedAt, so the key changes
// whenever the summary would.
func SummaryKey(sv *Survey) string {
	return fmt.Sprintf("%s:%d:%d", sv.ID, sv.ResponseCount, sv.UpdatedAt.UnixNano())
}

func (s *AnalyticsService) Summary(ctx context.Context, actor Actor, surveyID string) (*SurveySummary, error) {
	sv, err := loadReadableSurvey(ctx, s.store.GetSurvey, actor, surveyID)
	if err != nil {
		return nil, err
	}
	key := SummaryKey(sv)
	if s.cache != nil {
		cached, ok, err := s.cache.GetSummary(ctx, key)
		if err != nil {
			s.log.Warn("summary cache read failed", zap.String("survey_id", surveyID), zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}
	rs, err := s.store.ListResponses(ctx, surveyID)
	if err != nil {
		return nil, storeError("Failed to fetch responses", err)
	}
	summary := &SurveySummary{
		SurveyID:      sv.ID,
		Title:         sv.Title,
		Status:        sv.Status,
		Limit:         sv.Limit,
		ResponseCount: len(rs),
		Questions:     Aggregate(sv.Questions, rs),
	}
	if s.cache != nil {
		if err := s.cache.SetSummary(ctx, key, summary); err != nil {
			s.log.Warn("summary cache write failed", zap.String("survey_id", surveyID), zap.Error(err))
		}
	}
	return summary, nil
}
