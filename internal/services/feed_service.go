package services

import (
	"context"
	"time"
)

type FeedStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	// ListUnansweredActiveSurveys returns ACTIVE surveys without a response from participantID, newest first.
	ListUnansweredActiveSurveys(ctx context.Context, participantID string) ([]*Survey, error)
}

// FeedService computes the surveys a participant is invited to answer.
type FeedService struct {
	store FeedStore
	now   func() time.Time
}

func NewFeedService(store FeedStore) *FeedService {
	return &FeedService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (s *FeedService) EligibleSurveys(ctx context.Context, actor Actor) ([]*Survey, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError(msgUnauthenticated)
	}
	u, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, storeError("Failed to load profile", err)
	}
	if u == nil {
		return nil, NewUnauthorizedError(msgUnauthenticated)
	}
	list, err := s.store.ListUnansweredActiveSurveys(ctx, actor.ID)
	if err != nil {
		return nil, storeError("Failed to list surveys", err)
	}
	now := s.now()
	out := make([]*Survey, 0, len(list))
	for _, sv := range list {
		if Visible(sv, false, u.Demographics, now) {
			out = append(out, sv)
		}
	}
	return out, nil
}
