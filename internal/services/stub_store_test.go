package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// stubStore is an in-memory store covering every service store interface.
// AdmitResponse holds the mutex for its whole check-and-insert sequence.
type stubStore struct {
	mu        sync.Mutex
	surveys   map[string]*Survey
	responses map[string][]*Response
	users     map[string]*User

	syncErr   error
	statusErr error
	admitErr  error
	getErr    error
}

func newStubStore() *stubStore {
	return &stubStore{
		surveys:   map[string]*Survey{},
		responses: map[string][]*Response{},
		users:     map[string]*User{},
	}
}

func copySurvey(sv *Survey) *Survey {
	out := *sv
	out.Questions = make([]*Question, 0, len(sv.Questions))
	for _, q := range sv.Questions {
		qc := *q
		qc.Options = append([]string(nil), q.Options...)
		out.Questions = append(out.Questions, &qc)
	}
	sort.SliceStable(out.Questions, func(i, j int) bool { return out.Questions[i].Order < out.Questions[j].Order })
	if sv.Targeting != nil {
		t := *sv.Targeting
		out.Targeting = &t
	}
	return &out
}

func (s *stubStore) CreateSurvey(_ context.Context, sv *Survey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys[sv.ID] = copySurvey(sv)
	return nil
}

func (s *stubStore) GetSurvey(_ context.Context, id string) (*Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	sv, ok := s.surveys[id]
	if !ok {
		return nil, nil
	}
	return copySurvey(sv), nil
}

func (s *stubStore) UpdateSurvey(_ context.Context, sv *Survey, withStatus bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.surveys[sv.ID]
	if !ok {
		return ErrSurveyNotFound
	}
	if withStatus && sv.Status == StatusActive && len(cur.Questions) == 0 {
		return ErrNoQuestions
	}
	if s.statusErr != nil && withStatus {
		return s.statusErr
	}
	cur.Title, cur.Description, cur.Limit, cur.UpdatedAt = sv.Title, sv.Description, sv.Limit, sv.UpdatedAt
	cur.Targeting = sv.Targeting
	if withStatus {
		cur.Status = sv.Status
	}
	return nil
}

func (s *stubStore) SetSurveyStatus(_ context.Context, id string, status SurveyStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.surveys[id]
	if !ok {
		return ErrSurveyNotFound
	}
	if status == StatusActive && len(cur.Questions) == 0 {
		return ErrNoQuestions
	}
	cur.Status, cur.UpdatedAt = status, at
	return nil
}

// SyncSurvey leaves exactly plan.Update plus plan.Create, like the sql store.
func (s *stubStore) SyncSurvey(_ context.Context, plan *SurveySync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncErr != nil {
		return s.syncErr
	}
	cur, ok := s.surveys[plan.Survey.ID]
	if !ok {
		return ErrSurveyNotFound
	}
	next := copySurvey(cur)
	next.Title, next.Description, next.Limit = plan.Survey.Title, plan.Survey.Description, plan.Survey.Limit
	next.Targeting, next.UpdatedAt = plan.Survey.Targeting, plan.Survey.UpdatedAt
	if plan.SetStatus {
		next.Status = plan.Survey.Status
	}
	qs := []*Question{}
	for _, q := range append(append([]*Question{}, plan.Update...), plan.Create...) {
		qc := *q
		qs = append(qs, &qc)
	}
	if next.Status == StatusActive && len(qs) == 0 {
		return ErrNoQuestions
	}
	next.Questions = qs
	s.surveys[next.ID] = copySurvey(next)
	return nil
}

func (s *stubStore) DeleteSurvey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.surveys, id)
	delete(s.responses, id)
	return nil
}

func (s *stubStore) InsertQuestion(_ context.Context, q *Question, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.surveys[q.SurveyID]
	if !ok {
		return errors.New("missing survey")
	}
	qc := *q
	sv.Questions = append(sv.Questions, &qc)
	sv.UpdatedAt = at
	return nil
}

func (s *stubStore) GetQuestion(_ context.Context, id string) (*Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sv := range s.surveys {
		for _, q := range sv.Questions {
			if q.ID == id {
				qc := *q
				return &qc, nil
			}
		}
	}
	return nil, nil
}

func (s *stubStore) DeleteQuestion(_ context.Context, surveyID, questionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.surveys[surveyID]
	if !ok {
		return errors.New("missing survey")
	}
	kept := sv.Questions[:0]
	for _, q := range sv.Questions {
		if q.ID != questionID {
			kept = append(kept, q)
		}
	}
	sv.Questions = kept
	sv.UpdatedAt = at
	return nil
}

func (s *stubStore) ListSurveysByCreator(_ context.Context, creatorID string) ([]*Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*Survey{}
	for _, sv := range s.surveys {
		if sv.CreatorID == creatorID {
			out = append(out, copySurvey(sv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *stubStore) AdmitResponse(_ context.Context, r *Response) (*Admission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.admitErr != nil {
		return nil, s.admitErr
	}
	sv, ok := s.surveys[r.SurveyID]
	if !ok {
		return nil, ErrSurveyNotFound
	}
	for _, existing := range s.responses[r.SurveyID] {
		if existing.ParticipantID == r.ParticipantID {
			return nil, ErrAlreadyResponded
		}
	}
	if sv.Limit > 0 && sv.ResponseCount >= sv.Limit {
		return nil, ErrResponseLimit
	}
	if sv.Status != StatusActive {
		return nil, ErrSurveyClosed
	}
	rc := *r
	s.responses[r.SurveyID] = append(s.responses[r.SurveyID], &rc)
	sv.ResponseCount++
	completed := sv.Limit > 0 && sv.ResponseCount == sv.Limit
	if completed {
		sv.Status = StatusCompleted
	}
	return &Admission{Count: sv.ResponseCount, Completed: completed}, nil
}

func (s *stubStore) FindResponse(_ context.Context, surveyID, participantID string) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.responses[surveyID] {
		if r.ParticipantID == participantID {
			rc := *r
			return &rc, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ListResponses(_ context.Context, surveyID string) ([]*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*Response{}
	for _, r := range s.responses[surveyID] {
		rc := *r
		out = append(out, &rc)
	}
	return out, nil
}

func (s *stubStore) ListParticipantHistory(_ context.Context, participantID string) ([]*HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*HistoryEntry{}
	for sid, rs := range s.responses {
		for _, r := range rs {
			if r.ParticipantID == participantID {
				rc := *r
				out = append(out, &HistoryEntry{Response: &rc, Survey: copySurvey(s.surveys[sid])})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Response.CreatedAt.After(out[j].Response.CreatedAt) })
	return out, nil
}

func (s *stubStore) ListUnansweredActiveSurveys(_ context.Context, participantID string) ([]*Survey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*Survey{}
	for id, sv := range s.surveys {
		if sv.Status != StatusActive {
			continue
		}
		answered := false
		for _, r := range s.responses[id] {
			if r.ParticipantID == participantID {
				answered = true
			}
		}
		if !answered {
			out = append(out, copySurvey(sv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *stubStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			uc := *u
			return &uc, nil
		}
	}
	return nil, nil
}

func (s *stubStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		uc := *u
		return &uc, nil
	}
	return nil, nil
}

func (s *stubStore) AddUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateKey
		}
	}
	uc := *u
	s.users[u.ID] = &uc
	return nil
}

func (s *stubStore) UpdateUserProfile(_ context.Context, id, name, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errors.New("missing user")
	}
	u.Name, u.Email = name, email
	return nil
}

func (s *stubStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return errors.New("missing user")
	}
	u.PasswordHash = hash
	return nil
}

func (s *stubStore) ListUsersByRole(_ context.Context, role Role) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*User{}
	for _, u := range s.users {
		if u.Role == role {
			uc := *u
			out = append(out, &uc)
		}
	}
	return out, nil
}

var (
	_ SurveyStore    = (*stubStore)(nil)
	_ ResponseStore  = (*stubStore)(nil)
	_ AnalyticsStore = (*stubStore)(nil)
	_ FeedStore      = (*stubStore)(nil)
	_ AuthStore      = (*stubStore)(nil)
	_ AdminStore     = (*stubStore)(nil)
	_ ExportStore    = (*stubStore)(nil)
)

// seedSurvey stores an ACTIVE survey owned by creator with the given questions.
func (s *stubStore) seedSurvey(id, creator string, limit int, questions ...*Question) *Survey {
	sv := &Survey{
		ID:        id,
		CreatorID: creator,
		Title:     "Survey " + id,
		Status:    StatusActive,
		Limit:     limit,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, q := range questions {
		q.SurveyID = id
		q.Order = i
		sv.Questions = append(sv.Questions, q)
	}
	s.surveys[id] = copySurvey(sv)
	return sv
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%03d", prefix, n)
	}
}
