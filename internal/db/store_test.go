package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Canvass/internal/services"
)

var t0 = time.Date(2025, 9, 18, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	conn, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "data", "canvass.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	st, err := NewStore(conn, nil)
	require.NoError(t, err)
	_, err = RunMigrations(ctx, conn, "", nil)
	require.NoError(t, err)
	return st
}

func addUser(t *testing.T, st *Store, id string, role services.Role, d services.Demographics) {
	t.Helper()
	require.NoError(t, st.AddUser(context.Background(), &services.User{
		ID:           id,
		Name:         "User " + id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		Demographics: d,
		CreatedAt:    t0,
	}))
}

func addSurvey(t *testing.T, st *Store, id, creator string, limit int, status services.SurveyStatus) *services.Survey {
	t.Helper()
	sv := &services.Survey{
		ID:        id,
		CreatorID: creator,
		Title:     "Survey " + id,
		Status:    status,
		Limit:     limit,
		CreatedAt: t0,
		UpdatedAt: t0,
		Questions: []*services.Question{
			{ID: id + "-q1", SurveyID: id, Text: "Pick", Type: services.QuestionSingleSelect, Required: true, Options: []string{"A", "B"}, Order: 0},
			{ID: id + "-q2", SurveyID: id, Text: "Why", Type: services.QuestionText, Order: 1},
		},
	}
	require.NoError(t, st.CreateSurvey(context.Background(), sv))
	return sv
}

func TestMigrationsAreRecorded(t *testing.T) {
	st := newTestStore(t)
	n, err := RunMigrations(context.Background(), st.DB(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second run should apply nothing")
}

func TestUsersRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "p1", services.RoleParticipant, services.Demographics{"gender": "FEMALE", "annualIncome": 42000.0})
	addUser(t, st, "s1", services.RoleSurveyor, nil)

	u, err := st.FindUserByEmail(ctx, "p1@example.com")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "p1", u.ID)
	assert.Equal(t, "FEMALE", u.Demographics.Gender())
	assert.True(t, u.CreatedAt.Equal(t0))

	missing, err := st.GetUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = st.AddUser(ctx, &services.User{ID: "dup", Name: "x", Email: "p1@example.com", PasswordHash: "h", Role: services.RoleSurveyor, CreatedAt: t0})
	assert.ErrorIs(t, err, services.ErrDuplicateKey)
	assert.ErrorIs(t, st.UpdateUserProfile(ctx, "s1", "Renamed", "p1@example.com"), services.ErrDuplicateKey)

	require.NoError(t, st.UpdatePasswordHash(ctx, "s1", "new-hash"))
	s1, err := st.GetUser(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", s1.PasswordHash)
	assert.Nil(t, s1.Demographics)

	list, err := st.ListUsersByRole(ctx, services.RoleParticipant)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)
}

func TestSurveyRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	minAge := 18
	sv := addSurvey(t, st, "S1", "s1", 3, services.StatusDraft)
	sv.Targeting = &services.Targeting{Gender: "MALE", MinAge: &minAge}
	sv.Title = "Renamed"
	sv.UpdatedAt = t0.Add(time.Hour)
	require.NoError(t, st.UpdateSurvey(ctx, sv, false))

	got, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, services.StatusDraft, got.Status)
	assert.Equal(t, 3, got.Limit)
	require.NotNil(t, got.Targeting)
	assert.Equal(t, 18, *got.Targeting.MinAge)
	assert.True(t, got.UpdatedAt.Equal(t0.Add(time.Hour)))
	require.Len(t, got.Questions, 2)
	assert.Equal(t, []string{"A", "B"}, got.Questions[0].Options)
	assert.True(t, got.Questions[0].Required)
	assert.False(t, got.Questions[1].Required)
	assert.Nil(t, got.Questions[1].Options)

	none, err := st.GetSurvey(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)

	assert.ErrorIs(t, st.SetSurveyStatus(ctx, "missing", services.StatusActive, t0), services.ErrSurveyNotFound)
}

func TestDefinitionEditsMoveUpdatedAt(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	addSurvey(t, st, "S1", "s1", 0, services.StatusActive)

	at1 := t0.Add(time.Minute)
	require.NoError(t, st.InsertQuestion(ctx, &services.Question{ID: "S1-q3", SurveyID: "S1", Text: "More", Type: services.QuestionLongText, Order: 2}, at1))
	got, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(at1))
	assert.Len(t, got.Questions, 3)

	at2 := t0.Add(2 * time.Minute)
	require.NoError(t, st.DeleteQuestion(ctx, "S1", "S1-q1", at2))
	got, err = st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(at2))
	assert.Len(t, got.Questions, 2)

	at3 := t0.Add(3 * time.Minute)
	require.NoError(t, st.SetSurveyStatus(ctx, "S1", services.StatusCompleted, at3))
	got, err = st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, services.StatusCompleted, got.Status)
	assert.True(t, got.UpdatedAt.Equal(at3))

	q, err := st.GetQuestion(ctx, "S1-q3")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "S1", q.SurveyID)
}

func TestSyncSurvey(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	sv := addSurvey(t, st, "S1", "s1", 0, services.StatusDraft)

	sv.Title = "Synced"
	sv.Status = services.StatusActive
	sv.UpdatedAt = t0.Add(time.Hour)
	plan := &services.SurveySync{
		Survey:    sv,
		SetStatus: true,
		Update:    []*services.Question{{ID: "S1-q2", SurveyID: "S1", Text: "Why not", Type: services.QuestionLongText, Required: true, Order: 0}},
		Create:    []*services.Question{{ID: "S1-q9", SurveyID: "S1", Text: "New", Type: services.QuestionMultiSelect, Options: []string{"x"}, Order: 1}},
	}
	require.NoError(t, st.SyncSurvey(ctx, plan))

	got, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Synced", got.Title)
	assert.Equal(t, services.StatusActive, got.Status)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, "S1-q2", got.Questions[0].ID)
	assert.Equal(t, "Why not", got.Questions[0].Text)
	assert.Equal(t, "S1-q9", got.Questions[1].ID)
}

func TestSyncSurveyRollsBack(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	sv := addSurvey(t, st, "S1", "s1", 0, services.StatusDraft)
	addSurvey(t, st, "S2", "s1", 0, services.StatusDraft)

	sv.Title = "Should not stick"
	plan := &services.SurveySync{
		Survey: sv,
		// primary key clash with a question of S2
		Create: []*services.Question{{ID: "S2-q1", SurveyID: "S1", Text: "clash", Type: services.QuestionText}},
	}
	require.Error(t, st.SyncSurvey(ctx, plan))

	got, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Survey S1", got.Title)
	assert.Len(t, got.Questions, 2)
}

func TestSyncSurveyDropsQuestionsAddedMeanwhile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	sv := addSurvey(t, st, "S1", "s1", 0, services.StatusDraft)

	// another editor appends a question after sv was read
	require.NoError(t, st.InsertQuestion(ctx, &services.Question{ID: "late", SurveyID: "S1", Text: "Late", Type: services.QuestionText, Order: 2}, t0))

	sv.UpdatedAt = t0.Add(time.Hour)
	require.NoError(t, st.SyncSurvey(ctx, &services.SurveySync{
		Survey: sv,
		Update: []*services.Question{{ID: "S1-q1", SurveyID: "S1", Text: "Pick", Type: services.QuestionSingleSelect, Options: []string{"A"}, Order: 0}},
	}))

	got, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "S1-q1", got.Questions[0].ID)
	q, err := st.GetQuestion(ctx, "late")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestSyncSurveyRestoresQuestionDeletedMeanwhile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	sv := addSurvey(t, st, "S1", "s1", 0, services.StatusDraft)
	require.NoError(t, st.DeleteQuestion(ctx, "S1", "S1-q2", t0))

	require.NoError(t, st.SyncSurvey(ctx, &services.SurveySync{
		Survey: sv,
		Update: []*services.Question{
			{ID: "S1-q1", SurveyID: "S1", Text: "Pick", Type: services.QuestionSingleSelect, Options: []string{"A"}, Order: 0},
			{ID: "S1-q2", SurveyID: "S1", Text: "Why", Type: services.QuestionText, Order: 1},
		},
	}))

	got, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, got.Questions, 2)
	assert.Equal(t, "S1-q2", got.Questions[1].ID)
}

func TestPublishGuardUsesStoredQuestions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	sv := addSurvey(t, st, "S1", "s1", 0, services.StatusDraft)

	// the snapshot still lists both questions, the table no longer does
	require.NoError(t, st.DeleteQuestion(ctx, "S1", "S1-q1", t0))
	require.NoError(t, st.DeleteQuestion(ctx, "S1", "S1-q2", t0))

	assert.ErrorIs(t, st.SetSurveyStatus(ctx, "S1", services.StatusActive, t0.Add(time.Hour)), services.ErrNoQuestions)

	sv.Title = "Published"
	sv.Status = services.StatusActive
	assert.ErrorIs(t, st.UpdateSurvey(ctx, sv, true), services.ErrNoQuestions)

	assert.ErrorIs(t, st.SyncSurvey(ctx, &services.SurveySync{Survey: sv, SetStatus: true}), services.ErrNoQuestions)

	got, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, services.StatusDraft, got.Status)
	assert.Equal(t, "Survey S1", got.Title)

	// completing needs no questions
	require.NoError(t, st.SetSurveyStatus(ctx, "S1", services.StatusCompleted, t0.Add(time.Hour)))
}

func TestUpdateSurveyWritesFieldsAndStatusTogether(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	sv := addSurvey(t, st, "S1", "s1", 0, services.StatusDraft)

	sv.Title = "Live"
	sv.Limit = 10
	sv.Status = services.StatusActive
	sv.UpdatedAt = t0.Add(time.Hour)
	require.NoError(t, st.UpdateSurvey(ctx, sv, true))

	got, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Live", got.Title)
	assert.Equal(t, 10, got.Limit)
	assert.Equal(t, services.StatusActive, got.Status)

	sv.Title = "Ignored status"
	sv.Status = services.StatusCompleted
	require.NoError(t, st.UpdateSurvey(ctx, sv, false))
	got, err = st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, "Ignored status", got.Title)
	assert.Equal(t, services.StatusActive, got.Status)
}

func TestDeleteSurveyCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	addUser(t, st, "p1", services.RoleParticipant, nil)
	addSurvey(t, st, "S1", "s1", 0, services.StatusActive)
	_, err := st.AdmitResponse(ctx, &services.Response{ID: "r1", SurveyID: "S1", ParticipantID: "p1", Data: services.Answers{"S1-q1": "A"}, CreatedAt: t0})
	require.NoError(t, err)

	require.NoError(t, st.DeleteSurvey(ctx, "S1"))
	sv, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.Nil(t, sv)
	rs, err := st.ListResponses(ctx, "S1")
	require.NoError(t, err)
	assert.Empty(t, rs)
	q, err := st.GetQuestion(ctx, "S1-q1")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestListings(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	addUser(t, st, "p1", services.RoleParticipant, nil)
	addSurvey(t, st, "S1", "s1", 0, services.StatusActive)
	addSurvey(t, st, "S0", "s1", 0, services.StatusActive)
	addSurvey(t, st, "S2", "s1", 0, services.StatusDraft)

	mine, err := st.ListSurveysByCreator(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	_, err = st.AdmitResponse(ctx, &services.Response{ID: "r1", SurveyID: "S1", ParticipantID: "p1", Data: services.Answers{"S1-q1": "B", "S1-q2": "fine"}, CreatedAt: t0.Add(time.Minute)})
	require.NoError(t, err)

	feed, err := st.ListUnansweredActiveSurveys(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "S0", feed[0].ID)
	assert.Len(t, feed[0].Questions, 2)

	history, err := st.ListParticipantHistory(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "S1", history[0].Survey.ID)
	assert.Len(t, history[0].Survey.Questions, 2)
	assert.Equal(t, "B", history[0].Response.Data["S1-q1"])

	found, err := st.FindResponse(ctx, "S1", "p1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "r1", found.ID)
	assert.True(t, found.CreatedAt.Equal(t0.Add(time.Minute)))
}

func TestAdmitResponseRules(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	addUser(t, st, "s1", services.RoleSurveyor, nil)
	for i := 1; i <= 3; i++ {
		addUser(t, st, fmt.Sprintf("p%d", i), services.RoleParticipant, nil)
	}
	addSurvey(t, st, "S1", "s1", 2, services.StatusActive)
	addSurvey(t, st, "D1", "s1", 0, services.StatusDraft)

	answer := func(id, survey, participant string) (*services.Admission, error) {
		return st.AdmitResponse(ctx, &services.Response{ID: id, SurveyID: survey, ParticipantID: participant, Data: services.Answers{survey + "-q1": "A"}, CreatedAt: t0})
	}

	adm, err := answer("r1", "S1", "p1")
	require.NoError(t, err)
	assert.Equal(t, &services.Admission{Count: 1, Completed: false}, adm)

	_, err = answer("r2", "S1", "p1")
	assert.ErrorIs(t, err, services.ErrAlreadyResponded)

	adm, err = answer("r3", "S1", "p2")
	require.NoError(t, err)
	assert.Equal(t, &services.Admission{Count: 2, Completed: true}, adm)

	_, err = answer("r4", "S1", "p3")
	assert.ErrorIs(t, err, services.ErrResponseLimit)

	_, err = answer("r5", "D1", "p3")
	assert.ErrorIs(t, err, services.ErrSurveyClosed)

	_, err = answer("r6", "missing", "p3")
	assert.ErrorIs(t, err, services.ErrSurveyNotFound)

	sv, err := st.GetSurvey(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 2, sv.ResponseCount)
	assert.Equal(t, services.StatusCompleted, sv.Status)
	assert.True(t, sv.UpdatedAt.Equal(t0), "admission must not move updated_at")
}

func TestIsUniqueViolationFallback(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", fmt.Errorf("UNIQUE constraint failed: users.email"))))
	assert.False(t, isUniqueViolation(fmt.Errorf("disk I/O error")))
}
