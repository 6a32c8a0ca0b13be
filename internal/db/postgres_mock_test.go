package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Canvass/internal/services"
)

const (
	stateQuery    = `SELECT status, response_limit, response_count FROM surveys WHERE id = $1`
	existingQuery = `SELECT COUNT(1) FROM responses WHERE survey_id = $1 AND participant_id = $2`
	insertQuery   = `INSERT INTO responses (id, survey_id, participant_id, data, created_at) VALUES ($1, $2, $3, $4, $5)`
)

var incrementPattern = `(?s)UPDATE surveys\s+SET response_count = response_count \+ 1,.*WHERE id = \$1 AND status = 'ACTIVE'`

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	st, err := NewStore(sqlx.NewDb(conn, DriverPostgres), nil)
	require.NoError(t, err)
	return st, mock
}

func stateRows(status string, limit, count int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"status", "response_limit", "response_count"}).AddRow(status, limit, count)
}

func mockResponse() *services.Response {
	return &services.Response{ID: "r1", SurveyID: "S1", ParticipantID: "p1", Data: services.Answers{"q1": "A"}, CreatedAt: t0}
}

func TestPostgresAdmitResponseStatementOrder(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(stateQuery)).WithArgs("S1").WillReturnRows(stateRows("ACTIVE", 2, 1))
	mock.ExpectQuery(regexp.QuoteMeta(existingQuery)).WithArgs("S1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(incrementPattern).WithArgs("S1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WithArgs("r1", "S1", "p1", `{"q1":"A"}`, "2025-09-18T10:00:00.000000000Z").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(stateQuery)).WithArgs("S1").WillReturnRows(stateRows("COMPLETED", 2, 2))
	mock.ExpectCommit()

	adm, err := st.AdmitResponse(context.Background(), mockResponse())
	require.NoError(t, err)
	assert.Equal(t, &services.Admission{Count: 2, Completed: true}, adm)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdmitResponseUniqueViolationRollsBack(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(stateQuery)).WithArgs("S1").WillReturnRows(stateRows("ACTIVE", 0, 4))
	mock.ExpectQuery(regexp.QuoteMeta(existingQuery)).WithArgs("S1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(incrementPattern).WithArgs("S1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertQuery)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := st.AdmitResponse(context.Background(), mockResponse())
	assert.ErrorIs(t, err, services.ErrAlreadyResponded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdmitResponseLostRace(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(stateQuery)).WithArgs("S1").WillReturnRows(stateRows("ACTIVE", 2, 1))
	mock.ExpectQuery(regexp.QuoteMeta(existingQuery)).WithArgs("S1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(incrementPattern).WithArgs("S1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(stateQuery)).WithArgs("S1").WillReturnRows(stateRows("COMPLETED", 2, 2))
	mock.ExpectRollback()

	_, err := st.AdmitResponse(context.Background(), mockResponse())
	assert.ErrorIs(t, err, services.ErrResponseLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAdmitResponseDuplicateBeforeLimit(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(stateQuery)).WithArgs("S1").WillReturnRows(stateRows("COMPLETED", 1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(existingQuery)).WithArgs("S1", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := st.AdmitResponse(context.Background(), mockResponse())
	assert.ErrorIs(t, err, services.ErrAlreadyResponded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetSurveyStatusMissing(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE surveys SET status = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs("ACTIVE", "2025-09-18T10:00:00.000000000Z", "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.SetSurveyStatus(context.Background(), "nope", services.StatusActive, t0)
	assert.ErrorIs(t, err, services.ErrSurveyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPublishCountsQuestionsInTx(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE surveys SET status = $1, updated_at = $2 WHERE id = $3`)).
		WithArgs("ACTIVE", "2025-09-18T10:00:00.000000000Z", "S1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, (SELECT COUNT(1) FROM questions WHERE survey_id = surveys.id) AS questions FROM surveys WHERE id = $1`)).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "questions"}).AddRow("ACTIVE", 0))
	mock.ExpectRollback()

	err := st.SetSurveyStatus(context.Background(), "S1", services.StatusActive, t0)
	assert.ErrorIs(t, err, services.ErrNoQuestions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddUserUniqueViolation(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (id, name, email, password_hash, role, demographics, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := st.AddUser(context.Background(), &services.User{ID: "u1", Name: "A", Email: "a@example.com", Role: services.RoleSurveyor, CreatedAt: t0})
	assert.ErrorIs(t, err, services.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}
