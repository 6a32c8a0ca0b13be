package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/soaringjerry/Canvass/internal/services"
)

type responseRow struct {
	ID            string         `db:"id"`
	SurveyID      string         `db:"survey_id"`
	ParticipantID string         `db:"participant_id"`
	Data          sql.NullString `db:"data"`
	CreatedAt     string         `db:"created_at"`
}

const responseColumns = `id, survey_id, participant_id, data, created_at`

// admitIncrement claims one slot. It matches no row once the survey is closed or full, so
// concurrent transactions cannot push response_count past response_limit.
const admitIncrement = `UPDATE surveys
SET response_count = response_count + 1,
    status = CASE WHEN response_limit > 0 AND response_count + 1 >= response_limit THEN 'COMPLETED' ELSE status END
WHERE id = ? AND status = 'ACTIVE' AND (response_limit = 0 OR response_count < response_limit)`

type admissionState struct {
	Status string `db:"status"`
	Limit  int    `db:"response_limit"`
	Count  int    `db:"response_count"`
}

func (s *Store) toResponse(r responseRow) *services.Response {
	resp := &services.Response{
		ID:            r.ID,
		SurveyID:      r.SurveyID,
		ParticipantID: r.ParticipantID,
		CreatedAt:     parseTime(r.CreatedAt),
	}
	s.decodeJSON(r.Data, &resp.Data, "responses.data")
	if resp.Data == nil {
		resp.Data = services.Answers{}
	}
	return resp
}

// AdmitResponse stores r if the participant has not answered yet and the survey is ACTIVE
// with room left. The counter, the completion transition and the insert commit together.
func (s *Store) AdmitResponse(ctx context.Context, r *services.Response) (*services.Admission, error) {
	data, err := encodeJSON(r.Data)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	if !data.Valid {
		data = sql.NullString{String: "{}", Valid: true}
	}
	var adm *services.Admission
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		state, err := s.admissionState(ctx, tx, r.SurveyID)
		if err != nil {
			return err
		}
		var existing int
		if err := sqlx.GetContext(ctx, tx, &existing,
			s.rebind(`SELECT COUNT(1) FROM responses WHERE survey_id = ? AND participant_id = ?`),
			r.SurveyID, r.ParticipantID); err != nil {
			return fmt.Errorf("check existing response: %w", err)
		}
		if existing > 0 {
			return services.ErrAlreadyResponded
		}
		if err := state.rejection(); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, s.rebind(admitIncrement), r.SurveyID)
		if err != nil {
			return fmt.Errorf("claim response slot: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim response slot: %w", err)
		}
		if n == 0 {
			// another transaction took the last slot or closed the survey after our read
			state, err := s.admissionState(ctx, tx, r.SurveyID)
			if err != nil {
				return err
			}
			if err := state.rejection(); err != nil {
				return err
			}
			return services.ErrSurveyClosed
		}

		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO responses (`+responseColumns+`) VALUES (?, ?, ?, ?, ?)`),
			r.ID, r.SurveyID, r.ParticipantID, data, formatTime(r.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return services.ErrAlreadyResponded
			}
			return fmt.Errorf("insert response: %w", err)
		}

		after, err := s.admissionState(ctx, tx, r.SurveyID)
		if err != nil {
			return err
		}
		adm = &services.Admission{
			Count:     after.Count,
			Completed: state.Status == string(services.StatusActive) && after.Status == string(services.StatusCompleted),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adm, nil
}

func (s *Store) admissionState(ctx context.Context, q sqlx.QueryerContext, surveyID string) (*admissionState, error) {
	var st admissionState
	err := sqlx.GetContext(ctx, q, &st,
		s.rebind(`SELECT status, response_limit, response_count FROM surveys WHERE id = ?`), surveyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.ErrSurveyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read survey state: %w", err)
	}
	return &st, nil
}

func (st *admissionState) rejection() error {
	if st.Limit > 0 && st.Count >= st.Limit {
		return services.ErrResponseLimit
	}
	if st.Status != string(services.StatusActive) {
		return services.ErrSurveyClosed
	}
	return nil
}

func (s *Store) FindResponse(ctx context.Context, surveyID, participantID string) (*services.Response, error) {
	var row responseRow
	err := sqlx.GetContext(ctx, s.db, &row,
		s.rebind(`SELECT `+responseColumns+` FROM responses WHERE survey_id = ? AND participant_id = ?`),
		surveyID, participantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find response: %w", err)
	}
	return s.toResponse(row), nil
}

// ListResponses returns a survey's responses in submission order.
func (s *Store) ListResponses(ctx context.Context, surveyID string) ([]*services.Response, error) {
	var rows []responseRow
	if err := sqlx.SelectContext(ctx, s.db, &rows,
		s.rebind(`SELECT `+responseColumns+` FROM responses WHERE survey_id = ? ORDER BY created_at, id`), surveyID); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	out := make([]*services.Response, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.toResponse(r))
	}
	return out, nil
}

// ListParticipantHistory returns the participant's responses, newest first, each with its survey.
func (s *Store) ListParticipantHistory(ctx context.Context, participantID string) ([]*services.HistoryEntry, error) {
	var rows []responseRow
	if err := sqlx.SelectContext(ctx, s.db, &rows,
		s.rebind(`SELECT `+responseColumns+` FROM responses WHERE participant_id = ? ORDER BY created_at DESC, id`), participantID); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if len(rows) == 0 {
		return []*services.HistoryEntry{}, nil
	}
	ids := make([]string, 0, len(rows))
	seen := map[string]bool{}
	for _, r := range rows {
		if !seen[r.SurveyID] {
			seen[r.SurveyID] = true
			ids = append(ids, r.SurveyID)
		}
	}
	query, args, err := sqlx.In(`SELECT `+surveyColumns+` FROM surveys WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}
	var svRows []surveyRow
	if err := sqlx.SelectContext(ctx, s.db, &svRows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list history surveys: %w", err)
	}
	qs, err := s.loadQuestions(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	surveys := make(map[string]*services.Survey, len(svRows))
	for _, r := range svRows {
		sv := s.toSurvey(r)
		sv.Questions = qs[sv.ID]
		surveys[sv.ID] = sv
	}
	out := make([]*services.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, &services.HistoryEntry{Response: s.toResponse(r), Survey: surveys[r.SurveyID]})
	}
	return out, nil
}
