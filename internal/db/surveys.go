package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/soaringjerry/Canvass/internal/services"
)

type surveyRow struct {
	ID            string         `db:"id"`
	CreatorID     string         `db:"creator_id"`
	Title         string         `db:"title"`
	Description   string         `db:"description"`
	Status        string         `db:"status"`
	Limit         int            `db:"response_limit"`
	ResponseCount int            `db:"response_count"`
	Targeting     sql.NullString `db:"targeting"`
	CreatedAt     string         `db:"created_at"`
	UpdatedAt     string         `db:"updated_at"`
}

type questionRow struct {
	ID       string         `db:"id"`
	SurveyID string         `db:"survey_id"`
	Text     string         `db:"text"`
	Type     string         `db:"type"`
	Required bool           `db:"required"`
	Options  sql.NullString `db:"options"`
	Position int            `db:"position"`
}

const (
	surveyColumns   = `id, creator_id, title, description, status, response_limit, response_count, targeting, created_at, updated_at`
	questionColumns = `id, survey_id, text, type, required, options, position`
)

func (s *Store) toSurvey(r surveyRow) *services.Survey {
	sv := &services.Survey{
		ID:            r.ID,
		CreatorID:     r.CreatorID,
		Title:         r.Title,
		Description:   r.Description,
		Status:        services.SurveyStatus(r.Status),
		Limit:         r.Limit,
		ResponseCount: r.ResponseCount,
		CreatedAt:     parseTime(r.CreatedAt),
		UpdatedAt:     parseTime(r.UpdatedAt),
	}
	if r.Targeting.Valid {
		var t services.Targeting
		s.decodeJSON(r.Targeting, &t, "surveys.targeting")
		sv.Targeting = &t
	}
	return sv
}

func (s *Store) toQuestion(r questionRow) *services.Question {
	q := &services.Question{
		ID:       r.ID,
		SurveyID: r.SurveyID,
		Text:     r.Text,
		Type:     services.QuestionType(r.Type),
		Required: r.Required,
		Order:    r.Position,
	}
	s.decodeJSON(r.Options, &q.Options, "questions.options")
	return q
}

func (s *Store) CreateSurvey(ctx context.Context, sv *services.Survey) error {
	targeting, err := encodeJSON(sv.Targeting)
	if err != nil {
		return fmt.Errorf("encode targeting: %w", err)
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO surveys (`+surveyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			sv.ID, sv.CreatorID, sv.Title, sv.Description, string(sv.Status), sv.Limit, sv.ResponseCount,
			targeting, formatTime(sv.CreatedAt), formatTime(sv.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert survey: %w", err)
		}
		for _, q := range sv.Questions {
			if err := s.insertQuestion(ctx, tx, q); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSurvey returns the survey with its questions in order, or nil when it does not exist.
func (s *Store) GetSurvey(ctx context.Context, id string) (*services.Survey, error) {
	var row surveyRow
	err := sqlx.GetContext(ctx, s.db, &row, s.rebind(`SELECT `+surveyColumns+` FROM surveys WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get survey: %w", err)
	}
	sv := s.toSurvey(row)
	qs, err := s.loadQuestions(ctx, s.db, []string{id})
	if err != nil {
		return nil, err
	}
	sv.Questions = qs[id]
	return sv, nil
}

// loadQuestions fetches the questions of several surveys, grouped by survey and ordered by position.
func (s *Store) loadQuestions(ctx context.Context, q sqlx.QueryerContext, surveyIDs []string) (map[string][]*services.Question, error) {
	out := make(map[string][]*services.Question, len(surveyIDs))
	if len(surveyIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+questionColumns+` FROM questions WHERE survey_id IN (?) ORDER BY survey_id, position, id`, surveyIDs)
	if err != nil {
		return nil, fmt.Errorf("build question query: %w", err)
	}
	var rows []questionRow
	if err := sqlx.SelectContext(ctx, q, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for _, r := range rows {
		out[r.SurveyID] = append(out[r.SurveyID], s.toQuestion(r))
	}
	return out, nil
}

// UpdateSurvey writes the survey fields, and its status when withStatus is set, in one transaction.
// Publishing a survey that has no stored questions fails with ErrNoQuestions.
func (s *Store) UpdateSurvey(ctx context.Context, sv *services.Survey, withStatus bool) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.updateSurveyFields(ctx, tx, sv, withStatus); err != nil {
			return err
		}
		if withStatus && sv.Status == services.StatusActive {
			return s.checkPublishable(ctx, tx, sv.ID)
		}
		return nil
	})
}

func (s *Store) updateSurveyFields(ctx context.Context, e sqlx.ExecerContext, sv *services.Survey, withStatus bool) error {
	targeting, err := encodeJSON(sv.Targeting)
	if err != nil {
		return fmt.Errorf("encode targeting: %w", err)
	}
	query := `UPDATE surveys SET title = ?, description = ?, response_limit = ?, targeting = ?, updated_at = ? WHERE id = ?`
	args := []any{sv.Title, sv.Description, sv.Limit, targeting, formatTime(sv.UpdatedAt), sv.ID}
	if withStatus {
		query = `UPDATE surveys SET title = ?, description = ?, response_limit = ?, targeting = ?, updated_at = ?, status = ? WHERE id = ?`
		args = []any{sv.Title, sv.Description, sv.Limit, targeting, formatTime(sv.UpdatedAt), string(sv.Status), sv.ID}
	}
	res, err := e.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.ErrSurveyNotFound
	}
	return nil
}

// checkPublishable fails with ErrNoQuestions when the survey is ACTIVE but has no stored questions.
// It runs after the survey row was written in the same transaction, so the row is locked.
func (s *Store) checkPublishable(ctx context.Context, tx *sqlx.Tx, id string) error {
	var row struct {
		Status    string `db:"status"`
		Questions int    `db:"questions"`
	}
	err := tx.GetContext(ctx, &row, s.rebind(
		`SELECT status, (SELECT COUNT(1) FROM questions WHERE survey_id = surveys.id) AS questions FROM surveys WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return services.ErrSurveyNotFound
	}
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if services.SurveyStatus(row.Status) == services.StatusActive && row.Questions == 0 {
		return services.ErrNoQuestions
	}
	return nil
}

func (s *Store) SetSurveyStatus(ctx context.Context, id string, status services.SurveyStatus, at time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE surveys SET status = ?, updated_at = ? WHERE id = ?`),
			string(status), formatTime(at), id)
		if err != nil {
			return fmt.Errorf("update survey status: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return services.ErrSurveyNotFound
		}
		if status == services.StatusActive {
			return s.checkPublishable(ctx, tx, id)
		}
		return nil
	})
}

// SyncSurvey applies the survey fields and the question reconcile plan atomically.
// The stored question set ends up as exactly plan.Update plus plan.Create, whatever
// was added or removed since the caller read the survey.
func (s *Store) SyncSurvey(ctx context.Context, plan *services.SurveySync) error {
	if plan == nil || plan.Survey == nil {
		return errors.New("empty survey sync")
	}
	id := plan.Survey.ID
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.updateSurveyFields(ctx, tx, plan.Survey, plan.SetStatus); err != nil {
			return err
		}
		if err := s.deleteQuestionsExcept(ctx, tx, id, plan.Update); err != nil {
			return err
		}
		for _, q := range plan.Update {
			options, err := encodeJSON(q.Options)
			if err != nil {
				return fmt.Errorf("encode options: %w", err)
			}
			res, err := tx.ExecContext(ctx,
				s.rebind(`UPDATE questions SET text = ?, type = ?, required = ?, options = ?, position = ? WHERE id = ? AND survey_id = ?`),
				q.Text, string(q.Type), q.Required, options, q.Order, q.ID, id)
			if err != nil {
				return fmt.Errorf("update question %s: %w", q.ID, err)
			}
			// Deleted concurrently: put it back so the result matches the request.
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				if err := s.insertQuestion(ctx, tx, q); err != nil {
					return err
				}
			}
		}
		for _, q := range plan.Create {
			if err := s.insertQuestion(ctx, tx, q); err != nil {
				return err
			}
		}
		return s.checkPublishable(ctx, tx, id)
	})
}

func (s *Store) deleteQuestionsExcept(ctx context.Context, tx *sqlx.Tx, surveyID string, keep []*services.Question) error {
	if len(keep) == 0 {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM questions WHERE survey_id = ?`), surveyID); err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}
		return nil
	}
	ids := make([]string, 0, len(keep))
	for _, q := range keep {
		ids = append(ids, q.ID)
	}
	query, args, err := sqlx.In(`DELETE FROM questions WHERE survey_id = ? AND id NOT IN (?)`, surveyID, ids)
	if err != nil {
		return fmt.Errorf("build question delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	return nil
}

func (s *Store) DeleteSurvey(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM responses WHERE survey_id = ?`,
			`DELETE FROM questions WHERE survey_id = ?`,
			`DELETE FROM surveys WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, s.rebind(stmt), id); err != nil {
				return fmt.Errorf("delete survey: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) insertQuestion(ctx context.Context, e sqlx.ExecerContext, q *services.Question) error {
	options, err := encodeJSON(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	if _, err := e.ExecContext(ctx, s.rebind(`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		q.ID, q.SurveyID, q.Text, string(q.Type), q.Required, options, q.Order); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// InsertQuestion appends a question and moves the survey's updated_at to at.
func (s *Store) InsertQuestion(ctx context.Context, q *services.Question, at time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.touchSurvey(ctx, tx, q.SurveyID, at); err != nil {
			return err
		}
		return s.insertQuestion(ctx, tx, q)
	})
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*services.Question, error) {
	var row questionRow
	err := sqlx.GetContext(ctx, s.db, &row, s.rebind(`SELECT `+questionColumns+` FROM questions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	return s.toQuestion(row), nil
}

func (s *Store) DeleteQuestion(ctx context.Context, surveyID, questionID string, at time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.touchSurvey(ctx, tx, surveyID, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM questions WHERE id = ? AND survey_id = ?`), questionID, surveyID); err != nil {
			return fmt.Errorf("delete question: %w", err)
		}
		return nil
	})
}

func (s *Store) touchSurvey(ctx context.Context, e sqlx.ExecerContext, surveyID string, at time.Time) error {
	if _, err := e.ExecContext(ctx, s.rebind(`UPDATE surveys SET updated_at = ? WHERE id = ?`), formatTime(at), surveyID); err != nil {
		return fmt.Errorf("touch survey: %w", err)
	}
	return nil
}

// ListSurveysByCreator returns a creator's surveys, newest first, without questions.
func (s *Store) ListSurveysByCreator(ctx context.Context, creatorID string) ([]*services.Survey, error) {
	return s.listSurveys(ctx, `creator_id = ?`, creatorID)
}

// ListUnansweredActiveSurveys returns ACTIVE surveys the participant has not answered, newest first,
// with their questions.
func (s *Store) ListUnansweredActiveSurveys(ctx context.Context, participantID string) ([]*services.Survey, error) {
	list, err := s.listSurveys(ctx,
		`status = ? AND NOT EXISTS (SELECT 1 FROM responses r WHERE r.survey_id = surveys.id AND r.participant_id = ?)`,
		string(services.StatusActive), participantID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, sv := range list {
		ids = append(ids, sv.ID)
	}
	qs, err := s.loadQuestions(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for _, sv := range list {
		sv.Questions = qs[sv.ID]
	}
	return list, nil
}

func (s *Store) listSurveys(ctx context.Context, where string, args ...any) ([]*services.Survey, error) {
	var rows []surveyRow
	if err := sqlx.SelectContext(ctx, s.db, &rows,
		s.rebind(`SELECT `+surveyColumns+` FROM surveys WHERE `+where+` ORDER BY created_at DESC, id`), args...); err != nil {
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	out := make([]*services.Survey, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.toSurvey(r))
	}
	return out, nil
}
