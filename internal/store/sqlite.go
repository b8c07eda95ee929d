package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/mockinterview/internal/model"

	_ "modernc.org/sqlite"
)

// SQLite is a durable single-file store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at dbPath and applies the schema.
func NewSQLite(dbPath string) (*SQLite, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if dbPath != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		jd TEXT NOT NULL,
		style TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		num_questions INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS sessions_user_created ON sessions (user_id, created_at);

	CREATE TABLE IF NOT EXISTS questions (
		session_id TEXT NOT NULL,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		type TEXT NOT NULL,
		text TEXT NOT NULL,
		category TEXT NOT NULL,
		options TEXT,
		correct_index INTEGER,
		PRIMARY KEY (session_id, id),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS answers (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		text TEXT,
		selected_index INTEGER,
		created_at INTEGER NOT NULL,
		UNIQUE (session_id, question_id),
		FOREIGN KEY (session_id, question_id) REFERENCES questions(session_id, id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		answer_id TEXT PRIMARY KEY,
		correctness INTEGER,
		clarity INTEGER,
		conciseness INTEGER,
		confidence INTEGER,
		total INTEGER,
		grade TEXT NOT NULL DEFAULT '',
		is_correct INTEGER,
		strengths TEXT,
		improvements TEXT,
		follow_up TEXT NOT NULL DEFAULT '',
		explanation TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (answer_id) REFERENCES answers(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateSession stores a session with its questions.
func (s *SQLite) CreateSession(ctx context.Context, in model.NewSession) (*model.Session, error) {
	questions, err := validateNewSession(in)
	if err != nil {
		return nil, err
	}
	sess := &model.Session{
		ID:           newID(),
		UserID:       in.UserID,
		JD:           in.JD,
		Style:        in.Style,
		Difficulty:   in.Difficulty,
		NumQuestions: in.NumQuestions,
		CreatedAt:    now(),
		Questions:    questions,
		Answers:      make(map[string]model.Answer),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.JD, sess.Style, sess.Difficulty, sess.NumQuestions, sess.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	for i, q := range questions {
		options, err := encodeList(q.Options)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (session_id, position, `+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, i, q.ID, q.Type, q.Text, q.Category, options, q.CorrectIndex,
		)
		if err != nil {
			return nil, fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cloneSession(sess), nil
}

// GetSession returns the session with all questions, answers and evaluations,
// or nil if it does not exist.
func (s *SQLite) GetSession(ctx context.Context, id string) (*model.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	qrows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE session_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer qrows.Close()
	for qrows.Next() {
		q, err := scanQuestion(qrows)
		if err != nil {
			return nil, err
		}
		sess.Questions = append(sess.Questions, q)
	}
	if err := qrows.Err(); err != nil {
		return nil, err
	}
	qrows.Close()

	arows, err := s.db.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM answers a
		 LEFT JOIN evaluations e ON e.answer_id = a.id
		 WHERE a.session_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		a, err := scanAnswer(arows)
		if err != nil {
			return nil, err
		}
		sess.Answers[a.QuestionID] = a
	}
	return sess, arows.Err()
}

// ListSessions returns all sessions, newest first.
func (s *SQLite) ListSessions(ctx context.Context) ([]model.Session, error) {
	return s.listWhere(ctx, `SELECT id FROM sessions ORDER BY created_at DESC, id DESC`)
}

// ListUserSessions returns the sessions owned by userID, newest first.
func (s *SQLite) ListUserSessions(ctx context.Context, userID string) ([]model.Session, error) {
	return s.listWhere(ctx,
		`SELECT id FROM sessions WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

// listWhere collects ids first: the single connection cannot serve nested queries.
func (s *SQLite) listWhere(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessions := make([]model.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get session %s: %w", id, err)
		}
		if sess != nil {
			sessions = append(sessions, *sess)
		}
	}
	return sessions, nil
}

// AddAnswer upserts the answer and drops any evaluation in one transaction.
func (s *SQLite) AddAnswer(ctx context.Context, sessionID, questionID string, p model.AnswerPayload) (*model.Answer, error) {
	if !p.Valid() {
		return nil, ErrInvalidAnswer
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM questions WHERE session_id = ? AND id = ?`, sessionID, questionID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a := model.Answer{QuestionID: questionID, Text: p.Text, SelectedIndex: p.SelectedIndex}
	var createdAt int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO answers (id, session_id, question_id, text, selected_index, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, question_id) DO UPDATE SET text = excluded.text, selected_index = excluded.selected_index
		 RETURNING id, created_at`,
		newID(), sessionID, questionID, p.Text, p.SelectedIndex, now().UnixMilli(),
	).Scan(&a.ID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("upsert answer: %w", err)
	}
	a.CreatedAt = fromMillis(createdAt)

	if _, err := tx.ExecContext(ctx, `DELETE FROM evaluations WHERE answer_id = ?`, a.ID); err != nil {
		return nil, fmt.Errorf("clear evaluation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	c := cloneAnswer(a)
	return &c, nil
}

// AddEvaluation attaches ev to the answer when it still holds the graded
// content, replacing any previous evaluation.
func (s *SQLite) AddEvaluation(ctx context.Context, sessionID, questionID string, graded model.AnswerPayload, ev model.Evaluation) (*model.Evaluation, error) {
	if !graded.Valid() {
		return nil, ErrInvalidAnswer
	}
	args, err := evaluationArgs(ev)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var answerID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM answers
		 WHERE session_id = ? AND question_id = ? AND text IS ? AND selected_index IS ?`,
		sessionID, questionID, graded.Text, graded.SelectedIndex,
	).Scan(&answerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO evaluations (answer_id, correctness, clarity, conciseness, confidence, total,
			grade, is_correct, strengths, improvements, follow_up, explanation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(answer_id) DO UPDATE SET
			correctness = excluded.correctness, clarity = excluded.clarity,
			conciseness = excluded.conciseness, confidence = excluded.confidence,
			total = excluded.total, grade = excluded.grade, is_correct = excluded.is_correct,
			strengths = excluded.strengths, improvements = excluded.improvements,
			follow_up = excluded.follow_up, explanation = excluded.explanation`,
		append([]any{answerID}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert evaluation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cloneEvaluation(&ev), nil
}

// RemoveAnswer deletes the answer and its evaluation.
func (s *SQLite) RemoveAnswer(ctx context.Context, sessionID, questionID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM evaluations WHERE answer_id IN
			(SELECT id FROM answers WHERE session_id = ? AND question_id = ?)`,
		sessionID, questionID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM answers WHERE session_id = ? AND question_id = ?`, sessionID, questionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// DeleteSession removes a session and everything under it.
func (s *SQLite) DeleteSession(ctx context.Context, id string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	stmts := []string{
		`DELETE FROM evaluations WHERE answer_id IN (SELECT id FROM answers WHERE session_id = ?)`,
		`DELETE FROM answers WHERE session_id = ?`,
		`DELETE FROM questions WHERE session_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return false, err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

// ClearSessions removes every session and returns how many there were.
func (s *SQLite) ClearSessions(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, table := range []string{"evaluations", "answers", "questions"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return 0, err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), tx.Commit()
}
