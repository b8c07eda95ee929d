package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pavelanni/mockinterview/internal/model"
)

// Postgres stores sessions in PostgreSQL through a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres connects to dbURL and applies the schema.
func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	if dbURL == "" {
		return nil, errors.New("postgres store requires a database url")
	}
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	p := &Postgres{db: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	jd TEXT NOT NULL,
	style TEXT NOT NULL,
	difficulty TEXT NOT NULL,
	num_questions INTEGER NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_user_created ON sessions (user_id, created_at);

CREATE TABLE IF NOT EXISTS questions (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	id TEXT NOT NULL,
	position INTEGER NOT NULL,
	type TEXT NOT NULL,
	text TEXT NOT NULL,
	category TEXT NOT NULL,
	options TEXT,
	correct_index INTEGER,
	PRIMARY KEY (session_id, id)
);

CREATE TABLE IF NOT EXISTS answers (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	question_id TEXT NOT NULL,
	text TEXT,
	selected_index INTEGER,
	created_at BIGINT NOT NULL,
	UNIQUE (session_id, question_id),
	FOREIGN KEY (session_id, question_id) REFERENCES questions(session_id, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS evaluations (
	answer_id TEXT PRIMARY KEY REFERENCES answers(id) ON DELETE CASCADE,
	correctness INTEGER,
	clarity INTEGER,
	conciseness INTEGER,
	confidence INTEGER,
	total INTEGER,
	grade TEXT NOT NULL DEFAULT '',
	is_correct BOOLEAN,
	strengths TEXT,
	improvements TEXT,
	follow_up TEXT NOT NULL DEFAULT '',
	explanation TEXT NOT NULL DEFAULT ''
);
`
	_, err := p.db.Exec(ctx, schema)
	return err
}

func (p *Postgres) CreateSession(ctx context.Context, in model.NewSession) (*model.Session, error) {
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

	err = pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		const insertSession = `
INSERT INTO sessions (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
		_, err := tx.Exec(ctx, insertSession,
			sess.ID, sess.UserID, sess.JD, string(sess.Style), string(sess.Difficulty), sess.NumQuestions, sess.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		const insertQuestion = `
INSERT INTO questions (session_id, position, ` + questionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
		batch := &pgx.Batch{}
		for i, q := range questions {
			options, err := encodeList(q.Options)
			if err != nil {
				return err
			}
			batch.Queue(insertQuestion, sess.ID, i, q.ID, string(q.Type), q.Text, string(q.Category), options, q.CorrectIndex)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cloneSession(sess), nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (*model.Session, error) {
	const sessionQ = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	sess, err := scanSession(p.db.QueryRow(ctx, sessionQ, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	const questionsQ = `
SELECT ` + questionColumns + `
FROM questions
WHERE session_id = $1
ORDER BY position
`
	qrows, err := p.db.Query(ctx, questionsQ, id)
	if err != nil {
		return nil, err
	}
	for qrows.Next() {
		q, err := scanQuestion(qrows)
		if err != nil {
			qrows.Close()
			return nil, err
		}
		sess.Questions = append(sess.Questions, q)
	}
	qrows.Close()
	if err := qrows.Err(); err != nil {
		return nil, err
	}

	const answersQ = `
SELECT ` + answerColumns + `
FROM answers a
LEFT JOIN evaluations e ON e.answer_id = a.id
WHERE a.session_id = $1
`
	arows, err := p.db.Query(ctx, answersQ, id)
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

func (p *Postgres) ListSessions(ctx context.Context) ([]model.Session, error) {
	return p.listWhere(ctx, `SELECT id FROM sessions ORDER BY created_at DESC, id DESC`)
}

func (p *Postgres) ListUserSessions(ctx context.Context, userID string) ([]model.Session, error) {
	return p.listWhere(ctx, `SELECT id FROM sessions WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (p *Postgres) listWhere(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect session ids: %w", err)
	}

	sessions := make([]model.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := p.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get session %s: %w", id, err)
		}
		if sess != nil {
			sessions = append(sessions, *sess)
		}
	}
	return sessions, nil
}

func (p *Postgres) AddAnswer(ctx context.Context, sessionID, questionID string, pl model.AnswerPayload) (*model.Answer, error) {
	if !pl.Valid() {
		return nil, ErrInvalidAnswer
	}
	var out *model.Answer
	err := pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM questions WHERE session_id = $1 AND id = $2`, sessionID, questionID,
		).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		const upsert = `
INSERT INTO answers (id, session_id, question_id, text, selected_index, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id, question_id)
DO UPDATE SET text = EXCLUDED.text, selected_index = EXCLUDED.selected_index
RETURNING id, created_at
`
		a := model.Answer{QuestionID: questionID, Text: pl.Text, SelectedIndex: pl.SelectedIndex}
		var createdAt int64
		if err := tx.QueryRow(ctx, upsert,
			newID(), sessionID, questionID, pl.Text, pl.SelectedIndex, now().UnixMilli(),
		).Scan(&a.ID, &createdAt); err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
		a.CreatedAt = fromMillis(createdAt)

		if _, err := tx.Exec(ctx, `DELETE FROM evaluations WHERE answer_id = $1`, a.ID); err != nil {
			return fmt.Errorf("clear evaluation: %w", err)
		}
		c := cloneAnswer(a)
		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) AddEvaluation(ctx context.Context, sessionID, questionID string, graded model.AnswerPayload, ev model.Evaluation) (*model.Evaluation, error) {
	if !graded.Valid() {
		return nil, ErrInvalidAnswer
	}
	args, err := evaluationArgs(ev)
	if err != nil {
		return nil, err
	}
	const upsert = `
INSERT INTO evaluations (answer_id, correctness, clarity, conciseness, confidence, total,
	grade, is_correct, strengths, improvements, follow_up, explanation)
SELECT a.id, $5::integer, $6::integer, $7::integer, $8::integer, $9::integer,
	$10::text, $11::boolean, $12::text, $13::text, $14::text, $15::text
FROM answers a
WHERE a.session_id = $1 AND a.question_id = $2
	AND a.text IS NOT DISTINCT FROM $3::text
	AND a.selected_index IS NOT DISTINCT FROM $4::integer
ON CONFLICT (answer_id) DO UPDATE SET
	correctness = EXCLUDED.correctness, clarity = EXCLUDED.clarity,
	conciseness = EXCLUDED.conciseness, confidence = EXCLUDED.confidence,
	total = EXCLUDED.total, grade = EXCLUDED.grade, is_correct = EXCLUDED.is_correct,
	strengths = EXCLUDED.strengths, improvements = EXCLUDED.improvements,
	follow_up = EXCLUDED.follow_up, explanation = EXCLUDED.explanation
`
	tag, err := p.db.Exec(ctx, upsert,
		append([]any{sessionID, questionID, graded.Text, graded.SelectedIndex}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("upsert evaluation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return cloneEvaluation(&ev), nil
}

func (p *Postgres) RemoveAnswer(ctx context.Context, sessionID, questionID string) (bool, error) {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM answers WHERE session_id = $1 AND question_id = $2`, sessionID, questionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) DeleteSession(ctx context.Context, id string) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) ClearSessions(ctx context.Context) (int, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
