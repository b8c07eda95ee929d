// Package store persists interview sessions, their answers and evaluations.
// Three backends implement Store: an in-process map, SQLite and PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mockinterview/internal/model"
)

var (
	// ErrInvalidSession is returned by CreateSession for an empty question list
	// or duplicate question ids.
	ErrInvalidSession = errors.New("invalid session")
	// ErrInvalidAnswer is returned by AddAnswer when the payload does not carry
	// exactly one of text and selectedIndex.
	ErrInvalidAnswer = errors.New("invalid answer payload")
)

// Store is the session repository. Lookups of absent records return nil values,
// never errors; errors are reserved for infrastructure failures.
type Store interface {
	CreateSession(ctx context.Context, in model.NewSession) (*model.Session, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	// ListSessions returns every session, newest first.
	ListSessions(ctx context.Context) ([]model.Session, error)
	// ListUserSessions returns the sessions owned by userID, newest first.
	ListUserSessions(ctx context.Context, userID string) ([]model.Session, error)
	// AddAnswer creates or replaces the answer to a question and drops its evaluation.
	AddAnswer(ctx context.Context, sessionID, questionID string, p model.AnswerPayload) (*model.Answer, error)
	// AddEvaluation attaches ev to the answer only if the answer still holds
	// the graded content. A missing or changed answer yields nil.
	AddEvaluation(ctx context.Context, sessionID, questionID string, graded model.AnswerPayload, ev model.Evaluation) (*model.Evaluation, error)
	RemoveAnswer(ctx context.Context, sessionID, questionID string) (bool, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	ClearSessions(ctx context.Context) (int, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Path        string // sqlite database file
	DatabaseURL string // postgres connection string
}

// Open returns the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		return NewSQLite(cfg.Path)
	case BackendPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// validateNewSession checks the question list and returns a copy of it.
func validateNewSession(in model.NewSession) ([]model.Question, error) {
	if len(in.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions", ErrInvalidSession)
	}
	seen := make(map[string]bool, len(in.Questions))
	for _, q := range in.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: empty question id", ErrInvalidSession)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("%w: duplicate question id %q", ErrInvalidSession, q.ID)
		}
		seen[q.ID] = true
	}
	return cloneQuestions(in.Questions), nil
}

func newID() string {
	return uuid.NewString()
}

// now is the creation timestamp: UTC at millisecond precision, which every
// backend stores without loss.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func cloneQuestions(qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		out[i] = q
		if q.Options != nil {
			out[i].Options = append([]string(nil), q.Options...)
		}
		if q.CorrectIndex != nil {
			out[i].CorrectIndex = model.IntPtr(*q.CorrectIndex)
		}
	}
	return out
}

func cloneEvaluation(ev *model.Evaluation) *model.Evaluation {
	if ev == nil {
		return nil
	}
	c := *ev
	c.Correctness = cloneInt(ev.Correctness)
	c.Clarity = cloneInt(ev.Clarity)
	c.Conciseness = cloneInt(ev.Conciseness)
	c.Confidence = cloneInt(ev.Confidence)
	c.Total = cloneInt(ev.Total)
	if ev.IsCorrect != nil {
		c.IsCorrect = model.BoolPtr(*ev.IsCorrect)
	}
	if ev.Strengths != nil {
		c.Strengths = append([]string(nil), ev.Strengths...)
	}
	if ev.Improvements != nil {
		c.Improvements = append([]string(nil), ev.Improvements...)
	}
	return &c
}

func cloneAnswer(a model.Answer) model.Answer {
	c := a
	if a.Text != nil {
		c.Text = model.StringPtr(*a.Text)
	}
	c.SelectedIndex = cloneInt(a.SelectedIndex)
	c.Evaluation = cloneEvaluation(a.Evaluation)
	return c
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	c.Questions = cloneQuestions(s.Questions)
	c.Answers = make(map[string]model.Answer, len(s.Answers))
	for k, a := range s.Answers {
		c.Answers[k] = cloneAnswer(a)
	}
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	return model.IntPtr(*p)
}
