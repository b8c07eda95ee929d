// Package session orchestrates the interview lifecycle on top of a Store:
// creating sessions from generated questions, recording answers, and the
// finish workflow that grades answers and aggregates a summary.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/mockinterview/internal/events"
	"github.com/pavelanni/mockinterview/internal/llm"
	"github.com/pavelanni/mockinterview/internal/llm/prompts"
	"github.com/pavelanni/mockinterview/internal/metrics"
	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/scoring"
	"github.com/pavelanni/mockinterview/internal/store"
)

var (
	// ErrNotFound means the session or question does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps request problems detected before any mutation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream means question generation failed with no usable result.
	ErrUpstream = errors.New("upstream unavailable")
)

// Defaults applied by Create.
const (
	DefaultStyle        = model.StyleInterview
	DefaultDifficulty   = model.DifficultyEasy
	DefaultNumQuestions = 5
	MaxNumQuestions     = 30
	DefaultGradeTimeout = 30 * time.Second
)

// CreateParams is the caller input for Create. Zero values take defaults.
type CreateParams struct {
	UserID       string
	JD           string
	Style        model.Style
	Difficulty   model.Difficulty
	NumQuestions int
}

// Result is a session snapshot with its aggregate summary.
type Result struct {
	Session *model.Session `json:"session"`
	Summary model.Summary  `json:"summary"`
}

// Options tunes a Service.
type Options struct {
	GradeTimeout    time.Duration
	GenerateTimeout time.Duration
	Publisher       events.Publisher
}

// Service is the session orchestrator. It holds no session state of its own;
// every mutation goes through the Store.
type Service struct {
	store        store.Store
	generator    llm.Generator
	grader       llm.Grader
	publisher    events.Publisher
	gradeTimeout time.Duration
	genTimeout   time.Duration
}

// New creates a Service.
func New(s store.Store, gen llm.Generator, grader llm.Grader, opts Options) *Service {
	svc := &Service{
		store:        s,
		generator:    gen,
		grader:       grader,
		publisher:    opts.Publisher,
		gradeTimeout: opts.GradeTimeout,
		genTimeout:   opts.GenerateTimeout,
	}
	if svc.publisher == nil {
		svc.publisher = events.Noop{}
	}
	if svc.gradeTimeout <= 0 {
		svc.gradeTimeout = DefaultGradeTimeout
	}
	return svc
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Create generates questions for the job description and stores a new session.
// The stored session may hold fewer questions than requested when the
// generator returns fewer valid items; NumQuestions keeps the request.
func (s *Service) Create(ctx context.Context, p CreateParams) (*model.Session, error) {
	if p.Style == "" {
		p.Style = DefaultStyle
	}
	if p.Difficulty == "" {
		p.Difficulty = DefaultDifficulty
	}
	if p.NumQuestions == 0 {
		p.NumQuestions = DefaultNumQuestions
	}
	switch p.Style {
	case model.StyleInterview, model.StyleMCQ, model.StyleMix:
	default:
		return nil, invalid("unknown style %q", p.Style)
	}
	switch p.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return nil, invalid("unknown difficulty %q", p.Difficulty)
	}
	if p.NumQuestions < 1 || p.NumQuestions > MaxNumQuestions {
		return nil, invalid("numQuestions must be between 1 and %d", MaxNumQuestions)
	}
	jd := prompts.CleanJD(p.JD)
	if jd == "" {
		return nil, invalid("job description is empty")
	}

	genCtx := ctx
	if s.genTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.genTimeout)
		defer cancel()
	}
	items, err := s.generator.Generate(genCtx, model.GenerateRequest{
		JD:         jd,
		Style:      p.Style,
		Difficulty: p.Difficulty,
		Count:      p.NumQuestions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: generate questions: %w", ErrUpstream, err)
	}
	if len(items) > p.NumQuestions {
		items = items[:p.NumQuestions]
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no questions produced", ErrUpstream)
	}

	questions := make([]model.Question, len(items))
	for i, it := range items {
		questions[i] = model.Question{
			ID:           it.Type.IDPrefix() + strconv.Itoa(i+1),
			Type:         it.Type,
			Text:         it.Text,
			Category:     it.Category,
			Options:      it.Options,
			CorrectIndex: it.CorrectIndex,
		}
	}

	sess, err := s.store.CreateSession(ctx, model.NewSession{
		UserID:       p.UserID,
		JD:           jd,
		Style:        p.Style,
		Difficulty:   p.Difficulty,
		NumQuestions: p.NumQuestions,
		Questions:    questions,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	metrics.SessionsCreated.WithLabelValues(string(sess.Style)).Inc()
	slog.Info("session created", "session_id", sess.ID, "style", sess.Style,
		"difficulty", sess.Difficulty, "requested", sess.NumQuestions, "generated", len(sess.Questions))

	if err := s.publisher.PublishSessionCreated(ctx, sess); err != nil {
		slog.Warn("publish session.created failed", "session_id", sess.ID, "error", err)
	}
	return sess, nil
}

// Get returns the session if it exists and is visible to userID.
func (s *Service) Get(ctx context.Context, id, userID string) (*model.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil || !sess.VisibleTo(userID) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// List returns the caller's sessions, newest first. Anonymous callers see
// only anonymous sessions.
func (s *Service) List(ctx context.Context, userID string) ([]model.Session, error) {
	sessions, err := s.store.ListUserSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// SubmitAnswer creates or replaces the answer to one question. Any existing
// evaluation of that question is discarded.
func (s *Service) SubmitAnswer(ctx context.Context, id, questionID, userID string, p model.AnswerPayload) (*model.Answer, error) {
	sess, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	q, ok := sess.Question(questionID)
	if !ok {
		return nil, ErrNotFound
	}
	if err := checkPayload(q, p); err != nil {
		return nil, err
	}

	a, err := s.store.AddAnswer(ctx, id, questionID, p)
	if err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}
	if a == nil {
		// Deleted between the read and the write.
		return nil, ErrNotFound
	}
	metrics.AnswersSaved.WithLabelValues(string(q.Type)).Inc()
	return a, nil
}

// checkPayload matches the answer shape to the question type.
func checkPayload(q model.Question, p model.AnswerPayload) error {
	if !p.Valid() {
		return invalid("exactly one of text and selectedIndex is required")
	}
	switch q.Type {
	case model.QuestionInterview:
		if p.Text == nil {
			return invalid("question %s expects a text answer", q.ID)
		}
		if strings.TrimSpace(*p.Text) == "" {
			return invalid("answer text is empty")
		}
	case model.QuestionMCQ:
		if p.SelectedIndex == nil {
			return invalid("question %s expects selectedIndex", q.ID)
		}
		if *p.SelectedIndex < 0 || *p.SelectedIndex >= len(q.Options) {
			return invalid("selectedIndex must be between 0 and %d", len(q.Options)-1)
		}
	}
	return nil
}

// ClearAnswer removes the answer to one question. It reports whether an
// answer existed.
func (s *Service) ClearAnswer(ctx context.Context, id, questionID, userID string) (bool, error) {
	sess, err := s.Get(ctx, id, userID)
	if err != nil {
		return false, err
	}
	if _, ok := sess.Question(questionID); !ok {
		return false, ErrNotFound
	}
	removed, err := s.store.RemoveAnswer(ctx, id, questionID)
	if err != nil {
		return false, fmt.Errorf("remove answer: %w", err)
	}
	return removed, nil
}

// Delete removes one session visible to userID.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	ok, err := s.store.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Clear removes every session and returns how many were removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	n, err := s.store.ClearSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear sessions: %w", err)
	}
	slog.Info("sessions cleared", "count", n)
	return n, nil
}

// Finish grades every answered question that has no evaluation yet and
// returns the session summary. Grading failures leave the question ungraded
// and never fail the workflow; a missing session does. A grade is discarded
// when its answer was replaced while grading was in flight.
func (s *Service) Finish(ctx context.Context, id, userID string) (model.Summary, error) {
	start := time.Now()
	defer func() { metrics.FinishDuration.Observe(time.Since(start).Seconds()) }()

	sess, err := s.Get(ctx, id, userID)
	if err != nil {
		return model.Summary{}, err
	}
	// Evaluations are persisted even after the caller cancels.
	wctx := context.WithoutCancel(ctx)

	for _, q := range sess.Questions {
		a, ok := sess.Answers[q.ID]
		if !ok || a.Evaluation != nil {
			continue
		}
		var ev *model.Evaluation
		switch q.Type {
		case model.QuestionMCQ:
			ev = scoring.GradeQuestion(q, a)
		case model.QuestionInterview:
			ev = s.gradeInterview(ctx, sess, q, a)
		}
		if ev == nil {
			continue
		}
		saved, err := s.store.AddEvaluation(wctx, id, q.ID, a.Payload(), *ev)
		if err != nil {
			return model.Summary{}, fmt.Errorf("save evaluation for %s: %w", q.ID, err)
		}
		if saved == nil {
			slog.Info("answer changed during grading, evaluation discarded", "session_id", id, "question_id", q.ID)
		}
	}

	sess, err = s.Get(wctx, id, userID)
	if err != nil {
		return model.Summary{}, err
	}
	sum := scoring.Aggregate(*sess)
	slog.Info("session finished", "session_id", id, "answered", sum.Answered, "graded", sum.Graded)

	if err := s.publisher.PublishSessionFinished(wctx, id, sum); err != nil {
		slog.Warn("publish session.finished failed", "session_id", id, "error", err)
	}
	return sum, nil
}

// gradeInterview calls the grader under its own timeout. It returns nil when
// the question should stay ungraded.
func (s *Service) gradeInterview(ctx context.Context, sess *model.Session, q model.Question, a model.Answer) *model.Evaluation {
	if a.Text == nil {
		return nil
	}
	gctx, cancel := context.WithTimeout(ctx, s.gradeTimeout)
	defer cancel()

	raw, err := s.grader.Grade(gctx, model.GradeRequest{
		JD:       sess.JD,
		Question: q.Text,
		Answer:   *a.Text,
	})
	if err != nil {
		result := "error"
		if errors.Is(err, llm.ErrUnparseable) {
			result = "unparseable"
		}
		metrics.GradingCalls.WithLabelValues(result).Inc()
		slog.Warn("grading failed, question left ungraded",
			"session_id", sess.ID, "question_id", q.ID, "error", err)
		return nil
	}
	metrics.GradingCalls.WithLabelValues("ok").Inc()
	ev := scoring.NormalizeGrading(raw)
	return &ev
}

// Results returns the session snapshot with its current summary. It does not
// grade anything.
func (s *Service) Results(ctx context.Context, id, userID string) (*Result, error) {
	sess, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return &Result{Session: sess, Summary: scoring.Aggregate(*sess)}, nil
}
