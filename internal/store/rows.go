package store

import (
	"encoding/json"
	"fmt"

	"github.com/pavelanni/mockinterview/internal/model"
)

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Column lists shared by the SQL backends. Scan order must match the scan* helpers.
const (
	sessionColumns  = `id, user_id, jd, style, difficulty, num_questions, created_at`
	questionColumns = `id, type, text, category, options, correct_index`
	answerColumns   = `a.id, a.question_id, a.text, a.selected_index, a.created_at,
		e.answer_id, e.correctness, e.clarity, e.conciseness, e.confidence, e.total,
		e.grade, e.is_correct, e.strengths, e.improvements, e.follow_up, e.explanation`
)

func scanSession(r rowScanner) (*model.Session, error) {
	var s model.Session
	var createdAt int64
	if err := r.Scan(&s.ID, &s.UserID, &s.JD, &s.Style, &s.Difficulty, &s.NumQuestions, &createdAt); err != nil {
		return nil, err
	}
	s.CreatedAt = fromMillis(createdAt)
	s.Answers = make(map[string]model.Answer)
	return &s, nil
}

func scanQuestion(r rowScanner) (model.Question, error) {
	var q model.Question
	var options *string
	if err := r.Scan(&q.ID, &q.Type, &q.Text, &q.Category, &options, &q.CorrectIndex); err != nil {
		return q, err
	}
	opts, err := decodeList(options)
	if err != nil {
		return q, fmt.Errorf("question %s options: %w", q.ID, err)
	}
	q.Options = opts
	return q, nil
}

// scanAnswer reads an answer row left-joined with its evaluation.
func scanAnswer(r rowScanner) (model.Answer, error) {
	var (
		a                        model.Answer
		createdAt                int64
		evalAnswerID             *string
		ev                       model.Evaluation
		grade, followUp, explain *string
		strengths, improvements  *string
	)
	err := r.Scan(&a.ID, &a.QuestionID, &a.Text, &a.SelectedIndex, &createdAt,
		&evalAnswerID, &ev.Correctness, &ev.Clarity, &ev.Conciseness, &ev.Confidence, &ev.Total,
		&grade, &ev.IsCorrect, &strengths, &improvements, &followUp, &explain)
	if err != nil {
		return a, err
	}
	a.CreatedAt = fromMillis(createdAt)
	if evalAnswerID == nil {
		return a, nil
	}

	ev.Grade = deref(grade)
	ev.FollowUp = deref(followUp)
	ev.Explanation = deref(explain)
	if ev.Strengths, err = decodeList(strengths); err != nil {
		return a, fmt.Errorf("answer %s strengths: %w", a.ID, err)
	}
	if ev.Improvements, err = decodeList(improvements); err != nil {
		return a, fmt.Errorf("answer %s improvements: %w", a.ID, err)
	}
	a.Evaluation = &ev
	return a, nil
}

// evaluationArgs returns the evaluation column values in the order
// correctness, clarity, conciseness, confidence, total, grade, is_correct,
// strengths, improvements, follow_up, explanation.
func evaluationArgs(ev model.Evaluation) ([]any, error) {
	strengths, err := encodeList(ev.Strengths)
	if err != nil {
		return nil, err
	}
	improvements, err := encodeList(ev.Improvements)
	if err != nil {
		return nil, err
	}
	return []any{
		ev.Correctness, ev.Clarity, ev.Conciseness, ev.Confidence, ev.Total,
		ev.Grade, ev.IsCorrect, strengths, improvements, ev.FollowUp, ev.Explanation,
	}, nil
}

// encodeList stores a string list as a JSON array; empty lists become NULL.
func encodeList(items []string) (*string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func decodeList(raw *string) ([]string, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(*raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
