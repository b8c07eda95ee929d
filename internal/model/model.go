package model

import (
	"context"
	"time"
)

// QuestionType distinguishes free-text interview questions from multiple-choice ones.
type QuestionType string

const (
	QuestionInterview QuestionType = "interview"
	QuestionMCQ       QuestionType = "mcq"
)

// IDPrefix returns the prefix used for question ids of this type.
func (t QuestionType) IDPrefix() string {
	if t == QuestionMCQ {
		return "m"
	}
	return "q"
}

// Category classifies a question. It is used for bucketing in summaries only.
type Category string

const (
	CategoryTechnical  Category = "technical"
	CategoryBehavioral Category = "behavioral"
	CategoryRole       Category = "role"
)

// Style is the declared question mix of a session.
type Style string

const (
	StyleInterview Style = "interview"
	StyleMCQ       Style = "mcq"
	StyleMix       Style = "mix"
)

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// MCQOptionCount is the number of options every multiple-choice question carries.
const MCQOptionCount = 4

// MaxFeedbackItems caps strengths and improvements on an evaluation.
const MaxFeedbackItems = 5

// Question is an immutable interview item. Options and CorrectIndex are set iff Type is mcq.
type Question struct {
	ID           string       `json:"id"`
	Type         QuestionType `json:"type"`
	Text         string       `json:"text"`
	Category     Category     `json:"category"`
	Options      []string     `json:"options,omitempty"`
	CorrectIndex *int         `json:"correctIndex,omitempty"`
}

// Evaluation is the scored outcome attached to one answer.
// All score fields are 0..100; nil means the grader did not produce the axis.
type Evaluation struct {
	Correctness  *int     `json:"correctness,omitempty"`
	Clarity      *int     `json:"clarity,omitempty"`
	Conciseness  *int     `json:"conciseness,omitempty"`
	Confidence   *int     `json:"confidence,omitempty"`
	Total        *int     `json:"total,omitempty"`
	Grade        string   `json:"grade,omitempty"`
	IsCorrect    *bool    `json:"isCorrect,omitempty"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	FollowUp     string   `json:"followUp,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

// Answer is a user's response to one question. Text is set for interview questions,
// SelectedIndex for mcq. CreatedAt records the first save and survives edits.
type Answer struct {
	ID            string      `json:"id"`
	QuestionID    string      `json:"questionId"`
	Text          *string     `json:"text,omitempty"`
	SelectedIndex *int        `json:"selectedIndex,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	Evaluation    *Evaluation `json:"evaluation,omitempty"`
}

// AnswerPayload is the content of an answer submission. Exactly one field must be set.
type AnswerPayload struct {
	Text          *string `json:"text,omitempty"`
	SelectedIndex *int    `json:"selectedIndex,omitempty"`
}

// Valid reports whether exactly one of Text and SelectedIndex is set.
func (p AnswerPayload) Valid() bool {
	return (p.Text == nil) != (p.SelectedIndex == nil)
}

// Payload returns the submitted content of the answer.
func (a Answer) Payload() AnswerPayload {
	return AnswerPayload{Text: a.Text, SelectedIndex: a.SelectedIndex}
}

// Holds reports whether the answer currently carries exactly the content p.
func (a Answer) Holds(p AnswerPayload) bool {
	return equalPtr(a.Text, p.Text) && equalPtr(a.SelectedIndex, p.SelectedIndex)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Session is one complete interview attempt.
type Session struct {
	ID           string            `json:"id"`
	UserID       string            `json:"userId,omitempty"`
	JD           string            `json:"jd"`
	Style        Style             `json:"style"`
	Difficulty   Difficulty        `json:"difficulty"`
	NumQuestions int               `json:"numQuestions"`
	CreatedAt    time.Time         `json:"createdAt"`
	Questions    []Question        `json:"questions"`
	Answers      map[string]Answer `json:"answers"`
}

// Question returns the question with the given id.
func (s *Session) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// VisibleTo reports whether userID may see and mutate the session.
// Owned sessions are restricted to their owner; anonymous sessions are open.
func (s *Session) VisibleTo(userID string) bool {
	return s.UserID == "" || s.UserID == userID
}

// NewSession holds everything needed to create a session.
type NewSession struct {
	UserID       string
	JD           string
	Style        Style
	Difficulty   Difficulty
	NumQuestions int
	Questions    []Question
}

// GenerateRequest is the input to a question generator.
type GenerateRequest struct {
	JD         string
	Style      Style
	Difficulty Difficulty
	Count      int
}

// GeneratedQuestion is a validated question produced by a generator, before ids are assigned.
type GeneratedQuestion struct {
	Type         QuestionType `json:"type"`
	Text         string       `json:"text"`
	Category     Category     `json:"category"`
	Options      []string     `json:"options,omitempty"`
	CorrectIndex *int         `json:"correctIndex,omitempty"`
}

// GradeRequest is the input to the free-text grader.
type GradeRequest struct {
	JD       string
	Question string
	Answer   string
}

// AxisAverages holds per-axis averages over evaluations that scored the axis.
type AxisAverages struct {
	Correctness *int `json:"correctness,omitempty"`
	Clarity     *int `json:"clarity,omitempty"`
	Conciseness *int `json:"conciseness,omitempty"`
	Confidence  *int `json:"confidence,omitempty"`
}

// MCQStats summarizes multiple-choice results.
type MCQStats struct {
	Total       int  `json:"total"`
	Answered    int  `json:"answered"`
	Correct     int  `json:"correct"`
	AccuracyPct *int `json:"accuracyPct,omitempty"`
}

// InterviewStats summarizes free-text answer coverage.
type InterviewStats struct {
	Total       int  `json:"total"`
	Answered    int  `json:"answered"`
	CoveragePct *int `json:"coveragePct,omitempty"`
}

// CategoryStats summarizes one question category.
type CategoryStats struct {
	Questions int  `json:"questions"`
	Answered  int  `json:"answered"`
	Graded    int  `json:"graded"`
	ScorePct  *int `json:"scorePct,omitempty"`
}

// Summary is the aggregate of a session's evaluations.
type Summary struct {
	TotalQuestions int                        `json:"totalQuestions"`
	Answered       int                        `json:"answered"`
	Graded         int                        `json:"graded"`
	ScorePct       *int                       `json:"scorePct"`
	Axes           AxisAverages               `json:"axes"`
	MCQ            MCQStats                   `json:"mcq"`
	Interview      InterviewStats             `json:"interview"`
	Categories     map[Category]CategoryStats `json:"categories"`
}

// AppConfig holds runtime parameters set via CLI flags, env or config file.
type AppConfig struct {
	LLMProvider      string // "openai" or "mock"
	LLMModel         string
	DailyCap         int    // question generations per caller per day
	DailyCapTimezone string // IANA zone the daily window resets in
	AllowClear       bool   // enables DELETE /api/sessions
	Version          string
}

type userCtxKey struct{}

// ContextWithUserID stores the caller's opaque user id in the request context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserIDFromContext retrieves the caller's user id, or "" for anonymous callers.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userCtxKey{}).(string)
	return id
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
