// Package scoring grades multiple-choice answers and aggregates session evaluations.
// Everything here is pure: no I/O, no clocks, no shared state.
package scoring

import (
	"math"

	"github.com/pavelanni/mockinterview/internal/model"
)

const (
	gradeCorrect   = "Correct"
	gradeIncorrect = "Incorrect"
)

// GradeMultipleChoice grades a multiple-choice selection. It returns nil when either
// index is missing or the selection is outside the option range, so such answers count
// as not answered rather than incorrect.
func GradeMultipleChoice(correctIndex, selectedIndex *int) *model.Evaluation {
	if correctIndex == nil || selectedIndex == nil {
		return nil
	}
	if *selectedIndex < 0 || *selectedIndex >= model.MCQOptionCount {
		return nil
	}

	isCorrect := *selectedIndex == *correctIndex
	score := 0
	grade := gradeIncorrect
	if isCorrect {
		score = 100
		grade = gradeCorrect
	}
	return &model.Evaluation{
		Correctness: model.IntPtr(score),
		Total:       model.IntPtr(score),
		Grade:       grade,
		IsCorrect:   model.BoolPtr(isCorrect),
	}
}

// GradeQuestion grades the answer to a multiple-choice question. Interview questions
// and type-mismatched answers yield nil.
func GradeQuestion(q model.Question, a model.Answer) *model.Evaluation {
	if q.Type != model.QuestionMCQ || len(q.Options) != model.MCQOptionCount {
		return nil
	}
	return GradeMultipleChoice(q.CorrectIndex, a.SelectedIndex)
}

// mean accumulates integer samples.
type mean struct {
	sum   int
	count int
}

func (m *mean) add(v int) {
	m.sum += v
	m.count++
}

// pct returns the rounded mean, or nil with no samples.
func (m mean) pct() *int {
	if m.count == 0 {
		return nil
	}
	return model.IntPtr(int(math.Round(float64(m.sum) / float64(m.count))))
}

func ratioPct(num, den int) *int {
	if den == 0 {
		return nil
	}
	return model.IntPtr(int(math.Round(float64(num) * 100 / float64(den))))
}

// Aggregate computes the session summary. Questions without an answer are excluded from
// every average; the overall score is the mean evaluation total over graded answers.
func Aggregate(s model.Session) model.Summary {
	sum := model.Summary{
		TotalQuestions: len(s.Questions),
		Categories:     make(map[model.Category]model.CategoryStats),
	}

	var overall, correctness, clarity, conciseness, confidence mean
	perCategory := make(map[model.Category]*mean)

	for _, q := range s.Questions {
		cat := sum.Categories[q.Category]
		cat.Questions++
		if perCategory[q.Category] == nil {
			perCategory[q.Category] = &mean{}
		}

		switch q.Type {
		case model.QuestionMCQ:
			sum.MCQ.Total++
		default:
			sum.Interview.Total++
		}

		a, ok := s.Answers[q.ID]
		if !ok {
			sum.Categories[q.Category] = cat
			continue
		}
		sum.Answered++
		cat.Answered++
		if q.Type == model.QuestionMCQ {
			sum.MCQ.Answered++
		} else {
			sum.Interview.Answered++
		}

		ev := a.Evaluation
		if ev == nil {
			sum.Categories[q.Category] = cat
			continue
		}
		sum.Graded++
		cat.Graded++

		total := 0
		if ev.Total != nil {
			total = *ev.Total
		}
		overall.add(total)
		perCategory[q.Category].add(total)

		if q.Type == model.QuestionMCQ && ev.IsCorrect != nil && *ev.IsCorrect {
			sum.MCQ.Correct++
		}
		addAxis(&correctness, ev.Correctness)
		addAxis(&clarity, ev.Clarity)
		addAxis(&conciseness, ev.Conciseness)
		addAxis(&confidence, ev.Confidence)

		sum.Categories[q.Category] = cat
	}

	sum.ScorePct = overall.pct()
	sum.Axes = model.AxisAverages{
		Correctness: correctness.pct(),
		Clarity:     clarity.pct(),
		Conciseness: conciseness.pct(),
		Confidence:  confidence.pct(),
	}
	sum.MCQ.AccuracyPct = ratioPct(sum.MCQ.Correct, sum.MCQ.Total)
	sum.Interview.CoveragePct = ratioPct(sum.Interview.Answered, sum.Interview.Total)
	for c, m := range perCategory {
		cat := sum.Categories[c]
		cat.ScorePct = m.pct()
		sum.Categories[c] = cat
	}
	return sum
}

// addAxis records an axis score; absent and zero values do not count.
func addAxis(m *mean, v *int) {
	if v == nil || *v == 0 {
		return
	}
	m.add(*v)
}
