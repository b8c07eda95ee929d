package llm

import (
	"context"
	"errors"

	"github.com/pavelanni/mockinterview/internal/model"
)

type staticMCQ struct {
	text         string
	options      []string
	correctIndex int
}

var staticInterview = map[model.Difficulty][]string{
	model.DifficultyEasy:   {"What is an array?", "Explain OOP in simple terms."},
	model.DifficultyMedium: {"Explain REST APIs.", "What is a transaction in databases?"},
	model.DifficultyHard:   {"Design a URL shortener system.", "Explain the CAP theorem."},
}

var staticMultipleChoice = map[model.Difficulty][]staticMCQ{
	model.DifficultyEasy: {
		{"2 + 2 = ?", []string{"3", "4", "5", "6"}, 1},
	},
	model.DifficultyMedium: {
		{"Which SQL clause filters rows?", []string{"ORDER BY", "WHERE", "GROUP BY", "HAVING"}, 1},
	},
	model.DifficultyHard: {
		{"Time complexity of quicksort (average case)?", []string{"O(n)", "O(n log n)", "O(n^2)", "O(log n)"}, 1},
	},
}

// Static is a deterministic generator backed by small built-in question pools.
// It never fails and ignores the job description.
type Static struct{}

// Generate returns interview questions, then multiple-choice ones, as the
// style allows, capped at req.Count.
func (Static) Generate(_ context.Context, req model.GenerateRequest) ([]model.GeneratedQuestion, error) {
	var out []model.GeneratedQuestion

	if req.Style == model.StyleInterview || req.Style == model.StyleMix {
		pool := staticInterview[req.Difficulty]
		for i := 0; i < min(req.Count, len(pool)); i++ {
			out = append(out, model.GeneratedQuestion{
				Type:     model.QuestionInterview,
				Text:     pool[i],
				Category: model.CategoryTechnical,
			})
		}
	}

	if req.Style == model.StyleMCQ || req.Style == model.StyleMix {
		pool := staticMultipleChoice[req.Difficulty]
		for i := 0; i < min(req.Count, len(pool)); i++ {
			out = append(out, model.GeneratedQuestion{
				Type:         model.QuestionMCQ,
				Text:         pool[i].text,
				Category:     model.CategoryTechnical,
				Options:      append([]string(nil), pool[i].options...),
				CorrectIndex: model.IntPtr(pool[i].correctIndex),
			})
		}
	}

	if len(out) > req.Count {
		out = out[:req.Count]
	}
	return out, nil
}

// ErrGradingDisabled is returned by NoGrader.
var ErrGradingDisabled = errors.New("free-text grading is not configured")

// NoGrader is the Grader used without a language model. Every call fails,
// so free-text answers stay ungraded while multiple-choice scoring still works.
type NoGrader struct{}

func (NoGrader) Grade(context.Context, model.GradeRequest) (map[string]any, error) {
	return nil, ErrGradingDisabled
}
