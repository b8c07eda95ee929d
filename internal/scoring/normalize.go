package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pavelanni/mockinterview/internal/model"
)

// NormalizeGrading turns a grader's loosely typed JSON object into an Evaluation.
// Numbers are clamped to [0,100] and rounded, feedback lists keep at most
// model.MaxFeedbackItems non-blank strings, and anything of the wrong type is dropped.
func NormalizeGrading(raw map[string]any) model.Evaluation {
	ev := model.Evaluation{
		Correctness:  score(raw["correctness"]),
		Clarity:      score(raw["clarity"]),
		Conciseness:  score(raw["conciseness"]),
		Confidence:   score(raw["confidence"]),
		Total:        score(raw["total"]),
		Grade:        text(raw["grade"]),
		Strengths:    list(raw["strengths"]),
		Improvements: list(raw["improvements"]),
		FollowUp:     text(raw["followUp"]),
		Explanation:  text(raw["explanation"]),
	}
	if b, ok := raw["isCorrect"].(bool); ok {
		ev.IsCorrect = model.BoolPtr(b)
	}
	return ev
}

func score(v any) *int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return model.IntPtr(int(math.Max(0, math.Min(100, math.Round(f)))))
}

func text(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func list(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		s := text(item)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == model.MaxFeedbackItems {
			break
		}
	}
	return out
}
