package llm

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/mockinterview/internal/model"
)

var itemValidator = validator.New(validator.WithRequiredStructEnabled())

// generatedItem is one generated question as the model returns it. A
// fractional correctIndex fails to decode into *int.
type generatedItem struct {
	Type         string   `json:"type" validate:"oneof=interview mcq"`
	Text         string   `json:"text" validate:"min=8,max=400"`
	Category     string   `json:"category" validate:"omitempty,oneof=technical behavioral role"`
	Options      []string `json:"options" validate:"required_if=Type mcq,excluded_unless=Type mcq,omitempty,len=4"`
	CorrectIndex *int     `json:"correctIndex" validate:"required_if=Type mcq,excluded_unless=Type mcq,omitempty,min=0,max=3"`
}

// ValidateItems decodes generated items, drops malformed ones and keeps at most
// limit of the rest, in order.
func ValidateItems(items []json.RawMessage, limit int) []model.GeneratedQuestion {
	out := make([]model.GeneratedQuestion, 0, min(len(items), max(limit, 0)))
	for i, raw := range items {
		if len(out) >= limit {
			break
		}
		var it generatedItem
		if err := json.Unmarshal(raw, &it); err != nil {
			slog.Debug("dropping undecodable item", "index", i, "error", err)
			continue
		}
		it.Text = strings.TrimSpace(it.Text)
		if err := itemValidator.Struct(it); err != nil {
			slog.Debug("dropping malformed item", "index", i, "reason", dropReason(err))
			continue
		}
		out = append(out, it.question())
	}
	return out
}

func (it generatedItem) question() model.GeneratedQuestion {
	q := model.GeneratedQuestion{
		Type:     model.QuestionType(it.Type),
		Text:     it.Text,
		Category: model.Category(it.Category),
	}
	if q.Category == "" {
		q.Category = model.CategoryTechnical
	}
	if q.Type == model.QuestionMCQ {
		q.Options = append([]string(nil), it.Options...)
		q.CorrectIndex = model.IntPtr(*it.CorrectIndex)
	}
	return q
}

func dropReason(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() == "" {
		return fe.Field() + " " + fe.Tag()
	}
	return fe.Field() + " " + fe.Tag() + "=" + fe.Param()
}
