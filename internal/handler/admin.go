package handler

import (
	"net/http"
	"time"

	appI18n "github.com/pavelanni/mockinterview/internal/i18n"
	"github.com/pavelanni/mockinterview/internal/llm/prompts"
	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/session"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"time":        h.now().UTC().Format(time.RFC3339),
		"llmProvider": h.config.LLMProvider,
		"llmModel":    h.config.LLMModel,
		"version":     h.config.Version,
	})
}

type configResponse struct {
	MaxQuestions     int                `json:"maxQuestions"`
	DefaultQuestions int                `json:"defaultQuestions"`
	Styles           []model.Style      `json:"styles"`
	Difficulties     []model.Difficulty `json:"difficulties"`
	DailyCap         int                `json:"dailyCap"`
	DailyCapTimezone string             `json:"dailyCapTimezone"`
	AllowClear       bool               `json:"allowClear"`
	PromptVersion    string             `json:"promptVersion"`
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, configResponse{
		MaxQuestions:     session.MaxNumQuestions,
		DefaultQuestions: session.DefaultNumQuestions,
		Styles:           []model.Style{model.StyleInterview, model.StyleMCQ, model.StyleMix},
		Difficulties:     []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard},
		DailyCap:         h.config.DailyCap,
		DailyCapTimezone: h.config.DailyCapTimezone,
		AllowClear:       h.config.AllowClear,
		PromptVersion:    prompts.Version,
	})
}

func (h *Handler) handleClearSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.sessions.Clear(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"cleared": n,
		"message": appI18n.Tp(r.Context(), "SessionsCleared", n),
	})
}
