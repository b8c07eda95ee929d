// Package handler serves the JSON API for interview sessions.
package handler

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	appI18n "github.com/pavelanni/mockinterview/internal/i18n"
	"github.com/pavelanni/mockinterview/internal/metrics"
	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/ratelimit"
	"github.com/pavelanni/mockinterview/internal/session"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sessions  *session.Service
	limiter   ratelimit.Limiter
	validate  *validator.Validate
	config    model.AppConfig
	jwtSecret string
	now       func() time.Time
}

// Options carries optional collaborators of a Handler.
type Options struct {
	// Limiter caps session creation per caller. Nil disables the cap.
	Limiter ratelimit.Limiter
	// JWTSecret enables bearer token identity. When empty, callers identify
	// with the X-User-ID header.
	JWTSecret string
}

// New creates a new Handler and prepares request validation.
func New(svc *session.Service, cfg model.AppConfig, opts Options) (*Handler, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, fmt.Errorf("register notblank validation: %w", err)
	}
	return &Handler{
		sessions:  svc,
		limiter:   opts.Limiter,
		validate:  v,
		config:    cfg,
		jwtSecret: opts.JWTSecret,
		now:       time.Now,
	}, nil
}

// Router builds the full HTTP handler with the standard middleware stack.
func (h *Handler) Router(lang string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	r.Handle("/metrics", metrics.Handler())
	r.Route("/api", h.Routes)
	return r
}

// Routes registers the API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/config", h.handleConfig)

	r.Group(func(r chi.Router) {
		r.Use(h.identity)

		r.With(h.dailyCap).Post("/sessions", h.handleCreateSession)
		r.Get("/sessions", h.handleListSessions)
		r.With(h.requireClearEnabled).Delete("/sessions", h.handleClearSessions)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.handleGetSession)
			r.Delete("/", h.handleDeleteSession)
			r.Put("/answers/{questionID}", h.handleSubmitAnswer)
			r.Delete("/answers/{questionID}", h.handleClearAnswer)
			r.Post("/finish", h.handleFinish)
			r.Get("/results", h.handleResults)
		})
	})
}

type createSessionRequest struct {
	JD           string           `json:"jd" validate:"required,notblank,min=5,max=20000"`
	Style        model.Style      `json:"style" validate:"omitempty,oneof=interview mcq mix"`
	Difficulty   model.Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	NumQuestions int              `json:"numQuestions" validate:"omitempty,min=1,max=30"`
}

type createSessionResponse struct {
	SessionID    string           `json:"sessionId"`
	NumQuestions int              `json:"numQuestions"`
	Questions    []model.Question `json:"questions"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := h.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	sess, err := h.sessions.Create(r.Context(), session.CreateParams{
		UserID:       model.UserIDFromContext(r.Context()),
		JD:           req.JD,
		Style:        req.Style,
		Difficulty:   req.Difficulty,
		NumQuestions: req.NumQuestions,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, createSessionResponse{
		SessionID:    sess.ID,
		NumQuestions: sess.NumQuestions,
		Questions:    sess.Questions,
	})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context(), model.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sessions)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"), model.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := h.sessions.Delete(r.Context(), id, model.UserIDFromContext(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"deleted": true,
		"message": appI18n.T(r.Context(), "SessionDeleted"),
	})
}

type answerRequest struct {
	Text          *string `json:"text" validate:"omitempty,max=20000"`
	SelectedIndex *int    `json:"selectedIndex"`
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := h.decode(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a, err := h.sessions.SubmitAnswer(r.Context(),
		chi.URLParam(r, "sessionID"),
		chi.URLParam(r, "questionID"),
		model.UserIDFromContext(r.Context()),
		model.AnswerPayload{Text: req.Text, SelectedIndex: req.SelectedIndex},
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, a)
}

func (h *Handler) handleClearAnswer(w http.ResponseWriter, r *http.Request) {
	removed, err := h.sessions.ClearAnswer(r.Context(),
		chi.URLParam(r, "sessionID"),
		chi.URLParam(r, "questionID"),
		model.UserIDFromContext(r.Context()),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	sum, err := h.sessions.Finish(r.Context(), chi.URLParam(r, "sessionID"), model.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sum)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Results(r.Context(), chi.URLParam(r, "sessionID"), model.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeData(w, http.StatusOK, res)
}
