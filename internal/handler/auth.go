package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/pavelanni/mockinterview/internal/auth"
	"github.com/pavelanni/mockinterview/internal/model"
)

const (
	userIDHeader   = "X-User-ID"
	maxUserIDBytes = 128
)

// identity resolves the caller's user id and stores it in the request
// context. A bearer token, when present, must verify. Without a configured
// JWT secret the X-User-ID header is trusted as an opaque id. Callers with
// neither are anonymous.
func (h *Handler) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := ""
		if authz := r.Header.Get("Authorization"); authz != "" {
			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok || h.jwtSecret == "" {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "ErrUnauthorized", nil)
				return
			}
			claims, err := auth.ParseToken(h.jwtSecret, strings.TrimSpace(token))
			if err != nil {
				slog.Debug("rejected bearer token", "error", err)
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "ErrUnauthorized", nil)
				return
			}
			userID = claims.UserID()
		} else if h.jwtSecret == "" {
			userID = strings.TrimSpace(r.Header.Get(userIDHeader))
			if len(userID) > maxUserIDBytes {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "ErrUnauthorized", nil)
				return
			}
		}

		ctx := model.ContextWithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireClearEnabled gates the bulk delete endpoint behind configuration.
func (h *Handler) requireClearEnabled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.config.AllowClear {
			writeError(w, r, http.StatusForbidden, CodeForbidden, "ErrForbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerKey names the rate limit bucket: the user id when known, else the
// client address. RealIP middleware has already applied X-Forwarded-For.
func callerKey(r *http.Request) string {
	if id := model.UserIDFromContext(r.Context()); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
