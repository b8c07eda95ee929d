package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	appI18n "github.com/pavelanni/mockinterview/internal/i18n"
	"github.com/pavelanni/mockinterview/internal/metrics"
)

// dailyCap consumes one unit of the caller's daily generation budget before
// the request reaches the generator. Limiter failures let the request through.
func (h *Handler) dailyCap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		res, err := h.limiter.Consume(r.Context(), callerKey(r))
		if err != nil {
			slog.Error("daily cap unavailable, allowing request", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Set("X-RateLimit-Limit-Day", strconv.Itoa(res.Limit))
		hdr.Set("X-RateLimit-Remaining-Day", strconv.Itoa(res.Remaining))
		hdr.Set("X-RateLimit-Reset-Day", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			metrics.DailyCapRejections.Inc()
			retry := res.RetryAfter(h.now())
			hdr.Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
			resetAt := res.ResetAt.Format(time.RFC3339)
			msg := appI18n.Td(r.Context(), "ErrRateLimited", map[string]any{
				"Limit":   res.Limit,
				"ResetAt": resetAt,
			})
			writeJSON(w, http.StatusTooManyRequests, envelope{Error: &apiError{
				Code:    CodeRateLimited,
				Message: msg,
				Details: map[string]any{
					"limit":             res.Limit,
					"resetAt":           resetAt,
					"retryAfterSeconds": int(retry / time.Second),
				},
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
