package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "ErrNotFound", "Session or question not found."},
		{"en", "ErrInvalidInput", "The request is invalid."},
		{"ru", "ErrNotFound", "Сессия или вопрос не найдены."},
		{"ru", "SessionDeleted", "Сессия удалена."},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	if got := Tp(ctx, "SessionsCleared", 1); got != "1 session cleared." {
		t.Errorf("Tp(SessionsCleared, 1) = %q", got)
	}
	if got := Tp(ctx, "SessionsCleared", 5); got != "5 sessions cleared." {
		t.Errorf("Tp(SessionsCleared, 5) = %q", got)
	}

	ctx = initLang(t, "ru")
	if got := Tp(ctx, "SessionsCleared", 5); got != "Удалено 5 сессий." {
		t.Errorf("Tp(SessionsCleared, 5) ru = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")
	got := Td(ctx, "ErrRateLimited", map[string]any{"Limit": 200, "ResetAt": "2026-03-11T00:00:00+05:30"})
	want := "Daily limit of 200 question sets reached. Try again after 2026-03-11T00:00:00+05:30."
	if got != want {
		t.Errorf("Td(ErrRateLimited) = %q, want %q", got, want)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")
	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want the id back", got)
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		header string
		want   string
	}{
		{"ru-RU,ru;q=0.9,en;q=0.8", "Сессия удалена."},
		{"de-DE,de;q=0.9", "Session deleted."},
		{"", "Session deleted."},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			var got string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = T(r.Context(), "SessionDeleted")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("Accept-Language %q: got %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
