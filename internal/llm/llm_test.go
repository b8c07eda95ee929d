package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pavelanni/mockinterview/internal/model"
)

func rawItems(t *testing.T, js string) []json.RawMessage {
	t.Helper()
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(js), &items); err != nil {
		t.Fatalf("unmarshal items: %v", err)
	}
	return items
}

func TestValidateItems(t *testing.T) {
	items := rawItems(t, `[
		{"type":"interview","text":"Explain goroutine scheduling.","category":"technical"},
		{"type":"interview","text":"short"},
		{"type":"mcq","text":"Which keyword starts a goroutine?","options":["go","run","spawn","async"],"correctIndex":0},
		{"type":"mcq","text":"Which package formats output?","options":["fmt","os","io"],"correctIndex":0},
		{"type":"mcq","text":"Which index is out of range here?","options":["a","b","c","d"],"correctIndex":4},
		{"type":"mcq","text":"Which index is fractional here?","options":["a","b","c","d"],"correctIndex":1.5},
		{"type":"interview","text":"Tell me about a hard deadline.","options":["a","b","c","d"]},
		{"type":"essay","text":"Write an essay about Go."},
		{"type":"interview","text":"Why do you want this role?","category":"motivation"},
		{"type":"interview","text":"Describe a conflict with a teammate.","category":"behavioral"},
		{"type":"interview","text":"How do you prioritize a backlog?"},
		"not an object"
	]`)

	got := ValidateItems(items, 10)
	if len(got) != 4 {
		t.Fatalf("expected 4 valid items, got %d: %+v", len(got), got)
	}
	if got[0].Type != model.QuestionInterview || got[0].Category != model.CategoryTechnical {
		t.Errorf("unexpected first item: %+v", got[0])
	}
	if got[1].Type != model.QuestionMCQ || got[1].CorrectIndex == nil || *got[1].CorrectIndex != 0 || len(got[1].Options) != 4 {
		t.Errorf("unexpected mcq item: %+v", got[1])
	}
	if got[2].Category != model.CategoryBehavioral {
		t.Errorf("expected behavioral category, got %s", got[2].Category)
	}
	if got[3].Category != model.CategoryTechnical {
		t.Errorf("missing category should default to technical, got %s", got[3].Category)
	}

	capped := ValidateItems(items, 2)
	if len(capped) != 2 {
		t.Errorf("expected cap at 2, got %d", len(capped))
	}
	if none := ValidateItems(items, 0); len(none) != 0 {
		t.Errorf("expected no items for zero limit, got %d", len(none))
	}
}

func TestValidateItemsShapeRules(t *testing.T) {
	tests := []struct {
		name string
		item string
		keep bool
	}{
		{"mcq without correctIndex", `{"type":"mcq","text":"Which keyword defers a call?","options":["a","b","c","d"]}`, false},
		{"mcq without options", `{"type":"mcq","text":"Which keyword defers a call?","correctIndex":1}`, false},
		{"mcq with empty options", `{"type":"mcq","text":"Which keyword defers a call?","options":[],"correctIndex":1}`, false},
		{"mcq negative index", `{"type":"mcq","text":"Which keyword defers a call?","options":["a","b","c","d"],"correctIndex":-1}`, false},
		{"mcq index as string", `{"type":"mcq","text":"Which keyword defers a call?","options":["a","b","c","d"],"correctIndex":"1"}`, false},
		{"mcq last index", `{"type":"mcq","text":"Which keyword defers a call?","options":["a","b","c","d"],"correctIndex":3}`, true},
		{"interview with correctIndex", `{"type":"interview","text":"Walk me through a rollout.","correctIndex":0}`, false},
		{"missing type", `{"text":"Walk me through a rollout."}`, false},
		{"padded short text", `{"type":"interview","text":"   tiny   "}`, false},
		{"text at upper bound", `{"type":"interview","text":"` + strings.Repeat("é", 400) + `"}`, true},
		{"text over upper bound", `{"type":"interview","text":"` + strings.Repeat("é", 401) + `"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateItems(rawItems(t, "["+tt.item+"]"), 1)
			if kept := len(got) == 1; kept != tt.keep {
				t.Errorf("expected keep=%v, got %+v", tt.keep, got)
			}
		})
	}
}

func TestStaticGenerate(t *testing.T) {
	tests := []struct {
		name      string
		style     model.Style
		diff      model.Difficulty
		count     int
		wantTypes []model.QuestionType
	}{
		{"interview easy", model.StyleInterview, model.DifficultyEasy, 5,
			[]model.QuestionType{model.QuestionInterview, model.QuestionInterview}},
		{"mcq medium", model.StyleMCQ, model.DifficultyMedium, 5,
			[]model.QuestionType{model.QuestionMCQ}},
		{"mix hard", model.StyleMix, model.DifficultyHard, 5,
			[]model.QuestionType{model.QuestionInterview, model.QuestionInterview, model.QuestionMCQ}},
		{"mix capped", model.StyleMix, model.DifficultyHard, 1,
			[]model.QuestionType{model.QuestionInterview}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Static{}.Generate(context.Background(), model.GenerateRequest{
				JD: "anything", Style: tt.style, Difficulty: tt.diff, Count: tt.count,
			})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(got) != len(tt.wantTypes) {
				t.Fatalf("expected %d items, got %d", len(tt.wantTypes), len(got))
			}
			for i, q := range got {
				if q.Type != tt.wantTypes[i] {
					t.Errorf("item %d: expected %s, got %s", i, tt.wantTypes[i], q.Type)
				}
				if q.Type == model.QuestionMCQ && (len(q.Options) != 4 || q.CorrectIndex == nil) {
					t.Errorf("item %d: malformed mcq %+v", i, q)
				}
			}
		})
	}
}

type stubGenerator struct {
	items []model.GeneratedQuestion
	err   error
	calls int
}

func (s *stubGenerator) Generate(context.Context, model.GenerateRequest) ([]model.GeneratedQuestion, error) {
	s.calls++
	return s.items, s.err
}

func TestFallback(t *testing.T) {
	one := []model.GeneratedQuestion{{Type: model.QuestionInterview, Text: "Primary question?", Category: model.CategoryRole}}
	req := model.GenerateRequest{JD: "jd text", Style: model.StyleInterview, Difficulty: model.DifficultyEasy, Count: 3}

	tests := []struct {
		name         string
		primary      *stubGenerator
		wantFallback bool
	}{
		{"primary ok", &stubGenerator{items: one}, false},
		{"primary error", &stubGenerator{err: errors.New("upstream down")}, true},
		{"primary empty", &stubGenerator{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secondary := &stubGenerator{items: []model.GeneratedQuestion{{Type: model.QuestionInterview, Text: "Fallback question?"}}}
			got, err := WithFallback(tt.primary, secondary).Generate(context.Background(), req)
			if err != nil {
				t.Fatalf("fallback path must not fail: %v", err)
			}
			if tt.wantFallback {
				if secondary.calls != 1 || got[0].Text != "Fallback question?" {
					t.Errorf("expected fallback result, got %+v (calls=%d)", got, secondary.calls)
				}
			} else if secondary.calls != 0 || got[0].Text != "Primary question?" {
				t.Errorf("expected primary result, got %+v (calls=%d)", got, secondary.calls)
			}
		})
	}
}

func TestParseObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		total   float64
	}{
		{"plain", `{"total": 70}`, false, 70},
		{"wrapped in prose", "Here is the score:\n```json\n{\"total\": 55, \"grade\": \"C\"}\n```", false, 55},
		{"no object", "I cannot grade this.", true, 0},
		{"array", `[1,2,3]`, true, 0},
		{"broken", `{"total": }`, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseObject(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Fatalf("expected ErrUnparseable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseObject: %v", err)
			}
			if got["total"] != tt.total {
				t.Errorf("expected total %v, got %v", tt.total, got["total"])
			}
		})
	}
}

// fakeOpenAI serves chat completions with a fixed content string and records
// the last request body.
func fakeOpenAI(t *testing.T, content string, lastBody *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		if lastBody != nil {
			*lastBody = string(b)
		}
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientGenerate(t *testing.T) {
	content := `{"items":[
		{"type":"interview","text":"How does the Go scheduler work?","category":"technical"},
		{"type":"mcq","text":"Which isolation level prevents dirty reads?","options":["Read uncommitted","Read committed","None","Chaos"],"correctIndex":1},
		{"type":"mcq","text":"Broken item with three options","options":["a","b","c"],"correctIndex":1}
	]}`
	var body string
	srv := fakeOpenAI(t, content, &body)

	c, err := New(srv.URL+"/v1", "test-key", "gen-model", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Generate(context.Background(), model.GenerateRequest{
		JD: "Go backend engineer", Style: model.StyleMix, Difficulty: model.DifficultyMedium, Count: 5,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 valid items, got %d", len(got))
	}
	if !strings.Contains(body, `"json_object"`) {
		t.Error("request should use JSON object response format")
	}
	if !strings.Contains(body, "gen-model") || !strings.Contains(body, "Go backend engineer") {
		t.Error("request should carry model name and job description")
	}
}

func TestClientGenerateNoValidItems(t *testing.T) {
	srv := fakeOpenAI(t, `{"items":[{"type":"mcq","text":"x"}]}`, nil)
	c, err := New(srv.URL+"/v1", "k", "m", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Generate(context.Background(), model.GenerateRequest{JD: "jd", Style: model.StyleMCQ, Difficulty: model.DifficultyEasy, Count: 2}); err == nil {
		t.Error("expected error when no item validates")
	}
}

func TestClientGrade(t *testing.T) {
	var body string
	srv := fakeOpenAI(t, `{"correctness": 80, "total": 75, "grade": "B", "strengths": ["clear"]}`, &body)
	c, err := New(srv.URL+"/v1", "k", "gen-model", "eval-model")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Grade(context.Background(), model.GradeRequest{
		JD: "Backend role", Question: "Explain the CAP theorem.", Answer: "Pick two of three.",
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if got["total"] != float64(75) || got["grade"] != "B" {
		t.Errorf("unexpected grading payload: %v", got)
	}
	if !strings.Contains(body, "eval-model") {
		t.Error("grading should use the evaluation model")
	}
	if !strings.Contains(body, "Pick two of three.") {
		t.Error("grading prompt should carry the answer")
	}
}

func TestClientGradeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded","type":"server_error"}}`, http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/v1", "k", "m", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Grade(context.Background(), model.GradeRequest{JD: "jd", Question: "q?", Answer: "a"}); err == nil {
		t.Error("expected error from failing upstream")
	}
}

func TestNoGrader(t *testing.T) {
	if _, err := (NoGrader{}).Grade(context.Background(), model.GradeRequest{Question: "q?", Answer: "a"}); !errors.Is(err, ErrGradingDisabled) {
		t.Errorf("expected ErrGradingDisabled, got %v", err)
	}
}
