package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/mockinterview/internal/model"
)

// Version identifies the generation prompt; bump it when the templates change.
const Version = "qgen-v1.0"

const (
	maxJDRunes     = 1500
	maxAnswerRunes = 10000
)

//go:embed templates/*.txt
var FS embed.FS

var (
	candidateAnswerRegex    = regexp.MustCompile(`(?i)</?\s*candidate-answer\b[^>]*>`)
	jobDescriptionRegex     = regexp.MustCompile(`(?i)</?\s*job-description\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
	spaceRunRegex           = regexp.MustCompile(`[ \t]+`)
)

var (
	loadOnce      sync.Once
	loadErr       error
	generateSys   string
	generateUser  *template.Template
	gradeTemplate *template.Template
)

// GenerateData holds template data for the question generation prompt.
type GenerateData struct {
	JD         string
	Style      string
	Difficulty string
	Count      int
}

// GradeData holds template data for the grading prompt.
type GradeData struct {
	JD       string
	Question string
	Answer   string
}

// Load parses the prompt templates from fsys. Only the first call has any effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		sys, err := fs.ReadFile(fsys, "templates/generate_system.txt")
		if err != nil {
			loadErr = fmt.Errorf("read generation system prompt: %w", err)
			return
		}
		generateSys = strings.TrimSpace(string(sys))

		if generateUser, err = parseFile(fsys, "templates/generate_user.txt"); err != nil {
			loadErr = err
			return
		}
		if gradeTemplate, err = parseFile(fsys, "templates/grade.txt"); err != nil {
			loadErr = err
			return
		}
	})
	return loadErr
}

func parseFile(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// BuildGenerate returns the system and user messages for question generation.
func BuildGenerate(req model.GenerateRequest) (system, user string, err error) {
	if generateUser == nil {
		if loadErr != nil {
			return "", "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", "", errors.New("templates not initialized: call Load first")
	}
	data := GenerateData{
		JD:         stripTags(Truncate(req.JD, maxJDRunes)),
		Style:      string(req.Style),
		Difficulty: string(req.Difficulty),
		Count:      req.Count,
	}
	var buf bytes.Buffer
	if err := generateUser.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return generateSys, strings.TrimSpace(buf.String()), nil
}

// BuildGrade returns the grading prompt for one free-text answer.
func BuildGrade(req model.GradeRequest) (string, error) {
	if gradeTemplate == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	data := GradeData{
		JD:       stripTags(req.JD),
		Question: req.Question,
		Answer:   sanitizeAnswer(req.Answer),
	}
	var buf bytes.Buffer
	if err := gradeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// CleanJD normalizes a pasted job description: carriage returns are dropped,
// runs of spaces and tabs become one space and every line is trimmed.
func CleanJD(raw string) string {
	s := strings.ReplaceAll(raw, "\r", "")
	s = spaceRunRegex.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Truncate cuts s to limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "…"
}

func stripTags(s string) string {
	s = jobDescriptionRegex.ReplaceAllString(s, "")
	s = candidateAnswerRegex.ReplaceAllString(s, "")
	return systemInstructionsRegex.ReplaceAllString(s, "")
}

func sanitizeAnswer(answer string) string {
	answer = strings.TrimSpace(stripTags(answer))

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
