package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pavelanni/mockinterview/internal/model"
)

// Memory keeps sessions in process memory. Reads return deep copies so callers
// never observe later writes through a returned value.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
}

type memSession struct {
	mu      sync.Mutex
	session *model.Session
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*memSession)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) CreateSession(_ context.Context, in model.NewSession) (*model.Session, error) {
	questions, err := validateNewSession(in)
	if err != nil {
		return nil, err
	}
	s := &model.Session{
		ID:           newID(),
		UserID:       in.UserID,
		JD:           in.JD,
		Style:        in.Style,
		Difficulty:   in.Difficulty,
		NumQuestions: in.NumQuestions,
		CreatedAt:    now(),
		Questions:    questions,
		Answers:      make(map[string]model.Answer),
	}

	m.mu.Lock()
	m.sessions[s.ID] = &memSession{session: s}
	m.mu.Unlock()
	return cloneSession(s), nil
}

func (m *Memory) lookup(id string) *memSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func (m *Memory) GetSession(_ context.Context, id string) (*model.Session, error) {
	ms := m.lookup(id)
	if ms == nil {
		return nil, nil
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return cloneSession(ms.session), nil
}

func (m *Memory) ListSessions(_ context.Context) ([]model.Session, error) {
	return m.list(func(*model.Session) bool { return true }), nil
}

func (m *Memory) ListUserSessions(_ context.Context, userID string) ([]model.Session, error) {
	return m.list(func(s *model.Session) bool { return s.UserID == userID }), nil
}

func (m *Memory) list(keep func(*model.Session) bool) []model.Session {
	m.mu.RLock()
	entries := make([]*memSession, 0, len(m.sessions))
	for _, ms := range m.sessions {
		entries = append(entries, ms)
	}
	m.mu.RUnlock()

	out := make([]model.Session, 0, len(entries))
	for _, ms := range entries {
		ms.mu.Lock()
		if keep(ms.session) {
			out = append(out, *cloneSession(ms.session))
		}
		ms.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) AddAnswer(_ context.Context, sessionID, questionID string, p model.AnswerPayload) (*model.Answer, error) {
	if !p.Valid() {
		return nil, ErrInvalidAnswer
	}
	ms := m.lookup(sessionID)
	if ms == nil {
		return nil, nil
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.session.Question(questionID); !ok {
		return nil, nil
	}

	a, exists := ms.session.Answers[questionID]
	if !exists {
		a = model.Answer{ID: newID(), QuestionID: questionID, CreatedAt: now()}
	}
	a.Text = nil
	a.SelectedIndex = nil
	if p.Text != nil {
		a.Text = model.StringPtr(*p.Text)
	} else {
		a.SelectedIndex = model.IntPtr(*p.SelectedIndex)
	}
	a.Evaluation = nil
	ms.session.Answers[questionID] = a

	c := cloneAnswer(a)
	return &c, nil
}

func (m *Memory) AddEvaluation(_ context.Context, sessionID, questionID string, graded model.AnswerPayload, ev model.Evaluation) (*model.Evaluation, error) {
	if !graded.Valid() {
		return nil, ErrInvalidAnswer
	}
	ms := m.lookup(sessionID)
	if ms == nil {
		return nil, nil
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	a, ok := ms.session.Answers[questionID]
	if !ok || !a.Holds(graded) {
		return nil, nil
	}
	a.Evaluation = cloneEvaluation(&ev)
	ms.session.Answers[questionID] = a
	return cloneEvaluation(&ev), nil
}

func (m *Memory) RemoveAnswer(_ context.Context, sessionID, questionID string) (bool, error) {
	ms := m.lookup(sessionID)
	if ms == nil {
		return false, nil
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, ok := ms.session.Answers[questionID]; !ok {
		return false, nil
	}
	delete(ms.session.Answers, questionID)
	return true, nil
}

func (m *Memory) DeleteSession(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}

func (m *Memory) ClearSessions(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sessions)
	m.sessions = make(map[string]*memSession)
	return n, nil
}
