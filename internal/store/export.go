package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/mockinterview/internal/model"
	"github.com/pavelanni/mockinterview/internal/scoring"
)

// Export builds export-ready results from all sessions, newest first.
func Export(ctx context.Context, s Store) ([]model.SessionResult, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	results := make([]model.SessionResult, 0, len(sessions))
	for _, sess := range sessions {
		results = append(results, model.SessionResult{
			Session: sess,
			Summary: scoring.Aggregate(sess),
		})
	}
	return results, nil
}
