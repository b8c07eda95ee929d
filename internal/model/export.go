package model

import "time"

// SessionsExport is the top-level JSON structure written by the export command.
type SessionsExport struct {
	ExportedAt time.Time       `json:"exportedAt"`
	Store      string          `json:"store"`
	Count      int             `json:"count"`
	Results    []SessionResult `json:"results"`
}

// SessionResult pairs a session snapshot with its aggregate summary.
type SessionResult struct {
	Session Session `json:"session"`
	Summary Summary `json:"summary"`
}
