package model

import "time"

// Scan is one accepted payload and what happened to it.
type Scan struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Payload   string    `json:"payload"`
	Format    string    `json:"format"`
	Sink      string    `json:"sink"`
	Camera    string    `json:"camera"`
	Reply     string    `json:"reply,omitempty"`
	Error     string    `json:"error,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}
