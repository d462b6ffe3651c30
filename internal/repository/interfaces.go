package repository

import (
	"qrscanner/internal/model"
)

// ScanRepository defines the interface for scan history operations.
type ScanRepository interface {
	// Create operations
	Insert(scan *model.Scan) error

	// Update operations
	UpdateReply(id, reply, errText string) error

	// Read operations
	GetByID(id string) (*model.Scan, error)
	GetRecent(limit int) ([]model.Scan, error)
	GetBySession(sessionID string) ([]model.Scan, error)
	Count() (int, error)

	// Delete operations
	DeleteAll() error
}
