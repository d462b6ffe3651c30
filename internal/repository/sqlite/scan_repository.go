package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"qrscanner/internal/model"
)

// ErrScanNotFound is returned when no scan matches the query.
var ErrScanNotFound = errors.New("scan not found")

// ScanRepository implements repository.ScanRepository for SQLite.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new SQLite scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `id, session_id, payload, format, sink, camera, reply, error, scanned_at`

// Insert adds a new scan record to the database.
func (r *ScanRepository) Insert(scan *model.Scan) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO scans (`+scanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.ID, scan.SessionID, scan.Payload, scan.Format, scan.Sink, scan.Camera, scan.Reply, scan.Error, scan.ScannedAt)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}
	return nil
}

// UpdateReply stores the server reply or the delivery error of a scan.
func (r *ScanRepository) UpdateReply(id, reply, errText string) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`UPDATE scans SET reply = ?, error = ? WHERE id = ?`, reply, errText, id)
	if err != nil {
		return fmt.Errorf("failed to update scan: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrScanNotFound
	}
	return nil
}

// GetByID retrieves a scan by its ID.
func (r *ScanRepository) GetByID(id string) (*model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)

	var scan model.Scan
	if err := scanRow(row, &scan); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScanNotFound
		}
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}
	return &scan, nil
}

// GetRecent returns the newest scans first.
func (r *ScanRepository) GetRecent(limit int) ([]model.Scan, error) {
	if limit <= 0 {
		limit = 50
	}

	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT `+scanColumns+` FROM scans ORDER BY scanned_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// GetBySession returns the scans of one screen session in order.
func (r *ScanRepository) GetBySession(sessionID string) ([]model.Scan, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT `+scanColumns+` FROM scans WHERE session_id = ? ORDER BY scanned_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// Count returns the number of stored scans.
func (r *ScanRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM scans`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}

// DeleteAll removes every scan.
func (r *ScanRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM scans`); err != nil {
		return fmt.Errorf("failed to delete scans: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner, scan *model.Scan) error {
	return row.Scan(&scan.ID, &scan.SessionID, &scan.Payload, &scan.Format, &scan.Sink,
		&scan.Camera, &scan.Reply, &scan.Error, &scan.ScannedAt)
}

func collect(rows *sql.Rows) ([]model.Scan, error) {
	var scans []model.Scan
	for rows.Next() {
		var scan model.Scan
		if err := scanRow(rows, &scan); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scans: %w", err)
	}
	return scans, nil
}
