package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"citymonitor/internal/dto"
	"citymonitor/internal/model"
)

// SnapshotRepository implements repository.SnapshotRepository for SQLite.
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new SQLite snapshot repository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Insert adds a new snapshot record to the database.
func (r *SnapshotRepository) Insert(snap *model.Snapshot) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO snapshots (filename, camera, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?)
	`, snap.Filename, snap.Camera, snap.Timestamp, snap.FilePath, snap.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a snapshot by its ID. A missing row yields nil, nil.
func (r *SnapshotRepository) GetByID(id int64) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getOne(`SELECT id, filename, camera, timestamp, filepath, filesize FROM snapshots WHERE id = ?`, id)
}

// GetByFilename retrieves a snapshot by its filename.
func (r *SnapshotRepository) GetByFilename(filename string) (*model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getOne(`SELECT id, filename, camera, timestamp, filepath, filesize FROM snapshots WHERE filename = ?`, filename)
}

func (r *SnapshotRepository) getOne(query string, arg interface{}) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := r.db.Conn().QueryRow(query, arg).
		Scan(&snap.ID, &snap.Filename, &snap.Camera, &snap.Timestamp, &snap.FilePath, &snap.FileSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snap, nil
}

// applyFilter appends the WHERE conditions shared by GetAll and GetTotalCount.
func applyFilter(query string, filter *dto.SnapshotFilters) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Camera != "" {
		query += " AND s.camera = ?"
		args = append(args, filter.Camera)
	}

	if filter.Object != "" {
		query += " AND d.object_name = ?"
		args = append(args, filter.Object)
	}

	if !filter.DateAfter.IsZero() {
		query += " AND DATE(s.timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		query += " AND DATE(s.timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	if !filter.TimeAfter.IsZero() {
		query += " AND TIME(s.timestamp) >= TIME(?)"
		args = append(args, filter.TimeAfter.Format("15:04:05"))
	}

	if !filter.TimeBefore.IsZero() {
		query += " AND TIME(s.timestamp) <= TIME(?)"
		args = append(args, filter.TimeBefore.Format("15:04:05"))
	}

	return query, args
}

// GetAll retrieves snapshots based on filter criteria, newest first.
func (r *SnapshotRepository) GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyFilter(`
		SELECT DISTINCT s.id, s.filename, s.camera, s.timestamp, s.filepath, s.filesize
		FROM snapshots s
		LEFT JOIN detections d ON s.id = d.snapshot_id
		WHERE 1=1
	`, filter)

	query += " ORDER BY s.timestamp DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Filename, &snap.Camera, &snap.Timestamp, &snap.FilePath, &snap.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// GetTotalCount returns the total count of snapshots matching the filter.
func (r *SnapshotRepository) GetTotalCount(filter *dto.SnapshotFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyFilter(`
		SELECT COUNT(DISTINCT s.id)
		FROM snapshots s
		LEFT JOIN detections d ON s.id = d.snapshot_id
		WHERE 1=1
	`, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	return count, nil
}

// GetDirectorySize returns the summed size of all stored snapshots in bytes.
func (r *SnapshotRepository) GetDirectorySize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM snapshots`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum snapshot sizes: %w", err)
	}
	return size, nil
}

// Delete removes a snapshot by its ID.
func (r *SnapshotRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	// detections first, in case foreign keys are off
	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE snapshot_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteByFilename removes a snapshot by its filename.
func (r *SnapshotRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var snapshotID int64
	err := r.db.Conn().QueryRow(`SELECT id FROM snapshots WHERE filename = ?`, filename).Scan(&snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get snapshot id: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE snapshot_id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots WHERE id = ?`, snapshotID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// DeleteAll removes all snapshots and their detections.
func (r *SnapshotRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}

	return nil
}
