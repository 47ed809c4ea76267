package sqlite

import (
	"fmt"
	"strings"

	"citymonitor/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch stores the boxes of one or more snapshots in a single
// transaction. Rows without an object name are rejected.
func (r *DetectionRepository) InsertBatch(detections []model.Detection) error {
	if len(detections) == 0 {
		return nil
	}
	for _, det := range detections {
		if strings.TrimSpace(det.ObjectName) == "" {
			return fmt.Errorf("detection for snapshot %d has no object name", det.SnapshotID)
		}
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO detections (snapshot_id, object_name, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.SnapshotID, det.ObjectName, det.X, det.Y, det.Width, det.Height, det.Confidence); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	return tx.Commit()
}

// GetBySnapshotID returns the boxes of one snapshot, most confident first.
func (r *DetectionRepository) GetBySnapshotID(snapshotID int64) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, snapshot_id, object_name, x, y, width, height, confidence
		FROM detections WHERE snapshot_id = ?
		ORDER BY confidence DESC, id
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []model.Detection{}
	for rows.Next() {
		var det model.Detection
		if err := rows.Scan(&det.ID, &det.SnapshotID, &det.ObjectName, &det.X, &det.Y, &det.Width, &det.Height, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// ObjectsBySnapshots maps each snapshot id to its distinct object names,
// so a gallery page needs one query instead of one per snapshot.
func (r *DetectionRepository) ObjectsBySnapshots(snapshotIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string, len(snapshotIDs))
	if len(snapshotIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(snapshotIDs)), ",")
	args := make([]interface{}, len(snapshotIDs))
	for i, id := range snapshotIDs {
		args[i] = id
	}

	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT DISTINCT snapshot_id, object_name FROM detections
		WHERE snapshot_id IN (`+placeholders+`)
		ORDER BY snapshot_id, object_name
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot object: %w", err)
		}
		result[id] = append(result[id], name)
	}

	return result, rows.Err()
}

// ObjectNames lists the distinct object names recorded by camera, or by
// every camera when camera is empty.
func (r *DetectionRepository) ObjectNames(camera string) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT DISTINCT d.object_name
		FROM detections d JOIN snapshots s ON s.id = d.snapshot_id
		WHERE ? = '' OR s.camera = ?
		ORDER BY d.object_name
	`, camera, camera)
	if err != nil {
		return nil, fmt.Errorf("failed to query object names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan object name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// ObjectCounts summarises detections per object class, busiest first.
// An empty camera covers every camera.
func (r *DetectionRepository) ObjectCounts(camera string) ([]model.ObjectCount, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT d.object_name, COUNT(*), COUNT(DISTINCT d.snapshot_id), MAX(d.confidence)
		FROM detections d JOIN snapshots s ON s.id = d.snapshot_id
		WHERE ? = '' OR s.camera = ?
		GROUP BY d.object_name
		ORDER BY COUNT(*) DESC, d.object_name
	`, camera, camera)
	if err != nil {
		return nil, fmt.Errorf("failed to count objects: %w", err)
	}
	defer rows.Close()

	counts := []model.ObjectCount{}
	for rows.Next() {
		var c model.ObjectCount
		if err := rows.Scan(&c.ObjectName, &c.Detections, &c.Snapshots, &c.MaxConfidence); err != nil {
			return nil, fmt.Errorf("failed to scan object count: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}
