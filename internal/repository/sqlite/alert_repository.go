package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"citymonitor/internal/dto"
	"citymonitor/internal/model"
)

// AlertRepository implements repository.AlertRepository for SQLite.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new SQLite alert repository.
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, title, description, location, timestamp, status, priority, law_reference, source, image_url, camera_id`

// Insert stores an alert. Empty status and priority fall back to new/medium.
func (r *AlertRepository) Insert(alert *model.Alert) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	status := alert.Status
	if status == "" {
		status = model.AlertStatusNew
	}
	priority := alert.Priority
	if priority == "" {
		priority = model.AlertPriorityMedium
	}

	var cameraID sql.NullInt64
	if alert.CameraID != nil {
		cameraID = sql.NullInt64{Int64: *alert.CameraID, Valid: true}
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO alerts (title, description, location, timestamp, status, priority, law_reference, source, image_url, camera_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, alert.Title, alert.Description, alert.Location, alert.Timestamp, string(status), string(priority),
		alert.LawReference, alert.Source, alert.ImageURL, cameraID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves an alert. A missing row yields nil, nil.
func (r *AlertRepository) GetByID(id int64) (*model.Alert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	alert, err := scanAlert(r.db.Conn().QueryRow(`SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

func alertConditions(query string, filter *dto.AlertFilters) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		query += " AND priority = ?"
		args = append(args, string(filter.Priority))
	}
	if filter.CameraID > 0 {
		query += " AND camera_id = ?"
		args = append(args, filter.CameraID)
	}
	return query, args
}

// GetAll lists alerts matching filter, newest first.
func (r *AlertRepository) GetAll(filter *dto.AlertFilters) ([]model.Alert, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := alertConditions(`SELECT `+alertColumns+` FROM alerts WHERE 1=1`, filter)
	query += " ORDER BY timestamp DESC, id DESC"
	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []model.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	return alerts, rows.Err()
}

// GetTotalCount counts alerts matching filter, ignoring paging.
func (r *AlertRepository) GetTotalCount(filter *dto.AlertFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := alertConditions(`SELECT COUNT(*) FROM alerts WHERE 1=1`, filter)
	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

func scanAlert(row rowScanner) (*model.Alert, error) {
	var (
		alert    model.Alert
		status   string
		priority string
		cameraID sql.NullInt64
	)
	err := row.Scan(&alert.ID, &alert.Title, &alert.Description, &alert.Location, &alert.Timestamp,
		&status, &priority, &alert.LawReference, &alert.Source, &alert.ImageURL, &cameraID)
	if err != nil {
		return nil, err
	}
	alert.Status = model.AlertStatus(status)
	alert.Priority = model.AlertPriority(priority)
	if cameraID.Valid {
		id := cameraID.Int64
		alert.CameraID = &id
	}
	return &alert, nil
}

// UpdateStatus moves an alert through its workflow.
func (r *AlertRepository) UpdateStatus(id int64, status model.AlertStatus) error {
	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().Exec(`UPDATE alerts SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	return requireRow(res, "alert", id)
}

// Delete removes an alert.
func (r *AlertRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM alerts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}
