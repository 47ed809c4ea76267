package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"citymonitor/internal/model"
	"citymonitor/internal/repository"
)

// CameraRepository implements repository.CameraRepository for SQLite.
type CameraRepository struct {
	db *DB
}

// NewCameraRepository creates a new SQLite camera repository.
func NewCameraRepository(db *DB) *CameraRepository {
	return &CameraRepository{db: db}
}

const cameraColumns = `id, name, stream_url, location, active, latitude, longitude, description, created_at, updated_at`

// Insert registers a camera.
func (r *CameraRepository) Insert(cam *model.Camera) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO cameras (name, stream_url, location, active, latitude, longitude, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, cam.Name, cam.StreamURL, cam.Location, cam.Active, cam.Latitude, cam.Longitude, cam.Description)
	if err != nil {
		return 0, fmt.Errorf("failed to insert camera: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a camera by its ID. A missing row yields nil, nil.
func (r *CameraRepository) GetByID(id int64) (*model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getOne(`SELECT `+cameraColumns+` FROM cameras WHERE id = ?`, id)
}

// GetByName retrieves a camera by its unique name.
func (r *CameraRepository) GetByName(name string) (*model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getOne(`SELECT `+cameraColumns+` FROM cameras WHERE name = ?`, name)
}

func (r *CameraRepository) getOne(query string, arg interface{}) (*model.Camera, error) {
	cam, err := scanCamera(r.db.Conn().QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return cam, nil
}

// GetAll lists every camera ordered by name.
func (r *CameraRepository) GetAll() ([]model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.list(`SELECT ` + cameraColumns + ` FROM cameras ORDER BY name`)
}

// GetActive lists the cameras that should be monitored.
func (r *CameraRepository) GetActive() ([]model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.list(`SELECT ` + cameraColumns + ` FROM cameras WHERE active = 1 ORDER BY id`)
}

func (r *CameraRepository) list(query string) ([]model.Camera, error) {
	rows, err := r.db.Conn().Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	cameras := []model.Camera{}
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, *cam)
	}
	return cameras, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCamera(row rowScanner) (*model.Camera, error) {
	var cam model.Camera
	err := row.Scan(&cam.ID, &cam.Name, &cam.StreamURL, &cam.Location, &cam.Active,
		&cam.Latitude, &cam.Longitude, &cam.Description, &cam.CreatedAt, &cam.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cam, nil
}

// SetActive switches monitoring of a camera on or off.
func (r *CameraRepository) SetActive(id int64, active bool) error {
	r.db.Lock()
	defer r.db.Unlock()

	res, err := r.db.Conn().Exec(`UPDATE cameras SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update camera: %w", err)
	}
	return requireRow(res, "camera", id)
}

// Delete removes a camera. Its alerts keep a NULL camera_id.
func (r *CameraRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM cameras WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete camera: %w", err)
	}
	return nil
}

// ErrNotFound aliases repository.ErrNotFound for callers of this package.
var ErrNotFound = repository.ErrNotFound

func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
