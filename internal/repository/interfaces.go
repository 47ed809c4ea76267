package repository

import (
	"citymonitor/internal/dto"
	"citymonitor/internal/model"
)

// CameraRepository defines the interface for camera data operations.
type CameraRepository interface {
	Insert(cam *model.Camera) (int64, error)

	GetByID(id int64) (*model.Camera, error)
	GetByName(name string) (*model.Camera, error)
	GetAll() ([]model.Camera, error)
	GetActive() ([]model.Camera, error)

	SetActive(id int64, active bool) error
	Delete(id int64) error
}

// AlertRepository defines the interface for alert data operations.
type AlertRepository interface {
	Insert(alert *model.Alert) (int64, error)

	GetByID(id int64) (*model.Alert, error)
	GetAll(filter *dto.AlertFilters) ([]model.Alert, error)
	GetTotalCount(filter *dto.AlertFilters) (int, error)

	UpdateStatus(id int64, status model.AlertStatus) error
	Delete(id int64) error
}

// SnapshotRepository defines the interface for snapshot data operations.
type SnapshotRepository interface {
	// Create operations
	Insert(snap *model.Snapshot) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Snapshot, error)
	GetByFilename(filename string) (*model.Snapshot, error)
	GetAll(filter *dto.SnapshotFilters) ([]model.Snapshot, error)
	GetTotalCount(filter *dto.SnapshotFilters) (int, error)
	GetDirectorySize() (int64, error)

	// Delete operations
	Delete(id int64) error
	DeleteByFilename(filename string) error
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
// Detections are removed with their snapshot.
type DetectionRepository interface {
	InsertBatch(detections []model.Detection) error

	GetBySnapshotID(snapshotID int64) ([]model.Detection, error)
	ObjectsBySnapshots(snapshotIDs []int64) (map[int64][]string, error)
	ObjectNames(camera string) ([]string, error)
	ObjectCounts(camera string) ([]model.ObjectCount, error)
}
