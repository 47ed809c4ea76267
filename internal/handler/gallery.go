package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"citymonitor/internal/config"
	"citymonitor/internal/dto"
	"citymonitor/internal/logger"
	"citymonitor/internal/repository"
)

// GetSnapshotsHandler returns a filtered page of stored snapshots.
func GetSnapshotsHandler(cfg *config.Config, logger *logger.Logger,
	snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.SnapshotFilters{
			Camera:     q.Get("camera"),
			Object:     q.Get("object"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			TimeAfter:  parseTimeOfDay(q.Get("timeAfter")),
			TimeBefore: parseTimeOfDay(q.Get("timeBefore")),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		snapshots, err := snapshotRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying snapshots from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalSize, err := snapshotRepo.GetDirectorySize()
		if err != nil {
			logger.Error("Error getting snapshot directory size: %v", err)
			totalSize = 0
		}

		totalCount, err := snapshotRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting snapshots: %v", err)
			totalCount = len(snapshots)
		}

		objectsByID := map[int64][]string{}
		if detectionRepo != nil && len(snapshots) > 0 {
			ids := make([]int64, len(snapshots))
			for i, snap := range snapshots {
				ids[i] = snap.ID
			}
			if found, err := detectionRepo.ObjectsBySnapshots(ids); err != nil {
				logger.Error("Error getting objects for snapshots: %v", err)
			} else {
				objectsByID = found
			}
		}

		infos := make([]dto.SnapshotInfo, 0, len(snapshots))
		for _, snap := range snapshots {
			objects := objectsByID[snap.ID]
			if objects == nil {
				objects = []string{}
			}

			infos = append(infos, dto.SnapshotInfo{
				Name:      snap.Filename,
				Date:      snap.Timestamp,
				TimeOfDay: snap.Timestamp,
				Camera:    snap.Camera,
				Objects:   objects,
			})
		}

		writeJSON(w, http.StatusOK, dto.SnapshotsData{
			Snapshots:   infos,
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// GetObjectsHandler lists the detected object names for the gallery
// filter, limited to ?camera= when given.
func GetObjectsHandler(detectionRepo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := detectionRepo.ObjectNames(r.URL.Query().Get("camera"))
		if err != nil {
			logger.Error("Error querying object names: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, names, logger)
	}
}

// GetObjectStatsHandler returns per-object detection counts, limited to
// ?camera= when given.
func GetObjectStatsHandler(detectionRepo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := detectionRepo.ObjectCounts(r.URL.Query().Get("camera"))
		if err != nil {
			logger.Error("Error counting objects: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, counts, logger)
	}
}

// DeleteSnapshotHandler removes a snapshot from disk and database.
func DeleteSnapshotHandler(cfg *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, ok := snapshotName(r.URL.Query().Get("name"))
		if !ok {
			writeError(w, http.StatusBadRequest, "valid snapshot name required", logger)
			return
		}

		filePath := filepath.Join(cfg.ImageDirectory, filename)
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", filePath, err)
		}

		if err := snapshotRepo.DeleteByFilename(filename); err != nil {
			logger.Error("Failed to delete from database: %v", err)
		}

		logger.Info("Deleted snapshot: %s", filename)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": filename}, logger)
	}
}

// ClearSnapshotsHandler deletes all files from the snapshot directory and clears the database.
func ClearSnapshotsHandler(cfg *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading snapshot directory: %v", err)
			http.Error(w, "Unable to read snapshot directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}

		if err := snapshotRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
		}

		logger.Info("All snapshots cleared from directory: %s", cfg.ImageDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewSnapshotHandler serves a single snapshot named by the "name" query parameter.
func ViewSnapshotHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := snapshotName(r.URL.Query().Get("name"))
		if !ok {
			http.Error(w, "Valid name parameter is required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, name))
	}
}

// snapshotName accepts bare file names only, so requests cannot leave the
// snapshot directory.
func snapshotName(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", false
	}
	return name, true
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" from the request (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseTimeOfDay parses a time-of-day string in the format "15:04" from the request (HTML input format).
func parseTimeOfDay(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("15:04", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
