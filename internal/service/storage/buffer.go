package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"citymonitor/internal/config"
	"citymonitor/internal/dto"
	"citymonitor/internal/logger"
	"citymonitor/internal/model"
	"citymonitor/internal/repository"

	"github.com/google/uuid"
)

const timestampLayout = "2006-01-02_15-04_05.000"

// BufferService buffers annotated snapshots in memory and periodically
// flushes them to disk and the database.
type BufferService struct {
	dir           string
	limit         int
	interval      time.Duration
	snapshots     []dto.BufferedSnapshot
	bufferCount   map[string]int
	mu            sync.Mutex
	logger        *logger.Logger
	snapshotRepo  repository.SnapshotRepository
	detectionRepo repository.DetectionRepository
	now           func() time.Time
}

// NewBufferService creates a BufferService writing into cfg.ImageDirectory.
func NewBufferService(cfg *config.Config, logger *logger.Logger, snapshotRepo repository.SnapshotRepository, detectionRepo repository.DetectionRepository) *BufferService {
	interval := time.Duration(cfg.ImageBufferFlushInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &BufferService{
		dir:           cfg.ImageDirectory,
		limit:         cfg.ImageBufferLimit,
		interval:      interval,
		snapshots:     make([]dto.BufferedSnapshot, 0),
		bufferCount:   make(map[string]int),
		logger:        logger,
		snapshotRepo:  snapshotRepo,
		detectionRepo: detectionRepo,
		now:           time.Now,
	}
}

// Run flushes on every interval and once more when ctx is cancelled.
func (s *BufferService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushSnapshots()
			return nil
		case <-ticker.C:
			s.FlushSnapshots()
		}
	}
}

// AddSnapshot buffers a snapshot unless the camera already filled its
// share of the buffer for this interval.
func (s *BufferService) AddSnapshot(data []byte, camera string, detections []dto.DetectionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[camera] >= s.limit {
		return false
	}
	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{
		Taken:      s.now(),
		Camera:     camera,
		Detections: detections,
		Data:       data,
	})
	s.bufferCount[camera]++
	return true
}

// FlushSnapshots writes buffered snapshots to disk, resets the buffer and
// returns how many were saved.
func (s *BufferService) FlushSnapshots() int {
	s.mu.Lock()
	pending := s.snapshots
	s.snapshots = make([]dto.BufferedSnapshot, 0, len(pending))
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	saved := 0
	for _, snap := range pending {
		if _, err := s.save(snap); err != nil {
			s.logger.Error("Error saving snapshot for %s: %v", snap.Camera, err)
			continue
		}
		saved++
	}

	s.logger.Info("Flushed %d snapshots to disk", saved)
	return saved
}

// SaveNow writes a snapshot immediately and returns its filename.
func (s *BufferService) SaveNow(data []byte, camera string, detections []dto.DetectionResult) (string, error) {
	return s.save(dto.BufferedSnapshot{Taken: s.now(), Camera: camera, Detections: detections, Data: data})
}

func (s *BufferService) save(snap dto.BufferedSnapshot) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("error creating directory: %w", err)
	}

	filename := SnapshotFilename(snap.Taken, snap.Camera, snap.Detections)
	fullpath := filepath.Join(s.dir, filename)
	if err := os.WriteFile(fullpath, snap.Data, 0644); err != nil {
		return "", fmt.Errorf("error writing %s: %w", filename, err)
	}

	if s.snapshotRepo == nil {
		return filename, nil
	}

	snapshotID, err := s.snapshotRepo.Insert(&model.Snapshot{
		Filename:  filename,
		Camera:    snap.Camera,
		Timestamp: snap.Taken,
		FilePath:  fullpath,
		FileSize:  int64(len(snap.Data)),
	})
	if err != nil {
		return filename, fmt.Errorf("error saving snapshot to database: %w", err)
	}

	if s.detectionRepo != nil && len(snap.Detections) > 0 {
		rows := make([]model.Detection, 0, len(snap.Detections))
		for _, det := range snap.Detections {
			rows = append(rows, model.Detection{
				SnapshotID: snapshotID,
				ObjectName: det.Label,
				X:          det.X,
				Y:          det.Y,
				Width:      det.Width,
				Height:     det.Height,
				Confidence: det.Confidence,
			})
		}
		if err := s.detectionRepo.InsertBatch(rows); err != nil {
			return filename, fmt.Errorf("error saving detections to database: %w", err)
		}
	}

	return filename, nil
}

// SnapshotFilename builds "<timestamp>_<camera>_<objects>_<id>.jpg". The
// random suffix keeps snapshots taken in the same millisecond apart.
func SnapshotFilename(taken time.Time, camera string, detections []dto.DetectionResult) string {
	seen := make(map[string]bool)
	var objects []string
	for _, det := range detections {
		label := sanitize(det.Label)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		objects = append(objects, label)
	}

	parts := []string{taken.Format(timestampLayout), sanitize(camera)}
	if len(objects) > 0 {
		parts = append(parts, strings.Join(objects, "-"))
	}
	parts = append(parts, uuid.NewString()[:8])
	return strings.Join(parts, "_") + ".jpg"
}

// sanitize keeps letters, digits, dots and dashes.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.':
			return r
		case r == ' ', r == '_':
			return '-'
		}
		return -1
	}, s)
}

// ParseSnapshotFilename reverses SnapshotFilename.
func ParseSnapshotFilename(filename string) (taken time.Time, camera string, objects []string, err error) {
	parts := strings.Split(strings.TrimSuffix(filename, ".jpg"), "_")
	if len(parts) < 5 || len(parts) > 6 {
		return time.Time{}, "", nil, fmt.Errorf("invalid snapshot filename: %s", filename)
	}

	taken, err = time.Parse(timestampLayout, parts[0]+"_"+parts[1]+"_"+parts[2])
	if err != nil {
		return time.Time{}, "", nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	camera = parts[3]
	if len(parts) == 6 {
		objects = strings.Split(parts[4], "-")
	}
	return taken, camera, objects, nil
}
