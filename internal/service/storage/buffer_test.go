package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"citymonitor/internal/config"
	"citymonitor/internal/dto"
	"citymonitor/internal/logger"
	"citymonitor/internal/repository/sqlite"
)

func newTestBuffer(t *testing.T, limit int) (*BufferService, *sqlite.SnapshotRepository, *sqlite.DetectionRepository) {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	snapshots := sqlite.NewSnapshotRepository(db)
	detections := sqlite.NewDetectionRepository(db)
	cfg := &config.Config{
		ImageDirectory:           filepath.Join(t.TempDir(), "snapshots"),
		ImageBufferLimit:         limit,
		ImageBufferFlushInterval: 30,
	}
	return NewBufferService(cfg, logger.NewWithWriter(io.Discard), snapshots, detections), snapshots, detections
}

func TestBufferService_LimitPerCamera(t *testing.T) {
	buf, _, _ := newTestBuffer(t, 2)

	results := []bool{
		buf.AddSnapshot([]byte("a"), "front", nil),
		buf.AddSnapshot([]byte("b"), "front", nil),
		buf.AddSnapshot([]byte("c"), "front", nil),
		buf.AddSnapshot([]byte("d"), "garage", nil),
	}
	expected := []bool{true, true, false, true}
	for i := range expected {
		if results[i] != expected[i] {
			t.Errorf("AddSnapshot #%d = %v, expected %v", i, results[i], expected[i])
		}
	}

	if saved := buf.FlushSnapshots(); saved != 3 {
		t.Errorf("Expected 3 saved snapshots, got %d", saved)
	}
	if !buf.AddSnapshot([]byte("e"), "front", nil) {
		t.Error("Flush should reset the per-camera counter")
	}
}

func TestBufferService_FlushPersists(t *testing.T) {
	buf, snapshots, detections := newTestBuffer(t, 5)
	buf.now = func() time.Time { return time.Date(2025, 6, 15, 14, 30, 5, 0, time.UTC) }

	buf.AddSnapshot([]byte("jpeg"), "front door", []dto.DetectionResult{
		{Label: "car", Confidence: 0.9, X: 1, Y: 2, Width: 3, Height: 4},
		{Label: "person", Confidence: 0.7},
	})

	if saved := buf.FlushSnapshots(); saved != 1 {
		t.Fatalf("Expected 1 saved snapshot, got %d", saved)
	}
	if saved := buf.FlushSnapshots(); saved != 0 {
		t.Errorf("Second flush should be empty, got %d", saved)
	}

	list, err := snapshots.GetAll(nil)
	if err != nil || len(list) != 1 {
		t.Fatalf("Expected 1 snapshot row, got %d (%v)", len(list), err)
	}
	snap := list[0]
	if snap.Camera != "front door" || snap.FileSize != 4 {
		t.Errorf("Unexpected snapshot row: %+v", snap)
	}
	if !strings.HasPrefix(snap.Filename, "2025-06-15_14-30_05.000_front-door_car-person_") {
		t.Errorf("Unexpected filename %s", snap.Filename)
	}

	data, err := os.ReadFile(snap.FilePath)
	if err != nil || string(data) != "jpeg" {
		t.Errorf("Snapshot file not written: %v", err)
	}

	byID, _ := detections.ObjectsBySnapshots([]int64{snap.ID})
	if objects := byID[snap.ID]; len(objects) != 2 {
		t.Errorf("Expected 2 detection names, got %v", byID[snap.ID])
	}
}

func TestBufferService_SaveNow(t *testing.T) {
	buf, snapshots, _ := newTestBuffer(t, 1)

	name, err := buf.SaveNow([]byte("x"), "cam", nil)
	if err != nil {
		t.Fatalf("SaveNow failed: %v", err)
	}
	got, err := snapshots.GetByFilename(name)
	if err != nil || got == nil {
		t.Fatalf("Snapshot %s not stored: %v", name, err)
	}
}

func TestSnapshotFilename(t *testing.T) {
	taken := time.Date(2025, 1, 2, 3, 4, 5, 6e6, time.UTC)

	a := SnapshotFilename(taken, "Тверская/7", []dto.DetectionResult{{Label: "traffic light"}, {Label: "traffic light"}})
	b := SnapshotFilename(taken, "Тверская/7", nil)

	if !strings.HasPrefix(a, "2025-01-02_03-04_05.006_Тверская7_traffic-light_") || !strings.HasSuffix(a, ".jpg") {
		t.Errorf("Unexpected filename %s", a)
	}
	if strings.Contains(b, "__") {
		t.Errorf("Empty object list should not leave a gap: %s", b)
	}
	if a == SnapshotFilename(taken, "Тверская/7", []dto.DetectionResult{{Label: "traffic light"}}) {
		t.Error("Filenames taken at the same instant must differ")
	}
}

func TestParseSnapshotFilename(t *testing.T) {
	taken := time.Date(2025, 6, 15, 14, 30, 5, 123e6, time.UTC)
	name := SnapshotFilename(taken, "front door", []dto.DetectionResult{{Label: "car"}, {Label: "person"}})

	parsedAt, camera, objects, err := ParseSnapshotFilename(name)
	if err != nil {
		t.Fatalf("ParseSnapshotFilename(%q) failed: %v", name, err)
	}
	if !taken.Equal(parsedAt) {
		t.Errorf("Expected timestamp %v, got %v", taken, parsedAt)
	}
	if camera != "front-door" {
		t.Errorf("Expected camera front-door, got %q", camera)
	}
	if strings.Join(objects, ",") != "car,person" {
		t.Errorf("Expected objects car,person, got %v", objects)
	}

	if _, _, objects, err := ParseSnapshotFilename(SnapshotFilename(taken, "yard", nil)); err != nil || len(objects) != 0 {
		t.Errorf("Expected no objects and no error, got %v, %v", objects, err)
	}

	for _, bad := range []string{"holiday.jpg", "2025-06-15_14-30_xx_cam_id.jpg", "a_b_c_d_e_f_g.jpg"} {
		if _, _, _, err := ParseSnapshotFilename(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}
