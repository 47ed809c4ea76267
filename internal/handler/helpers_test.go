package handler

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"citymonitor/internal/detection"
	"citymonitor/internal/logger"
	"citymonitor/internal/model"
	"citymonitor/internal/repository/sqlite"

	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type stubDetector struct{}

func (stubDetector) Detect(ctx context.Context, frame detection.Frame) ([]detection.Detection, error) {
	return nil, nil
}

func (stubDetector) Close() error { return nil }

type stubBackend struct{}

func (stubBackend) LoadStandard(ctx context.Context) (detection.Detector, error) {
	return stubDetector{}, nil
}

func (stubBackend) LoadGraph(ctx context.Context, url string) (detection.GraphModel, error) {
	return nil, errors.New("404 Not Found")
}

// stubManager holds ready-made annotators keyed by camera.
type stubManager struct {
	annotators map[string]*detection.Annotator
	added      []model.Camera
}

func newStubManager(t *testing.T, cameras ...string) *stubManager {
	t.Helper()
	m := &stubManager{annotators: make(map[string]*detection.Annotator)}
	for _, camera := range cameras {
		a := detection.New(stubBackend{}, detection.NewLatestFrame(), testLogger(), detection.WithCamera(camera))
		t.Cleanup(func() { a.Close() })
		_, err := a.LoadModel(detection.KindStandard, detection.DefaultCustomConfig())
		require.NoError(t, err)
		require.Eventually(t, func() bool { return a.Status().State == detection.StateReady }, 2*time.Second, 5*time.Millisecond)
		m.annotators[camera] = a
	}
	return m
}

func (m *stubManager) Annotator(camera string) (*detection.Annotator, bool) {
	a, ok := m.annotators[camera]
	return a, ok
}

func (m *stubManager) AddCamera(cam model.Camera) error {
	m.added = append(m.added, cam)
	return nil
}

func (m *stubManager) Statuses() []detection.Status {
	list := make([]detection.Status, 0, len(m.annotators))
	for _, a := range m.annotators {
		list = append(list, a.Status())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Camera < list[j].Camera })
	return list
}
