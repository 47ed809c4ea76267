package alerts

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"citymonitor/internal/config"
	"citymonitor/internal/detection"
	"citymonitor/internal/dto"
	"citymonitor/internal/logger"
	"citymonitor/internal/model"
	"citymonitor/internal/service/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []model.Alert
	err    error
}

func (r *fakeAlertRepo) Insert(alert *model.Alert) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	a := *alert
	a.ID = int64(len(r.alerts) + 1)
	r.alerts = append(r.alerts, a)
	return a.ID, nil
}

func (r *fakeAlertRepo) GetByID(id int64) (*model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			a := r.alerts[i]
			return &a, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *fakeAlertRepo) GetAll(filter *dto.AlertFilters) ([]model.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Alert
	for _, a := range r.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAlertRepo) GetTotalCount(filter *dto.AlertFilters) (int, error) {
	list, _ := r.GetAll(filter)
	return len(list), nil
}

func (r *fakeAlertRepo) UpdateStatus(id int64, status model.AlertStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			r.alerts[i].Status = status
			return nil
		}
	}
	return errors.New("not found")
}

func (r *fakeAlertRepo) Delete(id int64) error { return nil }

type fakeSaver struct {
	saved []string
	err   error
}

func (s *fakeSaver) SaveNow(data []byte, camera string, detections []dto.DetectionResult) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	name := camera + "_" + detections[0].Label + ".jpg"
	s.saved = append(s.saved, name)
	return name, nil
}

type fakeNotifier struct {
	topics []string
}

func (n *fakeNotifier) PublishJSON(topic string, v interface{}) error {
	n.topics = append(n.topics, topic)
	return nil
}

type fixture struct {
	service  *Service
	repo     *fakeAlertRepo
	saver    *fakeSaver
	notifier *fakeNotifier
	now      time.Time
}

func newFixture() *fixture {
	f := &fixture{
		repo:     &fakeAlertRepo{},
		saver:    &fakeSaver{},
		notifier: &fakeNotifier{},
		now:      time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{AlertInterval: 10 * time.Second, AlertConfidence: 0.5}
	f.service = NewService(cfg, f.repo, f.saver, f.notifier, logger.NewWithWriter(io.Discard))
	f.service.now = func() time.Time { return f.now }
	return f
}

func encodeOK() ([]byte, error) { return []byte{0xff, 0xd8}, nil }

func det(class string, conf float64) detection.Detection {
	return detection.Detection{Box: detection.Box{X: 1, Y: 2, Width: 3, Height: 4}, ClassName: class, Confidence: conf}
}

func TestEvaluate_CreatesAlertForRuleMatch(t *testing.T) {
	f := newFixture()
	camID := int64(3)
	cam := Camera{ID: &camID, Name: "tverskaya", Location: "ул. Тверская, 7"}

	alert, err := f.service.Evaluate(cam, []detection.Detection{det("car", 0.87)}, encodeOK)
	require.NoError(t, err)
	require.NotNil(t, alert)

	assert.Equal(t, int64(1), alert.ID)
	assert.Equal(t, "Неправильная парковка", alert.Title)
	assert.Equal(t, "КоАП РФ Статья 12.19", alert.LawReference)
	assert.Equal(t, model.AlertPriorityLow, alert.Priority)
	assert.Equal(t, model.AlertStatusNew, alert.Status)
	assert.Equal(t, SourceCamera, alert.Source)
	assert.Equal(t, "Обнаружено: car с вероятностью 87%", alert.Description)
	assert.Equal(t, "ул. Тверская, 7", alert.Location)
	assert.Equal(t, f.now, alert.Timestamp)
	assert.Equal(t, "/api/snapshots/view?name=tverskaya_car.jpg", alert.ImageURL)
	require.NotNil(t, alert.CameraID)
	assert.Equal(t, camID, *alert.CameraID)

	assert.Len(t, f.repo.alerts, 1)
	assert.Equal(t, []string{websocket.AlertsTopic}, f.notifier.topics)
}

func TestEvaluate_IgnoresLowConfidenceAndUnknownClasses(t *testing.T) {
	f := newFixture()
	cam := Camera{Name: "a"}

	alert, err := f.service.Evaluate(cam, []detection.Detection{det("car", 0.5), det("dog", 0.99)}, encodeOK)
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Empty(t, f.repo.alerts)
	assert.Empty(t, f.notifier.topics)
}

func TestEvaluate_OneAlertPerCall(t *testing.T) {
	f := newFixture()

	alert, err := f.service.Evaluate(Camera{Name: "a"}, []detection.Detection{det("dog", 0.9), det("person", 0.6), det("garbage", 0.9)}, encodeOK)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "Нарушение общественного порядка", alert.Title)
	assert.Equal(t, "a", alert.Location, "camera name stands in for a missing location")
	assert.Len(t, f.repo.alerts, 1)
}

func TestEvaluate_IntervalPerCamera(t *testing.T) {
	f := newFixture()
	dets := []detection.Detection{det("garbage", 0.9)}

	first, err := f.service.Evaluate(Camera{Name: "a"}, dets, encodeOK)
	require.NoError(t, err)
	require.NotNil(t, first)

	f.now = f.now.Add(5 * time.Second)
	again, err := f.service.Evaluate(Camera{Name: "a"}, dets, encodeOK)
	require.NoError(t, err)
	assert.Nil(t, again, "inside the interval")

	other, err := f.service.Evaluate(Camera{Name: "b"}, dets, encodeOK)
	require.NoError(t, err)
	assert.NotNil(t, other, "interval is tracked per camera")

	f.now = f.now.Add(5 * time.Second)
	later, err := f.service.Evaluate(Camera{Name: "a"}, dets, encodeOK)
	require.NoError(t, err)
	assert.NotNil(t, later)
	assert.Len(t, f.repo.alerts, 3)
}

func TestEvaluate_SnapshotFailureStillAlerts(t *testing.T) {
	f := newFixture()
	f.saver.err = errors.New("disk full")

	alert, err := f.service.Evaluate(Camera{Name: "a"}, []detection.Detection{det("car", 0.9)}, encodeOK)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Empty(t, alert.ImageURL)

	f2 := newFixture()
	alert, err = f2.service.Evaluate(Camera{Name: "a"}, []detection.Detection{det("car", 0.9)}, func() ([]byte, error) {
		return nil, errors.New("encode")
	})
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Empty(t, alert.ImageURL)
	assert.Empty(t, f2.saver.saved)
}

func TestEvaluate_RepositoryErrorDoesNotStartInterval(t *testing.T) {
	f := newFixture()
	f.repo.err = errors.New("locked")
	dets := []detection.Detection{det("car", 0.9)}

	_, err := f.service.Evaluate(Camera{Name: "a"}, dets, encodeOK)
	assert.Error(t, err)
	assert.Empty(t, f.notifier.topics)

	f.repo.err = nil
	alert, err := f.service.Evaluate(Camera{Name: "a"}, dets, encodeOK)
	require.NoError(t, err)
	assert.NotNil(t, alert)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	_, err := f.service.Evaluate(Camera{Name: "a"}, []detection.Detection{det("car", 0.9)}, encodeOK)
	require.NoError(t, err)

	updated, err := f.service.UpdateStatus(1, model.AlertStatusResolved)
	require.NoError(t, err)
	assert.Equal(t, model.AlertStatusResolved, updated.Status)
	assert.Len(t, f.notifier.topics, 2)

	_, err = f.service.UpdateStatus(42, model.AlertStatusResolved)
	assert.Error(t, err)

	data, err := f.service.List(&dto.AlertFilters{Status: model.AlertStatusNew})
	require.NoError(t, err)
	assert.Equal(t, 0, data.Length)
}

func TestSnapshotURL(t *testing.T) {
	assert.Equal(t, "/api/snapshots/view?name=a+b.jpg", SnapshotURL("a b.jpg"))
}

func TestCreate_DefaultsAndNotifies(t *testing.T) {
	f := newFixture()

	alert, err := f.service.Create(&model.Alert{Title: "Незаконная торговля", Location: "ул. Арбат, 10"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), alert.ID)
	assert.Equal(t, model.AlertStatusNew, alert.Status)
	assert.Equal(t, model.AlertPriorityMedium, alert.Priority)
	assert.Equal(t, SourceManual, alert.Source)
	assert.Equal(t, f.now, alert.Timestamp)
	assert.Len(t, f.notifier.topics, 1)

	taken := f.now.Add(-time.Hour)
	alert, err = f.service.Create(&model.Alert{Title: "Парковка", Priority: model.AlertPriorityHigh, Source: SourceCamera, Timestamp: taken})
	require.NoError(t, err)
	assert.Equal(t, model.AlertPriorityHigh, alert.Priority)
	assert.Equal(t, SourceCamera, alert.Source)
	assert.Equal(t, taken, alert.Timestamp)

	f.repo.err = errors.New("disk full")
	_, err = f.service.Create(&model.Alert{Title: "x"})
	assert.Error(t, err)
	assert.Len(t, f.notifier.topics, 2, "failed inserts are not announced")
}
