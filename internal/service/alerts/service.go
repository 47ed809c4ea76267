// Package alerts turns detections into violation alerts.
package alerts

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"citymonitor/internal/config"
	"citymonitor/internal/detection"
	"citymonitor/internal/dto"
	"citymonitor/internal/logger"
	"citymonitor/internal/model"
	"citymonitor/internal/repository"
	"citymonitor/internal/service/websocket"
)

const (
	// SourceCamera marks alerts raised by a camera.
	SourceCamera = "CAMERA"
	// SourceManual marks alerts reported through the API.
	SourceManual = "MANUAL"
)

// Rule describes the violation a detected class stands for.
type Rule struct {
	Title        string
	LawReference string
	Priority     model.AlertPriority
}

// DefaultRules maps detection classes to violations.
var DefaultRules = map[string]Rule{
	"car": {
		Title:        "Неправильная парковка",
		LawReference: "КоАП РФ Статья 12.19",
		Priority:     model.AlertPriorityLow,
	},
	"garbage": {
		Title:        "Мусор в общественном месте",
		LawReference: "КоАП РФ Статья 8.2",
		Priority:     model.AlertPriorityMedium,
	},
	"person": {
		Title:        "Нарушение общественного порядка",
		LawReference: "КоАП РФ Статья 20.1",
		Priority:     model.AlertPriorityMedium,
	},
}

// Camera identifies where a detection happened.
type Camera struct {
	ID       *int64
	Name     string
	Location string
}

// SnapshotSaver stores the frame an alert refers to.
type SnapshotSaver interface {
	SaveNow(data []byte, camera string, detections []dto.DetectionResult) (string, error)
}

// Notifier pushes change notifications to connected clients.
type Notifier interface {
	PublishJSON(topic string, v interface{}) error
}

type Service struct {
	repo          repository.AlertRepository
	snapshots     SnapshotSaver
	notifier      Notifier
	logger        *logger.Logger
	rules         map[string]Rule
	interval      time.Duration
	minConfidence float64
	now           func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewService(cfg *config.Config, repo repository.AlertRepository, snapshots SnapshotSaver, notifier Notifier, logger *logger.Logger) *Service {
	return &Service{
		repo:          repo,
		snapshots:     snapshots,
		notifier:      notifier,
		logger:        logger,
		rules:         DefaultRules,
		interval:      cfg.AlertInterval,
		minConfidence: cfg.AlertConfidence,
		now:           time.Now,
		last:          make(map[string]time.Time),
	}
}

// Evaluate raises at most one alert for the first detection that matches a
// rule, and at most one per camera per interval. encode is called only
// when an alert is raised. It returns nil when nothing was raised.
func (s *Service) Evaluate(cam Camera, detections []detection.Detection, encode func() ([]byte, error)) (*model.Alert, error) {
	now := s.now()

	s.mu.Lock()
	if last, ok := s.last[cam.Name]; ok && now.Sub(last) < s.interval {
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	for _, det := range detections {
		rule, ok := s.rules[det.ClassName]
		if !ok || det.Confidence <= s.minConfidence {
			continue
		}

		alert := &model.Alert{
			Title:        rule.Title,
			Description:  fmt.Sprintf("Обнаружено: %s с вероятностью %d%%", det.ClassName, int(det.Confidence*100)),
			Location:     cam.Location,
			Timestamp:    now,
			Status:       model.AlertStatusNew,
			Priority:     rule.Priority,
			LawReference: rule.LawReference,
			Source:       SourceCamera,
			ImageURL:     s.saveFrame(cam, det, encode),
			CameraID:     cam.ID,
		}
		if alert.Location == "" {
			alert.Location = cam.Name
		}

		id, err := s.repo.Insert(alert)
		if err != nil {
			return nil, fmt.Errorf("creating alert: %w", err)
		}
		alert.ID = id

		s.mu.Lock()
		s.last[cam.Name] = now
		s.mu.Unlock()

		s.logger.Info("Created alert ID %d for %s on camera %s", id, det.ClassName, cam.Name)
		s.notify()
		return alert, nil
	}

	return nil, nil
}

// saveFrame stores the frame and returns its URL, or "" when it could not be stored.
func (s *Service) saveFrame(cam Camera, det detection.Detection, encode func() ([]byte, error)) string {
	if s.snapshots == nil || encode == nil {
		return ""
	}
	data, err := encode()
	if err != nil {
		s.logger.Warning("Camera %s: encoding alert frame: %v", cam.Name, err)
		return ""
	}
	name, err := s.snapshots.SaveNow(data, cam.Name, dto.FromDetections([]detection.Detection{det}))
	if err != nil {
		s.logger.Warning("Camera %s: saving alert frame: %v", cam.Name, err)
		return ""
	}
	return SnapshotURL(name)
}

// SnapshotURL is where the snapshot viewer serves name.
func SnapshotURL(name string) string {
	return "/api/snapshots/view?name=" + url.QueryEscape(name)
}

// List returns alerts matching filter together with the unpaged total.
func (s *Service) List(filter *dto.AlertFilters) (*dto.AlertsData, error) {
	list, err := s.repo.GetAll(filter)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.GetTotalCount(filter)
	if err != nil {
		return nil, err
	}
	return &dto.AlertsData{Alerts: list, Length: total}, nil
}

// Create stores an alert raised outside the detection loop and notifies
// subscribers. Missing status, priority and timestamp get defaults.
func (s *Service) Create(alert *model.Alert) (*model.Alert, error) {
	if alert.Status == "" {
		alert.Status = model.AlertStatusNew
	}
	if alert.Priority == "" {
		alert.Priority = model.AlertPriorityMedium
	}
	if alert.Source == "" {
		alert.Source = SourceManual
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = s.now()
	}

	id, err := s.repo.Insert(alert)
	if err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}
	alert.ID = id

	s.logger.Info("Created %s alert ID %d: %s", alert.Source, id, alert.Title)
	s.notify()
	return alert, nil
}

// UpdateStatus changes an alert's status and notifies subscribers.
func (s *Service) UpdateStatus(id int64, status model.AlertStatus) (*model.Alert, error) {
	if err := s.repo.UpdateStatus(id, status); err != nil {
		return nil, err
	}
	s.notify()
	return s.repo.GetByID(id)
}

func (s *Service) notify() {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishJSON(websocket.AlertsTopic, dto.Notification{Type: dto.AlertsUpdated}); err != nil {
		s.logger.Warning("Publishing alert notification: %v", err)
	}
}
