// Package service wires camera frames through per-camera annotators to
// viewers, alerts and the snapshot buffer.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"sort"
	"sync"

	"citymonitor/internal/config"
	"citymonitor/internal/detection"
	"citymonitor/internal/dto"
	"citymonitor/internal/logger"
	"citymonitor/internal/model"
	"citymonitor/internal/repository"
	"citymonitor/internal/service/ai"
	"citymonitor/internal/service/alerts"
	"citymonitor/internal/service/websocket"

	"golang.org/x/sync/errgroup"
)

var ErrManagerClosed = errors.New("manager closed")

// Publisher delivers JSON messages to WebSocket subscribers.
type Publisher interface {
	PublishJSON(topic string, v interface{}) error
}

// SnapshotBuffer queues annotated frames for the gallery.
type SnapshotBuffer interface {
	AddSnapshot(data []byte, camera string, detections []dto.DetectionResult) bool
}

// AlertEvaluator raises alerts from detections.
type AlertEvaluator interface {
	Evaluate(cam alerts.Camera, detections []detection.Detection, encode func() ([]byte, error)) (*model.Alert, error)
}

// Runner is a long running frame producer.
type Runner interface {
	Run(ctx context.Context) error
}

type feed struct {
	annotator *detection.Annotator
	frames    *detection.LatestFrame
	camera    alerts.Camera
	streaming bool
}

type Manager struct {
	cfg     *config.Config
	backend detection.Backend
	hub     Publisher
	buffer  SnapshotBuffer
	alerts  AlertEvaluator
	cameras repository.CameraRepository
	logger  *logger.Logger

	decode    func([]byte) (image.Image, error)
	encode    func(image.Image) ([]byte, error)
	newTicker func() detection.Ticker
	newStream func(cam model.Camera, frames *detection.LatestFrame) Runner

	mu        sync.Mutex
	feeds     map[string]*feed
	closed    bool
	streams   *errgroup.Group
	streamCtx context.Context
}

func NewManager(cfg *config.Config, backend detection.Backend, hub Publisher, buffer SnapshotBuffer, alertService AlertEvaluator, cameras repository.CameraRepository, logger *logger.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		backend: backend,
		hub:     hub,
		buffer:  buffer,
		alerts:  alertService,
		cameras: cameras,
		logger:  logger,
		decode:  ai.DecodeJPEG,
		encode:  ai.EncodeJPEG,
		feeds:   make(map[string]*feed),
	}
	m.newTicker = func() detection.Ticker { return detection.NewIntervalTicker(cfg.DetectionFPS) }
	m.newStream = func(cam model.Camera, frames *detection.LatestFrame) Runner {
		return ai.NewStreamSource(cam.Name, cam.StreamURL, cfg.StreamReconnectWait, frames, logger)
	}
	return m
}

// HandleCameraImage decodes a JPEG pushed by a camera and hands it to the
// camera's annotator, creating the annotator on first use.
func (m *Manager) HandleCameraImage(data []byte, camera string) error {
	img, err := m.decode(data)
	if err != nil {
		return err
	}
	f, err := m.feed(camera)
	if err != nil {
		return err
	}
	f.frames.Publish(img)
	return nil
}

// StartStreams captures every active camera that has a stream URL until
// ctx is cancelled. Cameras passed to AddCamera meanwhile join the group.
func (m *Manager) StartStreams(ctx context.Context) error {
	if m.cameras == nil {
		return nil
	}
	cams, err := m.cameras.GetActive()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	m.mu.Lock()
	m.streams, m.streamCtx = g, gctx
	m.mu.Unlock()

	for _, cam := range cams {
		if err := m.AddCamera(cam); err != nil {
			m.logger.Error("Camera %s: %v", cam.Name, err)
		}
	}

	<-gctx.Done()
	m.mu.Lock()
	m.streams, m.streamCtx = nil, nil
	m.mu.Unlock()
	return g.Wait()
}

// AddCamera starts capturing an active stream camera. Cameras without a
// stream URL get their annotator on the first UDP frame. Outside
// StartStreams the stream is only picked up on the next start.
func (m *Manager) AddCamera(cam model.Camera) error {
	if !cam.Active || cam.StreamURL == "" {
		return nil
	}
	f, err := m.feed(cam.Name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streams == nil || f.streaming {
		return nil
	}
	f.streaming = true
	stream := m.newStream(cam, f.frames)
	ctx := m.streamCtx
	m.streams.Go(func() error { return stream.Run(ctx) })
	m.logger.Info("Camera %s: streaming from %s", cam.Name, cam.StreamURL)
	return nil
}

// Annotator returns the annotator of camera, if one exists.
func (m *Manager) Annotator(camera string) (*detection.Annotator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feeds[camera]
	if !ok {
		return nil, false
	}
	return f.annotator, true
}

// Statuses returns the loop state of every camera, sorted by camera name.
func (m *Manager) Statuses() []detection.Status {
	m.mu.Lock()
	list := make([]*detection.Annotator, 0, len(m.feeds))
	for _, f := range m.feeds {
		list = append(list, f.annotator)
	}
	m.mu.Unlock()

	statuses := make([]detection.Status, 0, len(list))
	for _, a := range list {
		statuses = append(statuses, a.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Camera < statuses[j].Camera })
	return statuses
}

// Close stops every annotator. Later frames are rejected.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	feeds := m.feeds
	m.feeds = make(map[string]*feed)
	m.mu.Unlock()

	for name, f := range feeds {
		if err := f.annotator.Close(); err != nil {
			m.logger.Warning("Camera %s: closing annotator: %v", name, err)
		}
	}
	m.logger.Info("All annotators stopped")
}

func (m *Manager) feed(camera string) (*feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if f, ok := m.feeds[camera]; ok {
		return f, nil
	}

	f := &feed{frames: detection.NewLatestFrame(), camera: m.cameraInfo(camera)}
	f.annotator = detection.New(m.backend, f.frames, m.logger,
		detection.WithCamera(camera),
		detection.WithTicker(m.newTicker),
		detection.WithAutoEnable(m.cfg.DetectionAutostart),
		detection.WithOnPaint(func(a detection.Annotation) { m.onPaint(f, a) }),
	)

	kind, settings := m.defaultSettings()
	if _, err := f.annotator.Configure(kind, settings); err != nil {
		m.logger.Warning("Camera %s: default model settings rejected (%v), using standard detector", camera, err)
		if _, err := f.annotator.Configure(detection.KindStandard, settings); err != nil {
			m.logger.Error("Camera %s: loading standard detector: %v", camera, err)
		}
	}

	m.feeds[camera] = f
	m.logger.Info("Camera %s: annotator %s created", camera, f.annotator.ID())
	return f, nil
}

func (m *Manager) cameraInfo(name string) alerts.Camera {
	info := alerts.Camera{Name: name}
	if m.cameras == nil {
		return info
	}
	cam, err := m.cameras.GetByName(name)
	if err != nil || cam == nil {
		return info
	}
	id := cam.ID
	info.ID = &id
	info.Location = cam.Location
	return info
}

// defaultSettings is the model selection applied to new annotators.
func (m *Manager) defaultSettings() (detection.ModelKind, detection.CustomModelConfig) {
	kind, ok := detection.ParseModelKind(m.cfg.DefaultModelType)
	if !ok {
		m.logger.Warning("Unknown model type %q, using standard detector", m.cfg.DefaultModelType)
	}
	settings := detection.DefaultCustomConfig()
	settings.ModelURL = m.cfg.CustomModelURL
	if m.cfg.CustomInputSize > 0 {
		settings.InputSize = m.cfg.CustomInputSize
	}
	settings.ClassLabels = detection.ParseClassLabels(m.cfg.CustomClassLabels)
	if m.cfg.CustomConfidence > 0 {
		settings.ConfidenceThreshold = detection.ClampThreshold(m.cfg.CustomConfidence)
	}
	settings.Decoding = m.cfg.CustomDecoding
	return kind, settings
}

// onPaint runs on the annotator's scheduler goroutine after every
// rendered tick.
func (m *Manager) onPaint(f *feed, a detection.Annotation) {
	composite := detection.Composite(a.Frame.Image, a.Overlay)
	data, err := m.encode(composite)
	if err != nil {
		m.logger.Error("Camera %s: encoding annotated frame: %v", a.Camera, err)
		return
	}

	msg := dto.FrameMessage{
		Camera:     a.Camera,
		Image:      base64.StdEncoding.EncodeToString(data),
		Detections: a.Detections,
	}
	if err := m.hub.PublishJSON(websocket.FrameTopic(a.Camera), msg); err != nil {
		m.logger.Error("Camera %s: publishing frame: %v", a.Camera, err)
	}

	if len(a.Detections) == 0 {
		return
	}

	if m.alerts != nil {
		if _, err := m.alerts.Evaluate(f.camera, a.Detections, func() ([]byte, error) { return data, nil }); err != nil {
			m.logger.Error("Camera %s: %v", a.Camera, err)
		}
	}
	if m.buffer != nil {
		m.buffer.AddSnapshot(data, a.Camera, dto.FromDetections(a.Detections))
	}
}
