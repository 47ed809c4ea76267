package detection

import (
	"context"
	"errors"
	"sync"

	"citymonitor/internal/logger"

	"github.com/google/uuid"
)

// Status is a point-in-time view of an Annotator for the UI.
type Status struct {
	ID         string            `json:"id"`
	Camera     string            `json:"camera"`
	State      LoopState         `json:"state"`
	Error      string            `json:"error,omitempty"`
	ModelType  ModelKind         `json:"modelType"`
	Config     CustomModelConfig `json:"config"`
	Generation uint64            `json:"generation"`
	Wanted     bool              `json:"detectionActive"`
	LoadedKind *ModelKind        `json:"loadedModelType,omitempty"`
	LoadedURL  string            `json:"loadedModelUrl,omitempty"`
}

// CanToggle reports whether the detection toggle should be enabled.
func (s Status) CanToggle() bool {
	return s.State == StateReady || s.State == StateDetecting
}

// Option configures an Annotator.
type Option func(*Annotator)

// WithCamera names the camera in logs and annotations.
func WithCamera(name string) Option {
	return func(a *Annotator) { a.camera = name }
}

// WithTicker replaces the refresh source, one Ticker per detection run.
func WithTicker(newTicker func() Ticker) Option {
	return func(a *Annotator) { a.newTicker = newTicker }
}

// WithOnPaint registers a callback run on the scheduler goroutine after
// every paint. It must not call DisableDetection, LoadModel or Close.
func WithOnPaint(fn func(Annotation)) Option {
	return func(a *Annotator) { a.onPaint = fn }
}

// WithAutoEnable starts detecting as soon as the first model is ready.
func WithAutoEnable(enabled bool) Option {
	return func(a *Annotator) { a.wanted = enabled }
}

// Annotator runs the annotation loop for one video source.
//
// Lifecycle operations (LoadModel, EnableDetection, DisableDetection,
// Close and load completions) are serialised by lifecycle. The scheduler
// goroutine only takes mu, so stopping it while holding lifecycle is safe.
type Annotator struct {
	id        string
	camera    string
	backend   Backend
	source    FrameSource
	adapter   *Adapter
	renderer  *Renderer
	canvas    *ImageCanvas
	newTicker func() Ticker
	onPaint   func(Annotation)
	logger    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	lifecycle sync.Mutex
	loads     sync.WaitGroup

	mu         sync.Mutex
	state      LoopState
	lastError  string
	model      *Model
	kind       ModelKind
	config     CustomModelConfig
	wanted     bool
	generation uint64
	loadCancel context.CancelFunc
	scheduler  *Scheduler
	closed     bool
}

// New creates an idle Annotator. Nothing runs until LoadModel.
func New(backend Backend, source FrameSource, logger *logger.Logger, opts ...Option) *Annotator {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Annotator{
		id:        uuid.New().String(),
		backend:   backend,
		source:    source,
		adapter:   NewAdapter(logger),
		renderer:  NewRenderer(),
		canvas:    NewImageCanvas(),
		newTicker: func() Ticker { return NewIntervalTicker(10) },
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		config:    DefaultCustomConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Annotator) ID() string { return a.id }

func (a *Annotator) Camera() string { return a.camera }

// Status returns the current loop state.
func (a *Annotator) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	cfg := a.config
	cfg.ClassLabels = append([]string{}, a.config.ClassLabels...)
	st := Status{
		ID:         a.id,
		Camera:     a.camera,
		State:      a.state,
		Error:      a.lastError,
		ModelType:  a.kind,
		Config:     cfg,
		Generation: a.generation,
		Wanted:     a.wanted,
	}
	if a.model != nil {
		kind := a.model.Kind
		st.LoadedKind = &kind
		st.LoadedURL = a.model.URL
	}
	return st
}

// LoadModel starts an asynchronous load and returns its generation. Any
// load still in flight is superseded: its result will be discarded. A
// ConfigValidationError leaves the current model untouched.
func (a *Annotator) LoadModel(kind ModelKind, cfg CustomModelConfig) (uint64, error) {
	if err := cfg.Validate(kind); err != nil {
		return 0, err
	}

	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return 0, ErrClosed
	}
	a.generation++
	gen := a.generation
	if a.loadCancel != nil {
		a.loadCancel()
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.loadCancel = cancel
	a.kind = kind
	a.config = cfg
	a.state = StateLoading
	a.lastError = ""
	sched := a.scheduler
	a.scheduler = nil
	a.mu.Unlock()

	sched.Stop()

	a.logger.Info("Camera %s: loading %s model (generation %d)", a.camera, kind, gen)

	a.loads.Add(1)
	go a.runLoad(ctx, cancel, gen, kind, cfg.ModelURL)
	return gen, nil
}

// Configure applies settings. The model is reloaded only when the kind or
// the model URL changes, or when no model is loaded; otherwise the new
// labels, threshold and input size take effect on the next tick.
func (a *Annotator) Configure(kind ModelKind, cfg CustomModelConfig) (reloaded bool, err error) {
	if err := cfg.Validate(kind); err != nil {
		return false, err
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false, ErrClosed
	}
	sameModel := a.kind == kind && (kind == KindStandard || a.config.ModelURL == cfg.ModelURL)
	usable := a.state == StateReady || a.state == StateDetecting || a.state == StateLoading
	if sameModel && usable {
		a.config = cfg
		a.mu.Unlock()
		return false, nil
	}
	a.mu.Unlock()

	if _, err := a.LoadModel(kind, cfg); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Annotator) runLoad(ctx context.Context, cancel context.CancelFunc, gen uint64, kind ModelKind, url string) {
	defer a.loads.Done()
	defer cancel()

	model, err := loadModel(ctx, a.backend, kind, url)
	a.completeLoad(gen, model, err)
}

func (a *Annotator) completeLoad(gen uint64, model *Model, err error) {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.closed || gen != a.generation {
		current := a.generation
		a.mu.Unlock()
		if model != nil {
			model.Close()
		}
		a.logger.Info("Camera %s: discarded stale model load (generation %d, current %d)", a.camera, gen, current)
		return
	}

	if err != nil {
		a.state = StateError
		a.lastError = err.Error()
		a.loadCancel = nil
		a.mu.Unlock()
		a.logger.Error("Camera %s: %v", a.camera, err)
		return
	}

	old := a.model
	a.model = model
	a.state = StateReady
	a.loadCancel = nil
	resume := a.wanted
	a.mu.Unlock()

	if old != nil {
		if cerr := old.Close(); cerr != nil {
			a.logger.Warning("Camera %s: closing previous model: %v", a.camera, cerr)
		}
	}
	a.logger.Info("Camera %s: %s model ready (generation %d)", a.camera, model.Kind, gen)

	if resume {
		a.startScheduler()
	}
}

// EnableDetection starts the frame loop. It fails with ErrModelNotReady
// unless a model is ready.
func (a *Annotator) EnableDetection() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	switch a.state {
	case StateDetecting:
		a.mu.Unlock()
		return nil
	case StateReady:
		a.wanted = true
		a.mu.Unlock()
		a.startScheduler()
		return nil
	}
	a.mu.Unlock()
	return ErrModelNotReady
}

// DisableDetection stops the frame loop. When it returns no further
// paint will happen.
func (a *Annotator) DisableDetection() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.wanted = false
	if a.state == StateDetecting {
		a.state = StateReady
	}
	sched := a.scheduler
	a.scheduler = nil
	a.mu.Unlock()

	sched.Stop()
	return nil
}

// Close tears the loop down: pending loads are abandoned, the scheduler
// is stopped and the model released. Idempotent.
func (a *Annotator) Close() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.generation++
	if a.loadCancel != nil {
		a.loadCancel()
		a.loadCancel = nil
	}
	sched := a.scheduler
	a.scheduler = nil
	model := a.model
	a.model = nil
	a.state = StateIdle
	a.wanted = false
	a.mu.Unlock()

	sched.Stop()
	a.cancel()
	if err := model.Close(); err != nil {
		return errors.Join(ErrClosed, err)
	}
	return nil
}

// startScheduler must be called with lifecycle held.
func (a *Annotator) startScheduler() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.state != StateReady || a.model == nil || a.scheduler != nil {
		return
	}
	a.state = StateDetecting
	a.scheduler = StartScheduler(a.ctx, a.newTicker(), a.tick)
	a.logger.Info("Camera %s: detection started", a.camera)
}

func (a *Annotator) tick(ctx context.Context) {
	a.mu.Lock()
	if a.state != StateDetecting || a.model == nil {
		a.mu.Unlock()
		return
	}
	model, cfg := a.model, a.config
	a.mu.Unlock()

	frame, ok := a.source.CurrentFrame()
	if !ok {
		return
	}

	detections := a.adapter.Infer(ctx, model, frame, cfg)
	if ctx.Err() != nil {
		return
	}

	a.renderer.Paint(a.canvas, frame.Width(), frame.Height(), detections)
	if a.onPaint != nil {
		a.onPaint(Annotation{
			Camera:     a.camera,
			Frame:      frame,
			Detections: detections,
			Overlay:    a.canvas.Snapshot(),
		})
	}
}

// waitLoads blocks until no load goroutine is running.
func (a *Annotator) waitLoads() {
	a.loads.Wait()
}
