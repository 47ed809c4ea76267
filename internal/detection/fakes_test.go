package detection

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"citymonitor/internal/logger"

	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

// manualTicker fires only when the test says so. fire reports whether the
// scheduler goroutine actually received the tick.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Int32
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Add(1) }

func (m *manualTicker) fire() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type fakeDetector struct {
	detections []Detection
	err        error
	closed     atomic.Int32
}

func (d *fakeDetector) Detect(ctx context.Context, frame Frame) ([]Detection, error) {
	return d.detections, d.err
}

func (d *fakeDetector) Close() error {
	d.closed.Add(1)
	return nil
}

// releaseCounter tracks how many backend buffers were handed out and returned.
type releaseCounter struct {
	allocated atomic.Int32
	released  atomic.Int32
}

func (c *releaseCounter) tensor(shape []int, data []float32) *Tensor {
	c.allocated.Add(1)
	return NewTensor(shape, data, func() { c.released.Add(1) })
}

type fakeGraph struct {
	url     string
	shape   []int
	data    []float32
	err     error
	partial bool
	buffers *releaseCounter
	inputs  []*Tensor
	closed  atomic.Int32
	mu      sync.Mutex
}

func (g *fakeGraph) Predict(ctx context.Context, input *Tensor) ([]*Tensor, error) {
	g.mu.Lock()
	g.inputs = append(g.inputs, input)
	g.mu.Unlock()

	if g.err != nil {
		if g.partial {
			return []*Tensor{g.buffers.tensor([]int{1}, []float32{0})}, g.err
		}
		return nil, g.err
	}
	data := append([]float32(nil), g.data...)
	return []*Tensor{g.buffers.tensor(g.shape, data)}, nil
}

func (g *fakeGraph) Close() error {
	g.closed.Add(1)
	return nil
}

// fakeBackend can hold a load open per URL until the test releases it.
type fakeBackend struct {
	mu        sync.Mutex
	gates     map[string]chan struct{}
	errs      map[string]error
	graphs    map[string][]*fakeGraph
	standards []*fakeDetector
	detector  func() *fakeDetector
	graph     func(url string) *fakeGraph
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		gates:  make(map[string]chan struct{}),
		errs:   make(map[string]error),
		graphs: make(map[string][]*fakeGraph),
		detector: func() *fakeDetector {
			return &fakeDetector{detections: []Detection{{
				Box:        Box{X: 10, Y: 30, Width: 50, Height: 40},
				ClassName:  "car",
				Confidence: 0.87,
			}}}
		},
		graph: func(url string) *fakeGraph {
			return &fakeGraph{url: url, shape: []int{1, 0, 7}, buffers: &releaseCounter{}}
		},
	}
}

func (b *fakeBackend) gate(url string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[url] = ch
	return ch
}

func (b *fakeBackend) LoadStandard(ctx context.Context) (Detector, error) {
	b.mu.Lock()
	gate := b.gates["standard"]
	err := b.errs["standard"]
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	d := b.detector()
	b.mu.Lock()
	b.standards = append(b.standards, d)
	b.mu.Unlock()
	return d, nil
}

func (b *fakeBackend) LoadGraph(ctx context.Context, url string) (GraphModel, error) {
	b.mu.Lock()
	gate := b.gates[url]
	err := b.errs[url]
	b.mu.Unlock()
	// the gate deliberately ignores ctx so stale completions really arrive
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	g := b.graph(url)
	b.mu.Lock()
	b.graphs[url] = append(b.graphs[url], g)
	b.mu.Unlock()
	return g, nil
}

func (b *fakeBackend) graphFor(t *testing.T, url string) *fakeGraph {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.graphs[url], "no graph loaded for %s", url)
	return b.graphs[url][len(b.graphs[url])-1]
}

func solidFrame(w, h int) Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 200, 100, 50, 255
	}
	return Frame{Image: img, Sequence: 1, Captured: time.Now()}
}

func waitForState(t *testing.T, a *Annotator, want LoopState) Status {
	t.Helper()
	require.Eventually(t, func() bool {
		return a.Status().State == want
	}, 2*time.Second, 5*time.Millisecond, "annotator never reached %s (now %s)", want, a.Status().State)
	return a.Status()
}

// recordingCanvas logs every call in order.
type recordingCanvas struct {
	calls []string
}

func (c *recordingCanvas) Resize(w, h int) { c.calls = append(c.calls, fmt.Sprintf("resize %dx%d", w, h)) }
func (c *recordingCanvas) Clear()          { c.calls = append(c.calls, "clear") }

func (c *recordingCanvas) StrokeRect(r Box, col color.Color, lw int) {
	c.calls = append(c.calls, fmt.Sprintf("stroke %v %v lw=%d", r, colorHex(col), lw))
}

func (c *recordingCanvas) FillRect(r Box, col color.Color) {
	c.calls = append(c.calls, fmt.Sprintf("fill %v %v", r, colorHex(col)))
}

func (c *recordingCanvas) FillText(text string, x, y float64, col color.Color) {
	c.calls = append(c.calls, fmt.Sprintf("text %q %v,%v %v", text, x, y, colorHex(col)))
}

func (c *recordingCanvas) MeasureText(text string) float64 {
	return float64(7 * len(text))
}

func colorHex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02X%02X%02X", r>>8, g>>8, b>>8)
}
