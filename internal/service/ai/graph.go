package ai

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"citymonitor/internal/detection"

	"gocv.io/x/gocv"
)

// GraphModel runs an ONNX or TensorFlow graph through the OpenCV DNN module.
type GraphModel struct {
	net    gocv.Net
	source string
	mu     sync.Mutex
	closed bool
}

func newGraphModel(net gocv.Net, source string) *GraphModel {
	return &GraphModel{net: net, source: source}
}

// Predict feeds an NHWC [1, S, S, 3] tensor and returns the network output.
// The returned tensor aliases the output Mat; Release closes it.
func (g *GraphModel) Predict(ctx context.Context, input *detection.Tensor) ([]*detection.Tensor, error) {
	if len(input.Shape) != 4 || input.Shape[0] != 1 {
		return nil, fmt.Errorf("expected NHWC input with batch 1, got %v", input.Shape)
	}
	h, w, c := input.Shape[1], input.Shape[2], input.Shape[3]

	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, c, h, w}, gocv.MatTypeCV32F, float32Bytes(nhwcToNCHW(input.Data, h, w, c)))
	if err != nil {
		return nil, fmt.Errorf("failed to build input blob: %w", err)
	}
	defer blob.Close()

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, fmt.Errorf("model %s closed", g.source)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.net.SetInput(blob, "")
	out := g.net.Forward("")

	data, err := out.DataPtrFloat32()
	if err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	tensor := detection.NewTensor(out.Size(), data, func() { out.Close() })
	return []*detection.Tensor{tensor}, nil
}

func (g *GraphModel) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.net.Close()
}

// nhwcToNCHW reorders interleaved pixels into planar channels.
func nhwcToNCHW(data []float32, h, w, c int) []float32 {
	out := make([]float32, len(data))
	plane := h * w
	for p := 0; p < plane; p++ {
		for ch := 0; ch < c; ch++ {
			out[ch*plane+p] = data[p*c+ch]
		}
	}
	return out
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
