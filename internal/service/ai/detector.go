package ai

import (
	"context"
	"fmt"
	"image"
	"sync"

	"citymonitor/internal/detection"
	"citymonitor/internal/logger"

	"gocv.io/x/gocv"
)

const (
	ssdInputSize = 300
	ssdScale     = 1.0 / 127.5
	ssdMean      = 127.5
)

// SSDDetector is the bundled COCO SSD MobileNet detector. It resizes,
// normalises and filters by its own threshold.
type SSDDetector struct {
	net       gocv.Net
	threshold float64
	logger    *logger.Logger
	mu        sync.Mutex
	closed    bool
}

// NewSSDDetector loads the frozen graph and its text config from disk.
func NewSSDDetector(modelPath, configPath string, threshold float64, logger *logger.Logger) (*SSDDetector, error) {
	if err := requireFile(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if err := requireFile(configPath); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	if err := preferCPU(&net); err != nil {
		net.Close()
		return nil, err
	}

	logger.Info("Detection network initialized successfully")
	return &SSDDetector{net: net, threshold: threshold, logger: logger}, nil
}

// Detect runs the network on frame and returns detections above the
// detector's threshold in frame pixels.
func (d *SSDDetector) Detect(ctx context.Context, frame detection.Frame) ([]detection.Detection, error) {
	if frame.Image == nil {
		return nil, fmt.Errorf("decoded image is empty")
	}

	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	// blob parameters fit the ssd coco net input
	blob := gocv.BlobFromImage(mat, ssdScale, image.Pt(ssdInputSize, ssdInputSize),
		gocv.NewScalar(ssdMean, ssdMean, ssdMean, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("detector closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	values, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	return decodeSSD(values, mat.Cols(), mat.Rows(), d.threshold), nil
}

func (d *SSDDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// decodeSSD reads [batch_id, class_id, confidence, x1, y1, x2, y2] rows
// with corners normalised to the frame.
func decodeSSD(values []float32, width, height int, threshold float64) []detection.Detection {
	results := []detection.Detection{}
	w, h := float64(width), float64(height)

	for i := 0; i+7 <= len(values); i += 7 {
		confidence := float64(values[i+2])
		if confidence <= threshold {
			continue
		}

		classID := int(values[i+1])
		label, ok := detection.CocoLabel(classID)
		if !ok {
			label = fmt.Sprintf("Class %d", classID)
		}

		x1, y1 := clamp01(values[i+3])*w, clamp01(values[i+4])*h
		x2, y2 := clamp01(values[i+5])*w, clamp01(values[i+6])*h
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		results = append(results, detection.Detection{
			Box:        detection.Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1},
			ClassName:  label,
			Confidence: confidence,
		})
	}

	return results
}

func clamp01(v float32) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return float64(v)
}

func preferCPU(net *gocv.Net) error {
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		return fmt.Errorf("failed to set preferable backend or target")
	}
	return nil
}
