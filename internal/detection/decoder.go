package detection

import (
	"fmt"
	"math"
	"strconv"
)

const (
	// DecodingObjectnessRows reads rows of [xc, yc, w, h, objectness, class scores...]
	// normalised to the frame size.
	DecodingObjectnessRows = "objectness-rows"
	// DecodingClassScoresTransposed reads a [1, 4+C, N] output with box
	// coordinates in input-tensor pixels and no objectness column.
	DecodingClassScoresTransposed = "class-scores-transposed"
)

// OutputDecoder turns raw graph outputs into detections in frame pixels.
type OutputDecoder interface {
	Decode(outputs []*Tensor, frameWidth, frameHeight int, cfg CustomModelConfig) ([]Detection, error)
}

// DecoderFor returns the decoder registered under name. Empty selects the default.
func DecoderFor(name string) (OutputDecoder, error) {
	switch name {
	case "", DecodingObjectnessRows:
		return ObjectnessRowDecoder{}, nil
	case DecodingClassScoresTransposed:
		return ClassScoreDecoder{}, nil
	}
	return nil, fmt.Errorf("unknown decoding %q", name)
}

// ObjectnessRowDecoder is the default decoding strategy.
type ObjectnessRowDecoder struct{}

func (ObjectnessRowDecoder) Decode(outputs []*Tensor, frameWidth, frameHeight int, cfg CustomModelConfig) ([]Detection, error) {
	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("model returned no outputs")
	}
	out := outputs[0]

	var rows, cols int
	switch len(out.Shape) {
	case 2:
		rows, cols = out.Shape[0], out.Shape[1]
	case 3:
		if out.Shape[0] != 1 {
			return nil, fmt.Errorf("unsupported batch size %d", out.Shape[0])
		}
		rows, cols = out.Shape[1], out.Shape[2]
	default:
		return nil, fmt.Errorf("unexpected output shape %v", out.Shape)
	}
	if cols < 6 {
		return nil, fmt.Errorf("output rows have %d columns, need at least 6", cols)
	}
	if len(out.Data) < rows*cols {
		return nil, fmt.Errorf("output has %d values, shape %v needs %d", len(out.Data), out.Shape, rows*cols)
	}

	w, h := float64(frameWidth), float64(frameHeight)
	detections := []Detection{}
	for r := 0; r < rows; r++ {
		row := out.Data[r*cols : (r+1)*cols]

		if row[4] < float32(cfg.ConfidenceThreshold) {
			continue
		}
		classIndex := argmax(row[5:])

		width := float64(row[2]) * w
		height := float64(row[3]) * h
		detections = append(detections, Detection{
			Box: Box{
				X:      roundCoord(float64(row[0])*w - width/2),
				Y:      roundCoord(float64(row[1])*h - height/2),
				Width:  roundCoord(width),
				Height: roundCoord(height),
			},
			ClassName:  ClassLabel(cfg.ClassLabels, classIndex),
			Confidence: roundConfidence(float64(row[4])),
		})
	}
	return detections, nil
}

// ClassScoreDecoder handles exports that drop the objectness column; the
// best class score doubles as confidence.
type ClassScoreDecoder struct{}

func (ClassScoreDecoder) Decode(outputs []*Tensor, frameWidth, frameHeight int, cfg CustomModelConfig) ([]Detection, error) {
	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("model returned no outputs")
	}
	out := outputs[0]
	if len(out.Shape) != 3 || out.Shape[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", out.Shape)
	}
	channels, anchors := out.Shape[1], out.Shape[2]
	if channels < 5 {
		return nil, fmt.Errorf("output has %d channels, need at least 5", channels)
	}
	if len(out.Data) < channels*anchors {
		return nil, fmt.Errorf("output has %d values, shape %v needs %d", len(out.Data), out.Shape, channels*anchors)
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("input size must be positive, got %d", cfg.InputSize)
	}

	at := func(c, n int) float64 { return float64(out.Data[c*anchors+n]) }
	sx := float64(frameWidth) / float64(cfg.InputSize)
	sy := float64(frameHeight) / float64(cfg.InputSize)

	detections := []Detection{}
	scores := make([]float32, channels-4)
	for n := 0; n < anchors; n++ {
		for c := range scores {
			scores[c] = out.Data[(c+4)*anchors+n]
		}
		classIndex := argmax(scores)
		if scores[classIndex] < float32(cfg.ConfidenceThreshold) {
			continue
		}

		width := at(2, n) * sx
		height := at(3, n) * sy
		detections = append(detections, Detection{
			Box: Box{
				X:      roundCoord(at(0, n)*sx - width/2),
				Y:      roundCoord(at(1, n)*sy - height/2),
				Width:  roundCoord(width),
				Height: roundCoord(height),
			},
			ClassName:  ClassLabel(cfg.ClassLabels, classIndex),
			Confidence: roundConfidence(float64(scores[classIndex])),
		})
	}
	return detections, nil
}

// ClassLabel maps a class index to its label, or "Class {index}" when the
// index falls outside labels.
func ClassLabel(labels []string, index int) string {
	if index >= 0 && index < len(labels) {
		return labels[index]
	}
	return "Class " + strconv.Itoa(index)
}

// argmax returns the index of the largest value; the first one wins ties.
func argmax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// Reported coordinates are kept to 4 decimals and confidences to 6.
// Thresholds always compare the raw float32 score.
func roundCoord(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func roundConfidence(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
