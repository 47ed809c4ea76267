package dto

import (
	"math"

	"citymonitor/internal/detection"
)

// DetectionResult is a detection snapped to whole pixels for storage and filenames.
type DetectionResult struct {
	Label      string
	Confidence float64
	X          int
	Y          int
	Width      int
	Height     int
}

// FromDetections converts loop detections to pixel results.
func FromDetections(detections []detection.Detection) []DetectionResult {
	results := make([]DetectionResult, 0, len(detections))
	for _, d := range detections {
		results = append(results, DetectionResult{
			Label:      d.ClassName,
			Confidence: d.Confidence,
			X:          int(math.Round(d.Box.X)),
			Y:          int(math.Round(d.Box.Y)),
			Width:      int(math.Round(d.Box.Width)),
			Height:     int(math.Round(d.Box.Height)),
		})
	}
	return results
}
