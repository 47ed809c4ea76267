package dto

import "time"

// BufferedSnapshot holds an annotated frame and its detections before flushing to disk.
type BufferedSnapshot struct {
	Taken      time.Time
	Camera     string
	Detections []DetectionResult
	Data       []byte
}
