package dto

import "citymonitor/internal/detection"

// FrameMessage is pushed to viewers for every annotated frame. Image is a
// base64 JPEG of the frame with its overlay composited.
type FrameMessage struct {
	Camera     string                `json:"camera"`
	Image      string                `json:"image"`
	Detections []detection.Detection `json:"detections"`
}

// Notification is pushed on the alerts topic.
type Notification struct {
	Type string `json:"type"`
}

const AlertsUpdated = "ALERTS_UPDATE"
