package model

import (
	"fmt"
	"time"
)

type AlertStatus string

const (
	AlertStatusNew        AlertStatus = "new"
	AlertStatusInProgress AlertStatus = "in_progress"
	AlertStatusResolved   AlertStatus = "resolved"
	AlertStatusDismissed  AlertStatus = "dismissed"
)

// ParseAlertStatus validates a status coming from the API.
func ParseAlertStatus(s string) (AlertStatus, error) {
	switch st := AlertStatus(s); st {
	case AlertStatusNew, AlertStatusInProgress, AlertStatusResolved, AlertStatusDismissed:
		return st, nil
	}
	return "", fmt.Errorf("unknown alert status %q", s)
}

type AlertPriority string

const (
	AlertPriorityLow    AlertPriority = "low"
	AlertPriorityMedium AlertPriority = "medium"
	AlertPriorityHigh   AlertPriority = "high"
)

// ParseAlertPriority validates a priority coming from the API.
func ParseAlertPriority(s string) (AlertPriority, error) {
	switch p := AlertPriority(s); p {
	case AlertPriorityLow, AlertPriorityMedium, AlertPriorityHigh:
		return p, nil
	}
	return "", fmt.Errorf("unknown alert priority %q", s)
}

// Alert is a suspected violation raised from a camera detection.
type Alert struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Location     string        `json:"location"`
	Timestamp    time.Time     `json:"timestamp"`
	Status       AlertStatus   `json:"status"`
	Priority     AlertPriority `json:"priority"`
	LawReference string        `json:"lawReference,omitempty"`
	Source       string        `json:"source,omitempty"`
	ImageURL     string        `json:"imageUrl,omitempty"`
	CameraID     *int64        `json:"cameraId,omitempty"`
}
