package dto

import (
	"time"

	"citymonitor/internal/model"
)

// AlertsData is the response payload of the alert list.
type AlertsData struct {
	Alerts []model.Alert `json:"alerts"`
	Length int           `json:"length"`
}

// AlertUpdate is the body of an alert status change.
type AlertUpdate struct {
	Status string `json:"status"`
}

// AlertCreate is the body of a manually reported or externally raised alert.
type AlertCreate struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Location     string     `json:"location"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	LawReference string     `json:"lawReference"`
	Source       string     `json:"source"`
	ImageURL     string     `json:"imageUrl"`
	CameraID     *int64     `json:"cameraId"`
	Timestamp    *time.Time `json:"timestamp"`
}
