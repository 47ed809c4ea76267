package dto

import "citymonitor/internal/model"

// AlertFilters narrow the alert list. Zero values mean "any".
type AlertFilters struct {
	Status   model.AlertStatus
	Priority model.AlertPriority
	CameraID int64
	Limit    int
	Offset   int
}
