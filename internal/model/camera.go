package model

import "time"

// Camera is a registered video source. StreamURL is empty for cameras
// that push frames over UDP.
type Camera struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	StreamURL   string    `json:"streamUrl"`
	Location    string    `json:"location"`
	Active      bool      `json:"active"`
	Latitude    string    `json:"latitude,omitempty"`
	Longitude   string    `json:"longitude,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
