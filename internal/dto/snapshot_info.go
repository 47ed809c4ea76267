package dto

import (
	"encoding/json"
	"time"
)

// SnapshotInfo represents metadata about a stored snapshot.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	Camera    string    `json:"camera"`
	Objects   []string  `json:"objects"`
}

// MarshalJSON formats date as DD-MM-YYYY and time-of-day as HH:MM.
func (p SnapshotInfo) MarshalJSON() ([]byte, error) {
	type Alias SnapshotInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      p.Date.Format("02-01-2006"),
		TimeOfDay: p.TimeOfDay.Format("15:04"),
		Alias:     (Alias)(p),
	})
}
