package model

// Detection represents a detected object in a stored snapshot.
type Detection struct {
	ID         int64   `json:"id"`
	SnapshotID int64   `json:"snapshot_id"`
	ObjectName string  `json:"object_name"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// ObjectCount summarises how often an object class was recorded.
type ObjectCount struct {
	ObjectName    string  `json:"object_name"`
	Detections    int     `json:"detections"`
	Snapshots     int     `json:"snapshots"`
	MaxConfidence float64 `json:"max_confidence"`
}
