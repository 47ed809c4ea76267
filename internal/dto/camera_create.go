package dto

// CameraCreate is the body of a camera registration. Active defaults to true.
type CameraCreate struct {
	Name        string `json:"name"`
	StreamURL   string `json:"streamUrl"`
	Location    string `json:"location"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}
