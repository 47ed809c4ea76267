// Package detection implements the video frame annotation loop: model
// loading, per-tick frame sampling, inference and overlay rendering.
//
// One Annotator exists per camera. It owns its model handle and its
// canvas; nothing else in the process touches them.
package detection

import (
	"image"
	"time"
)

// ModelKind selects which inference backend a Model wraps.
type ModelKind int

const (
	KindStandard ModelKind = iota
	KindCustom
)

func (k ModelKind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

func (k ModelKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseModelKind maps the form/config value to a ModelKind.
func ParseModelKind(s string) (ModelKind, bool) {
	switch s {
	case "standard", "coco-ssd", "":
		return KindStandard, true
	case "custom":
		return KindCustom, true
	}
	return KindStandard, false
}

// LoopState drives which controls are usable for a camera.
type LoopState int

const (
	StateIdle LoopState = iota
	StateLoading
	StateReady
	StateDetecting
	StateError
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDetecting:
		return "detecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

func (s LoopState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Box is a rectangle in source-frame pixel coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection is one predicted object on one frame.
type Detection struct {
	Box        Box     `json:"box"`
	ClassName  string  `json:"class"`
	Confidence float64 `json:"score"`
}

// Frame is a decoded video frame at its native resolution.
type Frame struct {
	Image    image.Image
	Sequence uint64
	Captured time.Time
}

func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Annotation is handed to the paint callback after every rendered tick.
type Annotation struct {
	Camera     string
	Frame      Frame
	Detections []Detection
	Overlay    image.Image
}
