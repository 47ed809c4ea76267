package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotReady is returned when detection is toggled on without a ready model.
	ErrModelNotReady = errors.New("model not ready")
	// ErrClosed is returned by operations on a closed Annotator.
	ErrClosed = errors.New("annotator closed")
	// ErrUnsupportedModel is wrapped by ModelLoadError for unknown model kinds.
	ErrUnsupportedModel = errors.New("unsupported model format")
)

// ModelLoadError reports a failed model fetch or parse.
type ModelLoadError struct {
	Kind ModelKind
	URL  string
	Err  error
}

func (e *ModelLoadError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("Failed to load %s model from %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("Failed to load %s model: %v", e.Kind, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// InferenceError reports a failure on a single frame. It never stops the loop.
type InferenceError struct {
	Stage string // preprocess, predict, decode, detect
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed at %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ConfigValidationError rejects a settings form; the active model is kept.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
