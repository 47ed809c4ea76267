package handler

import (
	"errors"
	"net/http"

	"citymonitor/internal/detection"
	"citymonitor/internal/logger"

	"github.com/go-chi/chi/v5"
)

// annotatorFor resolves the {camera} URL parameter or writes a 404.
func annotatorFor(w http.ResponseWriter, r *http.Request, manager DetectionManager, logger *logger.Logger) (*detection.Annotator, bool) {
	camera := chi.URLParam(r, "camera")
	a, ok := manager.Annotator(camera)
	if !ok {
		writeError(w, http.StatusNotFound, "no detection loop for camera "+camera, logger)
	}
	return a, ok
}

// DetectionStatusHandler returns the loop state of one camera.
func DetectionStatusHandler(manager DetectionManager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := annotatorFor(w, r, manager, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, a.Status(), logger)
	}
}

// EnableDetectionHandler starts the frame loop. It answers 409 while no
// model is ready.
func EnableDetectionHandler(manager DetectionManager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := annotatorFor(w, r, manager, logger)
		if !ok {
			return
		}
		if err := a.EnableDetection(); err != nil {
			writeToggleError(w, err, logger)
			return
		}
		logger.Info("Camera %s: detection enabled", a.Camera())
		writeJSON(w, http.StatusOK, a.Status(), logger)
	}
}

// DisableDetectionHandler stops the frame loop.
func DisableDetectionHandler(manager DetectionManager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := annotatorFor(w, r, manager, logger)
		if !ok {
			return
		}
		if err := a.DisableDetection(); err != nil {
			writeToggleError(w, err, logger)
			return
		}
		logger.Info("Camera %s: detection disabled", a.Camera())
		writeJSON(w, http.StatusOK, a.Status(), logger)
	}
}

func writeToggleError(w http.ResponseWriter, err error, logger *logger.Logger) {
	switch {
	case errors.Is(err, detection.ErrModelNotReady):
		writeError(w, http.StatusConflict, err.Error(), logger)
	case errors.Is(err, detection.ErrClosed):
		writeError(w, http.StatusGone, err.Error(), logger)
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), logger)
	}
}

// ModelSettingsHandler applies the model settings form. Invalid settings
// answer 400 and keep the active model. A changed model URL starts a
// reload; the response then reports the loading state.
func ModelSettingsHandler(manager DetectionManager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := annotatorFor(w, r, manager, logger)
		if !ok {
			return
		}
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), logger)
			return
		}

		st := a.Status()
		kind, settings, err := detection.ParseSettings(r.PostForm, st.ModelType, st.Config)
		if err == nil {
			var reloaded bool
			reloaded, err = a.Configure(kind, settings)
			if err == nil && reloaded {
				logger.Info("Camera %s: reloading %s model", a.Camera(), kind)
			}
		}

		var validationErr *detection.ConfigValidationError
		switch {
		case errors.As(err, &validationErr):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": validationErr.Error(),
				"field": validationErr.Field,
			}, logger)
		case err != nil:
			writeToggleError(w, err, logger)
		default:
			writeJSON(w, http.StatusOK, a.Status(), logger)
		}
	}
}
