package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"citymonitor/internal/dto"
	"citymonitor/internal/logger"
	"citymonitor/internal/model"
	"citymonitor/internal/repository"

	"github.com/go-chi/chi/v5"
)

// AlertService lists, creates and updates alerts.
type AlertService interface {
	List(filter *dto.AlertFilters) (*dto.AlertsData, error)
	Create(alert *model.Alert) (*model.Alert, error)
	UpdateStatus(id int64, status model.AlertStatus) (*model.Alert, error)
}

// GetAlertsHandler returns alerts filtered by status, priority and camera id.
func GetAlertsHandler(alerts AlertService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := atoiDefault(q.Get("limit"), 50)
		page := atoiDefault(q.Get("page"), 1)

		filter := &dto.AlertFilters{
			Limit:  limit,
			Offset: (page - 1) * limit,
		}
		if v := q.Get("status"); v != "" {
			status, err := model.ParseAlertStatus(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), logger)
				return
			}
			filter.Status = status
		}
		if v := q.Get("priority"); v != "" {
			priority, err := model.ParseAlertPriority(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), logger)
				return
			}
			filter.Priority = priority
		}
		if v := q.Get("camera"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "camera must be a numeric id", logger)
				return
			}
			filter.CameraID = id
		}

		data, err := alerts.List(filter)
		if err != nil {
			logger.Error("Error querying alerts: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if data.Alerts == nil {
			data.Alerts = []model.Alert{}
		}
		writeJSON(w, http.StatusOK, data, logger)
	}
}

// UpdateAlertHandler changes the status of the alert in the {id} URL parameter.
func UpdateAlertHandler(alerts AlertService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid alert id", logger)
			return
		}

		var body dto.AlertUpdate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", logger)
			return
		}
		status, err := model.ParseAlertStatus(body.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), logger)
			return
		}

		alert, err := alerts.UpdateStatus(id, status)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && alert == nil) {
			writeError(w, http.StatusNotFound, "alert not found", logger)
			return
		}
		if err != nil {
			logger.Error("Error updating alert %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Alert %d set to %s", id, status)
		writeJSON(w, http.StatusOK, alert, logger)
	}
}

// CreateAlertHandler stores an alert posted as JSON and answers 201 with it.
func CreateAlertHandler(alerts AlertService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body dto.AlertCreate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", logger)
			return
		}

		alert := &model.Alert{
			Title:        strings.TrimSpace(body.Title),
			Description:  body.Description,
			Location:     body.Location,
			LawReference: body.LawReference,
			Source:       body.Source,
			ImageURL:     body.ImageURL,
			CameraID:     body.CameraID,
		}
		if alert.Title == "" {
			writeError(w, http.StatusBadRequest, "title is required", logger)
			return
		}
		if body.Status != "" {
			status, err := model.ParseAlertStatus(body.Status)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), logger)
				return
			}
			alert.Status = status
		}
		if body.Priority != "" {
			priority, err := model.ParseAlertPriority(body.Priority)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), logger)
				return
			}
			alert.Priority = priority
		}
		if body.Timestamp != nil {
			alert.Timestamp = *body.Timestamp
		}

		created, err := alerts.Create(alert)
		if err != nil {
			logger.Error("Error creating alert: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to create alert", logger)
			return
		}
		writeJSON(w, http.StatusCreated, created, logger)
	}
}
