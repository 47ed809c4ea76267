package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"citymonitor/internal/config"
	"citymonitor/internal/detection"
	"citymonitor/internal/dto"
	"citymonitor/internal/logger"
	"citymonitor/internal/model"
	"citymonitor/internal/repository"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// FrameHandler receives complete JPEG frames from a camera.
type FrameHandler interface {
	HandleCameraImage(data []byte, camera string) error
}

// DetectionManager looks up the annotators of running cameras.
type DetectionManager interface {
	Annotator(camera string) (*detection.Annotator, bool)
	Statuses() []detection.Status
	AddCamera(cam model.Camera) error
}

// frameAssembler rebuilds JPEG frames split over UDP packets, one buffer per camera.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// Feed appends a packet and returns the frame once its footer arrived.
func (a *frameAssembler) Feed(camera string, data []byte) []byte {
	buf, ok := a.buffers[camera]
	if !ok {
		buf = new(bytes.Buffer)
		a.buffers[camera] = buf
	}

	if bytes.HasPrefix(data, jpegHeader) {
		buf.Reset()
	}
	buf.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil
	}
	frame := make([]byte, buf.Len())
	copy(frame, buf.Bytes())
	buf.Reset()
	return frame
}

// cameraName maps a sender IP to its configured camera name.
func cameraName(cfg *config.Config, ip string) string {
	if name, ok := cfg.CameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// UDPCameraHandler listens for UDP packets from cameras, reconstructs JPEG
// frames and forwards complete frames until ctx is cancelled.
func UDPCameraHandler(ctx context.Context, frames FrameHandler, logger *logger.Logger, config *config.Config) error {
	port := strconv.Itoa(config.CamerasPort)

	addr, err := net.ResolveUDPAddr("udp", ":"+port)
	if err != nil {
		return err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logger.Info("UDP Camera handler started on port %s", port)
	buffer := make([]byte, 65535)
	assembler := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		camera := cameraName(config, remoteAddr.IP.String())
		frame := assembler.Feed(camera, buffer[:n])
		if frame == nil {
			continue
		}
		if err := frames.HandleCameraImage(frame, camera); err != nil {
			logger.Warning("Camera %s: dropped frame: %v", camera, err)
		}
	}
}

// CameraInfo is a registered camera together with its detection loop, if running.
type CameraInfo struct {
	model.Camera
	Detection *detection.Status `json:"detection,omitempty"`
}

// GetCamerasHandler lists registered cameras and cameras that pushed frames
// without being registered.
func GetCamerasHandler(manager DetectionManager, cameraRepo repository.CameraRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cams, err := cameraRepo.GetAll()
		if err != nil {
			logger.Error("Error querying cameras: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		running := manager.Statuses()
		statuses := make(map[string]detection.Status, len(running))
		for _, st := range running {
			statuses[st.Camera] = st
		}

		list := make([]CameraInfo, 0, len(cams)+len(statuses))
		for _, cam := range cams {
			info := CameraInfo{Camera: cam}
			if st, ok := statuses[cam.Name]; ok {
				info.Detection = &st
				delete(statuses, cam.Name)
			}
			list = append(list, info)
		}
		for _, st := range running {
			if _, ok := statuses[st.Camera]; !ok {
				continue
			}
			list = append(list, CameraInfo{Camera: model.Camera{Name: st.Camera, Active: true}, Detection: &st})
		}

		writeJSON(w, http.StatusOK, list, logger)
	}
}

// CreateCameraHandler registers a camera posted as JSON. An active stream
// camera starts capturing right away.
func CreateCameraHandler(manager DetectionManager, cameraRepo repository.CameraRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body dto.CameraCreate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", logger)
			return
		}

		cam := model.Camera{
			Name:        strings.TrimSpace(body.Name),
			StreamURL:   strings.TrimSpace(body.StreamURL),
			Location:    body.Location,
			Latitude:    body.Latitude,
			Longitude:   body.Longitude,
			Description: body.Description,
			Active:      body.Active == nil || *body.Active,
		}
		if cam.Name == "" || strings.ContainsAny(cam.Name, "/?#") {
			writeError(w, http.StatusBadRequest, "name is required and may not contain / ? or #", logger)
			return
		}

		existing, err := cameraRepo.GetByName(cam.Name)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.Error("Error looking up camera %s: %v", cam.Name, err)
			writeError(w, http.StatusInternalServerError, "failed to create camera", logger)
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "camera already exists", logger)
			return
		}

		id, err := cameraRepo.Insert(&cam)
		if err != nil {
			logger.Error("Error creating camera %s: %v", cam.Name, err)
			writeError(w, http.StatusInternalServerError, "failed to create camera", logger)
			return
		}
		created, err := cameraRepo.GetByID(id)
		if err != nil || created == nil {
			cam.ID = id
			created = &cam
		}

		if err := manager.AddCamera(*created); err != nil {
			logger.Warning("Camera %s: registered but not started: %v", cam.Name, err)
		}
		logger.Info("Camera %s registered with ID %d", cam.Name, id)
		writeJSON(w, http.StatusCreated, created, logger)
	}
}
