package route

import (
	"net/http"
	"os"
	"path/filepath"

	"citymonitor/internal/config"
	"citymonitor/internal/handler"
	"citymonitor/internal/logger"
	authmw "citymonitor/internal/middleware"
	"citymonitor/internal/repository"
	wshub "citymonitor/internal/service/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps is everything the HTTP layer talks to.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Manager       handler.DetectionManager
	Alerts        handler.AlertService
	Hub           *wshub.HubService
	Cameras       repository.CameraRepository
	Snapshots     repository.SnapshotRepository
	Detections    repository.DetectionRepository
	StaticDirPath string
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(staticDir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers static files, API endpoints and WebSocket
// endpoints behind the authentication middleware.
func SetupRoutes(d Deps) http.Handler {
	staticDir := d.StaticDirPath
	if staticDir == "" {
		staticDir = "static"
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authmw.AuthMiddleware)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", handler.LoginHandler(d.Config, d.Logger))
		r.Get("/logout", handler.LogoutHandler)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/view", handler.ViewWebsocketHandler(d.Hub, d.Logger))

		r.Route("/cameras", func(r chi.Router) {
			r.Get("/", handler.GetCamerasHandler(d.Manager, d.Cameras, d.Logger))
			r.Post("/", handler.CreateCameraHandler(d.Manager, d.Cameras, d.Logger))
			r.Get("/{camera}/detection", handler.DetectionStatusHandler(d.Manager, d.Logger))
			r.Post("/{camera}/detection/enable", handler.EnableDetectionHandler(d.Manager, d.Logger))
			r.Post("/{camera}/detection/disable", handler.DisableDetectionHandler(d.Manager, d.Logger))
			r.Post("/{camera}/model", handler.ModelSettingsHandler(d.Manager, d.Logger))
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", handler.GetAlertsHandler(d.Alerts, d.Logger))
			r.Post("/", handler.CreateAlertHandler(d.Alerts, d.Logger))
			r.Get("/ws", handler.AlertsWebsocketHandler(d.Hub, d.Logger))
			r.Patch("/{id}", handler.UpdateAlertHandler(d.Alerts, d.Logger))
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", handler.GetSnapshotsHandler(d.Config, d.Logger, d.Snapshots, d.Detections))
			r.Get("/objects", handler.GetObjectsHandler(d.Detections, d.Logger))
			r.Get("/objects/stats", handler.GetObjectStatsHandler(d.Detections, d.Logger))
			r.Get("/view", handler.ViewSnapshotHandler(d.Config))
			r.Delete("/", handler.DeleteSnapshotHandler(d.Config, d.Logger, d.Snapshots))
			r.Post("/clear", handler.ClearSnapshotsHandler(d.Config, d.Logger, d.Snapshots))
		})
	})

	r.Get("/logs/{level}", handler.ShowLogsHandler(d.Config))
	r.Post("/logs/{level}/clear", handler.ClearLogsHandler(d.Logger))

	// /settings -> static/settings.html
	r.Get("/*", dynamicHTMLHandler(staticDir))

	return r
}
