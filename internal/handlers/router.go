package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xelth-com/spectraq/internal/ai"
	"github.com/xelth-com/spectraq/internal/buildinfo"
	"github.com/xelth-com/spectraq/internal/config"
	"github.com/xelth-com/spectraq/internal/history"
	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/middleware"
	"github.com/xelth-com/spectraq/internal/plant"
	"github.com/xelth-com/spectraq/internal/services/inspector"
	"github.com/xelth-com/spectraq/internal/services/report"
	"github.com/xelth-com/spectraq/internal/storage"
	"github.com/xelth-com/spectraq/internal/video"
	ws "github.com/xelth-com/spectraq/internal/websocket"
)

// Assistant answers operator questions about the line
type Assistant interface {
	Ask(ctx context.Context, question string, c ai.ChatContext) (string, error)
	AskManual(ctx context.Context, errorCode, manual string, c ai.ChatContext) (string, string, error)
}

// ClipOpener turns an uploaded video into a frame source. cleanup must run
// when the source is closed.
type ClipOpener func(ctx context.Context, path string, cleanup func() error) (video.FrameSource, error)

// Deps are the services the HTTP layer talks to. Hub, Archive, Videos, Clips
// and Uploads are optional.
type Deps struct {
	Config    *config.Config
	Plant     *plant.Plant
	Store     *history.Store
	Sensor    *inspection.SensorSimulator
	Inspector *inspector.Service
	Assistant Assistant
	Renderer  *report.Renderer
	Archive   *report.Archive
	Videos    *video.Manager
	Clips     ClipOpener
	Uploads   *storage.LocalStorage
	Hub       *ws.Hub
	Provider  string
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	Deps
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	if d.Config == nil {
		d.Config = &config.Config{}
	}
	if d.Plant == nil {
		d.Plant = plant.Default()
	}

	r := &Router{
		Router: mux.NewRouter(),
		Deps:   d,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", r.getStatus).Methods("GET")

	// Inspections
	operator := middleware.AuthMiddleware(d.Config.JWTSecret)
	api.HandleFunc("/inspections", r.createInspection).Methods("POST")
	api.HandleFunc("/inspections", r.listInspections).Methods("GET")
	api.HandleFunc("/inspections/{id}", r.getInspection).Methods("GET")
	api.Handle("/inspections/{id}/assign", operator(http.HandlerFunc(r.assignInspection))).Methods("PUT")
	api.Handle("/inspections/{id}/resolve", operator(http.HandlerFunc(r.resolveInspection))).Methods("POST")
	api.HandleFunc("/inspections/{id}/report", r.inspectionReport).Methods("GET")
	api.HandleFunc("/incidents", r.listIncidents).Methods("GET")

	// Reports
	api.HandleFunc("/reports", r.exportReport).Methods("POST")
	api.HandleFunc("/reports/jobs/{id}", r.getReportJob).Methods("GET")

	// Monitoring
	api.HandleFunc("/metrics", r.getMetrics).Methods("GET")
	api.HandleFunc("/monitor", r.getMonitor).Methods("GET")
	api.HandleFunc("/sensors/live", r.getLiveSensor).Methods("GET")
	api.HandleFunc("/technicians", r.listTechnicians).Methods("GET")
	api.HandleFunc("/alerts/test", r.testAlert).Methods("POST")

	// Copilot
	api.HandleFunc("/chat", r.chat).Methods("POST")
	api.HandleFunc("/chat/manual", r.chatManual).Methods("POST")

	// Video sampling
	api.HandleFunc("/video", r.startVideo).Methods("POST")
	api.HandleFunc("/video/{id}", r.getVideo).Methods("GET")
	api.HandleFunc("/video/{id}", r.stopVideo).Methods("DELETE")

	if d.Hub != nil {
		r.HandleFunc("/ws", r.serveWs)
	}

	// Static dashboard
	if d.Config.FrontendDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(d.Config.FrontendDir)))
	}

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"server": "spectraq",
	})
}

// getStatus returns build and provider information
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "running",
		"plant":      r.Plant.Name,
		"provider":   r.Provider,
		"buildTime":  buildinfo.BuildTime,
		"commitTime": buildinfo.CommitTime,
		"commitHash": buildinfo.CommitHash,
		"startTime":  buildinfo.StartTime,
		"records":    r.Store.Len(),
	})
}

func (r *Router) serveWs(w http.ResponseWriter, req *http.Request) {
	ws.ServeWs(r.Hub, w, req)
}

// publish forwards an event to the dashboards when a hub is attached
func (r *Router) publish(t ws.EventType, payload interface{}) {
	if r.Hub == nil {
		return
	}
	r.Hub.Publish(ws.NewEvent(t, payload))
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
