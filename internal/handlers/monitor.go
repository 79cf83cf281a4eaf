package handlers

import (
	"net/http"
	"strconv"

	"github.com/xelth-com/spectraq/internal/history"
	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/video"
	ws "github.com/xelth-com/spectraq/internal/websocket"
)

// MonitorView is the live panel: newest record, telemetry, running session
type MonitorView struct {
	Plant   string                   `json:"plant"`
	Latest  *inspection.Record       `json:"latest"`
	Sensor  inspection.SensorReading `json:"sensor"`
	Session *video.Info              `json:"session"`
	Clients int                      `json:"clients"`
}

// getMetrics returns the dashboard aggregates. ?trend=n widens the chart.
func (r *Router) getMetrics(w http.ResponseWriter, req *http.Request) {
	trend := history.DefaultTrendWindow
	if v := req.URL.Query().Get("trend"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid trend window")
			return
		}
		trend = n
	}
	respondJSON(w, http.StatusOK, r.Store.Metrics(trend))
}

func (r *Router) getMonitor(w http.ResponseWriter, req *http.Request) {
	view := MonitorView{Plant: r.Plant.Name}

	if recent := r.Store.Recent(1); len(recent) > 0 {
		view.Latest = &recent[0]
	}
	if r.Sensor != nil {
		view.Sensor = r.Sensor.Live()
	}
	if r.Videos != nil {
		if s, ok := r.Videos.Active(); ok {
			info := s.Info()
			view.Session = &info
		}
	}
	if r.Hub != nil {
		view.Clients = r.Hub.ClientCount()
	}

	respondJSON(w, http.StatusOK, view)
}

func (r *Router) getLiveSensor(w http.ResponseWriter, req *http.Request) {
	if r.Sensor == nil {
		respondError(w, http.StatusServiceUnavailable, "Sensor feed unavailable")
		return
	}
	respondJSON(w, http.StatusOK, r.Sensor.Live())
}

func (r *Router) listTechnicians(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, r.Plant.Technicians)
}

// testAlert pushes the canned alert so operators can check their speakers
func (r *Router) testAlert(w http.ResponseWriter, req *http.Request) {
	alert := ws.TestAlert()
	r.publish(ws.EventAlert, alert)
	respondJSON(w, http.StatusOK, alert)
}
