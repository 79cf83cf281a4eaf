package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/xelth-com/spectraq/internal/ai"
	"github.com/xelth-com/spectraq/internal/history"
	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/middleware"
	"github.com/xelth-com/spectraq/internal/services/inspector"
	ws "github.com/xelth-com/spectraq/internal/websocket"
)

const (
	maxImageUpload = 20 << 20
	maxFormMemory  = 32 << 20
)

// AssignRequest changes the owner of a ticket
type AssignRequest struct {
	InspectorID string `json:"inspectorId"`
}

// createInspection classifies an uploaded still and stores the merged record
func (r *Router) createInspection(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respondError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	file, header, err := req.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No image uploaded")
		return
	}
	defer file.Close()

	data, ok := readImage(w, file)
	if !ok {
		return
	}

	// productType is the field name the upload form uses
	target := req.FormValue("target")
	if target == "" {
		target = req.FormValue("productType")
	}

	rec, err := r.Inspector.Inspect(req.Context(), inspector.Request{
		Image:          data,
		MimeType:       header.Header.Get("Content-Type"),
		InspectionType: inspection.ParseType(req.FormValue("inspectionType")),
		Target:         target,
		Prefix:         inspection.PrefixStill,
	})
	if err != nil {
		respondClassifyError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

// readImage reads an uploaded image, answering 413 instead of truncating
// anything over maxImageUpload
func readImage(w http.ResponseWriter, file io.Reader) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(file, maxImageUpload+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read image")
		return nil, false
	}
	if len(data) > maxImageUpload {
		respondError(w, http.StatusRequestEntityTooLarge, "Image too large")
		return nil, false
	}
	return data, true
}

// respondClassifyError maps pipeline failures to HTTP answers. Model failures
// are logged with their cause but the client only sees the fixed message.
func respondClassifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ai.ErrNoImage):
		respondError(w, http.StatusBadRequest, "No image uploaded")
	case errors.Is(err, ai.ErrInvalidModelOutput):
		log.Printf("❌ Classification rejected: %v", err)
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error":      ai.FailureClassify,
			"error_kind": "invalid_model_output",
		})
	default:
		log.Printf("❌ Classification failed: %v", err)
		respondJSON(w, http.StatusBadGateway, map[string]string{
			"error":      ai.FailureClassify,
			"error_kind": "model_call",
		})
	}
}

// listInspections returns the history newest first
func (r *Router) listInspections(w http.ResponseWriter, req *http.Request) {
	filter, err := parseFilter(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, r.Store.List(filter))
}

// listIncidents returns the REJECT records, the ticket board
func (r *Router) listIncidents(w http.ResponseWriter, req *http.Request) {
	filter, err := parseFilter(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Status = inspection.StatusReject
	respondJSON(w, http.StatusOK, r.Store.List(filter))
}

func parseFilter(req *http.Request) (history.Filter, error) {
	q := req.URL.Query()
	var f history.Filter

	switch s := inspection.Status(strings.ToUpper(q.Get("status"))); s {
	case "":
	case inspection.StatusPass, inspection.StatusReject:
		f.Status = s
	default:
		return f, errors.New("Invalid status filter")
	}

	switch t := inspection.TicketStatus(strings.ToUpper(q.Get("ticket"))); t {
	case "":
	case inspection.TicketOpen, inspection.TicketResolved, inspection.TicketArchived:
		f.Ticket = t
	default:
		return f, errors.New("Invalid ticket filter")
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("Invalid limit")
		}
		f.Limit = n
	}
	return f, nil
}

// getInspection returns one record
func (r *Router) getInspection(w http.ResponseWriter, req *http.Request) {
	rec, err := r.Store.Get(mux.Vars(req)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// assignInspection hands a ticket to a technician
func (r *Router) assignInspection(w http.ResponseWriter, req *http.Request) {
	var body AssignRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inspectorID := strings.TrimSpace(body.InspectorID)
	if !r.Plant.IsAssignable(inspectorID) {
		respondError(w, http.StatusBadRequest, "Unknown technician")
		return
	}

	rec, err := r.Store.Assign(mux.Vars(req)["id"], inspectorID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	log.Printf("👷 %s assigned to %s by %s", rec.ID, inspectorID, operatorName(req))
	r.publish(ws.EventTicketUpdated, rec)
	respondJSON(w, http.StatusOK, rec)
}

// resolveInspection closes an open ticket
func (r *Router) resolveInspection(w http.ResponseWriter, req *http.Request) {
	rec, err := r.Store.Resolve(mux.Vars(req)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	log.Printf("✅ %s resolved by %s", rec.ID, operatorName(req))
	r.publish(ws.EventTicketUpdated, rec)
	respondJSON(w, http.StatusOK, rec)
}

// operatorName names the token holder, or the shared kiosk when auth is off
func operatorName(req *http.Request) string {
	if id := middleware.OperatorID(req.Context()); id != "" {
		return id
	}
	return "kiosk"
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, history.ErrNotFound):
		respondError(w, http.StatusNotFound, "Record not found")
	case errors.Is(err, history.ErrTicketClosed):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
