package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/services/report"
)

// ReportPayload is the export form's payload field
type ReportPayload struct {
	Data *inspection.Record `json:"data"`
	Meta *report.Meta       `json:"meta"`
}

// inspectionReport renders a stored record with the default metadata and
// the frame that was classified for it
func (r *Router) inspectionReport(w http.ResponseWriter, req *http.Request) {
	rec, err := r.Store.Get(mux.Vars(req)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var img *report.Image
	if r.Inspector != nil {
		if frame, ok := r.Inspector.Frame(rec.ID); ok {
			img = &report.Image{Data: frame.Data, MimeType: frame.MimeType}
		}
	}

	r.sendReport(w, rec, report.DefaultMeta(rec, r.Plant), img)
}

// exportReport renders a record posted by the dashboard
func (r *Router) exportReport(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respondError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	raw := req.FormValue("payload")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "Missing report payload")
		return
	}

	var payload ReportPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || payload.Data == nil || payload.Meta == nil {
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	var img *report.Image
	if file, header, err := req.FormFile("image"); err == nil {
		data, ok := readImage(w, file)
		file.Close()
		if !ok {
			return
		}
		img = &report.Image{Data: data, MimeType: header.Header.Get("Content-Type")}
	}

	r.sendReport(w, *payload.Data, *payload.Meta, img)
}

// sendReport renders, hands a copy to the archive and streams the PDF back.
// The archive write never delays or fails the response.
func (r *Router) sendReport(w http.ResponseWriter, rec inspection.Record, meta report.Meta, img *report.Image) {
	pdfBytes, err := r.Renderer.Render(rec, meta, img)
	if err != nil {
		log.Printf("❌ PDF generation failed for %s: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}

	filename := report.FileName(rec, time.Now())
	if r.Archive != nil {
		job, err := r.Archive.Submit(filename, pdfBytes, report.FindingsOf(rec))
		if err != nil {
			log.Printf("⚠️ Report %s not archived: %v", filename, err)
		} else {
			w.Header().Set("X-Report-Path", job.Path)
			w.Header().Set("X-Report-Job", job.ID)
		}
	}

	// Set headers for download
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdfBytes)))

	w.Write(pdfBytes)
}

// getReportJob reports whether an archived copy reached the disk
func (r *Router) getReportJob(w http.ResponseWriter, req *http.Request) {
	if r.Archive == nil {
		respondError(w, http.StatusNotFound, "Report archive disabled")
		return
	}

	state, err := r.Archive.Job(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		if errors.Is(err, report.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "Report job not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, state)
}
