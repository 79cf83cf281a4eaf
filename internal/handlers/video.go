package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/video"
)

const maxVideoMemory = 64 << 20

// startVideo stores the upload and starts sampling it. Any running session
// is stopped first.
func (r *Router) startVideo(w http.ResponseWriter, req *http.Request) {
	if r.Videos == nil || r.Clips == nil || r.Uploads == nil || r.Inspector == nil {
		respondError(w, http.StatusServiceUnavailable, "Video sampling unavailable")
		return
	}

	if err := req.ParseMultipartForm(maxVideoMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respondError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	file, header, err := req.FormFile("video")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No video uploaded")
		return
	}
	defer file.Close()

	name, err := r.Uploads.SaveUpload(file, header.Filename, ".mp4")
	if err != nil {
		log.Printf("❌ Failed to store video upload: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to store video")
		return
	}
	path, err := r.Uploads.Path(name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to store video")
		return
	}
	cleanup := func() error { return r.Uploads.DeleteFile(name) }

	source, err := r.Clips(req.Context(), path, cleanup)
	if err != nil {
		log.Printf("❌ Failed to open video %s: %v", name, err)
		if cerr := cleanup(); cerr != nil {
			log.Printf("⚠️ Failed to remove %s: %v", name, cerr)
		}
		respondError(w, http.StatusUnprocessableEntity, "Failed to read video")
		return
	}

	kind := inspection.ParseType(req.FormValue("inspectionType"))
	target := req.FormValue("target")
	if target == "" {
		target = req.FormValue("productType")
	}

	s := r.Videos.Start(kind, source, r.Inspector.VideoHandler(kind, target))
	respondJSON(w, http.StatusAccepted, s.Info())
}

func (r *Router) getVideo(w http.ResponseWriter, req *http.Request) {
	if r.Videos == nil {
		respondError(w, http.StatusNotFound, "Video session not found")
		return
	}
	s, err := r.Videos.Get(mux.Vars(req)["id"])
	if err != nil {
		respondVideoError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Info())
}

// stopVideo stops sampling. A frame already being classified still lands.
func (r *Router) stopVideo(w http.ResponseWriter, req *http.Request) {
	if r.Videos == nil {
		respondError(w, http.StatusNotFound, "Video session not found")
		return
	}
	s, err := r.Videos.Stop(mux.Vars(req)["id"])
	if err != nil {
		respondVideoError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.Info())
}

func respondVideoError(w http.ResponseWriter, err error) {
	if errors.Is(err, video.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, "Video session not found")
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
