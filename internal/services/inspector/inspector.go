// Package inspector runs one captured frame through classification, sensor
// merging, history and realtime notification.
package inspector

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/xelth-com/spectraq/internal/ai"
	"github.com/xelth-com/spectraq/internal/history"
	"github.com/xelth-com/spectraq/internal/inspection"
	"github.com/xelth-com/spectraq/internal/plant"
	ws "github.com/xelth-com/spectraq/internal/websocket"
)

// keepFrames bounds how many captured frames stay available for reports
const keepFrames = 20

// Classifier produces a verdict for one frame
type Classifier interface {
	Classify(ctx context.Context, req ai.ClassifyRequest) (inspection.Verdict, error)
}

// Sensor provides the telemetry reading attached to a capture
type Sensor interface {
	Sample() inspection.SensorReading
}

// Publisher fans events out to dashboards
type Publisher interface {
	Publish(event ws.Event)
}

// Request is one frame to inspect
type Request struct {
	Image          []byte
	MimeType       string
	InspectionType inspection.Type
	Target         string
	// Prefix selects the id namespace, LOG for stills and V-LOG for video
	Prefix string
}

// Frame is a retained capture
type Frame struct {
	Data     []byte
	MimeType string
}

// Service is the capture pipeline shared by uploads and video sessions
type Service struct {
	classifier Classifier
	sensor     Sensor
	store      *history.Store
	publisher  Publisher
	plant      *plant.Plant
	seq        *inspection.Sequence
	now        func() time.Time

	mu     sync.RWMutex
	frames map[string]Frame
	order  []string
}

// New wires the pipeline. publisher may be nil.
func New(classifier Classifier, sensor Sensor, store *history.Store, publisher Publisher, p *plant.Plant) *Service {
	return &Service{
		classifier: classifier,
		sensor:     sensor,
		store:      store,
		publisher:  publisher,
		plant:      p,
		seq:        &inspection.Sequence{},
		now:        time.Now,
		frames:     make(map[string]Frame),
	}
}

// Inspect classifies the frame, merges telemetry and appends the record.
// On any failure the history is left untouched.
func (s *Service) Inspect(ctx context.Context, req Request) (inspection.Record, error) {
	if len(req.Image) == 0 {
		return inspection.Record{}, ai.ErrNoImage
	}

	target := strings.TrimSpace(req.Target)
	if target == "" {
		target = s.plant.Profile(req.InspectionType).Target
	}
	prefix := req.Prefix
	if prefix == "" {
		prefix = inspection.PrefixStill
	}

	capturedAt := s.now()
	reading := s.sensor.Sample()

	verdict, err := s.classifier.Classify(ctx, ai.ClassifyRequest{
		Image:          req.Image,
		MimeType:       req.MimeType,
		Target:         target,
		InspectionType: req.InspectionType,
	})
	if err != nil {
		return inspection.Record{}, err
	}

	rec := inspection.Merge(verdict, reading, req.InspectionType, inspection.MergeOptions{
		ID:         s.seq.Next(prefix),
		CapturedAt: capturedAt,
	})
	s.store.Append(rec)
	s.keepFrame(rec.ID, Frame{Data: req.Image, MimeType: req.MimeType})

	log.Printf("🔍 %s %s %s (temp=%d°C noise=%ddB)", rec.ID, rec.InspectionType, rec.Status, rec.Temperature, rec.Noise)
	s.announce(rec)
	return rec, nil
}

func (s *Service) announce(rec inspection.Record) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ws.NewEvent(ws.EventRecordCreated, rec))
	if alert, ok := ws.AlertFor(rec); ok {
		s.publisher.Publish(ws.NewEvent(ws.EventAlert, alert))
	}
}

// VideoHandler adapts the pipeline to a video session
func (s *Service) VideoHandler(kind inspection.Type, target string) func(ctx context.Context, frame []byte) (inspection.Record, error) {
	return func(ctx context.Context, frame []byte) (inspection.Record, error) {
		return s.Inspect(ctx, Request{
			Image:          frame,
			MimeType:       "image/jpeg",
			InspectionType: kind,
			Target:         target,
			Prefix:         inspection.PrefixVideo,
		})
	}
}

func (s *Service) keepFrame(id string, f Frame) {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	f.Data = data

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[id] = f
	s.order = append(s.order, id)
	for len(s.order) > keepFrames {
		delete(s.frames, s.order[0])
		s.order = s.order[1:]
	}
}

// Frame returns the capture behind a record if it is still retained
func (s *Service) Frame(id string) (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.frames[id]
	return f, ok
}

// LastFrame returns the most recent capture
func (s *Service) LastFrame() (string, Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return "", Frame{}, false
	}
	id := s.order[len(s.order)-1]
	return id, s.frames[id], true
}
