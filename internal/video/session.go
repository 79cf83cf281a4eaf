package video

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xelth-com/spectraq/internal/inspection"
)

// FrameHandler classifies one sampled frame and stores the resulting record
type FrameHandler func(ctx context.Context, frame []byte) (inspection.Record, error)

// Status is the lifecycle of a sampling session
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusStopped   Status = "STOPPED"
	StatusCompleted Status = "COMPLETED"
)

// Info is a point-in-time view of a session
type Info struct {
	ID             string          `json:"id"`
	Status         Status          `json:"status"`
	InspectionType inspection.Type `json:"inspectionType"`
	Planned        int             `json:"planned,omitempty"`
	Sampled        int             `json:"sampled"`
	Skipped        int             `json:"skipped"`
	Failed         int             `json:"failed"`
	Records        []string        `json:"records"`
	LastError      string          `json:"lastError,omitempty"`
	InFlight       bool            `json:"inFlight"`
	StartedAt      time.Time       `json:"startedAt"`
	EndedAt        *time.Time      `json:"endedAt,omitempty"`
}

// Session samples a source on a ticker. At most one frame is in flight; ticks
// that fire while the previous frame is still being classified are skipped.
type Session struct {
	id       string
	kind     inspection.Type
	planned  int
	source   FrameSource
	handle   FrameHandler
	interval time.Duration

	inFlight  atomic.Bool
	pending   sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
	exhausted chan struct{}
	exhaust   sync.Once
	done      chan struct{}

	mu        sync.Mutex
	status    Status
	sampled   int
	skipped   int
	failed    int
	records   []string
	lastErr   string
	startedAt time.Time
	endedAt   time.Time
}

// NewSession prepares a session; call Start to begin sampling
func NewSession(id string, kind inspection.Type, source FrameSource, handle FrameHandler, interval time.Duration) *Session {
	planned := 0
	if c, ok := source.(*Clip); ok {
		planned = c.Frames()
	}
	return &Session{
		id:        id,
		kind:      kind,
		planned:   planned,
		source:    source,
		handle:    handle,
		interval:  interval,
		stop:      make(chan struct{}),
		exhausted: make(chan struct{}),
		done:      make(chan struct{}),
		status:    StatusRunning,
		records:   []string{},
	}
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Start runs the sampling loop until the source is exhausted or Stop is
// called. In-flight frames run on ctx, so cancelling ctx aborts them; Stop
// does not.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	log.Printf("🎬 Video session %s started (%s every %s)", s.id, s.kind, s.interval)
	go s.loop(ctx)
}

func (s *Session) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		go s.finish()
	}()

	for {
		select {
		case <-s.stop:
			s.end(StatusStopped)
			return
		case <-s.exhausted:
			s.end(StatusCompleted)
			return
		case <-ctx.Done():
			s.end(StatusStopped)
			return
		case <-ticker.C:
			// a stop that raced the tick wins
			select {
			case <-s.stop:
				s.end(StatusStopped)
				return
			default:
			}
			s.tick(ctx)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer s.inFlight.Store(false)

		frame, ok, err := s.source.Next(ctx)
		if !ok {
			s.exhaust.Do(func() { close(s.exhausted) })
			return
		}
		if err != nil {
			s.fail(err)
			return
		}

		s.mu.Lock()
		s.sampled++
		s.mu.Unlock()

		rec, err := s.handle(ctx, frame)
		if err != nil {
			s.fail(err)
			return
		}

		s.mu.Lock()
		s.records = append(s.records, rec.ID)
		s.mu.Unlock()
	}()
}

func (s *Session) fail(err error) {
	log.Printf("⚠️ Video session %s frame failed: %v", s.id, err)
	s.mu.Lock()
	s.failed++
	s.lastErr = err.Error()
	s.mu.Unlock()
}

func (s *Session) end(status Status) {
	s.mu.Lock()
	s.status = status
	s.endedAt = time.Now().UTC()
	s.mu.Unlock()
	log.Printf("🛑 Video session %s %s", s.id, status)
}

// finish waits for the in-flight frame, then releases the source
func (s *Session) finish() {
	s.pending.Wait()
	if err := s.source.Close(); err != nil {
		log.Printf("⚠️ Video session %s cleanup failed: %v", s.id, err)
	}
	close(s.done)
}

// Stop ends sampling. A frame already being classified still completes and
// its record is kept.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed after the loop ended and the last in-flight frame settled
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Running reports whether the loop is still sampling
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusRunning
}

// Info returns a snapshot of the session
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]string, len(s.records))
	copy(records, s.records)

	info := Info{
		ID:             s.id,
		Status:         s.status,
		InspectionType: s.kind,
		Planned:        s.planned,
		Sampled:        s.sampled,
		Skipped:        s.skipped,
		Failed:         s.failed,
		Records:        records,
		LastError:      s.lastErr,
		InFlight:       s.inFlight.Load(),
		StartedAt:      s.startedAt,
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		info.EndedAt = &ended
	}
	return info
}
