package video

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// FrameSource yields frames in capture order
type FrameSource interface {
	// Next returns the next frame. ok is false once the clip is exhausted.
	Next(ctx context.Context) (frame []byte, ok bool, err error)
	Close() error
}

// Clip walks a video file at a fixed cadence through an Extractor
type Clip struct {
	extractor *Extractor
	path      string
	interval  float64
	total     int
	cleanup   func() error

	mu   sync.Mutex
	next int
}

// OpenClip probes the video and plans one frame per interval, starting one
// interval in, capped at maxFrames. cleanup runs on Close.
func OpenClip(ctx context.Context, e *Extractor, path string, interval time.Duration, maxFrames int, cleanup func() error) (*Clip, error) {
	duration, err := e.Duration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get video duration: %w", err)
	}

	step := interval.Seconds()
	if step <= 0 {
		return nil, fmt.Errorf("invalid sample interval %s", interval)
	}
	total := PlannedFrames(duration, step, maxFrames)
	if total == 0 {
		return nil, fmt.Errorf("video is shorter than the %s sample interval", interval)
	}

	return &Clip{
		extractor: e,
		path:      path,
		interval:  step,
		total:     total,
		cleanup:   cleanup,
		next:      1,
	}, nil
}

// PlannedFrames counts the sample points strictly inside the clip
func PlannedFrames(duration, step float64, maxFrames int) int {
	if duration <= 0 || step <= 0 {
		return 0
	}
	n := int(math.Ceil(duration/step)) - 1
	if n < 0 {
		n = 0
	}
	if maxFrames > 0 && n > maxFrames {
		n = maxFrames
	}
	return n
}

// Frames reports how many frames the clip will yield
func (c *Clip) Frames() int {
	return c.total
}

func (c *Clip) Next(ctx context.Context) ([]byte, bool, error) {
	c.mu.Lock()
	if c.next > c.total {
		c.mu.Unlock()
		return nil, false, nil
	}
	ts := float64(c.next) * c.interval
	c.next++
	c.mu.Unlock()

	frame, err := c.extractor.FrameAt(ctx, c.path, ts)
	if err != nil {
		return nil, true, err
	}
	return frame, true, nil
}

func (c *Clip) Close() error {
	if c.cleanup != nil {
		return c.cleanup()
	}
	return nil
}
