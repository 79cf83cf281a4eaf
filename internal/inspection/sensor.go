package inspection

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Random is the subset of *rand.Rand the simulator needs
type Random interface {
	Float64() float64
}

// SensorSimulator produces pseudo-random line telemetry. It keeps a live
// reading that drifts every tick and jumps to the captured values whenever a
// frame is sampled.
type SensorSimulator struct {
	mu   sync.Mutex
	rng  Random
	live SensorReading
}

// NewSensorSimulator creates a simulator. A nil rng seeds one from the clock.
func NewSensorSimulator(rng Random) *SensorSimulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SensorSimulator{
		rng:  rng,
		live: SensorReading{Temperature: 45, Noise: 60},
	}
}

// Sample returns the reading attached to a capture: temperature in [40,95)
// and noise in [60,100).
func (s *SensorSimulator) Sample() SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := SensorReading{
		Temperature: int(math.Floor(s.rng.Float64()*(95-40) + 40)),
		Noise:       int(math.Floor(s.rng.Float64()*(100-60) + 60)),
	}
	s.live = r
	return r
}

// Drift advances the live reading by one tick (temp ±1, noise ±2)
func (s *SensorSimulator) Drift() SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := float64(s.live.Temperature) + (s.rng.Float64()*2 - 1)
	n := float64(s.live.Noise) + (s.rng.Float64()*4 - 2)
	s.live = SensorReading{
		Temperature: int(math.Floor(t)),
		Noise:       int(math.Floor(n)),
	}
	return s.live
}

// Live returns the current reading without advancing it
func (s *SensorSimulator) Live() SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}
