package mapview

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
)

// CameraTarget is where a fly-to animation ends.
type CameraTarget struct {
	Center   orb.Point     `json:"center"`
	Zoom     float64       `json:"zoom"`
	Pitch    float64       `json:"pitch"`
	Bearing  float64       `json:"bearing"`
	Duration time.Duration `json:"-"`
}

// Flight is one fly-to animation. A newer flight always supersedes an
// older one; flights never queue.
type Flight struct {
	StartedAt  time.Time    `json:"-"`
	Target     CameraTarget `json:"target"`
	Seq        uint64       `json:"seq"`
	DurationMS int64        `json:"duration_ms"`
	// Replaces is the sequence of the flight this one cancelled, or 0.
	Replaces uint64 `json:"replaces,omitempty"`
}

// Done reports whether the flight has finished at now.
func (f Flight) Done(now time.Time) bool {
	return !now.Before(f.StartedAt.Add(f.Target.Duration))
}

// Camera tracks the most recent fly-to request.
type Camera struct {
	mu      sync.Mutex
	seq     uint64
	last    *Flight
	resting CameraTarget
}

// NewCamera creates a camera resting at target.
func NewCamera(target CameraTarget) *Camera {
	return &Camera{resting: target}
}

// FlyTo starts a flight to target, cancelling any flight still in progress.
func (c *Camera) FlyTo(target CameraTarget, now time.Time) Flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	f := Flight{
		Seq:        c.seq,
		Target:     target,
		StartedAt:  now,
		DurationMS: target.Duration.Milliseconds(),
	}
	if c.last != nil && !c.last.Done(now) {
		f.Replaces = c.last.Seq
	}
	c.last = &f
	return f
}

// InFlight returns the flight still animating at now, if any.
func (c *Camera) InFlight(now time.Time) (Flight, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil || c.last.Done(now) {
		return Flight{}, false
	}
	return *c.last, true
}

// Target returns where the camera is, or will be once the current flight ends.
func (c *Camera) Target() CameraTarget {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		return c.resting
	}
	return c.last.Target
}
