// Package monitor tracks frame-loop performance over a rolling window.
package monitor

import (
	"sync"
	"time"
)

// DefaultWindow is the number of recent frames the rolling statistics cover.
const DefaultWindow = 60

// Stats is a point-in-time snapshot of pipeline performance.
type Stats struct {
	FPS           float64 `json:"fps"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	LastLatencyMS float64 `json:"last_latency_ms"`
	Frames        int64   `json:"frames"`
}

// Monitor accumulates per-frame timings. It is safe for concurrent use:
// the pipeline records while server handlers read snapshots.
type Monitor struct {
	mu        sync.Mutex
	window    int
	arrivals  []time.Time
	latencies []float64
	frames    int64
}

// New creates a Monitor covering the last window frames. Non-positive
// windows fall back to DefaultWindow.
func New(window int) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Monitor{window: window}
}

// Record notes one processed frame and its processing latency.
func (m *Monitor) Record(latency time.Duration) {
	m.record(time.Now(), latency)
}

func (m *Monitor) record(now time.Time, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.frames++
	m.arrivals = append(m.arrivals, now)
	if len(m.arrivals) > m.window {
		m.arrivals = m.arrivals[1:]
	}
	m.latencies = append(m.latencies, float64(latency)/float64(time.Millisecond))
	if len(m.latencies) > m.window {
		m.latencies = m.latencies[1:]
	}
}

// Stats returns the rolling statistics. FPS derives from frame arrival
// spacing inside the window and reads zero until two frames have arrived.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{Frames: m.frames}
	if n := len(m.latencies); n > 0 {
		var sum float64
		for _, l := range m.latencies {
			sum += l
		}
		s.AvgLatencyMS = sum / float64(n)
		s.LastLatencyMS = m.latencies[n-1]
	}
	if n := len(m.arrivals); n >= 2 {
		elapsed := m.arrivals[n-1].Sub(m.arrivals[0]).Seconds()
		if elapsed > 0 {
			s.FPS = float64(n-1) / elapsed
		}
	}
	return s
}

// Reset clears the rolling window and the frame counter.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arrivals = nil
	m.latencies = nil
	m.frames = 0
}
