package landmark

import (
	"io"
	"sync"
	"sync/atomic"
)

// Source delivers landmark frames to the processing pipeline. Next blocks
// until a frame is available and returns io.EOF when the stream ends.
// Implementations must be safe for one consumer goroutine.
type Source interface {
	Next() (*Frame, error)
	Close() error
}

// ChannelSource is a push-driven Source backed by a bounded channel. The
// WebSocket ingest handler publishes decoded frames into it; the pipeline
// consumes them via Next. Publishing never blocks: when the pipeline lags
// behind the detector, the newest frame is dropped and counted rather than
// stalling the producer.
type ChannelSource struct {
	frames  chan *Frame
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// NewChannelSource creates a ChannelSource holding at most buffer frames.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSource{
		frames: make(chan *Frame, buffer),
		done:   make(chan struct{}),
	}
}

// Publish offers a frame to the consumer. It reports false when the frame
// was dropped because the buffer is full or the source is closed.
func (s *ChannelSource) Publish(f *Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- f:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Next returns the next published frame, blocking until one arrives. After
// Close, buffered frames are drained before io.EOF is reported.
func (s *ChannelSource) Next() (*Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.done:
		select {
		case f := <-s.frames:
			return f, nil
		default:
			return nil, io.EOF
		}
	}
}

// Close ends the stream. Idempotent.
func (s *ChannelSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Dropped reports how many frames were discarded because the consumer
// could not keep up.
func (s *ChannelSource) Dropped() int64 {
	return s.dropped.Load()
}
