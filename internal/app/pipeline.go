package app

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/ayusman/drishti/internal/gesture"
	"github.com/ayusman/drishti/internal/landmark"
	"github.com/ayusman/drishti/internal/store"
)

// runPipeline is the main loop that processes frames from the landmark source.
//
// Pipeline logic:
// 1. Pull the next frame (blocking on live sources)
// 2. Gate the face and each hand by detection score
// 3. Raw gaze = iris midpoint; screen gaze = calibrate then smooth
// 4. Classify the first confident hand's gesture
// 5. Publish the Output to subscribers, dropping for full buffers
// 6. Record latency; persist gesture transitions and the optional gaze trace
// 7. io.EOF from the source ends the session; any other per-frame problem is
//    logged and absorbed so one bad frame never halts the loop
func (a *App) runPipeline(stopCh, done chan struct{}) {
	defer close(done)

	sessionID := a.SessionID()

	var (
		frames    int64
		lastLabel gesture.Label
		trace     []store.GazePoint
	)
	defer func() {
		a.endSession(sessionID, frames, trace)
	}()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		frame, err := a.source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Println("Landmark source drained")
				return
			}
			log.Printf("Error reading frame: %v", err)
			continue
		}

		started := time.Now()
		out := a.processFrame(frame)
		frames++

		a.publish(out)
		a.monitor.Record(time.Since(started))

		if a.store == nil {
			continue
		}

		// Persist label transitions only, so a held gesture is one row, not
		// one row per frame. Error labels are diagnostics, not gestures.
		label := gesture.Label("")
		if out.Gesture != nil {
			label = out.Gesture.Label
		}
		if label != lastLabel && label != "" && label != gesture.LabelError {
			event := &store.Event{
				SessionID:  sessionID,
				TS:         out.TS,
				Label:      string(label),
				Confidence: out.Gesture.Confidence,
				Handedness: out.Handedness,
			}
			if err := a.store.Events().Create(event); err != nil {
				log.Printf("Error recording gesture event: %v", err)
			}
		}
		lastLabel = label

		if a.config.RecordGaze && out.Raw != nil {
			p := store.GazePoint{TS: out.TS, RawX: out.Raw.X, RawY: out.Raw.Y}
			if out.Gaze != nil {
				x, y := out.Gaze.X, out.Gaze.Y
				p.X, p.Y = &x, &y
			}
			trace = append(trace, p)
			if len(trace) >= TraceBatchSize {
				if err := a.store.Trace().Create(sessionID, trace); err != nil {
					log.Printf("Error writing gaze trace: %v", err)
				}
				trace = trace[:0]
			}
		}
	}
}

// processFrame turns one landmark frame into an Output. It never fails; a
// frame with nothing usable in it produces an Output with every signal
// absent.
func (a *App) processFrame(frame *landmark.Frame) Output {
	out := Output{TS: frame.TS}

	var raw *landmark.Point
	if frame.Face != nil && frame.Face.Score >= a.config.MinFaceScore {
		raw = frame.Face.GazeSample()
	}
	out.Raw = raw

	a.mu.Lock()
	defer a.mu.Unlock()

	// lastRaw tracks the current frame only. A frame without a usable face
	// clears it, so a calibration capture can never pair a target with a
	// stale sample.
	a.lastRaw = raw
	out.Gaze = a.smoother.Update(a.calibrator.Map(raw))

	for i := range frame.Hands {
		hand := &frame.Hands[i]
		if hand.Score < a.config.MinHandScore {
			continue
		}
		result := a.classifier.Classify(hand.Points)
		out.Gesture = &result
		out.Handedness = hand.Handedness
		break
	}

	snapshot := out
	a.lastOutput = &snapshot
	return out
}

// publish fans the output out to every subscriber without blocking.
func (a *App) publish(out Output) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for ch := range a.subscribers {
		select {
		case ch <- out:
		default:
			// Subscriber buffer full: lose this frame for that client
		}
	}
}

// endSession flushes any buffered trace rows and finalizes the session row.
// Runs exactly once, on pipeline exit.
func (a *App) endSession(sessionID string, frames int64, trace []store.GazePoint) {
	a.mu.Lock()
	a.sessionID = ""
	a.mu.Unlock()

	if a.store == nil || sessionID == "" {
		return
	}

	if len(trace) > 0 {
		if err := a.store.Trace().Create(sessionID, trace); err != nil {
			log.Printf("Error flushing gaze trace: %v", err)
		}
	}
	if err := a.store.Sessions().End(sessionID, frames); err != nil {
		log.Printf("Error finalizing session: %v", err)
	}
	log.Printf("Session %s ended after %d frames", sessionID, frames)
}
