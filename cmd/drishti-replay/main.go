// Package main replays a recorded landmark stream through the full pipeline
// without starting the HTTP server, then prints detection and stability
// statistics. Useful for comparing tuning profiles against the same
// recording.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/gesture"
	"github.com/ayusman/drishti/internal/landmark"
	"github.com/ayusman/drishti/internal/store"
)

func main() {
	var (
		dbPath     string
		tuningPath string
		recordGaze bool
		verbose    bool
	)
	flag.StringVar(&dbPath, "db", "", "persist the replay session into this sqlite database")
	flag.StringVar(&tuningPath, "tuning", "", "JSON tuning file to replay under")
	flag.BoolVar(&recordGaze, "record-gaze", false, "persist the per-frame gaze trace (needs -db)")
	flag.BoolVar(&verbose, "v", false, "print one line per frame")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: drishti-replay [flags] <recording.jsonl>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), dbPath, tuningPath, recordGaze, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(recording, dbPath, tuningPath string, recordGaze, verbose bool) error {
	src, err := landmark.OpenReplay(recording)
	if err != nil {
		return err
	}

	var st *store.Store
	if dbPath != "" {
		st, err = store.New(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	tuning, err := config.LoadTuning(tuningPath)
	if err != nil {
		return err
	}

	a, err := app.New(app.Config{
		Store:      st,
		Source:     src,
		SourceName: "replay",
		Tuning:     tuning,
		RecordGaze: recordGaze,
	})
	if err != nil {
		return err
	}

	ch := a.Subscribe()
	if err := a.Start(); err != nil {
		return err
	}

	pipelineDone := make(chan struct{})
	go func() {
		a.Wait()
		close(pipelineDone)
	}()

	var sum summary
	consume := func(out app.Output) {
		sum.add(out)
		if verbose {
			printFrame(out)
		}
	}

loop:
	for {
		select {
		case out := <-ch:
			consume(out)
		case <-pipelineDone:
			// Drain outputs published before the source hit EOF
			for {
				select {
				case out := <-ch:
					consume(out)
				default:
					break loop
				}
			}
		}
	}
	a.Stop()

	sum.print(os.Stdout)
	return nil
}

// summary accumulates per-frame outputs into replay statistics.
type summary struct {
	frames   int
	faces    int
	hands    int
	mapped   int
	gestures map[gesture.Label]int

	raw      []landmark.Point
	smoothed []landmark.Point
}

func (s *summary) add(out app.Output) {
	s.frames++
	if out.Raw != nil {
		s.faces++
		s.raw = append(s.raw, *out.Raw)
	}
	if out.Gaze != nil {
		s.mapped++
		s.smoothed = append(s.smoothed, *out.Gaze)
	}
	if out.Gesture != nil {
		s.hands++
		if s.gestures == nil {
			s.gestures = make(map[gesture.Label]int)
		}
		s.gestures[out.Gesture.Label]++
	}
}

func (s *summary) print(w *os.File) {
	fmt.Fprintln(w, "Replay complete")
	fmt.Fprintf(w, "  Frames:        %d\n", s.frames)
	fmt.Fprintf(w, "  Face frames:   %d (%s)\n", s.faces, rate(s.faces, s.frames))
	fmt.Fprintf(w, "  Hand frames:   %d (%s)\n", s.hands, rate(s.hands, s.frames))
	fmt.Fprintf(w, "  Mapped frames: %d (%s)\n", s.mapped, rate(s.mapped, s.frames))
	fmt.Fprintf(w, "  Raw jitter:    %.5f\n", jitter(s.raw))
	if len(s.smoothed) > 0 {
		fmt.Fprintf(w, "  Gaze jitter:   %.5f\n", jitter(s.smoothed))
	}

	if len(s.gestures) > 0 {
		labels := make([]string, 0, len(s.gestures))
		for label := range s.gestures {
			labels = append(labels, string(label))
		}
		sort.Strings(labels)

		fmt.Fprintln(w, "  Gestures:")
		for _, label := range labels {
			fmt.Fprintf(w, "    %-12s %d\n", label, s.gestures[gesture.Label(label)])
		}
	}
}

func rate(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(total))
}

// jitter is the standard deviation of frame-to-frame movement. Smoothing
// should push it well below the raw value on the same recording.
func jitter(points []landmark.Point) float64 {
	if len(points) < 3 {
		return 0
	}
	deltas := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		deltas = append(deltas, landmark.Dist(points[i-1], points[i]))
	}
	return stat.StdDev(deltas, nil)
}

func printFrame(out app.Output) {
	line := fmt.Sprintf("ts=%d", out.TS)
	if out.Raw != nil {
		line += fmt.Sprintf(" raw=(%.3f, %.3f)", out.Raw.X, out.Raw.Y)
	}
	if out.Gaze != nil {
		line += fmt.Sprintf(" gaze=(%.3f, %.3f)", out.Gaze.X, out.Gaze.Y)
	}
	if out.Gesture != nil {
		line += fmt.Sprintf(" gesture=%s(%.2f)", out.Gesture.Label, out.Gesture.Confidence)
	}
	fmt.Println(line)
}
