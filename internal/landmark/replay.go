package landmark

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxRecordBytes bounds a single recorded frame line. A full 478-point face
// plus two hands encodes well under 64 KiB; the limit only guards against
// corrupt recordings.
const maxRecordBytes = 1 << 20

// ReplaySource reads frames from a JSONL recording, one frame per line.
// Blank lines are skipped. A malformed line yields an error from Next with
// the line number; the reader stays positioned on the following line, so
// callers may log and continue.
type ReplaySource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReplaySource reads frames from r.
func NewReplaySource(r io.Reader) *ReplaySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxRecordBytes)
	return &ReplaySource{scanner: sc}
}

// OpenReplay opens a JSONL recording file as a frame source.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	src := NewReplaySource(f)
	src.closer = f
	return src, nil
}

// Next returns the next recorded frame, or io.EOF at end of recording.
func (s *ReplaySource) Next() (*Frame, error) {
	for s.scanner.Scan() {
		s.line++
		data := s.scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", s.line, err)
		}
		return &f, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay read: %w", err)
	}
	return nil, io.EOF
}

// Close releases the underlying file, if any.
func (s *ReplaySource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Writer records frames as JSONL, the mirror format of ReplaySource. Live
// sessions recorded through it can be replayed offline.
type Writer struct {
	enc *json.Encoder
}

// NewWriter records frames onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write appends one frame as a single JSON line.
func (w *Writer) Write(f *Frame) error {
	if err := w.enc.Encode(f); err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	return nil
}
