package scanner

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"
)

// LineSource replays recorded OCR output: one frame per line, readings
// separated by '|'. Blank lines are frames with nothing recognized.
type LineSource struct {
	r        io.Reader
	interval time.Duration
}

func NewLineSource(r io.Reader, interval time.Duration) *LineSource {
	return &LineSource{r: r, interval: interval}
}

// Frames streams the recorded frames, stamping them interval apart so the
// session throttle treats them like live camera output.
func (s *LineSource) Frames(ctx context.Context) <-chan Frame {
	out := make(chan Frame)

	go func() {
		defer close(out)

		scanner := bufio.NewScanner(s.r)
		at := time.Now()
		for scanner.Scan() {
			var readings []string
			for _, part := range strings.Split(scanner.Text(), "|") {
				if p := strings.TrimSpace(part); p != "" {
					readings = append(readings, p)
				}
			}

			select {
			case out <- Frame{RawOCRStrings: readings, At: at}:
			case <-ctx.Done():
				return
			}
			at = at.Add(s.interval)
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- Frame{At: at, Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return out
}
