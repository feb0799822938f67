// Package scanner feeds camera OCR frames through plate extraction and
// stabilization. Extraction runs on a worker goroutine; stabilizer updates
// happen only on the goroutine that owns the session.
package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"blink/internal/plate"
)

const DefaultMinFrameInterval = 200 * time.Millisecond

// Frame is one video frame's OCR output. Err marks a frame whose recognition
// failed; it counts as a frame without a candidate.
type Frame struct {
	RawOCRStrings []string  `json:"rawOcrStrings"`
	At            time.Time `json:"at"`
	Err           error     `json:"-"`
}

// FrameResult is the worker's extraction outcome handed back to the owner.
type FrameResult struct {
	Frame     Frame
	Candidate plate.Candidate
	Found     bool
}

// Update is delivered to the owner after each processed frame.
type Update struct {
	Frame     int64            `json:"frame"`
	Candidate *plate.Candidate `json:"candidate,omitempty"`
	Status    plate.Status     `json:"status"`
}

type Options struct {
	MinFrameInterval time.Duration
	Threshold        int
	Now              func() time.Time
}

// Session is one scanning session with its own detection history.
type Session struct {
	ID string

	extractor   *plate.Extractor
	stabilizer  *plate.Stabilizer
	minInterval time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu           sync.Mutex
	lastAccepted time.Time
	frames       int64
	lastFrame    Frame
	lastUsed     time.Time
}

func NewSession(opts Options, logger *slog.Logger) *Session {
	if opts.MinFrameInterval < 0 {
		opts.MinFrameInterval = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	id := uuid.New().String()
	return &Session{
		ID:          id,
		extractor:   plate.NewExtractor(),
		stabilizer:  plate.NewStabilizer(opts.Threshold),
		minInterval: opts.MinFrameInterval,
		now:         opts.Now,
		logger:      logger.With("component", "scan_session", "session_id", id),
		lastUsed:    opts.Now(),
	}
}

// Run extracts frames on a background worker and applies each result to the
// stabilizer on the calling goroutine, then calls onUpdate. It returns when
// frames is closed or ctx is done.
func (s *Session) Run(ctx context.Context, frames <-chan Frame, onUpdate func(Update)) error {
	results := make(chan FrameResult, 1)

	go s.worker(ctx, frames, results)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-results:
			if !ok {
				return ctx.Err()
			}
			u := s.apply(r)
			if onUpdate != nil {
				onUpdate(u)
			}
		}
	}
}

func (s *Session) worker(ctx context.Context, frames <-chan Frame, results chan<- FrameResult) {
	defer close(results)

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if !s.admit(f) {
				continue
			}
			r := s.extract(f)
			select {
			case results <- r:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Process handles a single frame synchronously. accepted is false when the
// frame arrived inside the minimum interval and was dropped.
func (s *Session) Process(f Frame) (u Update, accepted bool) {
	if !s.admit(f) {
		return Update{Status: s.Status()}, false
	}
	return s.apply(s.extract(f)), true
}

// Capture resolves the shutter press: the stable reading if there is one,
// otherwise a strict extraction from the most recent frame.
func (s *Session) Capture() (plate.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text, ok := s.stabilizer.Stable(); ok {
		return plate.Candidate{Text: text, Raw: text, Strict: plate.IsValid(text)}, true
	}
	if s.lastFrame.Err != nil {
		return plate.Candidate{}, false
	}
	return s.extractor.ExtractStrict(s.lastFrame.RawOCRStrings)
}

func (s *Session) Threshold() int {
	return s.stabilizer.Threshold()
}

func (s *Session) Status() plate.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stabilizer.Status()
}

func (s *Session) Confidences() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stabilizer.Confidences()
}

// Reset starts a fresh detection history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stabilizer.Reset()
	s.frames = 0
	s.lastFrame = Frame{}
	s.lastAccepted = time.Time{}
}

func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) admit(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := f.At
	if now.IsZero() {
		now = s.now()
	}
	s.lastUsed = s.now()

	if !s.lastAccepted.IsZero() && now.Sub(s.lastAccepted) < s.minInterval {
		return false
	}
	s.lastAccepted = now
	return true
}

func (s *Session) extract(f Frame) FrameResult {
	if f.Err != nil {
		s.logger.Debug("frame recognition failed", "error", f.Err)
		return FrameResult{Frame: f}
	}
	c, ok := s.extractor.Extract(f.RawOCRStrings)
	return FrameResult{Frame: f, Candidate: c, Found: ok}
}

func (s *Session) apply(r FrameResult) Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.lastFrame = r.Frame
	st := s.stabilizer.Observe(r.Candidate, r.Found)

	u := Update{Frame: s.frames, Status: st}
	if r.Found {
		c := r.Candidate
		u.Candidate = &c
	}

	if st.Stable {
		s.logger.Debug("plate stable", "plate", st.Text, "confidence", st.Confidence)
	}
	return u
}
