package plate

const DefaultThreshold = 2

// Status is the stabilizer's view after a frame.
type Status struct {
	Stable     bool   `json:"stable"`
	Text       string `json:"text,omitempty"`
	Confidence int    `json:"confidence"`
}

// Display returns the winning plate formatted for display, or "" when unstable.
func (s Status) Display() string {
	if !s.Stable {
		return ""
	}
	return FormatForDisplay(s.Text)
}

// Stabilizer smooths per-frame candidates with a confidence histogram. A
// candidate gains one point per frame it is seen and every other entry loses
// one; entries at zero are dropped. It is not safe for concurrent use: the
// owner applies frame results from a single goroutine.
type Stabilizer struct {
	threshold  int
	confidence map[string]int
	lastBump   map[string]uint64
	seq        uint64
}

func NewStabilizer(threshold int) *Stabilizer {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Stabilizer{
		threshold:  threshold,
		confidence: make(map[string]int),
		lastBump:   make(map[string]uint64),
	}
}

func (s *Stabilizer) Threshold() int {
	return s.threshold
}

// Observe records one frame's outcome. Pass ok=false for frames without a
// candidate, including frames whose OCR failed.
func (s *Stabilizer) Observe(c Candidate, ok bool) Status {
	if ok && c.Text != "" {
		s.seq++
		for text := range s.confidence {
			if text != c.Text {
				s.decay(text)
			}
		}
		s.confidence[c.Text]++
		s.lastBump[c.Text] = s.seq
	} else {
		for text := range s.confidence {
			s.decay(text)
		}
	}

	for text, n := range s.confidence {
		if n <= 0 {
			delete(s.confidence, text)
			delete(s.lastBump, text)
		}
	}

	return s.Status()
}

// Status reports the current winner. Ties on confidence go to the most
// recently incremented candidate, then to the lexicographically smaller one.
func (s *Stabilizer) Status() Status {
	var (
		best     string
		bestConf int
		bestSeq  uint64
		found    bool
	)
	for text, n := range s.confidence {
		seq := s.lastBump[text]
		switch {
		case !found,
			n > bestConf,
			n == bestConf && seq > bestSeq,
			n == bestConf && seq == bestSeq && text < best:
			best, bestConf, bestSeq, found = text, n, seq, true
		}
	}

	if !found {
		return Status{}
	}
	return Status{
		Stable:     bestConf >= s.threshold,
		Text:       best,
		Confidence: bestConf,
	}
}

// Stable returns the winning text when its confidence meets the threshold.
func (s *Stabilizer) Stable() (string, bool) {
	st := s.Status()
	return st.Text, st.Stable
}

// Confidences returns a copy of the histogram.
func (s *Stabilizer) Confidences() map[string]int {
	out := make(map[string]int, len(s.confidence))
	for k, v := range s.confidence {
		out[k] = v
	}
	return out
}

// Reset clears the histogram for a new scanning session.
func (s *Stabilizer) Reset() {
	clear(s.confidence)
	clear(s.lastBump)
	s.seq = 0
}

func (s *Stabilizer) decay(text string) {
	if s.confidence[text] > 0 {
		s.confidence[text]--
	}
}
