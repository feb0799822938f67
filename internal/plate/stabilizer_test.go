package plate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seen(text string) (Candidate, bool) {
	return Candidate{Text: text, Strict: true}, true
}

func TestStabilizerBecomesStableAtThreshold(t *testing.T) {
	s := NewStabilizer(2)

	st := s.Observe(seen("B7566PAA"))
	assert.False(t, st.Stable)
	assert.Equal(t, 1, st.Confidence)

	st = s.Observe(seen("B7566PAA"))
	assert.True(t, st.Stable)
	assert.Equal(t, "B7566PAA", st.Text)
	assert.Equal(t, "B 7566 PAA", st.Display())

	text, ok := s.Stable()
	assert.True(t, ok)
	assert.Equal(t, "B7566PAA", text)
}

func TestStabilizerSwitchBeforeThresholdNeverReportsFirst(t *testing.T) {
	for _, threshold := range []int{2, 3, 5} {
		s := NewStabilizer(threshold)
		for i := 0; i < threshold-1; i++ {
			st := s.Observe(seen("B7566PAA"))
			assert.False(t, st.Stable)
		}
		for i := 0; i < threshold+2; i++ {
			st := s.Observe(seen("B7266JF"))
			if st.Stable {
				assert.Equal(t, "B7266JF", st.Text)
			}
		}
		_, tracked := s.Confidences()["B7566PAA"]
		assert.False(t, tracked, "threshold %d", threshold)
	}
}

func TestStabilizerDecaysWithoutCandidates(t *testing.T) {
	s := NewStabilizer(2)
	s.Observe(seen("B7566PAA"))
	s.Observe(seen("B7566PAA"))
	assert.True(t, s.Status().Stable)

	s.Observe(Candidate{}, false)
	s.Observe(Candidate{}, false)

	st := s.Status()
	assert.False(t, st.Stable)
	assert.Empty(t, st.Text)
	assert.Empty(t, s.Confidences())
}

func TestStabilizerCompetingMisreadMustPersist(t *testing.T) {
	s := NewStabilizer(2)
	for i := 0; i < 4; i++ {
		s.Observe(seen("B7566PAA"))
	}

	st := s.Observe(seen("B7566PAB"))
	assert.True(t, st.Stable)
	assert.Equal(t, "B7566PAA", st.Text)
	assert.Equal(t, 3, st.Confidence)
	assert.Equal(t, 1, s.Confidences()["B7566PAB"])
}

func TestStabilizerTieGoesToMostRecentlyIncremented(t *testing.T) {
	s := NewStabilizer(3)
	s.Observe(seen("B7566PAA"))
	s.Observe(seen("B7566PAA"))
	s.Observe(seen("B7266JF"))

	// B7566PAA decayed to 1, B7266JF rose to 1; the newer reading leads.
	st := s.Status()
	assert.Equal(t, "B7266JF", st.Text)
	assert.Equal(t, 1, st.Confidence)
}

func TestStabilizerReset(t *testing.T) {
	s := NewStabilizer(0)
	assert.Equal(t, DefaultThreshold, s.Threshold())

	s.Observe(seen("B7566PAA"))
	s.Reset()
	assert.Empty(t, s.Confidences())
	assert.Equal(t, Status{}, s.Status())
}
