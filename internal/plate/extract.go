package plate

import (
	"regexp"
	"strings"
)

// Denylist holds livery text that OCR often reads next to the plate. Longer
// tokens come first so "BUSWAY" is stripped before "BUS".
var Denylist = []string{"BSDCITY", "BUSWAY", "TRANS", "CITY", "BSD", "BUS"}

var (
	strictPattern   = regexp.MustCompile(`[A-Z]{1,2}\s?\d{1,4}\s?[A-Z]{1,3}`)
	lenientPattern  = regexp.MustCompile(`[A-Z]{1,2}\s?\d{1,4}`)
	identifierToken = regexp.MustCompile(`\b[A-Z]{2,3}\b`)
)

// Candidate is the single plate reading extracted from one frame.
type Candidate struct {
	// Text is the normalized plate, the key used by the stabilizer.
	Text   string `json:"text"`
	// Raw is the matched substring before normalization.
	Raw    string `json:"raw"`
	Strict bool   `json:"strict"`
}

// Display returns Text formatted as "REGION NUMBER IDENTIFIER".
func (c Candidate) Display() string {
	return FormatForDisplay(c.Text)
}

// Extractor picks at most one plate candidate out of a frame's OCR strings.
// Strict matches are preferred across the whole frame before any lenient one.
type Extractor struct {
	denylist []string
}

func NewExtractor() *Extractor {
	return &Extractor{denylist: Denylist}
}

// Extract scans the OCR readings of one frame. ok is false when nothing
// plate-shaped was found.
func (e *Extractor) Extract(readings []string) (Candidate, bool) {
	cleaned := make([]string, len(readings))
	for i, r := range readings {
		cleaned[i] = e.clean(r)
	}

	for _, s := range cleaned {
		if c, ok := e.strict(s); ok {
			return c, true
		}
	}

	for _, s := range cleaned {
		if c, ok := e.lenient(s); ok {
			return c, true
		}
	}

	return Candidate{}, false
}

// ExtractStrict is Extract without the lenient fallback. It is used for the
// single-shot capture path where a partial plate is not acceptable.
func (e *Extractor) ExtractStrict(readings []string) (Candidate, bool) {
	for _, r := range readings {
		if c, ok := e.strict(e.clean(r)); ok {
			return c, true
		}
	}
	return Candidate{}, false
}

func (e *Extractor) clean(s string) string {
	s = strings.ToUpper(s)
	for _, token := range e.denylist {
		s = strings.ReplaceAll(s, token, "")
	}
	return strings.TrimSpace(s)
}

func (e *Extractor) strict(s string) (Candidate, bool) {
	match := strictPattern.FindString(s)
	if match == "" {
		return Candidate{}, false
	}
	if !IsValid(match) || e.containsDenied(match) {
		return Candidate{}, false
	}
	return Candidate{Text: Normalize(match), Raw: match, Strict: true}, true
}

func (e *Extractor) lenient(s string) (Candidate, bool) {
	match := lenientPattern.FindString(s)
	if match == "" {
		return Candidate{}, false
	}

	raw := match
	for _, token := range identifierToken.FindAllString(s, -1) {
		if token == "BS" || token == "SD" || strings.Contains(raw, token) {
			continue
		}
		raw += " " + token
		break
	}

	return Candidate{Text: Normalize(raw), Raw: raw, Strict: false}, true
}

func (e *Extractor) containsDenied(s string) bool {
	for _, token := range e.denylist {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
