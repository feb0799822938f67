package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"blink/internal/domain"
	"blink/internal/matcher"
	"blink/internal/plate"
)

const DeepLinkScheme = "blink"

var ErrInvalidDeepLink = errors.New("invalid deep link")

// ParseDeepLink extracts the plate from blink://journey/<plate>. The plate is
// returned normalized; an empty plate is allowed and means "open the active
// journey".
func ParseDeepLink(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDeepLink, err)
	}
	if u.Scheme != DeepLinkScheme || u.Host != "journey" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDeepLink, raw)
	}
	return plate.Normalize(strings.Trim(u.Path, "/")), nil
}

// DeepLinkResult is what opening a deep link resolved to. Journey is set when
// a journey for the plate is running or recorded in the snapshot; otherwise
// Match carries the plate lookup.
type DeepLinkResult struct {
	Plate   string              `json:"plate"`
	Journey *domain.Journey     `json:"journey,omitempty"`
	State   domain.JourneyState `json:"state"`
	Match   *matcher.Result     `json:"match,omitempty"`
}

// OpenDeepLink resumes the journey for the linked plate when one exists and
// falls back to a plate lookup otherwise.
func (a *App) OpenDeepLink(ctx context.Context, raw string) (DeepLinkResult, error) {
	key, err := ParseDeepLink(raw)
	if err != nil {
		return DeepLinkResult{}, err
	}
	res := DeepLinkResult{Plate: key}

	if active, ok := a.Active(); ok && (key == "" || plate.Equal(key, active.Journey.BusPlateNumber)) {
		j := active.Journey
		res.Journey = &j
		res.State = active.State
		return res, nil
	}

	if j, ok := a.publisher.CurrentJourneySnapshot(ctx); ok && (key == "" || plate.Equal(key, j.BusPlateNumber)) {
		res.Journey = j
		res.State = domain.JourneyOngoing
		return res, nil
	}

	if key == "" {
		return res, ErrNoActiveJourney
	}

	match := a.ResolvePlate(ctx, key, "deeplink")
	if !match.Recognized() {
		return res, ErrPlateNotRecognized
	}
	res.Match = &match
	return res, nil
}
