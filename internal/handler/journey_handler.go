package handler

import (
	"errors"
	"net/http"

	"blink/internal/app"
	"blink/internal/domain"
	"blink/internal/journey"
)

type JourneyHandler struct {
	app *app.App
}

func NewJourneyHandler(a *app.App) *JourneyHandler {
	return &JourneyHandler{app: a}
}

type StartJourneyRequest struct {
	Plate              string `json:"plate" validate:"required,max=32"`
	DestinationStation string `json:"destinationStation,omitempty" validate:"max=128"`
}

type JourneyResponse struct {
	app.ActiveJourney
	Remaining string  `json:"remaining"`
	Distance  string  `json:"distance"`
	Progress  float64 `json:"progress"`
}

func newJourneyResponse(a app.ActiveJourney) JourneyResponse {
	j := a.Journey
	live := domain.LiveState{DistanceRemainingKm: j.DistanceRemainingKm}
	return JourneyResponse{
		ActiveJourney: a,
		Remaining:     journey.FormatMinutes(j.EstimatedTimeRemaining),
		Distance:      journey.FormatDistance(j.DistanceRemainingKm),
		Progress:      live.Progress(j.TotalDistanceKm),
	}
}

func (h *JourneyHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartJourneyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	active, err := h.app.StartJourney(r.Context(), req.Plate, req.DestinationStation)
	switch {
	case errors.Is(err, app.ErrPlateNotRecognized):
		respondError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, journey.ErrUnknownStation):
		respondError(w, http.StatusBadRequest, "destination station not on route")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to start journey")
		return
	}
	respondJSON(w, http.StatusCreated, newJourneyResponse(active))
}

func (h *JourneyHandler) Active(w http.ResponseWriter, r *http.Request) {
	active, ok := h.app.Active()
	if !ok {
		respondError(w, http.StatusNotFound, app.ErrNoActiveJourney.Error())
		return
	}
	respondJSON(w, http.StatusOK, newJourneyResponse(active))
}

// Stop ends the journey early. It responds once live status is torn down.
func (h *JourneyHandler) Stop(w http.ResponseWriter, r *http.Request) {
	active, err := h.app.StopJourney(r.Context())
	if errors.Is(err, app.ErrNoActiveJourney) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to stop journey")
		return
	}
	respondJSON(w, http.StatusOK, newJourneyResponse(active))
}

func (h *JourneyHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	err := h.app.Acknowledge()
	switch {
	case errors.Is(err, app.ErrNoActiveJourney):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, journey.ErrNotCompleted):
		respondError(w, http.StatusConflict, "journey still ongoing")
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to acknowledge journey")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *JourneyHandler) DeepLink(w http.ResponseWriter, r *http.Request) {
	res, err := h.app.OpenDeepLink(r.Context(), r.URL.Query().Get("url"))
	switch {
	case errors.Is(err, app.ErrInvalidDeepLink):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrPlateNotRecognized), errors.Is(err, app.ErrNoActiveJourney):
		respondError(w, http.StatusNotFound, err.Error())
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to open deep link")
	default:
		respondJSON(w, http.StatusOK, res)
	}
}
