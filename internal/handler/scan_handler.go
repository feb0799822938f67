package handler

import (
	"net/http"
	"time"

	"blink/internal/app"
	"blink/internal/plate"
	"blink/internal/scanner"
)

type ScanHandler struct {
	app      *app.App
	sessions *scanner.Registry
}

func NewScanHandler(a *app.App, sessions *scanner.Registry) *ScanHandler {
	return &ScanHandler{app: a, sessions: sessions}
}

type SessionResponse struct {
	SessionID string `json:"sessionId"`
	Threshold int    `json:"threshold"`
}

func (h *ScanHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Open()
	respondJSON(w, http.StatusCreated, SessionResponse{SessionID: s.ID, Threshold: s.Threshold()})
}

func (h *ScanHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(r.PathValue("id")) {
		respondError(w, http.StatusNotFound, "scan session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type FrameRequest struct {
	RawOCRStrings []string   `json:"rawOcrStrings" validate:"max=64,dive,max=256"`
	At            *time.Time `json:"at,omitempty"`
}

type FrameResponse struct {
	Accepted     bool           `json:"accepted"`
	Update       scanner.Update `json:"update"`
	DisplayPlate string         `json:"displayPlate,omitempty"`
}

// PostFrame feeds one frame of OCR strings to the session's stabilizer.
// Frames inside the minimum interval are acknowledged but not processed.
func (h *ScanHandler) PostFrame(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "scan session not found")
		return
	}

	var req FrameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f := scanner.Frame{RawOCRStrings: req.RawOCRStrings}
	if req.At != nil {
		f.At = *req.At
	}
	u, accepted := s.Process(f)
	respondJSON(w, http.StatusOK, FrameResponse{
		Accepted:     accepted,
		Update:       u,
		DisplayPlate: u.Status.Display(),
	})
}

type CaptureResponse struct {
	Candidate    plate.Candidate `json:"candidate"`
	DisplayPlate string          `json:"displayPlate"`
	Match        ResolveResponse `json:"match"`
}

// Capture takes the shutter reading and resolves it. The session keeps its
// history so a rejected capture can be retried.
func (h *ScanHandler) Capture(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s, ok := h.sessions.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "scan session not found")
		return
	}

	c, ok := s.Capture()
	if !ok {
		respondError(w, http.StatusUnprocessableEntity, "no plate in view")
		return
	}

	res := h.app.ResolvePlate(r.Context(), c.Text, "scan:"+id)
	if !res.Recognized() {
		respondError(w, http.StatusNotFound, app.ErrPlateNotRecognized.Error())
		return
	}
	respondJSON(w, http.StatusOK, CaptureResponse{
		Candidate:    c,
		DisplayPlate: c.Display(),
		Match:        ResolveResponse{Result: res, DisplayPlate: plate.FormatForDisplay(res.Plate)},
	})
}
