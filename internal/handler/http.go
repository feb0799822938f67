package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"blink/internal/app"
	"blink/internal/domain"
	"blink/internal/matcher"
	"blink/internal/plate"
	"blink/internal/store"
)

type HTTPHandler struct {
	app   *app.App
	store store.RecordStore
	now   func() time.Time
}

func NewHTTPHandler(a *app.App, s store.RecordStore) *HTTPHandler {
	return &HTTPHandler{app: a, store: s, now: time.Now}
}

type RoutesResponse struct {
	Routes     []*domain.BusRoute `json:"routes"`
	Count      int                `json:"count"`
	ServerTime time.Time          `json:"serverTime"`
}

// ListRoutes accepts optional destination and from station filters.
func (h *HTTPHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	q := matcher.RouteQuery{
		Destination: r.URL.Query().Get("destination"),
		From:        r.URL.Query().Get("from"),
	}
	routes, err := h.app.Matcher().FindRoutes(r.Context(), q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list routes")
		return
	}

	respondJSON(w, http.StatusOK, RoutesResponse{
		Routes:     routes,
		Count:      len(routes),
		ServerTime: h.now(),
	})
}

// GetRoute returns one route with station status recomputed for now.
func (h *HTTPHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	if code == "" {
		respondError(w, http.StatusBadRequest, "missing route code")
		return
	}

	route, err := h.app.Matcher().Route(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "route not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load route")
		return
	}

	domain.RecomputeStationStatus(route, h.now())
	respondJSON(w, http.StatusOK, route)
}

type BusesResponse struct {
	Buses []*domain.BusInfo `json:"buses"`
	Count int               `json:"count"`
}

func (h *HTTPHandler) ListBuses(w http.ResponseWriter, r *http.Request) {
	var (
		buses []*domain.BusInfo
		err   error
	)
	if p := r.URL.Query().Get("plate"); p != "" {
		buses, err = h.store.BusesByPlate(r.Context(), plate.Normalize(p))
	} else {
		buses, err = h.store.ListBuses(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list buses")
		return
	}
	respondJSON(w, http.StatusOK, BusesResponse{Buses: buses, Count: len(buses)})
}

type ResolveRequest struct {
	Plate string `json:"plate" validate:"required,max=32"`
}

type ResolveResponse struct {
	matcher.Result
	DisplayPlate string `json:"displayPlate"`
}

func (h *HTTPHandler) ResolvePlate(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.app.ResolvePlate(r.Context(), req.Plate, "api")
	if !res.Recognized() {
		respondError(w, http.StatusNotFound, app.ErrPlateNotRecognized.Error())
		return
	}
	respondJSON(w, http.StatusOK, ResolveResponse{
		Result:       res,
		DisplayPlate: plate.FormatForDisplay(res.Plate),
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

var validate = validator.New()

const maxBodyBytes = 64 << 10

// decodeJSON reads and validates a request body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
