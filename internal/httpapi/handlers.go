// Package httpapi exposes the marker query operations and the
// rate-limited registration endpoint over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/waymark-app/waymark/internal/account"
	"github.com/waymark-app/waymark/internal/availability"
	"github.com/waymark-app/waymark/internal/category"
	"github.com/waymark-app/waymark/internal/geoquery"
	"github.com/waymark-app/waymark/internal/ratelimit"
	"github.com/waymark-app/waymark/internal/store"
)

// Registrar is the account-creation collaborator behind the
// registration endpoint; identity management itself lives elsewhere.
type Registrar interface {
	Register(ctx context.Context, username, password string) error
}

type Handlers struct {
	engine    *geoquery.Engine
	limiter   *ratelimit.Limiter
	registrar Registrar
	log       zerolog.Logger
}

func NewHandlers(engine *geoquery.Engine, limiter *ratelimit.Limiter, registrar Registrar, log zerolog.Logger) *Handlers {
	return &Handlers{engine: engine, limiter: limiter, registrar: registrar, log: log}
}

// response is the {code, message, data} envelope; code 0 means ok.
type response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, response{Code: 0, Message: "ok", Data: data})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Code: status, Message: msg})
}

// writeError maps the error taxonomy onto HTTP statuses. Caller errors
// become 400; a missing spatial capability is an operational problem
// and gets an operator-facing 500.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var catErr *category.InvalidError
	switch {
	case errors.As(err, &catErr),
		errors.Is(err, geoquery.ErrInvalidArgument),
		errors.Is(err, availability.ErrInvalidTimeFormat),
		errors.Is(err, availability.ErrMismatchedWindow),
		errors.Is(err, account.ErrInvalidUsername),
		errors.Is(err, account.ErrInvalidPassword):
		fail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrUsernameTaken):
		fail(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrGeoSupportMissing):
		fail(w, http.StatusInternalServerError, "spatial queries unavailable: enable PostGIS (CREATE EXTENSION postgis)")
	case errors.Is(err, store.ErrNotFound):
		fail(w, http.StatusNotFound, "marker not found")
	default:
		h.log.Error().Err(err).Msg("request failed")
		fail(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) ListPublic(w http.ResponseWriter, r *http.Request) {
	markers, err := h.engine.ListPublicActive(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	ok(w, markers)
}

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	markers, err := h.engine.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	ok(w, markers)
}

func (h *Handlers) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseFloatParam(q.Get("lat"), "lat")
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	lng, err := parseFloatParam(q.Get("lng"), "lng")
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	radius := 1000
	if raw := strings.TrimSpace(q.Get("radius")); raw != "" {
		radius, err = strconv.Atoi(raw)
		if err != nil {
			fail(w, http.StatusBadRequest, "radius must be an integer")
			return
		}
	}

	cat := q.Get("category")
	if strings.TrimSpace(cat) == "" {
		cat = "accessible_toilet"
	}

	markers, err := h.engine.Nearby(r.Context(), lat, lng, radius, cat)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ok(w, markers)
}

func (h *Handlers) Viewport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bounds := [4]float64{}
	for i, name := range []string{"minLat", "maxLat", "minLng", "maxLng"} {
		v, err := parseFloatParam(q.Get(name), name)
		if err != nil {
			fail(w, http.StatusBadRequest, err.Error())
			return
		}
		bounds[i] = v
	}

	categories, err := category.ParseFilter(q.Get("categories"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	markers, err := h.engine.Viewport(r.Context(), bounds[0], bounds[1], bounds[2], bounds[3], categories)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ok(w, markers)
}

type createMarkerRequest struct {
	Username     string `json:"username"`
	UserPublicID string `json:"userPublicId"`
	geoquery.CreateRequest
}

func (h *Handlers) CreateMarker(w http.ResponseWriter, r *http.Request) {
	var req createMarkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" {
		fail(w, http.StatusBadRequest, "username is required")
		return
	}
	m, err := h.engine.Create(r.Context(), req.Username, req.UserPublicID, req.CreateRequest)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ok(w, m)
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register gates account creation with the sliding-window limiter
// before delegating to the registrar.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	clientKey := ratelimit.ClientKey(r)
	if !h.limiter.TryAcquire(r.Context(), clientKey) {
		fail(w, http.StatusTooManyRequests, "too many registration attempts, try again later")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if err := h.registrar.Register(r.Context(), req.Username, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	ok(w, nil)
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func parseFloatParam(raw, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("missing required parameter: " + name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("invalid " + name + ": not a number")
	}
	return v, nil
}
