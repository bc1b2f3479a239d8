// Package http is the narrator's control API: one route per button or
// setting on the device, plus state and health endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"ai-scene-narrator-service/internal/app"
	"ai-scene-narrator-service/internal/models"
	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/observability/metrics"
	"ai-scene-narrator-service/internal/service/connectivity"
	"ai-scene-narrator-service/internal/service/session"
	"ai-scene-narrator-service/internal/service/stt"
	"ai-scene-narrator-service/internal/service/tts"
	"ai-scene-narrator-service/internal/store"
)

// Controller is the orchestrator surface driven by the control API.
type Controller interface {
	Start(ctx context.Context) error
	Deactivate()
	SelectFeature(f models.Feature) error
	Stop()
	SetContinuous(on bool)
	SetOnline(online bool)
	SetLanguage(ctx context.Context, code string) (bool, error)
	SetSpeechRate(ctx context.Context, rate float64) error
	CloseRememberDialog()
	RememberPersonSpoken() (models.RememberedPerson, error)
	RememberPersonNamed(name string) (models.RememberedPerson, error)
	State() session.Snapshot
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	return newRouter(application.Orchestrator, application.Store, application.Ready, application.Metrics)
}

type handlers struct {
	ctrl   Controller
	people store.People
	logger zerolog.Logger
}

func newRouter(ctrl Controller, people store.People, ready func() bool, m *metrics.Metrics) http.Handler {
	h := &handlers{ctrl: ctrl, people: people, logger: logging.WithComponent("http")}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(m, h.logger))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Get("/languages", h.languages)

		r.Post("/start", h.start)
		r.Post("/deactivate", h.deactivate)
		r.Post("/features/{feature}", h.selectFeature)
		r.Post("/stop", h.stop)
		r.Put("/mode", h.setMode)
		r.Put("/language", h.setLanguage)
		r.Put("/rate", h.setRate)
		r.Post("/connectivity", h.setConnectivity)

		r.Route("/people", func(r chi.Router) {
			r.Get("/", h.listPeople)
			r.Post("/", h.rememberNamed)
			r.Post("/listen", h.rememberSpoken)
			r.Delete("/dialog", h.closeDialog)
		})
	})

	return r
}

// instrument records per-route metrics and logs each request at debug.
func instrument(m *metrics.Metrics, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if m != nil {
				m.RecordHTTPRequest(r.Method, route, status, time.Since(start).Seconds())
			}
			logger.Debug().
				Str("requestId", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

func (h *handlers) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

type languageView struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (h *handlers) languages(w http.ResponseWriter, _ *http.Request) {
	out := make([]languageView, 0, len(tts.Languages))
	for _, l := range tts.Languages {
		out = append(out, languageView{Code: l.Code, Name: l.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

type startResponse struct {
	State       session.Snapshot `json:"state"`
	CameraError string           `json:"cameraError,omitempty"`
}

// start activates the narrator. A failed camera probe still activates it,
// so the response is 200 with the probe error attached.
func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	resp := startResponse{}
	if err := h.ctrl.Start(r.Context()); err != nil {
		resp.CameraError = err.Error()
	}
	resp.State = h.ctrl.State()
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) deactivate(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.Deactivate()
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

func (h *handlers) selectFeature(w http.ResponseWriter, r *http.Request) {
	f, err := models.ParseFeature(chi.URLParam(r, "feature"))
	if err != nil || f == models.FeatureNone {
		writeError(w, http.StatusBadRequest, "unknown feature")
		return
	}
	logger := logging.WithFeature("http", f.String())
	if err := h.ctrl.SelectFeature(f); err != nil {
		logger.Info().Err(err).Msg("Feature request rejected")
		h.fail(w, err)
		return
	}
	logger.Debug().Msg("Feature selected")
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

func (h *handlers) stop(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.Stop()
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

type modeRequest struct {
	Continuous *bool `json:"continuous"`
}

func (h *handlers) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Continuous == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"continuous\": bool}")
		return
	}
	h.ctrl.SetContinuous(*req.Continuous)
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

type languageRequest struct {
	Language string `json:"language"`
}

type languageResponse struct {
	Applied bool             `json:"applied"`
	State   session.Snapshot `json:"state"`
}

func (h *handlers) setLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	applied, err := h.ctrl.SetLanguage(r.Context(), req.Language)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, languageResponse{Applied: applied, State: h.ctrl.State()})
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

func (h *handlers) setRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.ctrl.SetSpeechRate(r.Context(), req.Rate); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// setConnectivity accepts the same payload as the NATS feed.
func (h *handlers) setConnectivity(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	online, err := connectivity.Parse(body)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ctrl.SetOnline(online)
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

type personView struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func newPersonView(p models.RememberedPerson) personView {
	return personView{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
}

func (h *handlers) listPeople(w http.ResponseWriter, r *http.Request) {
	people, err := h.people.AllPeople(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	out := make([]personView, 0, len(people))
	for _, p := range people {
		out = append(out, newPersonView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type rememberRequest struct {
	Name string `json:"name"`
}

func (h *handlers) rememberNamed(w http.ResponseWriter, r *http.Request) {
	var req rememberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p, err := h.ctrl.RememberPersonNamed(req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPersonView(p))
}

func (h *handlers) rememberSpoken(w http.ResponseWriter, _ *http.Request) {
	p, err := h.ctrl.RememberPersonSpoken()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPersonView(p))
}

func (h *handlers) closeDialog(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.CloseRememberDialog()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("Request failed")
	}
	writeError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInactive),
		errors.Is(err, session.ErrContinuousActive),
		errors.Is(err, session.ErrOffline),
		errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidRate),
		errors.Is(err, session.ErrInvalidLanguage),
		errors.Is(err, store.ErrInvalidName),
		errors.Is(err, connectivity.ErrInvalidNotification):
		return http.StatusBadRequest
	case errors.Is(err, stt.ErrNoSpeech):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
