package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/radiobrowser"
	"github.com/zachfi/nowplaying/pkg/selector"
	"github.com/zachfi/nowplaying/pkg/store"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type stateResponse struct {
	IsPlaying      bool              `json:"isPlaying"`
	IsPaused       bool              `json:"isPaused"`
	CurrentStation *metadata.Station `json:"currentStation"`
	Metadata       *metadata.Result  `json:"metadata"`
	Active         bool              `json:"active"`
	State          store.State       `json:"state"`
}

type searcher interface {
	Search(ctx context.Context, name string, limit int) ([]radiobrowser.Station, error)
}

type healthChecker interface {
	Enabled() bool
	Health(ctx context.Context) bool
}

type api struct {
	logger  *slog.Logger
	state   func() stateResponse
	catalog searcher
	proxy   healthChecker
}

func (a *App) registerAPI(r *mux.Router) {
	h := &api{
		logger:  a.logger.With("module", "api"),
		state:   a.state,
		catalog: a.catalog,
		proxy:   a.proxy,
	}
	h.register(r)
}

func (a *App) state() stateResponse {
	resp := stateResponse{
		IsPlaying: a.playback.IsPlaying(),
		IsPaused:  a.playback.IsPaused(),
		Metadata:  a.nowPlaying.Current(),
		Active:    a.nowPlaying.Active(),
		State:     a.radio.Snapshot(),
	}
	if station, ok := a.playback.CurrentStation(); ok {
		resp.CurrentStation = &station
	}
	return resp
}

func (h *api) register(r *mux.Router) {
	r.HandleFunc("/api/state", h.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/search", h.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/proxy/health", h.handleProxyHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/plan", h.handlePlan).Methods(http.MethodGet)
}

func (h *api) handleState(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.state())
}

func (h *api) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	limit := defaultSearchLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	stations, err := h.catalog.Search(r.Context(), name, limit)
	if err != nil {
		h.logger.Error("station search failed", "name", name, "err", err)
		h.writeError(w, http.StatusBadGateway, "station search failed")
		return
	}

	if stations == nil {
		stations = []radiobrowser.Station{}
	}
	h.writeJSON(w, http.StatusOK, stations)
}

func (h *api) handleProxyHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Enabled bool `json:"enabled"`
		Healthy bool `json:"healthy"`
	}{
		Enabled: h.proxy.Enabled(),
	}
	if resp.Enabled {
		resp.Healthy = h.proxy.Health(r.Context())
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *api) handlePlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	station := metadata.Station{
		ID:       q.Get("id"),
		Name:     q.Get("name"),
		URL:      q.Get("url"),
		Homepage: q.Get("homepage"),
	}

	plan, err := selector.SelectPlan(station)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, plan)
}

func (h *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("failed to write response", "err", err)
	}
}

func (h *api) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
