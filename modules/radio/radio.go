// Package radio is the background service driving playback. It consumes the
// hub's inbound messages, commands the audio engine, keeps the favorites,
// and starts and stops the now playing session.
package radio

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/grafana/dskit/services"

	"github.com/zachfi/nowplaying/modules/hub"
	"github.com/zachfi/nowplaying/modules/nowplaying"
	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/store"
)

const module = "radio"

// Bus carries messages to and from the UI and the audio engine.
type Bus interface {
	Envelopes() <-chan hub.Envelope
	Forward(env hub.Envelope)
	PlayAudio(station metadata.Station)
	PauseAudio()
	StopAudio()
	SetVolume(v float64)
	StationChanged(station metadata.Station)
}

// NowPlaying is the fetch session owner.
type NowPlaying interface {
	Start(ctx context.Context, station metadata.Station) error
	Stop()
	Inline(ctx context.Context, in nowplaying.Inline) bool
	Current() *metadata.Result
}

type Radio struct {
	services.Service
	cfg    Config
	logger *slog.Logger

	bus        Bus
	nowPlaying NowPlaying
	playback   *Playback
	store      *store.Store
}

func New(cfg Config, logger slog.Logger, bus Bus, np NowPlaying, playback *Playback) (*Radio, error) {
	r := &Radio{
		cfg:        cfg,
		logger:     logger.With("module", module),
		bus:        bus,
		nowPlaying: np,
		playback:   playback,
	}

	r.Service = services.NewBasicService(r.starting, r.running, r.stopping)

	return r, nil
}

func (r *Radio) starting(_ context.Context) error {
	st, err := store.Open(r.cfg.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	r.store = st

	if station, ok := st.CurrentStation(); ok {
		r.playback.setStation(station)
		r.logger.Info("restored station", "station", station.Name)
	}
	r.logger.Debug("loaded favorites", "count", len(st.Favorites()))

	return nil
}

func (r *Radio) running(ctx context.Context) error {
	envelopes := r.bus.Envelopes()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-envelopes:
			r.handle(ctx, env)
		}
	}
}

func (r *Radio) stopping(_ error) error {
	r.nowPlaying.Stop()
	r.logger.Info("stopped")
	return nil
}

// Snapshot returns the persisted state.
func (r *Radio) Snapshot() store.State {
	if r.store == nil {
		return store.State{}
	}
	return r.store.State()
}

func (r *Radio) handle(ctx context.Context, env hub.Envelope) {
	m := env.Message

	switch m.Type {
	case hub.PlayStation:
		if m.Station == nil {
			r.replyError(env, "no station given")
			return
		}
		r.play(ctx, env, *m.Station)

	case hub.PauseStation:
		r.bus.PauseAudio()
		r.playback.pause()
		r.nowPlaying.Stop()

	case hub.StopStation:
		r.bus.StopAudio()
		r.playback.stop()
		r.nowPlaying.Stop()

	case hub.SetVolume:
		if m.Volume == nil {
			return
		}
		r.bus.SetVolume(clamp(*m.Volume))

	case hub.NextStation:
		r.cycle(ctx, env, 1)

	case hub.PreviousStation:
		r.cycle(ctx, env, -1)

	case hub.UpdateFavorites, hub.UpdateCurrentList:
		if err := r.store.SetFavorites(m.ListID, m.Stations); err != nil {
			r.logger.Error("failed to save favorites", "err", err)
		}

	case hub.GetPlayingState:
		if env.Reply == nil {
			return
		}
		resp := hub.Message{
			Type:      hub.PlayingState,
			IsPlaying: r.playback.IsPlaying(),
			IsPaused:  r.playback.IsPaused(),
			Metadata:  r.nowPlaying.Current(),
		}
		if station, ok := r.playback.CurrentStation(); ok {
			resp.CurrentStation = &station
		}
		env.Reply(resp)

	case hub.AudioPlaying:
		r.playback.started()
		r.bus.Forward(env)

	case hub.AudioPaused, hub.AudioEnded:
		r.playback.ended()
		r.bus.Forward(env)

	case hub.AudioError:
		r.playback.ended()
		r.logger.Warn("audio error", "message", m.Error, "cors", m.IsCorsError)
		r.bus.Forward(env)

	case hub.AudioBuffering:
		r.bus.Forward(env)

	case hub.HLSMetadata:
		r.nowPlaying.Inline(ctx, nowplaying.Inline{
			NowPlaying: m.NowPlaying,
			Artist:     m.Artist,
			Title:      m.Title,
			Source:     m.Source,
		})
		r.bus.Forward(env)

	default:
		r.logger.Debug("ignoring message", "type", m.Type)
	}
}

func (r *Radio) play(ctx context.Context, env hub.Envelope, station metadata.Station) {
	if station.URL == "" {
		r.replyError(env, "station has no stream url")
		return
	}

	if err := r.store.SetCurrentStation(station); err != nil {
		r.logger.Error("failed to save current station", "err", err)
	}

	r.playback.play(station)
	r.nowPlaying.Stop()
	r.bus.PlayAudio(station)

	if err := r.nowPlaying.Start(ctx, station); err != nil {
		r.logger.Warn("failed to start now playing", "station", station.Name, "err", err)
		r.replyError(env, err.Error())
		return
	}

	r.logger.Info("playing", "station", station.Name, "url", station.URL)
}

// cycle moves dir steps through the current favorites list and plays the
// result.
func (r *Radio) cycle(ctx context.Context, env hub.Envelope, dir int) {
	favorites := r.store.Favorites()
	if len(favorites) == 0 {
		return
	}

	// Without a current station both directions start at the top. A current
	// station missing from the list moves next to the top and previous to
	// the bottom.
	n := len(favorites)
	next := 0
	if cur, ok := r.playback.CurrentStation(); ok {
		idx := slices.IndexFunc(favorites, func(s metadata.Station) bool { return s.ID == cur.ID })
		switch {
		case idx >= 0:
			next = (idx + dir + n) % n
		case dir < 0:
			next = n - 1
		}
	}

	station := favorites[next]
	r.bus.StationChanged(station)
	r.play(ctx, env, station)
}

func (r *Radio) replyError(env hub.Envelope, msg string) {
	if env.Reply == nil {
		return
	}
	env.Reply(hub.Message{Type: hub.Error, Error: msg})
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
