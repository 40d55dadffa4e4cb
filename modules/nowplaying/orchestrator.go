// Package nowplaying owns the fetch session of the station being played. A
// session polls for the now playing value on a fixed interval, routes each
// lookup through the remote proxy or the local fetchers, and publishes every
// change to a Notifier.
package nowplaying

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/proxy"
	"github.com/zachfi/nowplaying/pkg/selector"
)

const (
	module = "nowplaying"

	// LoadingSource labels the placeholder shown while the first lookup of
	// a session is outstanding.
	LoadingSource = "Loading"
	// InlineSource is the default label of values read from the stream
	// itself by the audio engine.
	InlineSource = "HLS ID3"
	// StationInfoSource labels the station name fallback.
	StationInfoSource = "Station Info"
)

var tracer = otel.Tracer(module)

// Proxy resolves a stream through the remote proxy.
type Proxy interface {
	FetchNowPlayingWithFallback(ctx context.Context, req proxy.Request) (proxy.Outcome, error)
}

// Local resolves a stream with the local fetchers.
type Local interface {
	Fetch(ctx context.Context, plan selector.Plan, station metadata.Station) (*metadata.Result, error)
}

// Notifier receives every change of the published value. A nil result
// clears the display.
type Notifier interface {
	MetadataUpdate(res *metadata.Result, station metadata.Station)
}

// Playback reports what the audio engine is doing.
type Playback interface {
	IsPlaying() bool
	CurrentStation() (metadata.Station, bool)
}

// Inline is a value the audio engine read from the stream itself.
type Inline struct {
	NowPlaying string
	Artist     string
	Title      string
	Source     string
}

type session struct {
	id      string
	station metadata.Station
	plan    selector.Plan
	retries int

	// loadingShown is set once the placeholder was offered to the Notifier.
	loadingShown bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	proxy    Proxy
	local    Local
	notifier Notifier
	playback Playback

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu      sync.Mutex
	session *session
	station metadata.Station
	current *metadata.Result
	lastKey string
}

// New returns an idle Orchestrator. p may be nil, in which case every
// lookup goes to the local fetchers.
func New(cfg Config, logger slog.Logger, p Proxy, local Local, notifier Notifier, playback Playback) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		logger:   logger.With("module", module),
		proxy:    p,
		local:    local,
		notifier: notifier,
		playback: playback,
		lastKey:  (*metadata.Result)(nil).Key(),
	}
}

// Start ends any running session and begins polling for station.
func (o *Orchestrator) Start(ctx context.Context, station metadata.Station) error {
	if station.URL == "" {
		return selector.ErrMissingURL
	}

	plan, err := selector.SelectPlan(station)
	if err != nil {
		return err
	}

	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.stop()

	// The session outlives the caller's request, so only its values are kept.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		id:      uuid.NewString(),
		station: station,
		plan:    plan,
		ctx:     sctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	o.mu.Lock()
	o.session = s
	o.station = station
	o.mu.Unlock()

	o.logger.Info("starting session", "session", s.id, "station", station.Name, "plan", plan.Kind, "sources", len(plan.Sources))
	metricSessions.Inc()
	go o.run(s)

	return nil
}

// Stop ends the running session, waits for it to exit, and clears the
// published value.
func (o *Orchestrator) Stop() {
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	o.stop()
}

func (o *Orchestrator) stop() {
	o.mu.Lock()
	s := o.session
	o.session = nil
	o.mu.Unlock()

	if s != nil {
		s.cancel()
		<-s.done
		o.logger.Info("stopped session", "session", s.id, "station", s.station.Name)
	}

	o.mu.Lock()
	station := o.station
	cleared := o.current != nil
	o.current = nil
	o.lastKey = (*metadata.Result)(nil).Key()
	o.mu.Unlock()

	if cleared {
		o.notifier.MetadataUpdate(nil, station)
	}
}

// Active reports whether a session is running.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	s := o.session
	o.mu.Unlock()

	if s == nil {
		return false
	}

	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Current returns the last published value.
func (o *Orchestrator) Current() *metadata.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Station returns the station of the most recent session.
func (o *Orchestrator) Station() metadata.Station {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.station
}

// Inline publishes a value read from the stream by the audio engine. It is
// ignored when no session is running, including one that ended on its own,
// or when it does not change the displayed text.
func (o *Orchestrator) Inline(ctx context.Context, in Inline) bool {
	_, span := tracer.Start(ctx, "nowplaying.inline")
	defer span.End()

	text := metadata.ParseArtistTitle(in.NowPlaying, in.Artist, in.Title)
	if !metadata.Valid(text) {
		return false
	}

	source := in.Source
	if source == "" {
		source = InlineSource
	}

	o.mu.Lock()
	s := o.session
	cur := o.current
	o.mu.Unlock()

	if s == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	if cur != nil && cur.NowPlaying == text {
		return false
	}

	span.SetAttributes(attribute.String("source", source))
	return o.publish(s, &metadata.Result{
		Source:     source,
		NowPlaying: text,
		Artist:     metadata.Normalize(in.Artist),
		Title:      metadata.Normalize(in.Title),
		Timestamp:  time.Now(),
	})
}

func (o *Orchestrator) run(s *session) {
	defer close(s.done)
	defer metricSessions.Dec()

	if err := sleep(s.ctx, o.cfg.InitialDelay); err != nil {
		return
	}

	// The audio engine may not report playing yet, so only the first lookup
	// skips that check.
	if !o.guard(s, false) || !o.tick(s) {
		return
	}

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if !o.guard(s, true) || !o.tick(s) {
				return
			}

			// Drop a tick that fired while the lookup was outstanding.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// guard reports whether the session should keep polling.
func (o *Orchestrator) guard(s *session, checkPlaying bool) bool {
	if s.ctx.Err() != nil {
		return false
	}

	if o.playback == nil {
		return true
	}

	if checkPlaying && !o.playback.IsPlaying() {
		o.logger.Debug("not playing, ending session", "session", s.id)
		return false
	}

	station, ok := o.playback.CurrentStation()
	if !ok || station.URL != s.station.URL {
		o.logger.Debug("station changed, ending session", "session", s.id)
		return false
	}

	return true
}

// tick runs one lookup with retries. It returns false when the session
// should end.
func (o *Orchestrator) tick(s *session) bool {
	for attempt := 0; ; attempt++ {
		err := o.fetch(s)
		if err == nil {
			s.retries = 0
			return true
		}

		if s.ctx.Err() != nil {
			return false
		}

		if attempt >= o.cfg.MaxRetries {
			o.logger.Warn("lookup failed, waiting for next refresh", "session", s.id, "station", s.station.Name, "attempts", attempt+1, "err", err)
			s.retries = 0
			return true
		}

		s.retries = attempt + 1
		o.logger.Debug("lookup failed, retrying", "session", s.id, "retry", s.retries, "err", err)

		if err := sleep(s.ctx, o.cfg.RetryBackoff*time.Duration(s.retries)); err != nil {
			return false
		}

		if !o.guard(s, true) {
			return false
		}
	}
}

func (o *Orchestrator) fetch(s *session) (err error) {
	ctx, span := tracer.Start(s.ctx, "nowplaying.fetch", trace.WithAttributes(
		attribute.String("session", s.id),
		attribute.String("station", s.station.Name),
		attribute.Int("retry", s.retries),
	))
	defer span.End()

	path := "local"
	outcome := "empty"
	start := time.Now()
	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("path", path), attribute.String("outcome", outcome))
		metricFetches.WithLabelValues(path, outcome).Inc()
		metricFetchDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}()

	var res *metadata.Result

	if o.proxy == nil || selector.IsHLS(s.station.URL) {
		res, err = o.local.Fetch(ctx, s.plan, s.station)
	} else {
		path = "proxy"

		if !s.loadingShown && o.Current() == nil {
			s.loadingShown = true
			o.publish(s, metadata.NewLoading(LoadingSource))
		}

		var out proxy.Outcome
		out, err = o.proxy.FetchNowPlayingWithFallback(ctx, proxy.RequestFor(s.station))
		if err != nil {
			return err
		}

		switch out.Kind {
		case proxy.Loading:
			outcome = "loading"
			o.publish(s, out.Result)
			return nil
		case proxy.Result:
			res = out.Result
		default:
			path = "fallback"
			res, err = o.local.Fetch(ctx, s.plan, s.station)
		}
	}
	if err != nil {
		return err
	}

	res = o.finish(s, res)
	if res != nil {
		outcome = "result"
	}

	o.publish(s, res)
	return nil
}

// finish normalizes a lookup result, drops placeholder text, and applies the
// station name fallback.
func (o *Orchestrator) finish(s *session, res *metadata.Result) *metadata.Result {
	if res != nil {
		c := *res
		c.NowPlaying = metadata.Normalize(c.NowPlaying)
		res = &c

		if metadata.IsGenericOrInvalid(c.NowPlaying) {
			res = nil
		}
	}

	if res == nil && o.cfg.StationNameFallback && s.station.Name != "" {
		res = &metadata.Result{
			Source:     StationInfoSource,
			NowPlaying: s.station.Name,
			Timestamp:  time.Now(),
		}
	}

	return res
}

// publish sends res to the Notifier when s is still the running session and
// res differs from the last published value.
func (o *Orchestrator) publish(s *session, res *metadata.Result) bool {
	key := res.Key()

	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		o.logger.Debug("discarding result of stale session", "session", s.id)
		return false
	}
	if key == o.lastKey {
		o.mu.Unlock()
		return false
	}
	o.lastKey = key
	o.current = res
	o.mu.Unlock()

	o.notifier.MetadataUpdate(res, s.station)
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
