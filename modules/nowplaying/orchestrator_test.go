package nowplaying

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/proxy"
	"github.com/zachfi/nowplaying/pkg/selector"
)

type recorder struct {
	mu      sync.Mutex
	updates []*metadata.Result
}

func (r *recorder) MetadataUpdate(res *metadata.Result, _ metadata.Station) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, res)
}

func (r *recorder) all() []*metadata.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*metadata.Result(nil), r.updates...)
}

func (r *recorder) last() *metadata.Result {
	all := r.all()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

type playback struct {
	mu      sync.Mutex
	playing bool
	station metadata.Station
}

func (p *playback) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *playback) CurrentStation() (metadata.Station, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.station, p.station.URL != ""
}

func (p *playback) set(playing bool, station metadata.Station) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = playing
	p.station = station
}

type localFunc func(ctx context.Context) (*metadata.Result, error)

type fakeLocal struct {
	calls atomic.Int32
	fn    localFunc
}

func (f *fakeLocal) Fetch(ctx context.Context, _ selector.Plan, _ metadata.Station) (*metadata.Result, error) {
	f.calls.Add(1)
	return f.fn(ctx)
}

type fakeProxy struct {
	calls atomic.Int32
	out   proxy.Outcome
}

func (f *fakeProxy) FetchNowPlayingWithFallback(_ context.Context, _ proxy.Request) (proxy.Outcome, error) {
	f.calls.Add(1)
	return f.out, nil
}

var (
	hlsStation  = metadata.Station{ID: "hls", Name: "HLS FM", URL: "https://example.com/live/master.m3u8"}
	icyStation  = metadata.Station{ID: "icy", Name: "Icy FM", URL: "https://example.com/stream.mp3"}
	testConfig  = Config{PollInterval: 10 * time.Millisecond, MaxRetries: 2, RetryBackoff: time.Millisecond}
	trackResult = &metadata.Result{Source: "ICY Stream", NowPlaying: "Artist X - Track Y"}
)

func newTestOrchestrator(cfg Config, p Proxy, local Local, station metadata.Station) (*Orchestrator, *recorder, *playback) {
	rec := &recorder{}
	pb := &playback{}
	pb.set(true, station)

	return New(cfg, *slog.Default(), p, local, rec, pb), rec, pb
}

func returning(res *metadata.Result) *fakeLocal {
	return &fakeLocal{fn: func(context.Context) (*metadata.Result, error) { return res, nil }}
}

func TestStartRequiresURL(t *testing.T) {
	local := returning(trackResult)
	o, _, _ := newTestOrchestrator(testConfig, nil, local, hlsStation)

	err := o.Start(context.Background(), metadata.Station{Name: "nothing"})
	require.ErrorIs(t, err, selector.ErrMissingURL)
	require.False(t, o.Active())
	require.Zero(t, local.calls.Load())
}

func TestStartReplacesSession(t *testing.T) {
	local := returning(trackResult)
	o, _, _ := newTestOrchestrator(testConfig, nil, local, hlsStation)

	require.NoError(t, o.Start(context.Background(), hlsStation))
	first := o.session

	require.NoError(t, o.Start(context.Background(), hlsStation))
	second := o.session
	require.NotSame(t, first, second)

	select {
	case <-first.done:
	default:
		t.Fatal("previous session still running")
	}
	require.True(t, o.Active())

	o.Stop()
	require.False(t, o.Active())
	select {
	case <-second.done:
	default:
		t.Fatal("session still running after stop")
	}

	// Stopping twice is harmless.
	o.Stop()
	require.False(t, o.Active())
}

func TestDuplicateResultsNotifyOnce(t *testing.T) {
	local := returning(trackResult)
	o, rec, _ := newTestOrchestrator(testConfig, nil, local, hlsStation)

	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.Eventually(t, func() bool { return local.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	o.Stop()

	updates := rec.all()
	require.Len(t, updates, 2)
	require.Equal(t, "Artist X - Track Y", updates[0].NowPlaying)
	require.Nil(t, updates[1])
}

func TestPublishDeduplicates(t *testing.T) {
	o, rec, _ := newTestOrchestrator(testConfig, nil, returning(nil), hlsStation)
	s := &session{id: "test", station: hlsStation}
	o.session = s

	a := &metadata.Result{Source: "ICY Stream", NowPlaying: "A - B", Timestamp: time.Now()}
	b := &metadata.Result{Source: "ICY Stream", NowPlaying: "A - B", Timestamp: time.Now().Add(time.Minute)}

	require.True(t, o.publish(s, a))
	require.False(t, o.publish(s, b))
	require.True(t, o.publish(s, nil))
	require.False(t, o.publish(s, nil))
	require.Len(t, rec.all(), 2)

	stale := &session{id: "stale", station: hlsStation}
	require.False(t, o.publish(stale, a))
}

func TestProxyResult(t *testing.T) {
	p := &fakeProxy{out: proxy.Outcome{Kind: proxy.Result, Result: &metadata.Result{Source: "Icecast Server", NowPlaying: "Artist X - Track Y", FromProxy: true}}}
	local := returning(nil)
	o, rec, _ := newTestOrchestrator(testConfig, p, local, icyStation)

	require.NoError(t, o.Start(context.Background(), icyStation))
	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	o.Stop()

	updates := rec.all()
	require.Len(t, updates, 3)
	require.True(t, updates[0].IsLoading())
	require.Equal(t, LoadingSource, updates[0].Source)
	require.Equal(t, "Artist X - Track Y", updates[1].NowPlaying)
	require.True(t, updates[1].FromProxy)
	require.Nil(t, updates[2])
	require.Zero(t, local.calls.Load())
}

func TestProxyColdStart(t *testing.T) {
	p := &fakeProxy{out: proxy.Outcome{Kind: proxy.Loading, Result: metadata.NewLoading(proxy.StartingSource)}}
	o, rec, _ := newTestOrchestrator(testConfig, p, returning(nil), icyStation)

	require.NoError(t, o.Start(context.Background(), icyStation))
	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cur := o.Current()
	require.True(t, cur.IsLoading())
	require.Equal(t, proxy.StartingSource, cur.Source)
	o.Stop()

	require.Len(t, rec.all(), 3)
}

func TestProxyFallsBackToLocal(t *testing.T) {
	for _, kind := range []proxy.Kind{proxy.UseLocal, proxy.UseFallback} {
		t.Run(string(kind), func(t *testing.T) {
			p := &fakeProxy{out: proxy.Outcome{Kind: kind}}
			local := returning(trackResult)
			o, _, _ := newTestOrchestrator(testConfig, p, local, icyStation)

			require.NoError(t, o.Start(context.Background(), icyStation))
			require.Eventually(t, func() bool {
				cur := o.Current()
				return cur != nil && cur.NowPlaying == trackResult.NowPlaying
			}, time.Second, 5*time.Millisecond)
			o.Stop()

			require.Positive(t, local.calls.Load())
		})
	}
}

func TestHLSSkipsProxy(t *testing.T) {
	p := &fakeProxy{out: proxy.Outcome{Kind: proxy.Result, Result: trackResult}}
	local := returning(&metadata.Result{Source: "HLS Stream", NowPlaying: "Some Show"})
	o, _, _ := newTestOrchestrator(testConfig, p, local, hlsStation)

	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.Eventually(t, func() bool { return o.Current() != nil }, time.Second, 5*time.Millisecond)
	o.Stop()

	require.Zero(t, p.calls.Load())
}

func TestRetriesFailedLookups(t *testing.T) {
	var n atomic.Int32
	local := &fakeLocal{fn: func(context.Context) (*metadata.Result, error) {
		if n.Add(1) < 3 {
			return nil, errors.New("unreachable")
		}
		return trackResult, nil
	}}

	cfg := testConfig
	cfg.PollInterval = time.Hour
	o, _, _ := newTestOrchestrator(cfg, nil, local, hlsStation)

	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.Eventually(t, func() bool { return o.Current() != nil }, time.Second, 5*time.Millisecond)
	o.Stop()

	require.Equal(t, int32(3), local.calls.Load())
}

func TestGuardEndsSession(t *testing.T) {
	local := returning(trackResult)
	o, _, pb := newTestOrchestrator(testConfig, nil, local, hlsStation)

	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.Eventually(t, func() bool { return local.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	pb.set(true, icyStation)
	require.Eventually(t, func() bool { return !o.Active() }, time.Second, 5*time.Millisecond)

	calls := local.calls.Load()
	time.Sleep(5 * testConfig.PollInterval)
	require.Equal(t, calls, local.calls.Load())
}

func TestFirstLookupIgnoresPlayingState(t *testing.T) {
	local := returning(trackResult)
	o, _, pb := newTestOrchestrator(testConfig, nil, local, hlsStation)
	pb.set(false, hlsStation)

	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.Eventually(t, func() bool { return !o.Active() }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), local.calls.Load())
}

func TestGenericTextAndStationFallback(t *testing.T) {
	generic := returning(&metadata.Result{Source: "ICY Stream", NowPlaying: "- Live"})

	o, _, _ := newTestOrchestrator(testConfig, nil, generic, hlsStation)
	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.Eventually(t, func() bool { return generic.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.Nil(t, o.Current())
	o.Stop()

	cfg := testConfig
	cfg.StationNameFallback = true
	o, _, _ = newTestOrchestrator(cfg, nil, generic, hlsStation)
	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.Eventually(t, func() bool { return o.Current() != nil }, time.Second, 5*time.Millisecond)

	cur := o.Current()
	require.Equal(t, StationInfoSource, cur.Source)
	require.Equal(t, hlsStation.Name, cur.NowPlaying)
	o.Stop()
}

func TestInline(t *testing.T) {
	cfg := testConfig
	cfg.InitialDelay = time.Hour
	o, rec, _ := newTestOrchestrator(cfg, nil, returning(nil), hlsStation)

	require.False(t, o.Inline(context.Background(), Inline{NowPlaying: "Nobody Listening"}))

	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.True(t, o.Active())

	require.True(t, o.Inline(context.Background(), Inline{Artist: "Artist X", Title: "Track Y"}))
	require.False(t, o.Inline(context.Background(), Inline{NowPlaying: "Artist X - Track Y", Source: "other"}))
	require.False(t, o.Inline(context.Background(), Inline{NowPlaying: "Live"}))

	cur := o.Current()
	require.Equal(t, InlineSource, cur.Source)
	require.Equal(t, "Artist X - Track Y", cur.NowPlaying)

	o.Stop()
	require.Nil(t, rec.last())
}

func TestLoadingShownOncePerSession(t *testing.T) {
	p := &fakeProxy{out: proxy.Outcome{Kind: proxy.UseFallback}}
	local := returning(nil)
	o, rec, _ := newTestOrchestrator(testConfig, p, local, icyStation)

	require.NoError(t, o.Start(context.Background(), icyStation))
	require.Eventually(t, func() bool { return local.calls.Load() >= 4 }, time.Second, 5*time.Millisecond)
	o.Stop()

	updates := rec.all()
	require.Len(t, updates, 2)
	require.True(t, updates[0].IsLoading())
	require.Nil(t, updates[1])
}

func TestInlineAfterSessionEnded(t *testing.T) {
	o, rec, pb := newTestOrchestrator(testConfig, nil, returning(nil), hlsStation)
	pb.set(false, hlsStation)

	require.NoError(t, o.Start(context.Background(), hlsStation))
	require.Eventually(t, func() bool { return !o.Active() }, time.Second, 5*time.Millisecond)

	require.False(t, o.Inline(context.Background(), Inline{Artist: "Artist X", Title: "Track Y"}))
	require.Nil(t, o.Current())
	require.Empty(t, rec.all())
}
