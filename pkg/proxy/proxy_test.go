package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL:      srv.URL,
		Timeout:      200 * time.Millisecond,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
		ErrorBackoff: time.Millisecond,
	}, nil)
	return c, &calls
}

func replies(bodies ...string) http.HandlerFunc {
	var n atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		if i >= len(bodies) {
			i = len(bodies) - 1
		}
		_, _ = w.Write([]byte(bodies[i]))
	}
}

func statuses(codes ...int) http.HandlerFunc {
	var n atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		i := int(n.Add(1)) - 1
		if i >= len(codes) {
			i = len(codes) - 1
		}
		w.WriteHeader(codes[i])
	}
}

var testReq = Request{StreamURL: "http://ice.example.com/live", StationID: "abc", Country: "NL"}

func TestFetchNowPlayingResult(t *testing.T) {
	c, calls := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/metadata", r.URL.Path)
		assert.Equal(t, "http://ice.example.com/live", r.URL.Query().Get("url"))
		assert.Equal(t, "abc", r.URL.Query().Get("stationId"))
		assert.Equal(t, "NL", r.URL.Query().Get("country"))
		assert.False(t, r.URL.Query().Has("homepage"))
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))

		_, _ = w.Write([]byte(`{"ok":true,"source":"icecast-status","display":"Artist - Title","artist":"Artist","title":"Title"}`))
	})

	out, err := c.FetchNowPlaying(context.Background(), testReq)
	require.NoError(t, err)
	require.Equal(t, Result, out.Kind)
	assert.Equal(t, "Icecast Server", out.Result.Source)
	assert.Equal(t, "Artist - Title", out.Result.NowPlaying)
	assert.Equal(t, 15, out.Result.CacheTTL)
	assert.True(t, out.Result.FromProxy)
	assert.EqualValues(t, 1, calls.Load())
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "NTS Radio API", SourceName("nts"))
	assert.Equal(t, "Server Starting", SourceName("proxy-starting"))
	assert.Equal(t, "Metadata Server", SourceName("something-new"))
}

func TestFetchNowPlayingLocalCases(t *testing.T) {
	c, calls := testClient(t, replies(`{"ok":true}`))

	out, err := c.FetchNowPlaying(context.Background(), Request{StreamURL: "https://cdn.example.com/master.m3u8"})
	require.NoError(t, err)
	assert.Equal(t, UseLocal, out.Kind)

	out, err = c.FetchNowPlaying(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, None, out.Kind)

	assert.Zero(t, calls.Load())

	disabled := New(Config{}, nil)
	out, err = disabled.FetchNowPlaying(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, UseLocal, out.Kind)
}

func TestFetchNowPlayingReasons(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		kind  Kind
		calls int32
	}{
		{"hls client", `{"ok":false,"reason":"hls-client"}`, UseLocal, 1},
		{"no metadata", `{"ok":false,"reason":"no-metadata"}`, None, 1},
		{"blocked", `{"ok":false,"reason":"blocked"}`, None, 1},
		{"upstream error retried", `{"ok":false,"reason":"upstream-error","message":"boom"}`, None, 2},
		{"unknown reason", `{"ok":false,"reason":"teapot"}`, None, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, calls := testClient(t, replies(tc.body))

			out, err := c.FetchNowPlaying(context.Background(), testReq)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, out.Kind)
			assert.Equal(t, tc.calls, calls.Load())
		})
	}
}

func TestFetchNowPlayingRetrySucceeds(t *testing.T) {
	c, calls := testClient(t, replies(
		`{"ok":false,"reason":"timeout"}`,
		`{"ok":true,"source":"nts","display":"Late Night","cacheTtl":30}`,
	))

	out, err := c.FetchNowPlaying(context.Background(), testReq)
	require.NoError(t, err)
	require.Equal(t, Result, out.Kind)
	assert.Equal(t, "Late Night", out.Result.NowPlaying)
	assert.Equal(t, 30, out.Result.CacheTTL)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchNowPlayingColdStart(t *testing.T) {
	c, calls := testClient(t, statuses(http.StatusServiceUnavailable))

	out, err := c.FetchNowPlaying(context.Background(), testReq)
	require.NoError(t, err)
	require.Equal(t, Loading, out.Kind)
	assert.True(t, out.Result.IsLoading())
	assert.Equal(t, "Loading...", out.Result.NowPlaying)
	assert.Equal(t, StartingSource, out.Result.Source)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetchNowPlayingAttemptTimeout(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	out, err := c.FetchNowPlaying(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, Loading, out.Kind)
}

func TestFetchNowPlayingServerErrors(t *testing.T) {
	c, calls := testClient(t, statuses(http.StatusInternalServerError))

	out, err := c.FetchNowPlaying(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, None, out.Kind)
	assert.EqualValues(t, 2, calls.Load())

	// A gateway error after the first attempt is a hard failure.
	c, calls = testClient(t, statuses(http.StatusInternalServerError, http.StatusBadGateway))
	out, err = c.FetchNowPlayingWithFallback(context.Background(), testReq)
	require.NoError(t, err)
	assert.Equal(t, UseFallback, out.Kind)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetchNowPlayingCancelled(t *testing.T) {
	c, _ := testClient(t, statuses(http.StatusInternalServerError))
	c.cfg.ErrorBackoff = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.FetchNowPlaying(ctx, testReq)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestHealth(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	assert.True(t, c.Health(context.Background()))

	c, _ = testClient(t, replies(`{"status":"degraded"}`))
	assert.False(t, c.Health(context.Background()))

	assert.False(t, New(Config{}, nil).Health(context.Background()))
}

func TestShouldUseProxy(t *testing.T) {
	c := New(Config{BaseURL: "https://proxy.example.com/"}, nil)
	assert.True(t, c.ShouldUseProxy("http://ice.example.com/live"))
	assert.False(t, c.ShouldUseProxy("https://cdn.example.com/a.m3u8"))
	assert.False(t, c.ShouldUseProxy(""))
	assert.False(t, New(Config{}, nil).ShouldUseProxy("http://ice.example.com/live"))
}
