package hub

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grafana/dskit/services"
	"github.com/stretchr/testify/require"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

func testHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	h, err := New(Config{PingInterval: time.Second}, *slog.Default())
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return h, srv
}

func dial(t *testing.T, h *Hub, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	before := h.Clients()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return h.Clients() > before }, time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestInboundEnvelopeAndReply(t *testing.T) {
	h, srv := testHub(t)
	conn := dial(t, h, srv)

	station := metadata.Station{ID: "1", Name: "Test FM", URL: "http://example.com/stream"}
	require.NoError(t, conn.WriteJSON(Message{Type: PlayStation, Station: &station}))

	var env Envelope
	select {
	case env = <-h.Envelopes():
	case <-time.After(time.Second):
		t.Fatal("no envelope")
	}
	require.Equal(t, PlayStation, env.Message.Type)
	require.Equal(t, station, *env.Message.Station)

	env.Reply(Message{Type: Error, Error: "missing url"})
	m := read(t, conn)
	require.Equal(t, Error, m.Type)
	require.Equal(t, "missing url", m.Error)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	h, srv := testHub(t)
	a := dial(t, h, srv)
	b := dial(t, h, srv)

	h.MetadataUpdate(&metadata.Result{Source: "ICY Stream", NowPlaying: "A - B"}, metadata.Station{Name: "Test FM"})

	for _, conn := range []*websocket.Conn{a, b} {
		m := read(t, conn)
		require.Equal(t, MetadataUpdate, m.Type)
		require.Equal(t, "A - B", m.Metadata.NowPlaying)
		require.Equal(t, "Test FM", m.Station.Name)
	}

	h.MetadataUpdate(nil, metadata.Station{Name: "Test FM"})
	m := read(t, a)
	require.Equal(t, MetadataUpdate, m.Type)
	require.Nil(t, m.Metadata)
}

func TestForwardSkipsSender(t *testing.T) {
	h, srv := testHub(t)
	audio := dial(t, h, srv)
	ui := dial(t, h, srv)

	require.NoError(t, audio.WriteJSON(Message{Type: AudioBuffering}))
	env := <-h.Envelopes()
	h.Forward(env)

	m := read(t, ui)
	require.Equal(t, AudioBuffering, m.Type)

	h.SetVolume(0.5)
	m = read(t, audio)
	require.Equal(t, SetVolume, m.Type)
	require.Equal(t, 0.5, *m.Volume)
}

func TestBroadcastWithoutClients(t *testing.T) {
	h, err := New(Config{}, *slog.Default())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		h.StopAudio()
		h.PlayAudio(metadata.Station{Name: "Test FM"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked")
	}
}

func TestStoppingDisconnectsClients(t *testing.T) {
	h, srv := testHub(t)
	require.NoError(t, services.StartAndAwaitRunning(context.Background(), h))

	conn := dial(t, h, srv)
	require.NoError(t, services.StopAndAwaitTerminated(context.Background(), h))
	require.Zero(t, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error %v", err)
}

func TestOriginCheck(t *testing.T) {
	h, srv := testHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	for _, tc := range []struct {
		origin string
		ok     bool
	}{
		{origin: "chrome-extension://abcdefghijklmnop", ok: true},
		{origin: "moz-extension://1234", ok: true},
		{origin: "https://evil.example.com", ok: false},
		{origin: "http://localhost:3000", ok: false},
	} {
		t.Run(tc.origin, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {tc.origin}})
			if tc.ok {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}

			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}

	require.Eventually(t, func() bool { return h.Clients() == 0 }, time.Second, 5*time.Millisecond)
}
