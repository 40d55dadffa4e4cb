package shoutcast

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// UserAgent is sent on every request. Some ICY servers refuse clients that do
// not look like a media player.
var UserAgent = "nowplaying/1.0 (+https://github.com/zachfi/nowplaying)"

// probeRange limits how much of the stream a server sends for a metadata probe.
const probeRange = "bytes=0-8192"

// ErrNoMetadata is returned when a stream carries no metadata block.
var ErrNoMetadata = errors.New("stream has no metadata")

// Stream represents an open shoutcast stream.
type Stream struct {
	// The name of the server
	Name string

	// What category the server falls under
	Genre string

	// The description of the stream
	Description string

	// Homepage of the server
	URL string

	// Bitrate of the server
	Bitrate int

	// Amount of bytes to read before expecting a metadata block
	metaint int

	r  *bufio.Reader
	rc io.ReadCloser
}

// Open connects to a stream and asks for in-band metadata. Playlist URLs
// (.pls, .m3u) are resolved to the stream they reference first. The request
// is bound to ctx, so cancelling ctx aborts any read in progress.
func Open(ctx context.Context, client *http.Client, url string) (*Stream, error) {
	if client == nil {
		client = http.DefaultClient
	}

	if IsPlaylistURL(url) {
		resolved, err := ResolvePlaylist(ctx, client, url)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve playlist URL: %w", err)
		}
		url = resolved
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("Range", probeRange)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Servers that ignore Icy-MetaData omit both headers; that is not an
	// error, the caller can still use the icy-* headers.
	bitrate, _ := strconv.Atoi(resp.Header.Get("icy-br"))
	metaint, _ := strconv.Atoi(resp.Header.Get("icy-metaint"))

	return &Stream{
		Name:        resp.Header.Get("icy-name"),
		Genre:       resp.Header.Get("icy-genre"),
		Description: resp.Header.Get("icy-description"),
		URL:         resp.Header.Get("icy-url"),
		Bitrate:     bitrate,
		metaint:     metaint,
		r:           bufio.NewReader(resp.Body),
		rc:          resp.Body,
	}, nil
}

// HasMetadata reports whether the server announced an icy-metaint.
func (s *Stream) HasMetadata() bool {
	return s.metaint > 0
}

// NextMetadata discards audio up to the next metadata boundary and decodes the
// block found there. An empty block yields ErrNoMetadata.
func (s *Stream) NextMetadata() (*Metadata, error) {
	if s.metaint <= 0 {
		return nil, ErrNoMetadata
	}

	if _, err := io.CopyN(io.Discard, s.r, int64(s.metaint)); err != nil {
		return nil, fmt.Errorf("failed to skip audio: %w", err)
	}

	lb, err := s.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata length: %w", err)
	}
	if lb == 0 {
		return nil, ErrNoMetadata
	}

	buf := make([]byte, int(lb)*16)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		return nil, fmt.Errorf("failed to read metadata block: %w", err)
	}

	return NewMetadata(buf), nil
}

// Close closes the stream
func (s *Stream) Close() error {
	return s.rc.Close()
}
