package fetchers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/selector"
	"github.com/zachfi/nowplaying/pkg/shoutcast"
)

const (
	icyTimeout          = 8 * time.Second
	icySourceName       = "ICY Stream"
	icyHeaderSourceName = "ICY Headers"
)

// ICY opens the stream itself and reads the first in-band metadata block.
type ICY struct {
	base
}

func NewICY(client *http.Client, logger *slog.Logger) *ICY {
	return &ICY{base: newBase(client, logger, "icy")}
}

func (i *ICY) Fetch(ctx context.Context, station metadata.Station, src selector.Source) *metadata.Result {
	streamURL := src.URL
	if streamURL == "" {
		streamURL = station.URL
	}

	ctx, cancel := context.WithTimeout(ctx, icyTimeout)
	defer cancel()

	stream, err := shoutcast.Open(ctx, i.client, streamURL)
	if err != nil {
		i.logger.Debug("failed to open stream", "url", streamURL, "err", err)
		return nil
	}
	defer stream.Close()

	if stream.HasMetadata() {
		m, err := stream.NextMetadata()
		if err == nil {
			if res := newResult(icySourceName, m.String()); res != nil {
				res.Artist = m.StreamArtist
				res.Title = m.StreamTitle
				res.Genre = stream.Genre
				return res
			}
		} else {
			i.logger.Debug("no metadata block", "url", streamURL, "err", err)
		}
	}

	return headerResult(stream)
}

// headerResult falls back to the icy-name header. Servers often repeat the
// station description there, which is not worth showing.
func headerResult(stream *shoutcast.Stream) *metadata.Result {
	if stream.Name == "" || stream.Name == stream.Description {
		return nil
	}

	res := newResult(icyHeaderSourceName, stream.Name)
	if res != nil {
		res.Genre = stream.Genre
	}
	return res
}
