package fetchers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/selector"
	"github.com/zachfi/nowplaying/pkg/shoutcast"
)

const (
	hlsTimeout    = 8 * time.Second
	hlsSourceName = "HLS Stream"
)

// HLS scans an HLS playlist for a title.
type HLS struct {
	base
}

func NewHLS(client *http.Client, logger *slog.Logger) *HLS {
	return &HLS{base: newBase(client, logger, "hls")}
}

func (h *HLS) Fetch(ctx context.Context, station metadata.Station, src selector.Source) *metadata.Result {
	streamURL := src.URL
	if streamURL == "" {
		streamURL = station.URL
	}
	if !selector.IsHLS(streamURL) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, hlsTimeout)
	defer cancel()

	resp, err := h.get(ctx, streamURL)
	if err != nil {
		h.logger.Debug("playlist request failed", "url", streamURL, "err", err)
		return nil
	}
	defer resp.Body.Close()

	title, err := shoutcast.ParseHLS(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		h.logger.Debug("failed to read playlist", "url", streamURL, "err", err)
		return nil
	}

	return newResult(hlsSourceName, title)
}
