package fetchers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/selector"
)

const (
	ntsLiveURL    = "https://www.nts.live/api/v2/live"
	ntsRelayHost  = "stream-relay-geo.ntslive.net"
	ntsTimeout    = 5 * time.Second
	ntsSourceName = "NTS Radio API"
)

type ntsLive struct {
	Results []ntsChannel `json:"results"`
}

type ntsChannel struct {
	ChannelName string `json:"channel_name"`
	Now         *struct {
		BroadcastTitle string `json:"broadcast_title"`
		Title          string `json:"title"`
		Embeds         struct {
			Details struct {
				Name  string `json:"name"`
				Media struct {
					PictureMedium string `json:"picture_medium"`
				} `json:"media"`
			} `json:"details"`
		} `json:"embeds"`
	} `json:"now"`
}

// NTS reads the live schedule of NTS Radio. Only the two live relay channels
// have schedule data; mixtape streams are ignored.
type NTS struct {
	base

	// Endpoint overrides the live schedule URL.
	Endpoint string
}

func NewNTS(client *http.Client, logger *slog.Logger) *NTS {
	return &NTS{base: newBase(client, logger, "nts"), Endpoint: ntsLiveURL}
}

func (n *NTS) Fetch(ctx context.Context, station metadata.Station, src selector.Source) *metadata.Result {
	streamURL := src.URL
	if streamURL == "" {
		streamURL = station.URL
	}
	if !strings.Contains(streamURL, ntsRelayHost) {
		return nil
	}

	want := "1"
	if strings.Contains(streamURL, "/stream2") {
		want = "2"
	}

	ctx, cancel := context.WithTimeout(ctx, ntsTimeout)
	defer cancel()

	resp, err := n.get(ctx, n.Endpoint)
	if err != nil {
		n.logger.Debug("live schedule request failed", "err", err)
		return nil
	}
	defer resp.Body.Close()

	var live ntsLive
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&live); err != nil {
		n.logger.Debug("failed to decode live schedule", "err", err)
		return nil
	}
	if len(live.Results) == 0 {
		return nil
	}

	ch := live.Results[0]
	for _, r := range live.Results {
		if r.ChannelName == want {
			ch = r
			break
		}
	}
	if ch.Now == nil {
		return nil
	}

	text := ch.Now.BroadcastTitle
	if text == "" {
		text = ch.Now.Title
	}
	if d := ch.Now.Embeds.Details.Name; d != "" {
		text = d
	}

	res := newResult(ntsSourceName, text)
	if res == nil {
		return nil
	}

	res.Channel = "NTS 1"
	if ch.ChannelName == "2" {
		res.Channel = "NTS 2"
	}
	res.Artwork = ch.Now.Embeds.Details.Media.PictureMedium
	res.Endpoint = n.Endpoint

	return res
}
