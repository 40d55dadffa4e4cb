package fetchers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/selector"
)

const (
	genericTimeout        = 3 * time.Second
	genericSourceName     = "Station API"
	callshopSourceName    = "Callshop Radio JSON"
	radioKingSourceName   = "Radio King API"
	defaultCallshopStatus = "https://icecast.callshopradio.com/status-json.xsl"
)

// conventionalPaths are probed on the stream host, in order.
var conventionalPaths = []string{
	"/api/nowplaying",
	"/nowplaying",
	"/current",
	"/metadata",
	"/info",
	"/playing.json",
	"/current.json",
	"/api/current",
	"/stats",
	"/7.html",
}

// defaultRadioKing lists the Radio King APIs. {id} is the radio id and {base}
// the scheme and host of the stream.
var defaultRadioKing = []string{
	"https://www.radioking.com/api/radio/{id}/track/current",
	"https://api.radioking.com/widget/radio/{id}",
	"https://www.radioking.com/api/radio/{id}",
	"{base}/api/radio/{id}/track/current",
}

var radioKingID = regexp.MustCompile(`radio/(\d+)`)

// Generic tries station specific APIs for a couple of known hosts and then a
// list of conventional now-playing paths on the stream host.
type Generic struct {
	base

	// CallshopStatus overrides the Callshop Radio status document URL.
	CallshopStatus string
	// RadioKing overrides the Radio King endpoint templates.
	RadioKing []string
}

func NewGeneric(client *http.Client, logger *slog.Logger) *Generic {
	return &Generic{
		base:           newBase(client, logger, "generic"),
		CallshopStatus: defaultCallshopStatus,
		RadioKing:      defaultRadioKing,
	}
}

func (g *Generic) Fetch(ctx context.Context, station metadata.Station, src selector.Source) *metadata.Result {
	streamURL := src.URL
	if streamURL == "" {
		streamURL = station.URL
	}

	u, err := url.Parse(streamURL)
	if err != nil || u.Host == "" {
		return nil
	}
	hostBase := u.Scheme + "://" + u.Host

	if strings.Contains(streamURL, "callshopradio.com") {
		if res := g.callshop(ctx, streamURL); res != nil {
			return res
		}
	}

	if strings.Contains(streamURL, "radioking.com") {
		if m := radioKingID.FindStringSubmatch(streamURL); m != nil {
			if res := g.radioKing(ctx, m[1], hostBase); res != nil {
				return res
			}
		}
	}

	for _, p := range conventionalPaths {
		if ctx.Err() != nil {
			return nil
		}

		endpoint := hostBase + p
		doc, err := g.getJSON(ctx, endpoint, genericTimeout)
		if err != nil {
			g.logger.Debug("station api probe failed", "endpoint", endpoint, "err", err)
			continue
		}

		if res := newResult(genericSourceName, metadata.ParseStationJSON(doc)); res != nil {
			res.Endpoint = endpoint
			return res
		}
	}

	return nil
}

func (g *Generic) callshop(ctx context.Context, streamURL string) *metadata.Result {
	doc, err := g.getJSON(ctx, g.CallshopStatus, genericTimeout)
	if err != nil {
		g.logger.Debug("callshop status request failed", "err", err)
		return nil
	}

	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}

	mount := "/callshopradio"
	if strings.Contains(streamURL, "/callshopradio-wien") {
		mount = "/callshopradio-wien"
	}

	var sources []map[string]any
	if ice := metadata.Object(m, "icestats"); ice != nil {
		sources = extractSources(map[string]any{"sources": ice["source"]})
	}
	source := pickSource(sources, mount)
	if source == nil {
		return nil
	}

	res := newResult(callshopSourceName, metadata.String(source, "title"))
	if res != nil {
		res.Genre = metadata.String(source, "genre")
		res.Listeners = number(source, "listeners")
		res.Endpoint = g.CallshopStatus
	}
	return res
}

func (g *Generic) radioKing(ctx context.Context, id, hostBase string) *metadata.Result {
	r := strings.NewReplacer("{id}", id, "{base}", hostBase)

	for _, tmpl := range g.RadioKing {
		if ctx.Err() != nil {
			return nil
		}

		endpoint := r.Replace(tmpl)
		doc, err := g.getJSON(ctx, endpoint, genericTimeout)
		if err != nil {
			g.logger.Debug("radio king request failed", "endpoint", endpoint, "err", err)
			continue
		}

		m, ok := doc.(map[string]any)
		if !ok {
			continue
		}

		track := metadata.Object(m, "track")
		if track == nil {
			track = map[string]any{}
		}
		title := metadata.String(m, "title")
		if title == "" {
			title = metadata.String(track, "title", "name")
		}
		artist := metadata.String(m, "artist")
		if artist == "" {
			artist = metadata.String(track, "artist")
		}

		if res := newResult(radioKingSourceName, metadata.ParseArtistTitle(title, artist, title)); res != nil {
			res.Endpoint = endpoint
			return res
		}
	}
	return nil
}
