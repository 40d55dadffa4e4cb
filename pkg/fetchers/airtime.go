package fetchers

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/selector"
)

const (
	airtimeTimeout    = 5 * time.Second
	airtimeSourceName = "Airtime Pro API"
)

var (
	airtimeShow   = regexp.MustCompile(`(?i)airtime`)
	archiveShow   = regexp.MustCompile(`(?i)archive`)
	leadingHyphen = regexp.MustCompile(`^\s*-\s*`)
)

// Airtime reads the live-info-v2 document of an Airtime Pro station. Cashmere
// Radio is served through the same fetcher with a fixed endpoint.
type Airtime struct {
	base
}

func NewAirtime(client *http.Client, logger *slog.Logger) *Airtime {
	return &Airtime{base: newBase(client, logger, "airtime")}
}

func (a *Airtime) Fetch(ctx context.Context, station metadata.Station, src selector.Source) *metadata.Result {
	endpoint := src.Endpoint
	if endpoint == "" {
		endpoint = selector.DeriveAirtimeProEndpoint(station.URL)
	}
	if endpoint == "" {
		return nil
	}

	label := src.Label
	if label == "" {
		label = airtimeSourceName
	}

	doc, err := a.getJSON(ctx, endpoint, airtimeTimeout)
	if err != nil {
		a.logger.Debug("live info request failed", "endpoint", endpoint, "err", err)
		return nil
	}

	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}

	res := newResult(label, parseAirtime(m))
	if res != nil {
		res.Endpoint = endpoint
	}
	return res
}

// parseAirtime renders "Show - Artist - Title" from a live-info-v2 document,
// dropping the parts that are missing or duplicated.
func parseAirtime(doc map[string]any) string {
	current := metadata.Object(doc, "tracks", "current")

	var artist, title string
	if current != nil {
		if meta := metadata.Object(current, "metadata"); meta != nil {
			artist = strings.TrimSpace(metadata.String(meta, "artist_name", "artist"))
			title = strings.TrimSpace(metadata.String(meta, "track_title"))
		}
		if title == "" {
			if name, ok := current["name"].(string); ok {
				title = strings.TrimSpace(leadingHyphen.ReplaceAllString(name, ""))
			}
		}
	}

	var show string
	if s := metadata.Object(doc, "shows", "current"); s != nil {
		show = strings.TrimSpace(metadata.String(s, "name"))
		if airtimeShow.MatchString(show) || archiveShow.MatchString(show) {
			show = ""
		}
	}

	var track string
	switch {
	case artist != "" && title != "":
		track = artist + " - " + title
	case title != "":
		track = title
	case artist != "":
		track = artist
	}

	var out string
	switch {
	case show != "" && track != "":
		lcShow, lcTrack := strings.ToLower(show), strings.ToLower(track)
		if !strings.HasPrefix(lcTrack, lcShow+" - ") && lcShow != lcTrack {
			out = show + " - " + track
		} else {
			out = track
		}
	case track != "":
		out = track
	case show != "":
		out = show
	}

	if out == "" {
		out = nowField(doc)
	}

	return metadata.Normalize(out)
}

// nowField is the last resort for live-info documents without track or show
// data: the first of now, now_playing or nowPlaying, as a string or as an
// object with a title or name.
func nowField(doc map[string]any) string {
	for _, k := range []string{"now", "now_playing", "nowPlaying"} {
		switch v := doc[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			return metadata.String(v, "title", "name")
		}
	}
	return ""
}
