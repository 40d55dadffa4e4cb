package fetchers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/race"
	"github.com/zachfi/nowplaying/pkg/selector"
)

const (
	icecastTimeout      = 3500 * time.Millisecond
	icecastMaxEndpoints = 4
	icecastSourceName   = "Icecast Server"
)

// sourceRules locate the list of mounts in the status document layouts served
// by Icecast and its look-alikes. The first rule that finds anything wins.
var sourceRules = []func(doc map[string]any) any{
	func(doc map[string]any) any {
		if ice := metadata.Object(doc, "icestats"); ice != nil {
			return ice["source"]
		}
		return nil
	},
	func(doc map[string]any) any { return doc["sources"] },
	func(doc map[string]any) any { return doc["source"] },
	func(doc map[string]any) any { return doc["stats"] },
}

// Icecast reads the JSON status documents of Icecast servers, racing the
// well-known status paths against each other.
type Icecast struct {
	base
}

func NewIcecast(client *http.Client, logger *slog.Logger) *Icecast {
	return &Icecast{base: newBase(client, logger, "icecast")}
}

func (i *Icecast) Fetch(ctx context.Context, station metadata.Station, src selector.Source) *metadata.Result {
	endpoints := src.Endpoints
	if len(endpoints) > icecastMaxEndpoints {
		endpoints = endpoints[:icecastMaxEndpoints]
	}
	if len(endpoints) == 0 {
		return nil
	}

	tasks := make([]race.Task[*metadata.Result], 0, len(endpoints))
	for _, endpoint := range endpoints {
		endpoint := endpoint
		tasks = append(tasks, func(ctx context.Context) (*metadata.Result, error) {
			return i.status(ctx, endpoint, src.Mount), nil
		})
	}

	res, _ := race.FirstNonNull(ctx, tasks, found)
	return res
}

func (i *Icecast) status(ctx context.Context, endpoint, mount string) *metadata.Result {
	doc, err := i.getJSON(ctx, endpoint, icecastTimeout)
	if err != nil {
		i.logger.Debug("status request failed", "endpoint", endpoint, "err", err)
		return nil
	}

	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}

	source := pickSource(extractSources(m), mount)
	if source == nil {
		return nil
	}

	title := metadata.String(source, "title", "song", "track", "track_title")
	artist := metadata.String(source, "artist", "performer", "artist_name")
	if title == "" && artist == "" {
		return nil
	}

	if artist == "" && strings.Contains(title, " - ") {
		a, t, _ := strings.Cut(title, " - ")
		artist, title = strings.TrimSpace(a), strings.TrimSpace(t)
	}

	res := newResult(icecastSourceName, metadata.ParseArtistTitle("", artist, title))
	if res == nil {
		return nil
	}

	res.Artist = artist
	res.Title = title
	res.Genre = metadata.String(source, "genre")
	res.Listeners = number(source, "listeners", "listener_peak")
	res.Endpoint = endpoint

	return res
}

// extractSources returns the mount entries of a status document. A single
// mount is served as an object instead of a one element array.
func extractSources(doc map[string]any) []map[string]any {
	for _, rule := range sourceRules {
		v := rule(doc)
		if v == nil {
			continue
		}

		switch s := v.(type) {
		case map[string]any:
			return []map[string]any{s}
		case []any:
			out := make([]map[string]any, 0, len(s))
			for _, e := range s {
				if m, ok := e.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out
		}
		return nil
	}
	return nil
}

// pickSource returns the entry serving mount, or the first entry.
func pickSource(sources []map[string]any, mount string) map[string]any {
	if len(sources) == 0 {
		return nil
	}

	for _, s := range sources {
		for _, k := range []string{"listenurl", "mount", "path"} {
			if v, ok := s[k].(string); ok && v != "" && strings.Contains(v, mount) {
				return s
			}
		}
	}
	return sources[0]
}
