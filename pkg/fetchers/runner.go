package fetchers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/race"
	"github.com/zachfi/nowplaying/pkg/selector"
)

// Runner executes a plan locally: a single source plan calls its fetcher
// directly, a multi source plan races every source.
type Runner struct {
	fetchers map[selector.SourceKind]Fetcher
	logger   *slog.Logger
}

// NewRunner wires the default fetcher for every source kind. catalog may be
// nil, which disables the Radio-Browser source.
func NewRunner(client *http.Client, catalog Catalog, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		fetchers: make(map[selector.SourceKind]Fetcher),
		logger:   logger,
	}

	r.Register(selector.SourceNTS, NewNTS(client, logger))
	r.Register(selector.SourceAirtime, NewAirtime(client, logger))
	r.Register(selector.SourceIcecast, NewIcecast(client, logger))
	r.Register(selector.SourceHLS, NewHLS(client, logger))
	r.Register(selector.SourceICY, NewICY(client, logger))
	r.Register(selector.SourceGeneric, NewGeneric(client, logger))
	if catalog != nil {
		r.Register(selector.SourceRadioBrowser, NewRadioBrowser(catalog, logger))
	}

	return r
}

// Register replaces the fetcher used for kind.
func (r *Runner) Register(kind selector.SourceKind, f Fetcher) {
	r.fetchers[kind] = f
}

// Fetch runs plan for station. The only error is the context's, returned
// when it was cancelled before anything was found.
func (r *Runner) Fetch(ctx context.Context, plan selector.Plan, station metadata.Station) (*metadata.Result, error) {
	var res *metadata.Result

	switch len(plan.Sources) {
	case 0:
	case 1:
		res = r.run(ctx, station, plan.Sources[0])
	default:
		tasks := make([]race.Task[*metadata.Result], 0, len(plan.Sources))
		for _, src := range plan.Sources {
			src := src
			tasks = append(tasks, func(ctx context.Context) (*metadata.Result, error) {
				return r.run(ctx, station, src), nil
			})
		}
		res, _ = race.FirstNonNull(ctx, tasks, found)
	}

	if res == nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, station metadata.Station, src selector.Source) *metadata.Result {
	f, ok := r.fetchers[src.Kind]
	if !ok {
		r.logger.Debug("no fetcher registered", "kind", src.Kind)
		return nil
	}

	res := f.Fetch(ctx, station, src)

	outcome := "miss"
	if res != nil {
		outcome = "hit"
	}
	metricFetcherResults.WithLabelValues(string(src.Kind), outcome).Inc()

	return res
}

func found(r *metadata.Result) bool { return r != nil }
