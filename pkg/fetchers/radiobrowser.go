package fetchers

import (
	"context"
	"log/slog"
	"time"

	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/radiobrowser"
	"github.com/zachfi/nowplaying/pkg/selector"
)

const (
	radioBrowserSourceName = "Radio-Browser API"
	radioBrowserRecency    = time.Hour
)

// Catalog looks up a station by its Radio-Browser UUID.
type Catalog interface {
	ByUUID(ctx context.Context, uuid string) (*radiobrowser.Station, error)
}

// RadioBrowser reports the catalog name of a station when it recently changed
// to something longer than the name the player knows. Some stations put the
// current show into their catalog name.
type RadioBrowser struct {
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

func NewRadioBrowser(catalog Catalog, logger *slog.Logger) *RadioBrowser {
	if logger == nil {
		logger = slog.Default()
	}
	return &RadioBrowser{
		catalog: catalog,
		logger:  logger.With("fetcher", "radiobrowser"),
		now:     time.Now,
	}
}

func (r *RadioBrowser) Fetch(ctx context.Context, station metadata.Station, _ selector.Source) *metadata.Result {
	if station.ID == "" || r.catalog == nil {
		return nil
	}

	entry, err := r.catalog.ByUUID(ctx, station.ID)
	if err != nil {
		r.logger.Debug("catalog lookup failed", "id", station.ID, "err", err)
		return nil
	}

	if entry.LastCheckOK != 1 {
		return nil
	}
	checked := entry.LastCheck()
	if checked.IsZero() || r.now().Sub(checked) >= radioBrowserRecency {
		return nil
	}
	if entry.Name == station.Name || len(entry.Name) <= len(station.Name) {
		return nil
	}

	return newResult(radioBrowserSourceName, entry.Name)
}
