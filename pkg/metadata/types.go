package metadata

import (
	"encoding/json"
	"time"
)

// Station describes a radio station as supplied by the catalog or the UI.
type Station struct {
	ID          string `json:"stationuuid,omitempty" yaml:"stationuuid,omitempty"`
	Name        string `json:"name" yaml:"name"`
	URL         string `json:"url" yaml:"url"`
	Homepage    string `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	Favicon     string `json:"favicon,omitempty" yaml:"favicon,omitempty"`
	CountryCode string `json:"countrycode,omitempty" yaml:"countrycode,omitempty"`
}

// UnmarshalJSON accepts the aliases the extension UI has used over time:
// "id" for "stationuuid" and "country" for "countrycode".
func (s *Station) UnmarshalJSON(b []byte) error {
	type plain Station
	var aux struct {
		plain
		AltID      string `json:"id"`
		AltCountry string `json:"country"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	*s = Station(aux.plain)
	if s.ID == "" {
		s.ID = aux.AltID
	}
	if s.CountryCode == "" {
		s.CountryCode = aux.AltCountry
	}
	return nil
}

// Result is a resolved now-playing value. A nil *Result means there is nothing
// to display.
type Result struct {
	Source     string    `json:"source"`
	NowPlaying string    `json:"nowPlaying"`
	Artist     string    `json:"artist,omitempty"`
	Title      string    `json:"title,omitempty"`
	Genre      string    `json:"genre,omitempty"`
	Listeners  int       `json:"listeners,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	Artwork    string    `json:"artwork,omitempty"`
	Endpoint   string    `json:"endpoint,omitempty"`
	Raw        string    `json:"raw,omitempty"`
	CacheTTL   int       `json:"cacheTtl,omitempty"`
	FromProxy  bool      `json:"fromProxy,omitempty"`
	Loading    bool      `json:"isLoading,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// LoadingText is displayed while the remote proxy is starting up.
const LoadingText = "Loading..."

// NewLoading returns the transient placeholder shown while a proxy request is
// outstanding or the proxy is cold starting.
func NewLoading(source string) *Result {
	return &Result{
		Source:     source,
		NowPlaying: LoadingText,
		Loading:    true,
		Timestamp:  time.Now(),
	}
}

// IsLoading reports whether r is a loading placeholder.
func (r *Result) IsLoading() bool {
	return r != nil && (r.Loading || r.NowPlaying == LoadingText)
}

// Key returns the serialized form used to decide whether a result changed.
// The retrieval timestamp is excluded so an identical value fetched on a later
// tick compares equal.
func (r *Result) Key() string {
	if r == nil {
		return "null"
	}
	c := *r
	c.Timestamp = time.Time{}
	b, err := json.Marshal(c)
	if err != nil {
		return c.Source + "|" + c.NowPlaying
	}
	return string(b)
}
