// Package selector decides which metadata sources are worth asking about a
// station. It performs no I/O.
package selector

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

var (
	ErrMissingURL = errors.New("station has no stream url")
	ErrInvalidURL = errors.New("station stream url is invalid")
)

// CashmereEndpoint is the live-info endpoint for Cashmere Radio, whose
// streams are not served from an *.out.airtime.pro host.
const CashmereEndpoint = "https://cashmereradio.airtime.pro/api/live-info-v2"

// Kind identifies the overall strategy of a plan.
type Kind string

const (
	KindNTS         Kind = "nts"
	KindCashmere    Kind = "cashmere"
	KindAirtimePro  Kind = "airtimepro"
	KindMultiSource Kind = "multi"
)

// SourceKind names a single metadata fetcher.
type SourceKind string

const (
	SourceNTS          SourceKind = "nts"
	SourceAirtime      SourceKind = "airtime"
	SourceIcecast      SourceKind = "icecast"
	SourceRadioBrowser SourceKind = "radiobrowser"
	SourceHLS          SourceKind = "hls"
	SourceICY          SourceKind = "icy"
	SourceGeneric      SourceKind = "generic"
)

// Source is one fetcher invocation together with the inputs derived for it.
type Source struct {
	Kind SourceKind `json:"kind"`

	// URL is the station stream URL.
	URL string `json:"url"`

	// Endpoints are the Icecast status documents to try.
	Endpoints []string `json:"endpoints,omitempty"`
	// Mount is the stream path used to pick the right Icecast source.
	Mount string `json:"mount,omitempty"`

	// Endpoint is the Airtime Pro live-info URL.
	Endpoint string `json:"endpoint,omitempty"`
	// Label is the Result.Source reported for Airtime Pro variants.
	Label string `json:"label,omitempty"`
}

// Plan is the ordered list of sources for one station.
type Plan struct {
	Kind    Kind     `json:"kind"`
	Sources []Source `json:"sources"`
}

var airtimeHost = regexp.MustCompile(`(?i)^([^.]+)\.out\.airtime\.pro$`)

// SelectPlan builds the metadata plan for station. The first matching rule
// wins: NTS, Cashmere, any other Airtime Pro station, then a multi source race
// over the generic protocols.
func SelectPlan(station metadata.Station) (Plan, error) {
	raw := strings.TrimSpace(station.URL)
	if raw == "" {
		return Plan{}, ErrMissingURL
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return Plan{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	name := strings.ToLower(station.Name)
	lowerURL := strings.ToLower(raw)
	homepage := strings.ToLower(station.Homepage)

	if IsNTS(station) {
		return Plan{Kind: KindNTS, Sources: []Source{{Kind: SourceNTS, URL: raw}}}, nil
	}

	if strings.Contains(name, "cashmere") ||
		strings.Contains(lowerURL, "cashmereradio") ||
		strings.Contains(homepage, "cashmereradio") {
		return Plan{Kind: KindCashmere, Sources: []Source{{
			Kind:     SourceAirtime,
			URL:      raw,
			Endpoint: CashmereEndpoint,
			Label:    "Cashmere Radio API",
		}}}, nil
	}

	if endpoint := DeriveAirtimeProEndpoint(raw); endpoint != "" {
		return Plan{Kind: KindAirtimePro, Sources: []Source{{
			Kind:     SourceAirtime,
			URL:      raw,
			Endpoint: endpoint,
			Label:    "Airtime Pro API",
		}}}, nil
	}

	base := u.Scheme + "://" + u.Host
	icecast := Source{
		Kind: SourceIcecast,
		URL:  raw,
		Endpoints: []string{
			base + "/status-json.xsl",
			base + "/status.json",
			base + "/stats.json",
			base + "/status?json=1",
		},
		Mount: u.Path,
	}

	sources := []Source{icecast}
	if station.ID != "" {
		sources = append(sources, Source{Kind: SourceRadioBrowser, URL: raw})
	}
	sources = append(sources,
		Source{Kind: SourceHLS, URL: raw},
		Source{Kind: SourceICY, URL: raw},
		Source{Kind: SourceGeneric, URL: raw},
	)

	if IsHLS(raw) {
		sources = hlsFirst(sources)
	}

	return Plan{Kind: KindMultiSource, Sources: sources}, nil
}

// IsNTS reports whether station belongs to NTS Radio.
func IsNTS(station metadata.Station) bool {
	u := strings.ToLower(station.URL)
	return strings.Contains(strings.ToLower(station.Name), "nts") ||
		strings.Contains(u, "nts.live") ||
		strings.Contains(u, "ntslive.net")
}

// IsHLS reports whether the stream URL points at an HLS playlist.
func IsHLS(streamURL string) bool {
	return strings.Contains(strings.ToLower(streamURL), ".m3u8")
}

// DeriveAirtimeProEndpoint maps a <key>.out.airtime.pro stream URL to its
// live-info-v2 API. It returns "" for any other URL.
func DeriveAirtimeProEndpoint(streamURL string) string {
	if streamURL == "" {
		return ""
	}
	u, err := url.Parse(streamURL)
	if err != nil {
		return ""
	}

	m := airtimeHost.FindStringSubmatch(strings.ToLower(u.Hostname()))
	if m == nil {
		return ""
	}
	return "https://" + m[1] + ".airtime.pro/api/live-info-v2"
}

func hlsFirst(sources []Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if s.Kind == SourceHLS {
			out = append(out, s)
		}
	}
	for _, s := range sources {
		if s.Kind != SourceHLS {
			out = append(out, s)
		}
	}
	return out
}
