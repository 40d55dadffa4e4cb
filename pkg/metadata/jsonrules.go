package metadata

import "strings"

// fields is the raw material a JSON extraction rule produces.
type fields struct {
	text, artist, title string
}

// rule extracts now-playing fields from a decoded JSON object. It reports
// false when the document does not have the shape the rule looks for.
type rule func(doc map[string]any) (fields, bool)

// stationRules are tried in order against generic station APIs; the first
// rule whose shape matches wins.
var stationRules = []rule{
	nowPlayingRule,
	currentRule,
	flatRule,
}

// ParseStationJSON extracts a display string from the loosely structured
// now-playing documents served by station websites.
func ParseStationJSON(doc any) string {
	m, ok := doc.(map[string]any)
	if !ok {
		return ""
	}

	for _, r := range stationRules {
		if f, ok := r(m); ok {
			return ParseArtistTitle(f.text, f.artist, f.title)
		}
	}
	return ""
}

func nowPlayingRule(doc map[string]any) (fields, bool) {
	np := first(doc, "nowplaying", "now_playing")
	if np == nil {
		return fields{}, false
	}

	switch v := np.(type) {
	case string:
		return fields{text: v}, true
	case map[string]any:
		return fields{
			artist: String(v, "artist", "performer"),
			title:  String(v, "song", "track", "title"),
		}, true
	}
	return fields{}, true
}

func currentRule(doc map[string]any) (fields, bool) {
	cur := first(doc, "current")
	if cur == nil {
		return fields{}, false
	}

	switch v := cur.(type) {
	case string:
		return fields{text: v}, true
	case map[string]any:
		return fields{title: String(v, "title", "track")}, true
	}
	return fields{}, true
}

func flatRule(doc map[string]any) (fields, bool) {
	title := String(doc, "song", "track", "title")
	if title == "" {
		return fields{}, false
	}
	return fields{artist: String(doc, "artist"), title: title}, true
}

// first returns the first present, truthy value among keys.
func first(doc map[string]any, keys ...string) any {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return v
	}
	return nil
}

// String returns the first non-empty string value found under keys.
func String(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// Object returns the nested object at the dotted path, or nil.
func Object(doc map[string]any, path ...string) map[string]any {
	cur := doc
	for _, p := range path {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}
