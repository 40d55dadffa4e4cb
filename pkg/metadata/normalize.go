package metadata

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Replacements are applied in order, so "&amp;lt;" decodes all the way to "<"
// the same way the stations' own web players render it.
var entityReplacements = [][2]string{
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", `"`},
	{"&#039;", "'"},
	{"&#x27;", "'"},
}

var (
	paddedAposPattern = regexp.MustCompile(`&#0*39;`)
	leadingDash       = regexp.MustCompile(`^\s*[-–—]\s+`)
)

// genericWords are placeholders stations publish instead of real metadata.
var genericWords = []string{
	"unknown", "untitled", "live", "on-air", "stream", "radio",
	"broadcasting", "music", "live stream", "internet radio",
	"online radio", "web radio", "digital radio", "airtime!",
}

// genericSubstringLimit is the length below which a denylisted word anywhere
// in the text marks it as generic. Longer titles only fail on an exact match.
const genericSubstringLimit = 20

// Normalize decodes common HTML entities, strips one leading dash separator
// and trims the result. It returns "" for empty input.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	for _, r := range entityReplacements {
		s = strings.ReplaceAll(s, r[0], r[1])
	}
	s = paddedAposPattern.ReplaceAllString(s, "'")

	if loc := leadingDash.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}

	return strings.TrimSpace(s)
}

// IsGenericOrInvalid reports whether text is too short or a known placeholder
// such as "Live" or "Internet Radio".
func IsGenericOrInvalid(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	n := utf8.RuneCountInString(t)
	if n < 3 {
		return true
	}

	for _, w := range genericWords {
		if t == w {
			return true
		}
		if n < genericSubstringLimit && strings.Contains(t, w) {
			return true
		}
	}

	return false
}

// Valid is the negation of IsGenericOrInvalid applied to a normalized string.
func Valid(text string) bool {
	text = Normalize(text)
	return text != "" && !IsGenericOrInvalid(text)
}

// ParseArtistTitle builds a display string from a combined text and optional
// separate artist and title fields. It returns "" when nothing usable is
// present.
func ParseArtistTitle(text, artist, title string) string {
	text = strings.TrimSpace(text)
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)

	if text == "" && artist == "" && title == "" {
		return ""
	}

	if text != "" && artist == "" && title == "" && strings.Contains(text, " - ") {
		artist, title, _ = strings.Cut(text, " - ")
		artist = strings.TrimSpace(artist)
		title = strings.TrimSpace(title)
	} else if text != "" && (artist == "" || title == "") {
		title = text
	}

	var out string
	switch {
	case artist != "" && title != "" && artist != title:
		out = artist + " - " + title
	case title != "":
		out = title
	case artist != "":
		out = artist
	default:
		out = text
	}

	return Normalize(out)
}

// DecodeText returns b as a string, decoding it as ISO-8859-1 when it is not
// valid UTF-8. Many ICY servers still emit Latin-1 titles.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
