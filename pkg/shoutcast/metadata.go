package shoutcast

import (
	"bytes"
	"html"
	"strings"

	"github.com/zachfi/nowplaying/pkg/metadata"
)

// Metadata is one decoded ICY metadata block.
type Metadata struct {
	StreamTitle  string
	StreamArtist string
	StreamURL    string
}

// NewMetadata decodes a raw metadata block. Trailing NUL padding is removed
// and Latin-1 blocks are converted to UTF-8.
func NewMetadata(b []byte) *Metadata {
	text := metadata.DecodeText(bytes.TrimRight(b, "\x00"))

	return &Metadata{
		StreamTitle:  field(text, "StreamTitle"),
		StreamArtist: field(text, "StreamArtist"),
		StreamURL:    field(text, "StreamUrl"),
	}
}

// Equals compares two metadata blocks, treating nil as empty.
func (m *Metadata) Equals(other *Metadata) bool {
	if m == nil || other == nil {
		return m == other
	}
	return *m == *other
}

// String renders the block as "artist - title", or whichever of the two is
// present.
func (m *Metadata) String() string {
	if m == nil {
		return ""
	}

	artist := strings.TrimSpace(m.StreamArtist)
	title := strings.TrimSpace(m.StreamTitle)
	switch {
	case artist != "" && title != "" && artist != title:
		return artist + " - " + title
	case title != "":
		return title
	default:
		return artist
	}
}

// field extracts key='value' from an ICY metadata string. Values are often
// quoted with ' and may themselves contain quotes and semicolons, so a closing
// quote only counts when it ends the block or is followed by ";key=".
func field(meta, key string) string {
	idx := strings.Index(meta, key+"=")
	if idx < 0 {
		return ""
	}

	v := strings.TrimSpace(meta[idx+len(key)+1:])
	if v == "" {
		return ""
	}

	var quote byte
	if v[0] == '\'' || v[0] == '"' {
		quote = v[0]
		v = v[1:]
	}

	if quote == 0 {
		if end := strings.IndexByte(v, ';'); end >= 0 {
			v = v[:end]
		}
		return html.UnescapeString(strings.TrimSpace(v))
	}

	end := -1
	for i := 0; i < len(v); i++ {
		if v[i] != quote {
			continue
		}
		j := i + 1
		for j < len(v) && (v[j] == ' ' || v[j] == '\t') {
			j++
		}
		if j >= len(v) {
			end = i
			break
		}
		if v[j] == ';' && (j+1 == len(v) || strings.Contains(v[j+1:], "=")) {
			end = i
			break
		}
	}
	if end < 0 {
		end = strings.LastIndexByte(v, quote)
	}
	if end >= 0 {
		v = v[:end]
	}

	return html.UnescapeString(strings.TrimSpace(v))
}
