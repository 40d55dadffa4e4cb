package shoutcast

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// maxPlaylistSize caps how much of a response is read while looking for a
// playlist. A URL that turns out to be a raw stream never ends.
const maxPlaylistSize = 64 << 10

// ParsePLS parses a PLS playlist file and returns the first stream URL
func ParsePLS(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "File") {
			continue
		}
		if _, url, ok := strings.Cut(line, "="); ok {
			if url = strings.TrimSpace(url); url != "" {
				return url, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	return "", fmt.Errorf("no stream URL found in PLS playlist")
}

// ParseM3U parses an M3U playlist file and returns the first stream URL
func ParseM3U(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	return "", fmt.Errorf("no stream URL found in M3U playlist")
}

// IsPlaylistURL reports whether url names a .pls or .m3u playlist. HLS
// (.m3u8) playlists are not stream pointers and are excluded.
func IsPlaylistURL(url string) bool {
	u := strings.ToLower(url)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.HasSuffix(u, ".pls") || strings.HasSuffix(u, ".m3u")
}

// ResolvePlaylist fetches url and, if it is a playlist, returns the first
// stream it references. A URL that already serves a stream is returned as-is.
func ResolvePlaylist(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Already a stream
	if resp.Header.Get("icy-metaint") != "" {
		return url, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	content := string(data)
	contentType := resp.Header.Get("Content-Type")
	lower := strings.ToLower(url)

	isPLS := strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.Contains(lower, ".pls") ||
		strings.Contains(content, "[playlist]") ||
		strings.Contains(content, "File1=")

	isM3U := strings.Contains(contentType, "audio/mpegurl") ||
		strings.Contains(contentType, "audio/x-mpegurl") ||
		strings.Contains(lower, ".m3u") ||
		strings.Contains(content, "#EXTM3U") ||
		strings.HasPrefix(strings.TrimSpace(content), "http://") ||
		strings.HasPrefix(strings.TrimSpace(content), "https://")

	switch {
	case isPLS:
		streamURL, err := ParsePLS(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse PLS playlist: %w", err)
		}
		return streamURL, nil
	case isM3U:
		streamURL, err := ParseM3U(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse M3U playlist: %w", err)
		}
		return streamURL, nil
	}

	return "", fmt.Errorf("URL does not appear to be a stream or playlist (Content-Type: %s)", contentType)
}

var (
	dateRangeTitle = regexp.MustCompile(`TITLE="([^"]+)"`)
	streamInfName  = regexp.MustCompile(`NAME="([^"]+)"`)
)

// ParseHLS scans an HLS playlist for a displayable title. A title from an
// #EXT-X-DATERANGE tag wins as soon as it is seen; otherwise the NAME of the
// last #EXT-X-STREAM-INF tag is returned.
func ParseHLS(body io.Reader) (string, error) {
	var name string

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "#EXT-X-DATERANGE:"):
			if m := dateRangeTitle.FindStringSubmatch(line); m != nil {
				return m[1], nil
			}
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			if m := streamInfName.FindStringSubmatch(line); m != nil {
				name = m[1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read HLS playlist: %w", err)
	}

	return name, nil
}
