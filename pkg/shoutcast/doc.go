// Package shoutcast reads now-playing information straight from ICY/Shoutcast
// streams and the playlists that point at them.
//
// It started as a fork of github.com/romantomjak/shoutcast and keeps its
// header handling, trimmed down for metadata probing:
//   - Playlist resolution: .pls and .m3u URLs are resolved to the actual stream URL
//   - Metadata probing: the audio payload up to icy-metaint is discarded and only the next metadata block is decoded
//   - HLS playlists: #EXT-X-DATERANGE titles and #EXT-X-STREAM-INF names are scanned from the playlist text
package shoutcast
