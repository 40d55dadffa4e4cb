// Package metadata holds the station and now-playing types shared by the
// fetchers, the proxy client and the orchestrator, plus the text normalization
// applied to every now-playing string before it is displayed.
package metadata
