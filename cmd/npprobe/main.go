// Command npprobe resolves the now playing value of a single stream from the
// command line, using the same plan and fetchers as the service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zachfi/nowplaying/pkg/fetchers"
	"github.com/zachfi/nowplaying/pkg/metadata"
	"github.com/zachfi/nowplaying/pkg/proxy"
	"github.com/zachfi/nowplaying/pkg/radiobrowser"
	"github.com/zachfi/nowplaying/pkg/selector"
)

var (
	proxyURL string
	timeout  time.Duration
	debug    bool
	noColor  bool

	station metadata.Station
	limit   int
)

var rootCmd = &cobra.Command{
	Use:   "npprobe",
	Short: "Inspect how a radio stream's now playing value is resolved.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupColor(noColor)

		level := slog.LevelWarn
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [stream_url]",
	Short: "Resolve the now playing value of a stream.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		station.URL = args[0]
		res, path, err := resolve(ctx, station)
		if err != nil {
			colorError.Printf("resolve failed: %v\n", err)
			return err
		}

		colorLabel.Print("path: ")
		fmt.Println(path)
		printResult(res)
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan [stream_url]",
	Short: "Print the sources that would be tried for a stream.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		station.URL = args[0]
		plan, err := selector.SelectPlan(station)
		if err != nil {
			colorError.Printf("no plan: %v\n", err)
			return err
		}

		colorLabel.Print("kind: ")
		fmt.Println(plan.Kind)
		for i, src := range plan.Sources {
			colorInfo.Printf("%d. %s", i+1, src.Kind)
			switch {
			case src.Endpoint != "":
				fmt.Printf("  %s", src.Endpoint)
			case len(src.Endpoints) > 0:
				fmt.Printf("  %s", strings.Join(src.Endpoints, ", "))
			}
			fmt.Println()
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the remote metadata proxy.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newProxy()
		if !c.Enabled() {
			colorWarning.Println("proxy disabled, set --proxy-url")
			return nil
		}

		if !c.Health(cmd.Context()) {
			colorError.Println("unhealthy")
			return fmt.Errorf("proxy %s is unhealthy", proxyURL)
		}

		colorSuccess.Println("ok")
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Search the Radio-Browser catalog.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		stations, err := radiobrowser.New(radiobrowser.DefaultConfig()).Search(ctx, args[0], limit)
		if err != nil {
			colorError.Printf("search failed: %v\n", err)
			return err
		}

		if len(stations) == 0 {
			colorWarning.Println("no stations found")
			return nil
		}

		for _, s := range stations {
			colorInfo.Print(s.Name)
			fmt.Printf("  [%s %s %dkbps]\n", s.CountryCode, s.Codec, s.Bitrate)
			fmt.Printf("  id: %s\n  url: %s\n", s.StationUUID, s.Station().URL)
		}
		return nil
	},
}

func newProxy() *proxy.Client {
	return proxy.New(proxy.Config{BaseURL: proxyURL}, slog.Default())
}

// resolve follows the same routing as the service: the proxy first unless
// the stream is HLS, then the local fetchers.
func resolve(ctx context.Context, station metadata.Station) (*metadata.Result, string, error) {
	plan, err := selector.SelectPlan(station)
	if err != nil {
		return nil, "", err
	}

	p := newProxy()
	if p.ShouldUseProxy(station.URL) {
		out, err := p.FetchNowPlayingWithFallback(ctx, proxy.RequestFor(station))
		if err != nil {
			return nil, "proxy", err
		}
		if out.Kind == proxy.Result || out.Kind == proxy.Loading {
			return out.Result, "proxy", nil
		}
		slog.Debug("proxy declined", "kind", out.Kind, "reason", out.Reason)
	}

	runner := fetchers.NewRunner(&http.Client{}, radiobrowser.New(radiobrowser.DefaultConfig()), slog.Default())
	res, err := runner.Fetch(ctx, plan, station)
	return res, "local", err
}

func printResult(res *metadata.Result) {
	if res == nil {
		colorWarning.Println("nothing playing")
		return
	}

	colorSuccess.Println(res.NowPlaying)
	fields := []struct{ label, value string }{
		{"source", res.Source},
		{"artist", res.Artist},
		{"title", res.Title},
		{"genre", res.Genre},
		{"channel", res.Channel},
		{"endpoint", res.Endpoint},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		colorLabel.Printf("  %s: ", f.label)
		fmt.Println(f.value)
	}
	if res.Listeners > 0 {
		colorLabel.Print("  listeners: ")
		fmt.Println(res.Listeners)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy-url", "", "Base URL of the remote metadata proxy.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout.")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging.")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output.")

	for _, cmd := range []*cobra.Command{resolveCmd, planCmd} {
		cmd.Flags().StringVar(&station.Name, "name", "", "Station name.")
		cmd.Flags().StringVar(&station.Homepage, "homepage", "", "Station homepage.")
		cmd.Flags().StringVar(&station.ID, "id", "", "Radio-Browser station UUID.")
	}
	resolveCmd.Flags().StringVar(&station.CountryCode, "country", "", "Station country code.")
	searchCmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results.")

	rootCmd.AddCommand(resolveCmd, planCmd, healthCmd, searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
