package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/zachfi/nowplaying/modules/hub"
	"github.com/zachfi/nowplaying/modules/nowplaying"
	"github.com/zachfi/nowplaying/modules/radio"
	"github.com/zachfi/nowplaying/pkg/fetchers"
	"github.com/zachfi/nowplaying/pkg/proxy"
	"github.com/zachfi/nowplaying/pkg/radiobrowser"
)

const (
	Server string = "server"

	Hub   string = "hub"
	Radio string = "radio"

	All string = "all"
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(kitlog.NewLogfmtLogger(os.Stderr))
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)

	mm.RegisterModule(Hub, a.initHub)
	mm.RegisterModule(Radio, a.initRadio)

	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		// Server:       nil,
		Hub:   {Server},
		Radio: {Server, Hub},

		All: {Radio},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

func (a *App) initHub() (services.Service, error) {
	h, err := hub.New(a.cfg.Hub, a.logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Hub)
	}

	a.hub = h
	a.Server.HTTP.Handle("/ws", h)

	return h, nil
}

func (a *App) initRadio() (services.Service, error) {
	a.catalog = radiobrowser.New(a.cfg.RadioBrowser)
	a.proxy = proxy.New(a.cfg.Proxy, &a.logger)

	// Per-source timeouts are applied by the fetchers.
	client := &http.Client{}
	runner := fetchers.NewRunner(client, a.catalog, a.logger.With("module", "fetchers"))

	var p nowplaying.Proxy
	if a.proxy.Enabled() {
		p = a.proxy
	}

	a.playback = radio.NewPlayback()
	a.nowPlaying = nowplaying.New(a.cfg.NowPlaying, a.logger, p, runner, a.hub, a.playback)

	r, err := radio.New(a.cfg.Radio, a.logger, a.hub, a.nowPlaying, a.playback)
	if err != nil {
		return nil, errors.Wrap(err, "unable to init "+Radio)
	}
	a.radio = r

	a.registerAPI(a.Server.HTTP)

	return r, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = kitlog.NewLogfmtLogger(os.Stderr)

	server, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}

	servicesToWaitFor := func() []services.Service {
		svs := []services.Service(nil)
		for m, s := range a.serviceMap {
			// Server should not wait for itself.
			if m != Server {
				svs = append(svs, s)
			}
		}

		return svs
	}

	a.Server = server

	serverDone := make(chan error, 1)

	runFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- server.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}

			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		// wait until all modules are done, and then shutdown server.
		for _, s := range servicesToWaitFor() {
			_ = s.AwaitTerminated(context.Background())
		}

		// shutdown HTTP and gRPC servers (this also unblocks Run)
		server.Shutdown()

		// if not closed yet, wait until server stops.
		<-serverDone
		slog.Info("server stopped")
		return nil
	}

	return services.NewBasicService(nil, runFn, stoppingFn), nil
}
