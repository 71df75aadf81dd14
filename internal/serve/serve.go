package serve

import (
	"context"
	"os"
	"os/signal"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m1k1o/go-hlsbridge/internal/config"
	"github.com/m1k1o/go-hlsbridge/internal/metrics"
	"github.com/m1k1o/go-hlsbridge/internal/server"
	"github.com/m1k1o/go-hlsbridge/modules"
	"github.com/m1k1o/go-hlsbridge/modules/bridge"
	"github.com/m1k1o/go-hlsbridge/modules/player"
	"github.com/m1k1o/go-hlsbridge/pkg/media"
	"github.com/m1k1o/go-hlsbridge/pkg/media/file"
	"github.com/m1k1o/go-hlsbridge/pkg/media/live"
)

func NewCommand(version string) *Main {
	return &Main{
		Config:  &config.Server{},
		version: version,
	}
}

type Main struct {
	Config *config.Server

	version  string
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	registry *media.MemoryRegistry
	server   *server.ServerManagerCtx
	bridge   *bridge.ModuleCtx
	player   *player.ModuleCtx
	modules  []modules.Module

	// stream name to its source, as registered
	sources   map[string]string
	sourcesMu sync.Mutex
}

func (main *Main) Preflight() {
	main.logger = log.With().Str("service", "main").Logger()
}

func (main *Main) serverName() string {
	return "go-hlsbridge/" + main.version
}

func (main *Main) bridgeConfig() *bridge.Config {
	return &bridge.Config{
		Registry:        main.registry,
		Metrics:         main.metrics,
		StaticDir:       main.Config.Static,
		SegmentDuration: main.Config.SegmentDuration,
		ServerName:      main.serverName(),
	}
}

func (main *Main) start() {
	config := main.Config

	if config.Metrics {
		main.metrics = metrics.New()
	}

	main.registry = media.NewRegistry()
	main.sources = map[string]string{}
	main.syncStreams()

	main.server = server.New(&server.Config{
		Bind:       config.Bind,
		SSLCert:    config.Cert,
		SSLKey:     config.Key,
		Proxy:      config.Proxy,
		PProf:      config.PProf,
		MaxConns:   config.MaxConns,
		ServerName: main.serverName(),
		Metrics:    main.metrics,
	})

	main.player = player.New("/player/", &player.Config{
		Streams: main.registry,
	})
	main.mount("/player/", "player", main.player)

	main.bridge = bridge.New("/", main.bridgeConfig())
	main.mount("/", "bridge", main.bridge)

	main.server.Start()
	main.logger.Info().
		Str("basedir", config.BaseDir).
		Str("static", config.Static).
		Strs("streams", main.registry.Names()).
		Msg("serving streams")
}

func (main *Main) mount(pathPrefix, name string, module modules.Module) {
	main.server.Handle(pathPrefix, module)
	main.modules = append(main.modules, module)
	main.logger.Info().Str("path", pathPrefix).Msgf("%s registered", name)
}

// ConfigReload applies a reloaded configuration to a running server.
func (main *Main) ConfigReload() {
	if main.registry == nil {
		return
	}

	main.syncStreams()
	main.bridge.ConfigReload(main.bridgeConfig())
	main.logger.Info().Strs("streams", main.registry.Names()).Msg("configuration applied")
}

// streams merges configured streams with the channels of an enigma2
// receiver, configured streams win.
func (main *Main) streams() map[string]string {
	streams := map[string]string{}

	if main.Config.Enigma2 != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		channels, err := main.Config.Enigma2.Streams(ctx)
		if err != nil {
			main.logger.Err(err).Msg("unable to load enigma2 channels")
		}

		for name, source := range channels {
			streams[name] = source
		}
	}

	for name, source := range main.Config.Streams {
		streams[name] = source
	}

	return streams
}

// syncStreams registers new and changed streams and removes dropped ones.
func (main *Main) syncStreams() {
	main.sourcesMu.Lock()
	defer main.sourcesMu.Unlock()

	streams := main.streams()

	for name := range main.sources {
		if _, ok := streams[name]; !ok {
			main.registry.Remove(name)
			delete(main.sources, name)
		}
	}

	for name, source := range streams {
		if current, ok := main.sources[name]; ok && current == source {
			continue
		}

		main.registry.Add(main.newSession(name, source))
		main.sources[name] = source
	}
}

func (main *Main) newSession(name, source string) media.Session {
	config := main.Config

	if filePath, ok := fileSource(source); ok {
		if !path.IsAbs(filePath) {
			filePath = config.AbsPath(filePath)
		}

		main.logger.Debug().Str("stream", name).Str("path", filePath).Msg("file stream")
		return file.New(&file.Config{
			Name:            name,
			Path:            filePath,
			SegmentDuration: float64(config.SegmentDuration),
		})
	}

	profilePath := config.ProfilePath()
	if _, err := os.Stat(profilePath); err != nil {
		main.logger.Warn().Err(err).Str("stream", name).Msg("live profile not found")
	}

	session := live.New(live.ProfileCmd(profilePath, source), &live.Config{
		Name:            name,
		SegmentDuration: float64(config.SegmentDuration),
		Window:          config.Live.Window,
		IdleTimeout:     config.Live.IdleTimeout,
	})

	logger := main.logger.With().Str("stream", name).Logger()
	session.OnStart(func() {
		logger.Info().Msg("live stream started")
	})
	session.OnCmdLog(func(message string) {
		logger.Debug().Str("source", "ffmpeg").Msg(message)
	})
	session.OnStop(func(err error) {
		logger.Info().AnErr("reason", err).Msg("live stream stopped")
	})

	return session
}

// fileSource reports whether source is an MPEG-TS file rather than a live url.
func fileSource(source string) (string, bool) {
	if filePath, ok := strings.CutPrefix(source, "file://"); ok {
		return filePath, true
	}

	if strings.Contains(source, "://") {
		return "", false
	}

	return source, strings.EqualFold(path.Ext(source), ".ts")
}

func (main *Main) shutdown() {
	err := main.server.Shutdown()
	main.logger.Err(err).Msg("http manager shutdown")

	for _, module := range main.modules {
		module.Shutdown()
	}
	main.logger.Info().Int("count", len(main.modules)).Msg("modules shutdown")

	main.registry.Close()
	main.logger.Info().Msg("streams closed")
}

func (main *Main) Run(cmd *cobra.Command, args []string) {
	main.logger.Info().Msg("starting main server")
	main.start()
	main.logger.Info().Msg("main ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit

	main.logger.Warn().Msgf("received %s, attempting graceful shutdown", sig)
	main.shutdown()
	main.logger.Info().Msg("shutdown complete")
}
