package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m1k1o/go-hlsbridge/internal/config"
	"github.com/m1k1o/go-hlsbridge/internal/serve"
)

func init() {
	service := serve.NewCommand(version)

	command := &cobra.Command{
		Use:   "serve",
		Short: "serve hls bridge server",
		Long:  `serve hls bridge server`,
		Run:   service.Run,
	}

	configs := []config.Config{
		service.Config,
	}

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		service.Preflight()
	})

	// apply the config file to the running server
	configReload.Add(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		service.ConfigReload()
	})

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run serve command")
		}
	}

	rootCmd.AddCommand(command)
}
