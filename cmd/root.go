package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Default configuration path
const defCfgPath = "/etc/hlsbridge/"

// ENV prefix for configuration
const envPrefix = "HLSBRIDGE"

// set at build time with -ldflags "-X github.com/m1k1o/go-hlsbridge/cmd.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "hlsbridge",
	Short:   "HLS bridge server CLI.",
	Long:    `Serves live and recorded MPEG-TS streams as HLS and MPEG-DASH over plain HTTP.`,
	Version: version,
}

// configReload applies the configuration, on start and whenever the config
// file changes. Commands add their hooks.
var configReload = newReloader(250 * time.Millisecond)

func init() {
	var cfgFile string
	var logConfig logConfig

	cobra.OnInitialize(func() {
		file := initConfiguration(cfgFile)

		logConfig.Set()
		initLogging(logConfig)

		if file != "" {
			log.Info().Str("config", file).Strs("streams", streamNames()).Msg("preflight complete with config file")
		} else {
			log.Warn().Strs("streams", streamNames()).Msg("preflight complete without config file")
		}

		configReload.Run()
	})

	// config file
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	// log configuration
	_ = logConfig.Init(rootCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// initConfiguration reads the config file and environment and watches the
// file, a change reloads the streams of the running server. Returns the
// file in use.
func initConfiguration(cfgFile string) string {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")

		if runtime.GOOS == "linux" {
			viper.AddConfigPath(defCfgPath)
		}
		viper.AddConfigPath(".")
	}

	// HLSBRIDGE_SEGMENT_DURATION, HLSBRIDGE_LIVE_WINDOW, ...
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil && cfgFile != "" {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	file := viper.ConfigFileUsed()
	if file == "" {
		return ""
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().
			Str("config", e.Name).
			Str("op", e.Op.String()).
			Strs("streams", streamNames()).
			Msg("config file changed, reloading streams")

		configReload.Trigger()
	})
	viper.WatchConfig()

	return file
}

// streamNames lists the streams configured in the config file.
func streamNames() []string {
	streams := viper.GetStringMapString("streams")

	names := make([]string, 0, len(streams))
	for name := range streams {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
