package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Default base directory for assets and profiles
const defBaseDir = "/etc/hlsbridge"

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

type Live struct {
	Window        time.Duration `mapstructure:"window"`
	IdleTimeout   time.Duration `mapstructure:"idle-timeout"`
	FFmpegProfile string        `mapstructure:"ffmpeg-profile"`
}

type Server struct {
	PProf   bool
	Metrics bool

	Cert   string
	Key    string
	Bind   string
	Static string
	Proxy  bool

	MaxConns int

	BaseDir  string
	Profiles string

	SegmentDuration uint32
	Streams         map[string]string
	Live            Live
	Enigma2         *Enigma2
}

func (Server) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("pprof", false, "enable pprof endpoint available at /debug/pprof")
	if err := viper.BindPFlag("pprof", cmd.PersistentFlags().Lookup("pprof")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("metrics", true, "enable prometheus metrics available at /metrics")
	if err := viper.BindPFlag("metrics", cmd.PersistentFlags().Lookup("metrics")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("bind", "127.0.0.1:8080", "address/port/socket to serve streams")
	if err := viper.BindPFlag("bind", cmd.PersistentFlags().Lookup("bind")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("cert", "", "path to the SSL cert")
	if err := viper.BindPFlag("cert", cmd.PersistentFlags().Lookup("cert")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key", "", "path to the SSL key")
	if err := viper.BindPFlag("key", cmd.PersistentFlags().Lookup("key")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("static", "", "path to player pages and scripts served when no stream matches")
	if err := viper.BindPFlag("static", cmd.PersistentFlags().Lookup("static")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("proxy", false, "allow reverse proxies")
	if err := viper.BindPFlag("proxy", cmd.PersistentFlags().Lookup("proxy")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("max-conns", 0, "maximum number of client connections, 0 for unlimited")
	if err := viper.BindPFlag("max-conns", cmd.PersistentFlags().Lookup("max-conns")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("basedir", "", "base directory for assets and profiles")
	if err := viper.BindPFlag("basedir", cmd.PersistentFlags().Lookup("basedir")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("profiles", "", "directory with ffmpeg profiles feeding live streams")
	if err := viper.BindPFlag("profiles", cmd.PersistentFlags().Lookup("profiles")); err != nil {
		return err
	}

	cmd.PersistentFlags().Uint32("segment-duration", 10, "length of one playlist segment in seconds")
	if err := viper.BindPFlag("segment-duration", cmd.PersistentFlags().Lookup("segment-duration")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("live.window", 60*time.Second, "how much of a live stream is kept for seeking")
	if err := viper.BindPFlag("live.window", cmd.PersistentFlags().Lookup("live.window")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("live.idle-timeout", 60*time.Second, "stop a live stream nobody requested for this long")
	if err := viper.BindPFlag("live.idle-timeout", cmd.PersistentFlags().Lookup("live.idle-timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("live.ffmpeg-profile", "default", "profile used to feed live streams")
	if err := viper.BindPFlag("live.ffmpeg-profile", cmd.PersistentFlags().Lookup("live.ffmpeg-profile")); err != nil {
		return err
	}

	return nil
}

func (s *Server) Set() {
	s.PProf = viper.GetBool("pprof")
	s.Metrics = viper.GetBool("metrics")

	s.Cert = viper.GetString("cert")
	s.Key = viper.GetString("key")
	s.Bind = viper.GetString("bind")
	s.Static = viper.GetString("static")
	s.Proxy = viper.GetBool("proxy")
	s.MaxConns = viper.GetInt("max-conns")

	s.BaseDir = viper.GetString("basedir")
	if s.BaseDir == "" {
		if _, err := os.Stat(defBaseDir); os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			s.BaseDir = cwd
		} else {
			s.BaseDir = defBaseDir
		}
	}

	s.Profiles = viper.GetString("profiles")
	if s.Profiles == "" {
		s.Profiles = s.AbsPath("profiles")
	}

	if s.Static == "" {
		s.Static = s.BaseDir
	}

	s.SegmentDuration = viper.GetUint32("segment-duration")
	if s.SegmentDuration == 0 {
		log.Warn().Msg("segment duration must be positive, using 10 seconds")
		s.SegmentDuration = 10
	}

	s.Streams = viper.GetStringMapString("streams")

	//
	// LIVE
	//
	s.Live = Live{
		Window:        viper.GetDuration("live.window"),
		IdleTimeout:   viper.GetDuration("live.idle-timeout"),
		FFmpegProfile: viper.GetString("live.ffmpeg-profile"),
	}

	//
	// ENIGMA2
	//
	s.Enigma2 = nil
	if viper.IsSet("enigma2") {
		s.Enigma2 = &Enigma2{}
		if err := viper.UnmarshalKey("enigma2", s.Enigma2); err != nil {
			panic(err)
		}
	}
}

func (s *Server) AbsPath(elem ...string) string {
	// prepend base path
	elem = append([]string{s.BaseDir}, elem...)
	return path.Join(elem...)
}

// ProfilePath is the executable feeding live streams with MPEG-TS.
func (s *Server) ProfilePath() string {
	return path.Join(s.Profiles, "ts", fmt.Sprintf("%s.sh", s.Live.FFmpegProfile))
}
