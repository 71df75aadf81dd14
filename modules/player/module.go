package player

import (
	_ "embed"
	"html/template"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

//go:embed player.html
var playHTML string

var playTmpl = template.Must(template.New("player").Parse(playHTML))

type page struct {
	Stream  string
	Source  string
	Streams []string
}

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	config     Config
}

func New(pathPrefix string, config *Config) *ModuleCtx {
	module := &ModuleCtx{
		logger:     log.With().Str("module", "player").Logger(),
		pathPrefix: pathPrefix,
		config:     config.withDefaultValues(),
	}

	return module
}

func (m *ModuleCtx) Shutdown() {

}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stream := strings.TrimPrefix(r.URL.Path, m.pathPrefix)
	stream = strings.Trim(stream, "/")

	data := page{Stream: stream}
	if stream != "" {
		data.Source = path.Join(m.config.StreamPrefix, stream) + "." + m.config.ManifestExt
	} else if m.config.Streams != nil {
		data.Streams = m.config.Streams.Names()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := playTmpl.Execute(w, data); err != nil {
		m.logger.Err(err).Str("stream", stream).Msg("unable to render player")
	}
}
