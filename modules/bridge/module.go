package bridge

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/m1k1o/go-hlsbridge/internal/metrics"
	"github.com/m1k1o/go-hlsbridge/pkg/manifest"
	"github.com/m1k1o/go-hlsbridge/pkg/pipeline"
)

type ModuleCtx struct {
	logger     zerolog.Logger
	pathPrefix string
	config     atomic.Pointer[Config]
}

func New(pathPrefix string, config *Config) *ModuleCtx {
	module := &ModuleCtx{
		logger:     log.With().Str("module", "bridge").Logger(),
		pathPrefix: pathPrefix,
	}

	module.ConfigReload(config)
	return module
}

func (m *ModuleCtx) Shutdown() {
}

// ConfigReload applies to requests arriving afterwards.
func (m *ModuleCtx) ConfigReload(config *Config) {
	cfg := config.withDefaultValues()
	m.config.Store(&cfg)
}

func (m *ModuleCtx) conf() *Config {
	return m.config.Load()
}

func (m *ModuleCtx) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn := pipeline.FromContext(r.Context())
	if r.ProtoMajor >= 2 || conn == nil || conn.Enter(w) != nil {
		// multiplexed, busy or not accepted through the server: the
		// response lives with the request
		conn = pipeline.NewConn(m.conf().ServerName)
		_ = conn.Enter(w)
		defer conn.Close()
	}
	defer conn.Leave()

	p := strings.TrimPrefix(r.URL.Path, m.pathPrefix)
	p = strings.TrimPrefix(p, "/")

	if r.URL.RawQuery != "" || r.URL.ForceQuery {
		m.serveSegment(conn, w, r, p)
		return
	}

	m.serveManifestOrFile(conn, w, r, p)
}

func (m *ModuleCtx) serveManifestOrFile(conn *pipeline.Conn, w http.ResponseWriter, r *http.Request, p string) {
	name, ext := p, ""
	if i := strings.LastIndex(p, "."); i >= 0 && i > strings.LastIndex(p, "/") {
		name, ext = p[:i], p[i+1:]
	}

	kind, contentType, generate := metrics.KindHLS, manifest.HLSContentType, manifest.HLS
	if ext == "mpd" {
		kind, contentType, generate = metrics.KindDASH, manifest.DASHContentType, manifest.DASH
	}

	text, err := m.generateManifest(name, generate)
	if err == nil {
		m.logger.Info().Str("conn", conn.ID()).Str("stream", name).Str("kind", kind).Msg("sending manifest")
		m.respond(r.Context(), conn, kind, contentType, []byte(text))
		return
	}

	m.logger.Debug().Err(err).Str("stream", name).Msg("no manifest, trying static file")

	data, contentType, err := m.readFile(p, ext)
	if err != nil {
		m.NotSupported(conn, w, err)
		return
	}

	m.logger.Info().Str("conn", conn.ID()).Str("file", p).Msg("sending file")
	m.respond(r.Context(), conn, metrics.KindFile, contentType, data)
}

func (m *ModuleCtx) generateManifest(name string, generate func(manifest.Params) (string, error)) (string, error) {
	session, ok := m.conf().Registry.LookupSession(name)
	if !ok {
		return "", ErrNoSession
	}

	// segment urls are relative to the manifest
	segmentURL := url.PathEscape(path.Base(name))
	params, err := manifest.FromSubsession(session.Subsession(), m.conf().SegmentDuration, segmentURL)
	if err != nil {
		return "", ErrNoSession
	}

	return generate(params)
}

func (m *ModuleCtx) serveSegment(conn *pipeline.Conn, w http.ResponseWriter, r *http.Request, name string) {
	query, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		m.NotSupported(conn, w, ErrMalformedQuery)
		return
	}

	offset, err := strconv.ParseUint(query.Get("segment"), 10, 32)
	if err != nil {
		m.NotSupported(conn, w, ErrMalformedQuery)
		return
	}

	numBytes, source, err := m.resolveSegment(conn, name, uint32(offset))
	if err != nil {
		m.NotSupported(conn, w, err)
		return
	}

	m.stream(r.Context(), conn, metrics.KindSegment, "video/mp2t", numBytes, source)
}

func (m *ModuleCtx) respond(ctx context.Context, conn *pipeline.Conn, kind, contentType string, body []byte) {
	m.stream(ctx, conn, kind, contentType, uint64(len(body)), pipeline.MemorySource(body))
}

// stream sends the header and then the source, returning once the body has
// been written or the client went away.
func (m *ModuleCtx) stream(ctx context.Context, conn *pipeline.Conn, kind, contentType string, length uint64, source io.ReadCloser) {
	if err := conn.SendHeader(contentType, length); err != nil {
		_ = source.Close()
		m.logger.Err(err).Str("conn", conn.ID()).Msg("unable to send header")
		return
	}

	sink, err := conn.StreamSource(source)
	if err != nil {
		m.logger.Err(err).Str("conn", conn.ID()).Msg("unable to stream source")
		return
	}

	stats := m.conf().Metrics
	stats.IncServed(kind)
	stats.SinkStarted()
	defer stats.SinkStopped()

	err = conn.Wait(ctx)
	stats.AddStreamedBytes(sink.Written())

	if err != nil {
		m.logger.Info().Err(err).
			Str("conn", conn.ID()).
			Int64("written", sink.Written()).
			Uint64("length", length).
			Msg("streaming interrupted")
	}
}
