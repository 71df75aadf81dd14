package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"

	"github.com/m1k1o/go-hlsbridge/internal/metrics"
	"github.com/m1k1o/go-hlsbridge/pkg/pipeline"
)

type ServerManagerCtx struct {
	logger   zerolog.Logger
	config   Config
	router   *chi.Mux
	server   *http.Server
	listener net.Listener

	// accepted sockets and their response pipelines
	conns sync.Map
}

func New(config *Config) *ServerManagerCtx {
	logger := log.With().Str("module", "server").Logger()
	cfg := config.withDefaultValues()

	router := chi.NewRouter()
	router.Use(middleware.RequestID) // Create a request ID for each request

	// get real users ip
	if cfg.Proxy {
		router.Use(middleware.RealIP)
	}

	// add http logger
	router.Use(middleware.RequestLogger(&logformatter{logger}))
	router.Use(middleware.Recoverer) // Recover from panics without crashing server

	if cfg.Metrics != nil {
		router.Use(metrics.RequestMiddleware(cfg.Metrics))
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
		logger.Info().Msg("with metrics endpoint at /metrics")
	}

	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		//nolint
		_, _ = w.Write([]byte("pong"))
	})

	// mount pprof endpoint
	if cfg.PProf {
		withPProf(router)
		logger.Info().Msgf("with pprof endpoint at %s", pprofPath)
	}

	// use custom 404
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "404 not found", http.StatusNotFound)
	})

	s := &ServerManagerCtx{
		logger: logger,
		config: cfg,
		router: router,
	}

	s.server = &http.Server{
		Addr:    cfg.Bind,
		Handler: router,
	}
	s.Configure(s.server)

	return s
}

// Configure installs the per-socket response pipeline on hs. HTTP/2 is
// disabled, a socket carries one request at a time.
func (s *ServerManagerCtx) Configure(hs *http.Server) {
	hs.ConnContext = s.connContext
	hs.ConnState = s.connState
	hs.TLSNextProto = map[string]func(*http.Server, *tls.Conn, http.Handler){}
}

// connContext creates the response pipeline of a newly accepted socket.
func (s *ServerManagerCtx) connContext(ctx context.Context, c net.Conn) context.Context {
	conn := pipeline.NewConn(s.config.ServerName)

	s.config.Metrics.ConnOpened()
	conn.OnDestroy(s.config.Metrics.ConnClosed)

	s.conns.Store(c, conn)
	s.logger.Debug().Str("conn", conn.ID()).Str("remote", c.RemoteAddr().String()).Msg("connection accepted")

	return pipeline.NewContext(ctx, conn)
}

func (s *ServerManagerCtx) connState(c net.Conn, state http.ConnState) {
	if state != http.StateClosed && state != http.StateHijacked {
		return
	}

	if conn, ok := s.conns.LoadAndDelete(c); ok {
		conn.(*pipeline.Conn).Close()
	}
}

func (s *ServerManagerCtx) Start() {
	listener, err := net.Listen("tcp", s.config.Bind)
	if err != nil {
		s.logger.Panic().Err(err).Msg("unable to listen")
	}

	// every accepted socket may hold a streaming sink
	if s.config.MaxConns > 0 {
		listener = netutil.LimitListener(listener, s.config.MaxConns)
		s.logger.Info().Int("max-conns", s.config.MaxConns).Msg("limiting connections")
	}

	s.listener = listener

	if s.config.SSLCert != "" && s.config.SSLKey != "" {
		s.logger.Warn().Msg("TLS support is provided for convenience, but you should never use it in production. Use a reverse proxy (apache nginx caddy) instead!")
		go func() {
			if err := s.server.ServeTLS(listener, s.config.SSLCert, s.config.SSLKey); !errors.Is(err, http.ErrServerClosed) {
				s.logger.Panic().Err(err).Msg("unable to start https server")
			}
		}()
		s.logger.Info().Msgf("https listening on %s", listener.Addr())
	} else {
		go func() {
			if err := s.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
				s.logger.Panic().Err(err).Msg("unable to start http server")
			}
		}()
		s.logger.Info().Msgf("http listening on %s", listener.Addr())
	}
}

// Addr is the address the server listens on once started.
func (s *ServerManagerCtx) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *ServerManagerCtx) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Handle registers handler for pattern, a pattern ending with / matches
// everything below it.
func (s *ServerManagerCtx) Handle(pattern string, handler http.Handler) {
	if strings.HasSuffix(pattern, "/") {
		pattern += "*"
	}

	s.router.Handle(pattern, handler)
}

func (s *ServerManagerCtx) Mount(fn func(r *chi.Mux)) {
	fn(s.router)
}

func (s *ServerManagerCtx) Handler() http.Handler {
	return s.server.Handler
}
