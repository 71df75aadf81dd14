package server

import "github.com/m1k1o/go-hlsbridge/internal/metrics"

type Config struct {
	Bind    string
	SSLCert string
	SSLKey  string
	Proxy   bool
	PProf   bool

	// accepted sockets at once, unlimited when zero
	MaxConns int

	// sent as the Server header of every response
	ServerName string
	// exposed at /metrics when set
	Metrics *metrics.Metrics
}

func (c Config) withDefaultValues() Config {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ServerName == "" {
		c.ServerName = "go-hlsbridge"
	}
	return c
}
