package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1k1o/go-hlsbridge/internal/metrics"
	"github.com/m1k1o/go-hlsbridge/pkg/pipeline"
)

func newTestServer(t *testing.T, s *ServerManagerCtx) *httptest.Server {
	t.Helper()

	ts := httptest.NewUnstartedServer(s.Handler())
	s.Configure(ts.Config)
	ts.Start()
	t.Cleanup(ts.Close)

	return ts
}

func fetch(t *testing.T, url string) (*http.Response, string) {
	t.Helper()

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return res, string(body)
}

func TestRoutes(t *testing.T) {
	s := New(&Config{Metrics: metrics.New()})

	s.Handle("/streams/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn := pipeline.FromContext(r.Context())
		if conn == nil {
			http.Error(w, "500 no connection", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))

	ts := newTestServer(t, s)

	res, body := fetch(t, ts.URL+"/ping")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "pong", body)

	res, body = fetch(t, ts.URL+"/streams/cam1.m3u8")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "/streams/cam1.m3u8", body)

	res, _ = fetch(t, ts.URL+"/unknown")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, body = fetch(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "hlsbridge_active_connections")
	assert.Contains(t, body, "hlsbridge_errors_total 1")
}

func TestPProf(t *testing.T) {
	s := New(&Config{PProf: true})
	ts := newTestServer(t, s)

	res, _ := fetch(t, ts.URL+"/debug/pprof/")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	s = New(&Config{})
	ts = newTestServer(t, s)

	res, _ = fetch(t, ts.URL+"/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStartLimited(t *testing.T) {
	s := New(&Config{Bind: "127.0.0.1:0", MaxConns: 1})
	assert.Nil(t, s.Addr())

	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	require.NotNil(t, s.Addr())

	// sequential requests fit below the limit
	for i := 0; i < 3; i++ {
		res, body := fetch(t, "http://"+s.Addr().String()+"/ping")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "pong", body)
	}
}

// selfSigned writes a certificate for 127.0.0.1 and its key.
func selfSigned(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")

	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestTLSServesHTTP1(t *testing.T) {
	certFile, keyFile := selfSigned(t)

	s := New(&Config{Bind: "127.0.0.1:0", SSLCert: certFile, SSLKey: keyFile})
	s.Handle("/streams/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pipeline.FromContext(r.Context()) == nil {
			http.Error(w, "500 no connection", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(strconv.Itoa(r.ProtoMajor)))
	}))

	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	// a client that would prefer HTTP/2
	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
		ForceAttemptHTTP2: true,
	}}
	t.Cleanup(client.CloseIdleConnections)

	res, err := client.Get("https://" + s.Addr().String() + "/streams/cam1.m3u8")
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, res.ProtoMajor)
	assert.Equal(t, "1", string(body))
}
