package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bouquetsXML = `<?xml version="1.0" encoding="UTF-8"?>
<e2servicelist>
	<e2service>
		<e2servicereference>1:7:1:0:0:0:0:0:0:0:FROM BOUQUET "userbouquet.favourites.tv" ORDER BY bouquet</e2servicereference>
		<e2servicename>Favourites (TV)</e2servicename>
	</e2service>
</e2servicelist>`

const servicesXML = `<?xml version="1.0" encoding="UTF-8"?>
<e2servicelist>
	<e2service>
		<e2servicereference>1:0:19:283D:3FB:1:C00000:0:0:0:</e2servicereference>
		<e2servicename>Das Erste HD</e2servicename>
	</e2service>
	<e2service>
		<e2servicereference>1:0:19:2B66:3F3:1:C00000:0:0:0:</e2servicereference>
		<e2servicename>ZDF-HD</e2servicename>
	</e2service>
</e2servicelist>`

func TestEnigma2Streams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/web/getservices" {
			http.NotFound(w, r)
			return
		}

		if r.URL.Query().Get("sRef") == "" {
			_, _ = w.Write([]byte(bouquetsXML))
			return
		}
		_, _ = w.Write([]byte(servicesXML))
	}))
	defer ts.Close()

	conf := Enigma2{
		WebifURL:  ts.URL,
		StreamURL: "http://receiver:8001/",
	}

	streams, err := conf.Streams(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"das_erste_hd": "http://receiver:8001/1:0:19:283D:3FB:1:C00000:0:0:0:",
		"zdf_hd":       "http://receiver:8001/1:0:19:2B66:3F3:1:C00000:0:0:0:",
	}, streams)
}

func TestEnigma2MissingBouquet(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bouquetsXML))
	}))
	defer ts.Close()

	_, err := Enigma2{WebifURL: ts.URL, Bouquet: "Radio"}.Streams(context.Background())
	assert.Error(t, err)
}

func TestEnigma2ChannelName(t *testing.T) {
	tests := map[string]string{
		"Das Erste HD": "das_erste_hd",
		"ZDF-HD":       "zdf_hd",
		"arte":         "arte",
	}

	for name, want := range tests {
		if got := enigma2ChannelName(name); got != want {
			t.Errorf("enigma2ChannelName(%q) = %q, want %q", name, got, want)
		}
	}
}
