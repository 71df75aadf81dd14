package config

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Enigma2 describes a satellite receiver whose bouquet channels are served as
// live streams.
type Enigma2 struct {
	WebifURL  string `mapstructure:"webif-url"`
	StreamURL string `mapstructure:"stream-url"`
	Bouquet   string `mapstructure:"bouquet"`
	Reference string `mapstructure:"reference"`
}

type enigma2Service struct {
	Reference string `xml:"e2servicereference"`
	Name      string `xml:"e2servicename"`
}

type enigma2ServiceList struct {
	XMLName  xml.Name         `xml:"e2servicelist"`
	Services []enigma2Service `xml:"e2service"`
}

// Streams lists the channels of the configured bouquet, channel name mapped
// to its stream url.
func (conf Enigma2) Streams(ctx context.Context) (map[string]string, error) {
	// parse webif url
	webifURL, err := url.Parse(conf.WebifURL)
	if err != nil {
		return nil, fmt.Errorf("error while parsing enigma2 webif url: %w", err)
	}

	// if there is no streaming url, create it from webif url
	if conf.StreamURL == "" {
		streamURL := url.URL{
			Scheme: webifURL.Scheme,
			User:   webifURL.User,
			Host:   webifURL.Hostname() + ":8001",
			Path:   "/",
		}
		conf.StreamURL = streamURL.String()
	}

	// parse streaming url
	streamURL, err := url.Parse(conf.StreamURL)
	if err != nil {
		return nil, fmt.Errorf("error while parsing enigma2 streaming url: %w", err)
	}

	// use default bouquet if not set
	if conf.Bouquet == "" {
		conf.Bouquet = "Favourites (TV)"
	}

	apiURL := *webifURL
	apiURL.Path = path.Join(apiURL.Path, "/web/getservices")

	// find reference by bouquet name
	if conf.Reference == "" {
		bouquets, err := enigma2Services(ctx, apiURL.String())
		if err != nil {
			return nil, fmt.Errorf("error while getting enigma2 bouquets: %w", err)
		}

		for _, service := range bouquets {
			if service.Name == conf.Bouquet {
				conf.Reference = service.Reference
			}
		}

		if conf.Reference == "" {
			return nil, fmt.Errorf("could not find bouquet %s", conf.Bouquet)
		}
	}

	// add reference to api url
	q := apiURL.Query()
	q.Set("sRef", conf.Reference)
	apiURL.RawQuery = q.Encode()

	services, err := enigma2Services(ctx, apiURL.String())
	if err != nil {
		return nil, fmt.Errorf("error while getting enigma2 services: %w", err)
	}

	streams := make(map[string]string, len(services))
	for _, service := range services {
		chURL := *streamURL
		chURL.Path = path.Join(chURL.Path, service.Reference)
		streams[enigma2ChannelName(service.Name)] = chURL.String()
	}

	return streams, nil
}

// get services from webif
func enigma2Services(ctx context.Context, url string) ([]enigma2Service, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status error: %d", resp.StatusCode)
	}

	var obj enigma2ServiceList
	if err := xml.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode service list: %w", err)
	}

	return obj.Services, nil
}

func enigma2ChannelName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
