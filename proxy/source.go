package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Source lists candidate proxies from an upstream provider.
type Source interface {
	Fetch(ctx context.Context) ([]Proxy, error)
}

// listingSource fetches candidates from an htmlweb-style JSON endpoint. The
// response is a map keyed by numeric strings, plus bookkeeping fields:
//
//	{"0": {"name": "1.2.3.4:8080", "country": "RU", "work": 1, ...}, "limit": 99}
//
// Entries with work 1 (known good) or 2 (unverified) are kept; everything else
// is dropped at the boundary.
type listingSource struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

func NewListingSource(url, apiKey string, timeout time.Duration) Source {
	return &listingSource{
		url:     url + apiKey,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type listingEntry struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Speed   int    `json:"speed"`
	Country string `json:"country"`
	Work    int    `json:"work"`
}

func (s *listingSource) Fetch(ctx context.Context) ([]Proxy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build listing request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch proxy listing")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("proxy listing returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read proxy listing")
	}

	return parseListing(body)
}

func parseListing(body []byte) ([]Proxy, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "decode proxy listing")
	}

	if errMsg, ok := raw["error"]; ok {
		return nil, errors.Errorf("proxy listing error: %s", string(errMsg))
	}

	var proxies []Proxy
	for key, value := range raw {
		if !isDigits(key) {
			continue
		}

		var entry listingEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			logrus.WithError(err).WithField("key", key).Debug("Skipping malformed listing entry")
			continue
		}

		if entry.Work != 1 && entry.Work != 2 {
			continue
		}

		p, err := parseHostPort(entry.Name)
		if err != nil {
			logrus.WithError(err).WithField("name", entry.Name).Debug("Skipping unparseable proxy address")
			continue
		}

		p.Country = entry.Country
		p.Speed = entry.Speed
		proxies = append(proxies, p)
	}

	return proxies, nil
}

func parseHostPort(name string) (Proxy, error) {
	host, portStr, ok := strings.Cut(name, ":")
	if !ok || host == "" {
		return Proxy{}, fmt.Errorf("malformed proxy address: %q", name)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Proxy{}, fmt.Errorf("invalid proxy port: %q", portStr)
	}

	return Proxy{Host: host, Port: port}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
