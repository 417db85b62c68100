// Package priceoracle maintains a fresh USD price for the anchor asset,
// polled redundantly from external sources and averaged.
package priceoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Source yields a positive USD price for the anchor asset, or an error. A
// Source that requires a credential and finds it absent should report so
// via HasCredential so the oracle can skip it up front.
type Source interface {
	Name() string
	HasCredential() bool
	FetchPriceUSD(ctx context.Context) (float64, error)
}

// HTTPSource is the common shape of every anchor price source in this
// engine: an HTTP GET against a JSON endpoint, with a parse function
// pulling a float64 out of the decoded body.
type HTTPSource struct {
	name       string
	url        string
	apiKeyParam string
	apiKey     string
	httpClient *http.Client
	parse      func(body []byte) (float64, error)
}

// NewHTTPSource builds a source querying reqURL, optionally appending
// apiKeyParam=apiKey as a query parameter when apiKey is non-empty.
func NewHTTPSource(name, reqURL, apiKeyParam, apiKey string, parse func([]byte) (float64, error)) *HTTPSource {
	return &HTTPSource{
		name:        name,
		url:         reqURL,
		apiKeyParam: apiKeyParam,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		parse:       parse,
	}
}

func (s *HTTPSource) Name() string { return s.name }

// HasCredential reports whether this source has everything it needs to be
// queried. Sources with no apiKeyParam configured never require one.
func (s *HTTPSource) HasCredential() bool {
	if s.apiKeyParam == "" {
		return true
	}
	return s.apiKey != ""
}

func (s *HTTPSource) FetchPriceUSD(ctx context.Context) (float64, error) {
	reqURL := s.url
	if s.apiKeyParam != "" && s.apiKey != "" {
		u, err := url.Parse(s.url)
		if err != nil {
			return 0, fmt.Errorf("parse source url: %w", err)
		}
		q := u.Query()
		q.Set(s.apiKeyParam, s.apiKey)
		u.RawQuery = q.Encode()
		reqURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("source %s returned status %d: %s", s.name, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("read body: %w", err)
	}

	price, err := s.parse(body)
	if err != nil {
		return 0, fmt.Errorf("parse source %s response: %w", s.name, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("source %s returned non-positive price %v", s.name, price)
	}
	return price, nil
}

// ParseSimplePriceField decodes {"<id>": {"<currency>": <price>}} shaped
// bodies (the CoinGecko /simple/price shape) and extracts one field.
func ParseSimplePriceField(id, currency string) func([]byte) (float64, error) {
	return func(body []byte) (float64, error) {
		var result map[string]map[string]float64
		if err := json.Unmarshal(body, &result); err != nil {
			return 0, fmt.Errorf("decode: %w", err)
		}
		byCurrency, ok := result[id]
		if !ok {
			return 0, fmt.Errorf("id %q not present in response", id)
		}
		price, ok := byCurrency[currency]
		if !ok {
			return 0, fmt.Errorf("currency %q not present for id %q", currency, id)
		}
		return price, nil
	}
}

// ParseJSONPathFloat decodes an arbitrary JSON object and extracts a single
// float64 by following the given object keys in order (e.g. "data", "amount").
func ParseJSONPathFloat(path ...string) func([]byte) (float64, error) {
	return func(body []byte) (float64, error) {
		var root map[string]any
		if err := json.Unmarshal(body, &root); err != nil {
			return 0, fmt.Errorf("decode: %w", err)
		}
		cur := any(root)
		for i, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				return 0, fmt.Errorf("path %v: %q is not an object at segment %d", path, key, i)
			}
			cur, ok = m[key]
			if !ok {
				return 0, fmt.Errorf("path %v: missing key %q", path, key)
			}
		}
		switch v := cur.(type) {
		case float64:
			return v, nil
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%f", &f); err != nil {
				return 0, fmt.Errorf("path %v: %q is not numeric", path, v)
			}
			return f, nil
		default:
			return 0, fmt.Errorf("path %v: unexpected type %T", path, v)
		}
	}
}
