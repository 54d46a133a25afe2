// Package geo resolves a coarse location from a caller's IP address.
//
// It queries the ip-api.com JSON endpoint, which is accurate enough to
// produce a district-level address for the dispatcher map link.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ConnectID-SG/connectid/internal/models"
)

// DefaultBaseURL is the public ip-api.com endpoint.
const DefaultBaseURL = "http://ip-api.com"

// DefaultTimeout bounds a single lookup request.
const DefaultTimeout = 5 * time.Second

// requestFields limits the lookup response to the fields we consume.
const requestFields = "status,message,regionName,district,zip,lat,lon,query"

// Opts holds configuration options for the resolver.
type Opts struct {
	BaseURL string
	Client  *http.Client
}

// Option defines a configuration option for the resolver.
type Option func(*Opts)

// WithBaseURL overrides the lookup endpoint (used by tests).
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.Client = client }
}

// Resolver looks up locations by IP address.
type Resolver struct {
	baseURL string
	client  *http.Client
}

// NewResolver creates a resolver with the given options.
func NewResolver(opts ...Option) *Resolver {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Resolver{baseURL: cfg.BaseURL, client: cfg.Client}
}

type lookupResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	RegionName string  `json:"regionName"`
	District   string  `json:"district"`
	Zip        string  `json:"zip"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Query      string  `json:"query"`
}

// Locate resolves the IP address to a location with a "district, (S)zip"
// style address suitable for a maps search link.
func (r *Resolver) Locate(ctx context.Context, ip string) (models.Location, error) {
	url := fmt.Sprintf("%s/json/%s?fields=%s", r.baseURL, ip, requestFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Location{}, fmt.Errorf("failed to build lookup request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Error("Resolver.Locate: lookup request failed", "error", err, "ip", ip)
		return models.Location{}, fmt.Errorf("ip lookup failed: %w", err)
	}
	defer resp.Body.Close()

	var result lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Error("Resolver.Locate: failed to decode lookup response", "error", err, "ip", ip)
		return models.Location{}, fmt.Errorf("failed to decode ip lookup response: %w", err)
	}
	if result.Status != "success" {
		slog.Warn("Resolver.Locate: lookup rejected", "ip", ip, "message", result.Message)
		return models.Location{}, fmt.Errorf("ip lookup rejected: %s", result.Message)
	}

	location := models.Location{
		Latitude:  result.Lat,
		Longitude: result.Lon,
		Address:   fmt.Sprintf("%s, (S)%s", result.District, result.Zip),
	}
	slog.Debug("Resolver.Locate: resolved location", "ip", ip, "address", location.Address)
	return location, nil
}
