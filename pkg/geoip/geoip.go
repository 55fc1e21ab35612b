// Package geoip resolves client IP addresses into a coarse location label
// using a public lookup API, with an optional redis cache in front.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Supported providers.
const (
	ProviderIPAPI   = "ipapi"
	ProviderIPAPICo = "ip-api"
	ProviderNone    = "none"

	DefaultTimeout  = 3 * time.Second
	DefaultCacheTTL = 24 * time.Hour

	cachePrefix = "frs:geo:"
)

var (
	// ErrUnknownProvider is returned for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown geolocation provider")
	// ErrInvalidIP is returned when the address cannot be parsed.
	ErrInvalidIP = errors.New("invalid ip address")
)

var defaultBaseURLs = map[string]string{
	ProviderIPAPI:   "https://ipapi.co",
	ProviderIPAPICo: "http://ip-api.com",
}

// Config controls the lookup client.
type Config struct {
	Provider string
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Client performs IP geolocation lookups.
type Client struct {
	provider string
	baseURL  string
	http     *http.Client
	cache    *redis.Client
	ttl      time.Duration
	logger   zerolog.Logger
}

// New builds a client. cache may be nil.
func New(cfg Config, cache *redis.Client, logger zerolog.Logger) (*Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderNone
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if provider != ProviderNone {
		fallback, ok := defaultBaseURLs[provider]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
		}
		if baseURL == "" {
			baseURL = fallback
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Client{
		provider: provider,
		baseURL:  baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "geoip").Str("provider", provider).Logger(),
	}, nil
}

// Provider returns the configured provider name.
func (c *Client) Provider() string {
	return c.provider
}

// Lookup returns a location label for ip. Non-public addresses and the none
// provider yield an empty label without error.
func (c *Client) Lookup(ctx context.Context, ip string) (string, error) {
	if c.provider == ProviderNone {
		return "", nil
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	if !isPublic(addr) {
		return "", nil
	}

	key := cachePrefix + c.provider + ":" + addr.String()
	if c.cache != nil {
		cached, err := c.cache.Get(ctx, key).Result()
		switch {
		case err == nil:
			return cached, nil
		case !errors.Is(err, redis.Nil):
			c.logger.Warn().Err(err).Msg("geolocation cache read failed")
		}
	}

	location, err := c.fetch(ctx, addr)
	if err != nil {
		return "", err
	}

	if c.cache != nil && location != "" {
		if err := c.cache.Set(ctx, key, location, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("geolocation cache write failed")
		}
	}

	return location, nil
}

func (c *Client) fetch(ctx context.Context, addr netip.Addr) (string, error) {
	var url string
	switch c.provider {
	case ProviderIPAPI:
		url = fmt.Sprintf("%s/%s/json/", c.baseURL, addr.String())
	case ProviderIPAPICo:
		url = fmt.Sprintf("%s/json/%s", c.baseURL, addr.String())
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, c.provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("geolocation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geolocation request: unexpected status %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body); err != nil {
		return "", fmt.Errorf("geolocation response: %w", err)
	}

	return pickLocation(c.provider, body), nil
}

func pickLocation(provider string, body map[string]any) string {
	var keys []string
	switch provider {
	case ProviderIPAPI:
		if isTrue(body["error"]) {
			return ""
		}
		keys = []string{"country_name", "country", "city"}
	case ProviderIPAPICo:
		if status, _ := body["status"].(string); status == "fail" {
			return ""
		}
		keys = []string{"country", "city"}
	}

	for _, key := range keys {
		if value, ok := body[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func isTrue(value any) bool {
	b, ok := value.(bool)
	return ok && b
}

func isPublic(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsUnspecified() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsMulticast()
}
