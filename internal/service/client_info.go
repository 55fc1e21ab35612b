package service

import (
	"context"
	"strings"

	"github.com/mssola/useragent"
	"github.com/rs/zerolog"

	"github.com/DevNeccon/frs-video-survey/internal/dto"
)

// Device classes derived from the user agent.
const (
	DeviceMobile = "Mobile"
	DeviceTablet = "Tablet"
	DevicePC     = "PC"
)

// GeoLocator resolves an IP address into a coarse location label.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (string, error)
}

// ClientMetadata holds the optional client facts stored on a submission.
type ClientMetadata struct {
	IPAddress *string
	Device    *string
	Browser   *string
	OS        *string
	Location  *string
}

// ClientInspector derives submission metadata from request facts.
type ClientInspector interface {
	Inspect(ctx context.Context, client dto.ClientContext) ClientMetadata
}

type clientInspector struct {
	geo    GeoLocator
	logger zerolog.Logger
}

// NewClientInspector builds an inspector. geo may be nil to skip lookups.
func NewClientInspector(geo GeoLocator, logger zerolog.Logger) ClientInspector {
	return &clientInspector{
		geo:    geo,
		logger: logger.With().Str("component", "client_inspector").Logger(),
	}
}

// Inspect never fails: every field is best effort and left nil when unknown.
func (i *clientInspector) Inspect(ctx context.Context, client dto.ClientContext) ClientMetadata {
	var meta ClientMetadata

	ip := strings.TrimSpace(client.IPAddress)
	if ip != "" {
		meta.IPAddress = &ip
	}

	device, browser, os := ParseUserAgent(client.UserAgent)
	meta.Device = device
	meta.Browser = browser
	meta.OS = os

	if ip != "" && i.geo != nil {
		location, err := i.geo.Lookup(ctx, ip)
		if err != nil {
			i.logger.Debug().Err(err).Str("ip", ip).Msg("geolocation lookup failed")
		} else if location = strings.TrimSpace(location); location != "" {
			meta.Location = &location
		}
	}

	return meta
}

// ParseUserAgent classifies a user agent into device class, browser family
// and OS family. An empty agent yields three nils.
func ParseUserAgent(raw string) (device, browser, os *string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, nil
	}

	ua := useragent.New(raw)

	class := DevicePC
	switch {
	case isTabletAgent(raw):
		class = DeviceTablet
	case ua.Mobile():
		class = DeviceMobile
	}
	device = &class

	if name, _ := ua.Browser(); name != "" {
		browser = &name
	}
	if name := ua.OSInfo().Name; name != "" {
		os = &name
	}

	return device, browser, os
}

func isTabletAgent(raw string) bool {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return true
	}
	return strings.Contains(lower, "android") && !strings.Contains(lower, "mobile")
}
