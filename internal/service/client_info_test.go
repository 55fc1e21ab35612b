package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DevNeccon/frs-video-survey/internal/dto"
)

func TestParseUserAgentClassifiesDevices(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		device  string
		browser string
		os      string
	}{
		{
			name:    "desktop chrome",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			device:  DevicePC,
			browser: "Chrome",
			os:      "Windows",
		},
		{
			name:    "android phone",
			ua:      "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			device:  DeviceMobile,
			browser: "Chrome",
			os:      "Android",
		},
		{
			name:   "ipad",
			ua:     "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			device: DeviceTablet,
		},
		{
			name:   "android tablet",
			ua:     "Mozilla/5.0 (Linux; Android 12; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			device: DeviceTablet,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			device, browser, os := ParseUserAgent(tc.ua)
			require.NotNil(t, device)
			require.Equal(t, tc.device, *device)
			if tc.browser != "" {
				require.NotNil(t, browser)
				require.Equal(t, tc.browser, *browser)
			}
			if tc.os != "" {
				require.NotNil(t, os)
				require.Equal(t, tc.os, *os)
			}
		})
	}
}

func TestParseUserAgentEmpty(t *testing.T) {
	device, browser, os := ParseUserAgent("   ")
	require.Nil(t, device)
	require.Nil(t, browser)
	require.Nil(t, os)
}

func TestClientInspectorToleratesGeoFailure(t *testing.T) {
	inspector := NewClientInspector(staticGeo{err: errors.New("timeout")}, testLogger())

	meta := inspector.Inspect(context.Background(), dto.ClientContext{IPAddress: " 198.51.100.4 "})
	require.NotNil(t, meta.IPAddress)
	require.Equal(t, "198.51.100.4", *meta.IPAddress)
	require.Nil(t, meta.Location)
	require.Nil(t, meta.Device)
}

func TestClientInspectorWithoutIPSkipsLookup(t *testing.T) {
	inspector := NewClientInspector(staticGeo{location: "Nowhere"}, testLogger())

	meta := inspector.Inspect(context.Background(), dto.ClientContext{})
	require.Nil(t, meta.IPAddress)
	require.Nil(t, meta.Location)
}
