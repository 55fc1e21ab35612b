package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Transcoder backends.
const (
	TranscodeBackendLocal  = "local"
	TranscodeBackendDocker = "docker"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	NATSSubject string

	MediaDir        string
	ExportWorkDir   string
	UploadMaxMB     int
	ExportRateLimit int

	GeoLookupProvider string
	GeoLookupCacheTTL time.Duration

	FFmpegBinary        string
	FFmpegPreset        string
	TranscodeBackend    string
	TranscodeImage      string
	TranscodeTimeout    time.Duration
	TranscodeMemoryMB   int
	TranscodeCPUShares  int
	DockerHost          string
	ExportMaxConcurrent int

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether export archives are mirrored.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FRS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "FRS Video Survey")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject", "frs.submissions")
	v.SetDefault("media.dir", "./media")
	v.SetDefault("upload.max_mb", 50)
	v.SetDefault("export.rate_limit", 10)
	v.SetDefault("export.max_concurrent", 2)
	v.SetDefault("geolookup.provider", "ipapi")
	v.SetDefault("geolookup.cache_ttl", "24h")
	v.SetDefault("ffmpeg.binary", "ffmpeg")
	v.SetDefault("ffmpeg.preset", "veryfast")
	v.SetDefault("transcode.backend", TranscodeBackendLocal)
	v.SetDefault("transcode.image", "jrottenberg/ffmpeg:6.1-ubuntu")
	v.SetDefault("transcode.timeout", "10m")
	v.SetDefault("transcode.memory_mb", 1024)
	v.SetDefault("transcode.cpu_shares", 1024)
	v.SetDefault("cloudinary.folder", "frs/exports")

	geoTTL, err := parseDuration(v, "geolookup.cache_ttl", "24h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid geolookup cache ttl: %w", err)
	}

	transcodeTimeout, err := parseDuration(v, "transcode.timeout", "10m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid transcode timeout: %w", err)
	}

	mediaDir := filepath.Clean(v.GetString("media.dir"))
	workDir := strings.TrimSpace(v.GetString("export.work_dir"))
	if workDir == "" {
		workDir = filepath.Join(mediaDir, ".work")
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubject:            v.GetString("nats.subject"),
		MediaDir:               mediaDir,
		ExportWorkDir:          filepath.Clean(workDir),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		ExportRateLimit:        v.GetInt("export.rate_limit"),
		GeoLookupProvider:      strings.ToLower(strings.TrimSpace(v.GetString("geolookup.provider"))),
		GeoLookupCacheTTL:      geoTTL,
		FFmpegBinary:           v.GetString("ffmpeg.binary"),
		FFmpegPreset:           v.GetString("ffmpeg.preset"),
		TranscodeBackend:       strings.ToLower(strings.TrimSpace(v.GetString("transcode.backend"))),
		TranscodeImage:         v.GetString("transcode.image"),
		TranscodeTimeout:       transcodeTimeout,
		TranscodeMemoryMB:      v.GetInt("transcode.memory_mb"),
		TranscodeCPUShares:     v.GetInt("transcode.cpu_shares"),
		DockerHost:             v.GetString("docker_host"),
		ExportMaxConcurrent:    v.GetInt("export.max_concurrent"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	switch cfg.TranscodeBackend {
	case TranscodeBackendLocal, TranscodeBackendDocker:
	default:
		return Config{}, fmt.Errorf("unsupported transcode backend %q", cfg.TranscodeBackend)
	}

	switch cfg.GeoLookupProvider {
	case "ipapi", "ip-api", "none":
	default:
		return Config{}, fmt.Errorf("unsupported geolookup provider %q", cfg.GeoLookupProvider)
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 50
	}

	if cfg.ExportMaxConcurrent <= 0 {
		cfg.ExportMaxConcurrent = 2
	}

	if cfg.ExportRateLimit <= 0 {
		cfg.ExportRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
