package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether all credentials are present.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Mirror copies export archives to Cloudinary as raw assets. Uploads of the
// same archive name overwrite the previous asset.
type Mirror struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary mirror.
func New(cfg Config, logger zerolog.Logger) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Mirror{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the archive and returns its secure URL.
func (m *Mirror) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:         strings.Trim(m.folder, "/"),
		PublicID:       PublicID(name),
		ResourceType:   "raw",
		Overwrite:      api.Bool(true),
		Invalidate:     api.Bool(true),
		UniqueFilename: api.Bool(false),
		Tags:           []string{"frs-export"},
	}

	result, err := m.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to upload archive: %s", result.Error.Message)
	}

	m.logger.Info().Str("public_id", result.PublicID).Int("bytes", result.Bytes).Msg("export archive mirrored")

	return result.SecureURL, nil
}

// PublicID derives a stable asset identifier from a file name. Raw assets
// keep their extension.
func PublicID(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return "export"
	}
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "export"
	}

	return base + ext
}
