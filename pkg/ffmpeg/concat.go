// Package ffmpeg concatenates recorded video segments into a single MP4 by
// driving the ffmpeg concat demuxer.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBinary is the ffmpeg executable resolved from PATH.
	DefaultBinary = "ffmpeg"
	// DefaultPreset trades compression for encode speed.
	DefaultPreset = "veryfast"
	// DefaultTimeout bounds a single concat run.
	DefaultTimeout = 10 * time.Minute

	manifestName = "concat_list.txt"
)

var (
	// ErrNoSegments is returned when there is nothing to concatenate.
	ErrNoSegments = errors.New("no video segments found")
	// ErrTranscodeFailed is returned when ffmpeg fails, times out or produces no output.
	ErrTranscodeFailed = errors.New("transcode failed")
)

var commandContext = exec.CommandContext

var (
	concatDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "frs",
		Subsystem: "transcode",
		Name:      "concat_duration_seconds",
		Help:      "Duration of segment concatenation runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	concatFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frs",
		Subsystem: "transcode",
		Name:      "concat_failures_total",
		Help:      "Number of concatenation runs that failed",
	}, []string{"reason"})
)

// Runner executes ffmpeg with the given arguments. mounts lists the host
// directories the run reads from or writes to.
type Runner interface {
	Run(ctx context.Context, args []string, mounts []string) ([]byte, error)
}

// LocalRunner executes an ffmpeg binary on the host.
type LocalRunner struct {
	binary string
}

// NewLocalRunner returns a runner for binary, defaulting to ffmpeg on PATH.
func NewLocalRunner(binary string) *LocalRunner {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	return &LocalRunner{binary: binary}
}

// Binary returns the configured executable.
func (r *LocalRunner) Binary() string {
	return r.binary
}

// Check verifies the binary can be resolved.
func (r *LocalRunner) Check() (string, error) {
	path, err := exec.LookPath(r.binary)
	if err != nil {
		return "", fmt.Errorf("binary %q not found: %w", r.binary, err)
	}
	return path, nil
}

// Run executes ffmpeg and returns its combined output.
func (r *LocalRunner) Run(ctx context.Context, args []string, _ []string) ([]byte, error) {
	cmd := commandContext(ctx, r.binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Option customises a Concatenator.
type Option func(*Concatenator)

// WithTimeout bounds each run. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Concatenator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithPreset sets the x264 preset.
func WithPreset(preset string) Option {
	return func(c *Concatenator) {
		if strings.TrimSpace(preset) != "" {
			c.preset = strings.TrimSpace(preset)
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Concatenator) {
		c.logger = logger.With().Str("component", "ffmpeg_concat").Logger()
	}
}

// Concatenator joins ordered segments into one normalised MP4.
type Concatenator struct {
	runner  Runner
	timeout time.Duration
	preset  string
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewConcatenator builds a Concatenator on top of runner.
func NewConcatenator(runner Runner, opts ...Option) *Concatenator {
	c := &Concatenator{
		runner:  runner,
		timeout: DefaultTimeout,
		preset:  DefaultPreset,
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer("github.com/DevNeccon/frs-video-survey/pkg/ffmpeg"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Args returns the ffmpeg arguments for concatenating the manifest into output.
// Video is re-encoded to H.264 with yuv420p, audio to AAC, and the moov atom
// is moved to the front so the file streams before it is fully downloaded.
func Args(manifest, output, preset string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
		"-c:v", "libx264",
		"-preset", preset,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		output,
	}
}

// Concat writes segments, sorted by file name, into output and returns the
// output path. Segment names embed the question index, so file name order is
// question order.
func (c *Concatenator) Concat(ctx context.Context, segments []string, output string) (string, error) {
	if len(segments) == 0 {
		concatFailures.WithLabelValues("no_segments").Inc()
		return "", ErrNoSegments
	}

	ctx, span := c.tracer.Start(ctx, "ffmpeg.concat", trace.WithAttributes(
		attribute.Int("ffmpeg.segments", len(segments)),
		attribute.String("ffmpeg.preset", c.preset),
	))
	defer span.End()

	ordered, err := absoluteSorted(segments)
	if err != nil {
		return "", c.fail(span, "manifest", err)
	}

	output, err = filepath.Abs(output)
	if err != nil {
		return "", c.fail(span, "manifest", err)
	}
	workDir := filepath.Dir(output)

	manifest := filepath.Join(workDir, manifestName)
	if err := writeManifestFile(manifest, ordered); err != nil {
		return "", c.fail(span, "manifest", err)
	}
	defer os.Remove(manifest)

	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", c.fail(span, "manifest", fmt.Errorf("remove stale output: %w", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	out, runErr := c.runner.Run(runCtx, Args(manifest, output, c.preset), mountsFor(ordered, workDir))
	concatDuration.Observe(time.Since(start).Seconds())

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		concatFailures.WithLabelValues("timeout").Inc()
		span.RecordError(runCtx.Err())
		span.SetStatus(codes.Error, "timed out")
		c.logger.Error().Dur("timeout", c.timeout).Msg("ffmpeg concat timed out")
		return "", fmt.Errorf("%w: timed out after %s", ErrTranscodeFailed, c.timeout)
	}
	if runErr != nil {
		detail := strings.TrimSpace(string(out))
		c.logger.Error().Err(runErr).Str("output", detail).Msg("ffmpeg concat failed")
		concatFailures.WithLabelValues("exit").Inc()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "ffmpeg failed")
		if detail != "" {
			return "", fmt.Errorf("%w: %w: %s", ErrTranscodeFailed, runErr, detail)
		}
		return "", fmt.Errorf("%w: %w", ErrTranscodeFailed, runErr)
	}

	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		concatFailures.WithLabelValues("missing_output").Inc()
		span.SetStatus(codes.Error, "missing output")
		return "", fmt.Errorf("%w: ffmpeg produced no output at %s", ErrTranscodeFailed, output)
	}

	span.SetAttributes(attribute.Int64("ffmpeg.output_bytes", info.Size()))
	span.SetStatus(codes.Ok, "concatenated")
	c.logger.Debug().Int("segments", len(ordered)).Int64("bytes", info.Size()).Msg("segments concatenated")

	return output, nil
}

func (c *Concatenator) fail(span trace.Span, reason string, err error) error {
	concatFailures.WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return fmt.Errorf("%w: %w", ErrTranscodeFailed, err)
}

func absoluteSorted(segments []string) ([]string, error) {
	ordered := make([]string, 0, len(segments))
	for _, segment := range segments {
		abs, err := filepath.Abs(segment)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", segment, err)
		}
		ordered = append(ordered, abs)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		bi, bj := filepath.Base(ordered[i]), filepath.Base(ordered[j])
		if bi != bj {
			return bi < bj
		}
		return ordered[i] < ordered[j]
	})
	return ordered, nil
}

func writeManifestFile(path string, segments []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := WriteManifest(f, segments); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

func mountsFor(segments []string, workDir string) []string {
	seen := map[string]struct{}{workDir: {}}
	mounts := []string{workDir}
	for _, segment := range segments {
		dir := filepath.Dir(segment)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		mounts = append(mounts, dir)
	}
	return mounts
}
