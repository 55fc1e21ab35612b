package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultImage ships an ffmpeg entrypoint with libx264 and aac.
const DefaultImage = "jrottenberg/ffmpeg:6.1-ubuntu"

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "frs",
		Subsystem: "container",
		Name:      "run_duration_seconds",
		Help:      "Duration of containerised transcoder runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"image"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frs",
		Subsystem: "container",
		Name:      "run_timeouts_total",
		Help:      "Number of containerised runs that hit the deadline",
	}, []string{"image"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "frs",
		Subsystem: "container",
		Name:      "run_failures_total",
		Help:      "Number of containerised runs that failed",
	}, []string{"image"})
)

// ErrNonZeroExit is returned when the container exits with a failure status.
var ErrNonZeroExit = errors.New("container exited with non-zero status")

// Config groups container runner configuration values.
type Config struct {
	Host          string
	Image         string
	Entrypoint    []string
	MemoryLimitMB int64
	CPUShares     int64
	Logger        zerolog.Logger
}

// ContainerRunner executes the transcoder inside a throwaway container. Each
// mounted host directory is bind-mounted at the same path so absolute paths
// in arguments and manifests resolve identically inside the container.
type ContainerRunner struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewContainerRunner constructs a Docker backed runner.
func NewContainerRunner(cfg Config) (*ContainerRunner, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if strings.TrimSpace(cfg.Image) == "" {
		cfg.Image = DefaultImage
	}
	if len(cfg.Entrypoint) == 0 {
		cfg.Entrypoint = []string{"ffmpeg"}
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &ContainerRunner{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/DevNeccon/frs-video-survey/pkg/docker"),
		logger: logger.With().Str("component", "container_runner").Logger(),
	}, nil
}

// BindMounts converts host directories into identity bind mounts. The first
// directory is writable, the rest are read-only inputs.
func BindMounts(dirs []string) []mount.Mount {
	mounts := make([]mount.Mount, 0, len(dirs))
	for i, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   dir,
			Target:   dir,
			ReadOnly: i > 0,
		})
	}
	return mounts
}

// Run executes the configured entrypoint with args and returns the combined
// container output. The deadline of ctx bounds the run; on expiry the
// container is killed.
func (r *ContainerRunner) Run(parent context.Context, args []string, mounts []string) ([]byte, error) {
	image := r.cfg.Image
	ctx, span := r.tracer.Start(parent, "docker.container.run", trace.WithAttributes(
		attribute.String("docker.image", image),
		attribute.Int("docker.mounts", len(mounts)),
	))
	defer span.End()

	hostCfg := &container.HostConfig{
		Mounts:      BindMounts(mounts),
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    r.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: r.cfg.CPUShares,
		},
	}

	config := &container.Config{
		Image:        image,
		Entrypoint:   r.cfg.Entrypoint,
		Cmd:          args,
		AttachStdout: true,
		AttachStderr: true,
	}

	start := time.Now()
	resp, err := r.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		runFailures.WithLabelValues(image).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		runFailures.WithLabelValues(image).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("container start: %w", err)
	}

	statusCh, errCh := r.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)

	exitCode := int64(0)
	var waitErr error
	select {
	case err := <-errCh:
		waitErr = err
	case status := <-statusCh:
		exitCode = status.StatusCode
	case <-ctx.Done():
		waitErr = ctx.Err()
	}
	runDuration.WithLabelValues(image).Observe(time.Since(start).Seconds())

	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			runTimeouts.WithLabelValues(image).Inc()
			killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
				r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
			}
			span.SetStatus(codes.Error, "run timed out")
		} else {
			runFailures.WithLabelValues(image).Inc()
			span.SetStatus(codes.Error, waitErr.Error())
		}
		span.RecordError(waitErr)
		return nil, fmt.Errorf("container wait: %w", waitErr)
	}

	output := r.collectLogs(containerID)

	if exitCode != 0 {
		runFailures.WithLabelValues(image).Inc()
		span.SetStatus(codes.Error, "non-zero exit")
		return output, fmt.Errorf("%w: %d", ErrNonZeroExit, exitCode)
	}

	span.SetStatus(codes.Ok, "completed")
	return output, nil
}

func (r *ContainerRunner) collectLogs(containerID string) []byte {
	logCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logReader, err := r.client.ContainerLogs(logCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to fetch container logs")
		return nil
	}
	defer logReader.Close()

	combined, err := demuxLogs(logReader)
	if err != nil {
		r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to read container logs")
	}
	return combined
}

func demuxLogs(reader io.Reader) ([]byte, error) {
	var combined bytes.Buffer
	if _, err := stdcopy.StdCopy(&combined, &combined, reader); err != nil {
		return combined.Bytes(), err
	}
	return combined.Bytes(), nil
}

// Close shuts down the runner's underlying client.
func (r *ContainerRunner) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
