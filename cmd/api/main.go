package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DevNeccon/frs-video-survey/internal/config"
	"github.com/DevNeccon/frs-video-survey/internal/database"
	"github.com/DevNeccon/frs-video-survey/internal/handler"
	"github.com/DevNeccon/frs-video-survey/internal/middleware"
	"github.com/DevNeccon/frs-video-survey/internal/repository"
	"github.com/DevNeccon/frs-video-survey/internal/router"
	"github.com/DevNeccon/frs-video-survey/internal/service"
	"github.com/DevNeccon/frs-video-survey/internal/storage"
	cloud "github.com/DevNeccon/frs-video-survey/pkg/cloudinary"
	dockerexec "github.com/DevNeccon/frs-video-survey/pkg/docker"
	"github.com/DevNeccon/frs-video-survey/pkg/ffmpeg"
	"github.com/DevNeccon/frs-video-survey/pkg/geoip"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = logger.With().Str("service", cfg.AppName).Str("env", cfg.AppEnv).Logger()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, geolocation cache and redis events disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, lifecycle events go to redis only")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	layout := storage.NewLayout(cfg.MediaDir)
	if err := os.MkdirAll(layout.Root(), 0o755); err != nil {
		logger.Fatal().Err(err).Str("media_dir", cfg.MediaDir).Msg("failed to create media directory")
	}

	geoClient, err := geoip.New(geoip.Config{
		Provider: cfg.GeoLookupProvider,
		CacheTTL: cfg.GeoLookupCacheTTL,
	}, redisClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure geolocation")
	}

	localRunner := ffmpeg.NewLocalRunner(cfg.FFmpegBinary)
	var runner ffmpeg.Runner = localRunner
	if cfg.TranscodeBackend == config.TranscodeBackendLocal {
		if path, err := localRunner.Check(); err != nil {
			logger.Warn().Err(err).Msg("ffmpeg not found, exports will fail until it is installed")
		} else {
			logger.Info().Str("binary", localRunner.Binary()).Str("path", path).Msg("using local ffmpeg")
		}
	}
	if cfg.TranscodeBackend == config.TranscodeBackendDocker {
		containerRunner, err := dockerexec.NewContainerRunner(dockerexec.Config{
			Host:          cfg.DockerHost,
			Image:         cfg.TranscodeImage,
			MemoryLimitMB: int64(cfg.TranscodeMemoryMB),
			CPUShares:     int64(cfg.TranscodeCPUShares),
			Logger:        logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create container transcoder")
		}
		defer containerRunner.Close()
		runner = containerRunner
	}
	transcoder := ffmpeg.NewConcatenator(runner,
		ffmpeg.WithTimeout(cfg.TranscodeTimeout),
		ffmpeg.WithPreset(cfg.FFmpegPreset),
		ffmpeg.WithLogger(logger),
	)

	var mirror service.FileUploader
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		mirror = uploader
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	events := service.NewEventPublisher(natsConn, redisClient, cfg.NATSSubject, logger)

	surveyRepo := repository.NewSurveyRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)

	surveyService := service.NewSurveyService(surveyRepo, validate, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDeps{
		Surveys:     surveyRepo,
		Submissions: submissionRepo,
		Answers:     answerRepo,
		Media:       repository.NewMediaFileRepository(db),
		Layout:      layout,
		Inspector:   service.NewClientInspector(geoClient, logger),
		Events:      events,
		Validator:   validate,
		UploadMaxMB: cfg.UploadMaxMB,
	}, logger)
	exportService := service.NewExportService(service.ExportDeps{
		Surveys:       surveyRepo,
		Submissions:   submissionRepo,
		Answers:       answerRepo,
		Exports:       repository.NewExportRepository(db),
		Layout:        layout,
		Transcoder:    transcoder,
		Mirror:        mirror,
		Events:        events,
		WorkDir:       cfg.ExportWorkDir,
		MaxConcurrent: cfg.ExportMaxConcurrent,
	}, logger)

	exportLimit := middleware.RateLimit("export", cfg.ExportRateLimit, time.Minute)

	checks := map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if cfg.TranscodeBackend == config.TranscodeBackendLocal {
		checks["ffmpeg"] = handler.TranscoderCheck(localRunner)
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxMB + 1) * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.TranscodeTimeout + 30*time.Second,
	})

	middleware.Register(app, middleware.Config{
		Logger:    &logger,
		AccessLog: cfg.AppEnv == "development",
	})
	router.Register(app, cfg, router.Dependencies{
		SurveyHandler:     handler.NewSurveyHandler(surveyService, submissionService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, exportService, exportLimit, logger),
		HealthChecks:      checks,
		ExposeMetrics:     true,
	})

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddress()).Msg("http server listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
