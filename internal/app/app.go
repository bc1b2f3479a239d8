package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	grpcapi "ai-scene-narrator-service/internal/api/grpc"
	"ai-scene-narrator-service/internal/config"
	"ai-scene-narrator-service/internal/events"
	"ai-scene-narrator-service/internal/observability/logging"
	"ai-scene-narrator-service/internal/observability/metrics"
	"ai-scene-narrator-service/internal/service/camera"
	cameramock "ai-scene-narrator-service/internal/service/camera/mock"
	"ai-scene-narrator-service/internal/service/connectivity"
	"ai-scene-narrator-service/internal/service/session"
	"ai-scene-narrator-service/internal/service/stt"
	"ai-scene-narrator-service/internal/service/stt/google"
	sttmock "ai-scene-narrator-service/internal/service/stt/mock"
	"ai-scene-narrator-service/internal/service/tts"
	"ai-scene-narrator-service/internal/service/tts/execspeaker"
	ttsmock "ai-scene-narrator-service/internal/service/tts/mock"
	"ai-scene-narrator-service/internal/service/vision"
	"ai-scene-narrator-service/internal/service/vision/gemini"
	visionmock "ai-scene-narrator-service/internal/service/vision/mock"
	"ai-scene-narrator-service/internal/service/vision/openaicompat"
	"ai-scene-narrator-service/internal/store"
)

// ServiceName identifies the service in logs.
const ServiceName = "ai-scene-narrator-service"

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Metrics      *metrics.Metrics
	Store        *store.Store
	Publisher    *events.Publisher
	Orchestrator *session.Orchestrator
	GRPC         *grpcapi.Server

	ctx        context.Context
	cancel     context.CancelFunc
	listener   stt.Listener
	subscriber *connectivity.Subscriber
	ready      atomic.Bool
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) *Application {
	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Scene narrator application created")
	return a
}

// setupLogger configures zerolog for the service. ZEROLOG_LOG_LEVEL and
// ENV=dev override the configured level and format.
func (a *Application) setupLogger() {
	level := a.Cfg.Observability.LogLevel
	if envLevel := os.Getenv("ZEROLOG_LOG_LEVEL"); envLevel != "" {
		level = strings.ToLower(envLevel)
	}
	format := a.Cfg.Observability.LogFormat
	if os.Getenv("ENV") == "dev" {
		format = "console"
	}

	logging.Init(logging.Config{
		Level:      level,
		Format:     format,
		TimeFormat: time.RFC3339,
	})

	a.Logger = log.With().
		Str("service", ServiceName).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// OpenStore opens the person and preference store.
func (a *Application) OpenStore() (*store.Store, error) {
	st, err := store.Open(store.Options{
		Dir:      a.Cfg.Store.Dir,
		InMemory: a.Cfg.Store.InMemory,
		Metrics:  a.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// Init builds every collaborator from the configuration and wires the
// orchestrator. Nothing is spoken until Start.
func (a *Application) Init(ctx context.Context) error {
	initLogger := a.Logger.With().
		Str("method", "Init").
		Logger()

	a.ctx, a.cancel = context.WithCancel(ctx)
	cfg := a.Cfg

	cam, err := newCamera(cfg.Camera)
	if err != nil {
		return err
	}
	vis, err := newVision(a.ctx, cfg.Vision, a.Metrics)
	if err != nil {
		return err
	}
	a.listener, err = newListener(a.ctx, cfg.STT, cfg.Narration.Language)
	if err != nil {
		return err
	}
	speaker, err := newSpeaker(cfg.TTS)
	if err != nil {
		return err
	}
	if a.Store, err = a.OpenStore(); err != nil {
		return err
	}

	a.Publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicSessions:   cfg.Kafka.TopicSessions,
		TopicUtterances: cfg.Kafka.TopicUtterances,
		Principal:       cfg.Kafka.Principal,
	})

	a.GRPC = grpcapi.NewServer(cfg.Service.GRPCPort, a.Metrics)

	a.Orchestrator = session.New(a.ctx, session.Deps{
		Camera:         cam,
		Vision:         vis,
		Speaker:        speaker,
		Listener:       a.listener,
		People:         a.Store,
		Preferences:    a.Store,
		Events:         a.Publisher,
		Metrics:        a.Metrics,
		OnConnectivity: a.GRPC.SetOnline,
	}, session.Options{
		Language:              cfg.Narration.Language,
		SpeechRate:            cfg.Narration.SpeechRate,
		NavigationInterval:    cfg.Narration.NavigationInterval,
		ContinuousInterval:    cfg.Narration.ContinuousInterval,
		HistorySize:           cfg.Narration.ContinuousHistorySize,
		NavigationMaxFailures: cfg.Narration.NavigationMaxFailures,
	})

	initLogger.Info().
		Str("camera", cfg.Camera.Source).
		Str("vision", cfg.Vision.Provider).
		Str("tts", cfg.TTS.Provider).
		Str("stt", cfg.STT.Provider).
		Bool("kafka", cfg.Kafka.Enabled).
		Msg("Collaborators initialized")
	return nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	if a.Orchestrator == nil {
		return errors.New("app: Init must be called before Start")
	}

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Scene narrator starting")

	if err := a.Orchestrator.LoadPreferences(a.ctx); err != nil {
		startLogger.Warn().Err(err).Msg("Saved preferences not applied")
	}

	if url := a.Cfg.Connectivity.NATSURL; url != "" {
		sub, err := connectivity.NewSubscriber(url, a.Cfg.Connectivity.Subject, a.Orchestrator)
		if err != nil {
			return err
		}
		a.subscriber = sub
	}

	if a.Cfg.Narration.AutoStart {
		if err := a.Orchestrator.Start(a.ctx); err != nil {
			startLogger.Warn().Err(err).Msg("Narrator activated without a camera")
		}
	}

	a.ready.Store(true)
	return nil
}

// Ready reports whether Start has completed.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Scene narrator shutting down")
	a.ready.Store(false)

	if a.Orchestrator != nil {
		a.Orchestrator.Deactivate()
	}
	if err := a.subscriber.Close(); err != nil {
		shutdownLogger.Warn().Err(err).Msg("Connectivity subscriber close failed")
	}
	if a.cancel != nil {
		a.cancel()
	}
	if c, ok := a.listener.(io.Closer); ok {
		if err := c.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Listener close failed")
		}
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Publisher close failed")
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Store close failed")
		}
	}
}

func newCamera(cfg config.CameraConfig) (camera.FrameSource, error) {
	opts := camera.EncodeOptions{MaxDimension: cfg.MaxDimension, Quality: cfg.JPEGQuality}
	switch strings.ToLower(cfg.Source) {
	case "snapshot":
		if cfg.SnapshotURL == "" {
			return nil, errors.New("CAMERA_SNAPSHOT_URL is required for the snapshot source")
		}
		return camera.NewSnapshot(cfg.SnapshotURL, cfg.Timeout, opts), nil
	case "file":
		if cfg.FilePath == "" {
			return nil, errors.New("CAMERA_FILE_PATH is required for the file source")
		}
		return camera.NewFile(cfg.FilePath, opts), nil
	case "mock", "":
		return cameramock.New(), nil
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.Source)
	}
}

func newVision(ctx context.Context, cfg config.VisionConfig, m *metrics.Metrics) (vision.Service, error) {
	var backend vision.Backend
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		b, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL})
		if err != nil {
			return nil, fmt.Errorf("gemini backend: %w", err)
		}
		backend = b
	case "openai":
		b, err := openaicompat.New(openaicompat.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, MaxRetries: 2})
		if err != nil {
			return nil, fmt.Errorf("openai backend: %w", err)
		}
		backend = b
	case "mock", "":
		return visionmock.New(), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
	return vision.NewClient(backend, m).WithTimeout(cfg.Timeout), nil
}

func newSpeaker(cfg config.TTSConfig) (tts.Speaker, error) {
	switch strings.ToLower(cfg.Provider) {
	case "exec":
		return execspeaker.New(execspeaker.Config{Command: cfg.Command, VoiceCacheTTL: cfg.VoiceCacheTTL}), nil
	case "mock", "":
		return ttsmock.New(), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.Provider)
	}
}

func newListener(ctx context.Context, cfg config.STTConfig, language string) (stt.Listener, error) {
	switch strings.ToLower(cfg.Provider) {
	case "google":
		gcfg := google.DefaultConfig()
		gcfg.LanguageCode = language
		gcfg.SampleRateHz = int32(cfg.SampleRateHz)
		gcfg.AudioEncoding = cfg.AudioEncoding
		gcfg.CaptureCommand = cfg.CaptureCommand
		gcfg.ListenTimeout = cfg.ListenTimeout
		l, err := google.New(ctx, gcfg)
		if err != nil {
			return nil, fmt.Errorf("google stt: %w", err)
		}
		return l, nil
	case "mock", "":
		return sttmock.New(), nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Provider)
	}
}
