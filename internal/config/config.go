// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Narration     NarrationConfig
	Camera        CameraConfig
	Vision        VisionConfig
	TTS           TTSConfig
	STT           STTConfig
	Store         StoreConfig
	Kafka         KafkaConfig
	Connectivity  ConnectivityConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener addresses and the service identity.
type ServiceConfig struct {
	Principal   string
	HTTPAddr    string
	GRPCPort    string
	MetricsAddr string
}

// NarrationConfig holds orchestrator defaults and loop timing.
type NarrationConfig struct {
	Language              string
	SpeechRate            float64
	NavigationInterval    time.Duration
	ContinuousInterval    time.Duration
	ContinuousHistorySize int
	NavigationMaxFailures int  // 0 = unbounded
	AutoStart             bool // activate at boot instead of waiting for the start button
}

// CameraConfig selects and configures the frame source.
type CameraConfig struct {
	Source       string // snapshot, file, mock
	SnapshotURL  string
	FilePath     string
	MaxDimension int
	JPEGQuality  int
	Timeout      time.Duration
}

// VisionConfig selects and configures the vision model provider.
type VisionConfig struct {
	Provider string // gemini, openai, mock
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// TTSConfig selects the speech output channel.
type TTSConfig struct {
	Provider      string // exec, mock
	Command       string
	VoiceCacheTTL time.Duration
}

// STTConfig selects the speech input channel.
type STTConfig struct {
	Provider       string // google, mock
	SampleRateHz   int
	AudioEncoding  string
	CaptureCommand string
	ListenTimeout  time.Duration
}

// StoreConfig configures the badger-backed person and preference store.
type StoreConfig struct {
	Dir      string
	InMemory bool
}

// KafkaConfig configures session event publishing.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicSessions   string
	TopicUtterances string
	Principal       string
}

// ConnectivityConfig configures the NATS connectivity notification feed.
type ConnectivityConfig struct {
	NATSURL string // empty disables the subscriber
	Subject string
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads the configuration from environment variables, falling back to
// defaults for missing or unparsable values.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-scene-narrator")

	return &Configuration{
		Service: ServiceConfig{
			Principal:   principal,
			HTTPAddr:    envOrDefault("HTTP_ADDR", ":8080"),
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
		Narration: NarrationConfig{
			Language:              envOrDefault("NARRATION_LANGUAGE", "en-US"),
			SpeechRate:            envOrDefaultFloat("NARRATION_SPEECH_RATE", 1.4),
			NavigationInterval:    envOrDefaultDuration("NAVIGATION_INTERVAL", 2*time.Second),
			ContinuousInterval:    envOrDefaultDuration("CONTINUOUS_INTERVAL", 4*time.Second),
			ContinuousHistorySize: envOrDefaultInt("CONTINUOUS_HISTORY_SIZE", 3),
			NavigationMaxFailures: envOrDefaultInt("NAVIGATION_MAX_FAILURES", 0),
			AutoStart:             envOrDefaultBool("NARRATION_AUTO_START", false),
		},
		Camera: CameraConfig{
			Source:       envOrDefault("CAMERA_SOURCE", "mock"),
			SnapshotURL:  envOrDefault("CAMERA_SNAPSHOT_URL", ""),
			FilePath:     envOrDefault("CAMERA_FILE_PATH", ""),
			MaxDimension: envOrDefaultInt("CAMERA_MAX_DIMENSION", 1024),
			JPEGQuality:  envOrDefaultInt("CAMERA_JPEG_QUALITY", 80),
			Timeout:      envOrDefaultDuration("CAMERA_TIMEOUT", 3*time.Second),
		},
		Vision: VisionConfig{
			Provider: envOrDefault("VISION_PROVIDER", "mock"),
			Model:    envOrDefault("VISION_MODEL", "gemini-2.5-flash"),
			APIKey:   envOrDefault("VISION_API_KEY", os.Getenv("API_KEY")),
			BaseURL:  envOrDefault("VISION_BASE_URL", ""),
			Timeout:  envOrDefaultDuration("VISION_TIMEOUT", 30*time.Second),
		},
		TTS: TTSConfig{
			Provider:      envOrDefault("TTS_PROVIDER", "mock"),
			Command:       envOrDefault("TTS_COMMAND", "espeak-ng"),
			VoiceCacheTTL: envOrDefaultDuration("TTS_VOICE_CACHE_TTL", 10*time.Minute),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			CaptureCommand: envOrDefault("STT_CAPTURE_COMMAND", "arecord"),
			ListenTimeout:  envOrDefaultDuration("STT_LISTEN_TIMEOUT", 8*time.Second),
		},
		Store: StoreConfig{
			Dir:      envOrDefault("STORE_DIR", "./data"),
			InMemory: envOrDefaultBool("STORE_IN_MEMORY", false),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultList("KAFKA_BROKERS", nil),
			TopicSessions:   envOrDefault("KAFKA_TOPIC_SESSIONS", "narration.session"),
			TopicUtterances: envOrDefault("KAFKA_TOPIC_UTTERANCES", "narration.utterance"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Connectivity: ConnectivityConfig{
			NATSURL: envOrDefault("NATS_URL", ""),
			Subject: envOrDefault("NATS_CONNECTIVITY_SUBJECT", "device.connectivity"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
