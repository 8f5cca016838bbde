package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported TTS providers
const (
	ProviderMiniMax  = "minimax"
	ProviderCartesia = "cartesia"
	ProviderDeepgram = "deepgram"
	ProviderExec     = "exec"
	ProviderMock     = "mock"
)

// Tracing exporters
const (
	TracingNone   = "none"
	TracingStdout = "stdout"
	TracingOTLP   = "otlp"
)

// Config holds all configuration for the document audio service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8000"`
	GRPCPort       string `envconfig:"GRPC_PORT" default:"9090"` // gRPC health service, "0" disables
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	// Segmentation and merge configuration
	MaxChunkSize      int    `envconfig:"MAX_CHUNK_SIZE" default:"2000"` // Characters per synthesis request
	MinChunkSize      int    `envconfig:"MIN_CHUNK_SIZE" default:"100"`  // Coalescing threshold
	PreferFormatAware bool   `envconfig:"PREFER_FORMAT_AWARE" default:"true"`
	FFmpegPath        string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	PDFToTextPath     string `envconfig:"PDFTOTEXT_PATH" default:"pdftotext"`

	// TTS configuration
	TTSProvider       string  `envconfig:"TTS_PROVIDER" default:"minimax"`
	TTSRequestDelayMs int     `envconfig:"TTS_REQUEST_DELAY_MS" default:"500"` // Fixed delay between synthesis calls
	TTSTimeout        int     `envconfig:"TTS_TIMEOUT" default:"30"`           // seconds
	DefaultVoice      string  `envconfig:"DEFAULT_VOICE" default:"female-qn-qingse"`
	DefaultSpeed      float64 `envconfig:"DEFAULT_SPEED" default:"1.0"`
	DefaultVolume     float64 `envconfig:"DEFAULT_VOLUME" default:"1.0"`
	DefaultPitch      int     `envconfig:"DEFAULT_PITCH" default:"0"`

	// MiniMax TTS API configuration
	MiniMaxAPIKey  string `envconfig:"MINIMAX_API_KEY" default:""`
	MiniMaxGroupID string `envconfig:"MINIMAX_GROUP_ID" default:""`
	MiniMaxURL     string `envconfig:"MINIMAX_URL" default:"https://api.minimax.chat/v1/t2a_v2"`

	// Cartesia TTS API configuration
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-english"`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`

	// Deepgram TTS (Aura) configuration
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"aura-asteria-en"`

	// External synthesizer command (JSON request on stdin, PCM lines on stdout)
	TTSCommand    string `envconfig:"TTS_COMMAND" default:""`
	TTSSampleRate int    `envconfig:"TTS_SAMPLE_RATE" default:"24000"`

	// Voice catalogue override (YAML list of voices)
	VoicesFile string `envconfig:"VOICES_FILE" default:""`

	// Storage configuration
	UploadPath      string `envconfig:"UPLOAD_PATH" default:"uploads"`
	AudioOutputPath string `envconfig:"AUDIO_OUTPUT_PATH" default:"audio_output"`
	MaxFileSizeMB   int    `envconfig:"MAX_FILE_SIZE_MB" default:"50"`
	JobStorePath    string `envconfig:"JOB_STORE_PATH" default:"data/jobs.db"` // Empty keeps job state in memory only
	JobTTLMinutes   int    `envconfig:"JOB_TTL_MINUTES" default:"60"`
	JanitorInterval int    `envconfig:"JANITOR_INTERVAL_SECONDS" default:"300"`

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"1000"`       // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics

	// Tracing: "none", "stdout" or "otlp"
	TracingExporter string `envconfig:"TRACING_EXPORTER" default:"none"`
	OTLPEndpoint    string `envconfig:"OTLP_ENDPOINT" default:"localhost:4317"`
	OTLPInsecure    bool   `envconfig:"OTLP_INSECURE" default:"true"`

	// Job status events, disabled when NATS_URL is empty
	NATSURL           string `envconfig:"NATS_URL" default:""`
	NATSSubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"docaudio.jobs"`
	NATSTimeoutMs     int    `envconfig:"NATS_TIMEOUT_MS" default:"2000"`
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express
func (c *Config) Validate() error {
	if c.MinChunkSize <= 0 {
		return fmt.Errorf("MIN_CHUNK_SIZE must be positive, got %d", c.MinChunkSize)
	}
	if c.MaxChunkSize <= c.MinChunkSize {
		return fmt.Errorf("MAX_CHUNK_SIZE (%d) must be greater than MIN_CHUNK_SIZE (%d)", c.MaxChunkSize, c.MinChunkSize)
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", c.MaxFileSizeMB)
	}
	if c.TTSRequestDelayMs < 0 {
		return fmt.Errorf("TTS_REQUEST_DELAY_MS must not be negative, got %d", c.TTSRequestDelayMs)
	}

	switch c.TracingExporter {
	case TracingNone, TracingStdout, TracingOTLP:
	default:
		return fmt.Errorf("unknown TRACING_EXPORTER %q", c.TracingExporter)
	}
	if c.NATSURL != "" && c.NATSSubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT_PREFIX is required when NATS_URL is set")
	}

	switch c.TTSProvider {
	case ProviderMiniMax, ProviderMock:
	case ProviderCartesia:
		if c.CartesiaAPIKey == "" {
			return fmt.Errorf("CARTESIA_API_KEY is required for provider %q", c.TTSProvider)
		}
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for provider %q", c.TTSProvider)
		}
	case ProviderExec:
		if c.TTSCommand == "" {
			return fmt.Errorf("TTS_COMMAND is required for provider %q", c.TTSProvider)
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	return nil
}

// MaxFileSizeBytes returns the upload limit in bytes
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// Origins returns the parsed CORS origin list
func (c *Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
