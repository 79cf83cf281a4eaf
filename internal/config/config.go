package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted in AI_PROVIDER
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration
type Config struct {
	NodeEnv     string
	Port        string
	JWTSecret   string
	FrontendDir string
	PlantConfig string
	Database    DatabaseConfig
	AI          AIConfig
	Reports     ReportsConfig
	Video       VideoConfig
	Schedule    ScheduleConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Quiet    bool
	// DataDir and EmbeddedPort apply only to the embedded instance
	DataDir      string
	EmbeddedPort int
}

// Embedded reports whether Connect should start its own PostgreSQL.
// A localhost target without a password means nobody else is running one.
func (c DatabaseConfig) Embedded() bool {
	return c.Host == "localhost" && c.Password == ""
}

// AIConfig selects and configures the external model provider
type AIConfig struct {
	Provider       string
	GeminiAPIKey   string
	GeminiModel    string
	AnthropicKey   string
	AnthropicModel string
	Timeout        time.Duration
}

// ReportsConfig holds PDF export configuration
type ReportsConfig struct {
	Dir     string
	FontDir string
}

// VideoConfig holds frame sampling configuration
type VideoConfig struct {
	UploadDir      string
	SampleInterval time.Duration
	MaxFrames      int
	FrameSize      int
}

// ScheduleConfig holds background job schedules
type ScheduleConfig struct {
	ShiftSummaryCron string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		NodeEnv:     getEnv("NODE_ENV", "development"),
		Port:        getEnv("PORT", "3210"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		FrontendDir: os.Getenv("FRONTEND_DIR"),
		PlantConfig: getEnv("PLANT_CONFIG", "plant.yaml"),
		Database: DatabaseConfig{
			Enabled:  getEnv("DB_ENABLED", "false") == "true",
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "spectraq"),
			Quiet:    getEnv("DB_QUIET", "true") == "true",

			DataDir:      getEnv("DB_DATA_DIR", "./db_data"),
			EmbeddedPort: getInt("PG_EMBEDDED_PORT", 5433),
		},
		AI: AIConfig{
			Provider:       getEnv("AI_PROVIDER", ProviderGemini),
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
			Timeout:        getDuration("AI_TIMEOUT", 60*time.Second),
		},
		Reports: ReportsConfig{
			Dir:     getEnv("REPORTS_DIR", "reports"),
			FontDir: os.Getenv("REPORT_FONT_DIR"),
		},
		Video: VideoConfig{
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			SampleInterval: getDuration("VIDEO_SAMPLE_INTERVAL", 3*time.Second),
			MaxFrames:      getInt("VIDEO_MAX_FRAMES", 20),
			FrameSize:      getInt("VIDEO_FRAME_SIZE", 1024),
		},
		Schedule: ScheduleConfig{
			ShiftSummaryCron: os.Getenv("SHIFT_SUMMARY_CRON"),
		},
	}

	switch cfg.AI.Provider {
	case ProviderGemini:
		if cfg.AI.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required")
		}
	case ProviderAnthropic:
		if cfg.AI.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER=anthropic")
		}
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AI.Provider)
	}

	return cfg, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
