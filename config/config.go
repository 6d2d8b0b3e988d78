package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`

	// Application paths
	LogDir   string `json:"log_dir"`
	AssetDir string `json:"asset_dir"`

	// CORS Configuration
	CORS CORSConfig `json:"cors"`

	// Rate Limiting
	RateLimit RateLimitConfig `json:"rate_limit"`

	// Database settings
	Database DatabaseConfig `json:"database"`

	// Proxy pool settings
	Proxy ProxyConfig `json:"proxy"`

	// Download settings
	Download DownloadConfig `json:"download"`

	// Transcription settings
	Transcription TranscriptionConfig `json:"transcription"`

	// Worker queue settings
	Queue QueueConfig `json:"queue"`

	// Optional S3-compatible transcript mirror
	Spaces SpacesConfig `json:"spaces"`

	// Application version
	Version string `json:"version"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path           string `json:"path"`
	MaxConnections int    `json:"max_connections"`
}

type ProxyConfig struct {
	// SourceURL is the upstream proxy listing endpoint; the API key is
	// appended to it verbatim.
	SourceURL    string        `json:"source_url"`
	APIKey       string        `json:"api_key"`
	CheckURL     string        `json:"check_url"`
	CheckTimeout time.Duration `json:"check_timeout"`
	FetchTimeout time.Duration `json:"fetch_timeout"`
	SnapshotPath string        `json:"snapshot_path"`
	SnapshotTTL  time.Duration `json:"snapshot_ttl"`
}

type DownloadConfig struct {
	Timeout      time.Duration `json:"timeout"`
	ProbeTimeout time.Duration `json:"probe_timeout"`
	CookiesFile  string        `json:"cookies_file"`
	MaxHeight    int           `json:"max_height"`
	AudioQuality string        `json:"audio_quality"`
}

type TranscriptionConfig struct {
	WhisperBin string        `json:"whisper_bin"`
	Model      string        `json:"model"`
	Timeout    time.Duration `json:"timeout"`
}

type QueueConfig struct {
	Workers      int `json:"workers"`
	MaxQueueSize int `json:"max_queue_size"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`
}

type SpacesConfig struct {
	Enabled   bool   `json:"enabled"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
}

// MediaDir is where downloaded media files are stored.
func (c *Config) MediaDir() string {
	return filepath.Join(c.AssetDir, "media")
}

// SubtitleDir is where generated SRT files are stored.
func (c *Config) SubtitleDir() string {
	return filepath.Join(c.AssetDir, "srt")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Server settings
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),

		// Application paths
		LogDir:   getEnv("LOG_DIR", "/var/log/tubetext"),
		AssetDir: getEnv("ASSET_DIR", "./assets"),

		// Application version
		Version: getEnv("VERSION", "1.0.0"),

		// Request and shutdown timeouts
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Minute),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		// CORS Configuration
		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "OPTIONS"},
			),
			AllowedHeaders:   getEnvAsStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type"}),
			ExposedHeaders:   getEnvAsStringSlice("CORS_EXPOSED_HEADERS", []string{}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		// Rate Limiting
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
		},

		// Database
		Database: DatabaseConfig{
			Path:           getEnv("DB_PATH", "/var/lib/tubetext/data.db"),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 10),
		},

		// Proxy pool
		Proxy: ProxyConfig{
			SourceURL:    getEnv("PROXY_SOURCE_URL", "http://htmlweb.ru/json/proxy/get?country=RU&perpage=100&api_key="),
			APIKey:       getEnv("PROXY_API_KEY", ""),
			CheckURL:     getEnv("PROXY_CHECK_URL", "https://httpbin.org/ip"),
			CheckTimeout: getEnvAsDuration("PROXY_CHECK_TIMEOUT", 5*time.Second),
			FetchTimeout: getEnvAsDuration("PROXY_FETCH_TIMEOUT", 10*time.Second),
			SnapshotPath: getEnv("PROXY_SNAPSHOT_PATH", "/var/lib/tubetext/proxies.json"),
			SnapshotTTL:  getEnvAsDuration("PROXY_SNAPSHOT_TTL", 24*time.Hour),
		},

		// Download
		Download: DownloadConfig{
			Timeout:      getEnvAsDuration("DOWNLOAD_TIMEOUT", 10*time.Minute),
			ProbeTimeout: getEnvAsDuration("DOWNLOAD_PROBE_TIMEOUT", 30*time.Second),
			CookiesFile:  getEnv("COOKIES_FILE", "cookies.txt"),
			MaxHeight:    getEnvAsInt("DOWNLOAD_MAX_HEIGHT", 720),
			AudioQuality: getEnv("DOWNLOAD_AUDIO_QUALITY", "192K"),
		},

		// Transcription
		Transcription: TranscriptionConfig{
			WhisperBin: getEnv("WHISPER_BIN", "whisper"),
			Model:      getEnv("WHISPER_MODEL", "base"),
			Timeout:    getEnvAsDuration("TRANSCRIBE_TIMEOUT", 30*time.Minute),
		},

		// Worker queue
		Queue: QueueConfig{
			Workers:      getEnvAsInt("QUEUE_WORKERS", 4),
			MaxQueueSize: getEnvAsInt("QUEUE_MAX_SIZE", 100),
		},

		// Transcript mirror
		Spaces: SpacesConfig{
			Enabled:   getEnvAsBool("SPACES_ENABLED", false),
			AccessKey: getEnv("SPACES_ACCESS_KEY", ""),
			SecretKey: getEnv("SPACES_SECRET_KEY", ""),
			Region:    getEnv("SPACES_REGION", "us-east-1"),
			Endpoint:  getEnv("SPACES_ENDPOINT", ""),
			Bucket:    getEnv("SPACES_BUCKET", ""),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}

	if err := validateTimeouts(c); err != nil {
		return err
	}

	if err := validateServices(c); err != nil {
		return err
	}

	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.MediaDir(), "media directory"},
		{c.SubtitleDir(), "subtitle directory"},
		{filepath.Dir(c.Database.Path), "database directory"},
		{filepath.Dir(c.Proxy.SnapshotPath), "proxy snapshot directory"},
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Proxy.CheckTimeout <= 0 {
		return fmt.Errorf("proxy check timeout must be positive")
	}
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}
	return nil
}

func validateServices(c *Config) error {
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue workers must be positive")
	}
	if c.Queue.MaxQueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}
	if c.Spaces.Enabled {
		if c.Spaces.Endpoint == "" || c.Spaces.Bucket == "" {
			return fmt.Errorf("spaces endpoint and bucket are required when enabled")
		}
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			return strings.Split(value, ",")
		}
	}
	return defaultValue
}
