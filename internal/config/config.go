package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
)

var (
	ErrInvalidBufferConfig        = errors.New("buffered amount low threshold must be less than max buffered amount")
	ErrInvalidChunkSize           = errors.New("chunk size must be greater than 0")
	ErrInvalidFirebaseConfig      = errors.New("Firebase credentials path must be set")
	ErrInvalidFirebaseProjectID   = errors.New("Firebase project ID must be set")
	ErrInvalidFirebaseDatabaseURL = errors.New("Firebase database URL must be set")
	ErrInvalidLogLevel            = errors.New("log level must be one of debug, info, warn, error")
)

// DefaultChunkSize is the size of one chunk frame payload (1 MiB).
const DefaultChunkSize = 1024 * 1024

// Config holds all application configuration
type Config struct {
	WebRTC   WebRTCConfig   `mapstructure:"webrtc"`
	Firebase FirebaseConfig `mapstructure:"firebase"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Log      LogConfig      `mapstructure:"log"`
}

// WebRTCConfig holds WebRTC-specific configuration
type WebRTCConfig struct {
	ICEServers                 []string      `mapstructure:"ice_servers"`
	BufferedAmountLowThreshold uint64        `mapstructure:"buffered_amount_low_threshold"`
	MaxBufferedAmount          uint64        `mapstructure:"max_buffered_amount"`
	OpenTimeout                time.Duration `mapstructure:"open_timeout"`
}

// FirebaseConfig holds Firebase client configuration
type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	DatabaseURL     string `mapstructure:"database_url"`
	CredentialsPath string `mapstructure:"credentials_path"`
}

// TransferConfig controls the chunked transfer protocol and where received files land
type TransferConfig struct {
	ChunkSize          int           `mapstructure:"chunk_size"`
	DownloadDir        string        `mapstructure:"download_dir"`
	AnswerPollInterval time.Duration `mapstructure:"answer_poll_interval"`
	AnswerAttempts     int           `mapstructure:"answer_attempts"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		WebRTC: WebRTCConfig{
			ICEServers:                 []string{"stun:stun.l.google.com:19302"},
			BufferedAmountLowThreshold: 512 * 1024,      // 512 KB
			MaxBufferedAmount:          4 * 1024 * 1024, // 4 MB, room for a few 1 MiB chunks
			OpenTimeout:                30 * time.Second,
		},
		Transfer: TransferConfig{
			ChunkSize:          DefaultChunkSize,
			DownloadDir:        ".",
			AnswerPollInterval: 5 * time.Second,
			AnswerAttempts:     24,
		},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path (if non-empty) or $HOME/.peerdrop.yaml,
// a .env file in the working directory, and PEERDROP_* environment variables.
// Example: PEERDROP_FIREBASE_DATABASE_URL=https://example.firebaseio.com
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PEERDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".peerdrop")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Transfer.DownloadDir = filepath.Clean(cfg.Transfer.DownloadDir)

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("webrtc.ice_servers", cfg.WebRTC.ICEServers)
	v.SetDefault("webrtc.buffered_amount_low_threshold", cfg.WebRTC.BufferedAmountLowThreshold)
	v.SetDefault("webrtc.max_buffered_amount", cfg.WebRTC.MaxBufferedAmount)
	v.SetDefault("webrtc.open_timeout", cfg.WebRTC.OpenTimeout)
	v.SetDefault("firebase.project_id", cfg.Firebase.ProjectID)
	v.SetDefault("firebase.database_url", cfg.Firebase.DatabaseURL)
	v.SetDefault("firebase.credentials_path", cfg.Firebase.CredentialsPath)
	v.SetDefault("transfer.chunk_size", cfg.Transfer.ChunkSize)
	v.SetDefault("transfer.download_dir", cfg.Transfer.DownloadDir)
	v.SetDefault("transfer.answer_poll_interval", cfg.Transfer.AnswerPollInterval)
	v.SetDefault("transfer.answer_attempts", cfg.Transfer.AnswerAttempts)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
}

// ICEServers converts the configured URLs into pion ICE servers
func (c *Config) ICEServers() []webrtc.ICEServer {
	if len(c.WebRTC.ICEServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: c.WebRTC.ICEServers}}
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if err := c.ValidateTransfer(); err != nil {
		return err
	}
	if c.Firebase.CredentialsPath == "" {
		return ErrInvalidFirebaseConfig
	}
	if c.Firebase.ProjectID == "" {
		return ErrInvalidFirebaseProjectID
	}
	if c.Firebase.DatabaseURL == "" {
		return ErrInvalidFirebaseDatabaseURL
	}
	return nil
}

// ValidateTransfer checks everything except the rendezvous credentials
func (c *Config) ValidateTransfer() error {
	if c.WebRTC.BufferedAmountLowThreshold >= c.WebRTC.MaxBufferedAmount {
		return ErrInvalidBufferConfig
	}
	if c.Transfer.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	return nil
}
