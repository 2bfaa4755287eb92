package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Game      GameConfig
	Bot       BotConfig
	Generator GeneratorConfig
	Storage   StorageConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host string
	Port int
	Env  string // "development" or "production"
}

// GameConfig holds round and ledger parameters
type GameConfig struct {
	RoundDuration     time.Duration
	TickInterval      time.Duration
	CurrentTextLength int // live window capacity, in words
	ChunkSize         int // character threshold that triggers a seal
}

// BotConfig holds the fallback contributor's parameters
type BotConfig struct {
	Name               string
	MinWords           int
	MaxWords           int
	LookbackMultiplier int // bot context capacity = CurrentTextLength * this
	StopWords          []string
	BanWords           []string
}

// GeneratorConfig holds the external sentence generator parameters
type GeneratorConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// StorageConfig holds persistence parameters
type StorageConfig struct {
	DataDir string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Default returns the configuration defaults, before flag and env
// overrides are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Env:  "development",
		},
		Game: GameConfig{
			RoundDuration:     30 * time.Second,
			TickInterval:      100 * time.Millisecond,
			CurrentTextLength: 50,
			ChunkSize:         2500,
		},
		Bot: BotConfig{
			Name:               "sntnz-bot",
			MinWords:           5,
			MaxWords:           12,
			LookbackMultiplier: 4,
			StopWords: []string{
				"a", "an", "the", "and", "or", "but", "of", "in",
				"on", "at", "to", "is", "it", "as", "for", "with",
			},
		},
		Generator: GeneratorConfig{
			Model:   "deepseek/deepseek-chat-v3.1:free",
			Timeout: 8 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the assembled configuration before start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Server.Port)
	}
	// The bot-firing checkpoints are tuned for rounds measured in tens
	// of seconds; below 2s they collapse into each other.
	if c.Game.RoundDuration < 2*time.Second {
		return errors.New("round duration must be at least 2 seconds")
	}
	if c.Game.TickInterval <= 0 || c.Game.TickInterval >= c.Game.RoundDuration {
		return errors.New("tick interval must be positive and shorter than the round duration")
	}
	if c.Game.CurrentTextLength < 1 {
		return errors.New("current text length must be at least 1")
	}
	if c.Game.ChunkSize < 1 {
		return errors.New("chunk size must be at least 1")
	}
	if c.Bot.MinWords < 1 || c.Bot.MaxWords < c.Bot.MinWords {
		return errors.New("bot sentence bounds must satisfy 1 <= min <= max")
	}
	if c.Bot.LookbackMultiplier < 1 {
		return errors.New("lookback multiplier must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
