package config

// Config represents the core Acadlyst configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	AI       AIConfig       `mapstructure:"ai"`
	Credits  CreditsConfig  `mapstructure:"credits"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the Acadlyst HTTP server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	UploadsDir     string   `mapstructure:"uploads_dir"` // where multipart PDF uploads are spooled
}

// JobsConfig configures the async job system (core infrastructure)
type JobsConfig struct {
	Workers             int `mapstructure:"workers"`               // concurrent job workers (default: 10)
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"` // how often each worker checks for jobs (default: 2)
	CleanupAfterHours   int `mapstructure:"cleanup_after_hours"`   // terminal jobs older than this are purged; 0 = keep forever
}

// AIConfig configures the generative model endpoints
type AIConfig struct {
	APIKey              string  `mapstructure:"api_key"`
	BaseURL             string  `mapstructure:"base_url"` // override for tests/local gateways
	Model               string  `mapstructure:"model"`
	QuizModel           string  `mapstructure:"quiz_model"`
	EmbeddingModel      string  `mapstructure:"embedding_model"`
	EmbeddingDimensions int     `mapstructure:"embedding_dimensions"`
	Temperature         float64 `mapstructure:"temperature"`
	QuizTemperature     float64 `mapstructure:"quiz_temperature"`
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`
	MaxCallsPerMinute   int     `mapstructure:"max_calls_per_minute"` // 0 = unpaced
}

// CreditsConfig configures the per-user feature allowances.
// Owners (matched by user id) bypass counting entirely.
type CreditsConfig struct {
	Owners []string `mapstructure:"owners"`

	// Monthly free-plan allowances per feature family
	Summarizer  int `mapstructure:"summarizer"`
	Quiz        int `mapstructure:"quiz"`
	Chat        int `mapstructure:"chat"`
	ChatMessage int `mapstructure:"chat_message"`
}

// IsOwner reports whether the given user id is configured as an owner
// (unlimited) account.
func (c CreditsConfig) IsOwner(userID string) bool {
	for _, id := range c.Owners {
		if id == userID {
			return true
		}
	}
	return false
}
