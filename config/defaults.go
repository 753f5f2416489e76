package config

import "github.com/spf13/viper"

// DefaultPort is the port the API server listens on when nothing else is configured.
const DefaultPort = 8093

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "acadlyst.db")

	// Server defaults
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.uploads_dir", "uploads")

	// Job system defaults
	v.SetDefault("jobs.workers", 10)
	v.SetDefault("jobs.poll_interval_seconds", 2)
	v.SetDefault("jobs.cleanup_after_hours", 0) // keep terminal jobs

	// AI defaults
	v.SetDefault("ai.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.quiz_model", "gemini-2.5-flash")
	v.SetDefault("ai.embedding_model", "text-embedding-004")
	v.SetDefault("ai.embedding_dimensions", 768)
	v.SetDefault("ai.temperature", 0.4)
	v.SetDefault("ai.quiz_temperature", 0.5)
	v.SetDefault("ai.timeout_seconds", 40) // per-call ceiling for chunk summarization
	v.SetDefault("ai.max_calls_per_minute", 30)

	// Free plan allowances, replenished monthly
	v.SetDefault("credits.summarizer", 2)
	v.SetDefault("credits.quiz", 2)
	v.SetDefault("credits.chat", 1)
	v.SetDefault("credits.chat_message", 20)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("ai.api_key", "ACADLYST_AI_API_KEY")
}
