package config

import "os"

// Secrets come from the environment, never from the checked-in config.
var (
	AuthToken    = os.Getenv("API_AUTH_TOKEN")
	NoAuthBypass = os.Getenv("NO_AUTH_BYPASS") == "true" //local development only

	GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	RedisPassword = os.Getenv("REDIS_PASSWORD")
)
