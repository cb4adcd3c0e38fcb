package completion

// Config contains structured completion client configuration.
//   - APIKey: bearer token for the provider (required)
//   - BaseURL: provider root, requests go to {BaseURL}/chat/completions
//   - Models: priority list, tried in order
//   - StrictModelPrefixes: models that need every property listed as required
//   - Transport: "http" (hand-built requests) or "sdk" (openai-go)
//   - AttemptTimeout: per-model attempt timeout in seconds, 0 disables it
type Config struct {
	APIKey              string   `env:"AI_API_KEY"`
	BaseURL             string   `env:"AI_BASE_URL"              envDefault:"https://openrouter.ai/api/v1"`
	Models              []string `env:"AI_MODELS"                envDefault:"openai/gpt-4o-mini,google/gemini-2.0-flash-001,meta-llama/llama-3.3-70b-instruct" envSeparator:","`
	StrictModelPrefixes []string `env:"AI_STRICT_MODEL_PREFIXES" envDefault:"openai/,gpt-,o1,o3,o4"                                                              envSeparator:","`
	Transport           string   `env:"AI_TRANSPORT"             envDefault:"http"`
	AttemptTimeout      int      `env:"AI_ATTEMPT_TIMEOUT"       envDefault:"60"`
}
