package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultModel                  = "claude-sonnet-4-5-20250929"
	defaultMaxContextTokens       = 4000
	defaultSummarizationThreshold = 0.8
	defaultRecentTurns            = 3
	defaultTimeoutSeconds         = 300
	defaultMaxRetries             = 3
)

func Load() (*Config, error) {
	llmConfig, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	routesFile := os.Getenv("ROUTES_FILE")

	var routes *Routes
	if routesFile != "" {
		routes, err = LoadRoutes(routesFile)
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		LLM:        llmConfig,
		Context:    loadContextConfig(),
		Memory:     loadMemoryConfig(),
		Embedder:   loadEmbedderConfig(),
		Storage:    loadStorageConfig(),
		Bots:       loadMultiBotConfig(),
		Server:     loadServerConfig(),
		Budget:     loadBudgetConfig(),
		Cron:       loadCronConfig(),
		Tools:      loadToolsConfig(),
		Routes:     routes,
		RoutesFile: routesFile,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges that would otherwise make the context window misbehave.
func (c *Config) Validate() error {
	if c.Context.RecentTurnsToKeep < 1 {
		return fmt.Errorf("RECENT_TURNS_TO_KEEP must be >= 1, got %d", c.Context.RecentTurnsToKeep)
	}
	if c.Context.MaxContextTokens < 1 {
		return fmt.Errorf("MAX_CONTEXT_TOKENS must be >= 1, got %d", c.Context.MaxContextTokens)
	}
	if c.Context.SummarizationThreshold <= 0 || c.Context.SummarizationThreshold > 1 {
		return fmt.Errorf("SUMMARIZATION_THRESHOLD must be in (0, 1], got %v", c.Context.SummarizationThreshold)
	}

	if _, err := time.LoadLocation(c.Tools.Timezone); err != nil {
		return fmt.Errorf("invalid TZ %q: %w", c.Tools.Timezone, err)
	}

	switch c.Storage.Backend {
	case "file", "sqlite", "minio":
	default:
		return fmt.Errorf("unknown SESSION_STORAGE: %s", c.Storage.Backend)
	}

	return nil
}

// SummarizationTokens is the estimated context size above which a session is summarized.
func (c ContextConfig) SummarizationTokens() int {
	return int(float64(c.MaxContextTokens) * c.SummarizationThreshold)
}

func loadContextConfig() ContextConfig {
	return ContextConfig{
		MaxContextTokens:       envInt("MAX_CONTEXT_TOKENS", defaultMaxContextTokens),
		SummarizationThreshold: envFloat("SUMMARIZATION_THRESHOLD", defaultSummarizationThreshold),
		RecentTurnsToKeep:      envInt("RECENT_TURNS_TO_KEEP", defaultRecentTurns),
		ParallelExecution:      os.Getenv("ENABLE_PARALLEL_EXECUTION") == "true",
	}
}

func loadMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Dir:           envStr("MEMORY_DIR", ".conductor/memory"),
		AutoSummarize: os.Getenv("MEMORY_AUTO_SUMMARIZE") == "true",
	}
}

func loadEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		Provider:   os.Getenv("EMBEDDER_PROVIDER"),
		BaseURL:    os.Getenv("EMBEDDER_URL"),
		Model:      os.Getenv("EMBEDDER_MODEL"),
		CacheBytes: int64(envInt("EMBEDDER_CACHE_BYTES", 32<<20)),
		CacheTTL:   time.Duration(envInt("EMBEDDER_CACHE_TTL_MINUTES", 60)) * time.Minute,
	}
}

func loadStorageConfig() StorageConfig {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	return StorageConfig{
		Backend:   envStr("SESSION_STORAGE", "file"),
		Path:      envStr("SESSION_STORAGE_PATH", "sessions/"),
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    envStr("MINIO_BUCKET", "conductor-sessions"),
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	}
}

func loadMultiBotConfig() MultiBot {
	telegramToken := os.Getenv("TELEGRAM_TOKEN")
	discordToken := os.Getenv("DISCORD_TOKEN")

	return MultiBot{
		Telegram: BotInstance{
			Enabled: telegramToken != "",
			Token:   telegramToken,
			Owner:   os.Getenv("TELEGRAM_OWNER_CHAT_ID"),
		},
		Discord: BotInstance{
			Enabled: discordToken != "",
			Token:   discordToken,
			Owner:   os.Getenv("DISCORD_OWNER_CHANNEL_ID"),
		},
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr: envStr("HTTP_ADDR", ":8080"),
		APIKey:   os.Getenv("HTTP_API_KEY"),
	}
}

func loadBudgetConfig() BudgetConfig {
	enabled := os.Getenv("BUDGET_ENABLED") == "true"

	dailyLimit := 100000 // default 100k tokens
	if limit, err := strconv.Atoi(os.Getenv("BUDGET_DAILY_LIMIT")); err == nil && limit > 0 {
		dailyLimit = limit
	}

	warnAt := 0.8
	if warn, err := strconv.ParseFloat(os.Getenv("BUDGET_WARN_AT"), 64); err == nil && warn > 0 && warn < 1 {
		warnAt = warn
	}

	return BudgetConfig{
		Enabled:    enabled,
		DailyLimit: dailyLimit,
		WarnAt:     warnAt,
	}
}

func loadCronConfig() CronConfig {
	return CronConfig{
		SummarySchedule: envStr("CRON_SUMMARY_SCHEDULE", "*/15 * * * *"),
		BatchSize:       envInt("CRON_SUMMARY_BATCH", 20),
	}
}

func loadToolsConfig() ToolsConfig {
	var allowed []string
	for _, cmd := range strings.Split(os.Getenv("TOOLS_ALLOWED_COMMANDS"), ",") {
		if cmd = strings.TrimSpace(cmd); cmd != "" {
			allowed = append(allowed, cmd)
		}
	}

	return ToolsConfig{
		Workspace:       envStr("WORKSPACE_DIR", "."),
		AllowedCommands: allowed,
		CommandTimeout:  time.Duration(envInt("TOOLS_COMMAND_TIMEOUT_SECONDS", 120)) * time.Second,
		Timezone:        envStr("TZ", "UTC"),
	}
}

func loadLLMConfig() (LLMConfig, error) {
	provider := os.Getenv("LLM_PROVIDER")
	if provider == "" {
		provider = DetectProvider()
	}

	apiKey, err := getAPIKey(provider)
	if err != nil {
		return LLMConfig{}, err
	}

	model := os.Getenv("LLM_MODEL")
	if model == "" && provider == "claude" {
		model = DefaultModel
	}

	return LLMConfig{
		Provider:   provider,
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    os.Getenv("LLM_BASE_URL"),
		Timeout:    time.Duration(envInt("LLM_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second,
		MaxRetries: envInt("LLM_MAX_RETRIES", defaultMaxRetries),
	}, nil
}

// DetectProvider picks a provider from whichever API key is present.
func DetectProvider() string {
	switch {
	case os.Getenv("ANTHROPIC_API_KEY") != "" || os.Getenv("CLAUDE_API_KEY") != "":
		return "claude"
	case os.Getenv("OPENROUTER_API_KEY") != "":
		return "openrouter"
	case os.Getenv("OPENAI_API_KEY") != "":
		return "openai"
	default:
		return "ollama"
	}
}

// EnvKeyForProvider returns the env var holding the provider's key, or "" when
// none is needed.
func EnvKeyForProvider(provider string) string {
	switch provider {
	case "claude":
		return "ANTHROPIC_API_KEY"
	case "ollama":
		return ""
	default:
		return strings.ToUpper(provider) + "_API_KEY"
	}
}

func getAPIKey(provider string) (string, error) {
	if envKey := os.Getenv("LLM_API_KEY"); envKey != "" {
		return envKey, nil
	}

	if provider == "claude" {
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return key, nil
		}
		if key := os.Getenv("CLAUDE_API_KEY"); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	envKey := EnvKeyForProvider(provider)
	if envKey == "" {
		// ollama doesn't need an API key
		return "ollama", nil
	}

	key := os.Getenv(envKey)
	if key == "" {
		return "", fmt.Errorf("%s not set", envKey)
	}
	return key, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return def
}
