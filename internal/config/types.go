package config

import "time"

type Config struct {
	LLM        LLMConfig
	Context    ContextConfig
	Memory     MemoryConfig
	Embedder   EmbedderConfig
	Storage    StorageConfig
	Bots       MultiBot
	Server     ServerConfig
	Budget     BudgetConfig
	Cron       CronConfig
	Tools      ToolsConfig
	Routes     *Routes
	RoutesFile string
}

type LLMConfig struct {
	Provider   string
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// ContextConfig controls the rolling conversation window.
type ContextConfig struct {
	MaxContextTokens       int
	SummarizationThreshold float64
	RecentTurnsToKeep      int
	// ParallelExecution is parsed for compatibility; agents always run sequentially.
	ParallelExecution bool
}

type MemoryConfig struct {
	Dir           string
	AutoSummarize bool
}

type EmbedderConfig struct {
	Provider   string
	BaseURL    string
	Model      string
	CacheBytes int64
	CacheTTL   time.Duration
}

// StorageConfig selects where session snapshots live: file, sqlite or minio.
type StorageConfig struct {
	Backend   string
	Path      string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type BotInstance struct {
	Enabled bool
	Token   string
	// Owner restricts the bot to one chat (Telegram) or channel (Discord)
	// and receives operator alerts. Empty accepts every chat.
	Owner string
}

type MultiBot struct {
	Telegram BotInstance
	Discord  BotInstance
}

type ServerConfig struct {
	HTTPAddr string
	APIKey   string
}

type BudgetConfig struct {
	Enabled    bool
	DailyLimit int
	WarnAt     float64
}

type CronConfig struct {
	SummarySchedule string
	BatchSize       int
}

// ToolsConfig scopes what agents can touch. File tools never leave Workspace;
// run_command only exists when AllowedCommands is non-empty.
type ToolsConfig struct {
	Workspace       string
	AllowedCommands []string
	CommandTimeout  time.Duration
	Timezone        string
}
