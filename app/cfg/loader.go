package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./data/bulletin.db" description:"SQLite database file"`
	SourcesDir  string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source definition files"`
	UploadsDir  string `long:"uploads-dir" env:"UPLOADS_DIR" default:"./uploads" description:"Directory where uploaded documents are stored"`
	MaxUploadMB int    `long:"max-upload-mb" env:"MAX_UPLOAD_MB" default:"20" description:"Maximum upload size in megabytes"`

	// HTTP server
	Port           string  `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl        string  `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://agenda.example.com)"`
	RateLimitRPS   float64 `long:"rate-limit-rps" env:"RATE_LIMIT_RPS" default:"20" description:"Public API requests per second"`
	RateLimitBurst int     `long:"rate-limit-burst" env:"RATE_LIMIT_BURST" default:"40" description:"Public API burst size"`

	// Background processing
	WorkerCount       int `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for extraction runs"`
	SchedulerInterval int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Maintenance interval in seconds"`
	FetchTimeout      int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Timeout in seconds for fetching remote documents"`
	RunLockTTL        int `long:"run-lock-ttl" env:"RUN_LOCK_TTL" default:"1800" description:"Per-source run lock expiry in seconds"`
	LogRetentionDays  int `long:"log-retention-days" env:"LOG_RETENTION_DAYS" default:"30" description:"Days to keep run logs and inactive events"`
	StaleAfterDays    int `long:"stale-after-days" env:"STALE_AFTER_DAYS" default:"1" description:"Days after an event ends before it is deactivated"`

	// Admin authentication
	AdminUsername     string `long:"admin-username" env:"ADMIN_USERNAME" default:"admin" description:"Admin username"`
	AdminPassword     string `long:"admin-password" env:"ADMIN_PASSWORD" description:"Admin password (hashed at startup)"`
	AdminPasswordHash string `long:"admin-password-hash" env:"ADMIN_PASSWORD_HASH" description:"Bcrypt hash of the admin password"`
	JWTSecret         string `long:"jwt-secret" env:"JWT_SECRET" description:"Secret used to sign admin tokens (at least 32 characters)"`
	JWTTTL            int    `long:"jwt-ttl" env:"JWT_TTL" default:"86400" description:"Admin token lifetime in seconds"`

	// LLM provider
	LLMProvider      string `long:"llm-provider" env:"LLM_PROVIDER" default:"auto" choice:"auto" choice:"openai" choice:"anthropic" description:"LLM provider"`
	OpenAIAPIKey     string `long:"openai-api-key" env:"OPENAI_API_KEY" description:"OpenAI API key"`
	OpenAIModel      string `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" description:"OpenAI model"`
	OpenAIBaseURL    string `long:"openai-base-url" env:"OPENAI_BASE_URL" description:"Override for the OpenAI API base URL"`
	AnthropicAPIKey  string `long:"anthropic-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key"`
	AnthropicModel   string `long:"anthropic-model" env:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-latest" description:"Anthropic model"`
	AnthropicBaseURL string `long:"anthropic-base-url" env:"ANTHROPIC_BASE_URL" description:"Override for the Anthropic API base URL"`
	LLMMaxRetries    int    `long:"llm-max-retries" env:"LLM_MAX_RETRIES" default:"2" description:"Retries after a failed LLM call"`
	LLMRetryBackoff  int    `long:"llm-retry-backoff" env:"LLM_RETRY_BACKOFF" default:"2" description:"Initial LLM retry delay in seconds"`
	LLMTimeout       int    `long:"llm-timeout" env:"LLM_TIMEOUT" default:"120" description:"Timeout in seconds for a single LLM call"`
	LLMMaxTokens     int    `long:"llm-max-tokens" env:"LLM_MAX_TOKENS" default:"4096" description:"Maximum tokens in the LLM response"`
	LLMMaxInputChars int    `long:"llm-max-input-chars" env:"LLM_MAX_INPUT_CHARS" default:"60000" description:"Document text is truncated to this many characters"`

	// Distributed run lock (optional)
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the distributed run lock (in-process lock when empty)"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Bulletin Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"Europe/Madrid" description:"Timezone for timestamps and event dates"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses flags and environment. It returns a nil config when help was
// requested.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := fromRaw(raw)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func fromRaw(raw rawCfg) *Cfg {
	return &Cfg{
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		UploadsDir:        raw.UploadsDir,
		MaxUploadMB:       raw.MaxUploadMB,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		RateLimitRPS:      raw.RateLimitRPS,
		RateLimitBurst:    raw.RateLimitBurst,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: time.Duration(raw.SchedulerInterval) * time.Second,
		FetchTimeout:      time.Duration(raw.FetchTimeout) * time.Second,
		RunLockTTL:        time.Duration(raw.RunLockTTL) * time.Second,
		LogRetentionDays:  raw.LogRetentionDays,
		StaleAfterDays:    raw.StaleAfterDays,
		AdminUsername:     raw.AdminUsername,
		AdminPassword:     raw.AdminPassword,
		AdminPasswordHash: raw.AdminPasswordHash,
		JWTSecret:         raw.JWTSecret,
		JWTTTL:            time.Duration(raw.JWTTTL) * time.Second,
		LLMProvider:       raw.LLMProvider,
		OpenAIAPIKey:      raw.OpenAIAPIKey,
		OpenAIModel:       raw.OpenAIModel,
		OpenAIBaseURL:     raw.OpenAIBaseURL,
		AnthropicAPIKey:   raw.AnthropicAPIKey,
		AnthropicModel:    raw.AnthropicModel,
		AnthropicBaseURL:  raw.AnthropicBaseURL,
		LLMMaxRetries:     raw.LLMMaxRetries,
		LLMRetryBackoff:   time.Duration(raw.LLMRetryBackoff) * time.Second,
		LLMTimeout:        time.Duration(raw.LLMTimeout) * time.Second,
		LLMMaxTokens:      raw.LLMMaxTokens,
		LLMMaxInputChars:  raw.LLMMaxInputChars,
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RedisDB:           raw.RedisDB,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}
}

func (c *Cfg) Validate() error {
	positiveFields := map[string]int{
		"worker count":        c.WorkerCount,
		"max upload size":     c.MaxUploadMB,
		"llm max tokens":      c.LLMMaxTokens,
		"llm max input chars": c.LLMMaxInputChars,
		"rate limit burst":    c.RateLimitBurst,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"llm max retries":    c.LLMMaxRetries,
		"log retention days": c.LogRetentionDays,
		"stale after days":   c.StaleAfterDays,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	positiveDurations := map[string]time.Duration{
		"scheduler interval": c.SchedulerInterval,
		"fetch timeout":      c.FetchTimeout,
		"run lock ttl":       c.RunLockTTL,
		"llm timeout":        c.LLMTimeout,
		"jwt ttl":            c.JWTTTL,
	}

	for fieldName, fieldValue := range positiveDurations {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if longest := c.MaxRunDuration(); c.RunLockTTL <= longest {
		return fmt.Errorf("run lock ttl (%s) must be longer than the longest possible run (%s)", c.RunLockTTL, longest)
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive")
	}

	if c.AdminEnabled() {
		if c.AdminUsername == "" {
			return fmt.Errorf("admin username is required when an admin password is set")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("jwt secret must be at least 32 characters when admin login is enabled")
		}
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
