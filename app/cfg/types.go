package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath      string
	SourcesDir  string
	UploadsDir  string
	MaxUploadMB int

	// HTTP server
	Port           string
	BaseUrl        string
	RateLimitRPS   float64
	RateLimitBurst int

	// Background processing
	WorkerCount       int
	SchedulerInterval time.Duration
	FetchTimeout      time.Duration
	RunLockTTL        time.Duration
	LogRetentionDays  int
	StaleAfterDays    int

	// Admin authentication
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	JWTSecret         string
	JWTTTL            time.Duration

	// LLM provider
	LLMProvider      string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	LLMMaxRetries    int
	LLMRetryBackoff  time.Duration
	LLMTimeout       time.Duration
	LLMMaxTokens     int
	LLMMaxInputChars int

	// Distributed run lock (optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// AdminEnabled reports whether admin endpoints can authenticate anyone.
func (c *Cfg) AdminEnabled() bool {
	return c.AdminPassword != "" || c.AdminPasswordHash != ""
}

func (c *Cfg) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// retryBackoffCap is the LLM extractor's ceiling for a single retry delay.
const retryBackoffCap = 30 * time.Second

// MaxRunDuration is how long one extraction run can take when every LLM
// attempt runs into its timeout.
func (c *Cfg) MaxRunDuration() time.Duration {
	total := c.FetchTimeout + c.LLMTimeout*time.Duration(c.LLMMaxRetries+1)

	for attempt := 1; attempt <= c.LLMMaxRetries; attempt++ {
		delay := retryBackoffCap
		if attempt <= 30 {
			if d := c.LLMRetryBackoff << (attempt - 1); d >= 0 && d < retryBackoffCap {
				delay = d
			}
		}
		total += delay
	}

	return total
}
