package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	AppPort       string
	TZ            string
	PublicBaseURL string // Public HTTPS URL Exotel reaches us on (e.g., https://voice.example.com)

	JWTSecret             string
	JWTIssuer             string
	AccessTTLMin          int
	OperatorUser          string
	OperatorPasswordHash  string // bcrypt hash
	ExotelWebhookSecret   string
	ExotelVoicebotToken   string // Bearer token Exotel presents on the websocket (optional)
	CORSAllowedOrigins    string
	APIRateLimitRPM       int
	LogLevel              string
	TranscriptPath        string
	DefaultLanguage       string
	CallFlow              string // chat | scripted
	AgentNumber           string
	StoreDriver           string // mongo | postgres
	ProviderFallbackOrder string

	RedisURL string

	MongoURI string
	DBName   string

	PostgresURL string

	AMQPURL      string
	AMQPExchange string

	AITimeoutMs int

	AnthropicApiKey    string
	AnthropicModel     string
	AnthropicMaxTokens int

	OpenAIApiKey    string
	OpenAIModel     string
	OpenAIMaxTokens int

	GeminiApiKey    string
	GeminiModel     string
	GeminiMaxTokens int

	STTProvider    string // openai | deepgram
	WhisperModel   string
	DeepgramApiKey string
	DeepgramModel  string

	TTSProvider       string // openai | elevenlabs
	OpenAITTSModel    string
	OpenAITTSVoice    string
	ElevenLabsApiKey  string
	ElevenLabsVoiceID string
	ElevenLabsModel   string

	ExotelSubdomain  string
	ExotelAccountSID string
	ExotelAPIKey     string
	ExotelAPIToken   string
	ExotelExophone   string
	ExotelAppID      string

	// Call tuning
	ConfirmSilence     time.Duration
	ChatSilence        time.Duration
	NoInputTimeout     time.Duration
	MaxConfirmAttempts int
	RefusalThreshold   int
	MaxTurns           int
	CallWatchdog       time.Duration
	HangupGrace        time.Duration
	MinUtterance       time.Duration
	VADThreshold       int
	BargeIn            bool

	OTELEnabled     bool
	OTELEndpoint    string
	OTELServiceName string
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// A missing .env is fine; production runs on plain environment variables.
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		AppPort:       getEnv("APP_PORT", "8080"),
		TZ:            getEnv("TZ", "Asia/Kolkata"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		JWTSecret:             mustGetEnv("JWT_SECRET"),
		JWTIssuer:             getEnv("JWT_ISSUER", "troika-collections-agent"),
		AccessTTLMin:          getEnvInt("ACCESS_TTL_MIN", 60),
		OperatorUser:          getEnv("OPERATOR_USER", "ops"),
		OperatorPasswordHash:  getEnv("OPERATOR_PASSWORD_HASH", ""),
		ExotelWebhookSecret:   getEnv("EXOTEL_WEBHOOK_SIGNATURE_SECRET", ""),
		ExotelVoicebotToken:   getEnv("EXOTEL_VOICEBOT_TOKEN", ""),
		CORSAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "*"),
		APIRateLimitRPM:       getEnvInt("API_RATE_LIMIT_RPM", 60),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		TranscriptPath:        getEnv("TRANSCRIPT_PATH", "transcripts.log"),
		DefaultLanguage:       getEnv("DEFAULT_LANGUAGE", "en"),
		CallFlow:              getEnv("CALL_FLOW", "chat"),
		AgentNumber:           getEnv("AGENT_NUMBER", ""),
		StoreDriver:           getEnv("STORE_DRIVER", "mongo"),
		ProviderFallbackOrder: getEnv("AI_PROVIDER_ORDER", "anthropic,openai,gemini"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:   getEnv("DB_NAME", "collections"),

		PostgresURL: getEnv("POSTGRES_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "collections_events"),

		AITimeoutMs: getEnvInt("AI_TIMEOUT_MS", 8000),

		AnthropicApiKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		AnthropicMaxTokens: getEnvInt("ANTHROPIC_MAX_TOKENS", 300),

		OpenAIApiKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 300),

		GeminiApiKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiMaxTokens: getEnvInt("GEMINI_MAX_TOKENS", 300),

		STTProvider:    getEnv("STT_PROVIDER", "openai"),
		WhisperModel:   getEnv("WHISPER_MODEL", "whisper-1"),
		DeepgramApiKey: getEnv("DEEPGRAM_API_KEY", ""),
		DeepgramModel:  getEnv("DEEPGRAM_MODEL", "nova-2"),

		TTSProvider:       getEnv("TTS_PROVIDER", "openai"),
		OpenAITTSModel:    getEnv("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice:    getEnv("OPENAI_TTS_VOICE", "alloy"),
		ElevenLabsApiKey:  getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModel:   getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),

		ExotelSubdomain:  getEnv("EXOTEL_SUBDOMAIN", "api"),
		ExotelAccountSID: getEnv("EXOTEL_ACCOUNT_SID", ""),
		ExotelAPIKey:     getEnv("EXOTEL_API_KEY", ""),
		ExotelAPIToken:   getEnv("EXOTEL_API_TOKEN", ""),
		ExotelExophone:   getEnv("EXOTEL_EXOPHONE", ""),
		ExotelAppID:      getEnv("EXOTEL_APP_ID", ""),

		ConfirmSilence:     getEnvMillis("CONFIRM_SILENCE_MS", 1000),
		ChatSilence:        getEnvMillis("CHAT_SILENCE_MS", 3000),
		NoInputTimeout:     getEnvMillis("NO_INPUT_MS", 8000),
		MaxConfirmAttempts: getEnvInt("MAX_CONFIRM_ATTEMPTS", 3),
		RefusalThreshold:   getEnvInt("REFUSAL_THRESHOLD", 5),
		MaxTurns:           getEnvInt("MAX_TURNS", 6),
		CallWatchdog:       time.Duration(getEnvInt("CALL_WATCHDOG_SEC", 600)) * time.Second,
		HangupGrace:        getEnvMillis("HANGUP_GRACE_MS", 2500),
		MinUtterance:       getEnvMillis("MIN_UTTERANCE_MS", 200),
		VADThreshold:       getEnvInt("VAD_THRESHOLD", 500),
		BargeIn:            getEnvBool("BARGE_IN", true),

		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELServiceName: getEnv("OTEL_SERVICE_NAME", "collections-agent"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", cfg.TZ, err)
	}
	time.Local = loc

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CallFlow {
	case "chat", "scripted":
	default:
		return fmt.Errorf("CALL_FLOW must be chat or scripted, got %q", c.CallFlow)
	}
	switch c.StoreDriver {
	case "mongo":
	case "postgres":
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.RefusalThreshold < 1 || c.MaxConfirmAttempts < 1 {
		return fmt.Errorf("REFUSAL_THRESHOLD and MAX_CONFIRM_ATTEMPTS must be positive")
	}
	return nil
}

// ProviderOrder returns the configured chat provider fallback order
func (c *Config) ProviderOrder() []string {
	var order []string
	for _, p := range strings.Split(c.ProviderFallbackOrder, ",") {
		if p = strings.TrimSpace(p); p != "" {
			order = append(order, p)
		}
	}
	return order
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvMillis(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMs)) * time.Millisecond
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
