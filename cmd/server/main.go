package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/troikatech/collections-agent/internal/api"
	"github.com/troikatech/collections-agent/internal/api/handlers"
	"github.com/troikatech/collections-agent/internal/callflow"
	"github.com/troikatech/collections-agent/internal/language"
	"github.com/troikatech/collections-agent/internal/lifecycle"
	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/internal/speech"
	"github.com/troikatech/collections-agent/internal/store"
	"github.com/troikatech/collections-agent/internal/transcript"
	"github.com/troikatech/collections-agent/pkg/ai"
	"github.com/troikatech/collections-agent/pkg/audit"
	"github.com/troikatech/collections-agent/pkg/auth"
	"github.com/troikatech/collections-agent/pkg/env"
	"github.com/troikatech/collections-agent/pkg/exotel"
	"github.com/troikatech/collections-agent/pkg/logger"
	"github.com/troikatech/collections-agent/pkg/mongo"
	"github.com/troikatech/collections-agent/pkg/otel"
	"github.com/troikatech/collections-agent/pkg/queue"
)

const (
	reportTimeout   = 5 * time.Second
	shutdownTimeout = 15 * time.Second
)

// mongoAuditor reads and writes the audit collection
type mongoAuditor struct{ client *mongo.Client }

func (a mongoAuditor) Log(ctx context.Context, actor string, action audit.Action, resourceType, resourceID string, metadata map[string]interface{}) error {
	return audit.Log(ctx, a.client, actor, action, resourceType, resourceID, metadata)
}

func (a mongoAuditor) List(ctx context.Context, f audit.Filter, page, limit int) ([]audit.Event, int64, error) {
	return audit.List(ctx, a.client, f, page, limit)
}

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing(cfg.OTELServiceName, "1.0.0", cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer shutdown(context.Background())
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting collections voice agent",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
		zap.String("flow", cfg.CallFlow),
		zap.String("store", cfg.StoreDriver),
	)

	redisClient, err := store.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	mongoClient, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.DBName, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Log.Warn("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()

	customers, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		PostgresURL: cfg.PostgresURL,
		Mongo:       mongoClient,
	}, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to open customer store", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := customers.Close(ctx); err != nil {
			logger.Log.Warn("Failed to close customer store", zap.Error(err))
		}
	}()

	cache := store.NewRedisCache(redisClient)
	resolver := session.NewResolver(cache, customers, session.DefaultCacheTTL, logger.Log)
	registry := session.NewRegistry()
	hub := lifecycle.NewHub(registry, logger.Log)

	reporter := lifecycle.NewReporter(reportTimeout, logger.Log,
		lifecycle.StoreObserver{Store: customers},
		lifecycle.AuditObserver{Client: mongoClient},
		hub,
	)
	if cfg.AMQPURL != "" {
		publisher, err := queue.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger.Log)
		if err != nil {
			logger.Log.Warn("Failed to connect to AMQP, status events will not be published", zap.Error(err))
		} else {
			defer publisher.Close()
			reporter.Add(lifecycle.QueueObserver{Publisher: publisher})
			logger.Log.Info("Publishing call status events", zap.String("exchange", cfg.AMQPExchange))
		}
	}

	transcripts, err := transcript.OpenLog(cfg.TranscriptPath, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to open transcript log", zap.Error(err))
	}
	defer transcripts.Close()

	defaultLang, ok := language.Parse(cfg.DefaultLanguage)
	if !ok {
		defaultLang = language.English
	}

	chat := newChat(ctx, cfg)
	stt, tts := newSpeech(cfg)

	exotelClient := exotel.NewClient(
		cfg.ExotelSubdomain,
		cfg.ExotelAccountSID,
		cfg.ExotelAPIKey,
		cfg.ExotelAPIToken,
		cfg.ExotelExophone,
		cfg.ExotelAppID,
		logger.Log,
	)
	if !exotelClient.Configured() {
		logger.Log.Warn("Exotel credentials missing, outbound dialing and agent transfer are disabled")
	}

	h := handlers.NewHandler(handlers.Deps{
		Config:  cfg,
		Logger:  logger.Log,
		Context: ctx,
		Chat:    chat,
		STT:     stt,
		TTS:     tts,
		Call: callflow.Deps{
			Identifier:  language.NewIdentifier(defaultLang),
			Transcripts: transcripts,
			Transferer:  exotelClient,
		},
		Resolver:  resolver,
		Registry:  registry,
		Hub:       hub,
		Reporter:  reporter,
		Customers: customers,
		Outcomes:  customers,
		Dialer:    exotelClient,
		Dedupe:    cache,
		Audit:     mongoAuditor{client: mongoClient},
		Operator:  auth.Operator{User: cfg.OperatorUser, PasswordHash: cfg.OperatorPasswordHash},
		Refresh:   auth.NewRefreshStore(mongoClient, 7),
		Dependencies: []handlers.Dependency{
			{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
			{Name: "mongodb", Ping: mongoClient.Ping},
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           api.NewRouter(cfg, h, redisClient, logger.Log),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Log.Error("Server stopped with error", zap.Error(err))
	}
	reporter.Wait()
	logger.Log.Info("Server exited")
}

// newChat orders the configured chat providers. With none configured every
// chat turn fails and the call is handed to an agent.
func newChat(ctx context.Context, cfg *env.Config) *ai.Manager {
	timeout := time.Duration(cfg.AITimeoutMs) * time.Millisecond
	var providers []ai.ChatProvider

	if cfg.AnthropicApiKey != "" {
		providers = append(providers, ai.NewAnthropicProvider(cfg.AnthropicApiKey, cfg.AnthropicModel, cfg.AnthropicMaxTokens, timeout, logger.Log))
		logger.Log.Info("Anthropic provider initialized", zap.String("model", cfg.AnthropicModel))
	}
	if cfg.OpenAIApiKey != "" {
		providers = append(providers, ai.NewOpenAIProvider(cfg.OpenAIApiKey, cfg.OpenAIModel, cfg.OpenAIMaxTokens, timeout, logger.Log))
		logger.Log.Info("OpenAI provider initialized", zap.String("model", cfg.OpenAIModel))
	}
	if cfg.GeminiApiKey != "" {
		providers = append(providers, ai.NewGeminiProvider(ctx, cfg.GeminiApiKey, cfg.GeminiModel, cfg.GeminiMaxTokens, timeout, logger.Log))
		logger.Log.Info("Gemini provider initialized", zap.String("model", cfg.GeminiModel))
	}

	if len(providers) == 0 && cfg.CallFlow == "chat" {
		logger.Log.Warn("No chat providers configured, calls will fail over to an agent")
	}
	providers = ai.Ordered(providers, cfg.ProviderOrder())
	logger.Log.Info("Chat manager initialized", zap.Int("providers", len(providers)))
	return ai.NewManager(providers, logger.Log)
}

func newSpeech(cfg *env.Config) (speech.STTEngine, speech.TTSEngine) {
	timeout := time.Duration(cfg.AITimeoutMs) * time.Millisecond
	var (
		stt speech.STTEngine
		tts speech.TTSEngine
	)

	switch {
	case cfg.STTProvider == "deepgram" && cfg.DeepgramApiKey != "":
		stt = ai.NewDeepgramSTT(cfg.DeepgramApiKey, cfg.DeepgramModel, timeout, logger.Log)
		logger.Log.Info("STT service initialized", zap.String("provider", "deepgram"), zap.String("model", cfg.DeepgramModel))
	case cfg.OpenAIApiKey != "":
		stt = ai.NewSTTService(cfg.OpenAIApiKey, cfg.WhisperModel, timeout, logger.Log)
		logger.Log.Info("STT service initialized", zap.String("provider", "openai"), zap.String("model", cfg.WhisperModel))
	default:
		logger.Log.Warn("No STT provider configured, speech recognition is disabled")
	}

	switch cfg.TTSProvider {
	case "elevenlabs":
		if cfg.ElevenLabsApiKey != "" {
			tts = ai.NewTTSService(cfg.ElevenLabsApiKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModel, timeout, logger.Log)
			logger.Log.Info("TTS service initialized", zap.String("provider", "elevenlabs"), zap.String("voice_id", cfg.ElevenLabsVoiceID))
		}
	default:
		if cfg.OpenAIApiKey != "" {
			tts = ai.NewOpenAITTSService(cfg.OpenAIApiKey, cfg.OpenAITTSModel, cfg.OpenAITTSVoice, timeout, logger.Log)
			logger.Log.Info("TTS service initialized", zap.String("provider", "openai"), zap.String("voice", cfg.OpenAITTSVoice))
		}
	}
	if tts == nil {
		logger.Log.Warn("No TTS provider configured, the agent cannot speak")
	}
	return stt, tts
}
