// Askd is a multi-tenant product answer gateway.
//
// It authenticates customers by API key, resolves each customer's own
// datastore, retrieves product context by embedding similarity, and
// answers questions as JSON or streamed speech.
//
// Configuration comes from environment variables (optionally seeded from
// a .env file) plus an optional YAML config file. See internal/config.
//
// Usage:
//
//	# Start with defaults
//	askd
//
//	# Configure via environment
//	SERVER_PORT=8080 AI_OPENAI_API_KEY=sk-... askd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/answer"
	"github.com/fyrsmithlabs/askd/internal/ask"
	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/directory"
	"github.com/fyrsmithlabs/askd/internal/docstore"
	"github.com/fyrsmithlabs/askd/internal/embeddings"
	askhttp "github.com/fyrsmithlabs/askd/internal/http"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/ratelimit"
	"github.com/fyrsmithlabs/askd/internal/retriever"
	"github.com/fyrsmithlabs/askd/internal/speech"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("askd\nVersion:    %s\nCommit:     %s\nBuild Date: %s\n", version, gitCommit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

// run wires every dependency and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	// Best effort: a missing .env just means the environment is already set.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(&logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting askd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Environment))

	// Tenant directory: postgres when a database URL is set, otherwise the
	// in-memory store for development.
	var store directory.Store
	if cfg.Directory.DatabaseURL != "" {
		pgStore, err := directory.NewPostgresStore(ctx, cfg.Directory.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to tenant directory database: %w", err)
		}
		store = pgStore
	} else {
		logger.Warn(ctx, "no directory database configured, using in-memory store")
		store = directory.NewMemoryStore()
	}
	defer store.Close()

	dir, err := directory.New(store, logger)
	if err != nil {
		return fmt.Errorf("initializing tenant directory: %w", err)
	}

	embedder, err := embeddings.NewOpenAIProvider(embeddings.Config{
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.EmbeddingModel,
		APIKey:  cfg.AI.OpenAIKey,
	})
	if err != nil {
		return fmt.Errorf("initializing embedding provider: %w", err)
	}
	defer embedder.Close()

	stores := docstore.NewFactory(logger)
	defer stores.Close()

	ret := retriever.New(dir, embedder, stores, retriever.Config{
		DefaultEndpoint:   cfg.Datastore.DefaultEndpoint,
		DefaultCredential: cfg.Datastore.DefaultCredential,
		AllowDefault:      cfg.Datastore.AllowDefault,
	}, logger)

	llmOpts := []openai.Option{
		openai.WithToken(cfg.AI.OpenAIKey),
		openai.WithModel(cfg.AI.CompletionModel),
	}
	if cfg.AI.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.AI.BaseURL))
	}
	llm, err := openai.New(llmOpts...)
	if err != nil {
		return fmt.Errorf("initializing completion model: %w", err)
	}

	gen, err := answer.New(llm, answer.Config{
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		Suffix:      cfg.AI.AnswerSuffix,
	})
	if err != nil {
		return fmt.Errorf("initializing answer generator: %w", err)
	}

	synth, err := initSynthesizer(cfg)
	if err != nil {
		return fmt.Errorf("initializing speech synthesizer: %w", err)
	}
	if synth != nil {
		defer synth.Close()
	}

	audioLimit, textLimit, err := initLimiters(cfg)
	if err != nil {
		return fmt.Errorf("initializing rate limiters: %w", err)
	}
	defer audioLimit.Close()
	defer textLimit.Close()

	svc := ask.New(ret, gen, synth, logger)

	srv, err := askhttp.NewServer(askhttp.Deps{
		Directory:  dir,
		Ask:        svc,
		Retriever:  ret,
		Synth:      synth,
		AudioLimit: audioLimit,
		TextLimit:  textLimit,
		Logger:     logger,
	}, askhttp.Config{
		Port:          cfg.Server.Port,
		APIPrefix:     cfg.Server.APIPrefix,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		Environment:   cfg.Server.Environment,
		AdminKey:      cfg.Admin.APIKey,
	})
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// initSynthesizer builds the configured speech provider. Provider "none"
// disables the audio endpoint.
func initSynthesizer(cfg *config.Config) (speech.Synthesizer, error) {
	switch cfg.Speech.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		apiKey := cfg.Speech.APIKey
		if apiKey == "" {
			apiKey = cfg.AI.OpenAIKey
		}
		return speech.NewOpenAISynthesizer(speech.OpenAIConfig{
			APIKey:       apiKey,
			BaseURL:      cfg.Speech.BaseURL,
			Model:        cfg.Speech.Model,
			Voice:        cfg.Speech.Voice,
			SpeakingRate: cfg.Speech.SpeakingRate,
		})
	default:
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Speech.Provider)
	}
}

// initLimiters builds the audio and text limiters on the configured
// backend.
func initLimiters(cfg *config.Config) (ratelimit.Limiter, ratelimit.Limiter, error) {
	audioCfg := ratelimit.Config{Window: cfg.RateLimit.Window, Ceiling: cfg.RateLimit.AudioCeiling}
	textCfg := ratelimit.Config{Window: cfg.RateLimit.Window, Ceiling: cfg.RateLimit.TextCeiling}

	if cfg.RateLimit.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		audio, err := ratelimit.NewRedis(client, audioCfg, "audio")
		if err != nil {
			return nil, nil, err
		}
		text, err := ratelimit.NewRedis(client, textCfg, "text")
		if err != nil {
			return nil, nil, err
		}
		return audio, text, nil
	}

	audio, err := ratelimit.NewMemory(audioCfg)
	if err != nil {
		return nil, nil, err
	}
	text, err := ratelimit.NewMemory(textCfg)
	if err != nil {
		return nil, nil, err
	}
	return audio, text, nil
}
