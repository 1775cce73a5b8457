package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"autogensocial/internal/ratelimit"
	"autogensocial/internal/util"
	"autogensocial/pkg/ai"
	"autogensocial/pkg/domain"
	"autogensocial/pkg/metrics"
	"autogensocial/pkg/prompt"
	"autogensocial/pkg/queue"
	"autogensocial/pkg/render"
	"autogensocial/pkg/social"
	"autogensocial/pkg/storage"
	"autogensocial/pkg/store"
	"autogensocial/services/orchestrator/internal/app"
	"autogensocial/services/orchestrator/internal/config"
	"autogensocial/services/orchestrator/internal/server"
)

var version = "dev"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector("autogensocial", version)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	}

	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	objects, err := storage.New(ctx, storage.Config{
		Provider:      cfg.ObjectStoreProvider,
		Endpoint:      firstNonEmpty(cfg.S3Endpoint, cfg.MinioEndpoint),
		Region:        cfg.S3Region,
		AccessKey:     firstNonEmpty(cfg.S3AccessKey, cfg.MinioAccessKey),
		SecretKey:     firstNonEmpty(cfg.S3SecretKey, cfg.MinioSecretKey),
		UseSSL:        cfg.MinioUseSSL,
		Bucket:        cfg.S3Bucket,
		Prefix:        cfg.ObjectPrefix,
		PublicBaseURL: cfg.PublicBaseURL,
		PresignExpiry: time.Duration(cfg.PresignExpirySeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	completion, err := ai.NewCompletionClient(ai.ProviderConfig{
		Provider:   cfg.LLMProvider,
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		Model:      cfg.LLMModel,
		APIVersion: cfg.LLMAPIVersion,
		Timeout:    time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		Retry: ai.RetryConfig{
			MaxRetries: cfg.LLMMaxRetries,
			BaseDelay:  time.Duration(cfg.LLMRetryBaseDelayMs) * time.Millisecond,
		},
	})
	if err != nil {
		log.Fatalf("failed to init completion client: %v", err)
	}

	var resolver prompt.DefaultsResolver = staticDefaults(cfg.PromptDefaults)
	if cfg.PromptDefaultsFromRedis && redisClient != nil {
		resolver = prompt.NewRedisResolver(redisClient, cfg.PromptDefaultsPrefix, time.Duration(cfg.PromptDefaultsTTLSeconds)*time.Second, resolver)
	}

	compositor := render.NewCompositor(
		render.NewFontRegistry(cfg.Fonts),
		&http.Client{Timeout: time.Duration(cfg.RenderFetchTimeoutSeconds) * time.Second},
	)

	publishClient := &http.Client{Timeout: time.Duration(cfg.PublishTimeoutSeconds) * time.Second}
	publisher := social.NewPublisher(map[domain.Platform]social.Credentials{
		domain.PlatformInstagram: {AccessToken: cfg.InstagramAccessToken, AccountID: cfg.InstagramAccountID},
		domain.PlatformThreads:   {AccessToken: cfg.ThreadsAccessToken, AccountID: cfg.ThreadsAccountID},
	}, social.DefaultPlatforms(cfg.InstagramBaseURL, cfg.ThreadsBaseURL, publishClient)...)

	appCore, err := app.New(app.Config{
		Store:            dataStore,
		Completion:       completion,
		Assembler:        prompt.NewAssembler(resolver, nil),
		Renderer:         compositor,
		Objects:          objects,
		Publisher:        publisher,
		Metrics:          collector,
		CheckpointStages: cfg.CheckpointStages,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	serverCfg := server.Config{App: appCore, Metrics: collector}
	if len(cfg.TrustedProxies) > 0 {
		proxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			log.Fatalf("failed to parse trusted proxies: %v", err)
		}
		serverCfg.TrustedProxies = proxies
	}
	if cfg.RateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewFixedWindowLimiter(redisClient, ratelimit.Options{
			Limit:  cfg.RateLimitPerMinute,
			Window: time.Minute,
			Prefix: "autogensocial:orchestrator:ratelimit",
		})
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		serverCfg.Limiter = limiter
	}
	if cfg.QueueEnabled {
		jobs, err := queue.NewRedisJobQueue(redisClient, queue.RedisQueueConfig{
			Stream:      cfg.QueueName,
			Group:       cfg.QueueGroup,
			MaxAttempts: cfg.QueueMaxAttempts,
			RetryDelay:  time.Duration(cfg.QueueRetryDelaySeconds) * time.Second,
		})
		if err != nil {
			log.Fatalf("failed to init queue: %v", err)
		}
		jobs.Start(util.ContextWithLogger(ctx, logger.With("component", "queue")), cfg.QueueConcurrency, appCore.RunJob)
		defer func() {
			stop()
			jobs.Wait()
		}()
		serverCfg.Queue = jobs
	}

	httpServer, err := server.New(serverCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("orchestrator server listening", "addr", addr, "store", cfg.StoreDriver, "objects", cfg.ObjectStoreProvider, "llm", cfg.LLMProvider)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.FileConfig) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		mem := store.NewMemoryStore()
		if cfg.SeedFile != "" {
			if err := store.LoadSeedFile(ctx, mem, cfg.SeedFile); err != nil {
				return nil, err
			}
		}
		return mem, nil
	}
	gs, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.SeedFile != "" {
		if err := store.LoadSeedFile(ctx, gs, cfg.SeedFile); err != nil {
			return nil, err
		}
	}
	return gs, nil
}

func staticDefaults(in map[string]config.PromptDefaults) prompt.StaticResolver {
	out := make(prompt.StaticResolver, len(in))
	for contentType, d := range in {
		out[domain.ContentType(contentType)] = prompt.Defaults{
			SystemPrompt: d.SystemPrompt,
			Model:        d.Model,
			Temperature:  d.Temperature,
			MaxTokens:    d.MaxTokens,
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
