// Command agentloopd runs the browser-automation session engine behind an
// HTTP API: create a session, hand it a task, and poll/stream the planner's
// actions until the task completes.
//
// Environment Variables:
//
//	PORT               HTTP listen port (default: 8080)
//	REDIS_URL          Redis connection URL; in-memory store if unset
//	SESSION_TTL        Redis snapshot/replay retention (default: 24h)
//	AI_PROVIDER        openai | anthropic | gemini; auto-detected from the
//	                   API key env vars below when unset
//	AI_PROVIDER_CHAIN  comma-separated provider aliases (e.g.
//	                   "openai,openai.deepseek,anthropic"); when set,
//	                   overrides AI_PROVIDER with a failover chain
//	AI_MODEL           model name passed to the provider
//	PROMPT_CONFIG_FILE path to a YAML file customizing the planner prompt
//	                   (domain framing, custom instructions, per-action
//	                   notes); see coordinator.PromptConfig
//	OPENAI_API_KEY     OpenAI (or an OpenAI-compatible alias's) credential
//	ANTHROPIC_API_KEY  required when AI_PROVIDER=anthropic
//	GEMINI_API_KEY     required when AI_PROVIDER=gemini
//	DEV_MODE           enables verbose request logging
//	OTEL_EXPORTER_OTLP_ENDPOINT  when set, telemetry uses the production profile
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/taskbridge/agentloop/ai"
	_ "github.com/taskbridge/agentloop/ai/providers/anthropic"
	_ "github.com/taskbridge/agentloop/ai/providers/gemini"
	_ "github.com/taskbridge/agentloop/ai/providers/openai"
	"github.com/taskbridge/agentloop/boundary"
	"github.com/taskbridge/agentloop/core"
	"github.com/taskbridge/agentloop/coordinator"
	"github.com/taskbridge/agentloop/session"
	"github.com/taskbridge/agentloop/telemetry"
)

func main() {
	devMode := os.Getenv("DEV_MODE") == "true"

	logger := core.NewProductionLogger(core.LoggingConfig{
		Level:  envOr("LOG_LEVEL", "info"),
		Format: "json",
		Output: "stdout",
	}, core.DevelopmentConfig{DebugLogging: devMode}, "agentloopd")

	profile := telemetry.ProfileDevelopment
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		profile = telemetry.ProfileProduction
	}
	if err := telemetry.Initialize(telemetry.UseProfile(profile)); err != nil {
		logger.Warn("telemetry initialization failed, continuing without metrics", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		defer telemetry.Shutdown(context.Background())
	}

	client, model, err := buildAIClient(logger)
	if err != nil {
		log.Fatalf("configuring AI client: %v", err)
	}

	store, err := buildStore(logger)
	if err != nil {
		log.Fatalf("configuring session store: %v", err)
	}

	coord := coordinator.New(client, logger, model)
	if path := os.Getenv("PROMPT_CONFIG_FILE"); path != "" {
		cfg, err := coordinator.LoadPromptConfig(path)
		if err != nil {
			log.Fatalf("loading prompt config: %v", err)
		}
		coord.SetPromptConfig(cfg)
	}
	manager := boundary.NewManager(store, coord, logger, session.DefaultConfig())
	server := boundary.NewServer(manager)

	// Spec §6: "All routes permit any origin" is unconditional, not a
	// dev-only convenience, so every ingress route allows "*" regardless
	// of DEV_MODE.
	cors := &core.CORSConfig{
		Enabled:          true,
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           86400,
	}
	handler := boundary.NewHandler(server, logger, cors, devMode)

	addr := ":" + envOr("PORT", "8080")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0, // SSE streams hold connections open indefinitely
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("starting HTTP server", map[string]interface{}{
			"address":  addr,
			"provider": os.Getenv("AI_PROVIDER"),
			"dev_mode": devMode,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// buildAIClient resolves the LLM capability the Coordinator calls through.
// Setting AI_PROVIDER_CHAIN to a comma-separated list of provider aliases
// (e.g. "openai,openai.deepseek,anthropic") builds an ai.ChainClient that
// tries each in order and fails over past 5xx/network errors; otherwise a
// single provider is resolved via ai.NewClient, either the one named by
// AI_PROVIDER or (if unset) whichever registered provider's
// DetectEnvironment reports an API key present.
func buildAIClient(logger core.Logger) (core.AIClient, string, error) {
	model := os.Getenv("AI_MODEL")

	if chain := os.Getenv("AI_PROVIDER_CHAIN"); chain != "" {
		aliases := strings.Split(chain, ",")
		for i := range aliases {
			aliases[i] = strings.TrimSpace(aliases[i])
		}
		client, err := ai.NewChainClient(
			ai.WithProviderChain(aliases...),
			ai.WithChainLogger(logger),
		)
		if err != nil {
			return nil, "", fmt.Errorf("building AI provider chain %v: %w", aliases, err)
		}
		return client, model, nil
	}

	opts := []ai.AIOption{ai.WithLogger(logger)}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		opts = append(opts, ai.WithProvider(provider))
	}
	if model != "" {
		opts = append(opts, ai.WithModel(model))
	}

	client, err := ai.NewClient(opts...)
	if err != nil {
		return nil, "", fmt.Errorf("building AI client: %w", err)
	}
	return client, model, nil
}

func buildStore(logger core.Logger) (session.Store, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		logger.Info("using in-memory session store (no REDIS_URL)", nil)
		return session.NewInMemoryStore(), nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	ttl := 24 * time.Hour
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			ttl = parsed
		} else {
			logger.Warn("invalid SESSION_TTL, using default", map[string]interface{}{"value": raw})
		}
	}

	logger.Info("using redis session store", map[string]interface{}{"ttl": ttl.String()})
	return session.NewRedisStore(client, ttl), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
