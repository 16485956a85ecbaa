package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"modmail-relay/handler"
	"modmail-relay/internal/integrations/paramstore"
	"modmail-relay/internal/integrations/reddit"
	"modmail-relay/internal/integrations/webhook"
	"modmail-relay/internal/repository"
	"modmail-relay/internal/usecase"
)

func main() {
	ctx := context.Background()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(os.Getenv("LOG_LEVEL"))}))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	paramPrefix := mustEnv("PARAM_PREFIX")
	settingsTable := strings.TrimSpace(os.Getenv("SETTINGS_TABLE"))
	redditBaseURL := os.Getenv("REDDIT_BASE_URL")
	userAgent := os.Getenv("REDDIT_USER_AGENT")
	httpTimeout := time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	var settings usecase.SettingsReader
	if settingsTable != "" {
		settingsClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), settingsTable)
		if err != nil {
			slog.Error("failed to create settings client", "err", err)
			os.Exit(1)
		}
		settings = settingsClient
	}

	redditOpts := []reddit.Option{
		reddit.WithHTTPClient(&http.Client{Timeout: httpTimeout}),
		reddit.WithUserAgent(userAgent),
	}
	if redditBaseURL != "" {
		redditOpts = append(redditOpts, reddit.WithBaseURL(redditBaseURL))
	}
	redditClient, err := reddit.NewClient(ssmClient, paramPrefix, redditOpts...)
	if err != nil {
		slog.Error("failed to create Reddit client", "err", err)
		os.Exit(1)
	}

	webhookClient := webhook.NewClient(webhook.WithHTTPClient(&http.Client{Timeout: httpTimeout}))

	// ---- Handler ----
	relayService, err := usecase.NewRelayService(ssmClient, redditClient, webhookClient, settings, paramPrefix)
	if err != nil {
		slog.Error("failed to create relay service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(relayService, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func logLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
