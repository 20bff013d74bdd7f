package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/sofreh/backend-resto/internal/config"
	"github.com/sofreh/backend-resto/internal/notify"
	"github.com/sofreh/backend-resto/internal/obs"
	"github.com/sofreh/backend-resto/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().
		Str("env", cfg.AppEnv).
		Str("component", "worker").
		Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "resto"), nil)

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	var sender notify.Sender
	if strings.TrimSpace(cfg.SMSGatewayURL) == "" {
		logger.Warn().Msg("no SMS gateway configured, logging deliveries instead")
		sender = logSender{log: logger}
	} else {
		sender = notify.Gateway{
			HTTP: resilience.HTTPClient{
				Client:      &http.Client{Timeout: 10 * time.Second},
				Breaker:     resilience.NewBreaker(10, 0.6, 30*time.Second).WithTarget("sms"),
				BaseBackoff: 200 * time.Millisecond,
				MaxAttempts: 3,
				Jitter:      0.2,
			},
			URL:    cfg.SMSGatewayURL,
			APIKey: cfg.SMSGatewayAPIKey,
		}
	}

	worker := notify.Worker{Sender: sender, Log: logger}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 10),
		Queues: map[string]int{
			notify.QueueNotifications: 10,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.Info().Msg("worker starting")
	if err := srv.Run(worker.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
	logger.Info().Msg("worker stopped")
}

// logSender stands in for the gateway in local development.
type logSender struct {
	log zerolog.Logger
}

func (s logSender) Send(ctx context.Context, to, body string) error {
	s.log.Info().Str("to", to).Str("body", body).Msg("sms delivery (dev)")
	return nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
