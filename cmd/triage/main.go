package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/mailpilot/backend/internal/cache"
	"github.com/mailpilot/backend/internal/config"
	"github.com/mailpilot/backend/internal/mailbox"
	"github.com/mailpilot/backend/internal/triage"
)

// Runs one triage pass from the command line and prints the plain-text
// report. Useful for cron jobs and for poking at the pipeline without the
// HTTP server.
func main() {
	forceRefresh := flag.Bool("refresh", false, "bypass the caches and fetch fresh data")
	useRedis := flag.Bool("redis", false, "use the configured Redis cache instead of an in-process one")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	source := mailbox.NewIMAPSource(mailbox.Config{
		Server:   cfg.IMAPServer,
		Username: cfg.IMAPUsername,
		Password: cfg.IMAPPassword,
		UseTLS:   cfg.IMAPUseTLS,
	})

	classifier := triage.NewGeminiClassifier(cfg.GeminiAPIKey, cfg.GeminiModel)

	var store cache.Store = cache.NewMemoryStore()
	if *useRedis {
		redisStore := cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, 0)
		if err := redisStore.Ping(context.Background()); err != nil {
			log.Fatalf("Redis unreachable at %s: %v", cfg.RedisAddr, err)
		}
		store = redisStore
	}

	service := triage.NewService(source, classifier, store, cfg.CacheTTL)

	output, err := service.Triage(context.Background(), *forceRefresh)
	if err != nil {
		log.Fatalf("Triage failed: %v", err)
	}

	fmt.Print(output.Report)
	fmt.Println(triage.Summary(output))
}
