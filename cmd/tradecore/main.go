package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trading-platform/config"
	"trading-platform/internal/logger"
	"trading-platform/internal/tradecore"
)

func main() {
	cfg := config.Load()
	logger.Init("tradecore", logger.ParseLevel(cfg.LogLevel))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	svc, err := tradecore.New(cfg)
	if err != nil {
		log.Fatalf("[tradecore] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("[tradecore] fatal: %v", err)
	}
}
