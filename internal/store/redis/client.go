// Package redis is the message-bus adapter: a consumer-group reader for the
// bar and prediction streams, and a publisher for signals and trades.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Stream and channel names shared with the producers and downstream readers.
const (
	StreamStockData       = "stream:stock-data"
	StreamMLPredictions   = "stream:ml-predictions"
	StreamTradingSignals  = "stream:trading-signals"
	StreamTradeExecutions = "stream:trade-executions"

	// SignalChannelPrefix + symbol is the pub/sub channel for live signals.
	SignalChannelPrefix = "pub:signals:"
)

// outbound streams are trimmed to roughly this many entries
const outboundMaxLen = 10000

// Config configures the Redis connection.
type Config struct {
	Addr          string // Redis address, e.g. "localhost:6379"
	Password      string
	DB            int
	ConsumerGroup string // consumer group name, e.g. "tradecore"
	ConsumerName  string // unique consumer name, e.g. hostname
}

// Connect creates a client and pings the server.
func Connect(cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return client, nil
}
