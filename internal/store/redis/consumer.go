package redis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-platform/internal/model"
)

// Delivery is one decoded stream entry. Exactly one of Bar and Prediction is
// set. The handler must call Ack once the entry has been processed.
type Delivery struct {
	Stream     string
	ID         string
	Bar        *model.MarketDataEvent
	Prediction *model.MLPrediction

	ack func()
}

// Ack acknowledges the entry in the consumer group.
func (d Delivery) Ack() {
	if d.ack != nil {
		d.ack()
	}
}

// Handler accepts a delivery. Returning an error leaves the entry pending so
// it is recovered on the next start.
type Handler func(ctx context.Context, d Delivery) error

// Consumer reads bars and predictions from Redis Streams via a consumer group.
type Consumer struct {
	client        *goredis.Client
	consumerGroup string
	consumerName  string
	streams       []string

	// OnPoison, when set, is called for every undecodable entry.
	OnPoison func(stream string, err error)
}

// NewConsumer creates a consumer on the stock-data and ml-predictions streams.
func NewConsumer(client *goredis.Client, cfg Config) *Consumer {
	group := cfg.ConsumerGroup
	if group == "" {
		group = "tradecore"
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = "worker-1"
	}
	log.Printf("[redis-consumer] group=%s consumer=%s", group, consumer)
	return &Consumer{
		client:        client,
		consumerGroup: group,
		consumerName:  consumer,
		streams:       []string{StreamStockData, StreamMLPredictions},
	}
}

// EnsureConsumerGroup creates the group on every stream if it doesn't exist.
// Fresh groups start at "$" (only new messages).
func (c *Consumer) EnsureConsumerGroup(ctx context.Context) error {
	for _, stream := range c.streams {
		err := c.client.XGroupCreateMkStream(ctx, stream, c.consumerGroup, "$").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// Run blocks on XREADGROUP and hands each entry to h until ctx is cancelled.
// Pending entries left by a previous run are delivered first.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	if err := c.recoverPending(ctx, h); err != nil {
		return err
	}

	// [stream1, stream2, ">", ">"]
	args := make([]string, len(c.streams)*2)
	for i, s := range c.streams {
		args[i] = s
		args[len(c.streams)+i] = ">"
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := c.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.consumerGroup,
			Consumer: c.consumerName,
			Streams:  args,
			Count:    100,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("[redis-consumer] xreadgroup error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				if err := c.deliver(ctx, stream.Stream, msg, h); err != nil {
					return err
				}
			}
		}
	}
}

// recoverPending re-delivers entries this consumer read but never ACKed.
func (c *Consumer) recoverPending(ctx context.Context, h Handler) error {
	for _, stream := range c.streams {
		start := "0"
		for {
			res, err := c.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
				Group:    c.consumerGroup,
				Consumer: c.consumerName,
				Streams:  []string{stream, start},
				Count:    100,
			}).Result()
			if err != nil {
				if err == goredis.Nil {
					break
				}
				return fmt.Errorf("recover pending %s: %w", stream, err)
			}
			if len(res) == 0 || len(res[0].Messages) == 0 {
				break
			}
			for _, msg := range res[0].Messages {
				if err := c.deliver(ctx, stream, msg, h); err != nil {
					return err
				}
				start = msg.ID
			}
			log.Printf("[redis-consumer] recovered %d pending entries from %s", len(res[0].Messages), stream)
		}
	}
	return nil
}

func (c *Consumer) deliver(ctx context.Context, stream string, msg goredis.XMessage, h Handler) error {
	d, err := c.decode(stream, msg)
	if err != nil {
		// ACK even on bad message to avoid poison pill
		log.Printf("[redis-consumer] %s %s: %v", stream, msg.ID, err)
		if c.OnPoison != nil {
			c.OnPoison(stream, err)
		}
		c.ack(ctx, stream, msg.ID)
		return nil
	}
	d.ack = func() { c.ack(context.Background(), stream, msg.ID) }

	if err := h(ctx, d); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[redis-consumer] %s %s not accepted, left pending: %v", stream, msg.ID, err)
	}
	return nil
}

func (c *Consumer) decode(stream string, msg goredis.XMessage) (Delivery, error) {
	d := Delivery{Stream: stream, ID: msg.ID}
	switch stream {
	case StreamStockData:
		ev, err := decodeBar(msg.Values)
		if err != nil {
			return d, err
		}
		d.Bar = &ev
	case StreamMLPredictions:
		p, err := decodePrediction(msg.Values)
		if err != nil {
			return d, err
		}
		d.Prediction = &p
	default:
		return d, fmt.Errorf("unexpected stream %s", stream)
	}
	return d, nil
}

func (c *Consumer) ack(ctx context.Context, stream, id string) {
	if err := c.client.XAck(ctx, stream, c.consumerGroup, id).Err(); err != nil {
		log.Printf("[redis-consumer] xack %s %s: %v", stream, id, err)
	}
}
