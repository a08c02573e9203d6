package tradecore

import (
	"context"
	"errors"
	"log"

	"trading-platform/internal/model"
	redisstore "trading-platform/internal/store/redis"
)

// startConsumer runs the Redis stream consumer in a goroutine.
func (svc *Service) startConsumer(ctx context.Context) {
	if svc.consumer == nil {
		return
	}
	if err := svc.consumer.EnsureConsumerGroup(ctx); err != nil {
		log.Printf("[tradecore] WARNING: consumer group setup: %v", err)
	}
	go func() {
		err := svc.consumer.Run(ctx, submitter(svc.pipe))
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[tradecore] consumer error: %v", err)
		}
	}()
}

// eventSink is the part of the pipeline the consumer feeds.
type eventSink interface {
	SubmitBar(ctx context.Context, ev model.MarketDataEvent, done func(error)) error
	SubmitPrediction(ctx context.Context, pred model.MLPrediction, done func(error)) error
}

// submitter hands deliveries to the pipeline. An entry is ACKed once the
// pipeline has processed it, whatever the outcome; an entry the pipeline
// refused stays pending for the next start.
func submitter(sink eventSink) redisstore.Handler {
	return func(ctx context.Context, d redisstore.Delivery) error {
		done := func(err error) {
			if err != nil {
				log.Printf("[tradecore] %s %s: %v", d.Stream, d.ID, err)
			}
			d.Ack()
		}
		switch {
		case d.Bar != nil:
			return sink.SubmitBar(ctx, *d.Bar, done)
		case d.Prediction != nil:
			return sink.SubmitPrediction(ctx, *d.Prediction, done)
		}
		d.Ack()
		return nil
	}
}
