// Package pipeline applies incoming bars and ML predictions to the strategy
// dispatcher, the signal sinks and the paper executor.
//
// Events are routed to worker shards by symbol hash. One shard handles a
// symbol's events one at a time in arrival order, so the crossover memory and
// the portfolio see each symbol's bars in sequence, while different symbols
// run in parallel on other shards.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"trading-platform/internal/execution"
	"trading-platform/internal/logger"
	"trading-platform/internal/marketdata/bus"
	"trading-platform/internal/metrics"
	"trading-platform/internal/model"
	"trading-platform/internal/notification"
	"trading-platform/internal/portfolio"
	"trading-platform/internal/strategy"
)

// ErrStopped is returned when submitting to a stopped pipeline.
var ErrStopped = errors.New("pipeline stopped")

// Config holds the pipeline settings.
type Config struct {
	Workers         int           // number of shards
	QueueSize       int           // buffered events per shard
	DispatchTimeout time.Duration // upper bound on one Dispatch call; 0 disables
}

// DefaultConfig returns 4 workers, 256-event queues and a 5s dispatch timeout.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 256, DispatchTimeout: 5 * time.Second}
}

// Deps are the collaborators the pipeline drives. Dispatcher, Configs, ML,
// Simulator and Executor are required; the rest may be nil.
type Deps struct {
	Dispatcher  *strategy.Dispatcher
	Configs     model.StrategyConfigSource
	ML          *strategy.MlBased
	Simulator   *portfolio.Simulator
	Executor    *execution.PaperExecutor
	BarWriter   model.BarWriter
	SignalSinks []model.SignalSink
	Fanout      *bus.FanOut
	Notifier    notification.Notifier
	Metrics     *metrics.Metrics
	Health      *metrics.HealthStatus
}

type job struct {
	ctx  context.Context
	bar  *model.MarketDataEvent
	pred *model.MLPrediction
	done func(error)
}

// Pipeline is the sharded event processor.
type Pipeline struct {
	cfg  Config
	deps Deps

	mu      sync.RWMutex
	shards  []chan job
	stopped bool
	wg      sync.WaitGroup
}

// New creates a pipeline. Call Start before submitting events.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// Start launches one goroutine per shard. Workers exit when ctx is cancelled
// or Stop is called.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shards = make([]chan job, p.cfg.Workers)
	for i := range p.shards {
		ch := make(chan job, p.cfg.QueueSize)
		p.shards[i] = ch
		p.wg.Add(1)
		go p.worker(ctx, i, ch)
	}
	log.Printf("[pipeline] started %d workers (queue=%d, dispatch timeout=%s)",
		p.cfg.Workers, p.cfg.QueueSize, p.cfg.DispatchTimeout)
}

// Stop closes the shard queues and waits for queued events to drain.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, ch := range p.shards {
		close(ch)
	}
	p.mu.Unlock()
	p.wg.Wait()
	log.Println("[pipeline] stopped")
}

func (p *Pipeline) worker(ctx context.Context, idx int, ch <-chan job) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-ch:
			if !ok {
				return
			}
			var err error
			if j.bar != nil {
				err = p.ProcessBar(j.ctx, *j.bar)
			} else {
				err = p.ProcessPrediction(j.ctx, *j.pred)
			}
			if j.done != nil {
				j.done(err)
			}
		}
	}
}

// shardFor returns the shard index for symbol.
func shardFor(symbol string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(n))
}

func (p *Pipeline) submit(ctx context.Context, symbol string, j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped || p.shards == nil {
		return ErrStopped
	}
	select {
	case p.shards[shardFor(symbol, len(p.shards))] <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitBar queues ev on its symbol's shard. done, when non-nil, receives the
// processing outcome. Blocks while the shard queue is full.
func (p *Pipeline) SubmitBar(ctx context.Context, ev model.MarketDataEvent, done func(error)) error {
	return p.submit(ctx, ev.Symbol, job{ctx: ctx, bar: &ev, done: done})
}

// SubmitPrediction queues pred on its symbol's shard.
func (p *Pipeline) SubmitPrediction(ctx context.Context, pred model.MLPrediction, done func(error)) error {
	return p.submit(ctx, pred.Symbol, job{ctx: ctx, pred: &pred, done: done})
}

// ProcessBar handles one bar synchronously: dispatch strategies, emit and
// execute their signals at the bar close, then store the bar. Callers must
// not run ProcessBar concurrently for the same symbol.
func (p *Pipeline) ProcessBar(ctx context.Context, ev model.MarketDataEvent) error {
	if ev.Symbol == "" {
		return fmt.Errorf("bar without symbol at %s", ev.Timestamp)
	}
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(ev.Symbol, ev.Timestamp))
	d := p.deps
	d.Simulator.MarkPrice(ev.Symbol, ev.Close)

	configs, err := d.Configs.FindAllEnabledStrategyConfigs(ctx)
	if err != nil {
		p.barFailed("configs")
		return fmt.Errorf("load strategy configs: %w", err)
	}

	dctx, cancel := ctx, context.CancelFunc(func() {})
	if p.cfg.DispatchTimeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, p.cfg.DispatchTimeout)
	}
	start := time.Now()
	res, dispatchErr := d.Dispatcher.Dispatch(dctx, ev, configs)
	cancel()
	if d.Metrics != nil {
		d.Metrics.DispatchDur.Observe(time.Since(start).Seconds())
	}

	if dispatchErr != nil {
		// A timed-out or failed dispatch is discarded as a whole.
		p.barFailed("dispatch")
		if d.Metrics != nil {
			d.Metrics.DispatchErrors.Inc()
		}
		log.Printf("[pipeline] %s @ %s: dispatch failed: %v (trace=%s)",
			ev.Symbol, ev.Timestamp.Format(time.RFC3339), dispatchErr, logger.TraceID(ctx))
	} else {
		for _, sig := range res.Signals {
			p.emit(ctx, sig)
			p.execute(ctx, sig, ev.Close)
		}
	}

	if d.BarWriter != nil {
		if err := d.BarWriter.SaveBar(ctx, ev.Bar()); err != nil {
			p.barFailed("store")
			return errors.Join(dispatchErr, fmt.Errorf("save bar: %w", err))
		}
	}

	if d.Metrics != nil {
		d.Metrics.BarsTotal.WithLabelValues(ev.Symbol).Inc()
	}
	if d.Health != nil {
		d.Health.SetLastBarTime(ev.Timestamp)
	}
	p.updatePortfolioGauges()
	return dispatchErr
}

// ProcessPrediction turns an ML prediction into signals and executes them at
// the last known close for the symbol.
func (p *Pipeline) ProcessPrediction(ctx context.Context, pred model.MLPrediction) error {
	d := p.deps
	if d.Metrics != nil {
		d.Metrics.PredictionsTotal.Inc()
	}
	ctx = logger.WithTraceID(ctx, logger.NewTraceID())

	signals := d.ML.FromPrediction(pred)
	if len(signals) == 0 {
		return nil
	}
	price, known := d.Simulator.LastPrice(pred.Symbol)
	for _, sig := range signals {
		p.emit(ctx, sig)
		if !known {
			log.Printf("[pipeline] %s: no known price, ML signal %s not executed", pred.Symbol, sig.ID)
			continue
		}
		p.execute(ctx, sig, price)
	}
	p.updatePortfolioGauges()
	return nil
}

// emit forwards a signal to persistence, the fan-out bus and the notifier.
func (p *Pipeline) emit(ctx context.Context, sig model.TradingSignal) {
	d := p.deps
	for _, sink := range d.SignalSinks {
		if err := sink.SaveSignal(ctx, sig); err != nil {
			log.Printf("[pipeline] save signal %s: %v (trace=%s)", sig.ID, err, logger.TraceID(ctx))
		}
	}
	if d.Fanout != nil {
		d.Fanout.Publish(sig)
	}
	if d.Notifier != nil {
		if err := d.Notifier.Send(ctx, notification.SignalAlert(sig)); err != nil {
			log.Printf("[pipeline] notify signal %s: %v", sig.ID, err)
		}
	}
	if d.Metrics != nil {
		d.Metrics.SignalsTotal.WithLabelValues(sig.StrategyName, string(sig.Type)).Inc()
	}
	log.Printf("[pipeline] signal %s %s by %s: %s", sig.Type, sig.Symbol, sig.StrategyName, sig.Description)
}

func (p *Pipeline) execute(ctx context.Context, sig model.TradingSignal, price float64) {
	d := p.deps
	res := d.Executor.Execute(ctx, sig, price)
	if res.Filled() {
		if d.Metrics != nil {
			d.Metrics.TradesExecuted.WithLabelValues(string(sig.Type)).Inc()
		}
		return
	}
	if d.Metrics != nil {
		d.Metrics.TradesRejected.WithLabelValues(res.Reason).Inc()
	}
	if d.Notifier != nil {
		if err := d.Notifier.Send(ctx, notification.RejectionAlert(sig, res.Reason, res.Err)); err != nil {
			log.Printf("[pipeline] notify rejection %s: %v", sig.ID, err)
		}
	}
}

func (p *Pipeline) barFailed(stage string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.BarsFailed.WithLabelValues(stage).Inc()
	}
}

func (p *Pipeline) updatePortfolioGauges() {
	if p.deps.Metrics == nil {
		return
	}
	snap := p.deps.Simulator.Snapshot()
	p.deps.Metrics.PortfolioCash.Set(snap.Cash)
	p.deps.Metrics.PortfolioValue.Set(snap.Value)
}
