// Package tradecore wires the trading service: SQLite history, the Redis
// bus, the strategy pipeline, the paper portfolio and the HTTP gateway.
package tradecore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trading-platform/config"
	"trading-platform/internal/backtest"
	"trading-platform/internal/crossover"
	"trading-platform/internal/execution"
	"trading-platform/internal/gateway"
	"trading-platform/internal/marketdata/bus"
	"trading-platform/internal/metrics"
	"trading-platform/internal/model"
	"trading-platform/internal/notification"
	"trading-platform/internal/pipeline"
	"trading-platform/internal/portfolio"
	redisstore "trading-platform/internal/store/redis"
	sqlitestore "trading-platform/internal/store/sqlite"
	"trading-platform/internal/strategy"
)

const (
	livenessInterval = 15 * time.Second
	statsInterval    = 30 * time.Second
	hubReplaySize    = 512
	fanoutBuffer     = 1024
	publisherBuffer  = 10000
)

// Service is the top-level orchestrator. It wires all dependencies, manages
// lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config

	store     *sqlitestore.Store
	rdb       *goredis.Client // nil when Redis is disabled
	consumer  *redisstore.Consumer
	publisher *redisstore.Publisher

	prom      *metrics.Metrics
	gatherer  prometheus.Gatherer
	health    *metrics.HealthStatus
	registry  *strategy.Registry
	sim       *portfolio.Simulator
	executor  *execution.PaperExecutor
	fanout    *bus.FanOut
	hub       *gateway.Hub
	pipe      *pipeline.Pipeline
	httpSrv   *http.Server
	hubSignal <-chan model.TradingSignal
}

// New connects to SQLite and, when enabled, Redis, and builds every
// component. Nothing runs until Run is called.
func New(cfg *config.Config) (*Service, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := &Service{
		cfg:      cfg,
		prom:     metrics.NewMetrics(reg),
		gatherer: reg,
		health:   metrics.NewHealthStatus(cfg.RedisEnabled),
	}

	// ---- Open SQLite ----
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := sqlitestore.Open(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		return nil, err
	}
	svc.store = store

	// ---- Connect to Redis ----
	if cfg.RedisEnabled {
		rcfg := redisstore.Config{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			ConsumerGroup: cfg.ConsumerGroup,
			ConsumerName:  cfg.ConsumerName,
		}
		svc.rdb, err = redisstore.Connect(rcfg)
		if err != nil {
			store.Close()
			return nil, err
		}
		svc.consumer = redisstore.NewConsumer(svc.rdb, rcfg)
		svc.consumer.OnPoison = func(stream string, err error) {
			svc.prom.BarsFailed.WithLabelValues("decode").Inc()
		}
		svc.publisher = redisstore.NewPublisher(svc.rdb,
			redisstore.NewCircuitBreaker(5, 10*time.Second), publisherBuffer)
	} else {
		log.Println("[tradecore] redis disabled, running on SQLite and the HTTP gateway only")
	}

	svc.build()
	return svc, nil
}

// build assembles the in-process components on top of the stores.
func (svc *Service) build() {
	cfg := svc.cfg

	svc.registry = strategy.NewRegistry(
		strategy.NewSmaCrossover(crossover.NewStore()),
		strategy.NewRsiMacd(),
		strategy.NewMlBased(),
	)
	dispatcher := strategy.NewDispatcher(svc.registry, svc.store)
	dispatcher.OnSkip = func(sk strategy.Skip) {
		svc.prom.DispatchSkips.WithLabelValues(sk.Reason).Inc()
	}

	svc.sim = portfolio.NewSimulator(portfolio.Config{
		InitialCash: cfg.InitialCash,
		Notional:    cfg.TradeNotional,
	})

	signalSinks := []model.SignalSink{svc.store}
	tradeSinks := []model.TradeSink{svc.store}
	if svc.publisher != nil {
		signalSinks = append(signalSinks, svc.publisher)
		tradeSinks = append(tradeSinks, svc.publisher)
	}
	svc.executor = execution.NewPaperExecutor(svc.sim, 0, tradeSinks...)

	svc.fanout = bus.New(fanoutBuffer)
	svc.fanout.OnDrop = func(name string) {
		svc.prom.FanoutDropsTotal.WithLabelValues(name).Inc()
	}
	svc.hubSignal = svc.fanout.Subscribe("ws")
	svc.hub = gateway.NewHub(hubReplaySize, svc.prom)

	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL))
	}

	svc.pipe = pipeline.New(pipeline.Config{
		Workers:         cfg.PipelineWorkers,
		QueueSize:       pipeline.DefaultConfig().QueueSize,
		DispatchTimeout: cfg.DispatchTimeout,
	}, pipeline.Deps{
		Dispatcher:  dispatcher,
		Configs:     svc.store,
		ML:          strategy.NewMlBased(),
		Simulator:   svc.sim,
		Executor:    svc.executor,
		BarWriter:   svc.store,
		SignalSinks: signalSinks,
		Fanout:      svc.fanout,
		Notifier:    notifiers,
		Metrics:     svc.prom,
		Health:      svc.health,
	})

	server := gateway.NewServer(gateway.Deps{
		Bars:       svc.store,
		Signals:    svc.store,
		Strategies: svc.store,
		Backtests:  svc.store,
		Engine:     backtest.NewEngine(svc.store, backtest.WithResults(svc.store)),
		Registry:   svc.registry,
		Simulator:  svc.sim,
		Executor:   svc.executor,
		Hub:        svc.hub,
		Health:     svc.health,
		Metrics:    svc.prom,
		Gatherer:   svc.gatherer,
	}, gateway.Options{
		TOTPSecret:    cfg.AdminTOTPSecret,
		BacktestRate:  cfg.BacktestRatePerSec,
		BacktestBurst: cfg.BacktestBurst,
	})
	svc.httpSrv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	log.Println("[tradecore] starting trading service...")

	// ---- Seed strategy configs ----
	svc.seedStrategies(ctx)

	// ---- Health probes ----
	svc.health.CheckSQLite(ctx, svc.store.DB())
	if svc.rdb != nil {
		svc.health.CheckRedis(ctx, svc.rdb)
	}
	svc.health.StartLivenessChecker(ctx, svc.rdb, svc.store.DB(), livenessInterval)

	// ---- Start subsystems ----
	svc.pipe.Start(ctx)
	go svc.hub.Run(ctx, svc.hubSignal)
	go svc.statsLoop(ctx)
	svc.startConsumer(ctx)
	httpErr := svc.startHTTP()

	log.Printf("[tradecore] ✅ all systems running (http=%s redis=%t workers=%d)",
		svc.cfg.HTTPAddr, svc.rdb != nil, svc.cfg.PipelineWorkers)

	var err error
	select {
	case <-ctx.Done():
	case err = <-httpErr:
		log.Printf("[tradecore] HTTP server error: %v", err)
	}

	svc.shutdown()
	return err
}

// seedStrategies loads the YAML seed file into an empty strategy table.
func (svc *Service) seedStrategies(ctx context.Context) {
	path := svc.cfg.StrategySeedFile
	if path == "" {
		return
	}
	configs, err := config.LoadStrategySeed(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("[tradecore] no strategy seed file at %s", path)
		} else {
			log.Printf("[tradecore] WARNING: strategy seed: %v", err)
		}
		return
	}
	n, err := svc.store.SeedStrategyConfigs(ctx, configs)
	if err != nil {
		log.Printf("[tradecore] WARNING: strategy seed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[tradecore] seeded %d strategy configs from %s", n, path)
	}
}

// startHTTP serves the gateway. The returned channel receives a listen error.
func (svc *Service) startHTTP() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[tradecore] HTTP server on %s", svc.cfg.HTTPAddr)
		if err := svc.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// statsLoop logs fan-out channel saturation and the portfolio value.
func (svc *Service) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, st := range svc.fanout.ChannelStats() {
				if st.Cap > 0 && st.Len*100/st.Cap >= 80 {
					log.Printf("[tradecore] WARNING: fan-out channel %s at %d/%d", st.Name, st.Len, st.Cap)
				}
			}
			pending := 0
			if svc.publisher != nil {
				pending = svc.publisher.PendingCount()
			}
			log.Printf("[tradecore] stats: portfolio=%.2f cash=%.2f ws_clients=%d redis_buffered=%d",
				svc.sim.PortfolioValue(), svc.sim.Cash(), svc.hub.ClientCount(), pending)
		}
	}
}

// shutdown drains the pipeline and closes connections.
func (svc *Service) shutdown() {
	log.Println("[tradecore] shutdown signal received...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.httpSrv.Shutdown(shutCtx); err != nil {
		log.Printf("[tradecore] HTTP shutdown: %v", err)
	}

	svc.pipe.Stop()
	svc.fanout.Close()

	if svc.rdb != nil {
		svc.rdb.Close()
	}
	svc.store.Close()

	log.Println("[tradecore] shutdown complete.")
}
