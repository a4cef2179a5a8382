package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradeflow/internal/engine"
	"tradeflow/internal/events"
	"tradeflow/internal/notify"
	"tradeflow/internal/pending"
	"tradeflow/internal/pipeline"
	"tradeflow/internal/resilience"
	"tradeflow/internal/risk"
	sig "tradeflow/internal/signal"
	"tradeflow/pkg/config"
	"tradeflow/pkg/db"
	"tradeflow/pkg/exchanges/binance"
	"tradeflow/pkg/logger"
)

func main() {
	var (
		signalFile = flag.String("signal", "", "path to a JSON signal to process once and exit")
		symbol     = flag.String("symbol", "BTCUSDT", "symbol for -signal submission")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	riskCfg := risk.DefaultConfig()
	if cfg.RiskConfigPath != "" {
		riskCfg, err = risk.LoadConfig(cfg.RiskConfigPath)
		if err != nil {
			log.Fatal("risk config", zap.Error(err))
		}
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer database.Close()

	bus := events.NewBus()

	gateway := binance.New(cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.BinanceTestnet, rate.Limit(cfg.GatewayRPS))
	breaker := resilience.NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	guard := resilience.NewGuard(breaker, resilience.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Jitter:      0.2,
	}, cfg.GatewayTimeout, bus, logger.Named(log, "resilience"))

	exec := pipeline.NewExecutor(gateway, guard, bus, log)
	pendingStore := pending.NewStore(database, bus, log)

	eng := engine.New(gateway, guard, exec, pendingStore, database, bus, log,
		engine.Mode(cfg.Mode), riskCfg, cfg.PendingTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks := []notify.Sink{notify.LogSink{Log: logger.Named(log, "alerts")}}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn("telegram sink unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, tg)
		}
	}
	notify.New(bus, log, sinks...).Start(ctx)
	pendingStore.Start(ctx, cfg.SweepInterval)

	log.Info("tradeflow started",
		zap.String("mode", cfg.Mode),
		zap.Bool("testnet", cfg.BinanceTestnet),
		zap.String("db", cfg.DBPath))

	if *signalFile != "" {
		if err := submitOnce(ctx, eng, *signalFile, *symbol, log); err != nil {
			log.Fatal("signal submission", zap.Error(err))
		}
		return
	}

	<-ctx.Done()
	log.Info("shutting down")
}

// submitOnce loads a signal from disk, processes it, and prints the
// outcome.
func submitOnce(ctx context.Context, eng *engine.Engine, path, symbol string, log *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read signal file: %w", err)
	}
	var s sig.Signal
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("parse signal: %w", err)
	}

	out, err := eng.Process(ctx, &s, symbol)
	if err != nil {
		log.Warn("signal not executed", zap.Error(err))
	}
	encoded, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(encoded))
	return nil
}
