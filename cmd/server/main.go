// Package main is the entry point for the tradewind agent server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tradewind-labs/tradewind/internal/admin"
	"github.com/tradewind-labs/tradewind/internal/agent"
	"github.com/tradewind-labs/tradewind/internal/alerts"
	"github.com/tradewind-labs/tradewind/internal/broker"
	"github.com/tradewind-labs/tradewind/internal/crisis"
	"github.com/tradewind-labs/tradewind/internal/dex"
	"github.com/tradewind-labs/tradewind/internal/llm"
	"github.com/tradewind-labs/tradewind/internal/metrics"
	"github.com/tradewind-labs/tradewind/internal/signals"
	"github.com/tradewind-labs/tradewind/internal/store"
	"github.com/tradewind-labs/tradewind/internal/trader"
	"github.com/tradewind-labs/tradewind/pkg/types"
)

func main() {
	host := flag.String("host", "localhost", "Admin server host")
	port := flag.Int("port", 8080, "Admin server port")
	dataDir := flag.String("data", "./data", "State directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Optional .env for local runs; real deployments set the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TRADEWIND")
	v.AutomaticEnv()

	logger := setupLogger(*logLevel)
	defer logger.Sync()

	logger.Info("starting tradewind agent",
		zap.String("host", *host),
		zap.Int("port", *port),
		zap.String("dataDir", *dataDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileStore, err := store.NewFileStore(logger, *dataDir)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}

	brk := broker.NewAlpacaBroker(logger, broker.AlpacaConfig{
		APIKey:    v.GetString("ALPACA_KEY"),
		APISecret: v.GetString("ALPACA_SECRET"),
		BaseURL:   v.GetString("ALPACA_BASE_URL"),
	})

	defaults := types.DefaultConfig()

	validator := signals.NewTickerValidator(logger, assetAdapter{brk})
	gatherer := signals.NewGatherer(logger,
		signals.NewStockTwitsGatherer(logger, 3),
		signals.NewRedditGatherer(logger, validator),
		signals.NewCryptoGatherer(logger, cryptoAdapter{brk}),
	)

	llmClient := llm.NewClient(logger,
		defaults.LLM.Endpoint,
		v.GetString("OPENAI_API_KEY"),
		time.Duration(defaults.LLM.TimeoutSec*float64(time.Second)),
	)
	researcher := llm.NewResearcher(logger, llmClient, defaults.LLM)

	var news trader.NewsChecker
	if bearer := v.GetString("TWITTER_BEARER"); bearer != "" {
		news = trader.NewTwitterNewsChecker(logger, bearer)
	}
	trd := trader.NewTrader(logger, brk, researcher, news)

	engine := dex.NewEngine(logger,
		dex.NewDexScreenerScanner(logger),
		dex.NewGeckoChartAnalyzer(logger),
		dex.NewSolPriceCache(logger, 300, defaults.Dex.SolPriceFallbackUsd),
	)

	monitor := crisis.NewMonitor(logger, crisis.NewFetcher(logger, v.GetString("FRED_API_KEY")))

	notifier := alerts.NewNotifier(logger, types.AlertsConfig{
		DiscordWebhookURL:     v.GetString("DISCORD_WEBHOOK"),
		TelegramToken:         v.GetString("TELEGRAM_TOKEN"),
		TelegramChatID:        v.GetInt64("TELEGRAM_CHAT_ID"),
		TradeCooldownMinutes:  defaults.Alerts.TradeCooldownMinutes,
		CrisisCooldownMinutes: defaults.Alerts.CrisisCooldownMinutes,
	})

	m := metrics.New()

	var hub *admin.Hub
	ag, err := agent.New(logger, agent.Deps{
		Store:    fileStore,
		Broker:   brk,
		Gatherer: gatherer,
		Trader:   trd,
		Dex:      engine,
		Crisis:   monitor,
		Notifier: notifier,
		Metrics:  m,
		Events: func(event string, data interface{}) {
			if hub != nil {
				hub.Broadcast(admin.EventType(event), data)
			}
		},
	})
	if err != nil {
		logger.Fatal("failed to initialize agent", zap.Error(err))
	}

	server := admin.NewServer(logger, admin.Config{
		Host:         *host,
		Port:         *port,
		AuthToken:    v.GetString("ADMIN_TOKEN"),
		KillSecret:   v.GetString("KILL_SWITCH_SECRET"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}, ag, brk, monitor, researcher, m)
	hub = server.Hub()

	go ag.Run(ctx)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("admin server stopped", zap.Error(err))
		}
	}()

	logger.Info("agent running",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", *host, *port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d/ws", *host, *port)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// assetAdapter narrows the broker to the ticker validator's lookup.
type assetAdapter struct {
	brk broker.Broker
}

func (a assetAdapter) AssetExists(ctx context.Context, symbol string) (bool, error) {
	asset, err := a.brk.GetAsset(ctx, symbol)
	if err != nil {
		return false, err
	}
	return asset.Tradable, nil
}

// cryptoAdapter narrows the broker to the crypto gatherer's quoter.
type cryptoAdapter struct {
	brk broker.Broker
}

func (a cryptoAdapter) GetCryptoSnapshot(ctx context.Context, symbol string) (signals.CryptoQuote, error) {
	snap, err := a.brk.GetCryptoSnapshot(ctx, symbol)
	if err != nil {
		return signals.CryptoQuote{}, err
	}
	return signals.CryptoQuote{
		Symbol:       snap.Symbol,
		Price:        snap.Price,
		DayChangePct: snap.DayChangePct,
	}, nil
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}

	return logger
}
