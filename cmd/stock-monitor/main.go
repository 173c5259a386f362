package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/stock-snapshot-monitor/internal/analyzer"
	"github.com/trogers1052/stock-snapshot-monitor/internal/api"
	"github.com/trogers1052/stock-snapshot-monitor/internal/comparator"
	"github.com/trogers1052/stock-snapshot-monitor/internal/config"
	"github.com/trogers1052/stock-snapshot-monitor/internal/database"
	"github.com/trogers1052/stock-snapshot-monitor/internal/kafka"
	"github.com/trogers1052/stock-snapshot-monitor/internal/logging"
	"github.com/trogers1052/stock-snapshot-monitor/internal/metrics"
	"github.com/trogers1052/stock-snapshot-monitor/internal/monitor"
	"github.com/trogers1052/stock-snapshot-monitor/internal/notify"
	"github.com/trogers1052/stock-snapshot-monitor/internal/source"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	oneTime := flag.Bool("one-time", false, "run a single capture cycle and exit")
	serve := flag.Bool("serve", false, "serve the read API while polling")
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "optional dotenv-style config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		return 1
	}
	mainLog := logging.Component(logger, "main")

	if err := cfg.Validate(); err != nil {
		mainLog.WithError(err).Error("Invalid configuration")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database.ConnectionString(), logging.Component(logger, "database"))
	if err != nil {
		mainLog.WithError(err).Error("Failed to connect to database")
		return 1
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		mainLog.WithError(err).Error("Failed to run migrations")
		return 1
	}

	yahoo := source.NewYahoo()
	sources := []source.Source{yahoo}
	if cfg.Sources.AlphaVantageKey != "" {
		alpha, err := source.NewAlphaVantage(cfg.Sources.AlphaVantageKey,
			source.WithHTTPClient(&http.Client{Timeout: cfg.Monitor.FetchTimeout}))
		if err != nil {
			mainLog.WithError(err).Error("Failed to create Alpha Vantage source")
			return 1
		}
		sources = append(sources, alpha)
	} else {
		mainLog.Warn("No Alpha Vantage API key configured, using Yahoo Finance only")
	}

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			mainLog.WithError(err).Warn("Redis unavailable, quote cache disabled")
		} else {
			cacheLog := logging.Component(logger, "quote_cache")
			for i, src := range sources {
				sources[i] = source.NewCached(src, rdb, cfg.Redis.QuoteTTL, cacheLog)
			}
		}
	}

	symbols, err := monitor.FilterSymbols(ctx, cfg.Monitor.Symbols, yahoo, logging.Component(logger, "symbols"))
	if err != nil {
		mainLog.WithError(err).Error("No symbols to monitor")
		return 1
	}
	mainLog.WithField("symbols", symbols).Info("Monitoring symbols")

	m := metrics.New()
	opts := monitor.Options{
		Symbols:      symbols,
		Sources:      sources,
		Store:        db,
		Comparator:   comparator.New(db, logging.Component(logger, "comparator")),
		Analyzer:     analyzer.New(cfg.Monitor.Threshold, logging.Component(logger, "analyzer")),
		Metrics:      m,
		SymbolDelay:  cfg.Monitor.SymbolDelay,
		FetchTimeout: cfg.Monitor.FetchTimeout,
		Logger:       logging.Component(logger, "monitor"),
	}

	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		opts.Publisher = producer
	}

	if cfg.Telegram.Enabled() {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.Telegram.Token,
			ChatID: cfg.Telegram.ChatID,
		})
		if err != nil {
			mainLog.WithError(err).Warn("Telegram unavailable, alert notifications disabled")
		} else {
			opts.Notifier = tg
		}
	}

	mon := monitor.New(opts)

	if *oneTime {
		if _, err := mon.RunCycle(ctx); err != nil {
			mainLog.WithError(err).Error("Monitor cycle failed")
			return 1
		}
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)

	scheduler := monitor.NewScheduler(cfg.Monitor.PollInterval, cfg.Monitor.RetryDelay, logging.Component(logger, "scheduler"))
	g.Go(func() error {
		return scheduler.Run(gctx, mon.Run)
	})

	if *serve {
		handler := api.NewHandler(db, mon, m.Handler(), logging.Component(logger, "api"))
		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           api.SetupRoutes(handler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			mainLog.WithField("addr", srv.Addr).Info("Starting API server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		mainLog.WithError(err).Error("Stopped with error")
		return 1
	}

	mainLog.Info("Shutdown complete")
	return 0
}
