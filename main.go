package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/koshedutech/binance-futures-bot/config"
	"github.com/koshedutech/binance-futures-bot/internal/api"
	"github.com/koshedutech/binance-futures-bot/internal/auth"
	"github.com/koshedutech/binance-futures-bot/internal/binance"
	"github.com/koshedutech/binance-futures-bot/internal/bot"
	"github.com/koshedutech/binance-futures-bot/internal/cache"
	"github.com/koshedutech/binance-futures-bot/internal/database"
	"github.com/koshedutech/binance-futures-bot/internal/events"
	"github.com/koshedutech/binance-futures-bot/internal/execution"
	"github.com/koshedutech/binance-futures-bot/internal/logging"
	"github.com/koshedutech/binance-futures-bot/internal/metrics"
	"github.com/koshedutech/binance-futures-bot/internal/notification"
	"github.com/koshedutech/binance-futures-bot/internal/strategy"
	"github.com/koshedutech/binance-futures-bot/internal/vault"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.Logging.Level)
	log.Info().Str("symbol", cfg.Binance.Symbol).Bool("testnet", cfg.Binance.Testnet).
		Msg("starting trading bot")

	ctx := context.Background()
	bus := events.NewBus(logging.Component(log, "events"))

	m := metrics.New()
	m.Observe(bus)

	// Venue credentials: Vault when enabled, static config otherwise.
	creds := execution.Credentials{
		APIKey:    cfg.Binance.APIKey,
		SecretKey: cfg.Binance.SecretKey,
		Testnet:   cfg.Binance.Testnet,
	}
	vaultClient, err := vault.NewClient(cfg.Vault, logging.Component(log, "vault"))
	if err != nil {
		log.Error().Err(err).Msg("vault unavailable, falling back to static credentials")
	} else if vaultClient != nil {
		if vaultCreds, err := vaultClient.GetCredentials(ctx); err != nil {
			log.Error().Err(err).Msg("vault credential fetch failed, falling back to static credentials")
		} else {
			creds = vaultCreds
		}
	}

	gateway := execution.NewGateway(logging.Component(log, "execution"))
	gateway.Configure(creds)

	restClient := binance.NewClient(creds.APIKey, creds.SecretKey, creds.Testnet)
	stream := binance.NewTickerStream(cfg.Binance.Symbol, creds.Testnet, logging.Component(log, "stream"))

	engine := strategy.NewEngine(strategy.EngineConfig{
		Symbol:           cfg.Binance.Symbol,
		Interval:         cfg.Engine.Interval(),
		BinanceInterval:  cfg.Engine.BinanceInterval(),
		HistoryLimit:     cfg.Engine.HistoryLimit,
		SeedLimit:        cfg.Engine.SeedLimit,
		MinBars:          cfg.Engine.MinBars,
		AnalysisInterval: time.Duration(cfg.Engine.AnalysisInterval) * time.Second,
		WarmupDelay:      time.Duration(cfg.Engine.WarmupDelay) * time.Second,
		SignalCooldown:   time.Duration(cfg.Engine.SignalCooldown) * time.Second,
	}, stream, restClient, logging.Component(log, "engine"))

	var notifier bot.Notifier
	if cfg.Notification.Enabled {
		var providers []notification.Provider
		if cfg.Notification.Telegram.Enabled {
			if p := notification.NewTelegramProvider(cfg.Notification.Telegram.BotToken, cfg.Notification.Telegram.ChatID); p != nil {
				providers = append(providers, p)
			}
		}
		if cfg.Notification.Discord.Enabled {
			if p := notification.NewDiscordProvider(cfg.Notification.Discord.WebhookURL); p != nil {
				providers = append(providers, p)
			}
		}
		if len(providers) > 0 {
			notifier = notification.NewManager(logging.Component(log, "notification"), providers...)
		}
	}

	tradingBot := bot.New(stream, engine, gateway, bus, notifier, logging.Component(log, "bot"))

	// Trade journal and status cache are optional collaborators.
	db, err := database.Connect(ctx, cfg.Database, logging.Component(log, "database"))
	if err != nil {
		log.Warn().Err(err).Msg("trade journal disabled")
		db = nil
	}
	if db != nil {
		defer db.Close()
		database.NewJournal(db, bus, logging.Component(log, "journal"))
	}

	statusCache, err := cache.Connect(ctx, cfg.Redis, logging.Component(log, "cache"))
	if err != nil {
		log.Warn().Err(err).Msg("status cache disabled")
		statusCache = nil
	}
	if statusCache != nil {
		defer statusCache.Close()
	}

	stream.Subscribe(func(tick binance.Tick) {
		m.TicksReceived.Inc()
		m.CurrentPrice.Set(tick.Price)
	})
	go observeStatus(ctx, tradingBot, stream, statusCache, m)

	tradingBot.Configure(bot.Policy{
		Enabled:           cfg.Trading.Enabled,
		MinScore:          int(cfg.Trading.MinScore),
		MinOrderInterval:  time.Duration(cfg.Trading.MinOrderInterval) * time.Second,
		AccountPercentage: cfg.Trading.AccountPercentage,
		Leverage:          cfg.Trading.Leverage,
		MarginType:        cfg.Trading.MarginType,
	})

	authManager := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.PasswordHash,
		time.Duration(cfg.Auth.TokenDuration)*time.Minute)
	server := api.NewServer(tradingBot, authManager, db, m.Handler(), logging.Component(log, "api"))

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.Run(addr); err != nil {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	tradingBot.Stop()
}

// observeStatus refreshes gauges and the external status snapshot.
func observeStatus(ctx context.Context, b *bot.Bot, stream *binance.TickerStream, c *cache.Cache, m *metrics.Metrics) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	lastBarCount := 0
	for range ticker.C {
		status := b.GetStatus()

		if stream.IsConnected() {
			m.StreamConnected.Set(1)
		} else {
			m.StreamConnected.Set(0)
		}
		if status.BarCount > lastBarCount {
			m.BarsClosed.Add(float64(status.BarCount - lastBarCount))
		}
		lastBarCount = status.BarCount

		if c != nil {
			c.SetStatus(ctx, status)
		}
	}
}
