package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HopNGo/TripWallet/config"
	"github.com/HopNGo/TripWallet/internal/broker/kafka"
	"github.com/HopNGo/TripWallet/internal/cache/rediscache"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi/fake"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi/resthttp"
	"github.com/HopNGo/TripWallet/internal/services/agent"
	"github.com/HopNGo/TripWallet/internal/services/syncer"
	"github.com/HopNGo/TripWallet/internal/services/wallet"
	"github.com/HopNGo/TripWallet/internal/storage/walletdb"
)

type agentFactories struct {
	newStorage      func(cfg *config.Config) (st *walletdb.Storage, closeFn func() error, err error)
	newProducer     func(cfg *config.Config) wallet.Producer
	newRateLimiter  func(cfg *config.Config) agent.RateLimiter
	newTravelClient func(cfg *config.Config) travelapi.Client
}

func defaultAgentFactories() agentFactories {
	return agentFactories{
		newStorage: func(cfg *config.Config) (*walletdb.Storage, func() error, error) {
			dbPath := cfg.Database.Path
			if dbPath == "" {
				dbPath = "wallet.db"
			}
			st, err := walletdb.New(dbPath)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) wallet.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) agent.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newTravelClient: func(cfg *config.Config) travelapi.Client {
			// Для демо — fake, если remote API не настроен.
			if cfg.Wallet.TravelAPIBaseURL != "" && cfg.Wallet.TravelAPIMode == "rest" {
				return resthttp.New(cfg.Wallet.TravelAPIBaseURL, cfg.Wallet.TravelAPIKey)
			}
			return fake.New()
		},
	}
}

func RunWalletAgent(ctx context.Context, cfg *config.Config, f agentFactories) error {
	updatedTopic := cfg.Kafka.WalletUpdatedTopicName
	if updatedTopic == "" {
		updatedTopic = "wallet.updated"
	}
	statusTopic := cfg.Kafka.BookingStatusChangedTopicName
	if statusTopic == "" {
		statusTopic = "wallet.booking_status"
	}

	syncInterval := time.Duration(cfg.Wallet.AgentSyncIntervalSeconds) * time.Second
	if syncInterval <= 0 {
		syncInterval = 5 * time.Minute
	}
	probeInterval := time.Duration(cfg.Wallet.AgentProbeIntervalSeconds) * time.Second
	if probeInterval <= 0 {
		probeInterval = 15 * time.Second
	}
	watchBatch := cfg.Wallet.AgentWatchBatchSize
	if watchBatch <= 0 {
		watchBatch = 20
	}
	rlPerMin := int64(cfg.Wallet.AgentRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 60
	}

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	client := f.newTravelClient(cfg)

	var svc *wallet.Service
	syncs := syncer.New(st, client, func() bool { return svc.Online() }).
		WithLimits(syncer.Limits{
			Itineraries: cfg.Wallet.SyncLimitItineraries,
			Bookings:    cfg.Wallet.SyncLimitBookings,
			Tickets:     cfg.Wallet.SyncLimitTickets,
		})
	svc = wallet.New(st, syncs, client, cfg.Wallet.UserID).
		WithProducer(producer, updatedTopic, statusTopic).
		WithWatchSettings(
			time.Duration(cfg.Wallet.WatchIntervalSeconds)*time.Second,
			cfg.Wallet.WatchMaxAttempts,
		)

	go func() { _ = svc.RunConnectivityProbe(ctx, probeInterval) }()

	a := agent.New(svc, st, rl).WithSettings(syncInterval, watchBatch, rlPerMin)

	if cfg.Wallet.AgentHTTPAddr != "" {
		go func() {
			err := runAgentHTTPServer(ctx, agentHTTPOpts{
				httpAddr: cfg.Wallet.AgentHTTPAddr,
				agent:    a,
				svc:      svc,
				cfg:      cfg,
			})
			if err != nil && err != context.Canceled {
				slog.Error("agent http server", "error", err.Error())
			}
		}()
	}

	// Первый sync сразу после старта, не дожидаясь тика.
	a.Trigger()
	return a.Run(ctx)
}
