package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HopNGo/TripWallet/config"
	"github.com/HopNGo/TripWallet/internal/broker/kafka"
	"github.com/HopNGo/TripWallet/internal/cache/rediscache"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi/fake"
	"github.com/HopNGo/TripWallet/internal/integrations/travelapi/resthttp"
	"github.com/HopNGo/TripWallet/internal/services/syncer"
	"github.com/HopNGo/TripWallet/internal/services/wallet"
	"github.com/HopNGo/TripWallet/internal/storage/walletdb"
)

type walletAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     walletAPIOpts
	svc      *wallet.Service
	consumer *kafka.Consumer
	closeDB  func() error
}

func mustBootstrapWalletAPI() *walletAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Wallet.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Wallet.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "wallet-api"
	}
	statusTopic := cfg.Kafka.BookingStatusChangedTopicName
	if statusTopic == "" {
		statusTopic = "wallet.booking_status"
	}
	updatedTopic := cfg.Kafka.WalletUpdatedTopicName
	if updatedTopic == "" {
		updatedTopic = "wallet.updated"
	}
	cacheTTL := time.Duration(cfg.Wallet.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	probeInterval := time.Duration(cfg.Wallet.AgentProbeIntervalSeconds) * time.Second
	if probeInterval <= 0 {
		probeInterval = 15 * time.Second
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "wallet.db"
	}
	st, err := walletdb.New(dbPath)
	if err != nil {
		panic(err)
	}

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	client := newTravelClient(cfg)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, statusTopic, consumerGroup)

	var svc *wallet.Service
	syncs := syncer.New(st, client, func() bool { return svc.Online() }).
		WithLimits(syncer.Limits{
			Itineraries: cfg.Wallet.SyncLimitItineraries,
			Bookings:    cfg.Wallet.SyncLimitBookings,
			Tickets:     cfg.Wallet.SyncLimitTickets,
		})
	svc = wallet.New(st, syncs, client, cfg.Wallet.UserID).
		WithCache(rc, cacheTTL).
		WithProducer(producer, updatedTopic, statusTopic).
		WithWatchSettings(
			time.Duration(cfg.Wallet.WatchIntervalSeconds)*time.Second,
			cfg.Wallet.WatchMaxAttempts,
		)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &walletAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: walletAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         statusTopic,
			consumerGroup: consumerGroup,
			probeInterval: probeInterval,
		},
		svc:      svc,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func newTravelClient(cfg *config.Config) travelapi.Client {
	if cfg.Wallet.TravelAPIBaseURL != "" && cfg.Wallet.TravelAPIMode == "rest" {
		return resthttp.New(cfg.Wallet.TravelAPIBaseURL, cfg.Wallet.TravelAPIKey)
	}
	return fake.New()
}

func (a *walletAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		_ = a.closeDB()
	}
}

func (a *walletAPIApp) Run() error {
	return runWalletAPI(a.ctx, a.opts, a.svc, a.consumer)
}
