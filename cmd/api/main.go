package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/codmtracker/codm-backend/api/routes"
	"github.com/codmtracker/codm-backend/internal/cart"
	"github.com/codmtracker/codm-backend/internal/ledger"
	"github.com/codmtracker/codm-backend/internal/orders"
	"github.com/codmtracker/codm-backend/internal/payments"
	product "github.com/codmtracker/codm-backend/internal/products"
	"github.com/codmtracker/codm-backend/internal/tournaments"
	"github.com/codmtracker/codm-backend/internal/users"
	paystackwebhook "github.com/codmtracker/codm-backend/internal/webhooks/paystack"
	"github.com/codmtracker/codm-backend/pkg/config"
	"github.com/codmtracker/codm-backend/pkg/db"
	"github.com/codmtracker/codm-backend/pkg/logger"
	"github.com/codmtracker/codm-backend/pkg/metrics"
	"github.com/codmtracker/codm-backend/pkg/migrate"
	"github.com/codmtracker/codm-backend/pkg/paystack"
	"github.com/codmtracker/codm-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	deps := routes.Dependencies{
		DBPinger:    dbClient,
		Gatherer:    registry,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
	}

	conn := dbClient.DB()
	productRepo := product.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	userRepo := users.NewRepository(conn)

	var sequence orders.DailySequence = orders.NewDBSequence(orderRepo)
	var guard *paystackwebhook.IdempotencyGuard
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		deps.RedisPinger = redisClient
		deps.Idempotency = redisClient

		redisSequence, err := orders.NewRedisSequence(redisClient, orderRepo, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create order sequence", err)
			os.Exit(1)
		}
		sequence = redisSequence

		guard, err = paystackwebhook.NewIdempotencyGuard(redisClient, cfg.Paystack.WebhookTTL, "paystack-webhook")
		if err != nil {
			logg.Error(context.Background(), "failed to create webhook guard", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured, using database fallbacks")
	}

	var (
		initializer orders.PaymentInitializer
		verifier    payments.TransactionVerifier
	)
	if key := cfg.Paystack.SecretKey(); key != "" {
		client, err := paystack.NewClient(key,
			paystack.WithBaseURL(cfg.Paystack.BaseURL),
			paystack.WithTimeout(cfg.Paystack.Timeout),
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create paystack client", err)
			os.Exit(1)
		}
		initializer = client
		verifier = client
		deps.WebhookVerifier = client
	} else {
		ctx := logg.WithField(context.Background(), "env_var", cfg.Paystack.SecretKeyEnv())
		logg.Error(ctx, "paystack secret key missing, payments disabled", errors.New("missing gateway key"))
	}

	catalog, err := product.NewService(productRepo)
	exitOn(logg, "failed to create product service", err)
	deps.Products = catalog

	delivery, err := orders.NewDeliveryPolicy(orderRepo, cfg.Shop.DeliveryFee)
	exitOn(logg, "failed to create delivery policy", err)

	cartService, err := cart.NewService(cartRepo, dbClient, productRepo, delivery)
	exitOn(logg, "failed to create cart service", err)
	deps.Cart = cartService

	ledgerService, err := ledger.NewService(ledger.NewRepository(conn))
	exitOn(logg, "failed to create ledger service", err)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:        orderRepo,
		Carts:       cartRepo,
		Users:       userRepo,
		TxRunner:    dbClient,
		Delivery:    delivery,
		Sequence:    sequence,
		Gateway:     initializer,
		Ledger:      ledgerService,
		Metrics:     paymentMetrics,
		Logger:      logg,
		Currency:    cfg.Shop.Currency,
		CallbackURL: cfg.Shop.CallbackURL,
		RecentLimit: cfg.Shop.RecentOrders,
	})
	exitOn(logg, "failed to create orders service", err)
	deps.Orders = orderService

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(conn),
		Orders:   orderRepo,
		Carts:    cartRepo,
		Products: productRepo,
		TxRunner: dbClient,
		Ledger:   ledgerService,
		Verifier: verifier,
		Metrics:  paymentMetrics,
		Logger:   logg,
	})
	exitOn(logg, "failed to create payments service", err)
	deps.Payments = paymentService

	webhookService, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Payments: paymentService,
		Guard:    guard,
		Logger:   logg,
	})
	exitOn(logg, "failed to create webhook service", err)
	deps.PaystackEvents = webhookService

	tournamentService, err := tournaments.NewService(tournaments.ServiceParams{
		Repo:     tournaments.NewRepository(conn),
		Profiles: userRepo,
		TxRunner: dbClient,
		Gateway:  tournaments.ApprovingGateway{},
		Metrics:  metrics.NewRegistrationMetrics(registry),
		Logger:   logg,
	})
	exitOn(logg, "failed to create tournaments service", err)
	deps.Tournaments = tournamentService

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"paystackMode": cfg.Paystack.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	signals, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-signals.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func exitOn(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
