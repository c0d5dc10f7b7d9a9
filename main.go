package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldhand/config"
	"fieldhand/cron"
	"fieldhand/database"
	"fieldhand/database/repository"
	"fieldhand/handlers"
	"fieldhand/middleware"
	"fieldhand/routes"
	"fieldhand/services/booking"
	"fieldhand/services/events"
	"fieldhand/services/notification"
	"fieldhand/services/payment"
	"fieldhand/services/tasks"
	"fieldhand/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type stores struct {
	bookings   repository.BookingRepository
	categories repository.CategoryRepository
	providers  repository.ProviderRepository
	mongo      *mongo.Client
}

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := utils.InitTracer("fieldhand", cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize tracing: %v", err)
	}

	st, err := openStores(cfg)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to open stores: %v", err)
	}
	if cfg.CatalogFile != "" {
		if err := seedCatalog(ctx, st, cfg.CatalogFile, logger); err != nil {
			logger.Sugar().Fatalf("main: failed to load catalog: %v", err)
		}
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = utils.NewRedisClient(ctx, utils.RedisSettings{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisCacheDB,
		})
		if err != nil {
			logger.Sugar().Fatalf("main: failed to connect to redis: %v", err)
		}
		st.categories = repository.NewCachedCategoryRepo(st.categories, redisClient, cfg.CategoryCacheTTL, logger)
	}
	utils.StartHealthMonitor(ctx, redisClient, st.mongo, 30*time.Second)

	gateway, webhooks, signatureHeader := newGateway(cfg, logger)
	publisher := newPublisher(cfg, logger)
	notifier := newNotifier(ctx, cfg, logger)

	var (
		refundQueue  booking.RefundQueue
		inlineQueue  *tasks.InlineRefundQueue
		asynqClient  *asynq.Client
		queueOptions = asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisQueueDB,
		}
	)
	if redisClient != nil {
		asynqClient = asynq.NewClient(queueOptions)
		refundQueue = tasks.NewAsynqRefundQueue(asynqClient, logger)
	} else {
		inlineQueue = tasks.NewInlineRefundQueue(2*cfg.GatewayTimeout, logger)
		refundQueue = inlineQueue
	}

	engine := booking.NewEngine(booking.EngineDeps{
		Bookings:   st.bookings,
		Categories: st.categories,
		Providers:  st.providers,
		Gateway:    gateway,
		Clock:      utils.SystemClock{},
		Publisher:  publisher,
		Notifier:   notifier,
		Refunds:    refundQueue,
		Logger:     logger,
		Settings: booking.Settings{
			PaymentWindow:      cfg.PaymentWindow,
			ProviderEditWindow: cfg.ProviderEditWindow,
			RefundStaleAfter:   cfg.RefundStaleAfter,
			Currency:           cfg.Currency,
		},
	})
	resolver := booking.NewAssignmentResolver(engine, st.providers, logger)
	reconciler := booking.NewReconciler(engine, resolver, st.bookings, cfg.SweepBatchSize, logger)
	refunds := booking.NewRefundProcessor(engine, gateway, logger)
	bookingService := booking.NewBookingService(engine, resolver, st.bookings, logger)

	var worker *cron.Worker
	if redisClient != nil {
		worker = cron.NewWorker(queueOptions, reconciler, refunds, cfg.SweepInterval, logger)
		if err := worker.Start(); err != nil {
			logger.Sugar().Fatalf("main: failed to start task worker: %v", err)
		}
	} else {
		inlineQueue.Bind(refunds)
		go reconciler.Run(ctx, cfg.SweepInterval)
		logger.Warn("No redis configured, running expiry sweep in process")
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))

	handlerBundle := &handlers.HandlerBundle{
		Booking:     handlers.NewBookingHandler(bookingService),
		Webhook:     handlers.NewPaymentWebhookHandler(webhooks, bookingService, signatureHeader),
		Auth:        middleware.ActorAuthMiddleware(cfg.JWTSecret),
		RateLimiter: middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin, logger),
	}
	routes.RegisterRoutes(router, handlerBundle)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}
	if worker != nil {
		worker.Shutdown()
	}
	if inlineQueue != nil {
		inlineQueue.Wait()
	}
	if asynqClient != nil {
		_ = asynqClient.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if closer, ok := publisher.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if err := database.Disconnect(shutdownCtx, st.mongo); err != nil {
		logger.Warn("main: mongo disconnect failed", zap.Error(err))
	}
	_ = shutdownTracer(shutdownCtx)

	logger.Sugar().Info("main: server stopped gracefully")
}

func openStores(cfg config.Config) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		return &stores{
			bookings:   repository.NewMemoryBookingRepo(),
			categories: repository.NewMemoryCategoryRepo(),
			providers:  repository.NewMemoryProviderRepo(),
		}, nil
	}

	client, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	bookings, err := repository.NewMongoBookingRepo(client, cfg.DatabaseName)
	if err != nil {
		return nil, err
	}
	categories, err := repository.NewMongoCategoryRepo(client, cfg.DatabaseName)
	if err != nil {
		return nil, err
	}
	providers, err := repository.NewMongoProviderRepo(client, cfg.DatabaseName)
	if err != nil {
		return nil, err
	}
	return &stores{bookings: bookings, categories: categories, providers: providers, mongo: client}, nil
}

// seedCatalog upserts reference data. Provider availability in the file
// overwrites the stored flag, so it is only meant for fresh environments.
func seedCatalog(ctx context.Context, st *stores, path string, logger *zap.Logger) error {
	catalog, err := utils.LoadCatalog(path)
	if err != nil {
		return err
	}
	for i := range catalog.Categories {
		if err := st.categories.Upsert(ctx, &catalog.Categories[i]); err != nil {
			return err
		}
	}
	for i := range catalog.Providers {
		if err := st.providers.Upsert(ctx, &catalog.Providers[i]); err != nil {
			return err
		}
	}
	logger.Info("Catalog loaded",
		zap.String("file", path),
		zap.Int("categories", len(catalog.Categories)),
		zap.Int("providers", len(catalog.Providers)))
	return nil
}

func newGateway(cfg config.Config, logger *zap.Logger) (payment.Gateway, payment.WebhookParser, string) {
	if cfg.StripeKey != "" {
		stripe.Key = cfg.StripeKey
		gw := payment.NewStripeGateway(cfg.GatewayTimeout, cfg.StripeWebhookSecret, logger)
		return gw, gw, "Stripe-Signature"
	}
	logger.Warn("STRIPE_KEY not set, using the sandbox payment gateway")
	gw := payment.NewSandboxGateway(cfg.SandboxGatewaySecret)
	return gw, gw, "X-Sandbox-Signature"
}

func newPublisher(cfg config.Config, logger *zap.Logger) booking.EventPublisher {
	if cfg.RabbitURL == "" {
		return nil
	}
	pub, err := events.NewRabbitPublisher(cfg.RabbitURL, cfg.EventsExchange, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to connect to rabbitmq: %v", err)
	}
	return pub
}

func newNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) booking.Notifier {
	if cfg.FirebaseCredentialsFile == "" {
		return notification.NewLogNotifier(logger)
	}
	client, err := utils.NewMessagingClient(ctx, cfg.FirebaseCredentialsFile, cfg.FirebaseProjectID)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize firebase: %v", err)
	}
	n, err := notification.NewFCMNotifier(client, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	return n
}
