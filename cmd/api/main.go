package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"

	"github.com/arvhein/backend-merch/internal/app"
	"github.com/arvhein/backend-merch/internal/batch"
	"github.com/arvhein/backend-merch/internal/cart"
	"github.com/arvhein/backend-merch/internal/catalog"
	"github.com/arvhein/backend-merch/internal/checkout"
	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/config"
	"github.com/arvhein/backend-merch/internal/db"
	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/health"
	custmw "github.com/arvhein/backend-merch/internal/http/middleware"
	"github.com/arvhein/backend-merch/internal/lock"
	"github.com/arvhein/backend-merch/internal/notify"
	"github.com/arvhein/backend-merch/internal/obs"
	"github.com/arvhein/backend-merch/internal/order"
	"github.com/arvhein/backend-merch/internal/payment"
	"github.com/arvhein/backend-merch/internal/promo"
	"github.com/arvhein/backend-merch/internal/security"
	"github.com/arvhein/backend-merch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "merch")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "merch-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, "merch-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	taskRedis, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(taskRedis)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	bus := &events.Bus{
		Store: store.Events{DB: pool},
		Notifiers: []events.Notifier{
			notify.TaskNotifier{Client: taskClient, Queue: cfg.NotifyQueue, MaxRetry: cfg.NotifyMaxRetry},
		},
	}

	catalogSvc := &catalog.Service{
		Store:        store.Products{DB: pool},
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultLimit: envInt("CATALOG_DEFAULT_LIMIT", 24),
		MaxLimit:     envInt("CATALOG_MAX_LIMIT", 100),
	}
	catalogHandler := &catalog.Handler{Service: catalogSvc}
	catalogAdmin := &catalog.AdminHandler{Service: catalogSvc, Validate: validate}

	promoSvc := &promo.Service{
		Store: store.Promotions{DB: pool},
		Cache: promo.NewCache(redisClient, cfg.PromoCacheTTL),
	}
	promoHandler := &promo.Handler{Svc: promoSvc}
	promoAdmin := &promo.AdminHandler{Svc: promoSvc}

	cartSvc := &cart.Service{
		Store:        store.Carts{DB: pool},
		Products:     store.Products{DB: pool},
		ShippingCost: cfg.ShippingCost,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Promo: promoSvc}

	checkoutSvc := &checkout.Service{
		Pool:   pool,
		Cart:   cartSvc,
		Promo:  promoSvc,
		Events: bus,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Store: store.Orders{DB: pool}, Events: bus}
	orderAdmin := &order.AdminHandler{
		Store:  store.Orders{DB: pool},
		Events: bus,
		Log:    store.Events{DB: pool},
	}

	matcher := &payment.Matcher{
		Pool:   pool,
		Inbox:  store.Inbox{DB: pool},
		Orders: store.Orders{DB: pool},
		Events: bus,
		Lock:   lock.Locker{Client: redisClient, Backoff: cfg.LockBackoff},
		Log:    logger.With().Str("component", "matcher").Logger(),
	}
	inboxWebhook := payment.Webhook{
		Inbox: store.Inbox{DB: pool},
		Parsers: map[string]payment.Parser{
			"paypal":  payment.PayPalParser{},
			"revolut": payment.RevolutParser{},
		},
		Matcher: matcher,
		Secret:  cfg.InboxSecret,
		Log:     logger.With().Str("component", "inbox").Logger(),
	}
	paymentAdmin := payment.AdminHandler{Inbox: store.Inbox{DB: pool}}

	batchSvc := &batch.Service{
		Batches:         store.Batches{DB: pool},
		Orders:          store.Orders{DB: pool},
		Events:          bus,
		Mail:            common.NopEmailSender{},
		NotifyOnShipped: cfg.EmailEnabled,
	}
	batchAdmin := &batch.AdminHandler{Svc: batchSvc, Validate: validate}

	idem := common.Idem{R: redisClient, TTL: envDurationMillis("IDEMPOTENCY_TTL_MS", 60_000)}

	var publicLimit func(http.Handler) http.Handler
	if rate, err := limiter.NewRateFromFormatted(cfg.RateLimitPublic); err == nil {
		if limiterStore, err := app.NewLimiterStore(redisClient); err == nil {
			publicLimit = limiterstdlib.NewMiddleware(limiter.New(limiterStore, rate)).Handler
		} else {
			logger.Error().Err(err).Msg("initialise rate limiter store")
		}
	} else {
		logger.Error().Err(err).Msg("parse rate limit")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", custmw.CustomerHeader, security.APIKeyHeader},
		ExposedHeaders:   []string{"Link", "X-Total-Count"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", true) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	adminGuard := security.APIKeys{Keys: cfg.AdminAPIKeys}

	r.Route("/api/v1", func(v chi.Router) {
		if publicLimit != nil {
			v.Use(publicLimit)
		}
		v.Use(custmw.CustomerContext)

		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{slug}", catalogHandler.ProductDetail)
		v.Get("/promotions", promoHandler.Active)

		v.Route("/carts", func(c chi.Router) {
			c.Get("/{id}", cartHandler.Get)
			c.Get("/{id}/price", cartHandler.Price)
			c.Get("/{id}/promotions/{promotionId}/progress", cartHandler.Progress)
			c.Group(func(g chi.Router) {
				g.Use(custmw.RequireCustomer)
				g.Use(idem.Middleware)
				g.Post("/", cartHandler.Create)
				g.Post("/{id}/items", cartHandler.AddItem)
				g.Patch("/{id}/items/{productId}", cartHandler.UpdateItem)
				g.Delete("/{id}/items/{productId}", cartHandler.RemoveItem)
			})
		})

		v.With(custmw.RequireCustomer, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

		v.Get("/orders/{id}", orderHandler.Get)
		v.Get("/orders/code/{code}", orderHandler.Track)
		v.With(custmw.RequireCustomer).Post("/orders/{id}/cancel", orderHandler.Cancel)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(adminGuard.Middleware)

			admin.Post("/products", catalogAdmin.Create)
			admin.Put("/products/{id}", catalogAdmin.Update)

			admin.Get("/promotions", promoAdmin.List)
			admin.Post("/promotions", promoAdmin.Create)
			admin.Get("/promotions/{id}", promoAdmin.Get)
			admin.Put("/promotions/{id}", promoAdmin.Update)
			admin.Patch("/promotions/{id}/active", promoAdmin.SetActive)

			admin.Get("/orders", orderAdmin.List)
			admin.Post("/orders/{id}/mark-paid", orderAdmin.MarkPaid)
			admin.Get("/orders/{id}/events", orderAdmin.EventLog)
			admin.Post("/orders/{orderId}/tracking", batchAdmin.SetTracking)

			admin.Get("/payments/unmatched", paymentAdmin.ListUnmatched)

			admin.Post("/batches", batchAdmin.Create)
			admin.Get("/batches", batchAdmin.List)
			admin.Get("/batches/{id}", batchAdmin.Get)
			admin.Post("/batches/{id}/orders", batchAdmin.Assign)
			admin.Post("/batches/{id}/advance", batchAdmin.Advance)
		})
	})

	r.Post("/webhooks/inbox/{provider}", inboxWebhook.Handle)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-stopCtx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 10_000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
