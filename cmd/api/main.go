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
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/sofreh/backend-resto/internal/auth"
	"github.com/sofreh/backend-resto/internal/cart"
	"github.com/sofreh/backend-resto/internal/catalog"
	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/config"
	"github.com/sofreh/backend-resto/internal/coupon"
	"github.com/sofreh/backend-resto/internal/delivery"
	"github.com/sofreh/backend-resto/internal/events"
	"github.com/sofreh/backend-resto/internal/health"
	"github.com/sofreh/backend-resto/internal/lock"
	"github.com/sofreh/backend-resto/internal/notify"
	"github.com/sofreh/backend-resto/internal/obs"
	"github.com/sofreh/backend-resto/internal/order"
	"github.com/sofreh/backend-resto/internal/ratelimit"
	"github.com/sofreh/backend-resto/internal/security"
	"github.com/sofreh/backend-resto/internal/store"
	"github.com/sofreh/backend-resto/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "resto")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "resto-api",
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
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	st, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Pool.Close()
	if err := st.Pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

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
	dispatcher := notify.Enqueuer{Client: taskClient}

	validate := validator.New()
	bus := events.NewBus(st.Events, logger)
	taxBps := cfg.TaxRatePercent * 100

	tokens, err := auth.NewTokens(auth.TokensConfig{
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token signer")
	}
	otp := &auth.OTP{
		Redis:       redisClient,
		Dispatcher:  dispatcher,
		Users:       st.Users,
		Tokens:      tokens,
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	}
	authHandler := &auth.Handler{OTP: otp, Tokens: tokens, Users: st.Users}
	authMiddleware := auth.Middleware{Tokens: tokens}

	catalogSvc := &catalog.Service{
		Q:     st.Catalog,
		Cache: catalog.NewCache(redisClient, envDurationMillis("CATALOG_CACHE_TTL_MS", 60000)),
	}
	catalogHandler := &catalog.Handler{Svc: catalogSvc}
	catalogAdmin := &catalog.AdminHandler{Repo: st.Catalog, Svc: catalogSvc, Validate: validate}

	couponSvc := &coupon.Service{Q: st.Coupons}
	couponHandler := &coupon.Handler{Svc: couponSvc, Repo: st.Coupons, Validate: validate}

	registry := cart.NewRegistry(cfg.CartTTL)
	cartHandler := &cart.Handler{Registry: registry, TaxBps: taxBps}

	deliveryHandler := &delivery.Handler{Repo: st.Zones}
	deliveryAdmin := &delivery.AdminHandler{Repo: st.Zones, Validate: validate}

	userHandler := &user.Handler{Repo: st.Users, Validate: validate}

	orderSvc := &order.Service{
		Tx:          st,
		Catalog:     st.Catalog,
		Addresses:   st.Users,
		Zones:       st.Zones,
		Orders:      st.Orders,
		Redemptions: st.Coupons,
		Coupons:     couponSvc,
		Bus:         bus,
		Locker:      lock.Locker{R: redisClient},
		Dispatcher:  dispatcher,
		TaxBps:      taxBps,
		LockTTL:     cfg.SlotHoldTTL,
	}
	orderHandler := &order.Handler{Svc: orderSvc, Carts: registry}
	orderAdmin := &order.AdminHandler{Svc: orderSvc}

	idem := common.Idem{R: redisClient, TTL: envDurationMillis("IDEMPOTENCY_TTL_MS", 600000)}
	otpLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:otp:"},
		Config: ratelimit.Config{
			Key:    common.ClientIP,
			Window: time.Minute,
			Max:    envInt("OTP_REQUESTS_PER_MINUTE", 5),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("otp rate limit") },
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "rl:api"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter store")
	}
	apiLimiter := limiter.New(limiterStore, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(envInt("API_REQUESTS_PER_MINUTE", 300)),
	})

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
	r.Use(security.Headers{}.Middleware)
	r.Use(security.BodyLimit{Max: envInt64("SECURE_MAX_BODY_BYTES", 1<<20)}.Middleware)
	r.Use(limiterstdlib.NewMiddleware(apiLimiter).Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cart.SessionHeader, "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(pprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: st.Pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.Categories)
		v.Get("/items", catalogHandler.Items)
		v.Get("/items/{slug}", catalogHandler.Item)
		v.Get("/addons", catalogHandler.AddOns)

		v.Mount("/cart", cartHandler.Routes())

		v.Post("/coupons/validate", couponHandler.ValidateCoupon)

		v.Get("/delivery/zones", deliveryHandler.Zones)
		v.Get("/delivery/slots", deliveryHandler.Slots)

		v.Route("/auth", func(a chi.Router) {
			a.With(otpLimit.Middleware).Post("/otp/request", authHandler.OTPRequest)
			a.Post("/otp/verify", authHandler.OTPVerify)
		})

		v.Route("/me", func(m chi.Router) {
			m.Use(authMiddleware.RequireAuth)
			m.Get("/", userHandler.Me)
			m.Patch("/", userHandler.UpdateMe)
			m.Get("/addresses", userHandler.ListAddresses)
			m.Post("/addresses", userHandler.CreateAddress)
			m.Put("/addresses/{id}", userHandler.UpdateAddress)
			m.Delete("/addresses/{id}", userHandler.DeleteAddress)
		})

		v.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)
			authed.With(idem.Middleware).Post("/orders", orderHandler.Checkout)
			authed.Get("/orders", orderHandler.List)
			authed.Get("/orders/{id}", orderHandler.Get)
			authed.Post("/orders/{id}/cancel", orderHandler.Cancel)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Post("/auth/login", authHandler.AdminLogin)

			admin.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireRole("admin"))

				g.Get("/categories", catalogAdmin.ListCategories)
				g.Post("/categories", catalogAdmin.CreateCategory)
				g.Put("/categories/{id}", catalogAdmin.UpdateCategory)
				g.Delete("/categories/{id}", catalogAdmin.DeleteCategory)

				g.Get("/addons", catalogAdmin.ListAddOns)
				g.Post("/addons", catalogAdmin.CreateAddOn)
				g.Put("/addons/{id}", catalogAdmin.UpdateAddOn)
				g.Delete("/addons/{id}", catalogAdmin.DeleteAddOn)

				g.Get("/items", catalogAdmin.ListItems)
				g.Post("/items", catalogAdmin.CreateItem)
				g.Put("/items/{id}", catalogAdmin.UpdateItem)
				g.Delete("/items/{id}", catalogAdmin.DeleteItem)

				g.Get("/coupons", couponHandler.AdminList)
				g.Post("/coupons", couponHandler.AdminCreate)
				g.Put("/coupons/{id}", couponHandler.AdminUpdate)
				g.Delete("/coupons/{id}", couponHandler.AdminDelete)

				g.Get("/zones", deliveryAdmin.ListZones)
				g.Post("/zones", deliveryAdmin.CreateZone)
				g.Put("/zones/{id}", deliveryAdmin.UpdateZone)
				g.Delete("/zones/{id}", deliveryAdmin.DeleteZone)
				g.Get("/zones/{id}/slots", deliveryAdmin.ListSlots)
				g.Put("/zones/{id}/slots", deliveryAdmin.UpsertSlot)

				g.Get("/orders", orderAdmin.List)
				g.Get("/orders/{id}", orderAdmin.Get)
				g.Patch("/orders/{id}/status", orderAdmin.UpdateStatus)
			})
		})
	})

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go registry.StartJanitor(janitorCtx, envDurationMillis("CART_SWEEP_INTERVAL_MS", 300000))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
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

func envInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
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

func pprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}
