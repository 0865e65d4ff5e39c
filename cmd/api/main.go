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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bazar-commerce/backend-bazar/internal/auth"
	"github.com/bazar-commerce/backend-bazar/internal/basket"
	"github.com/bazar-commerce/backend-bazar/internal/catalog"
	"github.com/bazar-commerce/backend-bazar/internal/checkout"
	"github.com/bazar-commerce/backend-bazar/internal/common"
	"github.com/bazar-commerce/backend-bazar/internal/config"
	"github.com/bazar-commerce/backend-bazar/internal/health"
	"github.com/bazar-commerce/backend-bazar/internal/obs"
	"github.com/bazar-commerce/backend-bazar/internal/order"
	"github.com/bazar-commerce/backend-bazar/internal/payment"
	"github.com/bazar-commerce/backend-bazar/internal/ratelimit"
	"github.com/bazar-commerce/backend-bazar/internal/resilience"
	"github.com/bazar-commerce/backend-bazar/internal/security"
	"github.com/bazar-commerce/backend-bazar/internal/shipping"
	"github.com/bazar-commerce/backend-bazar/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "bazar")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "bazar-api",
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL, "bazar-api")
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

	validate := validator.New()

	catalogStore := &catalog.Store{Pool: pool}
	userStore := auth.PGUserStore{Pool: pool}

	authService, err := auth.NewService(auth.Config{
		Store:          userStore,
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService, Validate: validate}
	authMiddleware := auth.Middleware{Service: authService}

	shippingCalc := shipping.Calculator{
		PerGramRate: cfg.ShippingPerGramRate,
		BaseFee:     cfg.ShippingBaseFee,
	}

	basketService := &basket.Service{
		Store:   &basket.PGStore{Pool: pool},
		Catalog: catalogStore,
	}
	basketHandler := &basket.Handler{
		Svc:      basketService,
		Shipping: shippingCalc,
		Validate: validate,
	}

	provider := buildProvider(cfg, logger)

	intentStore := checkout.RedisIntentStore{R: redisClient}
	orderStore := &order.PGStore{Pool: pool}

	checkoutService := &checkout.Service{
		Users:       userStore,
		Basket:      basketService,
		Shipping:    shippingCalc,
		Provider:    provider,
		Intents:     intentStore,
		Orders:      orderStore,
		IntentTTL:   cfg.CheckoutIntentTTL,
		CallbackURL: cfg.GatewayCallbackURL,
		CourierCity: cfg.ShippingCourierCity,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutService, Validate: validate}

	finalizer := &order.Finalizer{
		Orders:   orderStore,
		Intents:  intentStore,
		Provider: provider,
		Basket:   basketService,
	}
	orderHandler := &order.Handler{Finalizer: finalizer, Orders: orderStore}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	checkoutLimit := ratelimit.Handler{
		Limiter: ratelimit.SlidingWindow{Client: redisClient, Prefix: "ratelimit:checkout:"},
		Config: ratelimit.Config{
			Key: func(r *http.Request) string {
				if userID, ok := common.UserID(r.Context()); ok {
					return userID
				}
				return common.ClientIP(r)
			},
			Window: cfg.RateLimitCheckoutWindow,
			Max:    int(cfg.RateLimitCheckoutMax),
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("checkout rate limiter unavailable")
		},
	}
	loginLimiter, err := ratelimit.NewFixedWindow(redisClient, "ratelimit:login", time.Minute, 20)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login rate limiter")
	}
	loginLimit := ratelimit.Handler{
		Limiter: loginLimiter,
		Config: ratelimit.Config{
			Key:    common.ClientIP,
			Window: time.Minute,
			Max:    20,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("login rate limiter unavailable")
		},
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
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
		})
	})
	r.Use(security.Headers{
		Enable:                envBool("SECURE_HEADERS_ENABLE", true),
		EnableHSTS:            envBool("SECURE_HSTS_ENABLE", false),
		HSTSMaxAge:            envInt("SECURE_HSTS_MAX_AGE", 31536000),
		HSTSIncludeSubdomains: envBool("SECURE_HSTS_INCLUDE_SUBDOMAINS", true),
	}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
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
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      store.Pinger{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Route("/basket", func(b chi.Router) {
			b.Post("/price", basketHandler.Price)
			b.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireAuth)
				g.Get("/", basketHandler.Get)
				g.Post("/items", basketHandler.AddItem)
				g.Delete("/items/{productID}", basketHandler.RemoveItem)
				g.Post("/merge", basketHandler.Merge)
			})
		})

		v.Route("/checkout", func(c chi.Router) {
			c.With(authMiddleware.RequireAuth, checkoutLimit.Middleware, idem.Middleware).
				Post("/", checkoutHandler.Create)
			c.Get("/verify", orderHandler.Verify)
		})

		v.With(authMiddleware.RequireAuth).Get("/orders", orderHandler.List)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-stopCtx.Done()

	health.SetReady(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("server shutdown complete")
	}
}

func buildProvider(cfg *config.Config, logger zerolog.Logger) payment.Provider {
	if strings.EqualFold(cfg.PaymentProvider, "mock") || cfg.GatewayMerchantID == "" {
		logger.Warn().Msg("payment gateway running in mock mode")
		return payment.NewMock()
	}
	breaker := resilience.NewBreaker(5, 0.5, 30*time.Second).
		WithTarget("payment-gateway").
		WithLogger(logger)
	return payment.Zarinpal{
		MerchantID: cfg.GatewayMerchantID,
		BaseURL:    cfg.GatewayBaseURL,
		Client: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: cfg.GatewayBackoffBase,
			MaxAttempts: cfg.GatewayMaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.GatewayTimeout,
		},
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
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
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
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
