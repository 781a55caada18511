package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"return-eligibility-api/internal/cache"
	"return-eligibility-api/internal/config"
	"return-eligibility-api/internal/database"
	"return-eligibility-api/internal/events"
	"return-eligibility-api/internal/features"
	"return-eligibility-api/internal/handler"
	"return-eligibility-api/internal/middleware"
	"return-eligibility-api/internal/service"
	"return-eligibility-api/internal/tracing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	configFile := flag.String("config", "", "Config file path (JSON)")
	port := flag.String("port", "", "Server port (overrides config)")
	dbPath := flag.String("db", "", "Database file path (overrides config)")
	seed := flag.Bool("seed", false, "Load development fixture data on startup")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *seed {
		cfg.Database.Seed = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if cfg.Database.Seed {
		if err := db.Seed(time.Now()); err != nil {
			log.Fatalf("Failed to seed database: %v", err)
		}
		log.Println("Seeded database with development fixtures")
	}

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.FeatureCacheEnabled, cfg.Cache.Enabled, "Cache order lookups and the active policy list")
	flags.Register(features.FeatureEventHooksEnabled, true, "Publish domain events to registered hooks")
	flags.Register(features.FeatureEmailDispatch, true, "Simulated email sending")

	// Cache backend: Redis when configured, in-memory otherwise
	var cacheBackend cache.Cache
	if cfg.Cache.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		cacheBackend = redisCache
		log.Printf("Cache: Redis at %s", cfg.Cache.RedisAddr)
	} else {
		cacheBackend = cache.NewInMemoryCache()
		log.Println("Cache: in-memory")
	}

	// Event manager with logging hooks
	eventMgr := events.NewManager(flags.IsEnabled(features.FeatureEventHooksEnabled))
	defer eventMgr.Shutdown()
	registerEventLogging(eventMgr)

	// Initialize service
	svc := service.NewServiceWithOptions(db, service.Options{
		Events: eventMgr,
		Flags:  flags,
		Cache:  cacheBackend,
	})

	// Initialize handlers
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
	defer rateLimiter.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.Tracing.Enabled {
		r.Use(middleware.TracingMiddleware())
	}

	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Security.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	h.Routes(r)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting HTTP server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	if cfg.RateLimit.Enabled {
		log.Printf("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

// registerEventLogging subscribes log-line hooks for each domain event so
// operators can follow decision and RMA activity without a separate sink.
func registerEventLogging(mgr *events.Manager) {
	mgr.Subscribe(events.EventEligibilityChecked, func(ctx context.Context, event events.Event) error {
		if data, ok := event.Data.(events.EligibilityCheckedData); ok {
			log.Printf("event: eligibility checked order=%s eligible=%t code=%s",
				data.OrderID, data.Decision.Eligible, data.Decision.ReasonCode)
		}
		return nil
	})
	mgr.Subscribe(events.EventRMACreated, func(ctx context.Context, event events.Event) error {
		if data, ok := event.Data.(events.RMACreatedData); ok {
			log.Printf("event: rma created rma=%s order=%s refund_cents=%d",
				data.RMANumber, data.OrderID, data.RefundCents)
		}
		return nil
	})
	mgr.Subscribe(events.EventLabelGenerated, func(ctx context.Context, event events.Event) error {
		if data, ok := event.Data.(events.LabelGeneratedData); ok {
			log.Printf("event: label generated rma=%s tracking=%s", data.RMANumber, data.TrackingNumber)
		}
		return nil
	})
	mgr.Subscribe(events.EventEmailSent, func(ctx context.Context, event events.Event) error {
		if data, ok := event.Data.(events.EmailSentData); ok {
			log.Printf("event: email sent to=%s template=%s id=%s",
				data.CustomerEmail, data.TemplateName, data.MessageID)
		}
		return nil
	})
	mgr.Subscribe(events.EventEscalated, func(ctx context.Context, event events.Event) error {
		if data, ok := event.Data.(events.EscalatedData); ok {
			log.Printf("event: escalated session=%s ticket=%s priority=%s",
				data.SessionID, data.TicketID, data.Priority)
		}
		return nil
	})
}
