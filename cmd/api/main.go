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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"card-rewards-api/internal/cache"
	"card-rewards-api/internal/catalog"
	"card-rewards-api/internal/config"
	"card-rewards-api/internal/curation"
	"card-rewards-api/internal/events"
	"card-rewards-api/internal/features"
	"card-rewards-api/internal/handler"
	"card-rewards-api/internal/middleware"
	"card-rewards-api/internal/recommend"
	"card-rewards-api/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize catalog database
	db, err := catalog.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize catalog database: %v", err)
	}
	defer db.Close()

	// Initialize tracing
	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "card-rewards-api",
		Environment: cfg.Tracing.Environment,
	}); err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	// Feature flags and events
	flags := features.NewDefaultManager()
	if !cfg.Cache.Enabled {
		flags.Disable(features.FeatureCacheEnabled)
	}
	eventManager := events.NewManager(flags.IsEnabled(features.FeatureEventHooksEnabled))
	defer eventManager.Shutdown()

	// Response cache: Redis when configured, in-process otherwise
	var responseCache cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisAddr != "" {
			redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
			if err != nil {
				log.Fatalf("Failed to connect to Redis cache: %v", err)
			}
			defer redisCache.Close()
			responseCache = redisCache
		} else {
			responseCache = cache.NewInMemoryCache()
		}
	}

	// Initialize services
	recommender := recommend.NewServiceWithOptions(db, recommend.Options{
		Cache:    responseCache,
		CacheTTL: time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		Events:   eventManager,
		Features: flags,
	})
	curator := curation.NewService(db, eventManager)

	// Curation writes invalidate cached recommendations
	eventManager.Subscribe(events.EventCatalogUpdated, func(ctx context.Context, _ events.Event) error {
		return recommender.InvalidateCache(ctx)
	})

	// Initialize handlers
	h := handler.NewHandlerWithOptions(recommender, curator, handler.NewHandlerOptions{
		Features:    flags,
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware())

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
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
	r.Route("/merchants", func(r chi.Router) {
		r.Post("/", h.CreateMerchant)
		r.Get("/{merchant_id}/recommendations", h.GetRecommendations)
	})

	r.Route("/cards", func(r chi.Router) {
		r.Post("/", h.CreateCard)
	})

	r.Route("/categories", func(r chi.Router) {
		r.Post("/", h.CreateCategory)
	})

	r.Route("/rewards", func(r chi.Router) {
		r.Post("/", h.CreateReward)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/{user_id}/saved-cards", h.GetSavedCards)
		r.Put("/{user_id}/saved-cards/{card_id}", h.SaveCard)
		r.Delete("/{user_id}/saved-cards/{card_id}", h.UnsaveCard)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
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

	log.Printf("Starting server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)

	if cfg.Server.EnableTLS {
		err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}
