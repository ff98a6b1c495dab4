package main

import (
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/bullionintake/backend/src/config"
	"github.com/username/bullionintake/backend/src/handlers"
	"github.com/username/bullionintake/backend/src/logger"
	"github.com/username/bullionintake/backend/src/services"
	"github.com/username/bullionintake/backend/src/storage"
	"github.com/username/bullionintake/backend/src/utils"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding")
			} else if origin == "" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Bullion intake backend server starting...")

	archive, err := storage.NewArchive(config.Cfg.DataDir)
	if err != nil {
		logger.L.Error("Failed to initialize submission archive", "dir", config.Cfg.DataDir, "error", err)
		stdlog.Fatalf("Failed to initialize submission archive: %v", err)
	}

	listCache := cache.New(config.Cfg.SubmissionsCacheTTL, 2*config.Cfg.SubmissionsCacheTTL)

	shopifyClient := services.NewShopifyClient(
		config.Cfg.ShopifyShop,
		config.Cfg.ShopifyAccessToken,
		config.Cfg.ShopifyAPIVersion,
		config.Cfg.ShopifyTimeout,
	)
	submissionService := services.NewSubmissionService(archive, shopifyClient, listCache, config.Cfg.SubmissionsCacheTTL)
	submissionHandler := handlers.NewSubmissionHandler(submissionService, config.Cfg.MaxBodyBytes)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS(config.Cfg.AllowedOrigins))
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSONResponse(w, http.StatusOK, map[string]string{"message": "Bullion intake backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/submit-form", submissionHandler.HandleSubmitForm)
		r.Get("/submit-form", submissionHandler.HandleSubmitFormInfo)
		r.Get("/submissions", submissionHandler.HandleGetSubmissions)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
