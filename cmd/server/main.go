package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prowhq/billing/internal/config"
	"github.com/prowhq/billing/internal/handler"
	appMiddleware "github.com/prowhq/billing/internal/middleware"
	"github.com/prowhq/billing/internal/repository"
	"github.com/prowhq/billing/internal/service"
	"github.com/prowhq/billing/internal/ws"
	"github.com/prowhq/billing/pkg/converge"
	"github.com/prowhq/billing/pkg/crypto"
)

func main() {
	// Load .env file if present (for local development)
	loadDotEnv()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	ctx := context.Background()

	// Initialize database
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Database error: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("❌ Migration error: %v", err)
	}
	log.Println("✅ Database connected & migrated")

	// Initialize token encryptor
	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("❌ Encryption error: %v", err)
	}

	// Repositories
	planRepo := repository.NewPlanRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Seed the plan catalog on first startup
	if err := planRepo.SeedDefaults(ctx); err != nil {
		log.Fatalf("❌ Plan seed error: %v", err)
	}

	// Converge gateway client
	gateway := converge.NewClient(converge.Credentials{
		MerchantID: cfg.ConvergeMerchantID,
		UserID:     cfg.ConvergeUserID,
		PIN:        cfg.ConvergePIN,
	}, cfg.ConvergeAPIURL, cfg.ConvergeHostedURL)

	// Live event hub
	hub := ws.NewHub()

	// Services
	subSvc := service.NewSubscriptionService(subRepo, planRepo)
	paymentSvc := service.NewPaymentService(gateway, paymentRepo, billingRepo, subSvc, enc, hub, cfg.StrictCallbackMatch)

	// Handlers
	healthHandler := handler.NewHealthHandler(db)
	plansHandler := handler.NewPlansHandler(subSvc)
	subHandler := handler.NewSubscriptionHandler(subSvc)
	billingHandler := handler.NewBillingHandler(paymentSvc)
	eventsHandler := ws.NewEventsHandler(hub, cfg.JWTSecret)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Health check and public routes (no auth)
	r.Get("/health", healthHandler.Check)
	r.Get("/api/plans", plansHandler.List)

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(cfg.JWTSecret))

		// Subscription lifecycle
		r.Get("/api/billing/subscription", subHandler.Get)
		r.Post("/api/billing/subscription/free", subHandler.CreateFree)
		r.Post("/api/billing/subscription/cancel", subHandler.Cancel)

		// Checkout and charges
		r.Post("/api/billing/checkout", billingHandler.Checkout)
		r.Post("/api/billing/charge", billingHandler.Charge)
		r.Get("/api/billing/payments", billingHandler.ListPayments)
		r.Get("/api/billing/payments/{id}/events", billingHandler.PaymentEvents)

		// Payment methods
		r.Get("/api/billing/payment-methods", billingHandler.ListPaymentMethods)
		r.Post("/api/billing/payment-methods/{id}/default", billingHandler.SetDefaultPaymentMethod)
		r.Delete("/api/billing/payment-methods/{id}", billingHandler.DeletePaymentMethod)

		// Gateway redirect callback, relayed by the front end after the
		// hosted page returns. Strict limit: one callback burst per checkout.
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.StrictRateLimiter())
			r.Get("/api/billing/callback", billingHandler.Callback)
			r.Post("/api/billing/callback", billingHandler.Callback)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AdminOnly)
			r.Post("/api/admin/billing/refund", billingHandler.Refund)
			r.Post("/api/admin/billing/expire-pending", billingHandler.ExpirePending)
		})
	})

	// WebSocket event stream (auth via query param)
	r.HandleFunc("/billing/events", eventsHandler.Handle)

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout must be 0 for WebSocket connections (they are long-lived)
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("🛑 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("🚀 PROW Billing (Go) listening at http://%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("❌ Server error: %v", err)
	}
}

// loadDotEnv reads a .env file if it exists (simple implementation).
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
