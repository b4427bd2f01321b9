package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/evorto/evorto-api/internal/auth"
	"github.com/evorto/evorto-api/internal/config"
	"github.com/evorto/evorto-api/internal/database"
	"github.com/evorto/evorto-api/internal/esncard"
	"github.com/evorto/evorto-api/internal/handlers"
	"github.com/evorto/evorto-api/internal/idempotency"
	"github.com/evorto/evorto-api/internal/notifier"
	"github.com/evorto/evorto-api/internal/payments"
	"github.com/evorto/evorto-api/internal/rpcerr"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func openIdempotencyStore(cfg *config.Config) (idempotency.Store, func()) {
	switch cfg.IdempotencyBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("Idempotency store: redis at %s", cfg.RedisAddr)
		return idempotency.NewRedisStore(client), func() { client.Close() }
	case "none":
		log.Printf("Idempotency store disabled")
		return idempotency.NopStore{}, func() {}
	default:
		store, err := idempotency.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			log.Fatalf("Failed to open idempotency store: %v", err)
		}
		log.Printf("Idempotency store: bolt at %s", cfg.BoltPath)
		return store, func() { store.Close() }
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Load Configuration
	cfg := config.LoadConfig()

	// Connect to Database
	db := database.Connect(cfg)

	rpcerr.Install()

	store, closeStore := openIdempotencyStore(cfg)
	defer closeStore()
	idem := handlers.Idempotency{Store: store, TTL: cfg.IdempotencyTTL}

	discordNotifier, err := notifier.New(cfg.DiscordBotToken, cfg.DiscordFinanceChannelID)
	if err != nil {
		log.Printf("Discord notifier not initialized: %v", err)
	}

	provider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	if cfg.StripeSecretKey == "" {
		log.Printf("STRIPE_SECRET_KEY not set, paid registrations will fail")
	}

	// Initialize Handlers
	h := handlers.Handlers{
		Auth:          auth.NewAuthHandler(cfg, db),
		Discounts:     handlers.NewDiscountHandler(db, esncard.NewClient(cfg.ESNCardAPIURL)),
		TaxRates:      handlers.NewTaxRateHandler(db, provider),
		Tenant:        handlers.NewTenantHandler(db),
		Options:       handlers.NewOptionHandler(db),
		Registrations: handlers.NewRegistrationHandler(db, provider, discordNotifier, idem, cfg.AppFeeBasisPoints, cfg.FrontendURL),
		Webhooks:      handlers.NewWebhookHandler(db, provider),
		Receipts:      handlers.NewReceiptHandler(db, discordNotifier, idem),
		Transactions:  handlers.NewTransactionHandler(db),
	}

	// Initialize Router
	r := chi.NewRouter()

	// Register Routes
	handlers.RegisterRoutes(r, h, handlers.RouterOptions{
		EnableCORS:  cfg.EnableCORS,
		CORSOrigins: cfg.CORSOrigins,
	})

	// Start Server
	log.Printf("Starting server on port %s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
