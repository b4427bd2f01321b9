package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/evorto/evorto-api/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Auth          *auth.AuthHandler
	Discounts     *DiscountHandler
	TaxRates      *TaxRateHandler
	Tenant        *TenantHandler
	Options       *OptionHandler
	Registrations *RegistrationHandler
	Webhooks      *WebhookHandler
	Receipts      *ReceiptHandler
	Transactions  *TransactionHandler
}

type RouterOptions struct {
	EnableCORS  bool
	CORSOrigins []string
}

// rpc registers a handler as POST /rpc/<name> with the RPC name as its
// operation id.
func rpc[I, O any](api huma.API, name string, handler func(context.Context, *I) (*O, error)) {
	huma.Post(api, "/rpc/"+name, handler, func(o *huma.Operation) {
		o.OperationID = name
		o.Security = []map[string][]string{{"cookieAuth": {}}, {"bearerAuth": {}}}
	})
}

func RegisterRoutes(r *chi.Mux, h Handlers, opts RouterOptions) huma.API {
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if opts.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(h.Auth.SessionMiddleware)

	// Initialize Huma API
	config := huma.DefaultConfig("Evorto API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookieAuth": {
			Type: "apiKey",
			In:   "cookie",
			Name: auth.CookieName,
		},
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	api := humachi.New(r, config)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/auth/login", h.Auth.HandleLogin)
	r.Get("/auth/callback", h.Auth.HandleCallback)
	huma.Post(api, "/webhooks/stripe", h.Webhooks.HandleStripeWebhook, func(o *huma.Operation) {
		o.OperationID = "webhooks.stripe"
	})

	rpc(api, "users.self", h.Auth.HandleMe)

	rpc(api, "discounts.getMyCards", h.Discounts.HandleGetMyCards)
	rpc(api, "discounts.upsertMyCard", h.Discounts.HandleUpsertMyCard)
	rpc(api, "discounts.deleteMyCard", h.Discounts.HandleDeleteMyCard)
	rpc(api, "discounts.refreshMyCard", h.Discounts.HandleRefreshMyCard)

	rpc(api, "admin.tenant.listStripeTaxRates", h.TaxRates.HandleListStripeTaxRates)
	rpc(api, "admin.tenant.importStripeTaxRates", h.TaxRates.HandleImportStripeTaxRates)
	rpc(api, "admin.tenant.listImportedTaxRates", h.TaxRates.HandleListImportedTaxRates)
	rpc(api, "taxRates.listActive", h.TaxRates.HandleListActiveTaxRates)

	rpc(api, "admin.tenant.getCancellationPolicies", h.Tenant.HandleGetCancellationPolicies)
	rpc(api, "admin.tenant.updateCancellationPolicies", h.Tenant.HandleUpdateCancellationPolicies)

	rpc(api, "events.upsertRegistrationOption", h.Options.HandleUpsertRegistrationOption)
	rpc(api, "events.getRegistrationOptions", h.Options.HandleGetRegistrationOptions)

	rpc(api, "events.registerForEvent", h.Registrations.HandleRegisterForEvent)
	rpc(api, "events.cancelPendingRegistration", h.Registrations.HandleCancelPendingRegistration)
	rpc(api, "events.cancelRegistration", h.Registrations.HandleCancelRegistration)
	rpc(api, "events.getRegistrationStatus", h.Registrations.HandleGetRegistrationStatus)

	rpc(api, "finance.receipts.submit", h.Receipts.HandleSubmit)
	rpc(api, "finance.receipts.review", h.Receipts.HandleReview)
	rpc(api, "finance.receipts.byEvent", h.Receipts.HandleByEvent)
	rpc(api, "finance.receipts.my", h.Receipts.HandleMy)
	rpc(api, "finance.receipts.pendingApprovalGrouped", h.Receipts.HandlePendingApprovalGrouped)
	rpc(api, "finance.receipts.refundableGroupedByRecipient", h.Receipts.HandleRefundableGroupedByRecipient)
	rpc(api, "finance.receipts.createRefund", h.Receipts.HandleCreateRefund)

	rpc(api, "finance.transactions.findMany", h.Transactions.HandleFindMany)

	return api
}
