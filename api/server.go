/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend
  5. Session:    Bearer token on everything but /api/auth/register|login

ROUTE GROUPS:
  /api/auth/*           Registration, login, branch switch
  /api/articles/*       Article catalog
  /api/customers/*      Customers and receivables
  /api/suppliers/*      Suppliers and payables
  /api/branches/*       Outlets
  /api/transactions/*   The ledger
  /api/batches/*        Stock lots and lineage
  /api/reports/*        Summary and dashboard
  /api/admin/*          Balance verification

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: Token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/textile-ledger/textile"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(h.sessions.RequireSession)

			r.Post("/auth/branch", h.SwitchBranch)
			r.Get("/tenant/status", h.TenantStatus)

			r.Route("/articles", func(r chi.Router) {
				r.Get("/", h.ListArticles)
				r.Post("/", h.CreateArticle)
				r.Put("/{id}", h.RenameArticle)
			})

			r.Route("/customers", h.partyRoutes(textile.PartyCustomer))
			r.Route("/suppliers", h.partyRoutes(textile.PartySupplier))

			r.Route("/branches", func(r chi.Router) {
				r.Get("/", h.ListBranches)
				r.Post("/", h.CreateBranch)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", h.ListBranchTransactions)
				r.Post("/", h.RecordTransaction)
				r.Get("/all", h.ListTenantTransactions)
				r.Get("/export.xlsx", h.ExportTransactions)
				r.Post("/{id}/clearance", h.SetClearance)
			})

			r.Route("/batches", func(r chi.Router) {
				r.Get("/", h.ListBatches)
				r.Get("/active", h.ListActiveBatches)
				r.Get("/pickers", h.BatchPickers)
				r.Get("/{id}/lineage", h.BatchLineage)
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/summary", h.FinancialSummary)
				r.Get("/dashboard", h.BranchDashboard)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/balances/verify", h.VerifyBalances)
				r.Post("/balances/repair", h.RepairBalances)
			})
		})
	})

	return r
}

func (h *Handler) partyRoutes(kind textile.PartyKind) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.ListParties(kind))
		r.Post("/", h.CreateParty(kind))
		r.Get("/outstanding", h.OutstandingParties(kind))
		r.Put("/{id}", h.UpdateParty(kind))
	}
}
