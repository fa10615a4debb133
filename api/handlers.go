/*
handlers.go - HTTP API handlers for the textile ledger

PURPOSE:
  Exposes the ledger, catalog and tenant services over REST. Handles HTTP
  request/response, JSON serialization, and delegates to the textile
  package. Tenant and branch always come from the session token, never
  from the request body.

ENDPOINTS:
  Auth:
    POST   /api/auth/register            Create a shop, returns a session
    POST   /api/auth/login               Returns a session for a branch
    POST   /api/auth/branch              Re-issue the session for another branch

  Catalog:
    GET    /api/articles                 List articles
    POST   /api/articles                 Create article
    PUT    /api/articles/{id}            Rename article
    GET    /api/{customers|suppliers}    List parties
    POST   /api/{customers|suppliers}    Create party (balance starts at 0)
    PUT    /api/{customers|suppliers}/{id}
    GET    /api/{customers|suppliers}/outstanding
    GET    /api/branches                 List branches
    POST   /api/branches                 Create branch

  Ledger:
    POST   /api/transactions             Record a transaction
    GET    /api/transactions             Session branch, newest first
    GET    /api/transactions/all         Whole tenant, newest first
    GET    /api/transactions/export.xlsx Register as a spreadsheet
    POST   /api/transactions/{id}/clearance
    GET    /api/batches                  All batches
    GET    /api/batches/active           Batches with stock left
    GET    /api/batches/pickers          ?article_id=&stage=
    GET    /api/batches/{id}/lineage     RAW ancestor first

  Reports:
    GET    /api/reports/summary          ?from=&to=
    GET    /api/reports/dashboard        Session branch
    GET    /api/tenant/status            Subscription state

  Admin:
    GET    /api/admin/balances/verify    Replay vs cached balances
    POST   /api/admin/balances/repair    Rewrite cached balances

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing/invalid token, bad credentials
  - 403: Tenant is read-only (subscription expired)
  - 404: Referenced record not found
  - 409: Conflict (insufficient stock, overpayment, username taken)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - session.go: Token issue and verification
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/textile-ledger/factory"
	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/textile"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the services every endpoint needs.
type Handler struct {
	ledger   *textile.Ledger
	catalog  *textile.Catalog
	tenants  *textile.Tenants
	factory  *factory.TransactionFactory
	sessions *Sessions
	log      *logrus.Logger
}

func NewHandler(ledger *textile.Ledger, sessions *Sessions, log *logrus.Logger) *Handler {
	return &Handler{
		ledger:   ledger,
		catalog:  textile.NewCatalog(ledger),
		tenants:  textile.NewTenants(ledger),
		factory:  factory.NewTransactionFactory(),
		sessions: sessions,
		log:      log,
	}
}

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	tenant, branch, err := h.tenants.Register(r.Context(), textile.Registration{
		Username:      req.Username,
		Password:      req.Password,
		ShopName:      req.ShopName,
		OwnerName:     req.OwnerName,
		PhoneNumber:   req.PhoneNumber,
		CNIC:          req.CNIC,
		BranchName:    req.BranchName,
		BranchAddress: req.BranchAddress,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusCreated, tenant, branch)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	tenant, err := h.tenants.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var branch *textile.Branch
	if req.BranchID != "" {
		branch, err = h.catalog.GetBranch(r.Context(), tenant.ID, req.BranchID)
	} else {
		branch, err = h.catalog.DefaultBranch(r.Context(), tenant.ID)
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusOK, tenant, branch)
}

func (h *Handler) SwitchBranch(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	var req SwitchBranchRequest
	if !h.decode(w, r, &req) {
		return
	}
	branch, err := h.catalog.GetBranch(r.Context(), s.TenantID(), req.BranchID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	tenant, err := h.tenants.Get(r.Context(), s.TenantID())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeSession(w, r, http.StatusOK, tenant, branch)
}

func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, status int, tenant *textile.Tenant, branch *textile.Branch) {
	token, expiresAt, err := h.sessions.Issue(tenant.ID, generic.BranchID(branch.ID))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	st, err := h.tenants.Status(r.Context(), tenant.ID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, SessionResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		Tenant:      toTenantDTO(tenant),
		Branch:      *branch,
		Status:      st,
	})
}

func (h *Handler) TenantStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.tenants.Status(r.Context(), sessionFrom(r.Context()).TenantID())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.ListArticles(r.Context(), sessionFrom(r.Context()).TenantID())
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	var req ArticleRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.catalog.CreateArticle(r.Context(), sessionFrom(r.Context()).TenantID(), req.Name, req.Unit)
	h.respond(w, r, http.StatusCreated, a, err)
}

func (h *Handler) RenameArticle(w http.ResponseWriter, r *http.Request) {
	var req ArticleRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.catalog.RenameArticle(r.Context(), sessionFrom(r.Context()).TenantID(), chi.URLParam(r, "id"), req.Name)
	h.respond(w, r, http.StatusOK, a, err)
}

func (h *Handler) ListParties(kind textile.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.catalog.ListParties(r.Context(), sessionFrom(r.Context()).TenantID(), kind)
		h.respond(w, r, http.StatusOK, list, err)
	}
}

func (h *Handler) CreateParty(kind textile.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PartyRequest
		if !h.decode(w, r, &req) {
			return
		}
		p, err := h.catalog.CreateParty(r.Context(), sessionFrom(r.Context()).TenantID(), kind, req.Name, req.Phone)
		h.respond(w, r, http.StatusCreated, p, err)
	}
}

func (h *Handler) UpdateParty(kind textile.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PartyRequest
		if !h.decode(w, r, &req) {
			return
		}
		p, err := h.catalog.UpdateParty(r.Context(), sessionFrom(r.Context()).TenantID(), kind, chi.URLParam(r, "id"), req.Name, req.Phone)
		h.respond(w, r, http.StatusOK, p, err)
	}
}

func (h *Handler) OutstandingParties(kind textile.PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := h.ledger.ListPartiesWithOutstandingBalance(r.Context(), sessionFrom(r.Context()).TenantID(), kind)
		h.respond(w, r, http.StatusOK, list, err)
	}
}

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.ListBranches(r.Context(), sessionFrom(r.Context()).TenantID())
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req BranchRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.catalog.CreateBranch(r.Context(), sessionFrom(r.Context()).TenantID(), req.Name, req.Address, req.IsDefault)
	h.respond(w, r, http.StatusCreated, b, err)
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body", err)
		return
	}
	cmd, err := h.factory.ParseTransaction(body, sessionFrom(r.Context()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	tx, err := h.ledger.RecordTransaction(r.Context(), cmd)
	h.respond(w, r, http.StatusCreated, tx, err)
}

func (h *Handler) ListBranchTransactions(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	list, err := h.ledger.ListTransactionsByBranch(r.Context(), s.TenantID(), s.BranchID())
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) ListTenantTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.ListTransactionsByTenant(r.Context(), sessionFrom(r.Context()).TenantID())
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) SetClearance(w http.ResponseWriter, r *http.Request) {
	var req ClearanceRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.ledger.SetClearance(r.Context(), sessionFrom(r.Context()).TenantID(), chi.URLParam(r, "id"), req.IsCleared, req.Note)
	h.respond(w, r, http.StatusOK, tx, err)
}

// =============================================================================
// BATCH ENDPOINTS
// =============================================================================

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.ListBatchesByTenant(r.Context(), sessionFrom(r.Context()).TenantID())
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) ListActiveBatches(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.ListActiveBatches(r.Context(), sessionFrom(r.Context()).TenantID())
	h.respond(w, r, http.StatusOK, list, err)
}

// BatchPickers lists consumable lots of one article at one stage in the
// session branch, the choices offered on sale and work forms.
func (h *Handler) BatchPickers(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	q := r.URL.Query()
	list, err := h.ledger.ListBatchesByArticleAndStage(r.Context(), s.TenantID(), s.BranchID(),
		q.Get("article_id"), textile.Stage(q.Get("stage")))
	h.respond(w, r, http.StatusOK, list, err)
}

func (h *Handler) BatchLineage(w http.ResponseWriter, r *http.Request) {
	chain, err := h.ledger.GetBatchLineage(r.Context(), sessionFrom(r.Context()).TenantID(), chi.URLParam(r, "id"))
	h.respond(w, r, http.StatusOK, chain, err)
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

func (h *Handler) FinancialSummary(w http.ResponseWriter, r *http.Request) {
	var rng textile.Range
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		from, err := factory.ParseDate(v)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		rng.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := factory.ParseDate(v)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		// A bare date covers the whole day.
		if len(v) == len("2006-01-02") {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		rng.To = to
	}
	sum, err := h.ledger.FinancialSummary(r.Context(), sessionFrom(r.Context()).TenantID(), rng)
	h.respond(w, r, http.StatusOK, sum, err)
}

func (h *Handler) BranchDashboard(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	dash, err := h.ledger.BranchDashboard(r.Context(), s.TenantID(), s.BranchID())
	h.respond(w, r, http.StatusOK, dash, err)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

func (h *Handler) VerifyBalances(w http.ResponseWriter, r *http.Request) {
	drifts, err := h.ledger.VerifyBalances(r.Context(), sessionFrom(r.Context()).TenantID())
	h.respond(w, r, http.StatusOK, BalanceCheckResponse{CheckedAt: time.Now().UTC(), Drifts: nonNil(drifts)}, err)
}

func (h *Handler) RepairBalances(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.ledger.RepairBalances(r.Context(), sessionFrom(r.Context()).TenantID())
	h.respond(w, r, http.StatusOK, BalanceCheckResponse{CheckedAt: time.Now().UTC(), Drifts: nonNil(fixed)}, err)
}

func nonNil(d []textile.BalanceDrift) []textile.BalanceDrift {
	if d == nil {
		return []textile.BalanceDrift{}
	}
	return d
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body and checks its validate tags. It writes the
// error response itself and reports whether the handler should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err)
		return false
	}
	if err := factory.Validate(dst); err != nil {
		h.writeDomainError(w, r, err)
		return false
	}
	return true
}

// respond writes data, or maps err when it is set.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, data any, err error) {
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, data)
}

// writeDomainError maps ledger errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, textile.ErrReadOnlyTenant):
		writeError(w, http.StatusForbidden, "tenant is read-only", err)
	case errors.Is(err, textile.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials", nil)
	case textile.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case textile.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", err)
	case textile.IsClientError(err):
		var verr *textile.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Code: verr.Field, Details: err.Error()})
			return
		}
		writeError(w, http.StatusBadRequest, "validation failed", err)
	default:
		h.log.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"request": r.Header.Get("X-Request-Id"),
		}).WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
