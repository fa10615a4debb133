/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Ledger records
  (transactions, batches, parties, branches) already carry snake_case
  tags and are returned as-is; the types here cover request bodies and
  the few views that must not expose stored fields (password hashes).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry `validate` tags checked by factory.Validate before
  any ledger call. Business rules stay in the textile package.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/transaction.go: TransactionJSON, the transaction request body
*/
package api

import (
	"time"

	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/textile"
)

// =============================================================================
// AUTH
// =============================================================================

type RegisterRequest struct {
	Username      string `json:"username" validate:"required,min=3,max=32"`
	Password      string `json:"password" validate:"required,min=4,max=72"`
	ShopName      string `json:"shop_name" validate:"required,max=120"`
	OwnerName     string `json:"owner_name" validate:"max=120"`
	PhoneNumber   string `json:"phone_number" validate:"max=32"`
	CNIC          string `json:"cnic" validate:"max=32"`
	BranchName    string `json:"branch_name" validate:"max=120"`
	BranchAddress string `json:"branch_address" validate:"max=240"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	BranchID string `json:"branch_id"`
}

type SwitchBranchRequest struct {
	BranchID string `json:"branch_id" validate:"required"`
}

// TenantDTO is the shop profile without credentials.
type TenantDTO struct {
	ID           generic.TenantID      `json:"id"`
	Username     string                `json:"username"`
	ShopName     string                `json:"shop_name"`
	OwnerName    string                `json:"owner_name"`
	PhoneNumber  string                `json:"phone_number"`
	Subscription *textile.Subscription `json:"current_subscription,omitempty"`
}

func toTenantDTO(t *textile.Tenant) TenantDTO {
	return TenantDTO{
		ID:           t.ID,
		Username:     t.Username,
		ShopName:     t.ShopName,
		OwnerName:    t.OwnerName,
		PhoneNumber:  t.PhoneNumber,
		Subscription: t.Subscription,
	}
}

// SessionResponse is returned by register, login and branch switch.
type SessionResponse struct {
	AccessToken string               `json:"access_token"`
	ExpiresAt   string               `json:"expires_at"`
	Tenant      TenantDTO            `json:"tenant"`
	Branch      textile.Branch       `json:"branch"`
	Status      textile.TenantStatus `json:"status"`
}

// =============================================================================
// CATALOG
// =============================================================================

type ArticleRequest struct {
	Name string `json:"name" validate:"required,max=80"`
	Unit string `json:"unit" validate:"max=20"`
}

type PartyRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"max=32"`
}

type BranchRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Address   string `json:"address" validate:"max=240"`
	IsDefault bool   `json:"is_default"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type ClearanceRequest struct {
	IsCleared bool   `json:"is_cleared"`
	Note      string `json:"note" validate:"max=240"`
}

// BalanceCheckResponse is the result of a verify or repair run.
type BalanceCheckResponse struct {
	CheckedAt time.Time              `json:"checked_at"`
	Drifts    []textile.BalanceDrift `json:"drifts"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
