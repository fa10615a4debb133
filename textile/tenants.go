/*
tenants.go - Shop accounts, subscriptions and the session contract

PURPOSE:
  A tenant is one shop. Its profile is stored under the "users" kind with
  TenantID == ID so it is scoped like every other record. Registration
  creates the profile, a 30 day DEMO subscription and the default branch.

SUBSCRIPTION STATES:
  days remaining = ceil((end - now) / 24h)
    < 0        EXPIRED  (tenant is read-only, every write fails with ErrReadOnlyTenant)
    DEMO       TRIAL
    otherwise  ACTIVE

SEE ALSO:
  - ledger.go: checkWritable
  - api/session.go: JWT claims implementing Session
*/
package textile

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/textile-ledger/generic"
)

// TrialDays is the length of the DEMO subscription granted at registration.
const TrialDays = 30

// registryLock serializes registrations so usernames stay unique.
const registryLock generic.TenantID = "_registry"

// =============================================================================
// SESSION - Supplied by the authentication layer
// =============================================================================

// Session identifies the acting tenant and the branch selected for this session.
type Session interface {
	TenantID() generic.TenantID
	BranchID() generic.BranchID
}

// NewHeader starts a command header for the session's tenant and branch.
func NewHeader(s Session, date time.Time) Header {
	return Header{TenantID: s.TenantID(), BranchID: s.BranchID(), Date: date}
}

// =============================================================================
// TENANT
// =============================================================================

type SubscriptionType string

const (
	SubscriptionDemo    SubscriptionType = "DEMO"
	SubscriptionPremium SubscriptionType = "PREMIUM"
)

type Subscription struct {
	ID        string           `json:"id"`
	Type      SubscriptionType `json:"type"`
	StartDate time.Time        `json:"start_date"`
	EndDate   time.Time        `json:"end_date"`
	Amount    decimal.Decimal  `json:"amount"`
	IsPaid    bool             `json:"is_paid"`
}

type Tenant struct {
	ID               generic.TenantID `json:"id"`
	Username         string           `json:"username"`
	PasswordHash     string           `json:"password_hash"`
	ShopName         string           `json:"shop_name"`
	OwnerName        string           `json:"owner_name"`
	PhoneNumber      string           `json:"phone_number"`
	CNIC             string           `json:"cnic,omitempty"`
	IsActive         bool             `json:"is_active"`
	RegistrationDate time.Time        `json:"registration_date"`
	Subscription     *Subscription    `json:"current_subscription,omitempty"`
}

func (t Tenant) RecordID() string               { return string(t.ID) }
func (t Tenant) RecordTenant() generic.TenantID { return t.ID }

type SubscriptionStatus string

const (
	StatusActive  SubscriptionStatus = "ACTIVE"
	StatusTrial   SubscriptionStatus = "TRIAL"
	StatusExpired SubscriptionStatus = "EXPIRED"
)

// TenantStatus is the subscription view shown to the shop.
type TenantStatus struct {
	Status        SubscriptionStatus `json:"status"`
	DaysRemaining int                `json:"days_remaining"`
	ReadOnly      bool               `json:"read_only"`
}

func (t Tenant) Status(now time.Time) TenantStatus {
	if t.Subscription == nil {
		return TenantStatus{Status: StatusActive}
	}
	days := int(math.Ceil(t.Subscription.EndDate.Sub(now).Hours() / 24))
	switch {
	case days < 0:
		return TenantStatus{Status: StatusExpired, DaysRemaining: days, ReadOnly: true}
	case t.Subscription.Type == SubscriptionDemo:
		return TenantStatus{Status: StatusTrial, DaysRemaining: days}
	default:
		return TenantStatus{Status: StatusActive, DaysRemaining: days}
	}
}

func (t Tenant) ReadOnly(now time.Time) bool { return t.Status(now).ReadOnly }

// =============================================================================
// TENANTS SERVICE
// =============================================================================

type Tenants struct {
	ledger *Ledger
}

func NewTenants(l *Ledger) *Tenants {
	return &Tenants{ledger: l}
}

type Registration struct {
	Username      string
	Password      string
	ShopName      string
	OwnerName     string
	PhoneNumber   string
	CNIC          string
	BranchName    string
	BranchAddress string
}

// Register creates a shop with a DEMO subscription and its default branch.
func (ts *Tenants) Register(ctx context.Context, r Registration) (*Tenant, *Branch, error) {
	username := strings.ToLower(strings.TrimSpace(r.Username))
	switch {
	case username == "":
		return nil, nil, invalid("username", "is required")
	case len(r.Password) < 4:
		return nil, nil, invalid("password", "must be at least 4 characters")
	case strings.TrimSpace(r.ShopName) == "":
		return nil, nil, invalid("shop_name", "is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	branchName := strings.TrimSpace(r.BranchName)
	if branchName == "" {
		branchName = "Main Outlet"
	}

	l := ts.ledger
	release, err := l.locks.Lock(ctx, registryLock)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	if _, found, err := ts.findByUsername(ctx, username); err != nil {
		return nil, nil, err
	} else if found {
		return nil, nil, ErrUsernameTaken
	}

	now := l.now()
	tenant := Tenant{
		ID:               generic.TenantID(l.newID()),
		Username:         username,
		PasswordHash:     string(hash),
		ShopName:         strings.TrimSpace(r.ShopName),
		OwnerName:        strings.TrimSpace(r.OwnerName),
		PhoneNumber:      strings.TrimSpace(r.PhoneNumber),
		CNIC:             strings.TrimSpace(r.CNIC),
		IsActive:         true,
		RegistrationDate: now,
		Subscription: &Subscription{
			ID:        l.newID(),
			Type:      SubscriptionDemo,
			StartDate: now,
			EndDate:   now.AddDate(0, 0, TrialDays),
			Amount:    decimal.Zero,
			IsPaid:    true,
		},
	}
	branch := Branch{
		ID:        l.newID(),
		TenantID:  tenant.ID,
		Name:      branchName,
		IsDefault: true,
		Address:   strings.TrimSpace(r.BranchAddress),
	}

	err = l.store.WithTx(ctx, func(s generic.Store) error {
		if err := tenants.Save(ctx, s, tenant); err != nil {
			return err
		}
		return branches.Save(ctx, s, branch)
	})
	if err != nil {
		return nil, nil, err
	}

	l.log.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"username":  tenant.Username,
	}).Info("tenant registered")
	return &tenant, &branch, nil
}

// Authenticate checks credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (ts *Tenants) Authenticate(ctx context.Context, username, password string) (*Tenant, error) {
	t, found, err := ts.findByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, err
	}
	if !found || !t.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &t, nil
}

func (ts *Tenants) Get(ctx context.Context, id generic.TenantID) (*Tenant, error) {
	t, found, err := tenants.Find(ctx, ts.ledger.store, id, string(id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(ErrTenantNotFound, "tenant_id", string(id))
	}
	return &t, nil
}

// Status reports the subscription state of tenant at the ledger's clock.
func (ts *Tenants) Status(ctx context.Context, id generic.TenantID) (TenantStatus, error) {
	t, err := ts.Get(ctx, id)
	if err != nil {
		return TenantStatus{}, err
	}
	return t.Status(ts.ledger.now()), nil
}

// List returns every tenant. Used by administrative tooling.
func (ts *Tenants) List(ctx context.Context) ([]Tenant, error) {
	return tenants.All(ctx, ts.ledger.store)
}

func (ts *Tenants) findByUsername(ctx context.Context, username string) (Tenant, bool, error) {
	all, err := tenants.All(ctx, ts.ledger.store)
	if err != nil {
		return Tenant{}, false, err
	}
	for _, t := range all {
		if t.Username == username {
			return t, true, nil
		}
	}
	return Tenant{}, false, nil
}
