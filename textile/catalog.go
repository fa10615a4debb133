package textile

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// CATALOG - Articles, parties and branches
// =============================================================================

// DefaultUnit is used when an article is created without a unit.
const DefaultUnit = "Meter"

// Catalog manages the reference records the ledger points at. It never
// touches quantities or balances; those only move through RecordTransaction.
type Catalog struct {
	ledger *Ledger
}

func NewCatalog(l *Ledger) *Catalog {
	return &Catalog{ledger: l}
}

// -----------------------------------------------------------------------------
// Articles
// -----------------------------------------------------------------------------

func (c *Catalog) CreateArticle(ctx context.Context, tenant generic.TenantID, name, unit string) (*Article, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = DefaultUnit
	}
	a := Article{ID: c.ledger.newID(), TenantID: tenant, Name: name, Unit: unit}
	err := c.ledger.write(ctx, tenant, func(s generic.Store) error {
		return articles.Save(ctx, s, a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RenameArticle changes the display name. Batches keep the name they were created with.
func (c *Catalog) RenameArticle(ctx context.Context, tenant generic.TenantID, id, name string) (*Article, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	var a Article
	err := c.ledger.write(ctx, tenant, func(s generic.Store) error {
		found, ok, err := articles.Find(ctx, s, tenant, id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(ErrArticleNotFound, "article_id", id)
		}
		found.Name = name
		a = found
		return articles.Save(ctx, s, found)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Catalog) GetArticle(ctx context.Context, tenant generic.TenantID, id string) (*Article, error) {
	a, found, err := articles.Find(ctx, c.ledger.store, tenant, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(ErrArticleNotFound, "article_id", id)
	}
	return &a, nil
}

func (c *Catalog) ListArticles(ctx context.Context, tenant generic.TenantID) ([]Article, error) {
	all, err := articles.Filter(ctx, c.ledger.store, tenant)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

// -----------------------------------------------------------------------------
// Parties
// -----------------------------------------------------------------------------

// CreateParty adds a customer or supplier with a zero balance.
func (c *Catalog) CreateParty(ctx context.Context, tenant generic.TenantID, kind PartyKind, name, phone string) (*Party, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "must be customer or supplier")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	p := Party{
		ID:       c.ledger.newID(),
		TenantID: tenant,
		Kind:     kind,
		Name:     name,
		Phone:    strings.TrimSpace(phone),
		Balance:  decimal.Zero,
	}
	err := c.ledger.write(ctx, tenant, func(s generic.Store) error {
		return parties(kind).Save(ctx, s, p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateParty edits contact details. The balance is carried over untouched.
func (c *Catalog) UpdateParty(ctx context.Context, tenant generic.TenantID, kind PartyKind, id, name, phone string) (*Party, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "must be customer or supplier")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	var p *Party
	err := c.ledger.write(ctx, tenant, func(s generic.Store) error {
		found, err := loadParty(ctx, s, tenant, kind, id)
		if err != nil {
			return err
		}
		found.Name = name
		found.Phone = strings.TrimSpace(phone)
		p = found
		return parties(kind).Save(ctx, s, *found)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Catalog) GetParty(ctx context.Context, tenant generic.TenantID, kind PartyKind, id string) (*Party, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "must be customer or supplier")
	}
	return loadParty(ctx, c.ledger.store, tenant, kind, id)
}

func (c *Catalog) ListParties(ctx context.Context, tenant generic.TenantID, kind PartyKind) ([]Party, error) {
	if !kind.Valid() {
		return nil, invalid("kind", "must be customer or supplier")
	}
	all, err := parties(kind).Filter(ctx, c.ledger.store, tenant)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i].Kind = kind
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

// -----------------------------------------------------------------------------
// Branches
// -----------------------------------------------------------------------------

// CreateBranch adds an outlet. Making it the default demotes the previous default.
func (c *Catalog) CreateBranch(ctx context.Context, tenant generic.TenantID, name, address string, isDefault bool) (*Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	b := Branch{
		ID:        c.ledger.newID(),
		TenantID:  tenant,
		Name:      name,
		IsDefault: isDefault,
		Address:   strings.TrimSpace(address),
	}
	err := c.ledger.write(ctx, tenant, func(s generic.Store) error {
		existing, err := branches.Filter(ctx, s, tenant)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			b.IsDefault = true
		}
		if b.IsDefault {
			for _, other := range existing {
				if other.IsDefault {
					other.IsDefault = false
					if err := branches.Save(ctx, s, other); err != nil {
						return err
					}
				}
			}
		}
		return branches.Save(ctx, s, b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Catalog) GetBranch(ctx context.Context, tenant generic.TenantID, id string) (*Branch, error) {
	b, found, err := branches.Find(ctx, c.ledger.store, tenant, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound(ErrBranchNotFound, "branch_id", id)
	}
	return &b, nil
}

// ListBranches returns the default branch first, then the rest by name.
func (c *Catalog) ListBranches(ctx context.Context, tenant generic.TenantID) ([]Branch, error) {
	all, err := branches.Filter(ctx, c.ledger.store, tenant)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].IsDefault != all[j].IsDefault {
			return all[i].IsDefault
		}
		return all[i].Name < all[j].Name
	})
	return all, nil
}

// DefaultBranch is the branch a new session starts on.
func (c *Catalog) DefaultBranch(ctx context.Context, tenant generic.TenantID) (*Branch, error) {
	all, err := c.ListBranches(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, notFound(ErrBranchNotFound, "branch_id", "default")
	}
	return &all[0], nil
}
