/*
balances.go - Party balances as a replayable projection

PURPOSE:
  Party.Balance is a cache. The transaction log is the source of truth:
  replaying balanceEffect over every transaction from zero must give the
  stored balance of every party. This file implements that replay and the
  repair procedure used by cmd/ledgerctl.

  Balance(party) = Σ balanceEffect(tx) for tx.EntityID == party.ID

    SALE             +(amount - paid)   customer
    RECOVERY         -amount            customer
    PURCHASE / WORK  +(amount - paid)   supplier
    PAYMENT          -amount            supplier
*/
package textile

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/textile-ledger/generic"
)

// PartyKey identifies a party across both party kinds.
type PartyKey struct {
	Kind PartyKind
	ID   string
}

// BalanceDrift is a party whose cached balance differs from the replay.
type BalanceDrift struct {
	Kind     PartyKind       `json:"kind"`
	PartyID  string          `json:"party_id"`
	Name     string          `json:"name"`
	Stored   decimal.Decimal `json:"stored"`
	Replayed decimal.Decimal `json:"replayed"`
}

// ReplayBalances recomputes every party balance of tenant from an empty state.
func (l *Ledger) ReplayBalances(ctx context.Context, tenant generic.TenantID) (map[PartyKey]decimal.Decimal, error) {
	return replay(ctx, l.store, tenant)
}

func replay(ctx context.Context, s generic.Store, tenant generic.TenantID) (map[PartyKey]decimal.Decimal, error) {
	all, err := transactions.Filter(ctx, s, tenant)
	if err != nil {
		return nil, err
	}
	out := make(map[PartyKey]decimal.Decimal)
	for _, tx := range all {
		kind, delta, ok := balanceEffect(tx)
		if !ok {
			continue
		}
		key := PartyKey{Kind: kind, ID: tx.EntityID}
		out[key] = out[key].Add(delta)
	}
	return out, nil
}

// VerifyBalances lists every party whose stored balance disagrees with the replay.
func (l *Ledger) VerifyBalances(ctx context.Context, tenant generic.TenantID) ([]BalanceDrift, error) {
	return drift(ctx, l.store, tenant)
}

func drift(ctx context.Context, s generic.Store, tenant generic.TenantID) ([]BalanceDrift, error) {
	replayed, err := replay(ctx, s, tenant)
	if err != nil {
		return nil, err
	}
	var out []BalanceDrift
	for _, kind := range []PartyKind{PartyCustomer, PartySupplier} {
		stored, err := parties(kind).Filter(ctx, s, tenant)
		if err != nil {
			return nil, err
		}
		for _, p := range stored {
			want := replayed[PartyKey{Kind: kind, ID: p.ID}]
			if !p.Balance.Equal(want) {
				out = append(out, BalanceDrift{
					Kind:     kind,
					PartyID:  p.ID,
					Name:     p.Name,
					Stored:   p.Balance,
					Replayed: want,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].PartyID < out[j].PartyID
	})
	return out, nil
}

// RepairBalances overwrites drifted cached balances with the replayed values
// and returns what it changed. This is the only path besides RecordTransaction
// that writes a balance. It also runs for read-only tenants.
func (l *Ledger) RepairBalances(ctx context.Context, tenant generic.TenantID) ([]BalanceDrift, error) {
	var fixed []BalanceDrift
	err := l.unit(ctx, tenant, func(s generic.Store) error {
		drifts, err := drift(ctx, s, tenant)
		if err != nil {
			return err
		}
		for _, d := range drifts {
			p, err := loadParty(ctx, s, tenant, d.Kind, d.PartyID)
			if err != nil {
				return err
			}
			p.Balance = d.Replayed
			if err := parties(d.Kind).Save(ctx, s, *p); err != nil {
				return err
			}
		}
		fixed = drifts
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, d := range fixed {
		l.log.WithFields(logrus.Fields{
			"tenant_id": tenant,
			"kind":      d.Kind,
			"party_id":  d.PartyID,
			"stored":    d.Stored.String(),
			"replayed":  d.Replayed.String(),
		}).Warn("balance repaired")
	}
	return fixed, nil
}
