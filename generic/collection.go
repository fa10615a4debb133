package generic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// COLLECTION - Typed view over one Kind
// =============================================================================

// Collection encodes and decodes one record type to and from Documents.
// It holds no state besides the kind, so a zero-cost value can be declared
// once per type and reused with any Store (including a WithTx view).
type Collection[T Record] struct {
	Kind Kind
}

func NewCollection[T Record](kind Kind) Collection[T] {
	return Collection[T]{Kind: kind}
}

// Get loads a record by id for tenant.
func (c Collection[T]) Get(ctx context.Context, s Store, tenant TenantID, id string) (T, error) {
	var zero T
	if tenant == "" {
		return zero, ErrTenantRequired
	}
	doc, err := s.Get(ctx, c.Kind, tenant, id)
	if err != nil {
		return zero, err
	}
	return c.decode(doc)
}

// Find is Get with a presence flag instead of ErrRecordNotFound.
func (c Collection[T]) Find(ctx context.Context, s Store, tenant TenantID, id string) (T, bool, error) {
	v, err := c.Get(ctx, s, tenant, id)
	if errors.Is(err, ErrRecordNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Filter returns all records of the tenant.
func (c Collection[T]) Filter(ctx context.Context, s Store, tenant TenantID) ([]T, error) {
	if tenant == "" {
		return nil, ErrTenantRequired
	}
	docs, err := s.FilterByTenant(ctx, c.Kind, tenant)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(docs)
}

// All returns the records of every tenant.
func (c Collection[T]) All(ctx context.Context, s Store) ([]T, error) {
	docs, err := s.GetAll(ctx, c.Kind)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(docs)
}

// Save upserts v.
func (c Collection[T]) Save(ctx context.Context, s Store, v T) error {
	if v.RecordTenant() == "" {
		return ErrTenantRequired
	}
	if v.RecordID() == "" {
		return ErrIDRequired
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.Kind, v.RecordID(), err)
	}
	return s.SaveOrUpdate(ctx, Document{
		Kind:     c.Kind,
		ID:       v.RecordID(),
		TenantID: v.RecordTenant(),
		Body:     body,
	})
}

func (c Collection[T]) decode(doc Document) (T, error) {
	var v T
	if err := json.Unmarshal(doc.Body, &v); err != nil {
		return v, fmt.Errorf("decode %s %s: %w", c.Kind, doc.ID, err)
	}
	return v, nil
}

func (c Collection[T]) decodeAll(docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := c.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
