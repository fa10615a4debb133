/*
forest.go - Batch lineage as an arena + index forest

PURPOSE:
  Batches reference their parent by id. BatchForest loads a tenant's
  batches into a flat slice (the arena), resolves every ParentID to a
  slice index once, and validates the whole structure. Lineage walks and
  child lookups then work on integers instead of repeated store reads.

INVARIANTS CHECKED:
  - every non-RAW batch has a parent that exists; RAW batches have none
  - no cycles (walking parents always ends at a RAW root)
  - UnitCost = BasePurchasePrice + AccumulatedWorkCost, zero work on RAW
  - child BasePurchasePrice = parent BasePurchasePrice
  - Σ children InitialQuantity <= parent InitialQuantity - CurrentQuantity

  A violation is a LineageIntegrityError. Through RecordTransaction it
  can only appear if stored data was corrupted by hand.

SEE ALSO:
  - ledger.go: Work transactions insert into the forest
  - queries.go: GetBatchLineage
*/
package textile

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const noParent = -1

// BatchForest is the lineage forest of one tenant's batches.
type BatchForest struct {
	nodes  []StockBatch
	index  map[string]int
	parent []int
}

// NewBatchForest indexes and validates batches.
func NewBatchForest(batches []StockBatch) (*BatchForest, error) {
	f := &BatchForest{
		nodes:  make([]StockBatch, 0, len(batches)),
		index:  make(map[string]int, len(batches)),
		parent: make([]int, 0, len(batches)),
	}
	for _, b := range batches {
		if err := checkBatchShape(b); err != nil {
			return nil, err
		}
		if _, dup := f.index[b.ID]; dup {
			return nil, &LineageIntegrityError{BatchID: b.ID, Reason: "duplicate batch id"}
		}
		f.index[b.ID] = len(f.nodes)
		f.nodes = append(f.nodes, b)
		f.parent = append(f.parent, noParent)
	}

	for i, b := range f.nodes {
		if b.ParentID == "" {
			continue
		}
		p, ok := f.index[b.ParentID]
		if !ok {
			return nil, &LineageIntegrityError{BatchID: b.ID, Reason: fmt.Sprintf("parent %s does not exist", b.ParentID)}
		}
		if !f.nodes[p].BasePurchasePrice.Equal(b.BasePurchasePrice) {
			return nil, &LineageIntegrityError{BatchID: b.ID, Reason: "base purchase price differs from parent"}
		}
		f.parent[i] = p
	}

	if err := f.checkAcyclic(); err != nil {
		return nil, err
	}

	consumedByChildren := make([]decimal.Decimal, len(f.nodes))
	for i, p := range f.parent {
		if p != noParent {
			consumedByChildren[p] = consumedByChildren[p].Add(f.nodes[i].InitialQuantity)
		}
	}
	for i, total := range consumedByChildren {
		if total.GreaterThan(f.nodes[i].Consumed()) {
			return nil, &LineageIntegrityError{
				BatchID: f.nodes[i].ID,
				Reason:  fmt.Sprintf("children hold %s but only %s was consumed", total, f.nodes[i].Consumed()),
			}
		}
	}
	return f, nil
}

// checkAcyclic colors nodes while walking parents. A walk that reaches a
// node still on the current path has found a cycle.
func (f *BatchForest) checkAcyclic() error {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]int, len(f.nodes))
	for start := range f.nodes {
		var path []int
		n := start
		for n != noParent && state[n] != done {
			if state[n] == onPath {
				return &LineageIntegrityError{BatchID: f.nodes[n].ID, Reason: "parent links form a cycle"}
			}
			state[n] = onPath
			path = append(path, n)
			n = f.parent[n]
		}
		for _, v := range path {
			state[v] = done
		}
	}
	return nil
}

func checkBatchShape(b StockBatch) error {
	switch {
	case b.ID == "":
		return &LineageIntegrityError{Reason: "batch without id"}
	case !b.Stage.Valid():
		return &LineageIntegrityError{BatchID: b.ID, Reason: fmt.Sprintf("unknown stage %q", b.Stage)}
	case b.CurrentQuantity.IsNegative():
		return &LineageIntegrityError{BatchID: b.ID, Reason: "negative current quantity"}
	case b.CurrentQuantity.GreaterThan(b.InitialQuantity):
		return &LineageIntegrityError{BatchID: b.ID, Reason: "current quantity exceeds initial quantity"}
	case !b.UnitCost.Equal(b.BasePurchasePrice.Add(b.AccumulatedWorkCost)):
		return &LineageIntegrityError{BatchID: b.ID, Reason: "unit cost is not base price plus work cost"}
	case b.Stage == StageRaw && b.ParentID != "":
		return &LineageIntegrityError{BatchID: b.ID, Reason: "RAW batch with a parent"}
	case b.Stage == StageRaw && !b.AccumulatedWorkCost.IsZero():
		return &LineageIntegrityError{BatchID: b.ID, Reason: "RAW batch with work cost"}
	case b.Stage != StageRaw && b.ParentID == "":
		return &LineageIntegrityError{BatchID: b.ID, Reason: fmt.Sprintf("%s batch without a parent", b.Stage)}
	}
	return nil
}

// Len returns the number of batches.
func (f *BatchForest) Len() int { return len(f.nodes) }

// Get returns the batch with id.
func (f *BatchForest) Get(id string) (StockBatch, bool) {
	i, ok := f.index[id]
	if !ok {
		return StockBatch{}, false
	}
	return f.nodes[i], true
}

// Consume takes qty out of batch id. The batch must exist.
func (f *BatchForest) Consume(id string, qty decimal.Decimal) error {
	i, ok := f.index[id]
	if !ok {
		return notFound(ErrBatchNotFound, "batch_id", id)
	}
	if qty.GreaterThan(f.nodes[i].CurrentQuantity) {
		return shortage(f.nodes[i], 0, qty)
	}
	f.nodes[i].CurrentQuantity = f.nodes[i].CurrentQuantity.Sub(qty)
	return nil
}

// Insert adds a new batch. A new node has no children, so it cannot close a cycle.
func (f *BatchForest) Insert(b StockBatch) error {
	if err := checkBatchShape(b); err != nil {
		return err
	}
	if _, dup := f.index[b.ID]; dup {
		return &LineageIntegrityError{BatchID: b.ID, Reason: "duplicate batch id"}
	}
	p := noParent
	if b.ParentID != "" {
		var ok bool
		p, ok = f.index[b.ParentID]
		if !ok {
			return &LineageIntegrityError{BatchID: b.ID, Reason: fmt.Sprintf("parent %s does not exist", b.ParentID)}
		}
		parent := f.nodes[p]
		if !parent.BasePurchasePrice.Equal(b.BasePurchasePrice) {
			return &LineageIntegrityError{BatchID: b.ID, Reason: "base purchase price differs from parent"}
		}
		held := b.InitialQuantity
		for _, c := range f.Children(parent.ID) {
			held = held.Add(c.InitialQuantity)
		}
		if held.GreaterThan(parent.Consumed()) {
			return &LineageIntegrityError{
				BatchID: b.ID,
				Reason:  fmt.Sprintf("children of %s would hold %s but only %s was consumed", parent.ID, held, parent.Consumed()),
			}
		}
	}
	f.index[b.ID] = len(f.nodes)
	f.nodes = append(f.nodes, b)
	f.parent = append(f.parent, p)
	return nil
}

// Lineage returns the chain RAW -> ... -> id.
func (f *BatchForest) Lineage(id string) ([]StockBatch, error) {
	i, ok := f.index[id]
	if !ok {
		return nil, notFound(ErrBatchNotFound, "batch_id", id)
	}
	var chain []StockBatch
	for n := i; n != noParent; n = f.parent[n] {
		chain = append(chain, f.nodes[n])
	}
	for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
		chain[l], chain[r] = chain[r], chain[l]
	}
	return chain, nil
}

// Children returns the direct descendants of id in insertion order.
func (f *BatchForest) Children(id string) []StockBatch {
	i, ok := f.index[id]
	if !ok {
		return nil
	}
	var out []StockBatch
	for c, p := range f.parent {
		if p == i {
			out = append(out, f.nodes[c])
		}
	}
	return out
}

// Root returns the RAW batch at the top of id's lineage.
func (f *BatchForest) Root(id string) (StockBatch, bool) {
	i, ok := f.index[id]
	if !ok {
		return StockBatch{}, false
	}
	for f.parent[i] != noParent {
		i = f.parent[i]
	}
	return f.nodes[i], true
}
