package textile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/textile-ledger/textile"
)

func rawBatch(id, initial, current, price string) textile.StockBatch {
	return textile.StockBatch{
		ID:                  id,
		TenantID:            tenantA,
		BranchID:            branchMain,
		Stage:               textile.StageRaw,
		InitialQuantity:     dec(initial),
		CurrentQuantity:     dec(current),
		UnitCost:            dec(price),
		BasePurchasePrice:   dec(price),
		AccumulatedWorkCost: dec("0"),
	}
}

func childBatch(id, parent string, stage textile.Stage, qty, base, work string) textile.StockBatch {
	return textile.StockBatch{
		ID:                  id,
		TenantID:            tenantA,
		BranchID:            branchMain,
		Stage:               stage,
		InitialQuantity:     dec(qty),
		CurrentQuantity:     dec(qty),
		UnitCost:            dec(base).Add(dec(work)),
		BasePurchasePrice:   dec(base),
		AccumulatedWorkCost: dec(work),
		ParentID:            parent,
	}
}

func TestBatchForest_ValidForest(t *testing.T) {
	// GIVEN: raw (100, 60 left) -> printed (40, 10 left) -> dyed (30)
	printed := childBatch("printed", "raw", textile.StagePrinted, "40", "10", "5")
	printed.CurrentQuantity = dec("10")
	f, err := textile.NewBatchForest([]textile.StockBatch{
		childBatch("dyed", "printed", textile.StageDyed, "30", "10", "8"),
		printed,
		rawBatch("raw", "100", "60", "10"),
		rawBatch("other", "5", "5", "7"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, f.Len())

	chain, err := f.Lineage("dyed")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []string{"raw", "printed", "dyed"}, []string{chain[0].ID, chain[1].ID, chain[2].ID})

	root, ok := f.Root("dyed")
	require.True(t, ok)
	assert.Equal(t, "raw", root.ID)

	kids := f.Children("raw")
	require.Len(t, kids, 1)
	assert.Equal(t, "printed", kids[0].ID)
	assert.Empty(t, f.Children("other"))
}

func TestBatchForest_RejectsBrokenLineage(t *testing.T) {
	cyclicA := childBatch("a", "b", textile.StagePrinted, "1", "10", "2")
	cyclicA.CurrentQuantity = dec("0")
	cyclicB := childBatch("b", "a", textile.StageDyed, "1", "10", "2")
	cyclicB.CurrentQuantity = dec("0")

	rawWithParent := rawBatch("r2", "5", "5", "10")
	rawWithParent.ParentID = "r1"

	rawWithWork := rawBatch("r3", "5", "5", "10")
	rawWithWork.AccumulatedWorkCost = dec("1")
	rawWithWork.UnitCost = dec("11")

	badCost := childBatch("c", "r1", textile.StagePrinted, "1", "10", "2")
	badCost.UnitCost = dec("13")

	overCurrent := rawBatch("r4", "5", "6", "10")

	tests := []struct {
		name    string
		batches []textile.StockBatch
	}{
		{"cycle", []textile.StockBatch{cyclicA, cyclicB}},
		{"missing parent", []textile.StockBatch{childBatch("c", "ghost", textile.StagePrinted, "1", "10", "2")}},
		{"non-RAW without parent", []textile.StockBatch{childBatch("c", "", textile.StagePrinted, "1", "10", "2")}},
		{"RAW with parent", []textile.StockBatch{rawBatch("r1", "10", "5", "10"), rawWithParent}},
		{"RAW with work cost", []textile.StockBatch{rawWithWork}},
		{"unit cost mismatch", []textile.StockBatch{rawBatch("r1", "10", "5", "10"), badCost}},
		{"base price differs from parent", []textile.StockBatch{
			rawBatch("r1", "10", "5", "10"),
			childBatch("c", "r1", textile.StagePrinted, "1", "11", "2"),
		}},
		{"children exceed consumption", []textile.StockBatch{
			rawBatch("r1", "10", "8", "10"),
			childBatch("c", "r1", textile.StagePrinted, "3", "10", "2"),
		}},
		{"current above initial", []textile.StockBatch{overCurrent}},
		{"duplicate id", []textile.StockBatch{rawBatch("r1", "1", "1", "1"), rawBatch("r1", "1", "1", "1")}},
		{"unknown stage", []textile.StockBatch{childBatch("c", "r1", "WOVEN", "1", "10", "0")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := textile.NewBatchForest(tt.batches)
			var lerr *textile.LineageIntegrityError
			require.ErrorAs(t, err, &lerr)
			assert.ErrorIs(t, err, textile.ErrLineageIntegrity)
		})
	}
}

func TestBatchForest_ConsumeThenInsert(t *testing.T) {
	f, err := textile.NewBatchForest([]textile.StockBatch{rawBatch("raw", "100", "100", "10")})
	require.NoError(t, err)

	// Inserting a child before anything was consumed breaks conservation.
	err = f.Insert(childBatch("early", "raw", textile.StagePrinted, "10", "10", "1"))
	assert.ErrorIs(t, err, textile.ErrLineageIntegrity)

	require.NoError(t, f.Consume("raw", dec("10")))
	require.NoError(t, f.Insert(childBatch("printed", "raw", textile.StagePrinted, "10", "10", "1")))

	raw, _ := f.Get("raw")
	assertDec(t, "90", raw.CurrentQuantity, "raw after consume")

	err = f.Consume("raw", dec("91"))
	var short *textile.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assertDec(t, "1", short.Shortfall, "shortfall")

	assert.ErrorIs(t, f.Insert(rawBatch("raw", "1", "1", "1")), textile.ErrLineageIntegrity, "duplicate id")
	assert.ErrorIs(t, f.Insert(childBatch("x", "ghost", textile.StageDyed, "1", "10", "1")), textile.ErrLineageIntegrity)
	assert.ErrorIs(t, f.Consume("ghost", dec("1")), textile.ErrBatchNotFound)

	_, err = f.Lineage("ghost")
	assert.ErrorIs(t, err, textile.ErrBatchNotFound)
}
