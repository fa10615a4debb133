package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/textile-ledger/generic"
	"github.com/warp/textile-ledger/generic/store"
	"github.com/warp/textile-ledger/textile"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type testAPI struct {
	t      *testing.T
	router http.Handler
	ledger *textile.Ledger
	now    time.Time
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	a := &testAPI{t: t, now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	log := logrus.New()
	log.SetOutput(io.Discard)
	a.ledger = textile.NewLedger(store.NewTxMemory(),
		textile.WithClock(func() time.Time { return a.now }),
		textile.WithLogger(log))
	h := NewHandler(a.ledger, NewSessions("test-secret-0123456789", time.Hour), log)
	a.router = NewRouter(h, []string{"*"})
	return a
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// decode asserts the status and unmarshals the body into out.
func decode[T any](t *testing.T, rec *httptest.ResponseRecorder, status int) T {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (a *testAPI) register(username string) SessionResponse {
	a.t.Helper()
	return decode[SessionResponse](a.t, a.do("POST", "/api/auth/register", "", RegisterRequest{
		Username: username, Password: "1234", ShopName: "Shop " + username,
	}), http.StatusCreated)
}

// =============================================================================
// TESTS
// =============================================================================

func TestAPI_ShopDayEndToEnd(t *testing.T) {
	// GIVEN: A freshly registered shop
	// WHEN: It buys silk, tries to oversell, then sells within stock
	// THEN: Balances, pickers, reports and the export reflect exactly the
	//       accepted transactions

	a := newTestAPI(t)
	sess := a.register("aqeel")
	tok := sess.AccessToken
	assert.Equal(t, textile.StatusTrial, sess.Status.Status)
	assert.Equal(t, "Main Outlet", sess.Branch.Name)

	art := decode[textile.Article](t, a.do("POST", "/api/articles", tok, ArticleRequest{Name: "Silk"}), http.StatusCreated)
	sup := decode[textile.Party](t, a.do("POST", "/api/suppliers", tok, PartyRequest{Name: "Mill"}), http.StatusCreated)
	cust := decode[textile.Party](t, a.do("POST", "/api/customers", tok, PartyRequest{Name: "Boutique"}), http.StatusCreated)

	purchase := decode[textile.Transaction](t, a.do("POST", "/api/transactions", tok, map[string]any{
		"type": "PURCHASE", "entity_id": sup.ID, "amount": "1000", "paid_amount": "400", "date": "2026-03-01",
		"items": []map[string]any{{"article_id": art.ID, "quantity": "100", "price": "10"}},
	}), http.StatusCreated)
	raw := purchase.Items[0].BatchID
	require.NotEmpty(t, raw)
	assert.Equal(t, string(sess.Branch.ID), string(purchase.BranchID), "branch comes from the session")

	pickers := decode[[]textile.StockBatch](t, a.do("GET", "/api/batches/pickers?article_id="+art.ID+"&stage=RAW", tok, nil), http.StatusOK)
	require.Len(t, pickers, 1)
	assert.Equal(t, raw, pickers[0].ID)

	oversell := decode[ErrorResponse](t, a.do("POST", "/api/transactions", tok, map[string]any{
		"type": "SALE", "entity_id": cust.ID, "amount": "3000", "date": "2026-03-02",
		"items": []map[string]any{{"batch_id": raw, "quantity": "150", "price": "20"}},
	}), http.StatusConflict)
	assert.Equal(t, "conflict", oversell.Error)

	decode[textile.Transaction](t, a.do("POST", "/api/transactions", tok, map[string]any{
		"type": "SALE", "entity_id": cust.ID, "amount": "250", "paid_amount": "150", "date": "2026-03-02",
		"items": []map[string]any{{"batch_id": raw, "quantity": "10", "price": "25"}},
	}), http.StatusCreated)

	payables := decode[[]textile.Party](t, a.do("GET", "/api/suppliers/outstanding", tok, nil), http.StatusOK)
	require.Len(t, payables, 1)
	assert.True(t, payables[0].Balance.Equal(generic.Dec(600)), "got %s", payables[0].Balance)

	receivables := decode[[]textile.Party](t, a.do("GET", "/api/customers/outstanding", tok, nil), http.StatusOK)
	require.Len(t, receivables, 1)
	assert.True(t, receivables[0].Balance.Equal(generic.Dec(100)))

	sum := decode[textile.FinancialSummary](t, a.do("GET", "/api/reports/summary?to=2026-03-02", tok, nil), http.StatusOK)
	assert.True(t, sum.Revenue.Equal(generic.Dec(250)))
	assert.True(t, sum.COGS.Equal(generic.Dec(100)))
	assert.True(t, sum.StockValue.Equal(generic.Dec(900)))

	early := decode[textile.FinancialSummary](t, a.do("GET", "/api/reports/summary?to=2026-03-01", tok, nil), http.StatusOK)
	assert.True(t, early.Revenue.IsZero(), "sale on the 2nd is outside the range")

	txs := decode[[]textile.Transaction](t, a.do("GET", "/api/transactions", tok, nil), http.StatusOK)
	require.Len(t, txs, 2)
	assert.Equal(t, textile.TxSale, txs[0].Type, "newest first")

	chain := decode[[]textile.StockBatch](t, a.do("GET", "/api/batches/"+raw+"/lineage", tok, nil), http.StatusOK)
	assert.Len(t, chain, 1)

	check := decode[BalanceCheckResponse](t, a.do("GET", "/api/admin/balances/verify", tok, nil), http.StatusOK)
	assert.Empty(t, check.Drifts)

	// Export
	rec := a.do("GET", "/api/transactions/export.xlsx", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	book, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(registerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header + two transactions")
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "SALE", rows[1][1])
	assert.Equal(t, "Mill", rows[2][2])
}

func TestAPI_AuthErrors(t *testing.T) {
	a := newTestAPI(t)
	a.register("shop")

	rec := a.do("GET", "/api/articles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do("GET", "/api/articles", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do("POST", "/api/auth/login", "", LoginRequest{Username: "shop", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do("POST", "/api/auth/register", "", RegisterRequest{Username: "SHOP", Password: "abcd", ShopName: "Copy"})
	assert.Equal(t, http.StatusConflict, rec.Code, "usernames are case-insensitive")

	sess := decode[SessionResponse](t, a.do("POST", "/api/auth/login", "", LoginRequest{Username: "Shop", Password: "1234"}), http.StatusOK)
	assert.NotEmpty(t, sess.AccessToken)
	assert.True(t, sess.Branch.IsDefault)
}

func TestAPI_ValidationAndNotFound(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("shop").AccessToken

	bad := decode[ErrorResponse](t, a.do("POST", "/api/articles", tok, ArticleRequest{}), http.StatusBadRequest)
	assert.Equal(t, "name", bad.Code)

	rec := a.do("POST", "/api/transactions", tok, `{"type": "REFUND", "date": "2026-03-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do("POST", "/api/transactions", tok, `{"type": "SALE", "amount": "-1", "date": "2026-03-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do("POST", "/api/transactions", tok, `{"type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do("GET", "/api/batches/ghost/lineage", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do("PUT", "/api/articles/ghost", tok, ArticleRequest{Name: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do("POST", "/api/transactions/ghost/clearance", tok, ClearanceRequest{IsCleared: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_BranchSwitchScopesTheRegister(t *testing.T) {
	// GIVEN: A purchase recorded at the main branch
	// WHEN: The session switches to a second branch
	// THEN: The branch register is empty and selling the main-branch lot is rejected

	a := newTestAPI(t)
	tok := a.register("shop").AccessToken
	art := decode[textile.Article](t, a.do("POST", "/api/articles", tok, ArticleRequest{Name: "Lawn"}), http.StatusCreated)
	sup := decode[textile.Party](t, a.do("POST", "/api/suppliers", tok, PartyRequest{Name: "Mill"}), http.StatusCreated)
	purchase := decode[textile.Transaction](t, a.do("POST", "/api/transactions", tok, map[string]any{
		"type": "PURCHASE", "entity_id": sup.ID, "amount": "100", "paid_amount": "100", "date": "2026-03-01",
		"items": []map[string]any{{"article_id": art.ID, "quantity": "10", "price": "10"}},
	}), http.StatusCreated)

	mall := decode[textile.Branch](t, a.do("POST", "/api/branches", tok, BranchRequest{Name: "Mall"}), http.StatusCreated)
	switched := decode[SessionResponse](t, a.do("POST", "/api/auth/branch", tok, SwitchBranchRequest{BranchID: mall.ID}), http.StatusOK)
	mallTok := switched.AccessToken
	assert.Equal(t, mall.ID, switched.Branch.ID)

	txs := decode[[]textile.Transaction](t, a.do("GET", "/api/transactions", mallTok, nil), http.StatusOK)
	assert.Empty(t, txs)
	all := decode[[]textile.Transaction](t, a.do("GET", "/api/transactions/all", mallTok, nil), http.StatusOK)
	assert.Len(t, all, 1)

	cust := decode[textile.Party](t, a.do("POST", "/api/customers", mallTok, PartyRequest{Name: "Shopper"}), http.StatusCreated)
	rec := a.do("POST", "/api/transactions", mallTok, map[string]any{
		"type": "SALE", "entity_id": cust.ID, "amount": "20", "paid_amount": "20", "date": "2026-03-02",
		"items": []map[string]any{{"batch_id": purchase.Items[0].BatchID, "quantity": "1", "price": "20"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do("POST", "/api/auth/branch", tok, SwitchBranchRequest{BranchID: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_SaleAndWorkNeedPartyAndMatchingTotal(t *testing.T) {
	// GIVEN: A raw lot of 10 at the main branch
	// WHEN: A sale or work omits its party, or states an amount off the line total
	// THEN: Each is a 400 naming the offending field and the lot is untouched

	a := newTestAPI(t)
	tok := a.register("shop").AccessToken
	art := decode[textile.Article](t, a.do("POST", "/api/articles", tok, ArticleRequest{Name: "Lawn"}), http.StatusCreated)
	sup := decode[textile.Party](t, a.do("POST", "/api/suppliers", tok, PartyRequest{Name: "Mill"}), http.StatusCreated)
	cust := decode[textile.Party](t, a.do("POST", "/api/customers", tok, PartyRequest{Name: "Boutique"}), http.StatusCreated)
	purchase := decode[textile.Transaction](t, a.do("POST", "/api/transactions", tok, map[string]any{
		"type": "PURCHASE", "entity_id": sup.ID, "amount": "100", "paid_amount": "100", "date": "2026-03-01",
		"items": []map[string]any{{"article_id": art.ID, "quantity": "10", "price": "10"}},
	}), http.StatusCreated)
	raw := purchase.Items[0].BatchID

	tests := []struct {
		name string
		body map[string]any
		code string
	}{
		{"sale without customer", map[string]any{
			"type": "SALE", "amount": "20", "date": "2026-03-02",
			"items": []map[string]any{{"batch_id": raw, "quantity": "1", "price": "20"}},
		}, "entity_id"},
		{"sale total off", map[string]any{
			"type": "SALE", "entity_id": cust.ID, "amount": "25", "date": "2026-03-02",
			"items": []map[string]any{{"batch_id": raw, "quantity": "1", "price": "20"}},
		}, "amount"},
		{"work without vendor", map[string]any{
			"type": "WORK", "amount": "10", "date": "2026-03-02", "category": "DYED",
			"source_batch_id": raw, "work_price_per_unit": "5", "items": []map[string]any{{"quantity": "2"}},
		}, "entity_id"},
		{"work total off", map[string]any{
			"type": "WORK", "entity_id": sup.ID, "amount": "11", "date": "2026-03-02", "category": "DYED",
			"source_batch_id": raw, "work_price_per_unit": "5", "items": []map[string]any{{"quantity": "2"}},
		}, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := decode[ErrorResponse](t, a.do("POST", "/api/transactions", tok, tt.body), http.StatusBadRequest)
			assert.Equal(t, tt.code, bad.Code)
		})
	}

	pickers := decode[[]textile.StockBatch](t, a.do("GET", "/api/batches/pickers?article_id="+art.ID+"&stage=RAW", tok, nil), http.StatusOK)
	require.Len(t, pickers, 1)
	assert.True(t, pickers[0].CurrentQuantity.Equal(generic.Dec(10)))
}

func TestAPI_ChequeClearance(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("shop").AccessToken
	art := decode[textile.Article](t, a.do("POST", "/api/articles", tok, ArticleRequest{Name: "Silk"}), http.StatusCreated)
	sup := decode[textile.Party](t, a.do("POST", "/api/suppliers", tok, PartyRequest{Name: "Mill"}), http.StatusCreated)
	decode[textile.Transaction](t, a.do("POST", "/api/transactions", tok, map[string]any{
		"type": "PURCHASE", "entity_id": sup.ID, "amount": "500", "date": "2026-03-01",
		"items": []map[string]any{{"article_id": art.ID, "quantity": "50", "price": "10"}},
	}), http.StatusCreated)

	pay := decode[textile.Transaction](t, a.do("POST", "/api/transactions", tok, map[string]any{
		"type": "PAYMENT", "entity_id": sup.ID, "amount": "200", "date": "2026-03-02",
		"payment_mode": "CHEQUE", "reference_no": "CHQ-1",
	}), http.StatusCreated)
	assert.False(t, pay.IsCleared)

	cleared := decode[textile.Transaction](t, a.do("POST", "/api/transactions/"+pay.ID+"/clearance", tok,
		ClearanceRequest{IsCleared: true, Note: "honoured"}), http.StatusOK)
	assert.True(t, cleared.IsCleared)
	require.NotNil(t, cleared.ClearedAt)

	over := a.do("POST", "/api/transactions", tok, map[string]any{
		"type": "PAYMENT", "entity_id": sup.ID, "amount": "301", "date": "2026-03-03",
	})
	assert.Equal(t, http.StatusConflict, over.Code, "only 300 is owed")
}

func TestAPI_ExpiredTenantIsReadOnly(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("shop").AccessToken

	a.now = a.now.AddDate(0, 0, textile.TrialDays+1)

	st := decode[textile.TenantStatus](t, a.do("GET", "/api/tenant/status", tok, nil), http.StatusOK)
	assert.Equal(t, textile.StatusExpired, st.Status)
	assert.True(t, st.ReadOnly)

	rec := a.do("POST", "/api/articles", tok, ArticleRequest{Name: "Silk"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Reads still work.
	rec = a.do("GET", "/api/articles", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessions_RejectExpiredAndForeignTokens(t *testing.T) {
	s := NewSessions("secret-one-0123456789", time.Minute)
	tok, _, err := s.Issue("t-1", "br-1")
	require.NoError(t, err)

	claims, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "t-1", string(claims.TenantID()))
	assert.Equal(t, "br-1", string(claims.BranchID()))

	other := NewSessions("secret-two-0123456789", time.Minute)
	_, err = other.Parse(tok)
	assert.Error(t, err, "signed with another key")

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Parse(tok)
	assert.Error(t, err, "expired")
}
