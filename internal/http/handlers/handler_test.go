package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/http/middleware"
	"cashback_platform/internal/repository/memstore"
	"cashback_platform/internal/service"
	"cashback_platform/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type testAPI struct {
	t      *testing.T
	store  *memstore.Store
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.SetJWTSecret("handlers-test-secret")

	st := memstore.New()
	audit := service.NewAuditService(st)
	rates := service.NewRateService(st, st, nil, domain.RateConfig{
		PlatformFeeRate:    decimal.NewFromInt(5),
		ClientCashbackRate: decimal.NewFromInt(2),
		ReferralBonusRate:  decimal.NewFromInt(1),
		MinWithdrawal:      decimal.NewFromInt(10),
	}, audit)
	ledger := service.NewLedgerService(st, st, audit)
	n := service.LogNotifier{}
	h := &Handler{
		Auth:        service.NewAuthService(st, "bot-token"),
		Ledger:      ledger,
		Settlement:  service.NewSettlementService(st, st, st, st, rates, ledger, n, audit),
		Transfers:   service.NewTransferService(st, st, st, ledger, n, audit),
		Withdrawals: service.NewWithdrawalService(st, st, st, rates, ledger, n, audit),
		Referrals:   service.NewReferralService(st, st, st, audit),
		Rates:       rates,
		Audit:       audit,
		Users:       st,
		Merchants:   st,
	}

	r := gin.New()
	r.POST("/api/v1/auth/telegram", h.TelegramAuth)
	api := r.Group("/api/v1", middleware.JWT())
	merchantOrAdmin := middleware.RequireRole(service.RoleMerchant, service.RoleAdmin)
	api.GET("/me", h.Me)
	api.GET("/balance", h.GetBalance)
	api.GET("/balance/history", h.BalanceHistory)
	api.POST("/transactions", merchantOrAdmin, h.Settle)
	api.GET("/transactions/:id", h.GetTransaction)
	api.GET("/fees/quote", h.QuoteFees)
	api.POST("/transfers", h.CreateTransfer)
	api.POST("/withdrawals", merchantOrAdmin, h.CreateWithdrawal)
	api.POST("/withdrawals/:id/cancel", h.CancelWithdrawal)
	api.POST("/referrals/register", h.RegisterReferral)
	api.GET("/referrals/stats", h.ReferralStats)
	admin := api.Group("/admin", middleware.RequireRole(service.RoleAdmin))
	admin.PUT("/rates", h.UpdateRates)
	admin.POST("/withdrawals/:id/decision", h.DecideWithdrawal)

	return &testAPI{t: t, store: st, router: r}
}

func (a *testAPI) token(userID int64, role string) string {
	a.t.Helper()
	tok, err := service.GenerateJWT(userID, role, time.Minute)
	if err != nil {
		a.t.Fatalf("GenerateJWT: %v", err)
	}
	return tok
}

func (a *testAPI) do(method, path, token string, body any, headers ...string) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func (a *testAPI) account(userID int64) domain.LedgerAccount {
	a.t.Helper()
	acc, _ := a.store.Account(userID)
	return acc
}

func expectError(t *testing.T, code int, body map[string]any, wantCode int, wantKind string) {
	t.Helper()
	if code != wantCode || body["error"] != wantKind {
		t.Fatalf("got %d %v, want %d %s", code, body, wantCode, wantKind)
	}
}

func TestSettleCreditsCashbackAndReplays(t *testing.T) {
	a := newTestAPI(t)
	clientID := a.store.AddUser(domain.User{Name: "ana", Email: "ana@example.com"})
	ownerID := a.store.AddUser(domain.User{Type: domain.UserMerchant, Name: "owner"})
	merchantID := a.store.AddMerchant(domain.Merchant{OwnerUserID: ownerID, StoreName: "shop", Approved: true})
	tok := a.token(ownerID, service.RoleMerchant)

	body := map[string]any{"client_id": clientID, "merchant_id": merchantID, "amount": "100.00"}
	code, res := a.do(http.MethodPost, "/api/v1/transactions", tok, body, "Idempotency-Key", "sale-1")
	if code != http.StatusCreated {
		t.Fatalf("settle status %d: %v", code, res)
	}
	if !a.account(clientID).Balance.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("client balance = %s, want 2", a.account(clientID).Balance)
	}

	code, res = a.do(http.MethodPost, "/api/v1/transactions", tok, body, "Idempotency-Key", "sale-1")
	if code != http.StatusOK || res["replayed"] != true {
		t.Fatalf("replay: %d %v", code, res)
	}
	if !a.account(clientID).Balance.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("replay changed balance to %s", a.account(clientID).Balance)
	}
}

func TestSettleAuthorization(t *testing.T) {
	a := newTestAPI(t)
	clientID := a.store.AddUser(domain.User{Name: "ana"})
	ownerID := a.store.AddUser(domain.User{Type: domain.UserMerchant, Name: "owner"})
	otherID := a.store.AddUser(domain.User{Type: domain.UserMerchant, Name: "other"})
	merchantID := a.store.AddMerchant(domain.Merchant{OwnerUserID: ownerID, StoreName: "shop", Approved: true})
	body := map[string]any{"client_id": clientID, "merchant_id": merchantID, "amount": "10"}

	code, res := a.do(http.MethodPost, "/api/v1/transactions", a.token(clientID, service.RoleClient), body)
	expectError(t, code, res, http.StatusForbidden, "forbidden")

	code, res = a.do(http.MethodPost, "/api/v1/transactions", a.token(otherID, service.RoleMerchant), body)
	expectError(t, code, res, http.StatusNotFound, "merchant_not_found")

	code, res = a.do(http.MethodPost, "/api/v1/transactions", a.token(1000, service.RoleAdmin), body)
	if code != http.StatusCreated {
		t.Fatalf("admin settle: %d %v", code, res)
	}
	txID := int64(res["transaction"].(map[string]any)["id"].(float64))

	code, _ = a.do(http.MethodGet, "/api/v1/transactions/"+itoa(txID), a.token(otherID, service.RoleMerchant), nil)
	if code != http.StatusNotFound {
		t.Fatalf("stranger read transaction: %d", code)
	}
	code, _ = a.do(http.MethodGet, "/api/v1/transactions/"+itoa(txID), a.token(clientID, service.RoleClient), nil)
	if code != http.StatusOK {
		t.Fatalf("client read transaction: %d", code)
	}
}

func TestMalformedAmounts(t *testing.T) {
	a := newTestAPI(t)
	clientID := a.store.AddUser(domain.User{Name: "ana"})
	ownerID := a.store.AddUser(domain.User{Type: domain.UserMerchant, Name: "owner"})
	merchantID := a.store.AddMerchant(domain.Merchant{OwnerUserID: ownerID, StoreName: "shop", Approved: true})
	a.store.Fund(ownerID, decimal.NewFromInt(50))
	tok := a.token(ownerID, service.RoleMerchant)

	for _, amount := range []any{"abc", "", nil, true, "1e20000000", "10000000000000000", "0.001"} {
		body := map[string]any{"client_id": clientID, "merchant_id": merchantID, "amount": amount}
		code, res := a.do(http.MethodPost, "/api/v1/transactions", tok, body)
		expectError(t, code, res, http.StatusBadRequest, "invalid_amount")

		code, res = a.do(http.MethodPost, "/api/v1/transfers", tok, map[string]any{"to_user_id": clientID, "amount": amount})
		expectError(t, code, res, http.StatusBadRequest, "invalid_amount")

		code, res = a.do(http.MethodPost, "/api/v1/withdrawals", tok, map[string]any{"merchant_id": merchantID, "amount": amount})
		expectError(t, code, res, http.StatusBadRequest, "invalid_amount")
	}

	code, res := a.do(http.MethodGet, "/api/v1/fees/quote?amount=1e20000000", tok, nil)
	expectError(t, code, res, http.StatusBadRequest, "invalid_amount")

	// JSON numbers are accepted as well as strings
	code, res = a.do(http.MethodPost, "/api/v1/transactions", tok, map[string]any{"client_id": clientID, "merchant_id": merchantID, "amount": 12.5})
	if code != http.StatusCreated {
		t.Fatalf("settle with numeric amount: %d %v", code, res)
	}
	if !a.account(ownerID).Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("owner balance moved to %s", a.account(ownerID).Balance)
	}
}

func TestTransferErrors(t *testing.T) {
	a := newTestAPI(t)
	from := a.store.AddUser(domain.User{Name: "ana"})
	to := a.store.AddUser(domain.User{Name: "bia", Email: "bia@example.com"})
	tok := a.token(from, service.RoleClient)

	code, res := a.do(http.MethodPost, "/api/v1/transfers", tok, map[string]any{"to_user_id": to, "amount": "5"})
	expectError(t, code, res, http.StatusUnprocessableEntity, "insufficient_balance")

	code, res = a.do(http.MethodPost, "/api/v1/transfers", tok, map[string]any{"to_user_id": from, "amount": "5"})
	expectError(t, code, res, http.StatusBadRequest, "self_transfer")

	code, res = a.do(http.MethodPost, "/api/v1/transfers", tok, map[string]any{"to": "nobody@example.com", "amount": "5"})
	expectError(t, code, res, http.StatusNotFound, "recipient_not_found")

	code, res = a.do(http.MethodPost, "/api/v1/transfers", tok, map[string]any{"to": "bia@example.com", "amount": "-1"})
	expectError(t, code, res, http.StatusBadRequest, "invalid_amount")

	a.store.Fund(from, decimal.NewFromInt(20))
	code, res = a.do(http.MethodPost, "/api/v1/transfers", tok, map[string]any{"to": "BIA@example.com", "amount": "7.50"})
	if code != http.StatusCreated {
		t.Fatalf("transfer: %d %v", code, res)
	}
	if !a.account(to).Balance.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("recipient balance = %s", a.account(to).Balance)
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	a := newTestAPI(t)
	ownerID := a.store.AddUser(domain.User{Type: domain.UserMerchant, Name: "owner"})
	merchantID := a.store.AddMerchant(domain.Merchant{OwnerUserID: ownerID, StoreName: "shop", Approved: true})
	a.store.Fund(ownerID, decimal.NewFromInt(50))
	tok := a.token(ownerID, service.RoleMerchant)
	admin := a.token(999, service.RoleAdmin)

	code, res := a.do(http.MethodPost, "/api/v1/withdrawals", tok, map[string]any{"merchant_id": merchantID, "amount": "5"})
	expectError(t, code, res, http.StatusBadRequest, "below_minimum")

	code, res = a.do(http.MethodPost, "/api/v1/withdrawals", tok, map[string]any{
		"merchant_id":  merchantID,
		"amount":       "20",
		"bank_details": map[string]any{"pix_key": "owner@pix"},
	})
	if code != http.StatusCreated {
		t.Fatalf("request: %d %v", code, res)
	}
	id := itoa(int64(res["id"].(float64)))
	acc := a.account(ownerID)
	if !acc.Balance.Equal(decimal.NewFromInt(30)) || !acc.Held.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("after request: %+v", acc)
	}

	code, res = a.do(http.MethodPost, "/api/v1/admin/withdrawals/"+id+"/decision", tok, map[string]any{"action": "approve"})
	expectError(t, code, res, http.StatusForbidden, "forbidden")

	code, res = a.do(http.MethodPost, "/api/v1/admin/withdrawals/"+id+"/decision", admin, map[string]any{"action": "maybe"})
	expectError(t, code, res, http.StatusBadRequest, "invalid_request")

	code, res = a.do(http.MethodPost, "/api/v1/admin/withdrawals/"+id+"/decision", admin, map[string]any{"action": "approve"})
	if code != http.StatusOK || res["status"] != string(domain.WithdrawalCompleted) {
		t.Fatalf("approve: %d %v", code, res)
	}
	acc = a.account(ownerID)
	if !acc.Held.IsZero() || !acc.TotalSpent.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("after approve: %+v", acc)
	}

	code, res = a.do(http.MethodPost, "/api/v1/withdrawals/"+id+"/cancel", tok, nil)
	expectError(t, code, res, http.StatusConflict, "already_processed")
}

func TestReferralRegisterAndStats(t *testing.T) {
	a := newTestAPI(t)
	referrer := a.store.AddUser(domain.User{Name: "ana", InvitationCode: "ANA123"})
	referred := a.store.AddUser(domain.User{Name: "bia"})
	tok := a.token(referred, service.RoleClient)

	code, res := a.do(http.MethodPost, "/api/v1/referrals/register", tok, map[string]any{"invitation_code": "NOPE"})
	expectError(t, code, res, http.StatusBadRequest, "invalid_referral")

	code, res = a.do(http.MethodPost, "/api/v1/referrals/register", tok, map[string]any{"invitation_code": "ANA123"})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %v", code, res)
	}
	code, res = a.do(http.MethodPost, "/api/v1/referrals/register", tok, map[string]any{"invitation_code": "ANA123"})
	expectError(t, code, res, http.StatusConflict, "already_referred")

	code, res = a.do(http.MethodGet, "/api/v1/referrals/stats", a.token(referrer, service.RoleClient), nil)
	if code != http.StatusOK {
		t.Fatalf("stats: %d %v", code, res)
	}
	stats := res["stats"].(map[string]any)
	if stats["total_referrals"] != float64(1) {
		t.Fatalf("stats = %v", stats)
	}
}

func TestQuoteAndRates(t *testing.T) {
	a := newTestAPI(t)
	userID := a.store.AddUser(domain.User{Name: "ana"})
	tok := a.token(userID, service.RoleClient)

	code, res := a.do(http.MethodGet, "/api/v1/fees/quote?amount=abc", tok, nil)
	expectError(t, code, res, http.StatusBadRequest, "invalid_amount")

	code, res = a.do(http.MethodGet, "/api/v1/fees/quote?amount=100", tok, nil)
	if code != http.StatusOK {
		t.Fatalf("quote: %d %v", code, res)
	}
	if fee := decimal.RequireFromString(res["platform_fee"].(string)); !fee.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("platform_fee = %s", fee)
	}

	code, res = a.do(http.MethodPut, "/api/v1/admin/rates", tok, map[string]any{})
	expectError(t, code, res, http.StatusForbidden, "forbidden")

	admin := a.token(1, service.RoleAdmin)
	code, res = a.do(http.MethodPut, "/api/v1/admin/rates", admin, map[string]any{"platform_fee_rate": "150"})
	expectError(t, code, res, http.StatusBadRequest, "invalid_rate")
}

func TestMeRequiresToken(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", w.Code)
	}

	userID := a.store.AddUser(domain.User{Name: "ana", InvitationCode: "ANA1"})
	code, res := a.do(http.MethodGet, "/api/v1/me", a.token(userID, service.RoleClient), nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d %v", code, res)
	}
	if res["user"].(map[string]any)["invitation_code"] != "ANA1" {
		t.Fatalf("me = %v", res)
	}
}

func TestTelegramAuth(t *testing.T) {
	a := newTestAPI(t)

	code, res := a.do(http.MethodPost, "/api/v1/auth/telegram", "", map[string]any{"init_data": "hash=00&auth_date=1"})
	expectError(t, code, res, http.StatusUnauthorized, "unauthorized")

	vals := url.Values{}
	vals.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	vals.Set("user", `{"id":4242,"username":"ana"}`)
	vals.Set("hash", telegram.Sign(vals, "bot-token"))
	code, res = a.do(http.MethodPost, "/api/v1/auth/telegram", "", map[string]any{"init_data": vals.Encode()})
	if code != http.StatusOK || res["token"] == "" || res["created"] != true {
		t.Fatalf("login: %d %v", code, res)
	}

	code, res = a.do(http.MethodGet, "/api/v1/me", res["token"].(string), nil)
	if code != http.StatusOK {
		t.Fatalf("me with telegram token: %d %v", code, res)
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
