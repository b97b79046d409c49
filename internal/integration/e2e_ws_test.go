package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashback_platform/internal/domain"
	httpserver "cashback_platform/internal/http"
	"cashback_platform/internal/http/handlers"
	"cashback_platform/internal/service"
	"cashback_platform/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestE2E_SaleNotifiesClientOverWS(t *testing.T) {
	hub := ws.NewHub()
	s := setup(t, hub)
	service.SetJWTSecret("e2e-secret")
	gin.SetMode(gin.TestMode)

	client := s.user(t, domain.UserClient)
	owner, m := s.merchant(t)

	r := gin.New()
	h := &handlers.Handler{
		Ledger:      s.ledger,
		Settlement:  s.settlement,
		Transfers:   s.transfers,
		Withdrawals: s.withdraw,
		Referrals:   s.referrals,
		Rates:       s.rates,
		Audit:       s.audit,
		Users:       s.store,
		Merchants:   s.store,
	}
	httpserver.RegisterRoutes(r, h, handlers.NewHealthHandler(s.store, nil, "test"), httpserver.RouteConfig{Hub: hub})
	srv := httptest.NewServer(r)
	defer srv.Close()

	clientToken, _ := service.GenerateJWT(client.ID, service.RoleClient, time.Minute)
	ownerToken, _ := service.GenerateJWT(owner.ID, service.RoleMerchant, time.Minute)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + clientToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, ws.MsgReady, "")

	body, _ := json.Marshal(map[string]any{"client_id": client.ID, "merchant_id": m.ID, "amount": "80"})
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/transactions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ownerToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("settle status %d", resp.StatusCode)
	}

	msg := readUntil(t, conn, ws.MsgNotification, service.NotifyCashbackEarned)
	if msg.Payload == nil {
		t.Fatal("notification without payload")
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, typ, kind string) ws.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	conn.SetReadDeadline(deadline)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s %s: %v", typ, kind, err)
		}
		var m ws.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.Type == typ && (kind == "" || m.Kind == kind) {
			return m
		}
	}
}
