package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"cashback_platform/internal/ws"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// Connects as a client, settles a sale as the merchant and waits for the
// cashback.earned push. Use the tokens printed by create_test_user.
func main() {
	_ = godotenv.Load()

	clientToken := mustEnv("CLIENT_TOKEN")
	merchantToken := mustEnv("MERCHANT_TOKEN")
	clientID, err := strconv.ParseInt(mustEnv("CLIENT_ID"), 10, 64)
	if err != nil {
		log.Fatalf("CLIENT_ID: %v", err)
	}
	merchantID, err := strconv.ParseInt(mustEnv("MERCHANT_ID"), 10, 64)
	if err != nil {
		log.Fatalf("MERCHANT_ID: %v", err)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	base := "127.0.0.1:" + port

	wsURL := fmt.Sprintf("ws://%s/ws?token=%s", base, url.QueryEscape(clientToken))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(conn, ws.MsgReady, "")

	body, _ := json.Marshal(map[string]any{
		"client_id":      clientID,
		"merchant_id":    merchantID,
		"amount":         "42.50",
		"payment_method": "card",
	})
	req, err := http.NewRequest(http.MethodPost, "http://"+base+"/api/v1/transactions", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+merchantToken)
	req.Header.Set("Idempotency-Key", "smoke-"+uuid.NewString())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("settle: %v", err)
	}
	resp.Body.Close()
	log.Printf("settle status=%d", resp.StatusCode)
	if resp.StatusCode != http.StatusCreated {
		log.Fatal("settle was not accepted")
	}

	msg := waitFor(conn, ws.MsgNotification, "cashback.earned")
	log.Printf("got %s: %v", msg.Kind, msg.Payload)
	log.Println("smoke test finished")
}

func waitFor(conn *websocket.Conn, typ, kind string) ws.Message {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Fatalf("read: %v", err)
		}
		var m ws.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		if m.Type == typ && (kind == "" || m.Kind == kind) {
			return m
		}
	}
	log.Fatalf("timed out waiting for %s %s", typ, kind)
	return ws.Message{}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s not set", key)
	}
	return v
}
