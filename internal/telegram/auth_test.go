package telegram

import (
	"errors"
	"net/url"
	"strconv"
	"testing"
	"time"
)

const botToken = "test-bot-token"

func buildInitData(fields map[string]string) string {
	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	vals.Set("hash", Sign(vals, botToken))
	return vals.Encode()
}

func TestVerifyValid(t *testing.T) {
	now := time.Now()
	initData := buildInitData(map[string]string{
		"auth_date": strconv.FormatInt(now.Unix(), 10),
		"user":      `{"id":1,"username":"u","first_name":"F"}`,
	})

	u, err := Verify(initData, botToken, time.Hour, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if u.ID != 1 || u.DisplayName() != "F" {
		t.Fatalf("user = %+v", u)
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Now()
	valid := buildInitData(map[string]string{
		"auth_date": strconv.FormatInt(now.Unix(), 10),
		"user":      `{"id":1,"username":"u"}`,
	})
	old := buildInitData(map[string]string{
		"auth_date": strconv.FormatInt(now.Add(-2*time.Hour).Unix(), 10),
		"user":      `{"id":1,"username":"u"}`,
	})
	noUser := buildInitData(map[string]string{
		"auth_date": strconv.FormatInt(now.Unix(), 10),
	})

	cases := []struct {
		name     string
		initData string
		token    string
		want     error
	}{
		{"tampered", valid + "&x=1", botToken, ErrInvalidInitData},
		{"other bot", valid, "other-token", ErrInvalidInitData},
		{"no hash", "auth_date=1&user=%7B%7D", botToken, ErrInvalidInitData},
		{"expired", old, botToken, ErrExpiredInitData},
		{"no user", noUser, botToken, ErrInvalidInitData},
	}
	for _, tc := range cases {
		if _, err := Verify(tc.initData, tc.token, time.Hour, now); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestDisplayNameFallsBackToUsername(t *testing.T) {
	if got := (WebAppUser{Username: "nick"}).DisplayName(); got != "nick" {
		t.Fatalf("DisplayName = %q", got)
	}
}
