// Package telegram verifies Telegram Mini App init data.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidInitData = errors.New("telegram: invalid init data")
	ErrExpiredInitData = errors.New("telegram: init data expired")
)

type WebAppUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName prefers the first/last name over the username.
func (u WebAppUser) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

// Sign returns the hash Telegram would attach to values.
func Sign(values url.Values, botToken string) string {
	var dataCheck []string
	for k, v := range values {
		if k == "hash" {
			continue
		}
		dataCheck = append(dataCheck, k+"="+strings.Join(v, ""))
	}
	sort.Strings(dataCheck)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(dataCheck, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks the init data hash and that auth_date is no older than maxAge,
// then returns the embedded user.
func Verify(initData, botToken string, maxAge time.Duration, now time.Time) (*WebAppUser, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInvalidInitData
	}
	provided, err := hex.DecodeString(values.Get("hash"))
	if err != nil || len(provided) == 0 {
		return nil, ErrInvalidInitData
	}
	expected, _ := hex.DecodeString(Sign(values, botToken))
	if !hmac.Equal(expected, provided) {
		return nil, ErrInvalidInitData
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrInvalidInitData
	}
	issued := time.Unix(authDate, 0)
	// small clock skew is tolerated
	if now.Sub(issued) > maxAge || issued.Sub(now) > 5*time.Minute {
		return nil, ErrExpiredInitData
	}

	var user WebAppUser
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID == 0 {
		return nil, ErrInvalidInitData
	}
	return &user, nil
}
