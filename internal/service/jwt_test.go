package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateJWT(42, RoleMerchant, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != 42 || claims.Role != RoleMerchant {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseJWTRejects(t *testing.T) {
	SetJWTSecret("test-secret")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	expiredStr, _ := expired.SignedString([]byte("test-secret"))

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1})
	noExpStr, _ := noExp.SignedString([]byte("test-secret"))

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	otherKeyStr, _ := otherKey.SignedString([]byte("another-secret"))

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	noUserStr, _ := noUser.SignedString([]byte("test-secret"))

	for name, tok := range map[string]string{
		"expired":   expiredStr,
		"no exp":    noExpStr,
		"other key": otherKeyStr,
		"no user":   noUserStr,
		"garbage":   "not.a.token",
	} {
		if _, err := ParseJWT(tok); err == nil {
			t.Fatalf("%s: token accepted", name)
		}
	}
}

func TestParseJWTDefaultsRoleToClient(t *testing.T) {
	SetJWTSecret("test-secret")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, _ := tok.SignedString([]byte("test-secret"))
	claims, err := ParseJWT(s)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.Role != RoleClient {
		t.Fatalf("role = %q", claims.Role)
	}
}
