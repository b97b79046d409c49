package config

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultRatesFromEnv(t *testing.T) {
	t.Setenv("DEFAULT_PLATFORM_FEE_PCT", "7.5")
	t.Setenv("DEFAULT_CASHBACK_PCT", "bogus")
	t.Setenv("DEFAULT_MIN_WITHDRAWAL", "-1")

	r := DefaultRates()
	if !r.PlatformFeeRate.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("platform fee = %s", r.PlatformFeeRate)
	}
	if !r.ClientCashbackRate.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("cashback should fall back to 2, got %s", r.ClientCashbackRate)
	}
	if !r.MinWithdrawal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("min withdrawal should fall back to 10, got %s", r.MinWithdrawal)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" a, b,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("splitList = %q", got)
	}
	if splitList("") != nil {
		t.Fatal("empty input should give nil")
	}
}
