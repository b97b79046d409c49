package handlers

import (
	"bytes"
	"encoding/json"

	"cashback_platform/internal/fees"

	"github.com/shopspring/decimal"
)

// jsonAmount accepts an amount as a JSON number or string and keeps its text,
// so malformed amounts fail as invalid_amount rather than as a bad body.
type jsonAmount string

func (a *jsonAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = jsonAmount(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	*a = jsonAmount(b)
	return nil
}

func (a jsonAmount) Decimal() (decimal.Decimal, error) {
	return fees.ParseAmount(string(a))
}
