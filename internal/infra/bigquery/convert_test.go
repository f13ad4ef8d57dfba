package bigquery

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecimalToRat(t *testing.T) {
	tests := []struct {
		in   string
		want string // big.Rat.RatString
	}{
		{"100.50", "201/2"},
		{"0.01", "1/100"},
		{"-3.5", "-7/2"},
		{"0", "0"},
		{"42", "42"},
		{"1200", "1200"},
	}
	for _, tt := range tests {
		d := decimal.RequireFromString(tt.in)
		if got := decimalToRat(d).RatString(); got != tt.want {
			t.Errorf("decimalToRat(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRatToDecimal(t *testing.T) {
	tests := []struct {
		num, den int64
		want     string
	}{
		{201, 2, "100.5"},
		{1, 100, "0.01"},
		{-7, 2, "-3.5"},
		{0, 1, "0"},
	}
	for _, tt := range tests {
		d, err := ratToDecimal(big.NewRat(tt.num, tt.den))
		if err != nil {
			t.Fatalf("ratToDecimal(%d/%d) failed: %v", tt.num, tt.den, err)
		}
		if !d.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ratToDecimal(%d/%d) = %s, want %s", tt.num, tt.den, d, tt.want)
		}
	}
}

func TestRatToDecimal_Nil(t *testing.T) {
	if _, err := ratToDecimal(nil); err == nil {
		t.Fatal("expected error for nil rat")
	}
}

func TestDecimalRatRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "99999.99", "123.456789", "-0.5"} {
		d := decimal.RequireFromString(s)
		back, err := ratToDecimal(decimalToRat(d))
		if err != nil {
			t.Fatalf("round trip %s failed: %v", s, err)
		}
		if !back.Equal(d) {
			t.Errorf("round trip %s = %s", s, back)
		}
	}
}

func TestNullDecimalToRat(t *testing.T) {
	if got := nullDecimalToRat(decimal.NullDecimal{}); got != nil {
		t.Errorf("null decimal should map to nil rat, got %v", got)
	}
	valid := decimal.NullDecimal{Decimal: decimal.RequireFromString("1.5"), Valid: true}
	if got := nullDecimalToRat(valid); got == nil || got.RatString() != "3/2" {
		t.Errorf("valid decimal = %v, want 3/2", got)
	}
}
