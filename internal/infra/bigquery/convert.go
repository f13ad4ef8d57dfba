package bigquery

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// BigQuery NUMERIC travels as *big.Rat in the Go client; the analytics core
// works in shopspring decimals. Conversions happen only at this boundary.

func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Decimal{}, fmt.Errorf("ratToDecimal: nil rat")
	}
	// NUMERIC has scale 9, so exact at this precision.
	d, err := decimal.NewFromString(r.FloatString(9))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("ratToDecimal: %w", err)
	}
	return d, nil
}

func decimalToRat(d decimal.Decimal) *big.Rat {
	coeff := d.Coefficient()
	exp := int64(d.Exponent())
	if exp >= 0 {
		scaled := new(big.Int).Mul(coeff, new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil))
		return new(big.Rat).SetInt(scaled)
	}
	return new(big.Rat).SetFrac(coeff, new(big.Int).Exp(big.NewInt(10), big.NewInt(-exp), nil))
}

func nullDecimalToRat(d decimal.NullDecimal) *big.Rat {
	if !d.Valid {
		return nil
	}
	return decimalToRat(d.Decimal)
}
