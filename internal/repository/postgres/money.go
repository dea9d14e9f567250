package postgres

import (
	"fmt"
	"strings"

	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// NUMERIC(20,2) columns travel as text in both directions so no value ever
// passes through a float.

func numericToDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty numeric string")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func decimalToNumeric(d decimal.Decimal) string {
	return ledger.Format(d)
}

// likePattern escapes LIKE metacharacters and wraps the query for a
// substring match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
