package schema

import (
	"fmt"
	"math"
)

// Tolerance for comparing denormalized money aggregates that were computed
// through repeated float arithmetic.
const moneyTolerance = 0.01

// HoldingCheck is the slice of a stock holding the validator cares about.
type HoldingCheck struct {
	Symbol     string
	Quantity   int64
	TotalValue float64
}

// CheckConsistency runs the structural invariants over a player's balances
// after migration or a mutation. It returns a list of violations; an empty
// list means the document is internally consistent. Financial fields are never
// auto-corrected here. A non-empty result should flag the player for manual
// review.
func CheckConsistency(rupees, bankBalance float64, holdings []HoldingCheck, portfolioTotal float64) []string {
	var violations []string
	if rupees < 0 {
		violations = append(violations, fmt.Sprintf("wallet rupees negative: %.2f", rupees))
	}
	if bankBalance < 0 {
		violations = append(violations, fmt.Sprintf("bank balance negative: %.2f", bankBalance))
	}
	var sum float64
	for _, h := range holdings {
		if h.Quantity <= 0 {
			violations = append(violations, fmt.Sprintf("holding %s has non-positive quantity %d", h.Symbol, h.Quantity))
		}
		sum += h.TotalValue
	}
	if math.Abs(sum-portfolioTotal) > moneyTolerance {
		violations = append(violations, fmt.Sprintf("portfolio total %.2f does not match holdings sum %.2f", portfolioTotal, sum))
	}
	return violations
}
