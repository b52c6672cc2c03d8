// Package economy implements the mutation operations over bank accounts,
// fixed deposits, and stock portfolios. Every operation keeps the player
// document's denormalized balance fields in step with the ledger tables.
package economy

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// StarterAmount is the one-time grant credited to a new player's wallet.
const StarterAmount = float64(1000)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyExists     = errors.New("already exists")
	ErrAlreadyClaimed    = errors.New("already claimed")
	ErrNotMatured        = errors.New("deposit not matured")
)

// Fixed-deposit statuses.
const (
	FDStatusActive    = "active"
	FDStatusMatured   = "matured"
	FDStatusClaimed   = "claimed"
	FDStatusCancelled = "cancelled"
)

// Bank transaction types.
const (
	TxDeposit    = "deposit"
	TxWithdrawal = "withdrawal"
)

// Stock transaction sides.
const (
	TradeBuy  = "buy"
	TradeSell = "sell"
)

// RateForDuration returns the annual interest rate (percent) for a fixed
// deposit of the given length, longest tier first.
func RateForDuration(durationDays int) float64 {
	switch {
	case durationDays >= 730:
		return 9.5
	case durationDays >= 365:
		return 8.5
	case durationDays >= 180:
		return 7.5
	case durationDays >= 90:
		return 6.5
	default:
		return 5.0
	}
}

// FDInterest computes the rounded simple interest for a deposit held the full
// term: principal × rate/100 × days/365.
func FDInterest(principal, rate float64, durationDays int) float64 {
	return math.Round(principal * rate / 100 * float64(durationDays) / 365)
}

// WeightedAveragePrice folds a new purchase into an existing holding's cost
// basis. Sells never call this; the basis only moves on buys.
func WeightedAveragePrice(oldAvg float64, oldQty int64, price float64, qty int64) float64 {
	totalQty := oldQty + qty
	if totalQty <= 0 {
		return price
	}
	return (oldAvg*float64(oldQty) + price*float64(qty)) / float64(totalQty)
}

// RevalueHolding refreshes a holding's derived fields against the latest
// trade price.
func RevalueHolding(h *Holding, currentPrice float64) {
	h.CurrentPrice = currentPrice
	h.TotalValue = currentPrice * float64(h.Quantity)
	costBasis := h.AveragePrice * float64(h.Quantity)
	h.GainLoss = h.TotalValue - costBasis
	if costBasis > 0 {
		h.GainLossPercentage = h.GainLoss / costBasis * 100
	} else {
		h.GainLossPercentage = 0
	}
}

// sufficientBalance guards a debit. On failure nothing has been written yet;
// the reported balance is the one the caller read.
func sufficientBalance(source string, balance, amount float64) error {
	if balance < amount {
		return fmt.Errorf("%w: %s has %.2f, need %.2f", ErrInsufficientFunds, source, balance, amount)
	}
	return nil
}

// fdClaimable reports whether a deposit can be paid out at now. Claimed and
// cancelled deposits are final; an active one must be past its maturity date.
func fdClaimable(fd *FixedDeposit, now time.Time) error {
	switch {
	case fd.Status == FDStatusClaimed:
		return fmt.Errorf("%w: fixed deposit", ErrAlreadyClaimed)
	case fd.Status == FDStatusCancelled:
		return fmt.Errorf("%w: fixed deposit was cancelled", ErrValidation)
	case fd.Status != FDStatusMatured && fd.MaturityDate.After(now):
		return fmt.Errorf("%w: matures %s", ErrNotMatured, fd.MaturityDate.Format(time.RFC3339))
	}
	return nil
}

func sumHoldings(holdings []Holding) float64 {
	var total float64
	for _, h := range holdings {
		total += h.TotalValue
	}
	return total
}
