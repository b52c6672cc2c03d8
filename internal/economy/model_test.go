package economy

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestRateForDuration(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{days: 1, want: 5.0},
		{days: 89, want: 5.0},
		{days: 90, want: 6.5},
		{days: 180, want: 7.5},
		{days: 364, want: 7.5},
		{days: 365, want: 8.5},
		{days: 729, want: 8.5},
		{days: 730, want: 9.5},
		{days: 2000, want: 9.5},
	}
	for _, tc := range tests {
		if got := RateForDuration(tc.days); got != tc.want {
			t.Fatalf("days=%d got=%v want=%v", tc.days, got, tc.want)
		}
	}
}

func TestFDInterestMaturityMath(t *testing.T) {
	// 5000 for 180 days lands in the 6.5% tier:
	// round(5000 * 0.065 * 180/365) = 160.
	rate := RateForDuration(180)
	if rate != 6.5 {
		t.Fatalf("rate = %v, want 6.5", rate)
	}
	interest := FDInterest(5000, rate, 180)
	if interest != 160 {
		t.Fatalf("interest = %v, want 160", interest)
	}
}

func TestWeightedAveragePrice(t *testing.T) {
	// 10 @ 100 then 10 @ 120 averages to 110.
	avg := WeightedAveragePrice(100, 10, 120, 10)
	if avg != 110 {
		t.Fatalf("avg = %v, want 110", avg)
	}

	// First buy of a fresh holding keeps the trade price.
	if got := WeightedAveragePrice(0, 0, 85, 4); got != 85 {
		t.Fatalf("fresh holding avg = %v, want 85", got)
	}

	// Uneven lots weight by quantity.
	avg = WeightedAveragePrice(50, 30, 80, 10)
	want := (50.0*30 + 80.0*10) / 40
	if math.Abs(avg-want) > 1e-9 {
		t.Fatalf("avg = %v, want %v", avg, want)
	}
}

func TestRevalueHolding(t *testing.T) {
	h := Holding{Symbol: "MAZE", Quantity: 20, AveragePrice: 110}
	RevalueHolding(&h, 130)
	if h.TotalValue != 2600 {
		t.Fatalf("totalValue = %v, want 2600", h.TotalValue)
	}
	if h.GainLoss != 400 {
		t.Fatalf("gainLoss = %v, want 400", h.GainLoss)
	}
	wantPct := 400.0 / 2200.0 * 100
	if math.Abs(h.GainLossPercentage-wantPct) > 1e-9 {
		t.Fatalf("gainLossPercentage = %v, want %v", h.GainLossPercentage, wantPct)
	}

	// Revaluing never touches the cost basis.
	if h.AveragePrice != 110 {
		t.Fatalf("averagePrice changed to %v", h.AveragePrice)
	}
}

func TestPartialSellPreservesCostBasis(t *testing.T) {
	// Holding 20 @ avg 110; sell 10 @ 130. The sold lot realizes
	// (130-110)*10 = 200 profit and the remainder keeps avg 110.
	h := Holding{Symbol: "MAZE", Quantity: 20, AveragePrice: 110}
	sellQty := int64(10)
	sellPrice := 130.0

	saleValue := sellPrice * float64(sellQty)
	costBasis := h.AveragePrice * float64(sellQty)
	profit := saleValue - costBasis
	if profit != 200 {
		t.Fatalf("profit = %v, want 200", profit)
	}

	h.Quantity -= sellQty
	RevalueHolding(&h, sellPrice)
	if h.Quantity != 10 || h.AveragePrice != 110 {
		t.Fatalf("remaining holding qty=%d avg=%v, want qty=10 avg=110", h.Quantity, h.AveragePrice)
	}
}

func TestValidTrade(t *testing.T) {
	if err := validTrade("MAZE", 5, 20); err != nil {
		t.Fatalf("expected valid trade: %v", err)
	}
	cases := []struct {
		stockID  string
		quantity int64
		price    float64
	}{
		{"", 5, 20},
		{"MAZE", 0, 20},
		{"MAZE", -3, 20},
		{"MAZE", 5, 0},
		{"MAZE", 5, -1},
	}
	for i, tc := range cases {
		if err := validTrade(tc.stockID, tc.quantity, tc.price); err == nil {
			t.Fatalf("case %d: expected rejection", i)
		}
	}
}

func TestValidAmount(t *testing.T) {
	if err := validAmount(0.01); err != nil {
		t.Fatalf("expected valid amount: %v", err)
	}
	for _, amount := range []float64{0, -1, -0.01} {
		if err := validAmount(amount); err == nil {
			t.Fatalf("amount %v should be rejected", amount)
		}
	}
}

func TestSufficientBalance(t *testing.T) {
	if err := sufficientBalance("bank balance", 100, 100); err != nil {
		t.Fatalf("exact balance rejected: %v", err)
	}
	if err := sufficientBalance("bank balance", 100, 100.01); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft err = %v, want ErrInsufficientFunds", err)
	}
	if err := sufficientBalance("wallet", 0, 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("empty wallet err = %v, want ErrInsufficientFunds", err)
	}
}

func TestFDClaimable(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		status   string
		maturity time.Time
		wantErr  error
	}{
		{name: "active past maturity", status: FDStatusActive, maturity: now.AddDate(0, 0, -1), wantErr: nil},
		{name: "swept matured", status: FDStatusMatured, maturity: now.AddDate(0, 0, -1), wantErr: nil},
		{name: "active before maturity", status: FDStatusActive, maturity: now.AddDate(0, 0, 30), wantErr: ErrNotMatured},
		{name: "already claimed", status: FDStatusClaimed, maturity: now.AddDate(0, 0, -1), wantErr: ErrAlreadyClaimed},
		{name: "cancelled", status: FDStatusCancelled, maturity: now.AddDate(0, 0, -1), wantErr: ErrValidation},
	}
	for _, tc := range tests {
		fd := FixedDeposit{Status: tc.status, MaturityDate: tc.maturity}
		err := fdClaimable(&fd, now)
		if tc.wantErr == nil && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestSumHoldings(t *testing.T) {
	holdings := []Holding{{TotalValue: 1200}, {TotalValue: 800}, {TotalValue: 0.5}}
	if got := sumHoldings(holdings); got != 2000.5 {
		t.Fatalf("sum = %v, want 2000.5", got)
	}
	if got := sumHoldings(nil); got != 0 {
		t.Fatalf("empty sum = %v, want 0", got)
	}
}
