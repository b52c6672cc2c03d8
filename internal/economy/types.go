package economy

import "time"

type BankAccount struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	AccountHolder string            `json:"accountHolder"`
	Balance       float64           `json:"balance"`
	CreatedAt     time.Time         `json:"createdAt"`
	Transactions  []BankTransaction `json:"transactions"`
}

// BankTransaction rows are append-only; they are never updated or deleted.
type BankTransaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"accountId"`
	UserID      string    `json:"userId"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type FixedDeposit struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	AccountID    string     `json:"accountId"`
	Amount       float64    `json:"amount"`
	InterestRate float64    `json:"interestRate"`
	StartDate    time.Time  `json:"startDate"`
	DurationDays int        `json:"duration"`
	MaturityDate time.Time  `json:"maturityDate"`
	Status       string     `json:"status"`
	Matured      bool       `json:"matured"`
	ClaimedAt    *time.Time `json:"claimedAt,omitempty"`
}

// FDClaim is the payout of a matured fixed deposit.
type FDClaim struct {
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Total     float64 `json:"total"`
}

type Holding struct {
	Symbol             string    `json:"symbol"`
	Name               string    `json:"name"`
	Quantity           int64     `json:"quantity"`
	AveragePrice       float64   `json:"averagePrice"`
	CurrentPrice       float64   `json:"currentPrice"`
	TotalValue         float64   `json:"totalValue"`
	GainLoss           float64   `json:"gainLoss"`
	GainLossPercentage float64   `json:"gainLossPercentage"`
	PurchaseDate       time.Time `json:"purchaseDate"`
}

type Portfolio struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Holdings      []Holding `json:"holdings"`
	TotalValue    float64   `json:"totalValue"`
	TotalInvested float64   `json:"totalInvested"`
	TotalGainLoss float64   `json:"totalGainLoss"`
}

// StockTransaction rows are append-only, one per executed buy or sell.
type StockTransaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	PortfolioID string    `json:"portfolioId"`
	StockID     string    `json:"stockId"`
	StockName   string    `json:"stockName"`
	Type        string    `json:"type"`
	Price       float64   `json:"price"`
	Quantity    int64     `json:"quantity"`
	Total       float64   `json:"total"`
	Timestamp   time.Time `json:"timestamp"`
}

// StarterGrant is the result of a claim-starter call.
type StarterGrant struct {
	NewlyGranted bool    `json:"newlyGranted"`
	Amount       float64 `json:"amount"`
	Rupees       float64 `json:"rupees"`
}

// TradeResult reports the wallet and portfolio after a buy or sell.
type TradeResult struct {
	Portfolio   Portfolio        `json:"portfolio"`
	Transaction StockTransaction `json:"transaction"`
	Rupees      float64          `json:"rupees"`
	Profit      *float64         `json:"profit,omitempty"`
}
