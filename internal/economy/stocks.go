package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rupeeverse/internal/player"
)

// BuyStock purchases quantity shares at price, folding the cost into the
// holding's weighted-average basis. The portfolio aggregates and the wallet's
// denormalized fields are recomputed in the same call.
func (s *Service) BuyStock(ctx context.Context, userID, stockID, stockName string, quantity int64, price float64) (*TradeResult, error) {
	if err := validTrade(stockID, quantity, price); err != nil {
		return nil, err
	}
	cost := price * float64(quantity)

	doc, err := s.players.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sufficientBalance("wallet", player.Financial(doc).Rupees, cost); err != nil {
		return nil, err
	}

	pf, err := s.getOrCreatePortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	oldTotal := pf.TotalValue

	idx := findHolding(pf.Holdings, stockID)
	if idx >= 0 {
		h := &pf.Holdings[idx]
		h.AveragePrice = WeightedAveragePrice(h.AveragePrice, h.Quantity, price, quantity)
		h.Quantity += quantity
		RevalueHolding(h, price)
	} else {
		h := Holding{
			Symbol:       stockID,
			Name:         stockName,
			Quantity:     quantity,
			AveragePrice: price,
			PurchaseDate: time.Now().UTC(),
		}
		RevalueHolding(&h, price)
		pf.Holdings = append(pf.Holdings, h)
	}
	pf.TotalInvested += cost
	pf.TotalValue = sumHoldings(pf.Holdings)
	pf.TotalGainLoss = pf.TotalValue - pf.TotalInvested

	stockTx := newStockTransaction(userID, pf.ID, stockID, stockName, TradeBuy, price, quantity)
	if err := s.savePortfolio(ctx, pf, &stockTx); err != nil {
		return nil, err
	}
	updated, err := s.players.ApplyFinancialDelta(ctx, userID, -cost, 0, pf.TotalValue-oldTotal)
	if err != nil {
		return nil, err
	}
	s.log.Info("stock bought", "user_id", userID, "stock", stockID, "quantity", quantity, "price", price)
	return &TradeResult{Portfolio: *pf, Transaction: stockTx, Rupees: player.Financial(updated).Rupees}, nil
}

// SellStock sells quantity shares at price. Profit is measured against the
// sold quantity's average cost; the remaining holding keeps its average
// price, since only buys move the basis.
func (s *Service) SellStock(ctx context.Context, userID, stockID string, quantity int64, price float64) (*TradeResult, error) {
	if err := validTrade(stockID, quantity, price); err != nil {
		return nil, err
	}

	pf, err := s.loadPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := findHolding(pf.Holdings, stockID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no holding in %s", ErrNotFound, stockID)
	}
	h := &pf.Holdings[idx]
	if h.Quantity < quantity {
		return nil, fmt.Errorf("%w: holding has %d shares, need %d", ErrInsufficientFunds, h.Quantity, quantity)
	}

	saleValue := price * float64(quantity)
	costBasis := h.AveragePrice * float64(quantity)
	profit := saleValue - costBasis
	stockName := h.Name
	oldTotal := pf.TotalValue

	if h.Quantity == quantity {
		pf.Holdings = append(pf.Holdings[:idx], pf.Holdings[idx+1:]...)
	} else {
		h.Quantity -= quantity
		RevalueHolding(h, price)
	}
	pf.TotalInvested -= costBasis
	pf.TotalValue = sumHoldings(pf.Holdings)
	pf.TotalGainLoss = pf.TotalValue - pf.TotalInvested

	stockTx := newStockTransaction(userID, pf.ID, stockID, stockName, TradeSell, price, quantity)
	if err := s.savePortfolio(ctx, pf, &stockTx); err != nil {
		return nil, err
	}
	updated, err := s.players.ApplyFinancialDelta(ctx, userID, saleValue, 0, pf.TotalValue-oldTotal)
	if err != nil {
		return nil, err
	}
	s.log.Info("stock sold", "user_id", userID, "stock", stockID, "quantity", quantity, "profit", profit)
	return &TradeResult{Portfolio: *pf, Transaction: stockTx, Rupees: player.Financial(updated).Rupees, Profit: &profit}, nil
}

// Portfolio returns the player's portfolio, creating an empty one on first
// access.
func (s *Service) Portfolio(ctx context.Context, userID string) (*Portfolio, error) {
	return s.getOrCreatePortfolio(ctx, userID)
}

// Transactions returns the player's stock trade ledger, newest first.
func (s *Service) Transactions(ctx context.Context, userID string) ([]StockTransaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, portfolio_id, stock_id, stock_name, type, price, quantity, total, created_at
		FROM stock_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 200
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]StockTransaction, 0)
	for rows.Next() {
		tx := StockTransaction{UserID: userID}
		if err := rows.Scan(&tx.ID, &tx.PortfolioID, &tx.StockID, &tx.StockName, &tx.Type,
			&tx.Price, &tx.Quantity, &tx.Total, &tx.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Service) getOrCreatePortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	pf, err := s.loadPortfolio(ctx, userID)
	if err == nil {
		return pf, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	id := uuid.NewString()
	if _, err := s.db.Exec(ctx, `
		INSERT INTO stock_portfolios (id, user_id, total_value, total_invested, total_gain_loss, updated_at)
		VALUES ($1, $2, 0, 0, 0, now())
		ON CONFLICT (user_id) DO NOTHING
	`, id, userID); err != nil {
		return nil, err
	}
	return s.loadPortfolio(ctx, userID)
}

func (s *Service) loadPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	var pf Portfolio
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, total_value, total_invested, total_gain_loss
		FROM stock_portfolios
		WHERE user_id = $1
	`, userID).Scan(&pf.ID, &pf.UserID, &pf.TotalValue, &pf.TotalInvested, &pf.TotalGainLoss)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: stock portfolio", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT symbol, name, quantity, average_price, current_price, total_value, gain_loss, gain_loss_pct, purchase_date
		FROM stock_holdings
		WHERE portfolio_id = $1
		ORDER BY symbol
	`, pf.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pf.Holdings = make([]Holding, 0)
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.Symbol, &h.Name, &h.Quantity, &h.AveragePrice, &h.CurrentPrice,
			&h.TotalValue, &h.GainLoss, &h.GainLossPercentage, &h.PurchaseDate); err != nil {
			return nil, err
		}
		pf.Holdings = append(pf.Holdings, h)
	}
	return &pf, rows.Err()
}

// savePortfolio rewrites the holdings, updates the aggregates, and appends
// the trade row in one database transaction.
func (s *Service) savePortfolio(ctx context.Context, pf *Portfolio, stockTx *StockTransaction) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM stock_holdings WHERE portfolio_id = $1
	`, pf.ID); err != nil {
		return err
	}
	for _, h := range pf.Holdings {
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_holdings
				(portfolio_id, user_id, symbol, name, quantity, average_price, current_price, total_value, gain_loss, gain_loss_pct, purchase_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, pf.ID, pf.UserID, h.Symbol, h.Name, h.Quantity, h.AveragePrice, h.CurrentPrice,
			h.TotalValue, h.GainLoss, h.GainLossPercentage, h.PurchaseDate); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE stock_portfolios
		SET total_value = $2, total_invested = $3, total_gain_loss = $4, updated_at = now()
		WHERE id = $1
	`, pf.ID, pf.TotalValue, pf.TotalInvested, pf.TotalGainLoss); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_transactions
			(id, user_id, portfolio_id, stock_id, stock_name, type, price, quantity, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, stockTx.ID, stockTx.UserID, stockTx.PortfolioID, stockTx.StockID, stockTx.StockName,
		stockTx.Type, stockTx.Price, stockTx.Quantity, stockTx.Total, stockTx.Timestamp); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func newStockTransaction(userID, portfolioID, stockID, stockName, side string, price float64, quantity int64) StockTransaction {
	return StockTransaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		PortfolioID: portfolioID,
		StockID:     stockID,
		StockName:   stockName,
		Type:        side,
		Price:       price,
		Quantity:    quantity,
		Total:       price * float64(quantity),
		Timestamp:   time.Now().UTC(),
	}
}

func findHolding(holdings []Holding, symbol string) int {
	for i := range holdings {
		if holdings[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

func validTrade(stockID string, quantity int64, price float64) error {
	if strings.TrimSpace(stockID) == "" {
		return fmt.Errorf("%w: stock id is required", ErrValidation)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive number", ErrValidation)
	}
	if price <= 0 {
		return fmt.Errorf("%w: price must be a positive number", ErrValidation)
	}
	return nil
}
