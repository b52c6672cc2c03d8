package economy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rupeeverse/internal/player"
)

// CreateAccount opens the player's single bank account. An optional initial
// deposit is moved from the wallet in the same way Deposit moves it.
func (s *Service) CreateAccount(ctx context.Context, userID, accountHolder string, initialDeposit float64) (*BankAccount, error) {
	accountHolder = strings.TrimSpace(accountHolder)
	if accountHolder == "" {
		return nil, fmt.Errorf("%w: account holder name is required", ErrValidation)
	}
	if initialDeposit < 0 {
		return nil, fmt.Errorf("%w: initial deposit must not be negative", ErrValidation)
	}

	id := uuid.NewString()
	cmd, err := s.db.Exec(ctx, `
		INSERT INTO bank_accounts (id, user_id, account_holder, balance, created_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (user_id) DO NOTHING
	`, id, userID, accountHolder)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: bank account", ErrAlreadyExists)
	}
	s.log.Info("bank account created", "user_id", userID)

	if initialDeposit > 0 {
		return s.Deposit(ctx, userID, initialDeposit)
	}
	return s.GetAccount(ctx, userID)
}

// GetAccount returns the account with its transaction history, newest first.
func (s *Service) GetAccount(ctx context.Context, userID string) (*BankAccount, error) {
	account, err := s.getAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, type, amount, description, created_at
		FROM bank_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 100
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		tx := BankTransaction{UserID: userID}
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Description, &tx.Timestamp); err != nil {
			return nil, err
		}
		account.Transactions = append(account.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return account, nil
}

// Deposit moves rupees from the wallet into the bank. The wallet decrement
// and the bank credit are two separate writes; see the Service doc comment.
func (s *Service) Deposit(ctx context.Context, userID string, amount float64) (*BankAccount, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.getAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc, err := s.players.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sufficientBalance("wallet", player.Financial(doc).Rupees, amount); err != nil {
		return nil, err
	}
	if _, err := s.players.ApplyFinancialDelta(ctx, userID, -amount, amount, 0); err != nil {
		return nil, err
	}
	if err := s.creditBank(ctx, account, amount, TxDeposit, "Deposit from wallet"); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, userID)
}

// Withdraw moves rupees from the bank back to the wallet.
func (s *Service) Withdraw(ctx context.Context, userID string, amount float64) (*BankAccount, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	account, err := s.getAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sufficientBalance("bank balance", account.Balance, amount); err != nil {
		return nil, err
	}
	if err := s.creditBank(ctx, account, -amount, TxWithdrawal, "Withdrawal to wallet"); err != nil {
		return nil, err
	}
	if _, err := s.players.ApplyFinancialDelta(ctx, userID, amount, -amount, 0); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, userID)
}

func (s *Service) getAccount(ctx context.Context, userID string) (*BankAccount, error) {
	var account BankAccount
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, account_holder, balance, created_at
		FROM bank_accounts
		WHERE user_id = $1
	`, userID).Scan(&account.ID, &account.UserID, &account.AccountHolder, &account.Balance, &account.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: bank account", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// creditBank applies a signed balance change and appends the matching
// transaction row in one database transaction. amount's sign carries the
// direction; txType and description record intent.
func (s *Service) creditBank(ctx context.Context, account *BankAccount, amount float64, txType, description string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE bank_accounts SET balance = balance + $2 WHERE id = $1
	`, account.ID, amount); err != nil {
		return err
	}
	recorded := amount
	if recorded < 0 {
		recorded = -recorded
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO bank_transactions (id, account_id, user_id, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), account.ID, account.UserID, txType, recorded, description, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func validAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be a positive number", ErrValidation)
	}
	return nil
}
