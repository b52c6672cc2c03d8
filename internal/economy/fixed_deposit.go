package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateFixedDeposit locks bank funds into a term deposit. The interest rate
// is fixed at creation time from the duration tier.
func (s *Service) CreateFixedDeposit(ctx context.Context, userID string, amount float64, durationDays int) (*FixedDeposit, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("%w: duration must be a positive number of days", ErrValidation)
	}
	account, err := s.getAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := sufficientBalance("bank balance", account.Balance, amount); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fd := &FixedDeposit{
		ID:           uuid.NewString(),
		UserID:       userID,
		AccountID:    account.ID,
		Amount:       amount,
		InterestRate: RateForDuration(durationDays),
		StartDate:    now,
		DurationDays: durationDays,
		MaturityDate: now.AddDate(0, 0, durationDays),
		Status:       FDStatusActive,
	}

	if err := s.creditBank(ctx, account, -amount, TxWithdrawal,
		fmt.Sprintf("Fixed deposit created (%d days @ %.1f%%)", durationDays, fd.InterestRate)); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO fixed_deposits
			(id, user_id, account_id, amount, interest_rate, start_date, duration_days, maturity_date, status, matured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false)
	`, fd.ID, fd.UserID, fd.AccountID, fd.Amount, fd.InterestRate, fd.StartDate, fd.DurationDays, fd.MaturityDate, fd.Status); err != nil {
		return nil, err
	}
	if _, err := s.players.ApplyFinancialDelta(ctx, userID, 0, -amount, 0); err != nil {
		return nil, err
	}
	s.log.Info("fixed deposit created",
		"user_id", userID,
		"amount", amount,
		"duration_days", durationDays,
		"rate", fd.InterestRate)
	return fd, nil
}

// ListFixedDeposits returns the player's deposits, newest first.
func (s *Service) ListFixedDeposits(ctx context.Context, userID string) ([]FixedDeposit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, account_id, amount, interest_rate, start_date, duration_days, maturity_date, status, matured, claimed_at
		FROM fixed_deposits
		WHERE user_id = $1
		ORDER BY start_date DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]FixedDeposit, 0)
	for rows.Next() {
		var fd FixedDeposit
		if err := rows.Scan(&fd.ID, &fd.UserID, &fd.AccountID, &fd.Amount, &fd.InterestRate,
			&fd.StartDate, &fd.DurationDays, &fd.MaturityDate, &fd.Status, &fd.Matured, &fd.ClaimedAt); err != nil {
			return nil, err
		}
		out = append(out, fd)
	}
	return out, rows.Err()
}

// ClaimFixedDeposit pays out a matured deposit: principal plus rounded simple
// interest for the full term. A claimed deposit is immutable afterwards.
func (s *Service) ClaimFixedDeposit(ctx context.Context, userID, depositID string) (*FDClaim, error) {
	var fd FixedDeposit
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, account_id, amount, interest_rate, start_date, duration_days, maturity_date, status, matured
		FROM fixed_deposits
		WHERE id = $1 AND user_id = $2
	`, depositID, userID).Scan(&fd.ID, &fd.UserID, &fd.AccountID, &fd.Amount, &fd.InterestRate,
		&fd.StartDate, &fd.DurationDays, &fd.MaturityDate, &fd.Status, &fd.Matured)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("%w: fixed deposit", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := fdClaimable(&fd, now); err != nil {
		return nil, err
	}

	interest := FDInterest(fd.Amount, fd.InterestRate, fd.DurationDays)
	total := fd.Amount + interest

	// The predicate re-checks the status inside the database, so at most one
	// concurrent claim flips it.
	cmd, err := s.db.Exec(ctx, `
		UPDATE fixed_deposits
		SET status = $2, matured = true, claimed_at = $3
		WHERE id = $1 AND status <> $2
	`, fd.ID, FDStatusClaimed, now)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: fixed deposit", ErrAlreadyClaimed)
	}
	account, err := s.getAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.creditBank(ctx, account, total, TxDeposit,
		fmt.Sprintf("Fixed deposit matured: %.0f principal + %.0f interest", fd.Amount, interest)); err != nil {
		return nil, err
	}
	if _, err := s.players.ApplyFinancialDelta(ctx, userID, 0, total, 0); err != nil {
		return nil, err
	}
	s.log.Info("fixed deposit claimed", "user_id", userID, "deposit_id", fd.ID, "total", total)
	return &FDClaim{Principal: fd.Amount, Interest: interest, Total: total}, nil
}

// MatureDeposits flips active deposits past their maturity date to matured.
// Run periodically by the worker; Claim also accepts an unswept deposit whose
// date has passed, so the sweep is a convenience, not a correctness
// requirement.
func (s *Service) MatureDeposits(ctx context.Context) (int64, error) {
	cmd, err := s.db.Exec(ctx, `
		UPDATE fixed_deposits
		SET status = $1, matured = true
		WHERE status = $2 AND maturity_date <= now()
	`, FDStatusMatured, FDStatusActive)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
