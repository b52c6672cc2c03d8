package economy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"rupeeverse/internal/player"
	"rupeeverse/internal/schema"
)

// Service is the economy ledger. The wallet side of every transaction goes
// through the player store; the bank, fixed-deposit, and stock sides live in
// their own tables. Wallet and ledger writes are not atomic with each other
// (the backing store has no cross-collection transactions); a crash between
// them can leave the two sides out of sync, which the consistency check
// surfaces for manual review rather than silently repairing.
type Service struct {
	db      *pgxpool.Pool
	players *player.Store
	log     *slog.Logger
}

func NewService(db *pgxpool.Pool, players *player.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, players: players, log: logger}
}

// GrantStarterBonus credits the one-time starter amount. Safe under
// concurrent calls: the player store's conditional update lets exactly one
// caller win; everyone else gets NewlyGranted=false with amount 0.
func (s *Service) GrantStarterBonus(ctx context.Context, userID string) (StarterGrant, error) {
	granted, rupees, err := s.players.ClaimStarter(ctx, userID, StarterAmount)
	if err != nil {
		return StarterGrant{}, err
	}
	out := StarterGrant{NewlyGranted: granted, Rupees: rupees}
	if granted {
		out.Amount = StarterAmount
		s.log.Info("starter bonus granted", "user_id", userID, "amount", StarterAmount)
	}
	return out, nil
}

// StarterStatus reports whether the bonus was already claimed.
func (s *Service) StarterStatus(ctx context.Context, userID string) (bool, error) {
	return s.players.StarterStatus(ctx, userID)
}

// CheckConsistency runs the structural invariants over the player's current
// balances and flags the document for review on any violation. It returns the
// violations found.
func (s *Service) CheckConsistency(ctx context.Context, userID string) ([]string, error) {
	doc, err := s.players.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	fin := player.Financial(doc)

	var bankBalance float64
	if account, err := s.getAccount(ctx, userID); err == nil {
		bankBalance = account.Balance
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var checks []schema.HoldingCheck
	var portfolioTotal float64
	pf, err := s.loadPortfolio(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err == nil {
		portfolioTotal = pf.TotalValue
		for _, h := range pf.Holdings {
			checks = append(checks, schema.HoldingCheck{
				Symbol:     h.Symbol,
				Quantity:   h.Quantity,
				TotalValue: h.TotalValue,
			})
		}
	}

	violations := schema.CheckConsistency(fin.Rupees, bankBalance, checks, portfolioTotal)
	if len(violations) > 0 {
		if err := s.players.MarkNeedsReview(ctx, userID, violations); err != nil {
			return violations, err
		}
	}
	return violations, nil
}
