// Package player persists player-state documents. Documents are stored as
// jsonb so that legacy shapes survive round trips; outdated documents are
// migrated transparently on read and written back only when the migration
// actually changed something.
package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rupeeverse/internal/schema"
)

// ErrPersistenceUnavailable marks failures to reach the backing store. The
// store fails fast and never retries; retry policy belongs to the caller.
var ErrPersistenceUnavailable = errors.New("persistence unavailable")

type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewStore(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

// GetOrCreate loads the player's document, creating a fresh one on first
// access. Outdated documents are migrated before being returned; the migrated
// form is persisted only when the migration reported changes.
func (s *Store) GetOrCreate(ctx context.Context, userID string) (map[string]any, error) {
	doc, found, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		doc = NewDocument(userID)
		if err := s.insert(ctx, userID, doc); err != nil {
			return nil, err
		}
		s.log.Info("player document created", "user_id", userID)
		return doc, nil
	}
	if !schema.IsOutdated(doc) {
		return doc, nil
	}
	res := schema.Migrate(doc)
	if !schema.Validate(res.Migrated) {
		// Migration is best effort; a document it cannot complete is
		// returned as-is and flagged for manual review.
		s.log.Warn("migrated document failed validation", "user_id", userID)
		if err := s.MarkNeedsReview(ctx, userID, []string{"post-migration validation failed"}); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if res.NeedsUpdate {
		if err := s.put(ctx, userID, res.Migrated); err != nil {
			return nil, err
		}
		s.log.Info("player document migrated",
			"user_id", userID,
			"changes", len(res.Changes))
	}
	return res.Migrated, nil
}

// Update merge-writes a patch into the document. Top-level maps are merged one
// level deep; everything else is replaced.
func (s *Store) Update(ctx context.Context, userID string, patch map[string]any) (map[string]any, error) {
	doc, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := doc[k].(map[string]any); ok {
				for sk, sv := range sub {
					existing[sk] = sv
				}
				continue
			}
		}
		doc[k] = v
	}
	if err := s.put(ctx, userID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) UpdatePosition(ctx context.Context, userID string, x, y float64, sceneName string) error {
	_, err := s.Update(ctx, userID, map[string]any{
		"position": map[string]any{"x": x, "y": y, "scene": sceneName},
	})
	return err
}

func (s *Store) UpdateSettings(ctx context.Context, userID string, settings map[string]any) error {
	_, err := s.Update(ctx, userID, map[string]any{"settings": settings})
	return err
}

// RupeeOp names the supported wallet adjustments for UpdateRupees.
const (
	RupeeOpSet      = "set"
	RupeeOpAdd      = "add"
	RupeeOpSubtract = "subtract"
)

// UpdateRupees applies a set/add/subtract to the wallet, clamping at zero, and
// keeps totalWealth in step. Returns the updated document.
func (s *Store) UpdateRupees(ctx context.Context, userID string, amount float64, op string) (map[string]any, error) {
	doc, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	fin := Financial(doc)
	current := fin.Rupees
	var next float64
	switch op {
	case RupeeOpSet:
		next = amount
	case RupeeOpAdd:
		next = current + amount
	case RupeeOpSubtract:
		next = current - amount
	default:
		return nil, fmt.Errorf("unknown rupee operation %q", op)
	}
	if next < 0 {
		next = 0
	}
	setFinancial(doc, next, fin.BankBalance, fin.StockPortfolioValue)
	if err := s.put(ctx, userID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ApplyFinancialDelta shifts the denormalized balances by the given deltas and
// recomputes totalWealth. It is a read-then-write; callers that need
// at-most-once semantics must use ClaimStarter instead.
func (s *Store) ApplyFinancialDelta(ctx context.Context, userID string, dRupees, dBank, dPortfolio float64) (map[string]any, error) {
	doc, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	fin := Financial(doc)
	setFinancial(doc, fin.Rupees+dRupees, fin.BankBalance+dBank, fin.StockPortfolioValue+dPortfolio)
	if err := s.put(ctx, userID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// StarterStatus reports whether the starter bonus was already granted.
func (s *Store) StarterStatus(ctx context.Context, userID string) (bool, error) {
	doc, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}
	return starterClaimed(doc), nil
}

// ClaimStarter performs the one race-safe mutation in the store. The grant is
// written with a single conditional UPDATE whose predicate re-checks the
// starter flag and the completed-tutorials marker inside the database, so at
// most one concurrent caller can succeed. Returns granted=false when another
// call already claimed it.
func (s *Store) ClaimStarter(ctx context.Context, userID string, amount float64) (granted bool, rupees float64, err error) {
	doc, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	next, granted := grantStarterDoc(doc, amount)
	if !granted {
		return false, Financial(doc).Rupees, nil
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return false, 0, err
	}
	cmd, err := s.db.Exec(ctx, `
		UPDATE players
		SET doc = $2, schema_version = $3, updated_at = now()
		WHERE user_id = $1
		  AND COALESCE((doc->>'starterClaimed')::boolean, false) = false
		  AND NOT COALESCE(doc->'completedTutorials' @> to_jsonb($4::text), false)
	`, userID, raw, schema.CurrentVersion, schema.StarterMarker)
	if err != nil {
		return false, 0, wrapStoreErr(err)
	}
	if cmd.RowsAffected() == 0 {
		// Lost the race; report the current balance untouched.
		current, loadErr := s.GetOrCreate(ctx, userID)
		if loadErr != nil {
			return false, 0, loadErr
		}
		return false, Financial(current).Rupees, nil
	}
	return true, Financial(next).Rupees, nil
}

// MarkNeedsReview flags the player row for manual inspection. Financial fields
// are left exactly as they were.
func (s *Store) MarkNeedsReview(ctx context.Context, userID string, reasons []string) error {
	s.log.Warn("player flagged for review", "user_id", userID, "reasons", reasons)
	_, err := s.db.Exec(ctx, `
		UPDATE players SET needs_review = true, updated_at = now() WHERE user_id = $1
	`, userID)
	return wrapStoreErr(err)
}

func (s *Store) load(ctx context.Context, userID string) (map[string]any, bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `
		SELECT doc FROM players WHERE user_id = $1
	`, userID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapStoreErr(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("decode player document: %w", err)
	}
	return doc, true, nil
}

func (s *Store) insert(ctx context.Context, userID string, doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO players (user_id, doc, schema_version, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO NOTHING
	`, userID, raw, schema.CurrentVersion)
	return wrapStoreErr(err)
}

func (s *Store) put(ctx context.Context, userID string, doc map[string]any) error {
	doc["lastUpdated"] = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		UPDATE players SET doc = $2, schema_version = $3, updated_at = now()
		WHERE user_id = $1
	`, userID, raw, schema.CurrentVersion)
	return wrapStoreErr(err)
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return err
}
