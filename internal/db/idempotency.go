package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// KeyStore records claimed idempotency keys, one row per (user, key). A
// replayed mutation reuses its original key and finds it already taken.
type KeyStore struct {
	db *pgxpool.Pool
}

func NewKeyStore(db *pgxpool.Pool) *KeyStore {
	return &KeyStore{db: db}
}

// Claim inserts the key and reports whether this call was the first to do so.
func (k *KeyStore) Claim(ctx context.Context, userID, key string) (bool, error) {
	cmd, err := k.db.Exec(ctx, `
		INSERT INTO idempotency_keys (user_id, key, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, userID, key)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
