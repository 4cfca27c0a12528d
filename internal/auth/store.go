package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Allocation outcomes surfaced to callers. These are expected user-facing
// conditions, not storage failures.
var (
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenAllocated = errors.New("token is already allocated")
)

// Store owns the durable token -> user allocation table. A token is inserted
// unallocated, is bound to exactly one user, and is never deleted or rebound.
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps the opened database. The driver selects dialect-specific
// statements (sqlite3 or mysql).
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: strings.ToLower(driver)}
}

// EnsureTokens inserts every token not already present as unallocated.
// Tokens already in the table, allocated or not, are left untouched, so the
// call is idempotent and safe with overlapping sets.
func (s *Store) EnsureTokens(ctx context.Context, tokens []string) error {
	stmt := `INSERT OR IGNORE INTO tokens (token) VALUES (?)`
	if s.driver == "mysql" {
		stmt = `INSERT IGNORE INTO tokens (token) VALUES (?)`
	}
	for _, token := range tokens {
		if _, err := s.db.ExecContext(ctx, stmt, token); err != nil {
			return fmt.Errorf("ensure token: %w", err)
		}
	}
	return nil
}

// HasAllocatedToken reports whether some token is allocated to the user.
func (s *Store) HasAllocatedToken(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM tokens WHERE user_id = ? LIMIT 1`, userID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup allocation: %w", err)
	}
	return true, nil
}

// IsTokenValid reports whether the token exists and is unallocated.
func (s *Store) IsTokenValid(ctx context.Context, token string) (bool, error) {
	var userID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM tokens WHERE token = ?`, token,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup token: %w", err)
	}
	return !userID.Valid, nil
}

// Allocate binds the token to the user inside a single transaction. A missing
// token yields ErrTokenInvalid; a token some other caller won first yields
// ErrTokenAllocated. Two racing allocations for the same token cannot both
// succeed: the update is guarded on user_id still being NULL.
func (s *Store) Allocate(ctx context.Context, userID, token string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allocate: %w", err)
	}
	defer tx.Rollback()

	var current sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM tokens WHERE token = ?`, token,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("lookup token: %w", err)
	}
	if current.Valid {
		return ErrTokenAllocated
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tokens SET user_id = ? WHERE token = ? AND user_id IS NULL`,
		userID, token,
	)
	if err != nil {
		return fmt.Errorf("allocate token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("allocate rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTokenAllocated
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit allocate: %w", err)
	}
	return nil
}

// Counts returns the total and allocated token counts for the status API.
func (s *Store) Counts(ctx context.Context) (total, allocated int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(user_id) FROM tokens`,
	).Scan(&total, &allocated)
	if err != nil {
		return 0, 0, fmt.Errorf("count tokens: %w", err)
	}
	return total, allocated, nil
}
