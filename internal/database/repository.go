package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"smart-trading-engine/internal/market"
	"smart-trading-engine/internal/performance"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// TRADE RECORDS
// ============================================================================

// SaveTrade inserts a closed trade
func (r *Repository) SaveTrade(ctx context.Context, trade market.TradeRecord) error {
	query := `
		INSERT INTO trade_records (symbol, profit_pct, entry_price, exit_price, exit_reason, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		trade.Symbol, trade.ProfitPct, trade.EntryPrice, trade.ExitPrice,
		trade.ExitReason, trade.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// ListTrades returns the most recent closed trades, oldest first
func (r *Repository) ListTrades(ctx context.Context, limit int) ([]market.TradeRecord, error) {
	query := `
		SELECT symbol, profit_pct, entry_price, exit_price, exit_reason, executed_at
		FROM trade_records
		ORDER BY executed_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query trade records: %w", err)
	}
	defer rows.Close()

	var trades []market.TradeRecord
	for rows.Next() {
		var t market.TradeRecord
		if err := rows.Scan(&t.Symbol, &t.ProfitPct, &t.EntryPrice, &t.ExitPrice, &t.ExitReason, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trade record: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

// ============================================================================
// PERFORMANCE STATE
// ============================================================================

// LoadState restores the performance monitor snapshot. Implements
// performance.Store.
func (r *Repository) LoadState(ctx context.Context) (performance.State, bool, error) {
	var state performance.State
	query := `SELECT state FROM performance_state WHERE id = 1`
	err := r.db.Pool.QueryRow(ctx, query).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return performance.State{}, false, nil
	}
	if err != nil {
		return performance.State{}, false, fmt.Errorf("load performance state: %w", err)
	}
	return state, true, nil
}

// SaveState upserts the performance monitor snapshot
func (r *Repository) SaveState(ctx context.Context, state performance.State) error {
	query := `
		INSERT INTO performance_state (id, state, updated_at)
		VALUES (1, $1, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET state = $1, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Pool.Exec(ctx, query, state); err != nil {
		return fmt.Errorf("save performance state: %w", err)
	}
	return nil
}

// ============================================================================
// USERS
// ============================================================================

// GetUserByEmail looks up a user account by email
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`
	user := &User{}
	err := r.db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// CreateUser inserts a user account
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.Pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.Role); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
