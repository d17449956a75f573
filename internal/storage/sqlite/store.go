package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tokenWatch/internal/model"
	"tokenWatch/internal/storage"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		address_key TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tokens_name_idx ON tokens (name)`,
	`CREATE TABLE IF NOT EXISTS token_prices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token_id INTEGER NOT NULL REFERENCES tokens (id),
		price TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS token_prices_created_at_idx ON token_prices (created_at)`,
	`CREATE INDEX IF NOT EXISTS token_prices_token_created_idx ON token_prices (token_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS price_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		token_id INTEGER NOT NULL REFERENCES tokens (id),
		price TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS price_alerts_token_price_idx ON price_alerts (token_id, price)`,
}

// Store is a single-file SQLite implementation of storage.Store.
// Timestamps are kept as unix milliseconds.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (creating if needed) the database at path and applies the schema.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Store) ListTokens(ctx context.Context) ([]model.Token, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, address, name FROM tokens ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.Token
	for rows.Next() {
		var t model.Token
		if err := rows.Scan(&t.ID, &t.Address, &t.Name); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (s *Store) TokenByName(ctx context.Context, name string) (model.Token, error) {
	var t model.Token
	err := s.db.QueryRowContext(ctx, `SELECT id, address, name FROM tokens WHERE name = ? ORDER BY id LIMIT 1`, name).
		Scan(&t.ID, &t.Address, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Token{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Token{}, fmt.Errorf("query token %s: %w", name, err)
	}
	return t, nil
}

func (s *Store) UpsertTokens(ctx context.Context, tokens []model.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tokens {
			if strings.TrimSpace(t.Address) == "" || strings.TrimSpace(t.Name) == "" {
				return storage.ErrInvalidInput
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tokens (name, address, address_key, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (address_key) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
				t.Name, t.Address, model.AddressKey(t.Address), now, now)
			if err != nil {
				return fmt.Errorf("upsert token %s: %w", t.Address, err)
			}
		}
		return nil
	})
}

func (s *Store) InsertPriceBatch(ctx context.Context, observedAt time.Time, entries []model.TokenPrice) error {
	if len(entries) == 0 {
		return nil
	}
	ts := observedAt.UnixMilli()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO token_prices (token_id, price, created_at) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.TokenID, e.Price, ts); err != nil {
				return fmt.Errorf("insert price: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) PricesBetween(ctx context.Context, from, to time.Time) ([]model.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.token_id, t.name, p.price, p.created_at
		FROM token_prices p
		JOIN tokens t ON t.id = p.token_id
		WHERE p.created_at >= ? AND p.created_at <= ?
		ORDER BY p.created_at DESC, p.id DESC`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query price window: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *Store) PriceHistory(ctx context.Context, tokenID int64, since time.Time) ([]model.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.token_id, t.name, p.price, p.created_at
		FROM token_prices p
		JOIN tokens t ON t.id = p.token_id
		WHERE p.token_id = ? AND p.created_at >= ?
		ORDER BY p.created_at DESC, p.id DESC`, tokenID, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *Store) CreateAlertTarget(ctx context.Context, target model.PriceAlertTarget) (model.PriceAlertTarget, error) {
	if target.TokenID == 0 || target.Price == "" || target.Email == "" {
		return model.PriceAlertTarget{}, storage.ErrInvalidInput
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO price_alerts (token_id, price, email, created_at) VALUES (?, ?, ?, ?)`,
		target.TokenID, target.Price, target.Email, now.UnixMilli())
	if err != nil {
		return model.PriceAlertTarget{}, fmt.Errorf("insert price alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.PriceAlertTarget{}, fmt.Errorf("price alert id: %w", err)
	}
	target.ID = id
	target.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return target, nil
}

func (s *Store) FindAlertTargets(ctx context.Context, tokenID int64, price string) ([]model.PriceAlertTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.token_id, t.name, a.price, a.email, a.created_at
		FROM price_alerts a
		JOIN tokens t ON t.id = a.token_id
		WHERE a.token_id = ? AND a.price = ?
		ORDER BY a.id`, tokenID, price)
	if err != nil {
		return nil, fmt.Errorf("query price alerts: %w", err)
	}
	defer rows.Close()

	var targets []model.PriceAlertTarget
	for rows.Next() {
		var a model.PriceAlertTarget
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.TokenID, &a.TokenName, &a.Price, &a.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("scan price alert: %w", err)
		}
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		targets = append(targets, a)
	}
	return targets, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanObservations(rows *sql.Rows) ([]model.PriceObservation, error) {
	var out []model.PriceObservation
	for rows.Next() {
		var o model.PriceObservation
		var createdAt int64
		if err := rows.Scan(&o.TokenID, &o.TokenName, &o.Price, &createdAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		o.ObservedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}
