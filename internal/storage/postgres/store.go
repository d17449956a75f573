package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tokenWatch/internal/model"
	"tokenWatch/internal/storage"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tokens (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS tokens_address_key ON tokens (lower(address))`,
	`CREATE INDEX IF NOT EXISTS tokens_name_idx ON tokens (name)`,
	`CREATE TABLE IF NOT EXISTS token_prices (
		id BIGSERIAL PRIMARY KEY,
		token_id BIGINT NOT NULL REFERENCES tokens (id),
		price TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS token_prices_created_at_idx ON token_prices (created_at)`,
	`CREATE INDEX IF NOT EXISTS token_prices_token_created_idx ON token_prices (token_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS price_alerts (
		id BIGSERIAL PRIMARY KEY,
		token_id BIGINT NOT NULL REFERENCES tokens (id),
		price TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS price_alerts_token_price_idx ON price_alerts (token_id, price)`,
}

// Store provides Postgres persistence for tokens, prices and alert targets.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates tables and indexes when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// ListTokens returns every tracked token ordered by id.
func (s *Store) ListTokens(ctx context.Context) ([]model.Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, address, name FROM tokens ORDER BY id`)
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

// TokenByName returns the first token with the given name.
func (s *Store) TokenByName(ctx context.Context, name string) (model.Token, error) {
	var t model.Token
	row := s.pool.QueryRow(ctx, `SELECT id, address, name FROM tokens WHERE name = $1 ORDER BY id LIMIT 1`, name)
	if err := row.Scan(&t.ID, &t.Address, &t.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Token{}, storage.ErrNotFound
		}
		return model.Token{}, err
	}
	return t, nil
}

// UpsertTokens inserts tokens or renames existing ones matched by address.
func (s *Store) UpsertTokens(ctx context.Context, tokens []model.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tokens {
		if strings.TrimSpace(t.Address) == "" || strings.TrimSpace(t.Name) == "" {
			return storage.ErrInvalidInput
		}
		batch.Queue(`
			INSERT INTO tokens (name, address, created_at, updated_at)
			VALUES ($1, $2, now(), now())
			ON CONFLICT ((lower(address)))
			DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		`, t.Name, t.Address)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tokens {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertPriceBatch writes one cycle's prices inside a single transaction.
func (s *Store) InsertPriceBatch(ctx context.Context, observedAt time.Time, entries []model.TokenPrice) error {
	if len(entries) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`INSERT INTO token_prices (token_id, price, created_at) VALUES ($1, $2, $3)`,
				e.TokenID, e.Price, observedAt.UTC())
		}

		br := tx.SendBatch(ctx, batch)
		for range entries {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert price: %w", err)
			}
		}
		return br.Close()
	})
}

// PricesBetween returns observations with created_at in [from, to], newest first.
func (s *Store) PricesBetween(ctx context.Context, from, to time.Time) ([]model.PriceObservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.token_id, t.name, p.price, p.created_at
		FROM token_prices p
		JOIN tokens t ON t.id = p.token_id
		WHERE p.created_at >= $1 AND p.created_at <= $2
		ORDER BY p.created_at DESC, p.id DESC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query price window: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// PriceHistory returns one token's observations since the given time, newest first.
func (s *Store) PriceHistory(ctx context.Context, tokenID int64, since time.Time) ([]model.PriceObservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.token_id, t.name, p.price, p.created_at
		FROM token_prices p
		JOIN tokens t ON t.id = p.token_id
		WHERE p.token_id = $1 AND p.created_at >= $2
		ORDER BY p.created_at DESC, p.id DESC
	`, tokenID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// CreateAlertTarget stores a target price exactly as given.
func (s *Store) CreateAlertTarget(ctx context.Context, target model.PriceAlertTarget) (model.PriceAlertTarget, error) {
	if target.TokenID == 0 || target.Price == "" || target.Email == "" {
		return model.PriceAlertTarget{}, storage.ErrInvalidInput
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO price_alerts (token_id, price, email, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, created_at
	`, target.TokenID, target.Price, target.Email)
	if err := row.Scan(&target.ID, &target.CreatedAt); err != nil {
		return model.PriceAlertTarget{}, fmt.Errorf("insert price alert: %w", err)
	}
	return target, nil
}

// FindAlertTargets returns targets for a token whose price string equals price.
func (s *Store) FindAlertTargets(ctx context.Context, tokenID int64, price string) ([]model.PriceAlertTarget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.token_id, t.name, a.price, a.email, a.created_at
		FROM price_alerts a
		JOIN tokens t ON t.id = a.token_id
		WHERE a.token_id = $1 AND a.price = $2
		ORDER BY a.id
	`, tokenID, price)
	if err != nil {
		return nil, fmt.Errorf("query price alerts: %w", err)
	}
	defer rows.Close()

	var targets []model.PriceAlertTarget
	for rows.Next() {
		var a model.PriceAlertTarget
		if err := rows.Scan(&a.ID, &a.TokenID, &a.TokenName, &a.Price, &a.Email, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price alert: %w", err)
		}
		targets = append(targets, a)
	}
	return targets, rows.Err()
}

func scanObservations(rows pgx.Rows) ([]model.PriceObservation, error) {
	var out []model.PriceObservation
	for rows.Next() {
		var o model.PriceObservation
		if err := rows.Scan(&o.TokenID, &o.TokenName, &o.Price, &o.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
