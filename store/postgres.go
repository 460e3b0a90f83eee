package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripweave/tripweave/planner"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// Postgres stores users, itineraries, and generation call records in
// PostgreSQL. It implements UserStore, ItineraryStore, and
// planner.CallRecorder.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at dsn and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate creates the schema if it does not exist. Safe to run on every
// startup.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS itineraries (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  destination TEXT NOT NULL,
  duration INTEGER NOT NULL,
  language TEXT NOT NULL,
  model TEXT NOT NULL,
  payload JSONB NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_itineraries_user_id ON itineraries (user_id);

CREATE TABLE IF NOT EXISTS generation_calls (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NOT NULL DEFAULT '',
  model TEXT NOT NULL DEFAULT '',
  attempts INTEGER NOT NULL,
  outcome TEXT NOT NULL,
  error_kind TEXT NOT NULL DEFAULT '',
  latency_ms BIGINT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_generation_calls_user_id ON generation_calls (user_id);
`)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// CreateUser inserts a new account, filling ID and CreatedAt.
func (p *Postgres) CreateUser(ctx context.Context, u *User) error {
	u.ID = uuid.New().String()
	u.Email = normalizeEmail(u.Email)
	u.CreatedAt = time.Now().UTC()

	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (p *Postgres) GetUser(ctx context.Context, id string) (*User, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by normalized email.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		normalizeEmail(email))
	return scanUser(row)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateItinerary inserts a generation result, filling ID and CreatedAt.
func (p *Postgres) CreateItinerary(ctx context.Context, it *Itinerary) error {
	it.ID = uuid.New().String()
	it.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(it.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO itineraries (id, user_id, destination, duration, language, model, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		it.ID, it.UserID, it.Destination, it.Duration, it.Language, it.Model, payload, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert itinerary: %w", err)
	}
	return nil
}

// GetItinerary retrieves one itinerary owned by userID.
func (p *Postgres) GetItinerary(ctx context.Context, userID, id string) (*Itinerary, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, user_id, destination, duration, language, model, payload, created_at
FROM itineraries WHERE id = $1 AND user_id = $2`, id, userID)
	return scanItinerary(row)
}

// ListItineraries returns one page of the user's itineraries, newest first,
// plus the total count.
func (p *Postgres) ListItineraries(ctx context.Context, userID string, limit, offset int) ([]*Itinerary, int, error) {
	limit, offset = clampPage(limit, offset)

	var total int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM itineraries WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count itineraries: %w", err)
	}

	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, destination, duration, language, model, payload, created_at
FROM itineraries WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list itineraries: %w", err)
	}
	defer rows.Close()

	items := make([]*Itinerary, 0, limit)
	for rows.Next() {
		it, err := scanItinerary(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list itineraries: %w", err)
	}
	return items, total, nil
}

// DeleteItinerary removes one itinerary owned by userID.
func (p *Postgres) DeleteItinerary(ctx context.Context, userID, id string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM itineraries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete itinerary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordCall appends one generation run to the audit table.
func (p *Postgres) RecordCall(ctx context.Context, rec planner.CallRecord) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO generation_calls (user_id, model, attempts, outcome, error_kind, latency_ms)
VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.UserID, rec.Model, rec.Attempts, rec.Outcome, rec.ErrorKind, rec.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert generation call: %w", err)
	}
	return nil
}

func scanItinerary(row pgx.Row) (*Itinerary, error) {
	var (
		it      Itinerary
		payload []byte
	)
	err := row.Scan(&it.ID, &it.UserID, &it.Destination, &it.Duration,
		&it.Language, &it.Model, &payload, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan itinerary: %w", err)
	}
	if err := json.Unmarshal(payload, &it.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &it, nil
}
