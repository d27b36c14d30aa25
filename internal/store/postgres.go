package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/session"
	"github.com/troikatech/collections-agent/pkg/otel"
)

const callsSchema = `CREATE TABLE IF NOT EXISTS calls (
	call_id    TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const findByPhoneSQL = `SELECT name, loan_id, COALESCE(outstanding_amount, 0)::float8, due_date,
	COALESCE(preferred_language, ''), phone, COALESCE(state, '')
FROM customers WHERE phone = ANY($1) ORDER BY phone LIMIT 1`

const upsertCallSQL = `INSERT INTO calls (call_id, status, message, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (call_id) DO UPDATE SET status = EXCLUDED.status, message = EXCLUDED.message, updated_at = EXCLUDED.updated_at`

const outcomeCountsSQL = `SELECT status, COUNT(*) FROM calls WHERE updated_at >= $1 GROUP BY status`

// PostgresStore reads customers from an existing loan-book table
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects, pings and makes sure the calls table exists
func NewPostgresStore(ctx context.Context, url string, logger *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = 3 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, callsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create calls table: %w", err)
	}

	logger.Info("PostgreSQL store opened")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) FindByPhone(ctx context.Context, variants []string) (*session.CallParticipant, error) {
	if len(variants) == 0 {
		return nil, nil
	}
	var (
		p   session.CallParticipant
		due *time.Time
	)
	err := otel.Trace(ctx, "postgres.customers.find", func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, findByPhoneSQL, variants).Scan(
			&p.Name, &p.LoanRef, &p.OutstandingAmount, &due, &p.PreferredLanguage, &p.Phone, &p.State,
		)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if due != nil {
		p.DueDate = *due
	}
	return &p, nil
}

func (s *PostgresStore) UpdateCallStatus(ctx context.Context, callID, status, message string) error {
	return otel.Trace(ctx, "postgres.calls.update", func(ctx context.Context) error {
		if _, err := s.pool.Exec(ctx, upsertCallSQL, callID, status, message, time.Now()); err != nil {
			return fmt.Errorf("update call status: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) OutcomeCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := otel.Trace(ctx, "postgres.calls.outcomes", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, outcomeCountsSQL, since)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				status string
				n      int64
			)
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			counts[status] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
