package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"xquisito-tap/internal/domain"
)

type postgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Store {
	return &postgresStore{pool: pool, logger: logger}
}

func (s *postgresStore) Get(ctx context.Context, device, key string) (string, error) {
	const q = `
SELECT value
FROM client_state
WHERE device_id = $1 AND key = $2
`
	var value string
	if err := s.pool.QueryRow(ctx, q, device, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		s.logger.Error("storage: get", zap.String("device", device), zap.String("key", key), zap.Error(err))
		return "", err
	}
	return value, nil
}

func (s *postgresStore) Set(ctx context.Context, device, key, value string) error {
	const q = `
INSERT INTO client_state (device_id, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (device_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`
	if _, err := s.pool.Exec(ctx, q, device, key, value); err != nil {
		s.logger.Error("storage: set", zap.String("device", device), zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, device, key string) error {
	cmd, err := s.pool.Exec(ctx, `DELETE FROM client_state WHERE device_id = $1 AND key = $2`, device, key)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *postgresStore) DeleteAll(ctx context.Context, device string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM client_state WHERE device_id = $1`, device)
	return err
}
