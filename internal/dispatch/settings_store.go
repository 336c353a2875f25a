package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"bookflow/pkg/models"
)

const settingsRowID = 1

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SettingsStore keeps the dispatch settings last applied through the management API,
// so they outlive a restart and are shared by every replica.
type SettingsStore interface {
	// Load returns nil without an error when nothing has been saved yet.
	Load(ctx context.Context) (*models.DispatchSettings, error)
	Save(ctx context.Context, settings models.DispatchSettings, changedBy string) error
}

type PostgresSettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) SettingsStore {
	return &PostgresSettingsStore{db: db}
}

func (s *PostgresSettingsStore) Load(ctx context.Context) (*models.DispatchSettings, error) {
	query, args, err := psql.Select("key_fields", "ttl_seconds", "hash_algorithm", "on_redis_error").
		From("dispatch_settings").
		Where(sq.Eq{"id": settingsRowID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	var (
		settings models.DispatchSettings
		fields   []byte
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&fields, &settings.TTLSeconds, &settings.HashAlgorithm, &settings.OnRedisError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dispatch settings: %w", err)
	}
	if err := json.Unmarshal(fields, &settings.KeyFields); err != nil {
		return nil, fmt.Errorf("failed to decode key fields: %w", err)
	}
	return &settings, nil
}

func (s *PostgresSettingsStore) Save(ctx context.Context, settings models.DispatchSettings, changedBy string) error {
	fields, err := json.Marshal(settings.KeyFields)
	if err != nil {
		return fmt.Errorf("failed to encode key fields: %w", err)
	}

	query, args, err := psql.Insert("dispatch_settings").
		Columns("id", "key_fields", "ttl_seconds", "hash_algorithm", "on_redis_error", "updated_by", "updated_at").
		Values(settingsRowID, fields, settings.TTLSeconds, settings.HashAlgorithm, settings.OnRedisError, changedBy, time.Now().UTC()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			key_fields = EXCLUDED.key_fields,
			ttl_seconds = EXCLUDED.ttl_seconds,
			hash_algorithm = EXCLUDED.hash_algorithm,
			on_redis_error = EXCLUDED.on_redis_error,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save dispatch settings: %w", err)
	}
	return nil
}
