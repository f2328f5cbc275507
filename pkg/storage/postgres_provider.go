package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CesarCosmico/fishing-stats/pkg/domain"
	"github.com/CesarCosmico/fishing-stats/pkg/errors"
)

// PostgresProvider implements RecordProvider on PostgreSQL, one row per
// player with the nested contexts structure stored as JSONB.
type PostgresProvider struct {
	db          *sql.DB
	resolveName NameResolver
	logger      *slog.Logger
}

// NewPostgresProvider creates a PostgreSQL-backed record provider.
// resolveName may be nil.
func NewPostgresProvider(db *sql.DB, resolveName NameResolver, logger *slog.Logger) *PostgresProvider {
	return &PostgresProvider{
		db:          db,
		resolveName: resolveName,
		logger:      logger,
	}
}

// Migrate creates the player-record table if it does not exist.
func (p *PostgresProvider) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS player_stats (
			player_id  UUID PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			contexts   JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return errors.ErrDatabaseError("migrate player_stats", err)
	}
	return nil
}

// Load reads a player's row. A missing row synthesizes an empty record with
// a best-effort display name (lazy initialization, same as the YAML
// backend).
func (p *PostgresProvider) Load(ctx context.Context, playerID uuid.UUID) (*domain.PlayerRecord, error) {
	query := `
		SELECT name, contexts
		FROM player_stats
		WHERE player_id = $1
	`

	var name string
	var rawContexts []byte
	err := p.db.QueryRowContext(ctx, query, playerID).Scan(&name, &rawContexts)
	if err == sql.ErrNoRows {
		return p.emptyRecord(playerID), nil
	}
	if err != nil {
		return nil, errors.ErrDatabaseError("load player record", err)
	}

	record := domain.NewPlayerRecord(playerID, name)
	if len(rawContexts) > 0 {
		if err := json.Unmarshal(rawContexts, &record.Contexts); err != nil {
			p.logger.Error("Failed to decode player contexts, synthesizing empty",
				"player_id", playerID, "error", err)
			return p.emptyRecord(playerID), nil
		}
	}
	if record.Contexts == nil {
		record.Contexts = make(map[string]map[string]map[string]int)
	}
	return record, nil
}

// Save upserts the player's row, replacing the stored contexts wholesale.
func (p *PostgresProvider) Save(ctx context.Context, record *domain.PlayerRecord) error {
	rawContexts, err := json.Marshal(record.Contexts)
	if err != nil {
		return errors.ErrSaveFailed(record.ID.String(), err)
	}

	query := `
		INSERT INTO player_stats (player_id, name, contexts, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (player_id) DO UPDATE SET
			name = EXCLUDED.name,
			contexts = EXCLUDED.contexts,
			updated_at = NOW()
	`
	if _, err := p.db.ExecContext(ctx, query, record.ID, record.Name, rawContexts); err != nil {
		return errors.ErrDatabaseError("save player record", err)
	}
	return nil
}

// Delete removes the player's row. Deleting a missing row is a no-op.
func (p *PostgresProvider) Delete(ctx context.Context, playerID uuid.UUID) error {
	query := `DELETE FROM player_stats WHERE player_id = $1`
	if _, err := p.db.ExecContext(ctx, query, playerID); err != nil {
		return errors.ErrDatabaseError("delete player record", err)
	}
	return nil
}

// ListIDs enumerates every player with a stored row.
func (p *PostgresProvider) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT player_id FROM player_stats`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.ErrDatabaseError("list player records", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.ErrDatabaseError("scan player id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ErrDatabaseError("iterate player records", err)
	}
	return ids, nil
}

func (p *PostgresProvider) emptyRecord(playerID uuid.UUID) *domain.PlayerRecord {
	name := ""
	if p.resolveName != nil {
		name = p.resolveName(playerID)
	}
	return domain.NewPlayerRecord(playerID, name)
}
