// FilePath: internal/repository/postgres/postgres.commands.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/ralphtiongco19/mushroom-hub/internal/database"
	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
)

type CommandRepo struct {
	PostgresBaseRepo
}

func NewCommandRepository(db database.DB) (*CommandRepo, error) {
	repo := &CommandRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *CommandRepo) initializeSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS device_commands (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			command_type TEXT NOT NULL,
			command_data JSONB NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			idempotency_key TEXT NOT NULL DEFAULT '',
			error_detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_device_commands_device_status
			ON device_commands(device_id, status)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_device_commands_idempotency
			ON device_commands(device_id, idempotency_key)
			WHERE idempotency_key <> ''`,
	}

	for _, query := range queries {
		if _, err := r.db.GetDB().Exec(query); err != nil {
			return errors.NewPersistenceError("failed to initialize command schema", err)
		}
	}
	return nil
}

func (r *CommandRepo) Create(ctx context.Context, cmd *models.Command) error {
	query := `
		INSERT INTO device_commands (
			id, device_id, command_type, command_data, status,
			idempotency_key, error_detail, created_at, updated_at
		) VALUES (
			:id, :device_id, :command_type, :command_data, :status,
			:idempotency_key, :error_detail, :created_at, :updated_at
		)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, cmd)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return repository.ErrDuplicate
		}
		return errors.NewPersistenceError("failed to create command", err)
	}
	return nil
}

func (r *CommandRepo) Get(ctx context.Context, id string) (*models.Command, error) {
	cmd := &models.Command{}
	query := `SELECT * FROM device_commands WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, cmd, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, errors.NewPersistenceError("failed to get command", err)
	}
	return cmd, nil
}

func (r *CommandRepo) GetByIdempotencyKey(ctx context.Context, deviceID, key string) (*models.Command, error) {
	cmd := &models.Command{}
	query := `SELECT * FROM device_commands WHERE device_id = $1 AND idempotency_key = $2`

	err := r.db.GetDB().GetContext(ctx, cmd, query, deviceID, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, errors.NewPersistenceError("failed to get command by idempotency key", err)
	}
	return cmd, nil
}

// UpdateStatus applies a transition only when the stored status may
// legally move to next. A zero rows-affected result on an existing row
// means the transition was rejected, so terminal rows stay immutable.
func (r *CommandRepo) UpdateStatus(ctx context.Context, id string, next models.CommandStatus, detail string, at time.Time) error {
	sources := models.TransitionSources(next)
	from := make([]string, 0, len(sources))
	for _, s := range sources {
		from = append(from, string(s))
	}

	query := `
		UPDATE device_commands
		SET status = $2, error_detail = $3, updated_at = $4
		WHERE id = $1 AND status = ANY($5)`

	result, err := r.db.GetDB().ExecContext(ctx, query, id, next, detail, at, pq.Array(from))
	if err != nil {
		return errors.NewPersistenceError("failed to update command status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewPersistenceError("failed to get rows affected", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return repository.ErrInvalidTransition
	}
	return nil
}

func (r *CommandRepo) ListByDevice(ctx context.Context, deviceID string, offset, limit int) ([]*models.Command, error) {
	commands := []*models.Command{}
	query := `
		SELECT * FROM device_commands
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	err := r.db.GetDB().SelectContext(ctx, &commands, query, deviceID, limit, offset)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to list commands", err)
	}
	return commands, nil
}

func (r *CommandRepo) ListPending(ctx context.Context, deviceID string) ([]*models.Command, error) {
	commands := []*models.Command{}
	query := `
		SELECT * FROM device_commands
		WHERE device_id = $1 AND status = $2
		ORDER BY created_at ASC`

	err := r.db.GetDB().SelectContext(ctx, &commands, query, deviceID, models.StatusPending)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to list pending commands", err)
	}
	return commands, nil
}

func (r *CommandRepo) ListStuckPending(ctx context.Context, olderThan time.Time) ([]*models.Command, error) {
	commands := []*models.Command{}
	query := `
		SELECT * FROM device_commands
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC`

	err := r.db.GetDB().SelectContext(ctx, &commands, query, models.StatusPending, olderThan)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to list stuck commands", err)
	}
	return commands, nil
}
