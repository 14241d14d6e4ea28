// FilePath: internal/repository/postgres/postgres.devicestatus.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/ralphtiongco19/mushroom-hub/internal/database"
	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
)

type DeviceStatusRepo struct {
	PostgresBaseRepo
}

func NewDeviceStatusRepository(db database.DB) (*DeviceStatusRepo, error) {
	repo := &DeviceStatusRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *DeviceStatusRepo) initializeSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS device_status (
			device_id TEXT PRIMARY KEY,
			last_seen TIMESTAMPTZ NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL
		)`

	if _, err := r.db.GetDB().Exec(query); err != nil {
		return errors.NewPersistenceError("failed to initialize device_status schema", err)
	}
	return nil
}

func (r *DeviceStatusRepo) Get(ctx context.Context, deviceID string) (*models.DeviceStatus, error) {
	status := &models.DeviceStatus{}
	query := `SELECT * FROM device_status WHERE device_id = $1`

	err := r.db.GetDB().GetContext(ctx, status, query, deviceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, errors.NewPersistenceError("failed to get device status", err)
	}
	return status, nil
}

func (r *DeviceStatusRepo) Upsert(ctx context.Context, status *models.DeviceStatus) error {
	query := `
		INSERT INTO device_status (device_id, last_seen, detail, updated_at)
		VALUES (:device_id, :last_seen, :detail, :updated_at)
		ON CONFLICT (device_id) DO UPDATE SET
			last_seen = EXCLUDED.last_seen,
			detail = EXCLUDED.detail,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, status)
	if err != nil {
		return errors.NewPersistenceError("failed to upsert device status", err)
	}
	return nil
}

func (r *DeviceStatusRepo) List(ctx context.Context) ([]*models.DeviceStatus, error) {
	statuses := []*models.DeviceStatus{}
	query := `SELECT * FROM device_status ORDER BY device_id ASC`

	err := r.db.GetDB().SelectContext(ctx, &statuses, query)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to list device statuses", err)
	}
	return statuses, nil
}
