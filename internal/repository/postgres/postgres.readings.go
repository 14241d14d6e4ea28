// FilePath: internal/repository/postgres/postgres.readings.go
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/ralphtiongco19/mushroom-hub/internal/database"
	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

type ReadingRepo struct {
	PostgresBaseRepo
}

func NewReadingRepository(db database.DB) (*ReadingRepo, error) {
	repo := &ReadingRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *ReadingRepo) initializeSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sensor_data (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			temperature DOUBLE PRECISION NOT NULL,
			humidity DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'OK',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_data_device_created
			ON sensor_data(device_id, created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := r.db.GetDB().Exec(query); err != nil {
			return errors.NewPersistenceError("failed to initialize sensor_data schema", err)
		}
	}
	return nil
}

func (r *ReadingRepo) Insert(ctx context.Context, reading *models.SensorReading) error {
	if reading.ID == "" {
		reading.ID = nuts.NID("sr", 12)
	}
	query := `
		INSERT INTO sensor_data (id, device_id, temperature, humidity, status, created_at)
		VALUES (:id, :device_id, :temperature, :humidity, :status, :created_at)`

	_, err := r.db.GetDB().NamedExecContext(ctx, query, reading)
	if err != nil {
		return errors.NewPersistenceError("failed to insert sensor reading", err)
	}
	return nil
}

func (r *ReadingRepo) Latest(ctx context.Context, deviceID string) (*models.SensorReading, error) {
	reading := &models.SensorReading{}
	query := `
		SELECT * FROM sensor_data
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, reading, query, deviceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, errors.NewPersistenceError("failed to get latest reading", err)
	}
	return reading, nil
}

func (r *ReadingRepo) Range(ctx context.Context, deviceID string, start, end time.Time) ([]models.SensorReading, error) {
	readings := []models.SensorReading{}
	query := `
		SELECT * FROM sensor_data
		WHERE device_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at ASC`

	err := r.db.GetDB().SelectContext(ctx, &readings, query, deviceID, start, end)
	if err != nil {
		return nil, errors.NewPersistenceError("failed to get readings", err)
	}
	return readings, nil
}

func (r *ReadingRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM sensor_data WHERE created_at < $1`

	result, err := r.db.GetDB().ExecContext(ctx, query, before)
	if err != nil {
		return 0, errors.NewPersistenceError("failed to delete old readings", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewPersistenceError("failed to get rows affected", err)
	}
	return rows, nil
}
