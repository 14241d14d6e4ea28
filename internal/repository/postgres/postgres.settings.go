// FilePath: internal/repository/postgres/postgres.settings.go
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

type SettingsRepo struct {
	PostgresBaseRepo
}

func NewSettingsRepository(db database.DB) (*SettingsRepo, error) {
	repo := &SettingsRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SettingsRepo) initializeSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			id BIGINT PRIMARY KEY,
			farm_name TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			device_id TEXT NOT NULL DEFAULT '',
			temp_min DOUBLE PRECISION NOT NULL DEFAULT 20,
			temp_max DOUBLE PRECISION NOT NULL DEFAULT 30,
			humid_min DOUBLE PRECISION NOT NULL DEFAULT 40,
			humid_max DOUBLE PRECISION NOT NULL DEFAULT 80,
			humid_target DOUBLE PRECISION NOT NULL DEFAULT 60,
			mist_duration INTEGER NOT NULL DEFAULT 30,
			mist_cooldown INTEGER NOT NULL DEFAULT 300,
			auto_mist_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			alerts_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			sound_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			critical_only BOOLEAN NOT NULL DEFAULT FALSE,
			temp_unit TEXT NOT NULL DEFAULT 'C',
			dark_mode BOOLEAN NOT NULL DEFAULT FALSE,
			version BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := r.db.GetDB().Exec(query); err != nil {
			return errors.NewPersistenceError("failed to initialize settings schema", err)
		}
	}

	r.migrateMistControl()
	return nil
}

// migrateMistControl folds the legacy mist_control.auto_state singleton
// into settings.auto_mist_enabled and drops the legacy table. Settings
// is the single source of truth afterwards.
func (r *SettingsRepo) migrateMistControl() {
	var legacyState sql.NullBool
	err := r.db.GetDB().Get(&legacyState,
		`SELECT auto_state FROM mist_control WHERE id = 1`)
	if err != nil {
		return // legacy table absent, nothing to migrate
	}

	if legacyState.Valid {
		_, err = r.db.GetDB().Exec(
			`UPDATE settings SET auto_mist_enabled = $1 WHERE id = $2`,
			legacyState.Bool, models.SettingsID)
		if err != nil {
			nuts.L.Warnf("[SettingsRepo] Failed to migrate mist_control state: %v", err)
			return
		}
	}

	if _, err := r.db.GetDB().Exec(`DROP TABLE mist_control`); err != nil {
		nuts.L.Warnf("[SettingsRepo] Failed to drop legacy mist_control table: %v", err)
		return
	}
	nuts.L.Infof("[SettingsRepo] Migrated legacy mist_control into settings")
}

func (r *SettingsRepo) Get(ctx context.Context) (*models.Settings, error) {
	settings := &models.Settings{}
	query := `SELECT * FROM settings WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, settings, query, models.SettingsID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, errors.NewPersistenceError("failed to get settings", err)
	}
	return settings, nil
}

// Save upserts the singleton. The UPDATE arm only fires when the stored
// version matches the caller's token, so two concurrent saves cannot
// silently overwrite each other; the loser gets ErrStaleVersion.
func (r *SettingsRepo) Save(ctx context.Context, settings *models.Settings) error {
	now := time.Now()
	settings.ID = models.SettingsID
	settings.UpdatedAt = now
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}

	query := `
		INSERT INTO settings (
			id, farm_name, location, device_id,
			temp_min, temp_max, humid_min, humid_max, humid_target,
			mist_duration, mist_cooldown, auto_mist_enabled,
			alerts_enabled, sound_enabled, critical_only,
			temp_unit, dark_mode, version, created_at, updated_at
		) VALUES (
			:id, :farm_name, :location, :device_id,
			:temp_min, :temp_max, :humid_min, :humid_max, :humid_target,
			:mist_duration, :mist_cooldown, :auto_mist_enabled,
			:alerts_enabled, :sound_enabled, :critical_only,
			:temp_unit, :dark_mode, :version + 1, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			farm_name = EXCLUDED.farm_name,
			location = EXCLUDED.location,
			device_id = EXCLUDED.device_id,
			temp_min = EXCLUDED.temp_min,
			temp_max = EXCLUDED.temp_max,
			humid_min = EXCLUDED.humid_min,
			humid_max = EXCLUDED.humid_max,
			humid_target = EXCLUDED.humid_target,
			mist_duration = EXCLUDED.mist_duration,
			mist_cooldown = EXCLUDED.mist_cooldown,
			auto_mist_enabled = EXCLUDED.auto_mist_enabled,
			alerts_enabled = EXCLUDED.alerts_enabled,
			sound_enabled = EXCLUDED.sound_enabled,
			critical_only = EXCLUDED.critical_only,
			temp_unit = EXCLUDED.temp_unit,
			dark_mode = EXCLUDED.dark_mode,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE settings.version = EXCLUDED.version - 1`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, settings)
	if err != nil {
		return errors.NewPersistenceError("failed to save settings", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewPersistenceError("failed to get rows affected", err)
	}
	if rows == 0 {
		return repository.ErrStaleVersion
	}

	settings.Version++
	return nil
}
