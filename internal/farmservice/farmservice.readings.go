// FilePath: internal/farmservice/farmservice.readings.go
package farmservice

import (
	"context"
	stderrors "errors"
	"math"
	"time"

	"github.com/ralphtiongco19/mushroom-hub/internal/errors"
	"github.com/ralphtiongco19/mushroom-hub/internal/models"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// RecordReading persists a reading arriving over the edge ingest
// endpoint and folds it into the reconciler's current state, mirroring
// the realtime path.
func (s *FarmService) RecordReading(ctx context.Context, reading *models.SensorReading) error {
	if reading.DeviceID == "" {
		return errors.NewValidationError("device id is required", nil)
	}
	if math.IsNaN(reading.Temperature) || math.IsNaN(reading.Humidity) {
		return errors.NewValidationError("temperature and humidity must be numbers", nil)
	}
	if reading.Status == "" {
		reading.Status = models.ReadingStatusOK
	}
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = time.Now()
	}

	if err := s.Readings.Insert(ctx, reading); err != nil {
		return err
	}
	if s.Metrics != nil {
		s.Metrics.ReadingIngested()
	}
	if s.Reconciler != nil {
		s.Reconciler.Observe(reading)
	}
	return nil
}

// LatestReading returns the freshest known reading, preferring the
// reconciler's live state over a table scan.
func (s *FarmService) LatestReading(ctx context.Context, deviceID string) (*models.SensorReading, error) {
	if s.Reconciler != nil {
		if reading, ok := s.Reconciler.CurrentReading(); ok && reading.DeviceID == deviceID {
			return reading, nil
		}
	}

	reading, err := s.Readings.Latest(ctx, deviceID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewNotFoundError("no readings recorded yet", err)
		}
		return nil, err
	}
	return reading, nil
}

// ReadingsRange returns raw samples in [start, end]
func (s *FarmService) ReadingsRange(ctx context.Context, deviceID string, start, end time.Time) ([]models.SensorReading, error) {
	if end.Before(start) {
		return nil, errors.NewValidationError("end must not precede start", nil)
	}
	return s.Readings.Range(ctx, deviceID, start, end)
}

// TodayStats aggregates min/max/avg over today's OK readings in the
// given location's calendar day. Computed on demand, never persisted.
func (s *FarmService) TodayStats(ctx context.Context, deviceID string, now time.Time) (*models.DailyStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	readings, err := s.Readings.Range(ctx, deviceID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	stats := AggregateReadings(readings)
	stats.Day = dayStart
	return stats, nil
}

// AggregateReadings computes min/max/avg over the OK readings in the
// slice. Faulted samples carry no usable values and are skipped.
func AggregateReadings(readings []models.SensorReading) *models.DailyStats {
	stats := &models.DailyStats{}

	var tempSum, humidSum float64
	for _, r := range readings {
		if !r.OK() {
			continue
		}
		if stats.Count == 0 {
			stats.Temperature = models.StatsSummary{Min: r.Temperature, Max: r.Temperature}
			stats.Humidity = models.StatsSummary{Min: r.Humidity, Max: r.Humidity}
		} else {
			stats.Temperature.Min = math.Min(stats.Temperature.Min, r.Temperature)
			stats.Temperature.Max = math.Max(stats.Temperature.Max, r.Temperature)
			stats.Humidity.Min = math.Min(stats.Humidity.Min, r.Humidity)
			stats.Humidity.Max = math.Max(stats.Humidity.Max, r.Humidity)
		}
		tempSum += r.Temperature
		humidSum += r.Humidity
		stats.Count++
	}

	if stats.Count > 0 {
		stats.Temperature.Avg = tempSum / float64(stats.Count)
		stats.Humidity.Avg = humidSum / float64(stats.Count)
	}
	return stats
}

// PruneReadings applies the retention policy to old samples
func (s *FarmService) PruneReadings(ctx context.Context, before time.Time) (int64, error) {
	pruned, err := s.Readings.DeleteBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		nuts.L.Infof("[FarmService] Pruned %d sensor readings before %v", pruned, before)
		if s.Metrics != nil {
			s.Metrics.ReadingsPruned(pruned)
		}
	}
	return pruned, nil
}
