// FilePath: internal/monitoring/monitoring.go
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	nuts "github.com/vaudience/go-nuts"
)

// Service provides monitoring functionality
type Service struct {
	registry *prometheus.Registry

	commandsDispatched *prometheus.CounterVec
	commandOutcomes    *prometheus.CounterVec
	readingsIngested   prometheus.Counter
	readingsPruned     prometheus.Counter
	settingsSaves      *prometheus.CounterVec
	realtimeConnected  prometheus.Gauge
}

// NewService creates a new monitoring service
func NewService() *Service {
	registry := prometheus.NewRegistry()

	s := &Service{
		registry: registry,
		commandsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shroomhub_commands_dispatched_total",
			Help: "Commands created per kind",
		}, []string{"kind"}),
		commandOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shroomhub_command_outcomes_total",
			Help: "Device-reported terminal command outcomes",
		}, []string{"status"}),
		readingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shroomhub_readings_ingested_total",
			Help: "Sensor readings persisted",
		}),
		readingsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shroomhub_readings_pruned_total",
			Help: "Sensor readings removed by retention",
		}),
		settingsSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shroomhub_settings_saves_total",
			Help: "Settings save attempts per combined outcome",
		}, []string{"result"}),
		realtimeConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shroomhub_realtime_connected",
			Help: "1 while the realtime channel is connected",
		}),
	}

	registry.MustRegister(
		s.commandsDispatched,
		s.commandOutcomes,
		s.readingsIngested,
		s.readingsPruned,
		s.settingsSaves,
		s.realtimeConnected,
	)
	return s
}

// Handler exposes the metrics endpoint
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Service) CommandDispatched(kind string) {
	s.commandsDispatched.WithLabelValues(kind).Inc()
}

func (s *Service) CommandOutcome(status string) {
	s.commandOutcomes.WithLabelValues(status).Inc()
}

func (s *Service) ReadingIngested() {
	s.readingsIngested.Inc()
}

func (s *Service) ReadingsPruned(count int64) {
	s.readingsPruned.Add(float64(count))
}

func (s *Service) SettingsSave(result string) {
	s.settingsSaves.WithLabelValues(result).Inc()
}

func (s *Service) SetRealtimeConnected(connected bool) {
	if connected {
		s.realtimeConnected.Set(1)
		return
	}
	s.realtimeConnected.Set(0)
}

// RecordEvent records a monitored event with labels
func (s *Service) RecordEvent(eventName string, labels map[string]string) {
	nuts.L.Infof("[Monitoring] Event %s with labels: %v", eventName, labels)
}
