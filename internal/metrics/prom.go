// Package metrics exposes wear and scanner state as Prometheus collectors.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fleetwear/internal/wearout"
)

// PromSink records wear readings, scans and notification outcomes.
type PromSink struct {
	wear          *prometheus.GaugeVec
	severity      *prometheus.GaugeVec
	scans         *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	vehicles      prometheus.Gauge
	notifications *prometheus.CounterVec
}

// NewPromSink registers the collectors on reg. If reg is nil, the default
// registerer is used. Collectors that are already registered are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		wear: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetwear_wear_percentage",
			Help: "Remaining health of a wear reading in percent",
		}, []string{"kind", "vehicle_id", "metric"}),
		severity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetwear_wear_severity",
			Help: "Severity of a wear reading (0 ok, 1 warning, 2 critical)",
		}, []string{"kind", "vehicle_id", "metric"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwear_scans_total",
			Help: "Total number of fleet scans by result",
		}, []string{"result"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetwear_scan_duration_seconds",
			Help:    "Duration of fleet scans",
			Buckets: prometheus.DefBuckets,
		}),
		vehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleetwear_vehicles_assessed",
			Help: "Number of vehicles assessed in the last scan",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetwear_notifications_total",
			Help: "Total number of notification attempts by status",
		}, []string{"status"}),
	}

	var err error
	if s.wear, err = register(reg, s.wear); err != nil {
		return nil, err
	}
	if s.severity, err = register(reg, s.severity); err != nil {
		return nil, err
	}
	if s.scans, err = register(reg, s.scans); err != nil {
		return nil, err
	}
	if s.scanDuration, err = register(reg, s.scanDuration); err != nil {
		return nil, err
	}
	if s.vehicles, err = register(reg, s.vehicles); err != nil {
		return nil, err
	}
	if s.notifications, err = register(reg, s.notifications); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordWear sets the gauges for every reading that carries data.
func (s *PromSink) RecordWear(v wearout.VehicleWear) {
	for _, r := range v.Readings {
		if r.Mode == wearout.ModeNone {
			continue
		}
		s.wear.WithLabelValues(v.Kind, v.ID, r.Metric).Set(r.Percentage)
		s.severity.WithLabelValues(v.Kind, v.ID, r.Metric).Set(float64(r.Severity.Rank()))
	}
}

// RecordScan counts a finished scan and observes its duration.
func (s *PromSink) RecordScan(vehicles int, took time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	} else {
		s.vehicles.Set(float64(vehicles))
	}
	s.scans.WithLabelValues(result).Inc()
	s.scanDuration.Observe(took.Seconds())
}

// RecordNotification counts a notification attempt.
func (s *PromSink) RecordNotification(status string) {
	s.notifications.WithLabelValues(status).Inc()
}
