// Package monitor periodically assesses the whole fleet, records wear
// history and publishes an event whenever a reading changes tier.
package monitor

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"fleetwear/internal/backend"
	"fleetwear/internal/events"
	"fleetwear/internal/fleet"
	"fleetwear/internal/logging"
	"fleetwear/internal/notify"
	"fleetwear/internal/wearout"
)

// FleetSource is the subset of the backend client the scanner reads from.
type FleetSource interface {
	Trucks(ctx context.Context, s backend.Session) ([]fleet.Truck, error)
	Trailers(ctx context.Context, s backend.Session) ([]fleet.Trailer, error)
	Tires(ctx context.Context, s backend.Session) ([]fleet.Tire, error)
	MaintenanceConfig(ctx context.Context, s backend.Session) (fleet.MaintenanceConfig, error)
}

// Sink receives scan results for metrics.
type Sink interface {
	RecordWear(v wearout.VehicleWear)
	RecordScan(vehicles int, took time.Duration, err error)
}

// Options tune a Scanner.
type Options struct {
	Interval      time.Duration
	RetentionDays int
	// Fallback fills service intervals the backend leaves unset.
	Fallback fleet.MaintenanceConfig
	Sink     Sink
}

// Scanner runs fleet scans against a backend with a service session.
type Scanner struct {
	db      *sql.DB
	bus     *events.Bus
	source  FleetSource
	session backend.Session
	opts    Options
	now     func() time.Time
}

// Report summarises one scan.
type Report struct {
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
	Vehicles    []wearout.VehicleWear `json:"vehicles"`
	Transitions int                   `json:"transitions"`
	Pruned      int64                 `json:"pruned"`
	// PrunedNotifications counts delivery records past retention.
	PrunedNotifications int64 `json:"pruned_notifications"`
}

// New builds a scanner. bus may be nil, in which case no events are published.
func New(db *sql.DB, bus *events.Bus, source FleetSource, session backend.Session, opts Options) *Scanner {
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	return &Scanner{
		db:      db,
		bus:     bus,
		source:  source,
		session: session,
		opts:    opts,
		now:     time.Now,
	}
}

// Run scans immediately and then every Interval until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	lg := logging.Component("monitor")
	lg.Info().Dur("interval", s.opts.Interval).Msg("fleet scanner started")

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
			lg.Error().Err(err).Msg("fleet scan failed")
		}
		select {
		case <-ctx.Done():
			lg.Info().Msg("fleet scanner stopped")
			return
		case <-ticker.C:
		}
	}
}

// ScanOnce fetches the fleet, assesses every vehicle, stores a snapshot of
// each reading that has data and publishes tier changes.
func (s *Scanner) ScanOnce(ctx context.Context) (*Report, error) {
	lg := logging.Component("monitor")
	started := s.now().UTC().Truncate(time.Second)
	report := &Report{StartedAt: started}

	vehicles, err := s.assess(ctx)
	report.Duration = s.now().Sub(started)
	if err != nil {
		s.recordScan(0, report.Duration, err)
		s.publish(events.Event{
			Type:     events.ScanFailed,
			Severity: events.SeverityWarning,
			Message:  fmt.Sprintf("Fleet scan failed: %v", err),
		})
		return nil, err
	}
	report.Vehicles = vehicles

	for _, v := range vehicles {
		n, err := s.record(v, started)
		if err != nil {
			s.recordScan(len(vehicles), report.Duration, err)
			return nil, err
		}
		report.Transitions += n
		if s.opts.Sink != nil {
			s.opts.Sink.RecordWear(v)
		}
	}

	if s.opts.RetentionDays > 0 {
		pruned, err := wearout.PruneHistory(s.db, s.opts.RetentionDays)
		if err != nil {
			lg.Warn().Err(err).Msg("prune wear history")
		}
		report.Pruned = pruned

		sent, err := notify.PruneHistory(s.db, s.opts.RetentionDays)
		if err != nil {
			lg.Warn().Err(err).Msg("prune notification history")
		}
		report.PrunedNotifications = sent
	}

	report.Duration = s.now().Sub(started)
	s.recordScan(len(vehicles), report.Duration, nil)
	s.publish(events.Event{
		Type:     events.ScanCompleted,
		Severity: events.SeverityInfo,
		Message:  fmt.Sprintf("Fleet scan assessed %d vehicles, %d tier changes", len(vehicles), report.Transitions),
		Metadata: map[string]string{
			"vehicles":    strconv.Itoa(len(vehicles)),
			"transitions": strconv.Itoa(report.Transitions),
		},
	})
	lg.Info().Int("vehicles", len(vehicles)).Int("transitions", report.Transitions).
		Dur("took", report.Duration).Msg("fleet scan complete")
	return report, nil
}

func (s *Scanner) assess(ctx context.Context) ([]wearout.VehicleWear, error) {
	trucks, err := s.source.Trucks(ctx, s.session)
	if err != nil {
		return nil, fmt.Errorf("fetch trucks: %w", err)
	}
	tires, err := s.source.Tires(ctx, s.session)
	if err != nil {
		return nil, fmt.Errorf("fetch tires: %w", err)
	}
	lg := logging.Component("monitor")
	// Trailers only label mounted tires, so a failure is not fatal.
	trailers, err := s.source.Trailers(ctx, s.session)
	if err != nil {
		lg.Warn().Err(err).Msg("trailers unavailable, tires keep unlabelled mounts")
	}
	cfg, err := s.source.MaintenanceConfig(ctx, s.session)
	if err != nil {
		lg.Warn().Err(err).Msg("maintenance config unavailable, using configured defaults")
		cfg = fleet.MaintenanceConfig{}
	}
	return wearout.AssessFleet(trucks, trailers, tires, cfg.WithDefaults(s.opts.Fallback)), nil
}

// record stores every reading of v and publishes tier changes against the
// previous snapshot. It returns the number of changes.
func (s *Scanner) record(v wearout.VehicleWear, ts time.Time) (int, error) {
	changes := 0
	for _, r := range v.Readings {
		if r.Mode == wearout.ModeNone {
			continue
		}
		prev, err := wearout.GetLatestSnapshot(s.db, v.Kind, v.ID, r.Metric)
		if err != nil {
			return changes, fmt.Errorf("load previous %s/%s/%s: %w", v.Kind, v.ID, r.Metric, err)
		}
		if err := wearout.StoreSnapshot(s.db, wearout.NewSnapshot(v, r, ts)); err != nil {
			return changes, fmt.Errorf("store %s/%s/%s: %w", v.Kind, v.ID, r.Metric, err)
		}
		if e, ok := transition(v, r, prev); ok {
			s.publish(e)
			changes++
		}
	}
	return changes, nil
}

// transition builds the event for a tier change. A reading seen for the
// first time only raises an event when it is not ok.
func transition(v wearout.VehicleWear, r wearout.Reading, prev *wearout.Snapshot) (events.Event, bool) {
	if prev == nil && r.Severity == wearout.SeverityOK {
		return events.Event{}, false
	}
	if prev != nil && prev.Severity == r.Severity {
		return events.Event{}, false
	}

	e := events.Event{
		VehicleKind: v.Kind,
		VehicleID:   v.ID,
		VehicleName: v.Name,
		Metric:      r.Metric,
		Metadata: map[string]string{
			"percentage": strconv.FormatFloat(r.Percentage, 'f', 1, 64),
			"severity":   string(r.Severity),
		},
	}
	if prev != nil {
		e.Metadata["previous_severity"] = string(prev.Severity)
	}

	switch r.Severity {
	case wearout.SeverityCritical:
		e.Type = events.WearCritical
		e.Severity = events.SeverityCritical
		e.Message = fmt.Sprintf("%s critical at %.0f%% (%s)", r.Label, r.Percentage, r.DisplayValue)
	case wearout.SeverityWarning:
		e.Type = events.WearWarning
		e.Severity = events.SeverityWarning
		e.Message = fmt.Sprintf("%s low at %.0f%% (%s)", r.Label, r.Percentage, r.DisplayValue)
	default:
		e.Type = events.WearRecovered
		e.Severity = events.SeverityInfo
		e.Message = fmt.Sprintf("%s recovered to %.0f%% (%s)", r.Label, r.Percentage, r.DisplayValue)
	}
	return e, true
}

func (s *Scanner) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

func (s *Scanner) recordScan(n int, took time.Duration, err error) {
	if s.opts.Sink != nil {
		s.opts.Sink.RecordScan(n, took, err)
	}
}
