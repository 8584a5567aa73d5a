package notify

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"

	"fleetwear/internal/events"
	"fleetwear/internal/logging"
)

// queueSize bounds the events waiting for delivery. Publishers never block;
// overflow is dropped and logged.
const queueSize = 256

// Sender delivers one message to a shoutrrr URL.
type Sender interface {
	Send(shoutrrrURL, message string) error
}

// ShoutrrrSender is the production Sender.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(shoutrrrURL, message string) error {
	if err := shoutrrr.Send(shoutrrrURL, message); err != nil {
		return fmt.Errorf("shoutrrr send: %w", err)
	}
	return nil
}

// ValidateURL checks that shoutrrr recognises the service URL.
func ValidateURL(shoutrrrURL string) error {
	if shoutrrrURL == "" {
		return errors.New("url is required")
	}
	if _, err := shoutrrr.CreateSender(shoutrrrURL); err != nil {
		return fmt.Errorf("invalid notification url: %w", err)
	}
	return nil
}

// Recorder observes dispatch outcomes.
type Recorder interface {
	RecordNotification(status string)
}

// cooldownKey identifies one alerting reading for one service.
type cooldownKey struct {
	service int64
	typ     events.EventType
	vehicle string
	metric  string
}

// Dispatcher turns wear events into notifications. Events are queued from
// the bus and delivered by a single goroutine, so a slow notification
// service never stalls the scanner.
type Dispatcher struct {
	db       *sql.DB
	bus      *events.Bus
	sender   Sender
	recorder Recorder
	now      func() time.Time

	queue       chan events.Event
	unsubscribe func()
	stopCh      chan struct{}
	wg          sync.WaitGroup

	mu       sync.Mutex
	lastSent map[cooldownKey]time.Time
}

// NewDispatcher returns a dispatcher for bus that reads its services from
// db. A nil sender uses shoutrrr.
func NewDispatcher(db *sql.DB, bus *events.Bus, sender Sender) *Dispatcher {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Dispatcher{
		db:       db,
		bus:      bus,
		sender:   sender,
		now:      time.Now,
		queue:    make(chan events.Event, queueSize),
		stopCh:   make(chan struct{}),
		lastSent: make(map[cooldownKey]time.Time),
	}
}

// WithRecorder attaches a metrics recorder.
func (d *Dispatcher) WithRecorder(r Recorder) *Dispatcher {
	d.recorder = r
	return d
}

// Start subscribes to the bus and launches the delivery goroutine.
func (d *Dispatcher) Start() {
	d.unsubscribe = d.bus.Subscribe(d.enqueue)
	d.wg.Add(1)
	go d.run()
}

// Stop detaches from the bus, delivers whatever is still queued and waits
// for the delivery goroutine to exit.
func (d *Dispatcher) Stop() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) enqueue(e events.Event) {
	select {
	case d.queue <- e:
	default:
		lg := logging.Component("notify")
		lg.Warn().Str("event_type", string(e.Type)).Str("vehicle_id", e.VehicleID).Msg("notification queue full, event dropped")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.queue:
			d.handle(e)
		case <-d.stopCh:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case e := <-d.queue:
			d.handle(e)
		default:
			return
		}
	}
}

// handle delivers e to every enabled service that does not hold it back.
func (d *Dispatcher) handle(e events.Event) {
	lg := logging.Component("notify")
	services, err := ListEnabledServices(d.db)
	if err != nil {
		lg.Error().Err(err).Msg("list services")
		return
	}

	for _, svc := range services {
		if reason := d.holdBack(svc, e); reason != "" {
			lg.Debug().Str("service", svc.Name).Str("event_type", string(e.Type)).
				Str("vehicle_id", e.VehicleID).Str("reason", reason).Msg("notification suppressed")
			continue
		}
		d.deliver(svc, e)
	}
}

// holdBack names the reason svc should not receive e, or returns "" when
// it should. Checks run cheapest first; the cooldown is claimed last so a
// suppressed event never starts one.
func (d *Dispatcher) holdBack(svc Service, e events.Event) string {
	if !svc.Accepts(e) {
		return "severity"
	}
	if d.quiet(svc.ID, e) {
		return "quiet hours"
	}

	rules, err := GetEventRules(d.db, svc.ID)
	if err != nil {
		lg := logging.Component("notify")
		lg.Error().Err(err).Int64("service_id", svc.ID).Msg("load event rules")
		return ""
	}
	rule, ok := ruleFor(rules, e.Type)
	if !ok {
		return ""
	}
	if !rule.Enabled {
		return "rule disabled"
	}
	if !d.claimCooldown(svc.ID, e, rule.Cooldown()) {
		return "cooldown"
	}
	return ""
}

// quiet reports whether svc's quiet hours cover now. Critical events always
// go out.
func (d *Dispatcher) quiet(serviceID int64, e events.Event) bool {
	if e.Severity == events.SeverityCritical {
		return false
	}
	qh, err := GetQuietHours(d.db, serviceID)
	if err != nil || qh == nil {
		return false
	}
	return qh.Covers(d.now())
}

// claimCooldown records a send for the reading behind e and reports false
// when the previous one is more recent than cd.
func (d *Dispatcher) claimCooldown(serviceID int64, e events.Event, cd time.Duration) bool {
	if cd <= 0 {
		return true
	}
	key := cooldownKey{service: serviceID, typ: e.Type, vehicle: e.VehicleID, metric: e.Metric}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < cd {
		return false
	}
	d.lastSent[key] = now
	return true
}

func ruleFor(rules []EventRule, typ events.EventType) (EventRule, bool) {
	for _, r := range rules {
		if r.EventType == string(typ) {
			return r, true
		}
	}
	return EventRule{}, false
}

// deliver sends e to svc and writes the attempt to notification_history.
func (d *Dispatcher) deliver(svc Service, e events.Event) {
	lg := logging.Component("notify")
	rec := &Record{
		ServiceID: svc.ID,
		EventID:   e.ID,
		EventType: string(e.Type),
		VehicleID: e.VehicleID,
		Message:   FormatMessage(e),
		Status:    StatusSent,
	}

	if err := d.sender.Send(svc.URL, rec.Message); err != nil {
		rec.Status = StatusFailed
		rec.ErrorMessage = err.Error()
		lg.Warn().Err(err).Str("service", svc.Name).Msg("send failed")
	} else {
		rec.SentAt = d.now().UTC()
		lg.Debug().Str("service", svc.Name).Str("event_type", rec.EventType).Msg("notification sent")
	}

	if d.recorder != nil {
		d.recorder.RecordNotification(rec.Status)
	}
	if _, err := RecordNotification(d.db, rec); err != nil {
		lg.Error().Err(err).Int64("service_id", svc.ID).Msg("record notification history")
	}
}

// FormatMessage renders the text sent for e, prefixed with its severity and,
// when known, the vehicle name.
func FormatMessage(e events.Event) string {
	if e.VehicleName == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] [%s] %s", e.Severity, e.VehicleName, e.Message)
}
