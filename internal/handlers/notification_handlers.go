package handlers

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fleetwear/internal/events"
	"fleetwear/internal/logging"
	"fleetwear/internal/notify"
)

// secretMask replaces URL credentials in responses. A submitted URL that
// still contains it keeps the stored URL.
const secretMask = "****"

type serviceRequest struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	Enabled          bool   `json:"enabled"`
	NotifyOnCritical bool   `json:"notify_on_critical"`
	NotifyOnWarning  bool   `json:"notify_on_warning"`
	NotifyOnRecovery bool   `json:"notify_on_recovery"`
}

func (req serviceRequest) service() *notify.Service {
	return &notify.Service{
		Name:             strings.TrimSpace(req.Name),
		URL:              strings.TrimSpace(req.URL),
		Enabled:          req.Enabled,
		NotifyOnCritical: req.NotifyOnCritical,
		NotifyOnWarning:  req.NotifyOnWarning,
		NotifyOnRecovery: req.NotifyOnRecovery,
	}
}

// ─── Service CRUD ────────────────────────────────────────────────────────

// ListNotificationServices returns all configured services.
// GET /api/notifications/services
func (a *API) ListNotificationServices(w http.ResponseWriter, r *http.Request) {
	services, err := notify.ListServices(a.DB)
	if err != nil {
		lg := logging.Component("http")
		lg.Error().Err(err).Msg("list notification services")
		JSONError(w, "Failed to list services", http.StatusInternalServerError)
		return
	}
	if services == nil {
		services = []notify.Service{}
	}
	for i := range services {
		services[i].URL = maskURL(services[i].URL)
	}
	JSONResponse(w, services)
}

// GetNotificationService returns a single service with its rules and quiet
// hours. Credentials in the URL are masked.
// GET /api/notifications/services/{id}
func (a *API) GetNotificationService(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.loadService(w, r)
	if !ok {
		return
	}

	rules, err := notify.GetEventRules(a.DB, svc.ID)
	if err != nil {
		JSONError(w, "Failed to get event rules", http.StatusInternalServerError)
		return
	}
	qh, err := notify.GetQuietHours(a.DB, svc.ID)
	if err != nil {
		JSONError(w, "Failed to get quiet hours", http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []notify.EventRule{}
	}

	svc.URL = maskURL(svc.URL)
	JSONResponse(w, map[string]any{
		"service":     svc,
		"event_rules": rules,
		"quiet_hours": qh,
	})
}

// CreateNotificationService adds a new service.
// POST /api/notifications/services
func (a *API) CreateNotificationService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		JSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	svc := req.service()
	if svc.Name == "" {
		JSONError(w, "name is required", http.StatusBadRequest)
		return
	}
	if err := notify.ValidateURL(svc.URL); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := notify.CreateService(a.DB, svc)
	if err != nil {
		lg := logging.Component("http")
		lg.Error().Err(err).Msg("create notification service")
		JSONError(w, "Failed to create service", http.StatusInternalServerError)
		return
	}
	svc.ID = id

	lg := logging.Component("http")
	lg.Info().Int64("id", id).Str("name", svc.Name).Msg("notification service created")
	svc.URL = maskURL(svc.URL)
	JSONStatus(w, http.StatusCreated, svc)
}

// UpdateNotificationService modifies a service.
// PUT /api/notifications/services/{id}
func (a *API) UpdateNotificationService(w http.ResponseWriter, r *http.Request) {
	existing, ok := a.loadService(w, r)
	if !ok {
		return
	}

	var req serviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		JSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	svc := req.service()
	svc.ID = existing.ID
	if svc.Name == "" {
		svc.Name = existing.Name
	}
	if svc.URL == "" || strings.Contains(svc.URL, secretMask) {
		svc.URL = existing.URL
	} else if err := notify.ValidateURL(svc.URL); err != nil {
		JSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := notify.UpdateService(a.DB, svc); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			JSONError(w, "Service not found", http.StatusNotFound)
			return
		}
		lg := logging.Component("http")
		lg.Error().Err(err).Msg("update notification service")
		JSONError(w, "Failed to update service", http.StatusInternalServerError)
		return
	}

	svc.URL = maskURL(svc.URL)
	JSONResponse(w, svc)
}

// DeleteNotificationService removes a service.
// DELETE /api/notifications/services/{id}
func (a *API) DeleteNotificationService(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		JSONError(w, "Invalid service ID", http.StatusBadRequest)
		return
	}
	if err := notify.DeleteService(a.DB, id); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			JSONError(w, "Service not found", http.StatusNotFound)
			return
		}
		lg := logging.Component("http")
		lg.Error().Err(err).Msg("delete notification service")
		JSONError(w, "Failed to delete service", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "deleted"})
}

// ─── Rules & quiet hours ─────────────────────────────────────────────────

// UpdateEventRules replaces the per-event rules of a service.
// PUT /api/notifications/services/{id}/rules
func (a *API) UpdateEventRules(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.loadService(w, r)
	if !ok {
		return
	}

	var rules []notify.EventRule
	if err := decodeJSON(w, r, &rules); err != nil {
		JSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if seen[rule.EventType] {
			JSONError(w, "Duplicate event type: "+rule.EventType, http.StatusBadRequest)
			return
		}
		seen[rule.EventType] = true
		if !knownEventType(rule.EventType) {
			JSONError(w, "Unknown event type: "+rule.EventType, http.StatusBadRequest)
			return
		}
		if rule.CooldownSecs < 0 {
			JSONError(w, "cooldown_secs must not be negative", http.StatusBadRequest)
			return
		}
	}
	if err := notify.ReplaceEventRules(a.DB, svc.ID, rules); err != nil {
		lg := logging.Component("http")
		lg.Error().Err(err).Int64("service_id", svc.ID).Msg("replace event rules")
		JSONError(w, "Failed to save event rules", http.StatusInternalServerError)
		return
	}

	saved, err := notify.GetEventRules(a.DB, svc.ID)
	if err != nil {
		JSONError(w, "Failed to get event rules", http.StatusInternalServerError)
		return
	}
	if saved == nil {
		saved = []notify.EventRule{}
	}
	JSONResponse(w, saved)
}

// UpdateQuietHours sets the quiet-hours window of a service.
// PUT /api/notifications/services/{id}/quiet-hours
func (a *API) UpdateQuietHours(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.loadService(w, r)
	if !ok {
		return
	}

	var qh notify.QuietHours
	if err := decodeJSON(w, r, &qh); err != nil {
		JSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if !validHHMM(qh.StartTime) || !validHHMM(qh.EndTime) {
		JSONError(w, "start_time and end_time must be HH:MM", http.StatusBadRequest)
		return
	}
	qh.ServiceID = svc.ID
	if err := notify.SetQuietHours(a.DB, &qh); err != nil {
		JSONError(w, "Failed to save quiet hours", http.StatusInternalServerError)
		return
	}

	saved, err := notify.GetQuietHours(a.DB, svc.ID)
	if err != nil {
		JSONError(w, "Failed to get quiet hours", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, saved)
}

// ClearQuietHours removes the quiet-hours window of a service.
// DELETE /api/notifications/services/{id}/quiet-hours
func (a *API) ClearQuietHours(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.loadService(w, r)
	if !ok {
		return
	}
	if err := notify.ClearQuietHours(a.DB, svc.ID); err != nil {
		JSONError(w, "Failed to clear quiet hours", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "cleared"})
}

// ─── Test fire & history ─────────────────────────────────────────────────

// TestNotificationService sends a test message through a service.
// POST /api/notifications/services/{id}/test
func (a *API) TestNotificationService(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.loadService(w, r)
	if !ok {
		return
	}

	msg := notify.FormatMessage(events.Event{
		Severity: events.SeverityInfo,
		Message:  "fleetwear test notification from " + svc.Name,
	})
	rec := &notify.Record{
		ServiceID: svc.ID,
		EventType: "test",
		Message:   msg,
	}

	if err := a.sender().Send(svc.URL, msg); err != nil {
		rec.Status = notify.StatusFailed
		rec.ErrorMessage = err.Error()
		notify.RecordNotification(a.DB, rec)
		JSONError(w, "Test notification failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	rec.Status = notify.StatusSent
	rec.SentAt = time.Now().UTC()
	notify.RecordNotification(a.DB, rec)

	JSONResponse(w, map[string]string{"status": "sent"})
}

// NotificationHistory returns recent delivery attempts, optionally filtered
// by service, vehicle or status.
// GET /api/notifications/history?limit=50&service_id=&vehicle_id=&status=
func (a *API) NotificationHistory(w http.ResponseWriter, r *http.Request) {
	q := notify.HistoryQuery{
		ServiceID: int64(queryInt(r, "service_id", 0, math.MaxInt32)),
		VehicleID: r.URL.Query().Get("vehicle_id"),
		Status:    r.URL.Query().Get("status"),
		Limit:     queryInt(r, "limit", 50, 500),
	}
	records, err := notify.History(a.DB, q)
	if err != nil {
		JSONError(w, "Failed to get notification history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []notify.Record{}
	}
	JSONResponse(w, records)
}

// ─── Helpers ─────────────────────────────────────────────────────────────

func (a *API) loadService(w http.ResponseWriter, r *http.Request) (*notify.Service, bool) {
	id, err := parseID(r, "id")
	if err != nil {
		JSONError(w, "Invalid service ID", http.StatusBadRequest)
		return nil, false
	}
	svc, err := notify.GetService(a.DB, id)
	if err != nil {
		lg := logging.Component("http")
		lg.Error().Err(err).Msg("get notification service")
		JSONError(w, "Failed to get service", http.StatusInternalServerError)
		return nil, false
	}
	if svc == nil {
		JSONError(w, "Service not found", http.StatusNotFound)
		return nil, false
	}
	return svc, true
}

// maskURL hides the userinfo part of a Shoutrrr URL, which carries tokens
// and passwords for most services.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(secretMask)
	return u.String()
}

func knownEventType(t string) bool {
	switch events.EventType(t) {
	case events.WearWarning, events.WearCritical, events.WearRecovered,
		events.ScanCompleted, events.ScanFailed:
		return true
	}
	return false
}

func validHHMM(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
