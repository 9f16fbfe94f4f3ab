package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"sos-bknd/internal/metrics"
	"sos-bknd/internal/models"
	"sos-bknd/internal/push"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trigger outcomes reported to the citizen.
const (
	OutcomeNoVolunteers            = "no_volunteers"
	OutcomeAllNotified             = "all_notified"
	OutcomeSomeNotificationsFailed = "some_notifications_failed"
)

const maxMessageLength = 500

// DispatchConfig holds the fixed tuning constants of the engine.
type DispatchConfig struct {
	MaxCandidates      int
	SearchRadiusMeters float64
	AlertLinkBase      string
	NotifyTimeout      time.Duration
}

// TriggerRequest is the citizen's SOS payload. Coordinates are pointers so a
// missing key is distinguishable from 0.
type TriggerRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Message   *string `json:"message,omitempty"`
}

// TriggerResult tells the citizen what happened to their alert.
type TriggerResult struct {
	AlertID  uuid.UUID          `json:"alert_id"`
	Outcome  string             `json:"outcome"`
	Status   models.AlertStatus `json:"status"`
	Notified int                `json:"notified"`
	Failed   int                `json:"failed"`
}

// DispatchService turns citizen SOS triggers into volunteer notifications and
// tracks the volunteers' responses.
type DispatchService struct {
	directory Directory
	alerts    AlertStore
	notifier  push.Notifier
	cfg       DispatchConfig
	metrics   *metrics.Dispatch
	logr      *zap.Logger
	now       func() time.Time
}

func NewDispatchService(directory Directory, alerts AlertStore, notifier push.Notifier, cfg DispatchConfig, m *metrics.Dispatch, logr *zap.Logger) *DispatchService {
	if m == nil {
		m = metrics.NewDispatch()
	}
	return &DispatchService{
		directory: directory,
		alerts:    alerts,
		notifier:  notifier,
		cfg:       cfg,
		metrics:   m,
		logr:      logr,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TriggerSOS records a new alert for the calling citizen and notifies up to
// MaxCandidates volunteers. Individual push failures are folded into the
// alert status; only validation, lookup and persistence errors are returned.
func (s *DispatchService) TriggerSOS(ctx context.Context, caller models.Identity, req TriggerRequest) (*TriggerResult, error) {
	if !caller.Authenticated() {
		return nil, notAuthenticated("missing citizen identity")
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, invalidInput("latitude and longitude are required")
	}
	loc := models.Location{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if !loc.Valid() {
		return nil, invalidInput("latitude and longitude must be finite coordinates in range")
	}
	msg, err := normalizeMessage(req.Message)
	if err != nil {
		return nil, err
	}

	citizen, err := s.directory.GetUser(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, notAuthenticated("unknown citizen")
		}
		return nil, dependencyFailure("failed to load citizen", err)
	}
	if citizen.Role != models.RoleCitizen {
		return nil, invalidInput("only citizens can trigger an SOS, caller role is %q", citizen.Role)
	}

	// Selection runs before the alert exists so a failed query leaves no record.
	candidates, phase, err := SelectCandidates(ctx, s.directory, loc, s.cfg.MaxCandidates, s.cfg.SearchRadiusMeters)
	if err != nil {
		return nil, dependencyFailure("candidate selection failed", err)
	}
	s.metrics.Selection(string(phase))

	now := s.now()
	alert := &models.SOSAlert{
		ID:                  uuid.New(),
		CitizenID:           citizen.ID,
		CitizenName:         citizen.Name,
		Latitude:            loc.Latitude,
		Longitude:           loc.Longitude,
		Message:             msg,
		Status:              models.AlertPending,
		RespondedVolunteers: []models.VolunteerResponse{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, dependencyFailure("failed to create sos alert", err)
	}

	log := s.logr.With(
		zap.String("alert_id", alert.ID.String()),
		zap.String("citizen_id", citizen.ID.String()),
	)
	log.Info("sos alert created",
		zap.String("selection_phase", string(phase)),
		zap.Int("candidates", len(candidates)))

	// The request may go away; the fan-out and its bookkeeping must not.
	ctx = context.WithoutCancel(ctx)

	if len(candidates) == 0 {
		if _, err := s.recordNotifyOutcome(ctx, alert.ID, models.AlertUnattended, nil); err != nil {
			return nil, dependencyFailure("failed to record unattended alert", err)
		}
		log.Warn("no volunteers available for sos alert")
		s.metrics.Trigger(OutcomeNoVolunteers)
		return &TriggerResult{AlertID: alert.ID, Outcome: OutcomeNoVolunteers, Status: models.AlertUnattended}, nil
	}

	results := fanOut(ctx, s.notifier, s.cfg.NotifyTimeout, candidates, func(c models.VolunteerCandidate) push.Message {
		return s.buildMessage(alert)
	})

	responses := make([]models.VolunteerResponse, 0, len(results))
	failed := 0
	for _, r := range results {
		s.metrics.Notification(r.Err == nil, r.Duration.Seconds())
		if r.Err != nil {
			failed++
			log.Warn("sos push failed",
				zap.String("volunteer_id", r.Candidate.ID.String()),
				zap.Bool("stale_token", push.IsInvalidTokenError(r.Err)),
				zap.Error(r.Err))
		}
		// Every candidate is on record, delivered or not.
		responses = append(responses, models.VolunteerResponse{
			VolunteerID:       r.Candidate.ID,
			VolunteerName:     r.Candidate.Name,
			PushAddress:       r.Candidate.PushAddress,
			ResponseStatus:    models.ResponseNotified,
			ResponseTimestamp: now,
		})
	}

	status, outcome := models.AlertVolunteersNotified, OutcomeAllNotified
	if failed > 0 {
		status, outcome = models.AlertNotificationFailed, OutcomeSomeNotificationsFailed
	}

	if _, err := s.recordNotifyOutcome(ctx, alert.ID, status, responses); err != nil {
		return nil, dependencyFailure("failed to record notification outcome", err)
	}

	log.Info("sos alert dispatched",
		zap.String("status", string(status)),
		zap.Int("notified", len(responses)-failed),
		zap.Int("failed", failed))
	s.metrics.Trigger(outcome)

	return &TriggerResult{
		AlertID:  alert.ID,
		Outcome:  outcome,
		Status:   status,
		Notified: len(responses) - failed,
		Failed:   failed,
	}, nil
}

// recordNotifyOutcome performs the single post-trigger write. It only applies
// to a Pending alert, which keeps the notified set fixed once written.
func (s *DispatchService) recordNotifyOutcome(ctx context.Context, alertID uuid.UUID, status models.AlertStatus, responses []models.VolunteerResponse) (*models.SOSAlert, error) {
	if responses == nil {
		responses = []models.VolunteerResponse{}
	}
	return s.alerts.Mutate(ctx, alertID, func(a *models.SOSAlert) error {
		if a.Status != models.AlertPending {
			return fmt.Errorf("alert %s already dispatched with status %s", a.ID, a.Status)
		}
		a.Status = status
		a.RespondedVolunteers = responses
		return nil
	})
}

func (s *DispatchService) buildMessage(alert *models.SOSAlert) push.Message {
	body := alert.CitizenName + " needs urgent help"
	if alert.Message != nil {
		body += ": " + *alert.Message
	}
	link := fmt.Sprintf("%s/volunteer/alerts/%s", s.cfg.AlertLinkBase, alert.ID)
	return push.Message{
		Title:     "SOS Alert Nearby",
		Body:      body,
		ClickLink: link,
		Data: map[string]string{
			"type":    "sos_alert",
			"alertId": alert.ID.String(),
		},
	}
}

// UpdateResponse records the calling volunteer's new status on an alert and
// recomputes the alert's aggregate status in the same atomic write.
func (s *DispatchService) UpdateResponse(ctx context.Context, caller models.Identity, alertID uuid.UUID, newStatus string) (*models.SOSAlert, error) {
	if !caller.Authenticated() {
		return nil, notAuthenticated("missing volunteer identity")
	}
	reported, ok := models.ParseResponseStatus(newStatus)
	if !ok {
		return nil, invalidInput("unknown response status %q", newStatus)
	}

	var stranded bool
	updated, err := s.alerts.Mutate(ctx, alertID, func(a *models.SOSAlert) error {
		entry := a.Response(caller.UserID)
		if entry == nil {
			return notAuthorized("volunteer was not notified about this alert")
		}
		entry.ResponseStatus = reported
		entry.ResponseTimestamp = s.now()

		a.Status = NextAlertStatus(aggregateInput{
			Current:  a.Status,
			Reported: reported,
			Others:   othersOf(a.RespondedVolunteers, caller.UserID),
		})
		stranded = reported == models.ResponseUnableToAssist && allUnable(a.RespondedVolunteers)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAlertNotFound):
			return nil, notFound("sos alert not found")
		case KindOf(err) != 0:
			return nil, err
		default:
			return nil, dependencyFailure("failed to update volunteer response", err)
		}
	}

	s.metrics.ResponseUpdate(string(reported))
	log := s.logr.With(
		zap.String("alert_id", alertID.String()),
		zap.String("volunteer_id", caller.UserID.String()))
	log.Info("volunteer response updated",
		zap.String("response_status", string(reported)),
		zap.String("alert_status", string(updated.Status)))

	if stranded {
		// No escalation path exists; surface it for an operator to re-drive.
		s.metrics.Stranded()
		log.Warn("every notified volunteer is unable to assist", zap.String("alert_status", string(updated.Status)))
	}

	return updated, nil
}

// VolunteerAlerts lists alerts the caller was notified about, newest first,
// optionally narrowed to the caller's own response statuses.
func (s *DispatchService) VolunteerAlerts(ctx context.Context, caller models.Identity, statuses []string) ([]models.SOSAlert, error) {
	if !caller.Authenticated() {
		return nil, notAuthenticated("missing volunteer identity")
	}
	want := make(map[models.ResponseStatus]bool, len(statuses))
	for _, raw := range statuses {
		if raw == "" {
			continue
		}
		rs, ok := models.ParseResponseStatus(raw)
		if !ok {
			return nil, invalidInput("unknown response status %q", raw)
		}
		want[rs] = true
	}

	alerts, err := s.alerts.ListByVolunteer(ctx, caller.UserID)
	if err != nil {
		return nil, dependencyFailure("failed to list volunteer alerts", err)
	}
	if len(want) == 0 {
		return alerts, nil
	}

	filtered := make([]models.SOSAlert, 0, len(alerts))
	for i := range alerts {
		if r := alerts[i].Response(caller.UserID); r != nil && want[r.ResponseStatus] {
			filtered = append(filtered, alerts[i])
		}
	}
	return filtered, nil
}

// CitizenAlerts lists the caller's own alerts, newest first.
func (s *DispatchService) CitizenAlerts(ctx context.Context, caller models.Identity) ([]models.SOSAlert, error) {
	if !caller.Authenticated() {
		return nil, notAuthenticated("missing citizen identity")
	}
	alerts, err := s.alerts.ListByCitizen(ctx, caller.UserID)
	if err != nil {
		return nil, dependencyFailure("failed to list citizen alerts", err)
	}
	return alerts, nil
}

// GetAlert returns one alert to its citizen, its notified volunteers or an admin.
func (s *DispatchService) GetAlert(ctx context.Context, caller models.Identity, alertID uuid.UUID) (*models.SOSAlert, error) {
	if !caller.Authenticated() {
		return nil, notAuthenticated("missing identity")
	}
	alert, err := s.alerts.Get(ctx, alertID)
	if err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			return nil, notFound("sos alert not found")
		}
		return nil, dependencyFailure("failed to load sos alert", err)
	}
	if caller.Role != models.RoleAdmin && alert.CitizenID != caller.UserID && alert.Response(caller.UserID) == nil {
		return nil, notAuthorized("caller is not part of this alert")
	}
	return alert, nil
}

func normalizeMessage(msg *string) (*string, error) {
	if msg == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*msg)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > maxMessageLength {
		return nil, invalidInput("message must be at most %d characters", maxMessageLength)
	}
	return &trimmed, nil
}
