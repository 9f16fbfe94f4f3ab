package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AlertStatus is the aggregate lifecycle state of an SOS alert.
type AlertStatus string

const (
	AlertPending              AlertStatus = "Pending"
	AlertVolunteersNotified   AlertStatus = "VolunteersNotified"
	AlertNotificationFailed   AlertStatus = "NotificationFailed"
	AlertUnattended           AlertStatus = "Unattended"
	AlertAssistanceEnRoute    AlertStatus = "AssistanceEnRoute"
	AlertAssistanceInProgress AlertStatus = "AssistanceInProgress"
	AlertResolved             AlertStatus = "Resolved"
)

// AlertStatuses lists every aggregate status in lifecycle order.
var AlertStatuses = []AlertStatus{
	AlertPending,
	AlertVolunteersNotified,
	AlertNotificationFailed,
	AlertUnattended,
	AlertAssistanceEnRoute,
	AlertAssistanceInProgress,
	AlertResolved,
}

// IsTerminal reports whether no further transition happens from s.
func (s AlertStatus) IsTerminal() bool {
	return s == AlertUnattended || s == AlertResolved
}

// HasVolunteers reports whether an alert in status s carries notified volunteers.
func (s AlertStatus) HasVolunteers() bool {
	return s != AlertPending && s != AlertUnattended
}

// ResponseStatus is one volunteer's own progress on an alert.
type ResponseStatus string

const (
	ResponseNotified            ResponseStatus = "Notified"
	ResponseAcknowledged        ResponseStatus = "Acknowledged"
	ResponseEnRoute             ResponseStatus = "EnRoute"
	ResponseAssisting           ResponseStatus = "Assisting"
	ResponseUnableToAssist      ResponseStatus = "UnableToAssist"
	ResponseResolvedByVolunteer ResponseStatus = "ResolvedByVolunteer"
)

// ResponseStatuses lists every volunteer response status.
var ResponseStatuses = []ResponseStatus{
	ResponseNotified,
	ResponseAcknowledged,
	ResponseEnRoute,
	ResponseAssisting,
	ResponseUnableToAssist,
	ResponseResolvedByVolunteer,
}

// ParseResponseStatus maps a wire value onto the closed enum.
func ParseResponseStatus(s string) (ResponseStatus, bool) {
	for _, rs := range ResponseStatuses {
		if string(rs) == s {
			return rs, true
		}
	}
	return "", false
}

// IsActive reports whether the volunteer is currently on the way or on site.
func (s ResponseStatus) IsActive() bool {
	return s == ResponseEnRoute || s == ResponseAssisting
}

// VolunteerResponse is embedded in SOSAlert, one entry per notified volunteer.
type VolunteerResponse struct {
	VolunteerID       uuid.UUID      `json:"volunteer_id"`
	VolunteerName     string         `json:"volunteer_name"`
	PushAddress       string         `json:"push_address,omitempty"`
	ResponseStatus    ResponseStatus `json:"response_status"`
	ResponseTimestamp time.Time      `json:"response_timestamp"`
}

// SOSAlert is one triggered emergency. Alerts are never deleted.
type SOSAlert struct {
	bun.BaseModel `bun:"table:sos_alerts,alias:sa"`

	ID                  uuid.UUID           `bun:"id,pk,type:uuid" json:"id"`
	CitizenID           uuid.UUID           `bun:"citizen_id,type:uuid,notnull" json:"citizen_id"`
	CitizenName         string              `bun:"citizen_name,notnull" json:"citizen_name"`
	Latitude            float64             `bun:"latitude,notnull" json:"latitude"`
	Longitude           float64             `bun:"longitude,notnull" json:"longitude"`
	Message             *string             `bun:"message" json:"message,omitempty"`
	Status              AlertStatus         `bun:"status,notnull" json:"status"`
	RespondedVolunteers []VolunteerResponse `bun:"responded_volunteers,type:jsonb,notnull" json:"responded_volunteers"`
	Version             int                 `bun:"version,notnull" json:"-"`
	CreatedAt           time.Time           `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt           time.Time           `bun:"updated_at,notnull" json:"updated_at"`
}

// CitizenLocation returns the point the alert was searched around.
func (a *SOSAlert) CitizenLocation() Location {
	return Location{Latitude: a.Latitude, Longitude: a.Longitude}
}

// Response returns the entry for volunteerID, or nil if that volunteer was never notified.
func (a *SOSAlert) Response(volunteerID uuid.UUID) *VolunteerResponse {
	for i := range a.RespondedVolunteers {
		if a.RespondedVolunteers[i].VolunteerID == volunteerID {
			return &a.RespondedVolunteers[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (a *SOSAlert) Clone() *SOSAlert {
	c := *a
	if a.Message != nil {
		msg := *a.Message
		c.Message = &msg
	}
	c.RespondedVolunteers = make([]VolunteerResponse, len(a.RespondedVolunteers))
	copy(c.RespondedVolunteers, a.RespondedVolunteers)
	return &c
}

// Redacted returns a copy safe to hand to API clients: volunteer push
// addresses stay server side.
func (a *SOSAlert) Redacted() *SOSAlert {
	c := a.Clone()
	for i := range c.RespondedVolunteers {
		c.RespondedVolunteers[i].PushAddress = ""
	}
	return c
}
