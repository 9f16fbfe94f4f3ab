package services

import (
	"context"
	"time"

	"sos-bknd/internal/models"

	"github.com/google/uuid"
)

// Directory is the user/volunteer side of the system: identity lookups for the
// auth middleware and geo queries over volunteers for candidate selection.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	CheckTokenVersion(ctx context.Context, userID uuid.UUID, tokenVersion int) (bool, error)

	// FindWithinRadius returns up to limit matching volunteers within
	// radiusMeters of p, nearest first.
	FindWithinRadius(ctx context.Context, p models.Location, radiusMeters float64, filter models.CandidateFilter, limit int) ([]models.VolunteerCandidate, error)
	// FindNearest returns the limit matching volunteers closest to p with no radius cap.
	FindNearest(ctx context.Context, p models.Location, filter models.CandidateFilter, limit int) ([]models.VolunteerCandidate, error)

	UpdateLocation(ctx context.Context, userID uuid.UUID, loc models.Location) error
	// UpdatePushToken stores the device token; an empty token clears it.
	UpdatePushToken(ctx context.Context, userID uuid.UUID, token string) error
}

// MutateFunc edits an alert in place. Returning an error aborts the write.
type MutateFunc func(alert *models.SOSAlert) error

// AlertStore persists SOS alerts. Mutate is the only write path after Create
// and is atomic per alert: fn sees the latest committed state and its result
// is written only if nobody else wrote in between.
type AlertStore interface {
	Create(ctx context.Context, alert *models.SOSAlert) error
	Get(ctx context.Context, id uuid.UUID) (*models.SOSAlert, error)
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.SOSAlert, error)
	ListByVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]models.SOSAlert, error)
	ListByCitizen(ctx context.Context, citizenID uuid.UUID) ([]models.SOSAlert, error)
	// CountAwaiting counts notified alerts nobody has picked up since before.
	CountAwaiting(ctx context.Context, before time.Time) (int, error)
}

// awaitingStatuses are the aggregate states with volunteers notified but none
// yet on the way.
var awaitingStatuses = []models.AlertStatus{
	models.AlertVolunteersNotified,
	models.AlertNotificationFailed,
}
