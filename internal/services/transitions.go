package services

import (
	"sos-bknd/internal/models"

	"github.com/google/uuid"
)

// aggregateInput is everything the aggregate recompute may look at.
type aggregateInput struct {
	Current  models.AlertStatus
	Reported models.ResponseStatus
	// Others holds every response on the alert except the reporter's.
	Others []models.VolunteerResponse
}

type aggregateRule func(in aggregateInput) models.AlertStatus

// aggregateRules maps each reported volunteer status to the aggregate alert
// status it produces. Every ResponseStatus has exactly one entry.
var aggregateRules = map[models.ResponseStatus]aggregateRule{
	models.ResponseNotified:     keepStatus,
	models.ResponseAcknowledged: keepStatus,
	models.ResponseEnRoute: func(in aggregateInput) models.AlertStatus {
		// someone already on site outranks someone on the way
		if in.Current == models.AlertAssistanceInProgress {
			return in.Current
		}
		return models.AlertAssistanceEnRoute
	},
	models.ResponseAssisting: func(aggregateInput) models.AlertStatus {
		return models.AlertAssistanceInProgress
	},
	models.ResponseUnableToAssist: keepStatus,
	models.ResponseResolvedByVolunteer: func(in aggregateInput) models.AlertStatus {
		for _, o := range in.Others {
			if o.ResponseStatus.IsActive() {
				return in.Current
			}
		}
		return models.AlertResolved
	},
}

func keepStatus(in aggregateInput) models.AlertStatus {
	return in.Current
}

// NextAlertStatus derives the aggregate status after one volunteer reports.
// Terminal statuses never change.
func NextAlertStatus(in aggregateInput) models.AlertStatus {
	if in.Current.IsTerminal() {
		return in.Current
	}
	rule, ok := aggregateRules[in.Reported]
	if !ok {
		return in.Current
	}
	return rule(in)
}

// othersOf returns every response except volunteerID's.
func othersOf(responses []models.VolunteerResponse, volunteerID uuid.UUID) []models.VolunteerResponse {
	out := make([]models.VolunteerResponse, 0, len(responses))
	for _, r := range responses {
		if r.VolunteerID == volunteerID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// allUnable reports whether every notified volunteer has declined.
func allUnable(responses []models.VolunteerResponse) bool {
	if len(responses) == 0 {
		return false
	}
	for _, r := range responses {
		if r.ResponseStatus != models.ResponseUnableToAssist {
			return false
		}
	}
	return true
}
