package services

import (
	"context"
	"errors"
	"strings"

	"sos-bknd/internal/models"

	"go.uber.org/zap"
)

const maxPushTokenLength = 4096

// VolunteerService lets volunteers keep their position and device token
// current so candidate selection can find and reach them.
type VolunteerService struct {
	directory Directory
	logr      *zap.Logger
}

func NewVolunteerService(directory Directory, logr *zap.Logger) *VolunteerService {
	return &VolunteerService{directory: directory, logr: logr}
}

func (s *VolunteerService) UpdateLocation(ctx context.Context, caller models.Identity, loc models.Location) error {
	if !caller.Authenticated() {
		return notAuthenticated("missing volunteer identity")
	}
	if !loc.Valid() {
		return invalidInput("latitude and longitude must be finite coordinates in range")
	}
	if err := s.directory.UpdateLocation(ctx, caller.UserID, loc); err != nil {
		return s.writeError("failed to update location", err)
	}
	s.logr.Debug("volunteer location updated", zap.String("volunteer_id", caller.UserID.String()))
	return nil
}

// UpdatePushToken stores the caller's device token. An empty token
// unregisters the device and takes the volunteer out of selection.
func (s *VolunteerService) UpdatePushToken(ctx context.Context, caller models.Identity, token string) error {
	if !caller.Authenticated() {
		return notAuthenticated("missing volunteer identity")
	}
	token = strings.TrimSpace(token)
	if len(token) > maxPushTokenLength {
		return invalidInput("push token must be at most %d characters", maxPushTokenLength)
	}
	if err := s.directory.UpdatePushToken(ctx, caller.UserID, token); err != nil {
		return s.writeError("failed to update push token", err)
	}
	s.logr.Info("volunteer push token updated",
		zap.String("volunteer_id", caller.UserID.String()),
		zap.Bool("cleared", token == ""))
	return nil
}

func (s *VolunteerService) writeError(msg string, err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return notAuthenticated("unknown volunteer")
	}
	return dependencyFailure(msg, err)
}
