package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sos-bknd/internal/metrics"
	"sos-bknd/internal/models"
	"sos-bknd/internal/push"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fakeNotifier records every send and fails the addresses listed in failFor.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentPush
	failFor map[string]error
	delay   time.Duration
}

type sentPush struct {
	Address string
	Message push.Message
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failFor: map[string]error{}}
}

func (n *fakeNotifier) Send(ctx context.Context, address string, msg push.Message) error {
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentPush{Address: address, Message: msg})
	return n.failFor[address]
}

func (n *fakeNotifier) Sent() []sentPush {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentPush(nil), n.sent...)
}

// brokenDirectory fails the geo queries and delegates everything else.
type brokenDirectory struct {
	*MemoryDirectory
	radiusErr  error
	nearestErr error
}

func (d *brokenDirectory) FindWithinRadius(ctx context.Context, p models.Location, r float64, f models.CandidateFilter, limit int) ([]models.VolunteerCandidate, error) {
	if d.radiusErr != nil {
		return nil, d.radiusErr
	}
	return d.MemoryDirectory.FindWithinRadius(ctx, p, r, f, limit)
}

func (d *brokenDirectory) FindNearest(ctx context.Context, p models.Location, f models.CandidateFilter, limit int) ([]models.VolunteerCandidate, error) {
	if d.nearestErr != nil {
		return nil, d.nearestErr
	}
	return d.MemoryDirectory.FindNearest(ctx, p, f, limit)
}

var errBoom = errors.New("boom")

func testUser(role, name string, lat, lon float64, token string) models.User {
	u := models.User{
		ID:    uuid.New(),
		Email: name + "@example.com",
		Name:  name,
		Role:  role,
	}
	if token != "" {
		u.PushToken = &token
	}
	if lat != 0 || lon != 0 {
		u.Latitude, u.Longitude = &lat, &lon
	}
	return u
}

func identityOf(u models.User) models.Identity {
	return models.Identity{UserID: u.ID, Role: u.Role, Name: u.Name, TokenVersion: u.TokenVersion}
}

func testDispatchConfig() DispatchConfig {
	return DispatchConfig{
		MaxCandidates:      3,
		SearchRadiusMeters: 10000,
		AlertLinkBase:      "https://app.example.com",
		NotifyTimeout:      time.Second,
	}
}

func newTestDispatch(t *testing.T, dir Directory, n push.Notifier) (*DispatchService, *MemoryAlertStore) {
	t.Helper()
	store := NewMemoryAlertStore()
	return NewDispatchService(dir, store, n, testDispatchConfig(), metrics.NewDispatch(), zap.NewNop()), store
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func at(lat, lon float64) TriggerRequest {
	return TriggerRequest{Latitude: floatPtr(lat), Longitude: floatPtr(lon)}
}
