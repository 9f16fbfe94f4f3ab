package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"sos-bknd/internal/geo"
	"sos-bknd/internal/models"

	"github.com/google/uuid"
)

// MemoryDirectory is a process-local Directory backed by an s2 point index.
// It serves STORE_BACKEND=memory and the tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
	index *geo.Index
}

func NewMemoryDirectory(users ...models.User) *MemoryDirectory {
	d := &MemoryDirectory{
		users: make(map[uuid.UUID]models.User),
		index: geo.NewIndex(),
	}
	for _, u := range users {
		d.PutUser(u)
	}
	return d
}

// PutUser inserts or replaces a user and re-indexes their position.
func (d *MemoryDirectory) PutUser(u models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.putLocked(u)
}

func (d *MemoryDirectory) putLocked(u models.User) {
	d.users[u.ID] = u
	if loc, ok := u.Location(); ok {
		d.index.Upsert(geo.Entry{ID: u.ID.String(), Latitude: loc.Latitude, Longitude: loc.Longitude})
	} else {
		d.index.Remove(u.ID.String())
	}
}

func (d *MemoryDirectory) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (d *MemoryDirectory) CheckTokenVersion(ctx context.Context, userID uuid.UUID, tokenVersion int) (bool, error) {
	u, err := d.GetUser(ctx, userID)
	if err != nil {
		return false, nil
	}
	return u.TokenVersion == tokenVersion, nil
}

func (d *MemoryDirectory) FindWithinRadius(_ context.Context, p models.Location, radiusMeters float64, filter models.CandidateFilter, limit int) ([]models.VolunteerCandidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	hits := d.index.WithinRadius(p.Latitude, p.Longitude, radiusMeters, limit, d.matcher(filter))
	return d.candidates(hits), nil
}

func (d *MemoryDirectory) FindNearest(_ context.Context, p models.Location, filter models.CandidateFilter, limit int) ([]models.VolunteerCandidate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	hits := d.index.Nearest(p.Latitude, p.Longitude, limit, d.matcher(filter))
	return d.candidates(hits), nil
}

// matcher must be called with d.mu held.
func (d *MemoryDirectory) matcher(filter models.CandidateFilter) func(geo.Entry) bool {
	return func(e geo.Entry) bool {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			return false
		}
		u, ok := d.users[id]
		if !ok {
			return false
		}
		if filter.Role != "" && u.Role != filter.Role {
			return false
		}
		if filter.RequirePushAddress && !u.HasPushAddress() {
			return false
		}
		return true
	}
}

func (d *MemoryDirectory) candidates(hits []geo.Hit) []models.VolunteerCandidate {
	out := make([]models.VolunteerCandidate, 0, len(hits))
	for _, h := range hits {
		id := uuid.MustParse(h.ID)
		u := d.users[id]
		c := models.VolunteerCandidate{
			ID:             id,
			Name:           u.Name,
			Location:       models.Location{Latitude: h.Latitude, Longitude: h.Longitude},
			DistanceMeters: h.DistanceMeters,
		}
		if u.PushToken != nil {
			c.PushAddress = *u.PushToken
		}
		out = append(out, c)
	}
	return out
}

func (d *MemoryDirectory) UpdateLocation(_ context.Context, userID uuid.UUID, loc models.Location) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	lat, lon := loc.Latitude, loc.Longitude
	u.Latitude, u.Longitude = &lat, &lon
	u.UpdatedAt = time.Now().UTC()
	d.putLocked(u)
	return nil
}

func (d *MemoryDirectory) UpdatePushToken(_ context.Context, userID uuid.UUID, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if token == "" {
		u.PushToken = nil
	} else {
		u.PushToken = &token
	}
	u.UpdatedAt = time.Now().UTC()
	d.users[userID] = u
	return nil
}

// MemoryAlertStore keeps alerts in a map. A single mutex serializes Mutate,
// and every read or write goes through Clone so callers never share state.
type MemoryAlertStore struct {
	mu     sync.Mutex
	alerts map[uuid.UUID]*models.SOSAlert
}

func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{alerts: make(map[uuid.UUID]*models.SOSAlert)}
}

func (s *MemoryAlertStore) Create(_ context.Context, alert *models.SOSAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.alerts[alert.ID]; exists {
		return fmt.Errorf("sos alert %s already exists", alert.ID)
	}
	s.alerts[alert.ID] = alert.Clone()
	return nil
}

func (s *MemoryAlertStore) Get(_ context.Context, id uuid.UUID) (*models.SOSAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryAlertStore) Mutate(_ context.Context, id uuid.UUID, fn MutateFunc) (*models.SOSAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now().UTC()
	s.alerts[id] = next
	return next.Clone(), nil
}

func (s *MemoryAlertStore) ListByVolunteer(_ context.Context, volunteerID uuid.UUID) ([]models.SOSAlert, error) {
	return s.list(func(a *models.SOSAlert) bool { return a.Response(volunteerID) != nil }), nil
}

func (s *MemoryAlertStore) ListByCitizen(_ context.Context, citizenID uuid.UUID) ([]models.SOSAlert, error) {
	return s.list(func(a *models.SOSAlert) bool { return a.CitizenID == citizenID }), nil
}

func (s *MemoryAlertStore) CountAwaiting(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.UpdatedAt.Before(before) && slices.Contains(awaitingStatuses, a.Status) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryAlertStore) list(match func(*models.SOSAlert) bool) []models.SOSAlert {
	s.mu.Lock()
	out := make([]models.SOSAlert, 0)
	for _, a := range s.alerts {
		if match(a) {
			out = append(out, *a.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

type seedUser struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PushToken    *string   `json:"push_token"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	TokenVersion int       `json:"token_version"`
}

// LoadSeedUsers reads a JSON array of users for the memory directory.
func LoadSeedUsers(r io.Reader) ([]models.User, error) {
	var seeds []seedUser
	if err := json.NewDecoder(r).Decode(&seeds); err != nil {
		return nil, fmt.Errorf("decode seed users: %w", err)
	}

	now := time.Now().UTC()
	users := make([]models.User, 0, len(seeds))
	for i, s := range seeds {
		switch s.Role {
		case models.RoleCitizen, models.RoleVolunteer, models.RoleAdmin:
		default:
			return nil, fmt.Errorf("seed user %d: unknown role %q", i, s.Role)
		}
		if s.ID == uuid.Nil {
			return nil, fmt.Errorf("seed user %d: missing id", i)
		}
		users = append(users, models.User{
			ID:           s.ID,
			Email:        s.Email,
			Name:         s.Name,
			Role:         s.Role,
			PushToken:    s.PushToken,
			Latitude:     s.Latitude,
			Longitude:    s.Longitude,
			TokenVersion: s.TokenVersion,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return users, nil
}
