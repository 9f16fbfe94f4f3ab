package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sos-bknd/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserService is the Postgres/PostGIS directory. Volunteer positions live in
// the generated users.location geography column.
type UserService struct {
	db *bun.DB
}

func NewUserService(db *bun.DB) *UserService {
	return &UserService{db: db}
}

// candidateRow is the projection scanned by the geo queries.
type candidateRow struct {
	ID             uuid.UUID `bun:"id"`
	Name           string    `bun:"name"`
	PushToken      *string   `bun:"push_token"`
	Latitude       float64   `bun:"latitude"`
	Longitude      float64   `bun:"longitude"`
	DistanceMeters float64   `bun:"distance_meters"`
}

const pointExpr = "ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography"

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.db.NewSelect().Model(&u).Where("u.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (s *UserService) CheckTokenVersion(ctx context.Context, userID uuid.UUID, tokenVersion int) (bool, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.TokenVersion == tokenVersion, nil
}

func (s *UserService) FindWithinRadius(ctx context.Context, p models.Location, radiusMeters float64, filter models.CandidateFilter, limit int) ([]models.VolunteerCandidate, error) {
	q := s.candidateQuery(p, filter).
		Where("ST_DWithin(u.location, "+pointExpr+", ?)", p.Longitude, p.Latitude, radiusMeters)
	return s.scanCandidates(ctx, q, p, limit)
}

func (s *UserService) FindNearest(ctx context.Context, p models.Location, filter models.CandidateFilter, limit int) ([]models.VolunteerCandidate, error) {
	return s.scanCandidates(ctx, s.candidateQuery(p, filter), p, limit)
}

func (s *UserService) candidateQuery(p models.Location, filter models.CandidateFilter) *bun.SelectQuery {
	q := s.db.NewSelect().
		TableExpr("users AS u").
		ColumnExpr("u.id, u.name, u.push_token, u.latitude, u.longitude").
		ColumnExpr("ST_Distance(u.location, "+pointExpr+") AS distance_meters", p.Longitude, p.Latitude).
		Where("u.location IS NOT NULL")

	if filter.Role != "" {
		q = q.Where("u.role = ?", filter.Role)
	}
	if filter.RequirePushAddress {
		q = q.Where("u.push_token IS NOT NULL").Where("u.push_token <> ''")
	}
	return q
}

// scanCandidates orders by the KNN operator so the GiST index drives both queries.
func (s *UserService) scanCandidates(ctx context.Context, q *bun.SelectQuery, p models.Location, limit int) ([]models.VolunteerCandidate, error) {
	var rows []candidateRow
	err := q.
		OrderExpr("u.location <-> "+pointExpr, p.Longitude, p.Latitude).
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]models.VolunteerCandidate, 0, len(rows))
	for _, r := range rows {
		c := models.VolunteerCandidate{
			ID:             r.ID,
			Name:           r.Name,
			Location:       models.Location{Latitude: r.Latitude, Longitude: r.Longitude},
			DistanceMeters: r.DistanceMeters,
		}
		if r.PushToken != nil {
			c.PushAddress = *r.PushToken
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *UserService) UpdateLocation(ctx context.Context, userID uuid.UUID, loc models.Location) error {
	res, err := s.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("latitude = ?", loc.Latitude).
		Set("longitude = ?", loc.Longitude).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	return requireRow(res, ErrUserNotFound)
}

func (s *UserService) UpdatePushToken(ctx context.Context, userID uuid.UUID, token string) error {
	q := s.db.NewUpdate().Model((*models.User)(nil))
	if token == "" {
		q = q.Set("push_token = NULL")
	} else {
		q = q.Set("push_token = ?", token)
	}
	res, err := q.
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update push token: %w", err)
	}
	return requireRow(res, ErrUserNotFound)
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
