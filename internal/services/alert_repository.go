package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sos-bknd/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AlertRepository stores alerts in Postgres. Mutate uses the version column as
// an optimistic lock and retries a bounded number of times on conflict.
type AlertRepository struct {
	db      *bun.DB
	retries int
}

func NewAlertRepository(db *bun.DB, retries int) *AlertRepository {
	if retries <= 0 {
		retries = 1
	}
	return &AlertRepository{db: db, retries: retries}
}

func (r *AlertRepository) Create(ctx context.Context, alert *models.SOSAlert) error {
	if alert.RespondedVolunteers == nil {
		alert.RespondedVolunteers = []models.VolunteerResponse{}
	}
	if _, err := r.db.NewInsert().Model(alert).Exec(ctx); err != nil {
		return fmt.Errorf("insert sos alert: %w", err)
	}
	return nil
}

func (r *AlertRepository) Get(ctx context.Context, id uuid.UUID) (*models.SOSAlert, error) {
	var alert models.SOSAlert
	err := r.db.NewSelect().Model(&alert).Where("sa.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("get sos alert %s: %w", id, err)
	}
	return &alert, nil
}

func (r *AlertRepository) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.SOSAlert, error) {
	for attempt := 0; attempt < r.retries; attempt++ {
		alert, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(alert); err != nil {
			return nil, err
		}

		read := alert.Version
		alert.Version = read + 1
		alert.UpdatedAt = time.Now().UTC()

		res, err := r.db.NewUpdate().
			Model(alert).
			Column("status", "responded_volunteers", "version", "updated_at").
			Where("sa.id = ?", id).
			Where("sa.version = ?", read).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("update sos alert %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, err
		} else if n == 1 {
			return alert, nil
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrVersionConflict, r.retries)
}

func (r *AlertRepository) ListByVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]models.SOSAlert, error) {
	// jsonb containment is served by the GIN index on responded_volunteers.
	needle, err := json.Marshal([]map[string]string{{"volunteer_id": volunteerID.String()}})
	if err != nil {
		return nil, err
	}

	var alerts []models.SOSAlert
	err = r.db.NewSelect().
		Model(&alerts).
		Where("sa.responded_volunteers @> ?::jsonb", string(needle)).
		OrderExpr("sa.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list volunteer alerts: %w", err)
	}
	return alerts, nil
}

func (r *AlertRepository) ListByCitizen(ctx context.Context, citizenID uuid.UUID) ([]models.SOSAlert, error) {
	var alerts []models.SOSAlert
	err := r.db.NewSelect().
		Model(&alerts).
		Where("sa.citizen_id = ?", citizenID).
		OrderExpr("sa.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list citizen alerts: %w", err)
	}
	return alerts, nil
}

func (r *AlertRepository) CountAwaiting(ctx context.Context, before time.Time) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.SOSAlert)(nil)).
		Where("sa.status IN (?)", bun.In(awaitingStatuses)).
		Where("sa.updated_at < ?", before).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count awaiting alerts: %w", err)
	}
	return n, nil
}
