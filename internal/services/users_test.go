package services

import (
	"context"
	"testing"

	"sos-bknd/internal/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var candidateColumns = []string{"id", "name", "push_token", "latitude", "longitude", "distance_meters"}

func TestUserService_FindWithinRadius(t *testing.T) {
	it(func() {
		id := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM users AS u WHERE \(u\.location IS NOT NULL\) AND \(u\.role = 'volunteer'\) AND (.+)ST_DWithin\(u\.location, ST_SetSRID\(ST_MakePoint\(77\.59, 12\.97\), 4326\)::geography, 10000\)(.+) ORDER BY u\.location <-> (.+) LIMIT 3`).
			WillReturnRows(sqlmock.NewRows(candidateColumns).AddRow(id.String(), "Ravi", "tok", 12.975, 77.59, 556.0))

		got, err := NewUserService(bunDB).FindWithinRadius(context.Background(),
			models.Location{Latitude: cityLat, Longitude: cityLon}, 10000, volunteerFilter, 3)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, id, got[0].ID)
		assert.Equal(t, "tok", got[0].PushAddress)
		assert.Equal(t, 556.0, got[0].DistanceMeters)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserService_FindNearestHasNoRadius(t *testing.T) {
	it(func() {
		mock.ExpectQuery(`SELECT (.+) FROM users AS u WHERE (.+) ORDER BY u\.location <-> (.+) LIMIT 2`).
			WillReturnRows(sqlmock.NewRows(candidateColumns).AddRow(uuid.NewString(), "Dev", nil, 13.4, 77.59, 50000.0))

		got, err := NewUserService(bunDB).FindNearest(context.Background(),
			models.Location{Latitude: cityLat, Longitude: cityLon}, models.CandidateFilter{Role: models.RoleVolunteer}, 2)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].PushAddress)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserService_GetUserNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery(`SELECT (.+) FROM "users" AS "u"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := NewUserService(bunDB).GetUser(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrUserNotFound)

		mock.ExpectQuery(`SELECT (.+) FROM "users" AS "u"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		ok, err := NewUserService(bunDB).CheckTokenVersion(context.Background(), uuid.New(), 1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserService_UpdatePushToken(t *testing.T) {
	it(func() {
		id := uuid.New()
		mock.ExpectExec(`UPDATE "users" AS "u" SET push_token = NULL, updated_at = (.+) WHERE \(id = '` + id.String() + `'\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "users" AS "u" SET push_token = 'tok'`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		svc := NewUserService(bunDB)
		assert.NoError(t, svc.UpdatePushToken(context.Background(), id, ""))
		assert.ErrorIs(t, svc.UpdatePushToken(context.Background(), uuid.New(), "tok"), ErrUserNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserService_UpdateLocation(t *testing.T) {
	it(func() {
		id := uuid.New()
		mock.ExpectExec(`UPDATE "users" AS "u" SET latitude = 12\.97, longitude = 77\.59(.+)WHERE \(id = '` + id.String() + `'\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewUserService(bunDB).UpdateLocation(context.Background(), id, models.Location{Latitude: cityLat, Longitude: cityLon})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
