package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"sos-bknd/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Bengaluru neighbourhood used across scenarios.
const (
	cityLat = 12.97
	cityLon = 77.59
)

type cityFixture struct {
	citizen models.User
	near1   models.User
	near2   models.User
	noPush  models.User
	dir     *MemoryDirectory
}

func newCityFixture() cityFixture {
	f := cityFixture{
		citizen: testUser(models.RoleCitizen, "Asha", cityLat, cityLon, ""),
		near1:   testUser(models.RoleVolunteer, "Ravi", 12.975, 77.59, "tok-ravi"),
		near2:   testUser(models.RoleVolunteer, "Meera", 12.99, 77.60, "tok-meera"),
		noPush:  testUser(models.RoleVolunteer, "Kiran", 12.971, 77.591, ""),
	}
	f.dir = NewMemoryDirectory(f.citizen, f.near1, f.near2, f.noPush)
	return f
}

func TestTriggerSOS_NotifiesNearbyVolunteers(t *testing.T) {
	f := newCityFixture()
	n := newFakeNotifier()
	svc, store := newTestDispatch(t, f.dir, n)

	res, err := svc.TriggerSOS(context.Background(), identityOf(f.citizen), TriggerRequest{
		Latitude: floatPtr(cityLat), Longitude: floatPtr(cityLon), Message: strPtr("trapped"),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllNotified, res.Outcome)
	assert.Equal(t, models.AlertVolunteersNotified, res.Status)
	assert.Equal(t, 2, res.Notified)
	assert.Equal(t, 0, res.Failed)

	alert, err := store.Get(context.Background(), res.AlertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertVolunteersNotified, alert.Status)
	assert.Equal(t, f.citizen.ID, alert.CitizenID)
	assert.Equal(t, "Asha", alert.CitizenName)
	require.NotNil(t, alert.Message)
	assert.Equal(t, "trapped", *alert.Message)
	require.Len(t, alert.RespondedVolunteers, 2)
	for _, r := range alert.RespondedVolunteers {
		assert.Equal(t, models.ResponseNotified, r.ResponseStatus)
		assert.NotEqual(t, f.noPush.ID, r.VolunteerID)
	}

	sent := n.Sent()
	require.Len(t, sent, 2)
	addrs := []string{sent[0].Address, sent[1].Address}
	assert.ElementsMatch(t, []string{"tok-ravi", "tok-meera"}, addrs)

	msg := sent[0].Message
	assert.Equal(t, "SOS Alert Nearby", msg.Title)
	assert.Equal(t, "Asha needs urgent help: trapped", msg.Body)
	assert.Equal(t, "https://app.example.com/volunteer/alerts/"+res.AlertID.String(), msg.ClickLink)
	assert.Equal(t, res.AlertID.String(), msg.Data["alertId"])
	assert.Equal(t, "sos_alert", msg.Data["type"])
}

func TestTriggerSOS_FallsBackToNearestVolunteer(t *testing.T) {
	citizen := testUser(models.RoleCitizen, "Asha", cityLat, cityLon, "")
	far := testUser(models.RoleVolunteer, "Dev", 13.42, cityLon, "tok-dev")
	n := newFakeNotifier()
	svc, store := newTestDispatch(t, NewMemoryDirectory(citizen, far), n)

	res, err := svc.TriggerSOS(context.Background(), identityOf(citizen), at(cityLat, cityLon))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAllNotified, res.Outcome)

	alert, err := store.Get(context.Background(), res.AlertID)
	require.NoError(t, err)
	require.Len(t, alert.RespondedVolunteers, 1)
	assert.Equal(t, far.ID, alert.RespondedVolunteers[0].VolunteerID)
	assert.Nil(t, alert.Message)
	assert.Equal(t, "Asha needs urgent help", n.Sent()[0].Message.Body)
}

func TestTriggerSOS_NoVolunteersLeavesAlertUnattended(t *testing.T) {
	citizen := testUser(models.RoleCitizen, "Asha", cityLat, cityLon, "")
	tokenless := testUser(models.RoleVolunteer, "Kiran", 12.971, 77.591, "")
	n := newFakeNotifier()
	svc, store := newTestDispatch(t, NewMemoryDirectory(citizen, tokenless), n)

	res, err := svc.TriggerSOS(context.Background(), identityOf(citizen), at(cityLat, cityLon))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoVolunteers, res.Outcome)
	assert.Equal(t, models.AlertUnattended, res.Status)
	assert.Empty(t, n.Sent())

	alert, err := store.Get(context.Background(), res.AlertID)
	require.NoError(t, err)
	assert.Equal(t, models.AlertUnattended, alert.Status)
	assert.Empty(t, alert.RespondedVolunteers)
}

func TestTriggerSOS_PartialPushFailure(t *testing.T) {
	f := newCityFixture()
	n := newFakeNotifier()
	n.failFor["tok-meera"] = errBoom
	svc, store := newTestDispatch(t, f.dir, n)

	res, err := svc.TriggerSOS(context.Background(), identityOf(f.citizen), at(cityLat, cityLon))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSomeNotificationsFailed, res.Outcome)
	assert.Equal(t, models.AlertNotificationFailed, res.Status)
	assert.Equal(t, 1, res.Notified)
	assert.Equal(t, 1, res.Failed)

	alert, err := store.Get(context.Background(), res.AlertID)
	require.NoError(t, err)
	assert.Len(t, alert.RespondedVolunteers, 2)
	assert.NotNil(t, alert.Response(f.near2.ID), "failed recipients stay on record")
}

func TestTriggerSOS_CapsAtMaxCandidatesNearestFirst(t *testing.T) {
	citizen := testUser(models.RoleCitizen, "Asha", cityLat, cityLon, "")
	users := []models.User{citizen}
	var volunteers []models.User
	for i := 1; i <= 5; i++ {
		v := testUser(models.RoleVolunteer, "v", cityLat+float64(i)*0.005, cityLon, uuid.NewString())
		volunteers = append(volunteers, v)
		users = append(users, v)
	}
	svc, store := newTestDispatch(t, NewMemoryDirectory(users...), newFakeNotifier())

	res, err := svc.TriggerSOS(context.Background(), identityOf(citizen), at(cityLat, cityLon))
	require.NoError(t, err)

	alert, err := store.Get(context.Background(), res.AlertID)
	require.NoError(t, err)
	require.Len(t, alert.RespondedVolunteers, 3)
	for i, r := range alert.RespondedVolunteers {
		assert.Equal(t, volunteers[i].ID, r.VolunteerID)
	}
}

func TestTriggerSOS_Rejections(t *testing.T) {
	f := newCityFixture()
	svc, store := newTestDispatch(t, f.dir, newFakeNotifier())
	ctx := context.Background()

	tests := []struct {
		name   string
		caller models.Identity
		req    TriggerRequest
		kind   ErrorKind
	}{
		{"empty identity", models.Identity{}, at(cityLat, cityLon), KindNotAuthenticated},
		{"unknown user", models.Identity{UserID: uuid.New()}, at(cityLat, cityLon), KindNotAuthenticated},
		{"volunteer caller", identityOf(f.near1), at(cityLat, cityLon), KindInvalidInput},
		{"latitude out of range", identityOf(f.citizen), at(91, cityLon), KindInvalidInput},
		{"longitude out of range", identityOf(f.citizen), at(cityLat, -181), KindInvalidInput},
		{"nan coordinate", identityOf(f.citizen), at(math.NaN(), cityLon), KindInvalidInput},
		{"missing coordinates", identityOf(f.citizen), TriggerRequest{Message: strPtr("help")}, KindInvalidInput},
		{"missing longitude", identityOf(f.citizen), TriggerRequest{Latitude: floatPtr(cityLat)}, KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.TriggerSOS(ctx, tt.caller, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}

	list, err := store.ListByCitizen(ctx, f.citizen.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "rejected triggers must not create alerts")
}

func TestTriggerSOS_SelectionFailureCreatesNothing(t *testing.T) {
	f := newCityFixture()
	dir := &brokenDirectory{MemoryDirectory: f.dir, radiusErr: errBoom}
	n := newFakeNotifier()
	svc, store := newTestDispatch(t, dir, n)

	_, err := svc.TriggerSOS(context.Background(), identityOf(f.citizen), at(cityLat, cityLon))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDependencyFailure))
	assert.True(t, errors.Is(err, errBoom))
	assert.Empty(t, n.Sent())

	list, err := store.ListByCitizen(context.Background(), f.citizen.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTriggerSOS_SurvivesCancelledRequest(t *testing.T) {
	f := newCityFixture()
	n := newFakeNotifier()
	n.delay = 10 * time.Millisecond
	svc, store := newTestDispatch(t, f.dir, n)

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel once the alert exists, before the pushes go out.
	svc.alerts = &cancelOnCreate{AlertStore: store, cancel: cancel}

	res, err := svc.TriggerSOS(ctx, identityOf(f.citizen), at(cityLat, cityLon))
	require.NoError(t, err)
	assert.Len(t, n.Sent(), 2)
	assert.Equal(t, models.AlertVolunteersNotified, res.Status)
}

type cancelOnCreate struct {
	AlertStore
	cancel context.CancelFunc
}

func (c *cancelOnCreate) Create(ctx context.Context, a *models.SOSAlert) error {
	err := c.AlertStore.Create(ctx, a)
	c.cancel()
	return err
}

// dispatchedAlert triggers an SOS in the city fixture and returns its id.
func dispatchedAlert(t *testing.T, svc *DispatchService, f cityFixture) uuid.UUID {
	t.Helper()
	res, err := svc.TriggerSOS(context.Background(), identityOf(f.citizen), at(cityLat, cityLon))
	require.NoError(t, err)
	require.Equal(t, models.AlertVolunteersNotified, res.Status)
	return res.AlertID
}

func TestUpdateResponse_Lifecycle(t *testing.T) {
	f := newCityFixture()
	svc, _ := newTestDispatch(t, f.dir, newFakeNotifier())
	ctx := context.Background()
	id := dispatchedAlert(t, svc, f)

	steps := []struct {
		who    models.User
		status string
		want   models.AlertStatus
	}{
		{f.near1, "Acknowledged", models.AlertVolunteersNotified},
		{f.near1, "EnRoute", models.AlertAssistanceEnRoute},
		{f.near2, "EnRoute", models.AlertAssistanceEnRoute},
		{f.near1, "Assisting", models.AlertAssistanceInProgress},
		{f.near2, "EnRoute", models.AlertAssistanceInProgress},
		{f.near1, "ResolvedByVolunteer", models.AlertAssistanceInProgress},
		{f.near2, "UnableToAssist", models.AlertAssistanceInProgress},
		{f.near1, "ResolvedByVolunteer", models.AlertResolved},
		{f.near2, "EnRoute", models.AlertResolved},
	}
	for _, s := range steps {
		alert, err := svc.UpdateResponse(ctx, identityOf(s.who), id, s.status)
		require.NoError(t, err, "%s -> %s", s.who.Name, s.status)
		assert.Equal(t, s.want, alert.Status, "%s -> %s", s.who.Name, s.status)
		assert.Equal(t, models.ResponseStatus(s.status), alert.Response(s.who.ID).ResponseStatus)
	}
}

func TestUpdateResponse_IsIdempotent(t *testing.T) {
	f := newCityFixture()
	svc, _ := newTestDispatch(t, f.dir, newFakeNotifier())
	id := dispatchedAlert(t, svc, f)

	first, err := svc.UpdateResponse(context.Background(), identityOf(f.near1), id, "EnRoute")
	require.NoError(t, err)
	second, err := svc.UpdateResponse(context.Background(), identityOf(f.near1), id, "EnRoute")
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Response(f.near1.ID).ResponseStatus, second.Response(f.near1.ID).ResponseStatus)
	assert.Len(t, second.RespondedVolunteers, 2)
}

func TestUpdateResponse_AllUnableKeepsStatus(t *testing.T) {
	f := newCityFixture()
	svc, _ := newTestDispatch(t, f.dir, newFakeNotifier())
	id := dispatchedAlert(t, svc, f)

	_, err := svc.UpdateResponse(context.Background(), identityOf(f.near1), id, "UnableToAssist")
	require.NoError(t, err)
	alert, err := svc.UpdateResponse(context.Background(), identityOf(f.near2), id, "UnableToAssist")
	require.NoError(t, err)
	assert.Equal(t, models.AlertVolunteersNotified, alert.Status)
}

func TestUpdateResponse_Rejections(t *testing.T) {
	f := newCityFixture()
	svc, _ := newTestDispatch(t, f.dir, newFakeNotifier())
	id := dispatchedAlert(t, svc, f)
	ctx := context.Background()

	_, err := svc.UpdateResponse(ctx, models.Identity{}, id, "EnRoute")
	assert.True(t, IsKind(err, KindNotAuthenticated))

	_, err = svc.UpdateResponse(ctx, identityOf(f.near1), id, "OnTheWay")
	assert.True(t, IsKind(err, KindInvalidInput))

	_, err = svc.UpdateResponse(ctx, identityOf(f.near1), uuid.New(), "EnRoute")
	assert.True(t, IsKind(err, KindNotFound))

	_, err = svc.UpdateResponse(ctx, identityOf(f.noPush), id, "EnRoute")
	assert.True(t, IsKind(err, KindNotAuthorized))

	alert, err := svc.GetAlert(ctx, identityOf(f.citizen), id)
	require.NoError(t, err)
	assert.Equal(t, models.AlertVolunteersNotified, alert.Status, "rejected updates leave the alert untouched")
}

func TestUpdateResponse_ConcurrentVolunteersAllLand(t *testing.T) {
	f := newCityFixture()
	svc, _ := newTestDispatch(t, f.dir, newFakeNotifier())
	id := dispatchedAlert(t, svc, f)

	var wg sync.WaitGroup
	for _, v := range []models.User{f.near1, f.near2} {
		wg.Add(1)
		go func(v models.User) {
			defer wg.Done()
			_, err := svc.UpdateResponse(context.Background(), identityOf(v), id, "EnRoute")
			assert.NoError(t, err)
		}(v)
	}
	wg.Wait()

	alert, err := svc.GetAlert(context.Background(), identityOf(f.citizen), id)
	require.NoError(t, err)
	assert.Equal(t, models.AlertAssistanceEnRoute, alert.Status)
	assert.Equal(t, models.ResponseEnRoute, alert.Response(f.near1.ID).ResponseStatus)
	assert.Equal(t, models.ResponseEnRoute, alert.Response(f.near2.ID).ResponseStatus)
}

func TestVolunteerAlerts_FiltersByOwnStatus(t *testing.T) {
	f := newCityFixture()
	svc, _ := newTestDispatch(t, f.dir, newFakeNotifier())
	ctx := context.Background()
	first := dispatchedAlert(t, svc, f)
	second := dispatchedAlert(t, svc, f)

	_, err := svc.UpdateResponse(ctx, identityOf(f.near1), first, "EnRoute")
	require.NoError(t, err)

	all, err := svc.VolunteerAlerts(ctx, identityOf(f.near1), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	enRoute, err := svc.VolunteerAlerts(ctx, identityOf(f.near1), []string{"EnRoute", "Assisting"})
	require.NoError(t, err)
	require.Len(t, enRoute, 1)
	assert.Equal(t, first, enRoute[0].ID)

	notified, err := svc.VolunteerAlerts(ctx, identityOf(f.near1), []string{"Notified"})
	require.NoError(t, err)
	require.Len(t, notified, 1)
	assert.Equal(t, second, notified[0].ID)

	none, err := svc.VolunteerAlerts(ctx, identityOf(f.noPush), nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = svc.VolunteerAlerts(ctx, identityOf(f.near1), []string{"Bogus"})
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestCitizenAlertsAndVisibility(t *testing.T) {
	f := newCityFixture()
	svc, _ := newTestDispatch(t, f.dir, newFakeNotifier())
	ctx := context.Background()
	id := dispatchedAlert(t, svc, f)

	mine, err := svc.CitizenAlerts(ctx, identityOf(f.citizen))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, id, mine[0].ID)

	_, err = svc.GetAlert(ctx, identityOf(f.near2), id)
	assert.NoError(t, err)

	admin := models.Identity{UserID: uuid.New(), Role: models.RoleAdmin}
	_, err = svc.GetAlert(ctx, admin, id)
	assert.NoError(t, err)

	_, err = svc.GetAlert(ctx, identityOf(f.noPush), id)
	assert.True(t, IsKind(err, KindNotAuthorized))

	_, err = svc.GetAlert(ctx, identityOf(f.citizen), uuid.New())
	assert.True(t, IsKind(err, KindNotFound))
}

func TestNormalizeMessage(t *testing.T) {
	msg, err := normalizeMessage(strPtr("   "))
	require.NoError(t, err)
	assert.Nil(t, msg)

	msg, err = normalizeMessage(strPtr("  stuck on roof \n"))
	require.NoError(t, err)
	assert.Equal(t, "stuck on roof", *msg)

	// Devanagari runes are three bytes each; the cap is on characters.
	hindi := strings.Repeat("मदद", maxMessageLength/3)
	msg, err = normalizeMessage(&hindi)
	require.NoError(t, err)
	assert.Equal(t, hindi, *msg)

	tooLong := strings.Repeat("म", maxMessageLength+1)
	_, err = normalizeMessage(&tooLong)
	assert.True(t, IsKind(err, KindInvalidInput))
}
