package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"log/slog"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/service"
	mock_service "github.com/ShibagniBhattacharjee06/lifelinex/internal/service/mocks"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

type dispatchMocks struct {
	incidents *mock_service.MockIncidentRepository
	users     *mock_service.MockUserRepository
	alerts    *mock_service.MockAlertQueue
	bus       *mock_service.MockBroadcaster
}

func newDispatch(t *testing.T) (service.DispatchService, dispatchMocks, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	m := dispatchMocks{
		incidents: mock_service.NewMockIncidentRepository(ctrl),
		users:     mock_service.NewMockUserRepository(ctrl),
		alerts:    mock_service.NewMockAlertQueue(ctrl),
		bus:       mock_service.NewMockBroadcaster(ctrl),
	}
	svc := service.NewDispatchService(
		m.incidents, m.users, m.alerts, m.bus,
		newTestLogger(), 10, 5, "https://lifelinex.com/track",
	)
	return svc, m, ctrl
}

func TestCreateIncident_FullPipeline(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	userID := uuid.New()
	incidentID := uuid.New()

	reporter := &domain.User{
		ID:               userID,
		Name:             "Asha",
		Phone:            "+911234567890",
		MedicalHistory:   "cardiac condition",
		EmergencyContact: "+919999999999",
	}

	m.users.EXPECT().GetByID(gomock.Any(), userID).Return(reporter, nil)

	m.incidents.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *domain.Incident) error {
			if inc.Status != domain.IncidentActive {
				t.Errorf("new incident must be active, got %s", inc.Status)
			}
			// disaster 50 + base 10 + O- 20 + cardiac 15
			if inc.PriorityScore != 95 {
				t.Errorf("priority = %d, want 95", inc.PriorityScore)
			}
			if inc.ContactNumber != reporter.Phone {
				t.Errorf("contact number not taken from reporter")
			}
			inc.ID = incidentID
			return nil
		})

	m.users.EXPECT().
		FindNearby(gomock.Any(), 19.07, 72.87, 10.0).
		Return([]domain.ResponderCandidate{{Role: domain.RoleHospital}}, nil)

	m.alerts.EXPECT().
		Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p domain.AlertPayload) error {
			if p.Contact != reporter.EmergencyContact {
				t.Errorf("alert contact = %s, want %s", p.Contact, reporter.EmergencyContact)
			}
			if !strings.HasSuffix(p.TrackLink, incidentID.String()) {
				t.Errorf("track link %q missing incident id", p.TrackLink)
			}
			return nil
		})

	populated := &domain.Incident{
		ID:       incidentID,
		Status:   domain.IncidentActive,
		Timeline: []domain.TimelineEvent{{Status: "created"}},
		Reporter: &domain.PublicProfile{ID: userID, Name: reporter.Name},
	}
	m.incidents.EXPECT().GetPopulated(gomock.Any(), incidentID).Return(populated, nil)

	m.bus.EXPECT().Publish(domain.EventNewSOS, populated).Times(1)

	got, err := svc.CreateIncident(context.Background(), userID, domain.CreateIncidentRequest{
		Type:       domain.IncidentDisaster,
		BloodGroup: "O-",
		Lat:        19.07,
		Lng:        72.87,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != populated {
		t.Fatalf("expected populated incident returned")
	}
}

func TestCreateIncident_SuspendedReporterRejected(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	userID := uuid.New()
	m.users.EXPECT().GetByID(gomock.Any(), userID).
		Return(&domain.User{ID: userID, IsSuspended: true}, nil)

	_, err := svc.CreateIncident(context.Background(), userID, domain.CreateIncidentRequest{
		Type: domain.IncidentAccident, Lat: 1, Lng: 1,
	})
	if !errors.Is(err, e.ErrSuspended) {
		t.Fatalf("expected ErrSuspended, got %v", err)
	}
}

func TestCreateIncident_LocatorFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	userID := uuid.New()
	incidentID := uuid.New()

	m.users.EXPECT().GetByID(gomock.Any(), userID).
		Return(&domain.User{ID: userID, Name: "Ravi"}, nil)
	m.incidents.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *domain.Incident) error {
			inc.ID = incidentID
			return nil
		})
	m.users.EXPECT().FindNearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("postgis down"))

	// No emergency contact, so no enqueue.
	populated := &domain.Incident{ID: incidentID}
	m.incidents.EXPECT().GetPopulated(gomock.Any(), incidentID).Return(populated, nil)
	m.bus.EXPECT().Publish(domain.EventNewSOS, populated)

	got, err := svc.CreateIncident(context.Background(), userID, domain.CreateIncidentRequest{
		Type: domain.IncidentAccident, Lat: 1, Lng: 1,
	})
	if err != nil {
		t.Fatalf("locator failure must not fail the SOS: %v", err)
	}
	if got.ID != incidentID {
		t.Fatalf("wrong incident returned")
	}
}

func TestCreateIncident_PopulateFailureReturnsUnpopulated(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	userID := uuid.New()
	incidentID := uuid.New()

	m.users.EXPECT().GetByID(gomock.Any(), userID).
		Return(&domain.User{ID: userID}, nil)
	m.incidents.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *domain.Incident) error {
			inc.ID = incidentID
			return nil
		})
	m.users.EXPECT().FindNearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil)
	m.incidents.EXPECT().GetPopulated(gomock.Any(), incidentID).
		Return(nil, errors.New("read replica lag"))

	// No broadcast without a populated payload.
	got, err := svc.CreateIncident(context.Background(), userID, domain.CreateIncidentRequest{
		Type: domain.IncidentOther, Lat: 1, Lng: 1,
	})
	if err != nil {
		t.Fatalf("persisted SOS must be returned even unpopulated: %v", err)
	}
	if got.ID != incidentID {
		t.Fatalf("wrong incident returned")
	}
}

func TestCreateIncident_PersistFailureIsFatal(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	userID := uuid.New()
	m.users.EXPECT().GetByID(gomock.Any(), userID).
		Return(&domain.User{ID: userID}, nil)
	m.incidents.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(errors.New("pg down"))

	_, err := svc.CreateIncident(context.Background(), userID, domain.CreateIncidentRequest{
		Type: domain.IncidentOther, Lat: 1, Lng: 1,
	})
	if err == nil {
		t.Fatal("expected error when persistence fails")
	}
}

func TestRespond_FirstResponderBroadcasts(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	incidentID := uuid.New()
	userID := uuid.New()

	m.incidents.EXPECT().AddResponder(gomock.Any(), incidentID, userID).Return(true, nil)
	m.users.EXPECT().GetByID(gomock.Any(), userID).
		Return(&domain.User{ID: userID, Name: "City Hospital", Role: domain.RoleHospital}, nil)
	m.incidents.EXPECT().
		AppendTimeline(gomock.Any(), incidentID, "acknowledged", "City Hospital (hospital) accepted the request.").
		Return(nil)

	populated := &domain.Incident{
		ID:       incidentID,
		Timeline: []domain.TimelineEvent{{Status: "created"}, {Status: "acknowledged"}},
	}
	m.incidents.EXPECT().GetPopulated(gomock.Any(), incidentID).Return(populated, nil)

	m.bus.EXPECT().Publish(domain.EventSOSResponse, gomock.Any()).Times(1)
	m.bus.EXPECT().Publish(domain.EventTimelineUpdate, gomock.Any()).Times(1)

	got, err := svc.Respond(context.Background(), incidentID, userID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got.Timeline) != 2 {
		t.Fatalf("expected populated timeline, got %d entries", len(got.Timeline))
	}
}

func TestRespond_RepeatIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	incidentID := uuid.New()
	userID := uuid.New()

	m.incidents.EXPECT().AddResponder(gomock.Any(), incidentID, userID).Return(false, nil)

	populated := &domain.Incident{ID: incidentID}
	m.incidents.EXPECT().GetPopulated(gomock.Any(), incidentID).Return(populated, nil)

	// No timeline entry, no lookup, no broadcast on a repeat.
	got, err := svc.Respond(context.Background(), incidentID, userID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != populated {
		t.Fatalf("expected incident state returned")
	}
}

func TestRespond_UnknownIncident(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	incidentID := uuid.New()
	userID := uuid.New()

	m.incidents.EXPECT().AddResponder(gomock.Any(), incidentID, userID).
		Return(false, e.ErrNotFound)

	_, err := svc.Respond(context.Background(), incidentID, userID)
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_GuardedTransition(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	incidentID := uuid.New()
	userID := uuid.New()

	m.incidents.EXPECT().
		UpdateStatus(gomock.Any(), incidentID, domain.IncidentActive, domain.IncidentResolved).
		Return(nil)
	m.incidents.EXPECT().
		AppendTimeline(gomock.Any(), incidentID, "resolved", gomock.Any()).
		Return(nil)

	populated := &domain.Incident{ID: incidentID, Status: domain.IncidentResolved}
	m.incidents.EXPECT().GetPopulated(gomock.Any(), incidentID).Return(populated, nil)
	m.bus.EXPECT().Publish(domain.EventTimelineUpdate, gomock.Any())

	got, err := svc.Resolve(context.Background(), incidentID, userID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Status != domain.IncidentResolved {
		t.Fatalf("status = %s, want resolved", got.Status)
	}
}

func TestResolve_AlreadyTerminalConflicts(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	incidentID := uuid.New()

	m.incidents.EXPECT().
		UpdateStatus(gomock.Any(), incidentID, domain.IncidentActive, domain.IncidentResolved).
		Return(e.ErrConflict)

	_, err := svc.Resolve(context.Background(), incidentID, uuid.New())
	if !errors.Is(err, e.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCancel_FalseAlarmFlagsReporter(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	incidentID := uuid.New()
	reporterID := uuid.New()

	m.incidents.EXPECT().
		UpdateStatus(gomock.Any(), incidentID, domain.IncidentActive, domain.IncidentCancelled).
		Return(nil)
	m.incidents.EXPECT().
		AppendTimeline(gomock.Any(), incidentID, "cancelled", "accidental trigger").
		Return(nil)

	populated := &domain.Incident{ID: incidentID, UserID: reporterID, Status: domain.IncidentCancelled}
	m.incidents.EXPECT().GetPopulated(gomock.Any(), incidentID).Return(populated, nil)

	m.incidents.EXPECT().SetFalseAlarm(gomock.Any(), incidentID).Return(nil)
	m.users.EXPECT().FlagFalseAlarm(gomock.Any(), reporterID).Return(nil)
	m.bus.EXPECT().Publish(domain.EventTimelineUpdate, gomock.Any())

	_, err := svc.Cancel(context.Background(), incidentID, reporterID, domain.CancelIncidentRequest{
		FalseAlarm: true,
		Details:    "accidental trigger",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestCancel_PlainCancelSkipsFraudGuard(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	incidentID := uuid.New()

	m.incidents.EXPECT().
		UpdateStatus(gomock.Any(), incidentID, domain.IncidentActive, domain.IncidentCancelled).
		Return(nil)
	m.incidents.EXPECT().
		AppendTimeline(gomock.Any(), incidentID, "cancelled", "Incident cancelled by reporter.").
		Return(nil)
	m.incidents.EXPECT().GetPopulated(gomock.Any(), incidentID).
		Return(&domain.Incident{ID: incidentID}, nil)
	m.bus.EXPECT().Publish(domain.EventTimelineUpdate, gomock.Any())

	_, err := svc.Cancel(context.Background(), incidentID, uuid.New(), domain.CancelIncidentRequest{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestFindResponders_DefaultRadiusAndFilter(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	m.users.EXPECT().
		FindNearby(gomock.Any(), 19.07, 72.87, 5.0).
		Return([]domain.ResponderCandidate{
			{Role: domain.RoleHospital},
			{Role: domain.RoleDonor, BloodGroup: "B+"},
			{Role: domain.RoleDonor, BloodGroup: "A+"},
		}, nil)

	got, err := svc.FindResponders(context.Background(), domain.NearbyRespondersRequest{
		Lat: 19.07, Lng: 72.87, BloodGroup: "A+",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected hospital plus matching donor, got %d", len(got))
	}
}

func TestFindResponders_ExplicitRadiusPassedThrough(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newDispatch(t)
	defer ctrl.Finish()

	m.users.EXPECT().
		FindNearby(gomock.Any(), 1.0, 2.0, 25.0).
		Return(nil, nil)

	_, err := svc.FindResponders(context.Background(), domain.NearbyRespondersRequest{
		Lat: 1, Lng: 2, RadiusKM: 25,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
