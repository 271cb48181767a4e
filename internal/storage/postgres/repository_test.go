//go:build integration

package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/e"
)

var (
	testPool *pgxpool.Pool
	tc       testcontainers.Container
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	user := "postgres"
	pass := "postgres"
	db := "postgres"

	req := testcontainers.ContainerRequest{
		Image:        "postgis/postgis:16-3.4-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": pass,
			"POSTGRES_DB":       db,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(90 * time.Second),
	}

	var err error
	tc, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Println("cannot start container:", err)
		os.Exit(1)
	}

	host, _ := tc.Host(ctx)
	mappedPort, _ := tc.MappedPort(ctx, "5432/tcp")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, mappedPort.Port(), db)

	testPool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Println("pgxpool.New:", err)
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	if err := testPool.Ping(ctx); err != nil {
		fmt.Println("pool.Ping:", err)
		testPool.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	if err := setupSchema(ctx, testPool); err != nil {
		fmt.Println("setupSchema:", err)
		testPool.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	testPool.Close()
	_ = tc.Terminate(ctx)
	os.Exit(code)
}

func setupSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE EXTENSION IF NOT EXISTS postgis;

		CREATE TABLE IF NOT EXISTS users (
			id uuid PRIMARY KEY,
			name text NOT NULL,
			email text NOT NULL UNIQUE,
			password_hash text NOT NULL,
			phone text NOT NULL,
			role text NOT NULL,
			geo_point geography(Point, 4326) NOT NULL,
			profile_image text,
			blood_group text,
			medical_history text,
			emergency_contact text,
			false_alarm_count int NOT NULL DEFAULT 0,
			is_suspended boolean NOT NULL DEFAULT FALSE,
			created_at timestamptz NOT NULL
		);

		CREATE TABLE IF NOT EXISTS incidents (
			id uuid PRIMARY KEY,
			user_id uuid NOT NULL REFERENCES users(id),
			type text NOT NULL,
			blood_group text,
			contact_number text,
			description text,
			geo_point geography(Point, 4326) NOT NULL,
			status text NOT NULL,
			priority_score int NOT NULL,
			is_false_alarm boolean NOT NULL DEFAULT FALSE,
			created_at timestamptz NOT NULL
		);

		CREATE TABLE IF NOT EXISTS incident_timeline (
			seq bigserial PRIMARY KEY,
			incident_id uuid NOT NULL REFERENCES incidents(id),
			status text NOT NULL,
			details text,
			created_at timestamptz NOT NULL
		);

		CREATE TABLE IF NOT EXISTS incident_responders (
			incident_id uuid NOT NULL REFERENCES incidents(id),
			user_id uuid NOT NULL REFERENCES users(id),
			status text NOT NULL,
			updated_at timestamptz NOT NULL,
			PRIMARY KEY (incident_id, user_id)
		);
	`)
	return err
}

func truncateAll(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(),
		`TRUNCATE TABLE incident_responders, incident_timeline, incidents, users`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func createTestUser(t *testing.T, role domain.UserRole, bloodGroup string, lat, lng float64) *domain.User {
	t.Helper()
	repo := NewUserRepo(testPool, testLogger())
	u := &domain.User{
		Name:         "user-" + uuid.NewString()[:8],
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Phone:        "+910000000000",
		Role:         role,
		BloodGroup:   bloodGroup,
		Lat:          lat,
		Lng:          lng,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createTestIncident(t *testing.T, reporter *domain.User) *domain.Incident {
	t.Helper()
	repo := NewIncidentRepo(testPool, testLogger())
	inc := &domain.Incident{
		UserID: reporter.ID,
		Type:   domain.IncidentAccident,
		Lat:    19.0760,
		Lng:    72.8777,
	}
	if err := repo.Create(context.Background(), inc); err != nil {
		t.Fatalf("create incident: %v", err)
	}
	return inc
}

func TestIncident_Create_SetsDefaultsAndInitialTimeline(t *testing.T) {
	truncateAll(t)

	reporter := createTestUser(t, domain.RoleUser, "", 19.07, 72.87)
	repo := NewIncidentRepo(testPool, testLogger())

	inc := &domain.Incident{
		UserID:        reporter.ID,
		Type:          domain.IncidentDisaster,
		BloodGroup:    "O-",
		Lat:           19.0760,
		Lng:           72.8777,
		PriorityScore: 95,
	}
	if err := repo.Create(context.Background(), inc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if inc.ID == uuid.Nil {
		t.Fatal("expected ID set")
	}
	if inc.Status != domain.IncidentActive {
		t.Fatalf("expected active, got %s", inc.Status)
	}

	got, err := repo.GetPopulated(context.Background(), inc.ID)
	if err != nil {
		t.Fatalf("GetPopulated: %v", err)
	}
	if got.Reporter == nil || got.Reporter.Name != reporter.Name {
		t.Fatalf("reporter not populated: %+v", got.Reporter)
	}
	if len(got.Timeline) != 1 || got.Timeline[0].Status != "created" {
		t.Fatalf("expected single created timeline entry, got %+v", got.Timeline)
	}
	if got.BloodGroup != "O-" || got.PriorityScore != 95 {
		t.Fatalf("fields not persisted: %+v", got)
	}

	// Round-tripped coordinates survive the geography cast.
	if diff := got.Lat - 19.0760; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("lat mismatch: %v", got.Lat)
	}
}

func TestIncident_GetPopulated_NotFound(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())
	_, err := repo.GetPopulated(context.Background(), uuid.New())
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIncident_AddResponder_ConcurrentAndIdempotent(t *testing.T) {
	truncateAll(t)

	reporter := createTestUser(t, domain.RoleUser, "", 19.07, 72.87)
	inc := createTestIncident(t, reporter)
	repo := NewIncidentRepo(testPool, testLogger())

	r1 := createTestUser(t, domain.RoleDonor, "O-", 19.08, 72.88)
	r2 := createTestUser(t, domain.RoleHospital, "", 19.09, 72.89)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i, u := range []*domain.User{r1, r2} {
		wg.Add(1)
		go func(i int, userID uuid.UUID) {
			defer wg.Done()
			added, err := repo.AddResponder(context.Background(), inc.ID, userID)
			if err != nil {
				t.Errorf("AddResponder: %v", err)
				return
			}
			results[i] = added
		}(i, u.ID)
	}
	wg.Wait()

	if !results[0] || !results[1] {
		t.Fatalf("both concurrent responders must land: %+v", results)
	}

	// Repeat from the same user is a no-op.
	added, err := repo.AddResponder(context.Background(), inc.ID, r1.ID)
	if err != nil {
		t.Fatalf("repeat AddResponder: %v", err)
	}
	if added {
		t.Fatal("repeat acknowledgement must not be counted")
	}

	got, err := repo.GetPopulated(context.Background(), inc.ID)
	if err != nil {
		t.Fatalf("GetPopulated: %v", err)
	}
	if len(got.Responders) != 2 {
		t.Fatalf("expected 2 responders, got %d", len(got.Responders))
	}
}

func TestIncident_AddResponder_UnknownIncident(t *testing.T) {
	truncateAll(t)

	repo := NewIncidentRepo(testPool, testLogger())
	_, err := repo.AddResponder(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIncident_UpdateStatus_GuardedTransitions(t *testing.T) {
	truncateAll(t)

	reporter := createTestUser(t, domain.RoleUser, "", 19.07, 72.87)
	inc := createTestIncident(t, reporter)
	repo := NewIncidentRepo(testPool, testLogger())

	if err := repo.UpdateStatus(context.Background(), inc.ID, domain.IncidentActive, domain.IncidentResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// A second transition out of active conflicts.
	err := repo.UpdateStatus(context.Background(), inc.ID, domain.IncidentActive, domain.IncidentCancelled)
	if !errors.Is(err, e.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	err = repo.UpdateStatus(context.Background(), uuid.New(), domain.IncidentActive, domain.IncidentResolved)
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIncident_ListActive_NewestFirst(t *testing.T) {
	truncateAll(t)

	reporter := createTestUser(t, domain.RoleUser, "", 19.07, 72.87)
	repo := NewIncidentRepo(testPool, testLogger())

	for i := 0; i < 3; i++ {
		inc := &domain.Incident{
			UserID:    reporter.ID,
			Type:      domain.IncidentOther,
			Lat:       10 + float64(i),
			Lng:       20 + float64(i),
			CreatedAt: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
		}
		if err := repo.Create(context.Background(), inc); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	resolved := createTestIncident(t, reporter)
	if err := repo.UpdateStatus(context.Background(), resolved.ID, domain.IncidentActive, domain.IncidentResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	list, err := repo.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 active, got %d", len(list))
	}
	if list[0].CreatedAt.Before(list[1].CreatedAt) {
		t.Fatal("expected DESC order by created_at")
	}
	for _, inc := range list {
		if inc.Reporter == nil {
			t.Fatal("expected reporter populated in list")
		}
	}
}

func TestUser_FindNearby_RadiusBound(t *testing.T) {
	truncateAll(t)

	repo := NewUserRepo(testPool, testLogger())

	// ~0km, ~5km and ~20km east of the probe point at lat 19.
	near := createTestUser(t, domain.RoleHospital, "", 19.0, 72.0)
	mid := createTestUser(t, domain.RoleDonor, "A+", 19.0, 72.047)
	far := createTestUser(t, domain.RoleDonor, "A+", 19.0, 72.19)
	plain := createTestUser(t, domain.RoleUser, "", 19.0, 72.001)
	suspended := createTestUser(t, domain.RoleDonor, "O-", 19.0, 72.002)
	if err := repo.FlagFalseAlarm(context.Background(), suspended.ID); err != nil {
		t.Fatalf("flag: %v", err)
	}
	if err := repo.FlagFalseAlarm(context.Background(), suspended.ID); err != nil {
		t.Fatalf("flag: %v", err)
	}
	if err := repo.FlagFalseAlarm(context.Background(), suspended.ID); err != nil {
		t.Fatalf("flag: %v", err)
	}

	got, err := repo.FindNearby(context.Background(), 19.0, 72.0, 10)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}

	ids := map[uuid.UUID]bool{}
	for _, c := range got {
		ids[c.ID] = true
	}
	if !ids[near.ID] || !ids[mid.ID] {
		t.Fatalf("expected near and mid candidates, got %+v", got)
	}
	if ids[far.ID] {
		t.Fatal("candidate outside the radius returned")
	}
	if ids[plain.ID] {
		t.Fatal("plain users must not be responder candidates")
	}
	if ids[suspended.ID] {
		t.Fatal("suspended users must not be responder candidates")
	}

	// Nearest first.
	if len(got) != 2 || got[0].ID != near.ID {
		t.Fatalf("expected distance ordering, got %+v", got)
	}
	if got[1].DistanceKM < got[0].DistanceKM {
		t.Fatal("distances not ascending")
	}
}

func TestUser_FlagFalseAlarm_SuspendsAtThree(t *testing.T) {
	truncateAll(t)

	repo := NewUserRepo(testPool, testLogger())
	u := createTestUser(t, domain.RoleUser, "", 19.0, 72.0)

	for i := 0; i < 2; i++ {
		if err := repo.FlagFalseAlarm(context.Background(), u.ID); err != nil {
			t.Fatalf("flag: %v", err)
		}
		got, err := repo.GetByID(context.Background(), u.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.IsSuspended {
			t.Fatalf("suspended too early at count %d", got.FalseAlarmCount)
		}
	}

	if err := repo.FlagFalseAlarm(context.Background(), u.ID); err != nil {
		t.Fatalf("flag: %v", err)
	}
	got, err := repo.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FalseAlarmCount != 3 || !got.IsSuspended {
		t.Fatalf("expected suspension at 3, got count=%d suspended=%v", got.FalseAlarmCount, got.IsSuspended)
	}
}

func TestAnalytics_HeatmapWeightNormalized(t *testing.T) {
	truncateAll(t)

	reporter := createTestUser(t, domain.RoleUser, "", 19.07, 72.87)
	incRepo := NewIncidentRepo(testPool, testLogger())

	inc := &domain.Incident{
		UserID:        reporter.ID,
		Type:          domain.IncidentDisaster,
		Lat:           19.0760,
		Lng:           72.8777,
		PriorityScore: 85,
	}
	if err := incRepo.Create(context.Background(), inc); err != nil {
		t.Fatalf("Create: %v", err)
	}

	repo := NewAnalyticsRepo(testPool, testLogger())
	points, err := repo.Heatmap(context.Background())
	if err != nil {
		t.Fatalf("Heatmap: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Weight != 0.85 {
		t.Fatalf("weight = %v, want 0.85", points[0].Weight)
	}
}

func TestAnalytics_StatsBloodDemand(t *testing.T) {
	truncateAll(t)

	reporter := createTestUser(t, domain.RoleUser, "", 19.07, 72.87)
	incRepo := NewIncidentRepo(testPool, testLogger())

	for _, group := range []string{"O-", "O-", "A+"} {
		inc := &domain.Incident{
			UserID:        reporter.ID,
			Type:          domain.IncidentBloodRequest,
			BloodGroup:    group,
			Lat:           19.0760,
			Lng:           72.8777,
			PriorityScore: 50,
		}
		if err := incRepo.Create(context.Background(), inc); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	resolved := createTestIncident(t, reporter)
	if err := incRepo.UpdateStatus(context.Background(), resolved.ID, domain.IncidentActive, domain.IncidentResolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	repo := NewAnalyticsRepo(testPool, testLogger())
	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalSOS != 4 {
		t.Fatalf("total = %d, want 4", stats.TotalSOS)
	}
	if stats.ResolvedCount != 1 {
		t.Fatalf("resolved = %d, want 1", stats.ResolvedCount)
	}
	if stats.BloodDemand["O-"] != 2 || stats.BloodDemand["A+"] != 1 {
		t.Fatalf("blood demand: %+v", stats.BloodDemand)
	}
}
