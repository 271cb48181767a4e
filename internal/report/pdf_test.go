package report

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/e"
)

type fakeSource struct {
	incident *domain.Incident
	err      error
}

func (f *fakeSource) GetPopulated(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.incident, nil
}

func sampleIncident() *domain.Incident {
	id := uuid.New()
	now := time.Now().UTC()
	return &domain.Incident{
		ID:            id,
		UserID:        uuid.New(),
		Type:          domain.IncidentAccident,
		BloodGroup:    "O-",
		Description:   "Two-vehicle collision on the highway, one person trapped.",
		Lat:           19.0760,
		Lng:           72.8777,
		Status:        domain.IncidentResolved,
		PriorityScore: 85,
		Timeline: []domain.TimelineEvent{
			{Status: "created", Details: "Emergency Alert Raised", CreatedAt: now.Add(-time.Hour)},
			{Status: "acknowledged", Details: "City Hospital (hospital) accepted the request.", CreatedAt: now.Add(-50 * time.Minute)},
			{Status: "resolved", Details: "Incident marked resolved.", CreatedAt: now},
		},
		Responders: []domain.Responder{
			{UserID: uuid.New(), Name: "City Hospital", Role: domain.RoleHospital, Phone: "+91111", Status: domain.ResponderAccepted},
		},
		Reporter:  &domain.PublicProfile{ID: uuid.New(), Name: "Asha", Phone: "+91222"},
		CreatedAt: now.Add(-time.Hour),
	}
}

func TestRender_ProducesValidPDF(t *testing.T) {
	t.Parallel()

	inc := sampleIncident()
	g := NewGenerator(&fakeSource{incident: inc})

	pdf, err := g.Render(context.Background(), inc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
	assert.Greater(t, len(pdf), 1000)
}

func TestRender_EmptyTimelineAndResponders(t *testing.T) {
	t.Parallel()

	inc := sampleIncident()
	inc.Timeline = nil
	inc.Responders = nil
	inc.Reporter = nil
	inc.Description = ""
	inc.BloodGroup = ""

	g := NewGenerator(&fakeSource{incident: inc})

	pdf, err := g.Render(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRender_NotFoundPassesThrough(t *testing.T) {
	t.Parallel()

	g := NewGenerator(&fakeSource{err: e.ErrNotFound})

	_, err := g.Render(context.Background(), uuid.New())
	require.ErrorIs(t, err, e.ErrNotFound)
}

func TestTruncate_KeepsRunesIntact(t *testing.T) {
	t.Parallel()

	// Devanagari details from real reports; byte slicing would cut a rune
	// in half and feed invalid UTF-8 to the PDF encoder.
	long := strings.Repeat("सहायता चाहिए ", 20)
	got := truncate(long, 70)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, 70, utf8.RuneCountInString(got))

	short := "сердечный приступ"
	assert.Equal(t, short, truncate(short, 70))
}

func TestRender_MultibyteTimelineDetails(t *testing.T) {
	t.Parallel()

	inc := sampleIncident()
	inc.Timeline[1].Details = strings.Repeat("तुरंत मदद भेजें ", 15)

	g := NewGenerator(&fakeSource{incident: inc})

	pdf, err := g.Render(context.Background(), inc.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestFilename(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "Report-LifeLineX-11111111-2222-3333-4444-555555555555.pdf", Filename(id))
}
