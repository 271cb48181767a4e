package service

import (
	"testing"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
)

func TestCalculatePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		incidentType domain.IncidentType
		bloodGroup   string
		history      string
		want         int
	}{
		{
			name:         "bare other incident gets base plus type",
			incidentType: domain.IncidentOther,
			want:         15,
		},
		{
			name:         "unknown type falls back to other weight",
			incidentType: domain.IncidentType("earthquake"),
			want:         15,
		},
		{
			name:         "disaster with rare blood and cardiac history",
			incidentType: domain.IncidentDisaster,
			bloodGroup:   "O-",
			history:      "chronic cardiac condition",
			want:         95,
		},
		{
			name:         "accident with common blood group",
			incidentType: domain.IncidentAccident,
			bloodGroup:   "O+",
			want:         55,
		},
		{
			name:         "blood request with AB negative",
			incidentType: domain.IncidentBloodRequest,
			bloodGroup:   "AB-",
			want:         50,
		},
		{
			name:         "A negative gets mid rarity bump",
			incidentType: domain.IncidentSurgery,
			bloodGroup:   "A-",
			want:         50,
		},
		{
			name:         "condition groups are additive",
			incidentType: domain.IncidentSurgery,
			history:      "asthma, diabetes, currently pregnant",
			want:         80,
		},
		{
			name:         "keywords within a group count once",
			incidentType: domain.IncidentOther,
			history:      "heart issues, prior cardiac arrest",
			want:         30,
		},
		{
			name:         "history matching is case insensitive",
			incidentType: domain.IncidentOther,
			history:      "PREGNANT",
			want:         40,
		},
		{
			name:         "score clamps at 100",
			incidentType: domain.IncidentDisaster,
			bloodGroup:   "O-",
			history:      "cardiac, asthma, pregnant, diabetes",
			want:         100,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := CalculatePriority(tt.incidentType, tt.bloodGroup, tt.history)
			if got != tt.want {
				t.Fatalf("CalculatePriority(%q, %q, %q) = %d, want %d",
					tt.incidentType, tt.bloodGroup, tt.history, got, tt.want)
			}
		})
	}
}

func TestCalculatePriority_NeverNegativeOrOverflow(t *testing.T) {
	t.Parallel()

	got := CalculatePriority("", "", "")
	if got < 0 || got > 100 {
		t.Fatalf("score out of range: %d", got)
	}
}
