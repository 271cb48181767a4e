package service

import "github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"

// universalDonor can give to any recipient.
const universalDonor = "O-"

// FilterEligible narrows locator candidates by blood-type compatibility.
// Without a required group every candidate is eligible (general alert).
// Hospitals always pass; donors pass on an exact match or when they are
// universal donors. This is a deliberate simplification, not a full
// ABO/Rh cross-matching matrix.
func FilterEligible(candidates []domain.ResponderCandidate, bloodGroup string) []domain.ResponderCandidate {
	if bloodGroup == "" {
		return candidates
	}

	eligible := make([]domain.ResponderCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Role == domain.RoleHospital {
			eligible = append(eligible, c)
			continue
		}
		if c.BloodGroup == bloodGroup || c.BloodGroup == universalDonor {
			eligible = append(eligible, c)
		}
	}
	return eligible
}
