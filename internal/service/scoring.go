package service

import (
	"strings"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
)

// Rule-based priority scoring. Deterministic, no side effects.

var typeWeights = map[domain.IncidentType]int{
	domain.IncidentDisaster:     50,
	domain.IncidentAccident:     40,
	domain.IncidentSurgery:      30,
	domain.IncidentBloodRequest: 20,
	domain.IncidentOther:        5,
}

var conditionWeights = []struct {
	keywords []string
	weight   int
}{
	{[]string{"heart", "cardiac"}, 15},
	{[]string{"diabetes", "sugar"}, 5},
	{[]string{"asthma", "breathing"}, 10},
	{[]string{"pregnant"}, 25},
}

// CalculatePriority maps an incident to an urgency score in [0, 100].
// All matching condition groups apply additively.
func CalculatePriority(incidentType domain.IncidentType, bloodGroup, medicalHistory string) int {
	score := 10 // base

	if w, ok := typeWeights[incidentType]; ok {
		score += w
	} else {
		score += typeWeights[domain.IncidentOther]
	}

	if bloodGroup != "" {
		switch bloodGroup {
		case "AB-", "O-":
			score += 20 // rarest
		case "A-", "B-":
			score += 10
		default:
			score += 5
		}
	}

	if medicalHistory != "" {
		history := strings.ToLower(medicalHistory)
		for _, cond := range conditionWeights {
			for _, kw := range cond.keywords {
				if strings.Contains(history, kw) {
					score += cond.weight
					break
				}
			}
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}
