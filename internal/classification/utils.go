package classification

import (
	"fmt"
	"sort"
	"strings"

	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/models"
)

var typeDescriptions = map[models.ClassifiedType]string{
	models.ClassifiedSustainedFailure:    "Continuous abnormal operation indicating an active equipment failure",
	models.ClassifiedIntermittentFailure: "Recurring anomalies at regular intervals indicating an unstable component",
	models.ClassifiedGradualDegradation:  "Steadily increasing deviation indicating progressive wear",
	models.ClassifiedSuddenSpike:         "Isolated extreme reading without sustaining context",
	models.ClassifiedCyclicPattern:       "Anomalies consistent with an operating cycle",
	models.ClassifiedThresholdBreach:     "Reading outside the configured operating limits",
	models.ClassifiedCascadeRisk:         "Critical anomaly correlated with other systems that may propagate",
}

var urgencyDescriptions = map[models.UrgencyLevel]string{
	models.UrgencyImmediate: "Respond immediately",
	models.UrgencyUrgent:    "Respond within one business day",
	models.UrgencyScheduled: "Schedule maintenance within the week",
	models.UrgencyMonitor:   "Continue monitoring",
}

var equipmentImpact = map[string]string{
	strings.ToLower(constants.EquipmentPower):      "power supply to the building",
	strings.ToLower(constants.EquipmentFireSafety): "life safety systems and code compliance",
	strings.ToLower(constants.EquipmentHVAC):       "occupant comfort and energy consumption",
	strings.ToLower(constants.EquipmentElevator):   "vertical transport and accessibility",
	strings.ToLower(constants.EquipmentWater):      "water supply and risk of leaks",
	strings.ToLower(constants.EquipmentSecurity):   "building access control and surveillance",
	strings.ToLower(constants.EquipmentLighting):   "lighting in affected areas",
}

// Description returns a human readable description of a classified type.
func Description(t models.ClassifiedType) string {
	if d, ok := typeDescriptions[t]; ok {
		return d
	}
	return "Unclassified pattern"
}

// UrgencyDescription describes the expected response to an urgency level.
func UrgencyDescription(level models.UrgencyLevel) string {
	if d, ok := urgencyDescriptions[level]; ok {
		return d
	}
	return "Review when convenient"
}

// BusinessImpact describes what is at stake for the equipment type at the
// given urgency.
func BusinessImpact(equipment string, level models.UrgencyLevel) string {
	affected, ok := equipmentImpact[strings.ToLower(equipment)]
	if !ok {
		affected = "building operations"
	}

	switch level {
	case models.UrgencyImmediate:
		return fmt.Sprintf("Imminent disruption of %s", affected)
	case models.UrgencyUrgent:
		return fmt.Sprintf("Likely disruption of %s if left unattended", affected)
	case models.UrgencyScheduled:
		return fmt.Sprintf("Reduced reliability of %s", affected)
	default:
		return fmt.Sprintf("No immediate impact on %s", affected)
	}
}

// EquipmentCriticality looks up equipment in table case-insensitively,
// returning fallback for unknown equipment.
func EquipmentCriticality(table map[string]float64, equipment string, fallback float64) float64 {
	if w, ok := table[equipment]; ok {
		return w
	}
	for name, w := range table {
		if strings.EqualFold(name, equipment) {
			return w
		}
	}
	return fallback
}

// PriorityScore ranks a result for work queues: the risk score boosted by
// urgency and severity, within [0, 100].
func PriorityScore(r models.ClassificationResult) int {
	score := r.RiskScore

	switch r.UrgencyLevel {
	case models.UrgencyImmediate:
		score += 20
	case models.UrgencyUrgent:
		score += 10
	case models.UrgencyScheduled:
		score += 5
	}

	switch r.Severity {
	case models.SeverityCritical:
		score += 10
	case models.SeverityWarning:
		score += 5
	}

	return int(clamp(score, 0, 100))
}

// SortByPriority sorts results by PriorityScore descending, then risk.
func SortByPriority(results []models.ClassificationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := PriorityScore(results[i]), PriorityScore(results[j])
		if pi != pj {
			return pi > pj
		}
		return results[i].RiskScore > results[j].RiskScore
	})
}
