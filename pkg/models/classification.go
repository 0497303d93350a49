package models

// ClassifiedType is the semantic type assigned by the classifier.
type ClassifiedType string

const (
	ClassifiedSustainedFailure    ClassifiedType = "sustained_failure"
	ClassifiedIntermittentFailure ClassifiedType = "intermittent_failure"
	ClassifiedGradualDegradation  ClassifiedType = "gradual_degradation"
	ClassifiedSuddenSpike         ClassifiedType = "sudden_spike"
	ClassifiedCyclicPattern       ClassifiedType = "cyclic_pattern"
	ClassifiedThresholdBreach     ClassifiedType = "threshold_breach"
	ClassifiedCascadeRisk         ClassifiedType = "cascade_risk"
)

// ClassifiedTypes lists every classified type.
func ClassifiedTypes() []ClassifiedType {
	return []ClassifiedType{
		ClassifiedSustainedFailure,
		ClassifiedIntermittentFailure,
		ClassifiedGradualDegradation,
		ClassifiedSuddenSpike,
		ClassifiedCyclicPattern,
		ClassifiedThresholdBreach,
		ClassifiedCascadeRisk,
	}
}

// UrgencyLevel is the response urgency of a classified pattern.
type UrgencyLevel string

const (
	UrgencyImmediate UrgencyLevel = "immediate"
	UrgencyUrgent    UrgencyLevel = "urgent"
	UrgencyScheduled UrgencyLevel = "scheduled"
	UrgencyMonitor   UrgencyLevel = "monitor"
)

// Rank orders urgency levels, monitor lowest.
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyMonitor:
		return 1
	case UrgencyScheduled:
		return 2
	case UrgencyUrgent:
		return 3
	case UrgencyImmediate:
		return 4
	default:
		return 0
	}
}

// ClassificationFactor is one auditable contribution to a risk score.
// 0 <= Contribution <= Weight <= 1.
type ClassificationFactor struct {
	FactorName   string  `json:"factor_name"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ResponseTime is the recommended time to respond to a pattern.
type ResponseTime struct {
	Hours          float64 `json:"hours"`
	Description    string  `json:"description"`
	BusinessImpact string  `json:"business_impact"`
}

// ClassificationResult is produced once per pattern and never mutated.
type ClassificationResult struct {
	PatternID               string                 `json:"pattern_id"`
	SensorID                string                 `json:"sensor_id"`
	EquipmentType           string                 `json:"equipment_type"`
	OriginalType            PatternType            `json:"original_type"`
	ClassifiedType          ClassifiedType         `json:"classified_type"`
	Severity                Severity               `json:"severity"`
	OriginalSeverity        Severity               `json:"original_severity"`
	ConfidenceScore         float64                `json:"confidence_score"`
	ClassificationFactors   []ClassificationFactor `json:"classification_factors"`
	RiskScore               float64                `json:"risk_score"`
	UrgencyLevel            UrgencyLevel           `json:"urgency_level"`
	FailureProbability      float64                `json:"failure_probability"`
	RecommendedResponseTime ResponseTime           `json:"recommended_response_time"`
}

// Escalated reports whether classification raised the pattern's severity.
func (r ClassificationResult) Escalated() bool {
	return r.Severity.Rank() > r.OriginalSeverity.Rank()
}
