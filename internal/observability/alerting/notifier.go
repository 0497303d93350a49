package alerting

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/pkg/models"
)

// LogNotifier writes alert changes to the process log.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Send(_ context.Context, alert *Alert) error {
	entry := n.logger.WithFields(logrus.Fields{
		"alert_id":        alert.ID,
		"status":          alert.Status,
		"sensor_id":       alert.SensorID,
		"equipment_type":  alert.EquipmentType,
		"classified_type": alert.ClassifiedType,
		"risk_score":      alert.RiskScore,
		"urgency_level":   alert.UrgencyLevel,
		"repeat_count":    alert.RepeatCount,
	})

	switch {
	case alert.Status == StatusResolved:
		entry.Info("Alert resolved: " + alert.Message)
	case alert.Severity == models.SeverityCritical:
		entry.Error("Alert firing: " + alert.Message)
	default:
		entry.Warn("Alert firing: " + alert.Message)
	}
	return nil
}
