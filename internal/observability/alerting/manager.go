// Package alerting raises alerts for high-risk classified patterns and
// resolves them once a later run finds the sensor healthy again.
package alerting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/classification"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/models"
)

type Status string

const (
	StatusFiring   Status = "firing"
	StatusResolved Status = "resolved"
)

// Alert tracks one failure pattern on one sensor across detection runs.
type Alert struct {
	ID             string                `json:"id"`
	PatternID      string                `json:"pattern_id"`
	SensorID       string                `json:"sensor_id"`
	EquipmentType  string                `json:"equipment_type"`
	ClassifiedType models.ClassifiedType `json:"classified_type"`
	Description    string                `json:"description"`
	Severity       models.Severity       `json:"severity"`
	RiskScore      float64               `json:"risk_score"`
	Priority       int                   `json:"priority"`
	UrgencyLevel   models.UrgencyLevel   `json:"urgency_level"`
	ResponseTime   models.ResponseTime   `json:"response_time"`
	Message        string                `json:"message"`
	Status         Status                `json:"status"`
	StartsAt       time.Time             `json:"starts_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	EndsAt         *time.Time            `json:"ends_at,omitempty"`
	NotifiedAt     *time.Time            `json:"notified_at,omitempty"`
	RepeatCount    int                   `json:"repeat_count"`
}

// Notifier delivers alert state changes.
type Notifier interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
}

// Manager implements the result sink interface: every persisted detection
// result is evaluated against the active alerts.
type Manager struct {
	config    config.AlertingConfig
	logger    *logrus.Logger
	notifiers []Notifier

	mu     sync.Mutex
	active map[string]*Alert
	now    func() time.Time
}

// NewManager creates a manager. Without notifiers, alerts are logged.
func NewManager(cfg config.AlertingConfig, logger *logrus.Logger, notifiers ...Notifier) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if len(notifiers) == 0 {
		notifiers = []Notifier{NewLogNotifier(logger)}
	}
	return &Manager{
		config:    cfg,
		logger:    logger,
		notifiers: notifiers,
		active:    make(map[string]*Alert),
		now:       time.Now,
	}
}

// PersistResults fires or refreshes an alert for every classification at or
// above the risk threshold, and resolves the alerts of analyzed sensors that
// no longer show that failure pattern.
func (m *Manager) PersistResults(ctx context.Context, result *models.DetectionResult) error {
	if result == nil || !result.Success {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	seen := make(map[string]bool)
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, c := range result.Classifications {
		if c.RiskScore < m.config.MinRiskScore {
			continue
		}
		key := alertKey(c.SensorID, c.ClassifiedType)
		seen[key] = true

		if alert, ok := m.active[key]; ok {
			alert.PatternID = c.PatternID
			alert.Severity = c.Severity
			alert.RiskScore = c.RiskScore
			alert.Priority = classification.PriorityScore(c)
			alert.UrgencyLevel = c.UrgencyLevel
			alert.ResponseTime = c.RecommendedResponseTime
			alert.Message = message(c)
			alert.UpdatedAt = now
			alert.RepeatCount++
			if m.shouldRepeat(alert, now) {
				record(m.notify(ctx, alert, now))
			}
			continue
		}

		if len(m.active) >= m.config.MaxActiveAlerts {
			m.logger.WithFields(logrus.Fields{
				"sensor_id":       c.SensorID,
				"classified_type": c.ClassifiedType,
				"max_active":      m.config.MaxActiveAlerts,
			}).Warn("Active alert limit reached, alert dropped")
			continue
		}

		alert := &Alert{
			ID:             uuid.NewString(),
			PatternID:      c.PatternID,
			SensorID:       c.SensorID,
			EquipmentType:  c.EquipmentType,
			ClassifiedType: c.ClassifiedType,
			Description:    classification.Description(c.ClassifiedType),
			Severity:       c.Severity,
			RiskScore:      c.RiskScore,
			Priority:       classification.PriorityScore(c),
			UrgencyLevel:   c.UrgencyLevel,
			ResponseTime:   c.RecommendedResponseTime,
			Message:        message(c),
			Status:         StatusFiring,
			StartsAt:       now,
			UpdatedAt:      now,
		}
		m.active[key] = alert
		record(m.notify(ctx, alert, now))
	}

	for key, alert := range m.active {
		if seen[key] {
			continue
		}
		if _, analyzed := result.StatisticalSummary[alert.SensorID]; !analyzed {
			continue
		}
		ended := now
		alert.Status = StatusResolved
		alert.EndsAt = &ended
		alert.UpdatedAt = now
		delete(m.active, key)
		record(m.notify(ctx, alert, now))
	}

	return firstErr
}

// Active returns the firing alerts, highest priority first.
func (m *Manager) Active() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := make([]Alert, 0, len(m.active))
	for _, alert := range m.active {
		alerts = append(alerts, *alert)
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Priority != alerts[j].Priority {
			return alerts[i].Priority > alerts[j].Priority
		}
		if alerts[i].RiskScore != alerts[j].RiskScore {
			return alerts[i].RiskScore > alerts[j].RiskScore
		}
		return alerts[i].SensorID < alerts[j].SensorID
	})
	return alerts
}

func (m *Manager) Close() error {
	return nil
}

func (m *Manager) shouldRepeat(alert *Alert, now time.Time) bool {
	if alert.NotifiedAt == nil {
		return true
	}
	return now.Sub(*alert.NotifiedAt) >= m.config.RepeatInterval
}

func (m *Manager) notify(ctx context.Context, alert *Alert, now time.Time) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"notifier": n.Name(),
				"alert_id": alert.ID,
			}).Error("Failed to send alert notification")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	notified := now
	alert.NotifiedAt = &notified
	return firstErr
}

func alertKey(sensorID string, classified models.ClassifiedType) string {
	return sensorID + "|" + string(classified)
}

func message(c models.ClassificationResult) string {
	return fmt.Sprintf("%s on %s: risk %.0f, %s response (%s). %s",
		c.ClassifiedType, c.SensorID, c.RiskScore, c.UrgencyLevel, c.RecommendedResponseTime.Description,
		classification.Description(c.ClassifiedType))
}
