package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/patternscope/internal/classification"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/pkg/models"
)

type recordingNotifier struct {
	sent []Alert
	err  error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(_ context.Context, alert *Alert) error {
	n.sent = append(n.sent, *alert)
	return n.err
}

func alertingConfig() config.AlertingConfig {
	cfg := config.Default().Alerting
	cfg.Enabled = true
	return cfg
}

func classified(sensor string, classifiedType models.ClassifiedType, risk float64) models.ClassificationResult {
	return models.ClassificationResult{
		PatternID:      sensor + "-p",
		SensorID:       sensor,
		ClassifiedType: classifiedType,
		Severity:       models.SeverityCritical,
		RiskScore:      risk,
		UrgencyLevel:   models.UrgencyImmediate,
	}
}

func run(sensors []string, classifications ...models.ClassificationResult) *models.DetectionResult {
	summary := make(map[string]models.StatisticalMetrics)
	for _, s := range sensors {
		summary[s] = models.StatisticalMetrics{}
	}
	return &models.DetectionResult{Success: true, Classifications: classifications, StatisticalSummary: summary}
}

func newManager(n Notifier) (*Manager, *time.Time) {
	clock := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	logger, _ := test.NewNullLogger()
	m := NewManager(alertingConfig(), logger, n)
	m.now = func() time.Time { return clock }
	return m, &clock
}

func TestFiresAboveRiskThreshold(t *testing.T) {
	n := &recordingNotifier{}
	m, _ := newManager(n)

	err := m.PersistResults(context.Background(), run([]string{"ahu-1", "ahu-2"},
		classified("ahu-1", models.ClassifiedSustainedFailure, 85),
		classified("ahu-2", models.ClassifiedSuddenSpike, 40),
	))
	require.NoError(t, err)

	require.Len(t, n.sent, 1)
	assert.Equal(t, "ahu-1", n.sent[0].SensorID)
	assert.Equal(t, StatusFiring, n.sent[0].Status)
	assert.Contains(t, n.sent[0].Message, "sustained_failure on ahu-1")

	active := m.Active()
	require.Len(t, active, 1)
	assert.NotNil(t, active[0].NotifiedAt)
}

func TestRepeatsAreSuppressedWithinInterval(t *testing.T) {
	n := &recordingNotifier{}
	m, clock := newManager(n)
	result := run([]string{"ahu-1"}, classified("ahu-1", models.ClassifiedSustainedFailure, 85))

	require.NoError(t, m.PersistResults(context.Background(), result))
	*clock = clock.Add(10 * time.Minute)
	require.NoError(t, m.PersistResults(context.Background(), result))
	assert.Len(t, n.sent, 1)
	assert.Equal(t, 1, m.Active()[0].RepeatCount)

	*clock = clock.Add(time.Hour)
	require.NoError(t, m.PersistResults(context.Background(), result))
	assert.Len(t, n.sent, 2)
	assert.Equal(t, 2, n.sent[1].RepeatCount)
}

func TestResolvesOnlyAnalyzedSensors(t *testing.T) {
	n := &recordingNotifier{}
	m, _ := newManager(n)

	require.NoError(t, m.PersistResults(context.Background(), run([]string{"ahu-1", "ahu-2"},
		classified("ahu-1", models.ClassifiedSustainedFailure, 85),
		classified("ahu-2", models.ClassifiedCascadeRisk, 90),
	)))
	require.Len(t, m.Active(), 2)

	// ahu-2 failed to load this run, so its alert stays open.
	require.NoError(t, m.PersistResults(context.Background(), run([]string{"ahu-1"})))

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "ahu-2", active[0].SensorID)

	last := n.sent[len(n.sent)-1]
	assert.Equal(t, StatusResolved, last.Status)
	assert.Equal(t, "ahu-1", last.SensorID)
	assert.NotNil(t, last.EndsAt)
}

func TestFailedRunIsIgnored(t *testing.T) {
	n := &recordingNotifier{}
	m, _ := newManager(n)

	require.NoError(t, m.PersistResults(context.Background(), &models.DetectionResult{Success: false}))
	require.NoError(t, m.PersistResults(context.Background(), nil))
	assert.Empty(t, n.sent)
}

func TestActiveLimit(t *testing.T) {
	n := &recordingNotifier{}
	m, _ := newManager(n)
	m.config.MaxActiveAlerts = 1

	require.NoError(t, m.PersistResults(context.Background(), run([]string{"ahu-1", "ahu-2"},
		classified("ahu-1", models.ClassifiedSustainedFailure, 85),
		classified("ahu-2", models.ClassifiedSustainedFailure, 95),
	)))
	assert.Len(t, m.Active(), 1)
}

func TestNotifierErrorIsReturned(t *testing.T) {
	n := &recordingNotifier{err: errors.New("webhook down")}
	m, _ := newManager(n)

	err := m.PersistResults(context.Background(), run([]string{"ahu-1"},
		classified("ahu-1", models.ClassifiedSustainedFailure, 85)))
	assert.EqualError(t, err, "webhook down")
	assert.Len(t, m.Active(), 1)
}

func TestLogNotifierLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	n := NewLogNotifier(logger)

	require.NoError(t, n.Send(context.Background(), &Alert{Status: StatusFiring, Severity: models.SeverityCritical, Message: "m"}))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)

	require.NoError(t, n.Send(context.Background(), &Alert{Status: StatusFiring, Severity: models.SeverityWarning, Message: "m"}))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	require.NoError(t, n.Send(context.Background(), &Alert{Status: StatusResolved, Message: "m"}))
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "Alert resolved: m", hook.LastEntry().Message)
}

func TestAlertsCarryDescriptionAndPriority(t *testing.T) {
	n := &recordingNotifier{}
	m, _ := newManager(n)

	monitor := classified("ahu-2", models.ClassifiedCyclicPattern, 90)
	monitor.UrgencyLevel = models.UrgencyMonitor
	monitor.Severity = models.SeverityInfo

	require.NoError(t, m.PersistResults(context.Background(), run([]string{"ahu-1", "ahu-2"},
		classified("ahu-1", models.ClassifiedSustainedFailure, 80),
		monitor,
	)))

	active := m.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "ahu-1", active[0].SensorID)
	assert.Equal(t, 100, active[0].Priority)
	assert.Equal(t, 90, active[1].Priority)

	assert.Equal(t, classification.Description(models.ClassifiedSustainedFailure), active[0].Description)
	assert.Contains(t, active[0].Message, classification.Description(models.ClassifiedSustainedFailure))
}
