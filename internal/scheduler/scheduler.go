// Package scheduler runs per-sensor work in bounded batches and tracks the
// processing budget of each run.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/metrics"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// Outcome is the result of the work done for one sensor.
type Outcome struct {
	SensorID    string
	Patterns    []models.DetectedPattern
	Statistics  *models.StatisticalMetrics
	OutOfWindow int
	CacheHits   int
	CacheMisses int
	Err         error
}

// WorkFunc processes one sensor. Failures are reported through Outcome.Err so
// that one sensor never fails its batch.
type WorkFunc func(ctx context.Context, sensorID string) Outcome

// Report summarizes a scheduler run. Outcomes are in sensor id order
// regardless of completion order.
type Report struct {
	Outcomes []Outcome
	Elapsed  time.Duration
	Budget   time.Duration
	Batches  int
	Breach   *errors.AppError
}

// Breached reports whether the run exceeded its budget.
func (r *Report) Breached() bool {
	return r.Breach != nil
}

// OveragePercent is how far the run went over budget, 0 when within it.
func (r *Report) OveragePercent() float64 {
	if r.Budget <= 0 || r.Elapsed <= r.Budget {
		return 0
	}
	return float64(r.Elapsed-r.Budget) / float64(r.Budget) * 100
}

// Failed returns the number of outcomes carrying an error.
func (r *Report) Failed() int {
	return lo.CountBy(r.Outcomes, func(o Outcome) bool { return o.Err != nil })
}

// Scheduler executes sensors in fixed-size batches. A batch runs
// concurrently and completes before the next one starts.
type Scheduler struct {
	config  config.SchedulerConfig
	logger  *logrus.Logger
	metrics *metrics.PrometheusMetrics
	now     func() time.Time
}

// New creates a scheduler. m may be nil.
func New(cfg config.SchedulerConfig, logger *logrus.Logger, m *metrics.PrometheusMetrics) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Scheduler{
		config:  cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}, nil
}

// Run processes every sensor id once. Cancellation is honoured between
// batches only; the report then holds the outcomes of the finished batches
// and the context error is returned alongside it.
func (s *Scheduler) Run(ctx context.Context, sensorIDs []string, work WorkFunc) (*Report, error) {
	ids := lo.Uniq(sensorIDs)
	sort.Strings(ids)

	batches := lo.Chunk(ids, s.config.MaxSensorsParallel)
	report := &Report{
		Outcomes: make([]Outcome, 0, len(ids)),
		Budget:   s.config.Budget(len(ids)),
	}

	start := s.now()
	var runErr error
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			runErr = errors.WrapError(err, errors.ErrorTypeInternal, "CANCELLED",
				fmt.Sprintf("run cancelled after %d of %d batches", i, len(batches)))
			break
		}

		report.Outcomes = append(report.Outcomes, s.runBatch(ctx, batch, work)...)
		report.Batches++

		s.logger.WithFields(logrus.Fields{
			"batch":   i + 1,
			"batches": len(batches),
			"sensors": len(batch),
		}).Debug("Batch completed")
	}
	report.Elapsed = s.now().Sub(start)

	for _, outcome := range report.Outcomes {
		status := "success"
		if outcome.Err != nil {
			status = "failed"
		}
		s.metrics.RecordSensorProcessed(status)
	}

	if report.Elapsed > report.Budget {
		s.recordBreach(report, len(ids))
	}

	return report, runErr
}

// runBatch runs one batch concurrently and returns outcomes in batch order.
func (s *Scheduler) runBatch(ctx context.Context, batch []string, work WorkFunc) []Outcome {
	outcomes := make([]Outcome, len(batch))

	var g errgroup.Group
	for i, sensorID := range batch {
		i, sensorID := i, sensorID
		g.Go(func() error {
			outcomes[i] = s.safeWork(ctx, sensorID, work)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (s *Scheduler) safeWork(ctx context.Context, sensorID string, work WorkFunc) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithFields(logrus.Fields{
				"sensor_id": sensorID,
				"panic":     r,
			}).Error("Sensor work panicked")
			outcome = Outcome{
				SensorID: sensorID,
				Err:      errors.NewInternalError(fmt.Sprintf("processing sensor %s panicked: %v", sensorID, r)),
			}
		}
	}()

	outcome = work(ctx, sensorID)
	outcome.SensorID = sensorID
	return outcome
}

func (s *Scheduler) recordBreach(report *Report, sensors int) {
	report.Breach = errors.NewSlaBreachWarning(report.Elapsed, report.Budget, sensors)
	overage := report.OveragePercent()

	s.logger.WithFields(logrus.Fields{
		"processing_time_ms": report.Elapsed.Milliseconds(),
		"budget_ms":          report.Budget.Milliseconds(),
		"overage_pct":        overage,
		"sensors":            sensors,
		"batches":            report.Batches,
	}).Warn("Detection run exceeded processing budget")

	s.metrics.RecordSLABreach(overage / 100)
}
