package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/inferloop/patternscope/internal/classification"
	"github.com/inferloop/patternscope/internal/correlation"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// writeOutput runs write against stdout for "-" and against path otherwise.
func writeOutput(cmd *cobra.Command, path string, write func(w io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, fmt.Sprintf("Failed to create %s", path))
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, fmt.Sprintf("Failed to write %s", path))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Output written to %s\n", path)
	return nil
}

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func header(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
}

func printDetection(w io.Writer, result *models.DetectionResult) error {
	header(w, "Detection Results")

	if !result.Success {
		fmt.Fprintf(w, "Status:   failed (%s)\n", result.Error)
		return nil
	}

	fmt.Fprintf(w, "Window:   %s to %s\n", result.Window.Start.Format(time.RFC3339), result.Window.End.Format(time.RFC3339))
	if pm := result.PerformanceMetrics; pm != nil {
		fmt.Fprintf(w, "Sensors:  %d processed, %d failed\n", pm.SensorsProcessed, pm.SensorsFailed)
		sla := ""
		if pm.SLABreached {
			sla = fmt.Sprintf(", SLA exceeded by %.0f%%", pm.OveragePercent)
		}
		fmt.Fprintf(w, "Duration: %.1f ms (budget %.0f ms%s)\n", pm.ProcessingTimeMs, pm.BudgetMs, sla)
	}
	fmt.Fprintf(w, "Patterns: %d\n", len(result.Patterns))

	if len(result.Patterns) > 0 {
		fmt.Fprintln(w)
		byPattern := lo.KeyBy(result.Classifications, func(c models.ClassificationResult) string { return c.PatternID })

		patterns := append([]models.DetectedPattern(nil), result.Patterns...)
		sort.SliceStable(patterns, func(i, j int) bool {
			if patterns[i].SensorID != patterns[j].SensorID {
				return patterns[i].SensorID < patterns[j].SensorID
			}
			return patterns[i].Timestamp.Before(patterns[j].Timestamp)
		})

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SENSOR\tEQUIPMENT\tTIMESTAMP\tTYPE\tSEVERITY\tCONFIDENCE\tCLASSIFIED\tRISK\tURGENCY")
		for _, p := range patterns {
			c, ok := byPattern[p.ID]
			classified, risk, urgency := "-", "-", "-"
			if ok {
				classified = string(c.ClassifiedType)
				risk = fmt.Sprintf("%.1f", c.RiskScore)
				urgency = string(c.UrgencyLevel)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.1f\t%s\t%s\t%s\n",
				p.SensorID, lo.Ternary(p.EquipmentType == "", "-", p.EquipmentType),
				p.Timestamp.Format(time.RFC3339), p.PatternType, p.Severity,
				p.ConfidenceScore, classified, risk, urgency)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		printTypeLegend(w, result.Classifications)
	}

	if len(result.SensorErrors) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sensor errors:")
		ids := lo.Keys(result.SensorErrors)
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "- %s: %s\n", id, result.SensorErrors[id])
		}
	}

	if pm := result.PerformanceMetrics; pm != nil && len(pm.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Warnings:")
		for _, warning := range pm.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
	}
	return nil
}

func printClassifications(w io.Writer, classifications []models.ClassificationResult) error {
	header(w, "Classifications")
	fmt.Fprintf(w, "Patterns: %d\n", len(classifications))
	if len(classifications) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	ordered := append([]models.ClassificationResult(nil), classifications...)
	classification.SortByPriority(ordered)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tPATTERN\tSENSOR\tCLASSIFIED\tSEVERITY\tRISK\tFAILURE_P\tURGENCY\tRESPOND_WITHIN")
	for _, c := range ordered {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.1f\t%.2f\t%s\t%s\n",
			classification.PriorityScore(c), c.PatternID, c.SensorID, c.ClassifiedType, c.Severity,
			c.RiskScore, c.FailureProbability, c.UrgencyLevel, c.RecommendedResponseTime.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printTypeLegend(w, ordered)
	return nil
}

// printTypeLegend describes each classified type present, in first-seen order.
func printTypeLegend(w io.Writer, classifications []models.ClassificationResult) {
	types := lo.Uniq(lo.Map(classifications, func(c models.ClassificationResult, _ int) models.ClassifiedType {
		return c.ClassifiedType
	}))
	if len(types) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Pattern types:")
	for _, t := range types {
		fmt.Fprintf(w, "- %s: %s\n", t, classification.Description(t))
	}
}

func printMatrix(w io.Writer, m correlation.Matrix) error {
	header(w, "Correlation Matrix")
	if len(m.SensorIDs) == 0 {
		fmt.Fprintln(w, "No sensors")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(m.SensorIDs, "\t"))
	for i, id := range m.SensorIDs {
		cells := lo.Map(m.Coefficients[i], func(r float64, _ int) string { return fmt.Sprintf("%.2f", r) })
		fmt.Fprintf(tw, "%s\t%s\t\n", id, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
