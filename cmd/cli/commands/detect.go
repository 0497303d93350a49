package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inferloop/patternscope/internal/storage/implementations/file"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
)

type DetectOptions struct {
	seriesOptions
	Algorithm           string
	ThresholdMultiplier float64
	MinimumDataPoints   int
	Correlation         bool
	OutputFormat        string
	OutputFile          string
}

func NewDetectCmd(globals *GlobalOptions) *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect and classify patterns in sensor readings",
		Long: `Run pattern detection over a file of sensor readings, correlate the
sensors and classify every detected pattern.`,
		Example: `  # Detect with the configured algorithm
  patternscope detect --input readings.csv

  # Use the IQR detector on two sensors and write JSON
  patternscope detect -i readings.json --algorithm interquartile_range \
    --sensors ahu-1,ahu-2 --format json -o result.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, globals, opts)
		},
	}

	opts.seriesOptions.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Algorithm, "algorithm", "", "Detection algorithm (statistical_zscore, modified_zscore, interquartile_range, moving_average, seasonal_decomposition)")
	cmd.Flags().Float64Var(&opts.ThresholdMultiplier, "threshold-multiplier", 0, "Detector threshold multiplier")
	cmd.Flags().IntVar(&opts.MinimumDataPoints, "min-points", 0, "Minimum readings per sensor")
	cmd.Flags().BoolVar(&opts.Correlation, "correlation", true, "Correlate sensors")
	cmd.Flags().StringVar(&opts.OutputFormat, "format", constants.FormatText, "Output format (text, json, csv)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")

	return cmd
}

func runDetect(cmd *cobra.Command, globals *GlobalOptions, opts *DetectOptions) error {
	if err := checkFormat(opts.OutputFormat, constants.FormatText, constants.FormatJSON, constants.FormatCSV); err != nil {
		return err
	}

	cfg, logger, err := globals.load(cmd,
		flagBinding{"detection.algorithm", "algorithm"},
		flagBinding{"detection.threshold_multiplier", "threshold-multiplier"},
		flagBinding{"detection.minimum_data_points", "min-points"},
		flagBinding{"correlation.enabled", "correlation"},
	)
	if err != nil {
		return err
	}

	req, err := opts.loadSeries(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.Engine.DetectPatterns(cmd.Context(), *req)

	err = writeOutput(cmd, opts.OutputFile, func(w io.Writer) error {
		switch opts.OutputFormat {
		case constants.FormatJSON:
			return file.WriteJSON(w, result)
		case constants.FormatCSV:
			return file.WriteCSV(w, result)
		default:
			return printDetection(w, result)
		}
	})
	if err != nil {
		return err
	}

	if !result.Success {
		return errors.NewAppError(errors.ErrorTypeData, "DETECTION_FAILED", fmt.Sprintf("detection failed: %s", result.Error))
	}
	return nil
}

func checkFormat(format string, allowed ...string) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return errors.NewValidationError(errors.CodeInvalidInput, fmt.Sprintf("unsupported format %q, expected one of %v", format, allowed))
}
