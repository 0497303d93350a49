package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/inferloop/patternscope/pkg/constants"
)

type CorrelateOptions struct {
	seriesOptions
	OutputFormat string
	OutputFile   string
}

func NewCorrelateCmd(globals *GlobalOptions) *cobra.Command {
	opts := &CorrelateOptions{}

	cmd := &cobra.Command{
		Use:     "correlate",
		Short:   "Print the correlation matrix of the sensors in a file",
		Example: `  patternscope correlate --input readings.csv --sensors ahu-1,ahu-2,chiller-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorrelate(cmd, globals, opts)
		},
	}

	opts.seriesOptions.addFlags(cmd)
	cmd.Flags().Duration("alignment-interval", 0, "Bucket width used to align the series")
	cmd.Flags().StringVar(&opts.OutputFormat, "format", constants.FormatText, "Output format (text, json)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")

	return cmd
}

func runCorrelate(cmd *cobra.Command, globals *GlobalOptions, opts *CorrelateOptions) error {
	if err := checkFormat(opts.OutputFormat, constants.FormatText, constants.FormatJSON); err != nil {
		return err
	}

	cfg, logger, err := globals.load(cmd, flagBinding{"correlation.alignment_interval", "alignment-interval"})
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

	matrix, err := a.Engine.CorrelationMatrix(cmd.Context(), *req)
	if err != nil {
		return err
	}

	return writeOutput(cmd, opts.OutputFile, func(w io.Writer) error {
		if opts.OutputFormat == constants.FormatJSON {
			return encodeJSON(w, matrix)
		}
		return printMatrix(w, matrix)
	})
}
