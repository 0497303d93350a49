package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/patternscope/internal/api/handlers"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
)

type ClassifyOptions struct {
	InputFile    string
	OutputFormat string
	OutputFile   string
}

func NewClassifyCmd(globals *GlobalOptions) *cobra.Command {
	opts := &ClassifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify previously detected patterns",
		Long: `Classify the patterns of a saved detection result, or of any JSON
document with a "patterns" array, into failure patterns with risk scores.`,
		Example: `  # Re-classify a saved result with a different criticality table
  patternscope classify --input result.json --config site.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, globals, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "JSON file with a patterns array (required)")
	cmd.Flags().StringVar(&opts.OutputFormat, "format", constants.FormatText, "Output format (text, json)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")
	cmd.MarkFlagRequired("input")

	return cmd
}

func runClassify(cmd *cobra.Command, globals *GlobalOptions, opts *ClassifyOptions) error {
	if err := checkFormat(opts.OutputFormat, constants.FormatText, constants.FormatJSON); err != nil {
		return err
	}

	cfg, logger, err := globals.load(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.InputFile)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, fmt.Sprintf("Failed to read %s", opts.InputFile))
	}
	var req handlers.ClassifyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "Input is not a JSON document with a patterns array")
	}

	a, err := newApp(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	classifications, err := a.Engine.ClassifyPatterns(req.Patterns)
	if err != nil {
		return err
	}

	return writeOutput(cmd, opts.OutputFile, func(w io.Writer) error {
		if opts.OutputFormat == constants.FormatJSON {
			return encodeJSON(w, handlers.ClassifyResponse{Classifications: classifications})
		}
		return printClassifications(w, classifications)
	})
}
