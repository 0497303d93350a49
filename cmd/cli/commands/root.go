package commands

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inferloop/patternscope/internal/app"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/logging"
	"github.com/inferloop/patternscope/internal/storage/implementations/file"
	"github.com/inferloop/patternscope/pkg/constants"
	"github.com/inferloop/patternscope/pkg/errors"
	"github.com/inferloop/patternscope/pkg/models"
)

// GlobalOptions are the persistent flags of the root command.
type GlobalOptions struct {
	ConfigFile string
	Verbose    bool
}

func NewRootCmd() *cobra.Command {
	globals := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "patternscope",
		Short: "Sensor pattern detection and classification",
		Long: `Detect anomalies, trends and threshold breaches in building sensor
time series, classify them into failure patterns and rank them by risk.`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&globals.ConfigFile, "config", "", "config file (default is ./patternscope.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewDetectCmd(globals))
	rootCmd.AddCommand(NewClassifyCmd(globals))
	rootCmd.AddCommand(NewCorrelateCmd(globals))

	return rootCmd
}

// flagBinding maps a config key to the flag that overrides it.
type flagBinding struct {
	key  string
	flag string
}

// load resolves the configuration with the changed flags of cmd layered on
// top of the file and environment.
func (g *GlobalOptions) load(cmd *cobra.Command, bindings ...flagBinding) (config.Config, *logrus.Logger, error) {
	v := viper.New()
	for _, b := range bindings {
		f := cmd.Flags().Lookup(b.flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return config.Config{}, nil, err
		}
	}

	cfg, err := config.LoadWith(v, g.ConfigFile)
	if err != nil {
		return config.Config{}, nil, err
	}

	logger := logging.New(cfg.Logging)
	if cfg.Logging.File == "" {
		logger.SetOutput(cmd.ErrOrStderr())
	}
	if g.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return cfg, logger, nil
}

// seriesOptions select the input readings of a command.
type seriesOptions struct {
	InputFile string
	Sensors   []string
	Start     string
	End       string
}

func (o *seriesOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.InputFile, "input", "i", "", "Input file with sensor readings, CSV or JSON (required)")
	cmd.Flags().StringSliceVarP(&o.Sensors, "sensors", "s", nil, "Only analyze these sensor IDs")
	cmd.Flags().StringVar(&o.Start, "start", "", "Window start, RFC3339 (default: earliest reading)")
	cmd.Flags().StringVar(&o.End, "end", "", "Window end, RFC3339 (default: latest reading)")
	cmd.MarkFlagRequired("input")
}

func (o *seriesOptions) window() (models.AnalysisWindow, error) {
	var window models.AnalysisWindow
	if o.Start == "" && o.End == "" {
		return window, nil
	}
	if o.Start == "" || o.End == "" {
		return window, errors.NewValidationError(errors.CodeInvalidTimeRange, "--start and --end must be given together")
	}

	var err error
	if window.Start, err = time.Parse(time.RFC3339, o.Start); err != nil {
		return window, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidTimeRange, "invalid --start")
	}
	if window.End, err = time.Parse(time.RFC3339, o.End); err != nil {
		return window, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidTimeRange, "invalid --end")
	}
	if err := window.Validate(); err != nil {
		return window, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidTimeRange, err.Error())
	}
	return window, nil
}

func (o *seriesOptions) loadSeries(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*models.DetectionRequest, error) {
	window, err := o.window()
	if err != nil {
		return nil, err
	}

	source, err := file.NewFileStorage(&config.FileConfig{
		InputPath: o.InputFile,
		Format:    cfg.Storage.File.Format,
	}, logger)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	return source.LoadSeries(ctx, o.Sensors, window)
}

func newApp(cmd *cobra.Command, cfg config.Config, logger *logrus.Logger) (*app.App, error) {
	return app.New(cmd.Context(), cfg, logger)
}
