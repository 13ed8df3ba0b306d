package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"annotationqc/pkg/config"
	"annotationqc/pkg/labelmap"
	"annotationqc/pkg/pipeline"
	"annotationqc/pkg/report"
	"annotationqc/pkg/visualization"
)

const (
	defaultConfigPath = "qc_config.yaml"
	watchDebounce     = 500 * time.Millisecond
)

var (
	configPath string
	verbose    bool
	logger     *zap.Logger

	dataPath    string
	tool        string
	view        string
	structureID string
	workers     int
	reportDir   string
	noColor     bool
	watch       bool
)

var rootCmd = &cobra.Command{
	Use:           "annotationqc",
	Short:         "Quality control for medical image annotations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check every case of a dataset and write the summary report",
	RunE:  runQC,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and its label maps",
	RunE:  validateConfig,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.CreateDefaultConfigFile(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to the QC configuration (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	runCmd.Flags().StringVarP(&dataPath, "data", "d", "", "Dataset root (default: current_run_context.base_data_path)")
	runCmd.Flags().StringVar(&tool, "tool", "", "Annotator tool (default: current_run_context.annotator_tool)")
	runCmd.Flags().StringVar(&view, "view", "", "View to check (default: current_run_context.data_view)")
	runCmd.Flags().StringVar(&structureID, "structure", "", "Path template id (default: current_run_context.structure_id)")
	runCmd.Flags().IntVarP(&workers, "workers", "w", 1, "Number of cases processed concurrently")
	runCmd.Flags().StringVar(&reportDir, "report-dir", ".", "Directory the summary report is written to")
	runCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	runCmd.Flags().BoolVar(&watch, "watch", false, "Re-run whenever files under the dataset root change")

	rootCmd.AddCommand(runCmd, validateCmd, initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runQC(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := runOnce(ctx, cmd, cfg); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	root := dataPath
	if root == "" {
		root = cfg.RunContext.BaseDataPath
	}
	watcher, err := newTreeWatcher(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	defer watcher.Close()
	logger.Info("watching for annotation changes", zap.String("path", root))
	watchLoop(ctx, watcher, watchDebounce, logger, func() error {
		return runOnce(ctx, cmd, cfg)
	})
	return nil
}

// runOnce processes the dataset, prints every case and writes the report
func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	runner, err := pipeline.NewRunner(&pipeline.Params{
		Config:      cfg,
		BasePath:    dataPath,
		Tool:        tool,
		View:        view,
		StructureID: structureID,
		Workers:     workers,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	meta := report.NewMeta()
	logger.Info("starting QC run", zap.String("run", meta.RunID), zap.String("config", configPath))
	start := time.Now()
	summary, err := runner.Process(ctx)
	if err != nil {
		if summary == nil {
			return err
		}
		logger.Warn("run interrupted, reporting finished cases", zap.Error(err))
	}
	logger.Info("QC run finished", zap.Duration("elapsed", time.Since(start)), zap.Int("cases", len(summary.Cases)))

	out := cmd.OutOrStdout()
	viewer := visualization.NewViewer(!noColor)
	for _, c := range summary.Cases {
		fmt.Fprintln(out)
		fmt.Fprint(out, viewer.RenderCase(c.CaseID, c.Results))
	}

	location, err := report.WriteFile(context.WithoutCancel(ctx), nil, reportDir, summary, meta)
	if err != nil {
		return err
	}
	processed, passed, failed, warned := summary.Totals()
	fmt.Fprintln(out)
	fmt.Fprint(out, viewer.RenderTotals(processed, passed, failed, warned, location))
	return nil
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	resolver := labelmap.New(cfg.LabelMapping)
	if err := resolver.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for name := range cfg.LabelMapping {
		m, err := resolver.EffectiveMap(name)
		if err != nil {
			return err
		}
		logger.Debug("label map resolved", zap.String("view", name), zap.Int("labels", m.Len()))
	}
	enabled := 0
	for _, rule := range cfg.Rules {
		if rule.Enabled {
			enabled++
		}
	}
	fmt.Fprintf(out, "%s is valid: %d views, %d rules (%d enabled)\n", configPath, len(cfg.LabelMapping), len(cfg.Rules), enabled)
	return nil
}
