package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/chronodyn/internal/config"
	"github.com/san-kum/chronodyn/internal/telemetry"
)

var (
	dataDir     string
	logLevel    string
	logJSON     bool
	metricsFile string

	configFile string
	preset     string
	integrator string
	tauStart   float64
	tauEnd     float64
	samples    int
	rtol       float64
	atol       float64
	maxStep    float64
	step       float64
	a0         float64
	initX      float64
	initV      float64
	coupling   float64
	timeScale  float64
	overrides  []string
	sensitive  bool

	xAxis         int
	yAxis         int
	figOut        string
	steps         []float64
	workers       int
	couplingGrid  []float64
	timeScaleGrid []float64
	target        float64

	logger   = slog.New(slog.DiscardHandler)
	recorder *telemetry.Recorder
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "chronodyn",
		Short:         "chronodynamic cosmology background solver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLogger(logLevel, logJSON)
			if err != nil {
				return err
			}
			logger = l
			if metricsFile != "" {
				if recorder, err = telemetry.New(telemetry.DefaultConfig()); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if recorder == nil {
				return nil
			}
			return recorder.WriteTextfile(metricsFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate a model and store the run",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulation,
	}
	addModelFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run columns",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&figOut, "out", "", "also write a figure (png, svg or pdf)")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase space plot",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&xAxis, "x-axis", 0, "state index for x-axis")
	phaseCmd.Flags().IntVar(&yAxis, "y-axis", 1, "state index for y-axis")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "stability and constraint diagnostics for a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	tensorCmd := &cobra.Command{
		Use:   "tensor",
		Short: "evaluate the chronodynamic tensor at probe points",
		Args:  cobra.NoArgs,
		RunE:  tensorProbe,
	}
	addModelFlags(tensorCmd)

	convergenceCmd := &cobra.Command{
		Use:   "convergence [model]",
		Short: "empirical order of accuracy of a fixed-step method",
		Args:  cobra.ExactArgs(1),
		RunE:  convergenceStudy,
	}
	addModelFlags(convergenceCmd)
	convergenceCmd.Flags().Float64SliceVar(&steps, "steps", []float64{0.1, 0.05, 0.025}, "step sizes")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "solve the background over a coupling and time-scale grid",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addModelFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&couplingGrid, "coupling-grid", []float64{0, 0.5, 1, 2}, "coupling values")
	sweepCmd.Flags().Float64SliceVar(&timeScaleGrid, "time-scale-grid", []float64{1}, "time scale values")
	sweepCmd.Flags().IntVar(&workers, "workers", 4, "parallel solves")
	sweepCmd.Flags().Float64Var(&target, "target", 2, "final scale factor to rank points against")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models := config.ListModels()
			if len(args) == 1 {
				models = args
			}
			for _, m := range models {
				presets := config.ListPresets(m)
				if len(presets) == 0 {
					fmt.Printf("no presets for model: %s\n", m)
					continue
				}
				fmt.Printf("presets for %s:\n", m)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, phaseCmd, analyzeCmd, tensorCmd,
		convergenceCmd, sweepCmd, presetsCmd, exportCSVCmd, exportJSONCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&integrator, "integrator", "rk45", "rk45, rosenbrock23, rk4, euler or verlet")
	f.Float64Var(&tauStart, "tau-start", config.DefaultTauStart, "start of the time span")
	f.Float64Var(&tauEnd, "tau-end", config.DefaultTauEnd, "end of the time span")
	f.IntVar(&samples, "samples", config.DefaultSamples, "evenly spaced output samples")
	f.Float64Var(&rtol, "rtol", config.DefaultRTol, "relative tolerance")
	f.Float64Var(&atol, "atol", config.DefaultATol, "absolute tolerance")
	f.Float64Var(&maxStep, "max-step", config.DefaultMaxStep, "largest step")
	f.Float64Var(&step, "step", 0, "fixed step for rk4, euler and verlet")
	f.Float64Var(&a0, "a0", config.DefaultA0, "initial scale factor")
	f.Float64Var(&initX, "x", 1, "initial position (reference systems)")
	f.Float64Var(&initV, "v", 0, "initial velocity (reference systems)")
	f.Float64Var(&coupling, "coupling", 1, "chronodynamic coupling S")
	f.Float64Var(&timeScale, "time-scale", 1, "time field scale T0")
	f.BoolVar(&sensitive, "sensitivity", false, "estimate the divergence rate of nearby states (reference systems)")
	f.StringArrayVar(&overrides, "set", nil, "model parameter override name=value (repeatable)")
}

func newLogger(level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
