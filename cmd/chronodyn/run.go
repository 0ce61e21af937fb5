package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/chronodyn/internal/analysis"
	"github.com/san-kum/chronodyn/internal/config"
	"github.com/san-kum/chronodyn/internal/experiment"
	"github.com/san-kum/chronodyn/internal/field"
	"github.com/san-kum/chronodyn/internal/report"
	"github.com/san-kum/chronodyn/internal/storage"
)

// loadConfig layers preset, config file, environment and explicit flags,
// in that order.
func loadConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if model != "" {
		cfg.Model = model
	}
	if err := config.ParseEnv(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("tau-start") {
		cfg.TauStart = tauStart
	}
	if flags.Changed("tau-end") {
		cfg.TauEnd = tauEnd
	}
	if flags.Changed("samples") {
		cfg.Samples = samples
	}
	if flags.Changed("rtol") {
		cfg.RTol = rtol
	}
	if flags.Changed("atol") {
		cfg.ATol = atol
	}
	if flags.Changed("max-step") {
		cfg.MaxStep = maxStep
	}
	if flags.Changed("step") {
		cfg.Step = step
	}
	if flags.Changed("a0") {
		cfg.InitState.A0 = a0
	}
	if flags.Changed("x") {
		cfg.InitState.X = initX
	}
	if flags.Changed("v") {
		cfg.InitState.V = initV
	}
	if flags.Changed("coupling") {
		cfg.Cosmology.Coupling = coupling
	}
	if flags.Changed("time-scale") {
		cfg.Cosmology.TimeScale = timeScale
	}
	if flags.Changed("sensitivity") {
		cfg.Analysis.Sensitivity = sensitive
	}
	for _, kv := range overrides {
		name, val, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("override %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", kv, err)
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64)
		}
		cfg.Params[strings.TrimSpace(name)] = v
	}
	if dataDir != "" {
		cfg.Storage.Dir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore() (*storage.Store, error) {
	dir := dataDir
	if dir == "" {
		cfg := config.DefaultConfig()
		if err := config.ParseEnv(cfg); err != nil {
			return nil, err
		}
		dir = cfg.Storage.Dir
	}
	return storage.New(dir), nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}

	st := storage.New(cfg.Storage.Dir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("running %s simulation...\n", cfg.Model)
	exp := experiment.New(cfg, experiment.WithLogger(logger), experiment.WithMetrics(recorder))
	result, runErr := exp.Run(cmd.Context())
	if result == nil {
		return runErr
	}

	run, err := result.Run(cfg)
	if err != nil {
		return err
	}
	runID, err := st.Save(run)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", result.Elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("status: %s\n", result.Trajectory.Status)
	for _, ev := range result.Trajectory.Events {
		fmt.Printf("event: %s at tau=%g\n", ev.Event, ev.Time)
	}
	if result.Sensitivity != nil {
		fmt.Printf("sensitivity: %s\n", report.Float(*result.Sensitivity))
	}
	fmt.Println(report.Separator(60))
	fmt.Println(report.Stability(result.Stability, run.Meta.Columns))
	if result.Constraints != nil {
		fmt.Println(report.Constraints(*result.Constraints))
	}
	return runErr
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tTIME\tSPAN\tINTEG\tSTATUS\tSAMPLES")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t[%g, %g]\t%s\t%s\t%d\n",
			run.ID,
			run.Model,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Span[0], run.Span[1],
			run.Integrator,
			run.Status,
			run.Stats.Accepted,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.Run, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	return st.Load(runID)
}

func plotRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(run.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", run.Meta.ID)
	fmt.Printf("model: %s\n", run.Meta.Model)
	fmt.Printf("samples: %d\n\n", len(run.Rows))

	fig := report.Figure{Title: run.Meta.ID, XLabel: "tau"}
	for _, name := range run.Meta.Columns {
		col := run.Column(name)
		graph, err := report.Chart(name+" vs tau", col)
		if err != nil {
			logger.Warn("skipping column", slog.String("column", name), slog.String("error", err.Error()))
			continue
		}
		fmt.Println(graph)
		fmt.Println()
		fig.Series = append(fig.Series, report.Series{Name: name, X: run.Times, Y: col})
	}

	if figOut != "" {
		if err := fig.Save(figOut, 8*vg.Inch, 5*vg.Inch); err != nil {
			return err
		}
		fmt.Printf("figure written to %s\n", figOut)
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0])
	if err != nil {
		return err
	}
	ph, err := report.PhaseOf(run.Trajectory(), xAxis, yAxis)
	if err != nil {
		return err
	}
	fmt.Println(report.Title.Render(fmt.Sprintf("%s: %s vs %s", run.Meta.ID, run.Meta.Columns[yAxis], run.Meta.Columns[xAxis])))
	fmt.Print(ph.ASCII(report.DefaultChartWidth, 2*report.DefaultChartHeight))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0])
	if err != nil {
		return err
	}
	tr := run.Trajectory()

	stab := analysis.NewStabilityAnalyzer(analysis.WithLogger(logger)).AnalyzeTrajectory(tr)
	fmt.Println(report.Stability(stab, run.Meta.Columns))

	if run.Meta.Params != nil {
		tf := field.NewTensorField(*run.Meta.Params, field.WithLogger(logger))
		mon := analysis.NewConstraintMonitor(analysis.WithLogger(logger))
		rep, err := mon.Monitor(tr, analysis.SampleTensors(tf, tr))
		if err != nil {
			return err
		}
		fmt.Println(report.Constraints(rep))
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0])
	if err != nil {
		return err
	}
	filename := run.Meta.ID + ".csv"
	if err := storage.ExportCSV(filename, run); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", filename)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	run, err := loadRun(args[0])
	if err != nil {
		return err
	}
	filename := run.Meta.ID + ".json"
	if err := storage.ExportJSON(filename, run); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", filename)
	return nil
}
