package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/chronodyn/internal/report"
	"github.com/san-kum/chronodyn/internal/sweep"
	"github.com/san-kum/chronodyn/internal/theorycache"
)

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, "background")
	if err != nil {
		return err
	}

	grid, err := sweep.NewGrid([]string{"coupling", "time_scale"}, [][]float64{couplingGrid, timeScaleGrid})
	if err != nil {
		return err
	}
	points, err := grid.Points(cfg.Cosmology)
	if err != nil {
		return err
	}

	opts := []theorycache.Option{theorycache.WithLogger(logger)}
	if cfg.Storage.CacheDB != "" {
		db, err := theorycache.OpenSQLite(cfg.Storage.CacheDB)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, theorycache.WithStore(db))
	}
	cache := theorycache.New(cfg.Storage.CacheSize, opts...)

	simCfg := cfg.SimConfig()
	simCfg.Logger = logger
	runner := &sweep.Runner{
		Cache:   cache,
		Compute: sweep.BackgroundCompute(cfg.Span(), cfg.InitState.A0, simCfg, cfg.Samples, recorder),
		Workers: workers,
		Metrics: recorder,
		Logger:  logger,
	}

	fmt.Printf("sweeping %d points with %d workers...\n", grid.Size(), workers)
	results, err := runner.Run(cmd.Context(), points)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "S\tT0\tSTATUS\tA_FINAL\tNFEV\tA(TAU)")
	for _, pt := range results {
		if pt.Err != nil {
			fmt.Fprintf(w, "%g\t%g\terror\t-\t-\t%s\n", pt.Params.Coupling, pt.Params.TimeScale, pt.Err)
			continue
		}
		r := pt.Result
		fmt.Fprintf(w, "%g\t%g\t%s\t%s\t%d\t%s\n",
			pt.Params.Coupling, pt.Params.TimeScale, r.Status,
			report.Float(r.Final()), r.Evaluations, report.Sparkline(r.A, 24))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best, score, err := sweep.Best(results, sweep.FinalScaleFactorTarget(target))
	switch {
	case errors.Is(err, sweep.ErrNoCandidate):
		fmt.Println("no successful point")
	case err != nil:
		return err
	default:
		fmt.Println(report.Summary("closest to target", []report.KV{
			{Label: "coupling", Value: report.Float(best.Params.Coupling)},
			{Label: "time scale", Value: report.Float(best.Params.TimeScale)},
			{Label: "final a", Value: report.Float(best.Result.Final())},
			{Label: "|a - target|", Value: report.Float(score)},
			{Label: "collapse", Value: fmt.Sprint(best.Result.Status == "event")},
		}))
	}

	st := cache.Stats()
	logger.Info("theory cache",
		slog.Int64("hits", st.Hits),
		slog.Int64("misses", st.Misses),
		slog.Int64("computes", st.Computes),
		slog.Int("entries", st.Entries))
	return nil
}
