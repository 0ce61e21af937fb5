package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/chronodyn/internal/analysis"
)

// KV is one labelled row of a summary panel.
type KV struct {
	Label string
	Value string
}

// Summary renders a titled panel of aligned label/value rows.
func Summary(title string, rows []KV) string {
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r.Label))
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, HeaderStyle.Render(title))
	for _, r := range rows {
		pad := strings.Repeat(" ", width-lipgloss.Width(r.Label))
		lines = append(lines, MetricLabel.Render(r.Label+pad)+"  "+MetricValue.Render(r.Value))
	}
	return Panel.Render(strings.Join(lines, "\n"))
}

func Float(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 0):
		return fmt.Sprintf("%+g", v)
	}
	return fmt.Sprintf("%.6g", v)
}

func floatList(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Float(v)
	}
	return strings.Join(parts, ", ")
}

// Stability renders one row per state variable. names may be shorter than
// the report; missing names fall back to the index.
func Stability(r analysis.StabilityReport, names []string) string {
	rows := []KV{{"verdict", Badge(r.IsStable, "stable", "unstable")}}
	for _, v := range r.Variables {
		label := fmt.Sprintf("x%d", v.Index)
		if v.Index < len(names) {
			label = names[v.Index]
		}
		flags := ""
		if v.Growing {
			flags += StatusBad.Render(" growing")
		}
		if v.Oscillating {
			flags += StatusWarn.Render(" oscillating")
		}
		rows = append(rows, KV{label, fmt.Sprintf("rate %s  freq %s%s", Float(v.GrowthRate), Float(v.Frequency), flags)})
	}
	return Summary("stability", rows)
}

func Convergence(r analysis.ConvergenceReport) string {
	rows := []KV{
		{"verdict", Badge(r.IsConverged, "converged", "not converged")},
		{"mode", r.Mode + " / " + r.Kind},
		{"resolutions", floatList(r.Resolutions)},
		{"errors", floatList(r.Errors)},
		{"orders", floatList(r.Orders)},
	}
	return Summary("convergence", rows)
}

func Constraints(r analysis.ConstraintReport) string {
	rows := []KV{
		{"verdict", Badge(r.IsSatisfied, "satisfied", "violated")},
		{"max hamiltonian", Float(r.MaxHamiltonian)},
		{"max momentum", Float(r.MaxMomentum)},
		{"max energy", Float(r.MaxEnergy)},
		{"tolerance", Float(r.Tolerance)},
		{"hamiltonian", Sparkline(r.Hamiltonian, 40)},
	}
	return Summary("constraints", rows)
}

func finiteRange(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		if !isFinite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
