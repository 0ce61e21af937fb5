package report

import (
	"fmt"
	"strings"

	"github.com/san-kum/chronodyn/internal/sim"
)

// Phase is the projection of a trajectory onto two state variables,
// e.g. (a, a') for the background.
type Phase struct {
	XIndex, YIndex int
	X, Y           []float64
}

func PhaseOf(tr *sim.Trajectory, xIdx, yIdx int) (Phase, error) {
	if tr == nil || tr.Len() == 0 {
		return Phase{}, fmt.Errorf("report: empty trajectory")
	}
	dim := len(tr.States[0])
	if xIdx < 0 || yIdx < 0 || xIdx >= dim || yIdx >= dim {
		return Phase{}, fmt.Errorf("report: phase indices (%d, %d) out of range for dimension %d", xIdx, yIdx, dim)
	}
	return Phase{XIndex: xIdx, YIndex: yIdx, X: tr.Component(xIdx), Y: tr.Component(yIdx)}, nil
}

// ASCII draws the portrait on a width x height character grid with a
// tenth of padding on each side. Axes are drawn where they cross the view.
func (p Phase) ASCII(width, height int) string {
	if len(p.X) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := finiteRange(p.X)
	minY, maxY := finiteRange(p.Y)
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX, rangeY = maxX-minX, maxY-minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for i := range p.X {
		x, y := p.X[i], p.Y[i]
		if !isFinite(x) || !isFinite(y) {
			continue
		}
		col := int((x - minX) / rangeX * float64(width-1))
		row := height - 1 - int((y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}

	if minX <= 0 && maxX >= 0 {
		col := int(-minX / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if col >= 0 && col < width && canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int(-minY/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if row >= 0 && row < height && canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
