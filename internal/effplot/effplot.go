// Package effplot draws trigger efficiency graphs.
package effplot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ib-77/l1tnp/internal/histo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch
)

// Render draws every table of one variable on a single canvas, one marker
// series per trigger, and saves it to path. The file extension picks the
// format.
func Render(path string, tables []histo.Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("no efficiency tables to plot")
	}

	p := plot.New()
	p.Title.Text = "L1T efficiency"
	p.X.Label.Text = tables[0].Label
	p.Y.Label.Text = "L1T Efficiency"
	p.Y.Min = 0
	p.Y.Max = 1.01
	p.Add(plotter.NewGrid())
	p.Legend.Top = true

	for i, table := range tables {
		if table.Variable != tables[0].Variable {
			return fmt.Errorf("cannot plot %s and %s on one canvas", tables[0].Variable, table.Variable)
		}
		points := errorPoints(table.Points)

		scatter, err := plotter.NewScatter(points)
		if err != nil {
			return fmt.Errorf("%s: %w", table.Trigger, err)
		}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		scatter.GlyphStyle.Shape = plotutil.Shape(i)

		yerr, err := plotter.NewYErrorBars(points)
		if err != nil {
			return fmt.Errorf("%s: %w", table.Trigger, err)
		}
		yerr.LineStyle.Color = plotutil.Color(i)

		xerr, err := plotter.NewXErrorBars(points)
		if err != nil {
			return fmt.Errorf("%s: %w", table.Trigger, err)
		}
		xerr.LineStyle.Color = plotutil.Color(i)

		p.Add(scatter, yerr, xerr)
		p.Legend.Add(table.Trigger, scatter)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

func errorPoints(points []histo.Point) plotutil.ErrorPoints {
	xys := make(plotter.XYs, len(points))
	xerrs := make(plotter.XErrors, len(points))
	yerrs := make(plotter.YErrors, len(points))
	for i, pt := range points {
		xys[i].X = pt.X
		xys[i].Y = pt.Eff
		xerrs[i].Low = pt.XWidth / 2
		xerrs[i].High = pt.XWidth / 2
		yerrs[i].Low = pt.ErrLow
		yerrs[i].High = pt.ErrHigh
	}
	return plotutil.ErrorPoints{XYs: xys, XErrors: xerrs, YErrors: yerrs}
}

// RenderAll writes one plot per variable into dir, named <variable>.<ext>,
// and returns the written paths in table order.
func RenderAll(dir, ext string, tables []histo.Table) ([]string, error) {
	byVar := make(map[string][]histo.Table)
	order := make([]string, 0)
	for _, t := range tables {
		if _, seen := byVar[t.Variable]; !seen {
			order = append(order, t.Variable)
		}
		byVar[t.Variable] = append(byVar[t.Variable], t)
	}

	paths := make([]string, 0, len(order))
	for _, v := range order {
		path := filepath.Join(dir, v+"."+ext)
		if err := Render(path, byVar[v]); err != nil {
			return paths, fmt.Errorf("%s: %w", v, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
