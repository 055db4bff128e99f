// Package monitor renders diagnostic plots of resolved tracking solutions.
package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/JaimeIvanCervantes/hytra/internal/hypotheses"
	"github.com/JaimeIvanCervantes/hytra/internal/merger"
)

// Plot size in inches.
const (
	plotWidth  = 10
	plotHeight = 10
)

// PlotTracks draws the selected solution of hg: one marker per active
// detection at its region center, colored by timestep, and one segment per
// active transition. Nodes without a region center are skipped. It returns
// the number of plotted detections; no file is written when that is zero.
func PlotTracks(hg *hypotheses.Graph, path string) (int, error) {
	centers := make(map[hypotheses.NodeKey]plotter.XY)
	byTimestep := make(map[int]plotter.XYs)
	for _, k := range hg.Keys() {
		n, _ := hg.Node(k)
		if n.Value <= 0 || n.Traxel == nil {
			continue
		}
		c, ok := n.Traxel.Feature(merger.RegionCenterFeature)
		if !ok || len(c) < 2 {
			continue
		}
		xy := plotter.XY{X: c[0], Y: c[1]}
		centers[k] = xy
		byTimestep[k.Timestep] = append(byTimestep[k.Timestep], xy)
	}
	if len(centers) == 0 {
		return 0, nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Tracks (%d detections)", len(centers))
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	for _, e := range hg.Edges() {
		if e.Value.Value <= 0 {
			continue
		}
		from, okFrom := centers[e.From]
		to, okTo := centers[e.To]
		if !okFrom || !okTo {
			continue
		}
		line, err := plotter.NewLine(plotter.XYs{from, to})
		if err != nil {
			return 0, fmt.Errorf("link %v -> %v: %w", e.From, e.To, err)
		}
		line.Color = color.Gray{Y: 140}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	timesteps := make([]int, 0, len(byTimestep))
	for t := range byTimestep {
		timesteps = append(timesteps, t)
	}
	sort.Ints(timesteps)

	colors := generateColors(len(timesteps))
	for i, t := range timesteps {
		scatter, err := plotter.NewScatter(byTimestep[t])
		if err != nil {
			return 0, fmt.Errorf("timestep %d: %w", t, err)
		}
		scatter.GlyphStyle.Color = colors[i]
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("t=%d", t), scatter)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create plot directory: %w", err)
		}
	}
	if err := p.Save(plotWidth*vg.Inch, plotHeight*vg.Inch, path); err != nil {
		return 0, fmt.Errorf("failed to save track plot: %w", err)
	}
	return len(centers), nil
}

// generateColors spreads n hues around the color wheel.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		colors[i] = colorful.Hsl(360*float64(i)/float64(n), 0.7, 0.5).Clamped()
	}
	return colors
}
