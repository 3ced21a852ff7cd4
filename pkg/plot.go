package pkg

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const histogramBins = 20

// RenderCharts writes the category bar chart, one histogram per numeric
// column and the correlation grid as PNG files into dir and returns their paths.
func RenderCharts(s *DatasetSummary, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating plot directory: %w", err)
	}

	var files []string
	save := func(p *plot.Plot, name string, width, height vg.Length) error {
		path := filepath.Join(dir, name)
		if err := p.Save(width, height, path); err != nil {
			return fmt.Errorf("error saving %s: %w", path, err)
		}
		files = append(files, path)
		log.Debug().Str("File", path).Msg("Chart saved")
		return nil
	}

	p, err := categoryChart(s)
	if err != nil {
		return nil, err
	}
	if err := save(p, "categories.png", 8*vg.Inch, 4*vg.Inch); err != nil {
		return nil, err
	}

	for _, d := range s.Numeric {
		if d.Count == 0 {
			continue
		}
		p, err := histogram(d)
		if err != nil {
			return nil, err
		}
		if err := save(p, "hist_"+d.Column+".png", 5*vg.Inch, 4*vg.Inch); err != nil {
			return nil, err
		}
	}

	p, err = correlationChart(s)
	if err != nil {
		return nil, err
	}
	if err := save(p, "correlation.png", 6*vg.Inch, 6*vg.Inch); err != nil {
		return nil, err
	}
	return files, nil
}

func categoryChart(s *DatasetSummary) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Records per category"
	p.Y.Label.Text = "Count"

	values := make(plotter.Values, len(s.Categories))
	names := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		values[i] = float64(c.Count)
		names[i] = c.DisplayName
	}
	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("error building category chart: %w", err)
	}
	bars.Color = color.RGBA{R: 52, G: 152, B: 219, A: 255}
	p.Add(bars)
	p.NominalX(names...)
	return p, nil
}

func histogram(d Distribution) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = d.Column
	p.Y.Label.Text = "Count"

	h, err := plotter.NewHist(plotter.Values(d.Values), histogramBins)
	if err != nil {
		return nil, fmt.Errorf("error building histogram of %s: %w", d.Column, err)
	}
	p.Add(h)
	return p, nil
}

// correlationGrid adapts a correlation matrix to plotter.GridXYZ. Row 0 is
// drawn at the top.
type correlationGrid [][]float64

func (g correlationGrid) Dims() (c, r int) { return len(g), len(g) }
func (g correlationGrid) Z(c, r int) float64 { return g[len(g)-1-r][c] }
func (g correlationGrid) X(c int) float64   { return float64(c) }
func (g correlationGrid) Y(r int) float64   { return float64(r) }

func correlationChart(s *DatasetSummary) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Correlation"

	heat := plotter.NewHeatMap(correlationGrid(s.Correlation), palette.Heat(12, 1))
	heat.Min, heat.Max = -1, 1
	p.Add(heat)

	n := len(s.CorrelationColumns)
	p.NominalX(s.CorrelationColumns...)
	reversed := make([]string, n)
	for i, c := range s.CorrelationColumns {
		reversed[n-1-i] = c
	}
	p.NominalY(reversed...)
	p.X.Tick.Label.Rotation = 0.8
	return p, nil
}
