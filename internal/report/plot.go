package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rfbench/teststand/internal/eval"
	"github.com/rfbench/teststand/internal/rf"
)

// SaveTracePNG plots one parameter's trace with its rule limits to a
// PNG file.
func SaveTracePNG(path string, param rf.Parameter, trace []rf.Sample, run *eval.Run) error {
	if len(trace) == 0 {
		return fmt.Errorf("no %s trace to plot", param)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s  serial=%s run=%s", param, run.Serial, run.ID)
	p.X.Label.Text = "Frequency (Hz)"
	p.Y.Label.Text = "Gain (dB)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(trace))
	for i, s := range trace {
		pts[i].X = float64(s.Frequency)
		pts[i].Y = s.Gain
	}
	traceLine, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("plot %s trace: %w", param, err)
	}
	traceLine.Color = color.RGBA{B: 200, A: 255}
	p.Add(traceLine)
	p.Legend.Add(string(param), traceLine)

	for _, r := range run.Results {
		if r.TP.Parameter != param {
			continue
		}
		lo, hi := r.TP.Window()
		limitLine, err := plotter.NewLine(plotter.XYs{
			{X: float64(lo), Y: r.TP.LimitDB},
			{X: float64(hi), Y: r.TP.LimitDB},
		})
		if err != nil {
			return fmt.Errorf("plot %s limit: %w", r.TP.Name, err)
		}
		limitLine.Color = color.RGBA{R: 200, A: 255}
		limitLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(limitLine)
		p.Legend.Add(r.TP.Name, limitLine)
	}

	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s plot: %w", param, err)
	}
	return nil
}
