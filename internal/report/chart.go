// Package report renders post-run visual artifacts: an interactive HTML
// chart of the swept traces with their limit windows, and static PNG
// plots suitable for attaching to quality records. Rendering is always
// best effort and never influences a verdict.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/rfbench/teststand/internal/eval"
	"github.com/rfbench/teststand/internal/rf"
)

// RenderHTML writes an interactive page with one chart per swept
// parameter, overlaying the rule windows on the trace.
func RenderHTML(w io.Writer, run *eval.Run, s11, s21 []rf.Sample) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Run %s", run.ID)

	if len(s11) > 0 {
		page.AddCharts(traceChart(rf.ParamS11, s11, run))
	}
	if len(s21) > 0 {
		page.AddCharts(traceChart(rf.ParamS21, s21, run))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render run %s report: %w", run.ID, err)
	}
	return nil
}

func traceChart(param rf.Parameter, trace []rf.Sample, run *eval.Run) *charts.Line {
	verdict := "PASS"
	if !run.Passed {
		verdict = "FAIL"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s — %s", param, verdict),
			Subtitle: fmt.Sprintf("serial=%s run=%s", run.Serial, run.ID),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frequency (Hz)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Gain (dB)"}),
	)

	xs := make([]string, 0, len(trace))
	ys := make([]opts.LineData, 0, len(trace))
	for _, s := range trace {
		xs = append(xs, rf.FormatFrequency(s.Frequency))
		ys = append(ys, opts.LineData{Value: s.Gain})
	}
	line.SetXAxis(xs)
	line.AddSeries(string(param), ys)

	// One flat series per rule on this parameter marks its limit across
	// the rule's window.
	for _, r := range run.Results {
		if r.TP.Parameter != param {
			continue
		}
		lo, hi := r.TP.Window()
		limit := make([]opts.LineData, len(trace))
		for i, s := range trace {
			if s.Frequency >= lo && s.Frequency <= hi {
				limit[i] = opts.LineData{Value: r.TP.LimitDB}
			} else {
				limit[i] = opts.LineData{Value: nil}
			}
		}
		line.AddSeries(fmt.Sprintf("%s limit", r.TP.Name), limit,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}),
		)
	}
	return line
}
