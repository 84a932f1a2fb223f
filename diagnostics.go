package tabular

// diagnostics.go implements optional go-plotly visualizations of training
// output: the ROC curve, the per-round/epoch loss curves, and feature
// importance bars. The rendering plumbing (PlotDef, Plotter: wrapping
// grob.Fig, writing it with offline.ToHtml, optionally opening Browser) is
// grounded on the teacher's plot.go Plotter, generalized in two ways the
// teacher's single-model training loop never needed: a plot can carry this
// package's own Diagnostics counters (non-finite gradients/hessians,
// clamped probabilities) so a training run's numerical health shows up
// right on the chart instead of only in logs, and the temp-file path for
// an unsaved Show-only plot is allocated with os.CreateTemp rather than a
// hand-rolled math/rand suffix, which also means Plotter no longer needs
// to touch the process-global math/rand source.

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"
	"github.com/MetalBlueberry/go-plotly/offline"
)

// PlotDef collects the layout knobs diagnostics plots commonly need.
type PlotDef struct {
	Show     bool
	Title    string
	XTitle   string
	YTitle   string
	STitle   string
	Legend   bool
	Height   float64
	Width    float64
	FileName string
	Diag     *Diagnostics // if set and non-empty, summarized into the subtitle
}

// diagSummary renders d's nonzero counters as a short trailing clause, or
// "" if every counter is zero.
func diagSummary(d *Diagnostics) string {
	if d == nil {
		return ""
	}

	var parts []string

	if d.NonFiniteGradientCount > 0 {
		parts = append(parts, fmt.Sprintf("%d non-finite gradients", d.NonFiniteGradientCount))
	}

	if d.NonFiniteHessianCount > 0 {
		parts = append(parts, fmt.Sprintf("%d non-finite hessians", d.NonFiniteHessianCount))
	}

	if d.ClampedProbabilityCount > 0 {
		parts = append(parts, fmt.Sprintf("%d clamped probabilities", d.ClampedProbabilityCount))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, ", ")
}

// Plotter renders fig to an html file and, if pd.Show, opens it with
// Browser.
func Plotter(fig *grob.Fig, lay *grob.Layout, pd *PlotDef) error {
	if summary := diagSummary(pd.Diag); summary != "" {
		if pd.STitle != "" {
			pd.STitle += " -- " + summary
		} else {
			pd.STitle = summary
		}
	}

	pd.Title = strings.ReplaceAll(pd.Title, "\n", "<br>")
	pd.STitle = strings.ReplaceAll(pd.STitle, "\n", "<br>")
	pd.XTitle = strings.ReplaceAll(pd.XTitle, "\n", "<br>")
	pd.YTitle = strings.ReplaceAll(pd.YTitle, "\n", "<br>")

	if lay == nil {
		lay = &grob.Layout{}
	}

	if pd.Title != "" {
		lay.Title = &grob.LayoutTitle{Text: pd.Title}
	}

	if pd.YTitle != "" {
		if lay.Yaxis == nil {
			lay.Yaxis = &grob.LayoutYaxis{Title: &grob.LayoutYaxisTitle{Text: pd.YTitle}}
		} else {
			lay.Yaxis.Title = &grob.LayoutYaxisTitle{Text: pd.YTitle}
		}

		lay.Yaxis.Showline = grob.True
	}

	if pd.XTitle != "" {
		xTitle := pd.XTitle
		if pd.STitle != "" {
			xTitle += fmt.Sprintf("<br>%s", pd.STitle)
		}

		if lay.Xaxis == nil {
			lay.Xaxis = &grob.LayoutXaxis{Title: &grob.LayoutXaxisTitle{Text: xTitle}}
		} else {
			lay.Xaxis.Title = &grob.LayoutXaxisTitle{Text: xTitle}
		}
	}

	if !pd.Legend {
		lay.Showlegend = grob.False
	}

	if pd.Width > 0 {
		lay.Width = pd.Width
	}

	if pd.Height > 0 {
		lay.Height = pd.Height
	}

	fig.Layout = lay

	if pd.FileName != "" {
		offline.ToHtml(fig, pd.FileName)
	}

	if pd.Show {
		tmp := false

		if pd.FileName == "" {
			f, err := os.CreateTemp("", "tabularplot-*.html")
			if err != nil {
				return err
			}

			pd.FileName = f.Name()
			_ = f.Close()
			tmp = true
		}

		offline.ToHtml(fig, pd.FileName)
		cmd := exec.Command(Browser, "-url", pd.FileName)

		if err := cmd.Start(); err != nil {
			return err
		}

		time.Sleep(time.Second)

		if tmp {
			if err := os.Remove(pd.FileName); err != nil {
				return err
			}
		}
	}

	return nil
}

// PlotROC renders an ROC curve to an html file (and optionally opens it in
// Browser), per spec.md §9's diagnostics surface.
func PlotROC(curve *ROCCurve, pd *PlotDef) error {
	fpr := make([]float64, len(curve.Points))
	tpr := make([]float64, len(curve.Points))

	for i, p := range curve.Points {
		fpr[i] = p.FalsePositiveRate
		tpr[i] = p.TruePositiveRate
	}

	trace := &grob.Scatter{
		Type: grob.TraceTypeScatter,
		Mode: grob.ScatterModeLines,
		X:    fpr,
		Y:    tpr,
		Name: "ROC",
		Line: &grob.ScatterLine{Color: "black"},
	}

	diag := &grob.Scatter{
		Type: grob.TraceTypeScatter,
		Mode: grob.ScatterModeLines,
		X:    []float64{0, 1},
		Y:    []float64{0, 1},
		Name: "chance",
		Line: &grob.ScatterLine{Color: "gray"},
	}

	fig := &grob.Fig{Data: grob.Traces{trace, diag}}

	if pd.Title == "" {
		pd.Title = "ROC"
	}

	if pd.XTitle == "" {
		pd.XTitle = "False Positive Rate"
	}

	if pd.YTitle == "" {
		pd.YTitle = "True Positive Rate"
	}

	return Plotter(fig, nil, pd)
}

// PlotLossCurve renders train (and optionally validation) loss against
// round/epoch index.
func PlotLossCurve(trainLosses, validLosses []float64, pd *PlotDef) error {
	x := make([]float64, len(trainLosses))
	for i := range x {
		x[i] = float64(i + 1)
	}

	traces := grob.Traces{
		&grob.Scatter{
			Type: grob.TraceTypeScatter, Mode: grob.ScatterModeLines,
			X: x, Y: trainLosses, Name: "train",
			Line: &grob.ScatterLine{Color: "black"},
		},
	}

	if len(validLosses) > 0 {
		xv := make([]float64, len(validLosses))
		for i := range xv {
			xv[i] = float64(i + 1)
		}

		traces = append(traces, &grob.Scatter{
			Type: grob.TraceTypeScatter, Mode: grob.ScatterModeLines,
			X: xv, Y: validLosses, Name: "validation",
			Line: &grob.ScatterLine{Color: "red"},
		})
	}

	fig := &grob.Fig{Data: traces}

	if pd.Title == "" {
		pd.Title = "Training Loss"
	}

	if pd.XTitle == "" {
		pd.XTitle = "round"
	}

	if pd.YTitle == "" {
		pd.YTitle = "loss"
	}

	return Plotter(fig, nil, pd)
}

// PlotFeatureImportance renders a horizontal bar chart of normalized
// per-feature importances.
func PlotFeatureImportance(featureNames []string, importances []float64, pd *PlotDef) error {
	trace := &grob.Bar{
		Type:        grob.TraceTypeBar,
		X:           importances,
		Y:           featureNames,
		Orientation: grob.BarOrientationH,
	}

	fig := &grob.Fig{Data: grob.Traces{trace}}

	if pd.Title == "" {
		pd.Title = "Feature Importance"
	}

	return Plotter(fig, nil, pd)
}
