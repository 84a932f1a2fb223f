// Package tabular fits gradient-boosted decision-tree ensembles and
// generalized linear models on mixed numeric/categorical/text tabular data,
// serves predictions with optional per-feature SHAP attribution, and
// serializes trained models to a compact, portable binary artifact.
package tabular

// Verbose enables FromPath's coarse row-count progress events (one every
// 100000 rows, sent through its ProgressFunc); nothing is printed. The
// learners do not read it; they report only through ProgressFunc.
var Verbose = true

// Browser is the browser used to open diagnostic plots produced by
// Plotter (and so by PlotROC, PlotLossCurve and PlotFeatureImportance).
var Browser = "firefox"
