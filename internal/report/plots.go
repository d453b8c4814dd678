package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"wisefido-anomaly/internal/ml/lstm"
	"wisefido-anomaly/internal/ml/metrics"
	"wisefido-anomaly/internal/training"
)

// 特征重要性图最多显示的特征数
const topImportances = 20

var (
	colorPrimary   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorSecondary = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorReference = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

type curveSpec struct {
	title    string
	xLabel   string
	yLabel   string
	area     *float64
	areaName string
	diagonal bool // 画随机分类器参考线
}

// plotCurve 画 ROC 或 PR 曲线
func plotCurve(curve *metrics.Curve, spec curveSpec, path string) error {
	p := plot.New()
	p.Title.Text = spec.title
	p.X.Label.Text = spec.xLabel
	p.Y.Label.Text = spec.yLabel
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.05

	pts := make(plotter.XYs, len(curve.X))
	for i := range curve.X {
		pts[i] = plotter.XY{X: curve.X[i], Y: curve.Y[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = colorPrimary
	line.Width = vg.Points(2)
	p.Add(line)

	label := spec.areaName
	if spec.area != nil {
		label = fmt.Sprintf("%s = %.3f", spec.areaName, *spec.area)
	}
	p.Legend.Add(label, line)

	if spec.diagonal {
		diag := plotter.NewFunction(func(x float64) float64 { return x })
		diag.Color = colorReference
		diag.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(diag)
	}

	p.Legend.Top = false
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = 10

	return p.Save(7*vg.Inch, 6*vg.Inch, path)
}

// plotImportances 按重要性降序画前 top 个特征的柱状图
func plotImportances(importances []training.FeatureImportance, top int, path string) error {
	n := min(top, len(importances))
	values := make(plotter.Values, n)
	names := make([]string, n)
	for i := 0; i < n; i++ {
		values[i] = importances[i].Importance
		names[i] = importances[i].Feature
	}

	p := plot.New()
	p.Title.Text = "Top Feature Importances - fall"
	p.Y.Label.Text = "Importance"

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return err
	}
	bars.Color = colorPrimary
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 2

	return p.Save(12*vg.Inch, 7*vg.Inch, path)
}

// plotHistory 画每个 epoch 的训练与验证损失
func plotHistory(h *lstm.History, path string) error {
	p := plot.New()
	p.Title.Text = "Training History - vitals"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss"

	series := []struct {
		name   string
		values []float64
		color  color.Color
	}{
		{"loss", h.Loss, colorPrimary},
		{"val_loss", h.ValLoss, colorSecondary},
	}
	for _, s := range series {
		if len(s.values) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.values))
		for i, v := range s.values {
			pts[i] = plotter.XY{X: float64(i + 1), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.Save(10*vg.Inch, 6*vg.Inch, path)
}
