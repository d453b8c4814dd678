package training

import (
	"fmt"
	"sort"

	"wisefido-anomaly/internal/ml/forest"
	"wisefido-anomaly/internal/ml/lstm"
	"wisefido-anomaly/internal/ml/metrics"
)

// FeatureImportance 特征重要性
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Evaluation 测试集上的评估结果
//
// 无法计算的指标（如测试集只有一个类别时的 AUC）为 nil。
type Evaluation struct {
	Accuracy         float64              `json:"accuracy"`
	Loss             *float64             `json:"loss,omitempty"`
	Classification   *metrics.Report      `json:"classification"`
	ROCAUC           *float64             `json:"roc_auc,omitempty"`
	AveragePrecision *float64             `json:"average_precision,omitempty"`
	ROC              *metrics.Curve       `json:"roc_curve,omitempty"`
	PR               *metrics.Curve       `json:"pr_curve,omitempty"`
	Importances      []FeatureImportance  `json:"feature_importances,omitempty"`
	History          *lstm.History        `json:"history,omitempty"`
	Search           *forest.SearchResult `json:"grid_search,omitempty"`
	TrainCounts      map[string]int       `json:"train_class_counts"`
	ResampledCounts  map[string]int       `json:"resampled_class_counts,omitempty"`
	TestCounts       map[string]int       `json:"test_class_counts"`
}

// evaluateVitals 多分类评估，AUC 为一对多宏平均
func evaluateVitals(net *lstm.Network, x [][][]float64, y []int, classNames []string) (*Evaluation, error) {
	probs, err := net.PredictBatch(x)
	if err != nil {
		return nil, fmt.Errorf("predict test set: %w", err)
	}
	pred := metrics.ArgMax(probs)
	report, err := metrics.ClassificationReport(y, pred, classNames)
	if err != nil {
		return nil, err
	}
	loss, acc := net.Evaluate(x, y)

	eval := &Evaluation{
		Accuracy:       acc,
		Loss:           &loss,
		Classification: report,
		TestCounts:     namedCounts(y, classNames),
	}
	if auc, err := metrics.MacroOvRAUC(probs, y, len(classNames)); err == nil {
		eval.ROCAUC = &auc
	}
	return eval, nil
}

// evaluateFall 二分类评估：ROC、PR 曲线与特征重要性
func evaluateFall(model *forest.Forest, x [][]float64, y []int, classNames, featureNames []string) (*Evaluation, error) {
	probs, err := model.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("predict test set: %w", err)
	}
	pred := metrics.ArgMax(probs)
	report, err := metrics.ClassificationReport(y, pred, classNames)
	if err != nil {
		return nil, err
	}

	eval := &Evaluation{
		Accuracy:       report.Accuracy,
		Classification: report,
		TestCounts:     namedCounts(y, classNames),
		Importances:    rankImportances(model.Importances, featureNames),
	}

	scores := make([]float64, len(probs))
	positive := make([]bool, len(probs))
	for i, p := range probs {
		scores[i] = p[1]
		positive[i] = y[i] == 1
	}
	if roc, auc, err := metrics.ROCCurve(scores, positive); err == nil {
		eval.ROC, eval.ROCAUC = roc, &auc
	}
	if pr, ap, err := metrics.PrecisionRecallCurve(scores, positive); err == nil {
		eval.PR, eval.AveragePrecision = pr, &ap
	}
	return eval, nil
}

// rankImportances 按重要性降序排列
func rankImportances(importances []float64, names []string) []FeatureImportance {
	if len(importances) != len(names) {
		return nil
	}
	out := make([]FeatureImportance, len(names))
	for i, name := range names {
		out[i] = FeatureImportance{Feature: name, Importance: importances[i]}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Importance > out[b].Importance })
	return out
}

func namedCounts(y []int, classNames []string) map[string]int {
	counts := make(map[string]int, len(classNames))
	for _, label := range y {
		name := fmt.Sprint(label)
		if label >= 0 && label < len(classNames) {
			name = classNames[label]
		}
		counts[name]++
	}
	return counts
}
