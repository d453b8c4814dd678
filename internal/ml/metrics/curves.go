package metrics

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrSingleClass 评估集中只有一个类别，ROC/PR 无意义
var ErrSingleClass = errors.New("metrics: curve needs both positive and negative samples")

// Curve 曲线上的点
type Curve struct {
	X          []float64 `json:"x"`
	Y          []float64 `json:"y"`
	Thresholds []float64 `json:"thresholds"`
}

// ROCCurve 计算二分类 ROC 曲线（X 为 FPR，Y 为 TPR）与 AUC
func ROCCurve(scores []float64, positive []bool) (*Curve, float64, error) {
	if !hasBothClasses(positive) {
		return nil, math.NaN(), ErrSingleClass
	}
	y := append([]float64(nil), scores...)
	classes := append([]bool(nil), positive...)
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, thresh := stat.ROC(nil, y, classes, nil)
	auc := integrate.Trapezoidal(fpr, tpr)
	// 无穷大的起始阈值替换为最大分数 + 1，报告才能序列化为 JSON
	for i, v := range thresh {
		if math.IsInf(v, 1) {
			thresh[i] = y[len(y)-1] + 1
		}
	}
	return &Curve{X: fpr, Y: tpr, Thresholds: thresh}, auc, nil
}

// BinaryAUC 二分类 ROC-AUC
func BinaryAUC(scores []float64, positive []bool) (float64, error) {
	_, auc, err := ROCCurve(scores, positive)
	return auc, err
}

// MacroOvRAUC 多分类一对多宏平均 AUC，跳过评估集中缺正例或负例的类别
func MacroOvRAUC(probs [][]float64, yTrue []int, nClasses int) (float64, error) {
	var sum float64
	var used int
	for c := 0; c < nClasses; c++ {
		scores := make([]float64, len(probs))
		positive := make([]bool, len(probs))
		for i, row := range probs {
			scores[i] = row[c]
			positive[i] = yTrue[i] == c
		}
		auc, err := BinaryAUC(scores, positive)
		if err != nil {
			continue
		}
		sum += auc
		used++
	}
	if used == 0 {
		return math.NaN(), ErrSingleClass
	}
	return sum / float64(used), nil
}

// PrecisionRecallCurve 计算 PR 曲线（X 为召回率，Y 为精确率）与平均精确率
//
// 阈值按分数降序取每个不同的分数值，AP = Σ (R_n - R_{n-1}) · P_n。
func PrecisionRecallCurve(scores []float64, positive []bool) (*Curve, float64, error) {
	if !hasBothClasses(positive) {
		return nil, math.NaN(), ErrSingleClass
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	totalPos := 0
	for _, p := range positive {
		if p {
			totalPos++
		}
	}

	curve := &Curve{}
	var tp, fp int
	var ap, prevRecall float64
	for k, i := range order {
		if positive[i] {
			tp++
		} else {
			fp++
		}
		if k+1 < len(order) && scores[order[k+1]] == scores[i] {
			continue
		}
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(totalPos)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
		curve.X = append(curve.X, recall)
		curve.Y = append(curve.Y, precision)
		curve.Thresholds = append(curve.Thresholds, scores[i])
	}
	return curve, ap, nil
}

func hasBothClasses(positive []bool) bool {
	var pos, neg bool
	for _, p := range positive {
		if p {
			pos = true
		} else {
			neg = true
		}
	}
	return pos && neg
}
