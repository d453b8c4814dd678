// Package metrics 分类模型评估：准确率、分类报告、混淆矩阵、ROC/PR 曲线
package metrics

import (
	"fmt"
)

// ClassMetrics 单个类别的精确率、召回率、F1 和支持数
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report 分类报告
type Report struct {
	Classes     []ClassMetrics `json:"classes"`
	Accuracy    float64        `json:"accuracy"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Confusion   [][]int        `json:"confusion_matrix"`
}

// Accuracy 预测正确的比例
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ConfusionMatrix 行为真实类别，列为预测类别
func ConfusionMatrix(yTrue, yPred []int, nClasses int) [][]int {
	m := make([][]int, nClasses)
	for i := range m {
		m[i] = make([]int, nClasses)
	}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= nClasses || p < 0 || p >= nClasses {
			continue
		}
		m[t][p]++
	}
	return m
}

// F1Score 指定正类的 F1（无预测或无正样本时为 0）
func F1Score(yTrue, yPred []int, positive int) float64 {
	var tp, fp, fn int
	for i := range yTrue {
		switch {
		case yPred[i] == positive && yTrue[i] == positive:
			tp++
		case yPred[i] == positive:
			fp++
		case yTrue[i] == positive:
			fn++
		}
	}
	_, _, f1 := prf(tp, fp, fn)
	return f1
}

func prf(tp, fp, fn int) (precision, recall, f1 float64) {
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// ClassificationReport 按 classNames 的顺序（编码 0..n-1）生成分类报告
func ClassificationReport(yTrue, yPred []int, classNames []string) (*Report, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("metrics: %d labels vs %d predictions", len(yTrue), len(yPred))
	}
	n := len(classNames)
	cm := ConfusionMatrix(yTrue, yPred, n)

	r := &Report{
		Classes:   make([]ClassMetrics, n),
		Accuracy:  Accuracy(yTrue, yPred),
		Confusion: cm,
		MacroAvg:  ClassMetrics{Class: "macro avg"},
		WeightedAvg: ClassMetrics{
			Class: "weighted avg",
		},
	}

	total := 0
	for c := 0; c < n; c++ {
		var tp, fp, fn, support int
		tp = cm[c][c]
		for k := 0; k < n; k++ {
			if k != c {
				fp += cm[k][c]
				fn += cm[c][k]
			}
			support += cm[c][k]
		}
		p, rec, f1 := prf(tp, fp, fn)
		r.Classes[c] = ClassMetrics{Class: classNames[c], Precision: p, Recall: rec, F1: f1, Support: support}
		total += support
	}

	if n > 0 {
		for _, cm := range r.Classes {
			r.MacroAvg.Precision += cm.Precision / float64(n)
			r.MacroAvg.Recall += cm.Recall / float64(n)
			r.MacroAvg.F1 += cm.F1 / float64(n)
			if total > 0 {
				w := float64(cm.Support) / float64(total)
				r.WeightedAvg.Precision += cm.Precision * w
				r.WeightedAvg.Recall += cm.Recall * w
				r.WeightedAvg.F1 += cm.F1 * w
			}
		}
	}
	r.MacroAvg.Support = total
	r.WeightedAvg.Support = total
	return r, nil
}

// ArgMax 每行概率最大的列
func ArgMax(probs [][]float64) []int {
	out := make([]int, len(probs))
	for i, row := range probs {
		best := 0
		for j := 1; j < len(row); j++ {
			if row[j] > row[best] {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
