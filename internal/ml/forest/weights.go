package forest

import (
	"fmt"
	"strconv"
	"strings"

	"wisefido-anomaly/internal/preprocess"
)

// ClassWeightBalanced 按类别频率反比加权
const ClassWeightBalanced = "balanced"

// ResolveClassWeights 把类权重方案转换为每个类别的权重
//
// 支持 ""（不加权）、"balanced" 和 "1:N"（类别 0 权重 1，类别 1 权重 N）。
func ResolveClassWeights(scheme string, labels []int, nClasses int) ([]float64, error) {
	weights := make([]float64, nClasses)
	for c := range weights {
		weights[c] = 1
	}

	switch {
	case scheme == "":
		return weights, nil
	case scheme == ClassWeightBalanced:
		for c, w := range preprocess.BalancedClassWeights(labels) {
			if c >= 0 && c < nClasses {
				weights[c] = w
			}
		}
		return weights, nil
	}

	parts := strings.Split(scheme, ":")
	if len(parts) != nClasses {
		return nil, fmt.Errorf("forest: class weight %q does not match %d classes", scheme, nClasses)
	}
	for c, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("forest: invalid class weight %q", scheme)
		}
		weights[c] = w
	}
	return weights, nil
}
