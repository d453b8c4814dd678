package preprocess

import (
	"cmp"
	"fmt"
	"slices"
)

// LabelEncoder 类别与整数编码之间的映射，类别按自然顺序排序
type LabelEncoder[T cmp.Ordered] struct {
	Classes []T `json:"classes"`
}

// Fit 记录去重排序后的类别
func (e *LabelEncoder[T]) Fit(labels []T) {
	classes := slices.Clone(labels)
	slices.Sort(classes)
	e.Classes = slices.Compact(classes)
}

// Encode 类别转换为编码
func (e *LabelEncoder[T]) Encode(labels []T) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := slices.BinarySearch(e.Classes, l)
		if !ok {
			return nil, fmt.Errorf("preprocess: unseen label %v", l)
		}
		out[i] = idx
	}
	return out, nil
}

// Decode 编码转换为类别
func (e *LabelEncoder[T]) Decode(code int) (T, error) {
	var zero T
	if code < 0 || code >= len(e.Classes) {
		return zero, fmt.Errorf("preprocess: code %d out of range [0,%d)", code, len(e.Classes))
	}
	return e.Classes[code], nil
}

// Len 类别数量
func (e *LabelEncoder[T]) Len() int {
	return len(e.Classes)
}
