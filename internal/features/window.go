// Package features 把时间有序的传感器样本转换为定长特征向量
//
// 训练流程与在线评分共用本包的函数，保证两端的特征计算完全一致。
package features

import (
	"fmt"
)

// WindowStarts 返回所有窗口的起始下标
//
// 起始位置 i 从 0 开始按 step 递增，满足 i+size <= length。
// length < size 时返回空切片（不是错误）。
func WindowStarts(length, size, step int) ([]int, error) {
	if size <= 0 || step <= 0 {
		return nil, fmt.Errorf("invalid window parameters: size=%d step=%d", size, step)
	}
	n := WindowCount(length, size, step)
	starts := make([]int, 0, n)
	for i := 0; i+size <= length; i += step {
		starts = append(starts, i)
	}
	return starts, nil
}

// WindowCount 窗口数量 max(0, floor((L-W)/S)+1)
func WindowCount(length, size, step int) int {
	if size <= 0 || step <= 0 || length < size {
		return 0
	}
	return (length-size)/step + 1
}
