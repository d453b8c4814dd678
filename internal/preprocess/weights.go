package preprocess

// BalancedClassWeights 类权重 n/(k·count_c)，k 为出现的类别数
func BalancedClassWeights(labels []int) map[int]float64 {
	counts := ClassCounts(labels)
	weights := make(map[int]float64, len(counts))
	if len(counts) == 0 {
		return weights
	}
	n := float64(len(labels))
	k := float64(len(counts))
	for c, cnt := range counts {
		weights[c] = n / (k * float64(cnt))
	}
	return weights
}

// ClassCounts 各类别样本数
func ClassCounts(labels []int) map[int]int {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	return counts
}
