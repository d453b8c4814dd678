package forest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"wisefido-anomaly/internal/ml/metrics"
	"wisefido-anomaly/internal/preprocess"
)

// Grid 超参数网格
type Grid struct {
	NEstimators     []int    `json:"n_estimators"`
	MaxDepth        []int    `json:"max_depth"`
	MinSamplesSplit []int    `json:"min_samples_split"`
	MinSamplesLeaf  []int    `json:"min_samples_leaf"`
	ClassWeights    []string `json:"class_weight"`
}

// Combinations 展开网格，按参数名字母序嵌套、最后一个参数变化最快
func (g Grid) Combinations(seed int64) []Params {
	var out []Params
	for _, cw := range g.ClassWeights {
		for _, depth := range g.MaxDepth {
			for _, leaf := range g.MinSamplesLeaf {
				for _, split := range g.MinSamplesSplit {
					for _, n := range g.NEstimators {
						out = append(out, Params{
							NEstimators:     n,
							MaxDepth:        depth,
							MinSamplesSplit: split,
							MinSamplesLeaf:  leaf,
							ClassWeight:     cw,
							Seed:            seed,
						})
					}
				}
			}
		}
	}
	return out
}

// SearchOptions 网格搜索选项
type SearchOptions struct {
	Folds         int
	Workers       int
	Seed          int64
	PositiveClass int
}

// CandidateScore 单组参数的交叉验证得分
type CandidateScore struct {
	Params Params    `json:"params"`
	FoldF1 []float64 `json:"fold_f1"`
	MeanF1 float64   `json:"mean_f1"`
}

// SearchResult 网格搜索结果
type SearchResult struct {
	Best       Params           `json:"best_params"`
	BestScore  float64          `json:"best_score"`
	Candidates []CandidateScore `json:"candidates"`
	Model      *Forest          `json:"-"`
}

// GridSearch 以分层 K 折交叉验证的正类 F1 选择最佳参数，并在全部训练数据上重新拟合
//
// 每个 (参数组合, 折) 是独立任务，结果写入预分配的位置，输出与并发顺序无关。
// 得分相同时取网格顺序中靠前的组合。
func GridSearch(ctx context.Context, x [][]float64, y []int, nClasses int, grid Grid, opts SearchOptions, logger *zap.Logger) (*SearchResult, error) {
	combos := grid.Combinations(opts.Seed)
	if len(combos) == 0 {
		return nil, fmt.Errorf("forest: empty parameter grid")
	}
	folds, err := preprocess.StratifiedKFold(y, opts.Folds, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("forest: build folds: %w", err)
	}

	logger.Info("Starting grid search",
		zap.Int("candidates", len(combos)),
		zap.Int("folds", len(folds)),
		zap.Int("fits", len(combos)*len(folds)),
	)

	scores := make([][]float64, len(combos))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for ci, p := range combos {
		for fi, fold := range folds {
			g.Go(func() error {
				trainX, trainY := preprocess.Subset(x, y, fold.Train)
				testX, testY := preprocess.Subset(x, y, fold.Test)

				m := New(p)
				if err := m.Fit(gctx, trainX, trainY, nClasses); err != nil {
					return fmt.Errorf("fit %s fold %d: %w", p, fi, err)
				}
				pred, err := m.Predict(testX)
				if err != nil {
					return err
				}
				scores[ci][fi] = metrics.F1Score(testY, pred, opts.PositiveClass)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &SearchResult{Candidates: make([]CandidateScore, len(combos)), BestScore: -1}
	bestIdx := 0
	for ci, p := range combos {
		var sum float64
		for _, s := range scores[ci] {
			sum += s
		}
		mean := sum / float64(len(folds))
		result.Candidates[ci] = CandidateScore{Params: p, FoldF1: scores[ci], MeanF1: mean}
		if mean > result.BestScore {
			result.BestScore = mean
			bestIdx = ci
		}
	}
	result.Best = combos[bestIdx]

	logger.Info("Grid search finished",
		zap.String("best_params", result.Best.String()),
		zap.Float64("best_cv_f1", result.BestScore),
	)

	best := New(result.Best)
	best.Workers = opts.Workers
	if err := best.Fit(ctx, x, y, nClasses); err != nil {
		return nil, fmt.Errorf("forest: refit best params: %w", err)
	}
	result.Model = best
	return result, nil
}
