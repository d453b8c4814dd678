package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/artifact"
	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/dataset"
	"wisefido-anomaly/internal/features"
	"wisefido-anomaly/internal/labels"
	"wisefido-anomaly/internal/ml/forest"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/preprocess"
)

// 训练集少数类不足以填满交叉验证各折时使用的基础模型参数
const (
	fallbackEstimators  = 150
	fallbackMinSplit    = 2
	fallbackMinLeaf     = 1
	fallPositiveClass   = 1
	fallNumberOfClasses = 2
)

// trainFall 跌倒检测流水线
//
// 加载 → 运动样本 → 滑动窗口特征 → 缺失值填充 → 分层 70/30 划分 → SMOTE（不适用时保留原数据）
// → 标准化（只用训练集拟合）→ 网格搜索 → 评估 → 持久化。
func (o *Orchestrator) trainFall(ctx context.Context, rep *FamilyReport) error {
	const family = models.FamilyFall
	cfg := o.cfg.Fall

	table, err := o.loadTable(ctx, family, o.cfg.Datasets.Fall, func() *dataset.Table {
		return dataset.SyntheticFall(dataset.SyntheticFallRows, cfg.SamplingRateHz, o.cfg.Seed)
	})
	if err != nil {
		return err
	}
	rep.Synthetic = table.Synthetic

	samples, err := dataset.MotionSamples(table)
	if err != nil {
		return models.NewSkipError(family, err, "%v", err)
	}

	windows, err := features.ExtractFallWindows(samples, cfg.WindowSamples, cfg.StepSamples)
	if err != nil {
		return models.NewSkipError(family, err, "extract windows: %v", err)
	}
	if len(windows.Features) == 0 {
		return models.NewSkipError(family, models.ErrInsufficientDiversity,
			"no viable windows from %d samples (window %d)", len(samples), cfg.WindowSamples)
	}
	counts := preprocess.ClassCounts(windows.Labels)
	o.logger.Info("Fall windows extracted",
		zap.Int("windows", len(windows.Features)),
		zap.Int("features", features.FallFeatureCount),
		zap.Int("no_fall", counts[0]),
		zap.Int("fall", counts[1]),
	)
	if len(counts) < 2 {
		return models.NewSkipError(family, models.ErrInsufficientDiversity,
			"featured dataset has a single class (%d windows)", len(windows.Features))
	}

	features.FillMissing(windows.Features)

	trainIdx, testIdx, err := preprocess.StratifiedSplit(windows.Labels, cfg.TestSize, o.cfg.Seed)
	if err != nil {
		return models.NewSkipError(family, err, "split windows: %v", err)
	}
	trainX, trainY := preprocess.Subset(windows.Features, windows.Labels, trainIdx)
	testX, testY := preprocess.Subset(windows.Features, windows.Labels, testIdx)
	trainCounts := namedCounts(trainY, labels.FallClassNames)

	var resampledCounts map[string]int
	res, err := preprocess.SMOTE(trainX, trainY, o.cfg.Seed)
	switch {
	case err == nil:
		trainX, trainY = res.X, res.Y
		resampledCounts = namedCounts(trainY, labels.FallClassNames)
		o.logger.Info("SMOTE applied",
			zap.Int("k_neighbors", res.K),
			zap.Int("generated", res.Generated[fallPositiveClass]),
			zap.Int("train_rows", len(trainY)),
		)
	case errors.Is(err, models.ErrResamplingInapplicable):
		o.logger.Warn("Skipping SMOTE, training on original split", zap.Error(err))
	default:
		return fmt.Errorf("smote: %w", err)
	}

	scaler := preprocess.NewStandardScaler()
	if err := scaler.Fit(trainX); err != nil {
		return fmt.Errorf("fit scaler: %w", err)
	}
	if trainX, err = scaler.Transform(trainX); err != nil {
		return err
	}
	if testX, err = scaler.Transform(testX); err != nil {
		return err
	}

	model, search, err := o.fitFallModel(ctx, trainX, trainY, cfg)
	if err != nil {
		return err
	}

	eval, err := evaluateFall(model, testX, testY, labels.FallClassNames, features.FallFeatureNames)
	if err != nil {
		return err
	}
	eval.Search = search
	eval.TrainCounts = trainCounts
	eval.ResampledCounts = resampledCounts
	rep.Evaluation = eval
	fields := []zap.Field{
		zap.Float64("test_accuracy", eval.Accuracy),
		zap.Float64("fall_f1", eval.Classification.Classes[fallPositiveClass].F1),
	}
	if eval.ROCAUC != nil {
		fields = append(fields, zap.Float64("roc_auc", *eval.ROCAUC))
	}
	o.logger.Info("Fall model evaluated", fields...)

	path, err := o.store.SaveFall(&artifact.FallBundle{
		Manifest: &artifact.Manifest{
			RunID:         rep.RunID,
			Family:        family,
			ModelType:     artifact.ModelTypeRandomForest,
			CreatedAt:     time.Now().UTC(),
			FeatureNames:  features.FallFeatureNames,
			Classes:       labels.FallClassNames,
			WindowSamples: cfg.WindowSamples,
			StepSamples:   cfg.StepSamples,
			Synthetic:     table.Synthetic,
		},
		Scaler: scaler,
		Forest: model,
	}, eval)
	if err != nil {
		return err
	}
	rep.ArtifactPath = path
	return nil
}

// fitFallModel 网格搜索最佳随机森林；少数类样本不足以分折时训练基础模型
func (o *Orchestrator) fitFallModel(ctx context.Context, x [][]float64, y []int, cfg config.FallConfig) (*forest.Forest, *forest.SearchResult, error) {
	workers := o.workers(cfg.Workers)

	minority := len(y)
	for _, n := range preprocess.ClassCounts(y) {
		minority = min(minority, n)
	}
	if minority < cfg.CVFolds {
		o.logger.Warn("Too few minority samples for cross-validation, training basic random forest",
			zap.Int("minority", minority),
			zap.Int("folds", cfg.CVFolds),
		)
		model := forest.New(forest.Params{
			NEstimators:     fallbackEstimators,
			MinSamplesSplit: fallbackMinSplit,
			MinSamplesLeaf:  fallbackMinLeaf,
			ClassWeight:     forest.ClassWeightBalanced,
			Seed:            o.cfg.Seed,
		})
		model.Workers = workers
		if err := model.Fit(ctx, x, y, fallNumberOfClasses); err != nil {
			return nil, nil, fmt.Errorf("fit random forest: %w", err)
		}
		return model, nil, nil
	}

	grid := forest.Grid{
		NEstimators:     cfg.Grid.NEstimators,
		MaxDepth:        cfg.Grid.MaxDepth,
		MinSamplesSplit: cfg.Grid.MinSamplesSplit,
		MinSamplesLeaf:  cfg.Grid.MinSamplesLeaf,
		ClassWeights:    cfg.Grid.ClassWeights,
	}
	search, err := forest.GridSearch(ctx, x, y, fallNumberOfClasses, grid, forest.SearchOptions{
		Folds:         cfg.CVFolds,
		Workers:       workers,
		Seed:          o.cfg.Seed,
		PositiveClass: fallPositiveClass,
	}, o.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("grid search: %w", err)
	}
	return search.Model, search, nil
}
