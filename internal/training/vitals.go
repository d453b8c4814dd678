package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/artifact"
	"wisefido-anomaly/internal/dataset"
	"wisefido-anomaly/internal/features"
	"wisefido-anomaly/internal/labels"
	"wisefido-anomaly/internal/ml/lstm"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/preprocess"
)

// trainVitals 生命体征流水线
//
// 加载 → 风险等级 → 标签编码 → 序列 → 分层 80/20 划分 → 标准化（只用训练窗口覆盖的样本）
// → 类别均衡权重 → LSTM（验证损失早停）→ 评估 → 持久化。
func (o *Orchestrator) trainVitals(ctx context.Context, rep *FamilyReport) error {
	const family = models.FamilyVitals
	cfg := o.cfg.Vitals

	table, err := o.loadTable(ctx, family, o.cfg.Datasets.Vitals, func() *dataset.Table {
		return dataset.SyntheticVitals(dataset.SyntheticVitalsRows, o.cfg.Seed)
	})
	if err != nil {
		return err
	}
	rep.Synthetic = table.Synthetic

	samples, err := dataset.VitalsSamples(table, o.logger)
	if err != nil {
		return models.NewSkipError(family, err, "%v", err)
	}

	tiers := labels.RiskTiers(samples)
	counts := labels.RiskTierCounts(tiers)
	distribution := make([]zap.Field, 0, len(counts))
	for _, tier := range models.AllRiskTiers {
		distribution = append(distribution, zap.Int(string(tier), counts[tier]))
	}
	o.logger.Info("Risk tier distribution", distribution...)

	encoder := &preprocess.LabelEncoder[models.RiskTier]{}
	encoder.Fit(tiers)
	if encoder.Len() < 2 {
		return models.NewSkipError(family, models.ErrInsufficientDiversity,
			"only %d risk tier(s) present in %d samples", encoder.Len(), len(samples))
	}
	codes, err := encoder.Encode(tiers)
	if err != nil {
		return err
	}
	classNames := make([]string, encoder.Len())
	for i, c := range encoder.Classes {
		classNames[i] = string(c)
	}

	rows := features.VitalsMatrix(samples)
	seqs, y := features.BuildSequences(rows, codes, cfg.TimeSteps)
	if len(seqs) < cfg.MinWindows {
		return models.NewSkipError(family, models.ErrInsufficientDiversity,
			"%d sequences, need at least %d", len(seqs), cfg.MinWindows)
	}

	trainIdx, testIdx, err := preprocess.StratifiedSplit(y, cfg.TestSize, o.cfg.Seed)
	if errors.Is(err, models.ErrInsufficientDiversity) {
		o.logger.Warn("Stratified split not possible, using shuffled split", zap.Error(err))
		trainIdx, testIdx, err = preprocess.ShuffleSplit(len(y), cfg.TestSize, o.cfg.Seed)
	}
	if err != nil {
		return models.NewSkipError(family, err, "split sequences: %v", err)
	}

	// 标准化器只用训练窗口覆盖到的样本拟合
	covered := make([]bool, len(rows))
	for _, start := range trainIdx {
		for j := start; j < start+cfg.TimeSteps; j++ {
			covered[j] = true
		}
	}
	fitRows := make([][]float64, 0, len(rows))
	for i, row := range rows {
		if covered[i] {
			fitRows = append(fitRows, row)
		}
	}
	scaler := preprocess.NewStandardScaler()
	if err := scaler.Fit(fitRows); err != nil {
		return fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := scaler.TransformSequences(seqs)
	if err != nil {
		return fmt.Errorf("scale sequences: %w", err)
	}
	trainX, trainY := subsetSequences(scaled, y, trainIdx)
	testX, testY := subsetSequences(scaled, y, testIdx)

	var classWeights []float64
	if balanced := preprocess.BalancedClassWeights(trainY); len(balanced) >= 2 {
		classWeights = make([]float64, encoder.Len())
		for c := range classWeights {
			classWeights[c] = 1
			if w, ok := balanced[c]; ok {
				classWeights[c] = w
			}
		}
		o.logger.Info("Using balanced class weights", zap.Float64s("weights", classWeights))
	} else {
		o.logger.Warn("Fewer than 2 classes in training split, using uniform class weights")
	}

	net, err := lstm.New(lstm.Architecture{
		InputSize: len(features.VitalsFeatureNames),
		Hidden1:   cfg.Hidden1,
		Hidden2:   cfg.Hidden2,
		NClasses:  encoder.Len(),
		Dropout:   cfg.Dropout,
	}, o.cfg.Seed)
	if err != nil {
		return err
	}

	o.logger.Info("Training vitals LSTM",
		zap.Int("train_sequences", len(trainX)),
		zap.Int("test_sequences", len(testX)),
		zap.Strings("classes", classNames),
	)
	history, err := net.Fit(ctx, trainX, trainY, testX, testY, lstm.TrainConfig{
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		Patience:     cfg.Patience,
		LearningRate: cfg.LearningRate,
		L2:           cfg.L2,
		ClassWeights: classWeights,
		Seed:         o.cfg.Seed,
		Workers:      o.workers(0),
	}, o.logger)
	if err != nil {
		return fmt.Errorf("fit lstm: %w", err)
	}

	eval, err := evaluateVitals(net, testX, testY, classNames)
	if err != nil {
		return err
	}
	eval.History = history
	eval.TrainCounts = namedCounts(trainY, classNames)
	rep.Evaluation = eval
	o.logger.Info("Vitals LSTM evaluated",
		zap.Float64("test_loss", *eval.Loss),
		zap.Float64("test_accuracy", eval.Accuracy),
		zap.Float64("macro_f1", eval.Classification.MacroAvg.F1),
	)

	path, err := o.store.SaveVitals(&artifact.VitalsBundle{
		Manifest: &artifact.Manifest{
			RunID:        rep.RunID,
			Family:       family,
			ModelType:    artifact.ModelTypeLSTM,
			CreatedAt:    time.Now().UTC(),
			FeatureNames: features.VitalsFeatureNames,
			Classes:      classNames,
			TimeSteps:    cfg.TimeSteps,
			Synthetic:    table.Synthetic,
		},
		Scaler:  scaler,
		Encoder: encoder,
		Network: net,
	}, eval)
	if err != nil {
		return err
	}
	rep.ArtifactPath = path
	return nil
}

func subsetSequences(seqs [][][]float64, y []int, idx []int) ([][][]float64, []int) {
	xs := make([][][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = seqs[j]
		ys[i] = y[j]
	}
	return xs, ys
}
