package scoring

import (
	"fmt"

	"wisefido-anomaly/internal/artifact"
	"wisefido-anomaly/internal/features"
	"wisefido-anomaly/internal/ml/forest"
	"wisefido-anomaly/internal/ml/lstm"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/preprocess"
)

// TrainedArtifactModel 由持久化产物构建的模型
//
// 特征计算与训练时调用同一组函数：生命体征取最近 TimeSteps 个样本标准化后送入 LSTM，
// 跌倒取最近 WindowSamples 个样本提取窗口特征、标准化后送入随机森林。
type TrainedArtifactModel struct {
	family   models.Family
	manifest *artifact.Manifest
	scaler   *preprocess.StandardScaler
	network  *lstm.Network
	forest   *forest.Forest
}

// NewTrainedVitalsModel 由生命体征产物创建模型
func NewTrainedVitalsModel(b *artifact.VitalsBundle) *TrainedArtifactModel {
	return &TrainedArtifactModel{
		family:   models.FamilyVitals,
		manifest: b.Manifest,
		scaler:   b.Scaler,
		network:  b.Network,
	}
}

// NewTrainedFallModel 由跌倒产物创建模型
func NewTrainedFallModel(b *artifact.FallBundle) *TrainedArtifactModel {
	return &TrainedArtifactModel{
		family:   models.FamilyFall,
		manifest: b.Manifest,
		scaler:   b.Scaler,
		forest:   b.Forest,
	}
}

func (m *TrainedArtifactModel) Family() models.Family      { return m.family }
func (m *TrainedArtifactModel) Source() models.ModelSource { return models.SourceTrained }
func (m *TrainedArtifactModel) Classes() []string          { return m.manifest.Classes }

// RunID 产物对应的训练运行
func (m *TrainedArtifactModel) RunID() string {
	return m.manifest.RunID
}

// RequiredSamples 预测所需的最少样本数
func (m *TrainedArtifactModel) RequiredSamples() int {
	if m.family == models.FamilyVitals {
		return m.manifest.TimeSteps
	}
	return m.manifest.WindowSamples
}

// PredictProba 样本不足时返回 ErrInsufficientHistory
func (m *TrainedArtifactModel) PredictProba(buf Buffer) ([]float64, error) {
	need := m.RequiredSamples()
	switch m.family {
	case models.FamilyVitals:
		if len(buf.Vitals) < need {
			return nil, fmt.Errorf("%w: have %d vitals samples, need %d", ErrInsufficientHistory, len(buf.Vitals), need)
		}
		rows := features.VitalsMatrix(buf.Vitals[len(buf.Vitals)-need:])
		seq, err := m.scaler.Transform(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInferenceInput, err)
		}
		return m.network.Predict(seq)

	case models.FamilyFall:
		if len(buf.Motion) < need {
			return nil, fmt.Errorf("%w: have %d motion samples, need %d", ErrInsufficientHistory, len(buf.Motion), need)
		}
		vec := features.ReplaceNaN(features.FallWindowFeatures(buf.Motion[len(buf.Motion)-need:]))
		scaled, err := m.scaler.TransformRow(vec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInferenceInput, err)
		}
		return m.forest.PredictRow(scaled)
	}
	return nil, fmt.Errorf("unknown model family %q", m.family)
}
