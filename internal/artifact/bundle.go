package artifact

import (
	"fmt"
	"slices"

	"wisefido-anomaly/internal/ml/forest"
	"wisefido-anomaly/internal/ml/lstm"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/preprocess"
)

// VitalsBundle 生命体征模型产物：标准化器、标签编码器和 LSTM 网络
type VitalsBundle struct {
	Manifest *Manifest
	Scaler   *preprocess.StandardScaler
	Encoder  *preprocess.LabelEncoder[models.RiskTier]
	Network  *lstm.Network
}

// FallBundle 跌倒模型产物：标准化器和随机森林
type FallBundle struct {
	Manifest *Manifest
	Scaler   *preprocess.StandardScaler
	Forest   *forest.Forest
}

// SaveVitals 保存生命体征产物
func (s *Store) SaveVitals(b *VitalsBundle, report any) (string, error) {
	files := map[string]any{
		ScalerFile:  b.Scaler,
		EncoderFile: b.Encoder,
		ModelFile:   b.Network,
	}
	if report != nil {
		files[ReportFile] = report
	}
	return s.Save(*b.Manifest, files)
}

// SaveFall 保存跌倒产物
func (s *Store) SaveFall(b *FallBundle, report any) (string, error) {
	files := map[string]any{
		ScalerFile: b.Scaler,
		ModelFile:  b.Forest,
	}
	if report != nil {
		files[ReportFile] = report
	}
	return s.Save(*b.Manifest, files)
}

// LoadVitals 读取并校验生命体征产物
//
// 编码器类别必须与清单一致，且网络输出维度等于类别数。
func (s *Store) LoadVitals() (*VitalsBundle, error) {
	m, err := s.ReadManifest(models.FamilyVitals)
	if err != nil {
		return nil, err
	}
	b := &VitalsBundle{
		Manifest: m,
		Scaler:   &preprocess.StandardScaler{},
		Encoder:  &preprocess.LabelEncoder[models.RiskTier]{},
		Network:  &lstm.Network{},
	}
	if err := s.readVerified(m, ScalerFile, b.Scaler); err != nil {
		return nil, err
	}
	if err := s.readVerified(m, EncoderFile, b.Encoder); err != nil {
		return nil, err
	}
	if err := s.readVerified(m, ModelFile, b.Network); err != nil {
		return nil, err
	}

	classes := make([]string, b.Encoder.Len())
	for i, c := range b.Encoder.Classes {
		classes[i] = string(c)
	}
	if !slices.Equal(classes, m.Classes) {
		return nil, fmt.Errorf("%w: encoder classes %v do not match manifest %v", models.ErrArtifactLoad, classes, m.Classes)
	}
	if b.Network.Arch.NClasses != len(classes) {
		return nil, fmt.Errorf("%w: model has %d outputs, encoder has %d classes", models.ErrArtifactLoad, b.Network.Arch.NClasses, len(classes))
	}
	if b.Scaler.Dim() != b.Network.Arch.InputSize || b.Scaler.Dim() != len(m.FeatureNames) {
		return nil, fmt.Errorf("%w: scaler dimension %d does not match model input %d", models.ErrArtifactLoad, b.Scaler.Dim(), b.Network.Arch.InputSize)
	}
	if m.TimeSteps <= 0 {
		return nil, fmt.Errorf("%w: manifest has no time_steps", models.ErrArtifactLoad)
	}
	return b, nil
}

// LoadFall 读取并校验跌倒产物
func (s *Store) LoadFall() (*FallBundle, error) {
	m, err := s.ReadManifest(models.FamilyFall)
	if err != nil {
		return nil, err
	}
	b := &FallBundle{
		Manifest: m,
		Scaler:   &preprocess.StandardScaler{},
		Forest:   &forest.Forest{},
	}
	if err := s.readVerified(m, ScalerFile, b.Scaler); err != nil {
		return nil, err
	}
	if err := s.readVerified(m, ModelFile, b.Forest); err != nil {
		return nil, err
	}

	if b.Forest.NClasses != len(m.Classes) || len(b.Forest.Trees) == 0 {
		return nil, fmt.Errorf("%w: forest has %d classes, manifest lists %d", models.ErrArtifactLoad, b.Forest.NClasses, len(m.Classes))
	}
	if b.Scaler.Dim() != b.Forest.NFeatures || b.Scaler.Dim() != len(m.FeatureNames) {
		return nil, fmt.Errorf("%w: scaler dimension %d does not match model input %d", models.ErrArtifactLoad, b.Scaler.Dim(), b.Forest.NFeatures)
	}
	if m.WindowSamples <= 0 {
		return nil, fmt.Errorf("%w: manifest has no window_samples", models.ErrArtifactLoad)
	}
	return b, nil
}
