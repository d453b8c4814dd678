// Package artifact 模型产物的文件存储
//
// 每个模型族一个目录：<dir>/<family>/{manifest.json, scaler.json, encoder.json, model.json, report.json}。
// 写入先落到临时目录，全部成功后整体替换，读取时校验 SHA-256 与类别一致性。
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/models"
)

// 产物文件名
const (
	ManifestFile = "manifest.json"
	ScalerFile   = "scaler.json"
	EncoderFile  = "encoder.json"
	ModelFile    = "model.json"
	ReportFile   = "report.json"
)

// 模型类型
const (
	ModelTypeLSTM         = "lstm"
	ModelTypeRandomForest = "random_forest"
)

// Manifest 产物清单
type Manifest struct {
	RunID         string            `json:"run_id"`
	Family        models.Family     `json:"family"`
	ModelType     string            `json:"model_type"`
	CreatedAt     time.Time         `json:"created_at"`
	FeatureNames  []string          `json:"feature_names"`
	Classes       []string          `json:"classes"`
	TimeSteps     int               `json:"time_steps,omitempty"`
	WindowSamples int               `json:"window_samples,omitempty"`
	StepSamples   int               `json:"step_samples,omitempty"`
	Synthetic     bool              `json:"synthetic"`
	Checksums     map[string]string `json:"checksums"`
}

// Store 产物存储
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore 创建产物存储
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir 根目录
func (s *Store) Dir() string {
	return s.dir
}

// FamilyDir 模型族目录
func (s *Store) FamilyDir(family models.Family) string {
	return filepath.Join(s.dir, string(family))
}

// Save 写入一个模型族的全部产物
//
// files 的值被序列化为 JSON。任何一步失败都会删除临时目录，已有产物保持不变，
// 返回的错误包装 models.ErrArtifactPersist。
func (s *Store) Save(manifest Manifest, files map[string]any) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create artifact dir: %v", models.ErrArtifactPersist, err)
	}
	staging, err := os.MkdirTemp(s.dir, "."+string(manifest.Family)+"-staging-")
	if err != nil {
		return "", fmt.Errorf("%w: create staging dir: %v", models.ErrArtifactPersist, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	manifest.Checksums = make(map[string]string, len(names))
	for _, name := range names {
		sum, err := writeJSON(filepath.Join(staging, name), files[name])
		if err != nil {
			return "", fmt.Errorf("%w: write %s: %v", models.ErrArtifactPersist, name, err)
		}
		manifest.Checksums[name] = sum
	}
	if _, err := writeJSON(filepath.Join(staging, ManifestFile), manifest); err != nil {
		return "", fmt.Errorf("%w: write manifest: %v", models.ErrArtifactPersist, err)
	}

	final := s.FamilyDir(manifest.Family)
	backup := final + ".previous"
	_ = os.RemoveAll(backup)
	hadPrevious := false
	if _, err := os.Stat(final); err == nil {
		if err := os.Rename(final, backup); err != nil {
			return "", fmt.Errorf("%w: move previous artifacts: %v", models.ErrArtifactPersist, err)
		}
		hadPrevious = true
	}
	if err := os.Rename(staging, final); err != nil {
		if hadPrevious {
			_ = os.Rename(backup, final)
		}
		return "", fmt.Errorf("%w: publish artifacts: %v", models.ErrArtifactPersist, err)
	}
	committed = true
	_ = os.RemoveAll(backup)

	s.logger.Info("Artifacts saved",
		zap.String("family", string(manifest.Family)),
		zap.String("run_id", manifest.RunID),
		zap.String("path", final),
		zap.Strings("files", names),
	)
	return final, nil
}

func writeJSON(path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ReadManifest 只读取清单（用于检测产物是否更新）
func (s *Store) ReadManifest(family models.Family) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.FamilyDir(family), ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s artifacts in %s: %w", models.ErrArtifactLoad, family, s.dir, os.ErrNotExist)
		}
		return nil, fmt.Errorf("%w: read manifest: %v", models.ErrArtifactLoad, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", models.ErrArtifactLoad, err)
	}
	if m.Family != family {
		return nil, fmt.Errorf("%w: manifest family %q, expected %q", models.ErrArtifactLoad, m.Family, family)
	}
	return &m, nil
}

// readVerified 读取文件并校验清单中的 SHA-256，再反序列化到 v
func (s *Store) readVerified(m *Manifest, name string, v any) error {
	want, ok := m.Checksums[name]
	if !ok {
		return fmt.Errorf("%w: %s not listed in manifest", models.ErrArtifactLoad, name)
	}
	data, err := os.ReadFile(filepath.Join(s.FamilyDir(m.Family), name))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", models.ErrArtifactLoad, name, err)
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != want {
		return fmt.Errorf("%w: checksum mismatch for %s", models.ErrArtifactLoad, name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", models.ErrArtifactLoad, name, err)
	}
	return nil
}
