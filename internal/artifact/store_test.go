package artifact

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-anomaly/internal/ml/forest"
	"wisefido-anomaly/internal/ml/lstm"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/preprocess"
)

func vitalsBundle(t *testing.T, runID string) *VitalsBundle {
	t.Helper()
	scaler := preprocess.NewStandardScaler()
	require.NoError(t, scaler.Fit([][]float64{{60, 95, 36.5}, {100, 99, 37.5}}))

	enc := &preprocess.LabelEncoder[models.RiskTier]{}
	enc.Fit([]models.RiskTier{models.RiskNormal, models.RiskHigh})

	net, err := lstm.New(lstm.Architecture{InputSize: 3, Hidden1: 4, Hidden2: 2, NClasses: 2}, 1)
	require.NoError(t, err)

	return &VitalsBundle{
		Manifest: &Manifest{
			RunID:        runID,
			Family:       models.FamilyVitals,
			ModelType:    ModelTypeLSTM,
			CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			FeatureNames: []string{"Heart Rate", "Oxygen Saturation", "Body Temperature"},
			Classes:      []string{"High", "Normal"},
			TimeSteps:    10,
		},
		Scaler:  scaler,
		Encoder: enc,
		Network: net,
	}
}

func fallBundle(t *testing.T) *FallBundle {
	t.Helper()
	x := [][]float64{{0, 1}, {1, 0}, {5, 5}, {6, 5}}
	y := []int{0, 0, 1, 1}
	scaler := preprocess.NewStandardScaler()
	require.NoError(t, scaler.Fit(x))
	f := forest.New(forest.Params{NEstimators: 3, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: 1})
	require.NoError(t, f.Fit(context.Background(), x, y, 2))
	return &FallBundle{
		Manifest: &Manifest{
			RunID:         "fall-run",
			Family:        models.FamilyFall,
			ModelType:     ModelTypeRandomForest,
			FeatureNames:  []string{"a", "b"},
			Classes:       []string{"0", "1"},
			WindowSamples: 75,
			StepSamples:   37,
		},
		Scaler: scaler,
		Forest: f,
	}
}

func TestStore_VitalsRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	b := vitalsBundle(t, "run-1")

	path, err := store.SaveVitals(b, map[string]any{"accuracy": 0.9})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Dir(), "vitals"), path)
	for _, name := range []string{ManifestFile, ScalerFile, EncoderFile, ModelFile, ReportFile} {
		assert.FileExists(t, filepath.Join(path, name))
	}

	loaded, err := store.LoadVitals()
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.Manifest.RunID)
	assert.Equal(t, b.Scaler.Mean, loaded.Scaler.Mean)
	assert.Equal(t, b.Encoder.Classes, loaded.Encoder.Classes)
	assert.Len(t, loaded.Manifest.Checksums, 4)

	seq := [][]float64{{0.1, 0.2, 0.3}, {0.3, 0.2, 0.1}}
	want, err := b.Network.Predict(seq)
	require.NoError(t, err)
	got, err := loaded.Network.Predict(seq)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_FallRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	b := fallBundle(t)
	_, err := store.SaveFall(b, nil)
	require.NoError(t, err)

	loaded, err := store.LoadFall()
	require.NoError(t, err)
	assert.Equal(t, 75, loaded.Manifest.WindowSamples)
	assert.Len(t, loaded.Forest.Trees, 3)
	assert.NoFileExists(t, filepath.Join(store.FamilyDir(models.FamilyFall), ReportFile))
}

func TestStore_ReplacesPreviousRun(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	_, err := store.SaveVitals(vitalsBundle(t, "run-1"), nil)
	require.NoError(t, err)
	_, err = store.SaveVitals(vitalsBundle(t, "run-2"), nil)
	require.NoError(t, err)

	m, err := store.ReadManifest(models.FamilyVitals)
	require.NoError(t, err)
	assert.Equal(t, "run-2", m.RunID)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_FailedSaveKeepsPrevious(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	_, err := store.SaveVitals(vitalsBundle(t, "run-1"), nil)
	require.NoError(t, err)

	// NaN 无法编码为 JSON
	_, err = store.SaveVitals(vitalsBundle(t, "run-2"), map[string]any{"auc": math.NaN()})
	require.ErrorIs(t, err, models.ErrArtifactPersist)
	assert.False(t, models.IsSkip(err))

	m, err := store.ReadManifest(models.FamilyVitals)
	require.NoError(t, err)
	assert.Equal(t, "run-1", m.RunID)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory must be removed")
}

func TestStore_FailedFirstSaveLeavesNothing(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	_, err := store.SaveFall(fallBundle(t), map[string]any{"bad": math.Inf(1)})
	require.ErrorIs(t, err, models.ErrArtifactPersist)
	assert.NoDirExists(t, store.FamilyDir(models.FamilyFall))
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	_, err := store.LoadVitals()
	assert.ErrorIs(t, err, models.ErrArtifactLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_ChecksumMismatch(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	path, err := store.SaveFall(fallBundle(t), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(path, ScalerFile), []byte(`{"mean":[0,0],"scale":[1,1]}`), 0o644))
	_, err = store.LoadFall()
	assert.ErrorIs(t, err, models.ErrArtifactLoad)
	assert.Contains(t, err.Error(), "checksum")
}

func TestStore_EncoderModelMismatch(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	b := vitalsBundle(t, "run-x")
	b.Manifest.Classes = []string{"High", "Low", "Normal"}
	b.Encoder.Fit([]models.RiskTier{models.RiskHigh, models.RiskLow, models.RiskNormal})
	_, err := store.SaveVitals(b, nil)
	require.NoError(t, err)

	_, err = store.LoadVitals()
	assert.ErrorIs(t, err, models.ErrArtifactLoad)
	assert.Contains(t, err.Error(), "outputs")
}

func TestStore_ManifestEncoderMismatch(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	b := vitalsBundle(t, "run-y")
	b.Manifest.Classes = []string{"Normal", "High"}
	_, err := store.SaveVitals(b, nil)
	require.NoError(t, err)

	_, err = store.LoadVitals()
	assert.ErrorIs(t, err, models.ErrArtifactLoad)
}
