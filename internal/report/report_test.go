package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"wisefido-anomaly/internal/config"
	"wisefido-anomaly/internal/ml/forest"
	"wisefido-anomaly/internal/ml/lstm"
	"wisefido-anomaly/internal/ml/metrics"
	"wisefido-anomaly/internal/models"
	"wisefido-anomaly/internal/training"
)

func sampleResult(t *testing.T) *training.Result {
	t.Helper()
	yTrue := []int{0, 0, 1, 1, 0, 1}
	scores := []float64{0.1, 0.3, 0.7, 0.9, 0.6, 0.4}
	positive := make([]bool, len(yTrue))
	yPred := make([]int, len(yTrue))
	for i, y := range yTrue {
		positive[i] = y == 1
		if scores[i] >= 0.5 {
			yPred[i] = 1
		}
	}
	roc, auc, err := metrics.ROCCurve(scores, positive)
	require.NoError(t, err)
	pr, ap, err := metrics.PrecisionRecallCurve(scores, positive)
	require.NoError(t, err)
	fallReport, err := metrics.ClassificationReport(yTrue, yPred, []string{"no_fall", "fall"})
	require.NoError(t, err)

	best := forest.Params{NEstimators: 5, MinSamplesSplit: 2, MinSamplesLeaf: 1, ClassWeight: "balanced", Seed: 1}
	other := best
	other.ClassWeight = "1:10"

	vitalsReport, err := metrics.ClassificationReport([]int{0, 1, 2, 3}, []int{0, 1, 2, 2}, []string{"High", "Low", "Medium", "Normal"})
	require.NoError(t, err)
	loss := 0.8

	now := time.Now().UTC()
	return &training.Result{Families: []*training.FamilyReport{
		{
			Family:     models.FamilyVitals,
			RunID:      "vitals-run",
			Status:     models.RunTrained,
			StartedAt:  now,
			FinishedAt: now,
			Evaluation: &training.Evaluation{
				Accuracy:       vitalsReport.Accuracy,
				Loss:           &loss,
				Classification: vitalsReport,
				History: &lstm.History{
					Loss:        []float64{1.2, 0.9, 0.8},
					ValLoss:     []float64{1.3, 1.0, 0.95},
					Accuracy:    []float64{0.4, 0.6, 0.7},
					ValAccuracy: []float64{0.35, 0.55, 0.6},
				},
			},
		},
		{
			Family:     models.FamilyFall,
			RunID:      "fall-run",
			Status:     models.RunTrained,
			Synthetic:  true,
			StartedAt:  now,
			FinishedAt: now,
			Evaluation: &training.Evaluation{
				Accuracy:         fallReport.Accuracy,
				Classification:   fallReport,
				ROC:              roc,
				ROCAUC:           &auc,
				PR:               pr,
				AveragePrecision: &ap,
				Importances: []training.FeatureImportance{
					{Feature: "SMV_Acc_max", Importance: 0.6},
					{Feature: "SMV_Gyro_mean", Importance: 0.4},
				},
				Search: &forest.SearchResult{
					Best:      best,
					BestScore: 0.8,
					Candidates: []forest.CandidateScore{
						{Params: best, FoldF1: []float64{0.8, 0.8, 0.8}, MeanF1: 0.8},
						{Params: other, FoldF1: []float64{0.7, 0.6, 0.8}, MeanF1: 0.7},
					},
				},
			},
		},
	}}
}

func TestExport_PlotsAndWorkbook(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	e := NewExporter(dir, zap.NewNop())

	files, err := e.Export(sampleResult(t), config.ReportConfig{Plots: true, Workbook: true})
	require.NoError(t, err)

	for _, name := range []string{
		"vitals_vitals-run_loss.png",
		"fall_fall-run_roc.png",
		"fall_fall-run_pr.png",
		"fall_fall-run_importances.png",
	} {
		path := filepath.Join(dir, name)
		assert.Contains(t, files, path)
		info, err := os.Stat(path)
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0))
	}

	workbook := files[len(files)-1]
	assert.Equal(t, ".xlsx", filepath.Ext(workbook))
	f, err := excelize.OpenFile(workbook)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, SummaryHeader, rows[0])
	assert.Equal(t, "vitals", rows[1][0])
	assert.Equal(t, "trained", rows[2][2])

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "fall metrics")
	assert.Contains(t, sheets, "fall importances")
	assert.Contains(t, sheets, "fall grid search")
	assert.Contains(t, sheets, "vitals history")

	search, err := f.GetRows("fall grid search")
	require.NoError(t, err)
	require.Len(t, search, 3)
	assert.Equal(t, "TRUE", search[1][3])
	assert.Equal(t, "FALSE", search[2][3])
}

func TestExport_SkippedFamilyOnlyInSummary(t *testing.T) {
	dir := t.TempDir()
	result := &training.Result{Families: []*training.FamilyReport{
		{Family: models.FamilyVitals, RunID: "r1", Status: models.RunSkipped, Reason: "vitals training skipped: only 1 risk tier(s) present"},
	}}

	files, err := NewExporter(dir, zap.NewNop()).Export(result, config.ReportConfig{Plots: true, Workbook: true})
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := excelize.OpenFile(files[0])
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{summarySheet}, f.GetSheetList())
}

func TestExport_Disabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "none")
	files, err := NewExporter(dir, zap.NewNop()).Export(&training.Result{}, config.ReportConfig{})
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.NoDirExists(t, dir)
}
