package dataset

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"wisefido-anomaly/internal/models"
)

const vitalsCSV = "Heart Rate,Oxygen Saturation,Body Temperature,Timestamp\n" +
	"72,98,36.6,100\n" +
	"130,97,36.8,101\n" +
	",95,36.7,102\n"

func newTestLoader() *Loader {
	return NewLoader(5*time.Second, zap.NewNop())
}

func TestLoader_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitals.csv")
	require.NoError(t, os.WriteFile(path, []byte(vitalsCSV), 0o644))

	table, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.True(t, table.Has(ColHeartRate))
	assert.False(t, table.Synthetic)

	samples, err := VitalsSamples(table, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, models.VitalsSample{HeartRate: 130, SpO2: 97, BodyTemperature: 36.8, Timestamp: 101}, samples[1])
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := newTestLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	_, err = newTestLoader().Load(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestLoader_EmptyCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := newTestLoader().Load(context.Background(), path)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestLoader_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fall.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"xAcc", "yAcc", "zAcc", "xGyro", "yGyro", "zGyro", "Activity"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{0.1, 0.2, 9.8, 1, 2, 3, "WALKING"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{5, -6, 2, 60, -60, 50, "fall_forward"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := newTestLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	samples, err := MotionSamples(table)
	require.NoError(t, err)
	assert.Equal(t, 0, samples[0].Label)
	assert.Equal(t, 1, samples[1].Label)
	assert.Equal(t, 60.0, samples[1].GyroX)
}

func TestLoader_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(vitalsCSV))
	}))
	defer srv.Close()

	table, err := newTestLoader().Load(context.Background(), srv.URL+"/vitals.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	_, err = newTestLoader().Load(context.Background(), srv.URL+"/missing.csv")
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestVitalsSamples_SchemaError(t *testing.T) {
	table := NewTable([]string{"Heart Rate", "Body Temperature"}, [][]string{{"70", "36.5"}})
	_, err := VitalsSamples(table, zap.NewNop())
	require.ErrorIs(t, err, models.ErrSchema)

	var schemaErr *models.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{ColSpO2}, schemaErr.Missing)
}

func TestMotionSamples_SchemaErrors(t *testing.T) {
	_, err := MotionSamples(NewTable([]string{"xAcc"}, nil))
	assert.ErrorIs(t, err, models.ErrSchema)

	_, err = MotionSamples(NewTable(MotionColumns, [][]string{{"1", "2", "3", "4", "5", "6"}}))
	assert.ErrorIs(t, err, models.ErrSchema)
}

func TestTable_FloatNonFiniteIsMissing(t *testing.T) {
	cells := []string{"Inf", "+Inf", "-inf", "infinity", "1e400", "-1e400", "NaN", "abc", ""}
	rows := make([][]string, len(cells))
	for i, c := range cells {
		rows[i] = []string{c}
	}
	table := NewTable([]string{"v"}, append(rows, []string{" 36.5 "}))

	for i, c := range cells {
		assert.True(t, math.IsNaN(table.Float(i, "v")), "cell %q", c)
	}
	assert.Equal(t, 36.5, table.Float(len(cells), "v"))
}

func TestVitalsSamples_DropsNonFiniteRows(t *testing.T) {
	table := NewTable(VitalsColumns, [][]string{
		{"70", "98", "36.5"},
		{"Inf", "98", "36.5"},
		{"72", "-Inf", "36.6"},
		{"74", "97", "1e400"},
		{"76", "96", "36.7"},
	})
	samples, err := VitalsSamples(table, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 70.0, samples[0].HeartRate)
	assert.Equal(t, 76.0, samples[1].HeartRate)
}

func TestMotionSamples_NonFiniteBecomesNaN(t *testing.T) {
	columns := append(append([]string(nil), MotionColumns...), "label")
	samples, err := MotionSamples(NewTable(columns, [][]string{{"Inf", "0", "9.8", "0", "0", "0", "0"}}))
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.True(t, math.IsNaN(samples[0].AccX))
	assert.Equal(t, 9.8, samples[0].AccZ)
}

func TestNewTable_TrimsHeader(t *testing.T) {
	table := NewTable([]string{"\ufeffHeart Rate", " Oxygen Saturation "}, [][]string{{"70"}})
	assert.True(t, table.Has(ColHeartRate))
	assert.True(t, table.Has(ColSpO2))
	assert.Equal(t, "", table.String(0, ColSpO2))
	assert.NoError(t, table.Require(ColHeartRate))
}

func TestSyntheticVitals(t *testing.T) {
	table := SyntheticVitals(500, 42)
	assert.True(t, table.Synthetic)
	assert.Equal(t, VitalsColumns, table.Columns)

	samples, err := VitalsSamples(table, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, samples, 500)
	for _, s := range samples {
		assert.GreaterOrEqual(t, s.HeartRate, 50.0)
		assert.Less(t, s.HeartRate, 120.0)
		assert.GreaterOrEqual(t, s.SpO2, 90.0)
		assert.LessOrEqual(t, s.SpO2, 100.0)
		assert.GreaterOrEqual(t, s.BodyTemperature, 35.0)
		assert.LessOrEqual(t, s.BodyTemperature, 41.0)
	}
	assert.Equal(t, table.Rows, SyntheticVitals(500, 42).Rows)
}

func TestSyntheticFall(t *testing.T) {
	table := SyntheticFall(2000, 50, 42)
	samples, err := MotionSamples(table)
	require.NoError(t, err)
	require.Len(t, samples, 2000)

	falls := 0
	for _, s := range samples {
		falls += s.Label
	}
	assert.Greater(t, falls, 0)
	assert.Less(t, falls, 2000)
	assert.Equal(t, table.Rows, SyntheticFall(2000, 50, 42).Rows)
}
