package labels

import (
	"errors"
	"math"
	"testing"

	"wisefido-anomaly/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveRiskTier(t *testing.T) {
	tests := []struct {
		name     string
		hr, spo2 float64
		temp     float64
		expected models.RiskTier
	}{
		{"tachycardia overrides normal spo2 and temp", 130, 98, 36.8, models.RiskHigh},
		{"high priority over low", 105, 85, 38.0, models.RiskHigh},
		{"bradycardia", 45, 98, 36.8, models.RiskHigh},
		{"hypoxemia", 75, 89, 36.8, models.RiskHigh},
		{"hr boundary 100 is medium", 100, 98, 36.8, models.RiskMedium},
		{"moderate spo2", 75, 93, 36.8, models.RiskMedium},
		{"hr 55", 55, 98, 36.8, models.RiskMedium},
		{"spo2 boundary 90 is medium", 75, 90, 36.8, models.RiskMedium},
		{"fever", 75, 98, 38.2, models.RiskLow},
		{"hypothermia", 75, 98, 35.5, models.RiskLow},
		{"temp boundary 37.5 is normal", 75, 98, 37.5, models.RiskNormal},
		{"normal", 75, 98, 36.8, models.RiskNormal},
		{"NaN falls through", math.NaN(), math.NaN(), math.NaN(), models.RiskNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveRiskTier(tt.hr, tt.spo2, tt.temp))
		})
	}
}

func TestDeriveRiskTier_TotalAndDeterministic(t *testing.T) {
	valid := map[models.RiskTier]bool{
		models.RiskNormal: true, models.RiskLow: true, models.RiskMedium: true, models.RiskHigh: true,
	}
	for hr := 30.0; hr <= 150; hr += 7.5 {
		for spo2 := 80.0; spo2 <= 100; spo2 += 2.5 {
			for temp := 34.0; temp <= 40; temp += 0.75 {
				first := DeriveRiskTier(hr, spo2, temp)
				require.True(t, valid[first])
				require.Equal(t, first, DeriveRiskTier(hr, spo2, temp))
			}
		}
	}
}

func TestRiskTierCounts(t *testing.T) {
	samples := []models.VitalsSample{
		{HeartRate: 75, SpO2: 98, BodyTemperature: 36.8},
		{HeartRate: 130, SpO2: 98, BodyTemperature: 36.8},
		{HeartRate: 75, SpO2: 98, BodyTemperature: 36.9},
	}
	counts := RiskTierCounts(RiskTiers(samples))
	assert.Equal(t, 2, counts[models.RiskNormal])
	assert.Equal(t, 1, counts[models.RiskHigh])
}

func TestFallLabelFromActivity(t *testing.T) {
	assert.Equal(t, 1, FallLabelFromActivity("FALL_FORWARD"))
	assert.Equal(t, 1, FallLabelFromActivity("backward fall"))
	assert.Equal(t, 0, FallLabelFromActivity("WALKING"))
	assert.Equal(t, 0, FallLabelFromActivity(""))
}

func TestResolveFallLabelSource(t *testing.T) {
	src, err := ResolveFallLabelSource([]string{"xAcc", "label", "Activity"})
	require.NoError(t, err)
	assert.Equal(t, LabelFromColumn, src)

	src, err = ResolveFallLabelSource([]string{"xAcc", "Activity"})
	require.NoError(t, err)
	assert.Equal(t, LabelFromActivity, src)

	_, err = ResolveFallLabelSource([]string{"xAcc"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSchema))
	var schemaErr *models.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"label", "Activity"}, schemaErr.Missing)
}
