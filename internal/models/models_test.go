package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeReading() *Reading {
	return &Reading{
		SubjectID:      "patient-1",
		HeartRate:      Float64Ptr(75),
		SpO2:           Float64Ptr(98),
		AccelerometerX: Float64Ptr(0.1),
		AccelerometerY: Float64Ptr(0.2),
		AccelerometerZ: Float64Ptr(9.8),
		GyroscopeX:     Float64Ptr(0.5),
		GyroscopeY:     Float64Ptr(-0.2),
		GyroscopeZ:     Float64Ptr(0.1),
		Timestamp:      time.Unix(1714550400, 0),
	}
}

func TestReadingValidate(t *testing.T) {
	require.NoError(t, completeReading().Validate())

	r := completeReading()
	r.AccelerometerY = nil
	err := r.Validate()
	assert.ErrorIs(t, err, ErrInferenceInput)
	assert.Contains(t, err.Error(), "accelerometer_y")

	// 体温可选
	r = completeReading()
	r.BodyTemperature = nil
	assert.NoError(t, r.Validate())
}

func TestReadingSamples(t *testing.T) {
	r := completeReading()

	v := r.VitalsSample(36.8)
	assert.Equal(t, []float64{75, 98, 36.8}, v.Vector())
	assert.Equal(t, int64(1714550400), v.Timestamp)

	r.BodyTemperature = Float64Ptr(38.2)
	assert.Equal(t, 38.2, r.VitalsSample(36.8).BodyTemperature)

	m := r.MotionSample()
	assert.Equal(t, MotionSample{AccX: 0.1, AccY: 0.2, AccZ: 9.8, GyroX: 0.5, GyroY: -0.2, GyroZ: 0.1}, m)
}

func TestScoreResultHasAnomaly(t *testing.T) {
	r := &ScoreResult{}
	assert.False(t, r.HasAnomaly())

	r.FallDetection.IsAnomaly = true
	assert.True(t, r.HasAnomaly())

	r = &ScoreResult{VitalsAssessment: VitalsAssessment{IsAnomaly: true, RiskLevel: RiskLevelHigh}}
	assert.True(t, r.HasAnomaly())
}

func TestSkipError(t *testing.T) {
	err := NewSkipError(FamilyVitals, ErrInsufficientDiversity, "only %d risk tier present", 1)

	assert.True(t, IsSkip(err))
	assert.ErrorIs(t, err, ErrInsufficientDiversity)
	assert.Equal(t, "vitals training skipped: only 1 risk tier present", err.Error())
	assert.False(t, IsSkip(ErrArtifactPersist))

	schema := &SchemaError{Missing: []string{"Heart Rate", "Oxygen Saturation"}}
	assert.True(t, errors.Is(schema, ErrSchema))
	assert.Contains(t, schema.Error(), "Heart Rate, Oxygen Saturation")
}
