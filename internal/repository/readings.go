package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"wisefido-anomaly/internal/models"
)

// ReadingsRepository 可穿戴读数仓库（只读，读数由外部服务层写入）
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository 创建读数仓库
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetRecentReadings 获取受试者最近 n 条读数，按时间升序返回（最后一条为最新）
func (r *ReadingsRepository) GetRecentReadings(ctx context.Context, subjectID string, n int) ([]*models.Reading, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if n <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", n)
	}

	query := `
		SELECT
			p.user_id,
			h.heart_rate,
			h.spo2,
			h.temperature,
			h.accelerometer_x,
			h.accelerometer_y,
			h.accelerometer_z,
			h.gyroscope_x,
			h.gyroscope_y,
			h.gyroscope_z,
			h.timestamp
		FROM health_data h
		JOIN patients p ON p.id = h.patient_id
		WHERE p.user_id = $1
		ORDER BY h.timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, subjectID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []*models.Reading
	for rows.Next() {
		var reading models.Reading
		var heartRate, spo2, temperature sql.NullFloat64
		var accX, accY, accZ, gyroX, gyroY, gyroZ sql.NullFloat64

		if err := rows.Scan(
			&reading.SubjectID,
			&heartRate,
			&spo2,
			&temperature,
			&accX,
			&accY,
			&accZ,
			&gyroX,
			&gyroY,
			&gyroZ,
			&reading.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		reading.HeartRate = nullFloat(heartRate)
		reading.SpO2 = nullFloat(spo2)
		reading.BodyTemperature = nullFloat(temperature)
		reading.AccelerometerX = nullFloat(accX)
		reading.AccelerometerY = nullFloat(accY)
		reading.AccelerometerZ = nullFloat(accZ)
		reading.GyroscopeX = nullFloat(gyroX)
		reading.GyroscopeY = nullFloat(gyroY)
		reading.GyroscopeZ = nullFloat(gyroZ)
		readings = append(readings, &reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	// 查询按时间倒序，翻转为升序
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}

	r.logger.Debug("Loaded recent readings",
		zap.String("user_id", subjectID),
		zap.Int("requested", n),
		zap.Int("found", len(readings)),
	)
	return readings, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float64Ptr(v.Float64)
}
