package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var readingColumns = []string{
	"user_id", "heart_rate", "spo2", "temperature",
	"accelerometer_x", "accelerometer_y", "accelerometer_z",
	"gyroscope_x", "gyroscope_y", "gyroscope_z", "timestamp",
}

func setupMockReadingsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *ReadingsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewReadingsRepository(db, logger)

	return db, mock, repo
}

func TestGetRecentReadings_Success(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	ctx := context.Background()
	newest := time.Date(2024, 5, 1, 8, 0, 2, 0, time.UTC)

	// 数据库按时间倒序返回
	rows := sqlmock.NewRows(readingColumns).
		AddRow("patient-1", 80.0, 97.0, 36.9, 0.1, 0.2, 9.8, 0.5, -0.2, 0.1, newest).
		AddRow("patient-1", 78.0, 98.0, nil, 0.1, 0.1, 9.7, 0.4, -0.1, 0.2, newest.Add(-time.Second)).
		AddRow("patient-1", 76.0, 98.0, 36.7, 0.0, 0.2, 9.9, 0.3, 0.0, 0.1, newest.Add(-2*time.Second))

	mock.ExpectQuery(`SELECT`).
		WithArgs("patient-1", 3).
		WillReturnRows(rows)

	readings, err := repo.GetRecentReadings(ctx, "patient-1", 3)

	require.NoError(t, err)
	require.Len(t, readings, 3)
	assert.Equal(t, 76.0, *readings[0].HeartRate)
	assert.Equal(t, 80.0, *readings[2].HeartRate)
	assert.True(t, readings[0].Timestamp.Before(readings[2].Timestamp))
	assert.Nil(t, readings[1].BodyTemperature)
	assert.Equal(t, 36.9, *readings[2].BodyTemperature)
	assert.Equal(t, "patient-1", readings[2].SubjectID)
	assert.NoError(t, readings[1].Validate())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentReadings_NullRequiredField(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(readingColumns).
		AddRow("patient-1", 80.0, nil, nil, 0.1, 0.2, 9.8, 0.5, -0.2, 0.1, time.Now())

	mock.ExpectQuery(`SELECT`).
		WithArgs("patient-1", 10).
		WillReturnRows(rows)

	readings, err := repo.GetRecentReadings(context.Background(), "patient-1", 10)

	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Nil(t, readings[0].SpO2)
	assert.Error(t, readings[0].Validate())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentReadings_Empty(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("patient-2", 75).
		WillReturnRows(sqlmock.NewRows(readingColumns))

	readings, err := repo.GetRecentReadings(context.Background(), "patient-2", 75)

	require.NoError(t, err)
	assert.Empty(t, readings)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentReadings_InvalidArgs(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	_, err := repo.GetRecentReadings(context.Background(), "", 10)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "user_id is required")

	_, err = repo.GetRecentReadings(context.Background(), "patient-1", 0)
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentReadings_QueryError(t *testing.T) {
	db, mock, repo := setupMockReadingsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("patient-1", 10).
		WillReturnError(errors.New("connection reset"))

	readings, err := repo.GetRecentReadings(context.Background(), "patient-1", 10)

	assert.Error(t, err)
	assert.Nil(t, readings)
	assert.Contains(t, err.Error(), "failed to query readings")

	require.NoError(t, mock.ExpectationsWereMet())
}
