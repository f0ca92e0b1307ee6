package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/coursehub/progress-service/internal/models"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var progressTestColumns = []string{"id", "student_id", "course_id", "percentage", "status", "started_at", "completed_at", "updated_at"}

func TestProgressRepository_GetOrCreate(t *testing.T) {
	startedAt := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "creates or keeps the record",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO course_progress \(student_id, course_id, percentage, status\) VALUES \(\?, \?, 0, \?\) ON DUPLICATE KEY UPDATE id = id`).
					WithArgs(7, 1, models.ProgressStatusNotStarted).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectQuery(`SELECT id, student_id, course_id, percentage, status, started_at, completed_at, updated_at FROM course_progress WHERE student_id = \? AND course_id = \?`).
					WithArgs(7, 1).
					WillReturnRows(sqlmock.NewRows(progressTestColumns).AddRow(1, 7, 1, 0, "not_started", startedAt, nil, startedAt))
			},
		},
		{
			name: "insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO course_progress`).
					WithArgs(7, 1, models.ProgressStatusNotStarted).
					WillReturnError(&mysql.MySQLError{Number: mysqlErrDeadlock})
			},
			expectedError: models.ErrConcurrencyConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()
			tt.setupMock(mock)

			record, err := NewProgressRepository(db).GetOrCreate(context.Background(), 7, 1)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, record)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 1, record.ID)
				assert.Equal(t, models.ProgressStatusNotStarted, record.Status)
				assert.Equal(t, startedAt, record.StartedAt)
				assert.Nil(t, record.CompletedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProgressRepository_GetForUpdate(t *testing.T) {
	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "completed record",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM course_progress WHERE student_id = \? AND course_id = \? LIMIT 1 FOR UPDATE`).
					WithArgs(7, 1).
					WillReturnRows(sqlmock.NewRows(progressTestColumns).AddRow(1, 7, 1, 100, "completed", now, now, now))
			},
		},
		{
			name: "missing record",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FOR UPDATE`).
					WithArgs(7, 1).
					WillReturnError(sql.ErrNoRows)
			},
			expectedError: models.ErrNotFound,
		},
		{
			name: "lock wait timeout",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FOR UPDATE`).
					WithArgs(7, 1).
					WillReturnError(&mysql.MySQLError{Number: mysqlErrLockWaitTimeout})
			},
			expectedError: models.ErrConcurrencyConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()
			tt.setupMock(mock)

			record, err := NewProgressRepository(db).GetForUpdate(context.Background(), 7, 1)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, record)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 100, record.Percentage)
				require.NotNil(t, record.CompletedAt)
				assert.Equal(t, now, *record.CompletedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProgressRepository_Update(t *testing.T) {
	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	record := &models.ProgressRecord{
		ID:          1,
		StudentID:   7,
		CourseID:    1,
		Percentage:  100,
		Status:      models.ProgressStatusCompleted,
		CompletedAt: &now,
		UpdatedAt:   now,
	}

	tests := []struct {
		name          string
		setupMock     func(sqlmock.Sqlmock)
		expectedError error
	}{
		{
			name: "success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE course_progress SET percentage = \?, status = \?, completed_at = \?, updated_at = \? WHERE id = \?`).
					WithArgs(100, models.ProgressStatusCompleted, now, now, 1).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "unchanged values",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE course_progress`).
					WithArgs(100, models.ProgressStatusCompleted, now, now, 1).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`FROM course_progress WHERE student_id = \? AND course_id = \?`).
					WithArgs(7, 1).
					WillReturnRows(sqlmock.NewRows(progressTestColumns).AddRow(1, 7, 1, 100, "completed", now, now, now))
			},
		},
		{
			name: "record deleted",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE course_progress`).
					WithArgs(100, models.ProgressStatusCompleted, now, now, 1).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`FROM course_progress WHERE student_id = \? AND course_id = \?`).
					WithArgs(7, 1).
					WillReturnError(sql.ErrNoRows)
			},
			expectedError: models.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE course_progress`).
					WithArgs(100, models.ProgressStatusCompleted, now, now, 1).
					WillReturnError(errors.New("database error"))
			},
			expectedError: models.ErrStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()
			tt.setupMock(mock)

			err := NewProgressRepository(db).Update(context.Background(), record)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProgressRepository_ListByStudent(t *testing.T) {
	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	rows := sqlmock.NewRows(progressTestColumns).
		AddRow(1, 7, 1, 50, "in_progress", now, nil, now).
		AddRow(2, 7, 2, 100, "completed", now, now, now)
	mock.ExpectQuery(`FROM course_progress WHERE student_id = \? ORDER BY course_id`).
		WithArgs(7).
		WillReturnRows(rows)

	records, err := NewProgressRepository(db).ListByStudent(context.Background(), 7)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.ProgressStatusInProgress, records[0].Status)
	assert.Nil(t, records[0].CompletedAt)
	assert.NotNil(t, records[1].CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressRepository_ListUnsettled(t *testing.T) {
	tests := []struct {
		name           string
		setupMock      func(sqlmock.Sqlmock)
		expectedKeys   []models.ProgressKey
		expectedLastID int
		expectedError  bool
	}{
		{
			name: "page of keys",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "student_id", "course_id"}).
					AddRow(11, 7, 1).
					AddRow(15, 8, 1)
				mock.ExpectQuery(`FROM course_progress cp LEFT JOIN certificates c ON c.student_id = cp.student_id AND c.course_id = cp.course_id WHERE cp.id > \? AND \(cp.status <> \? OR c.id IS NULL\) ORDER BY cp.id LIMIT \?`).
					WithArgs(10, models.ProgressStatusCompleted, 2).
					WillReturnRows(rows)
			},
			expectedKeys:   []models.ProgressKey{{StudentID: 7, CourseID: 1}, {StudentID: 8, CourseID: 1}},
			expectedLastID: 15,
		},
		{
			name: "no more keys",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM course_progress cp`).
					WithArgs(10, models.ProgressStatusCompleted, 2).
					WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id"}))
			},
			expectedKeys:   []models.ProgressKey{},
			expectedLastID: 10,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM course_progress cp`).
					WithArgs(10, models.ProgressStatusCompleted, 2).
					WillReturnError(errors.New("database error"))
			},
			expectedLastID: 10,
			expectedError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()
			tt.setupMock(mock)

			keys, lastID, err := NewProgressRepository(db).ListUnsettled(context.Background(), 10, 2)

			if tt.expectedError {
				assert.ErrorIs(t, err, models.ErrStorageFailure)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedKeys, keys)
			}
			assert.Equal(t, tt.expectedLastID, lastID)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
