package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	mock.ExpectPing()
	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	db, err := NewDatabaseWithDialector(dialector, &config.DatabaseConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		LogLevel:        "warn",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return db, mock
}

func TestNewDatabaseWithDialector(t *testing.T) {
	t.Run("applies pool settings", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 10, stats.MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails when ping fails", func(t *testing.T) {
		mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockDB.Close()

		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		dialector := postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"})

		_, err = NewDatabaseWithDialector(dialector, &config.DatabaseConfig{}, nil)
		assert.ErrorContains(t, err, "failed to ping database")
	})
}

func TestDatabase_Ping(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	assert.Error(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Transaction(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "order_items"`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectRollback()

	boom := errors.New("abort")
	err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM "order_items"`).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_EnableTracing(t *testing.T) {
	db, _ := newMockDatabase(t)

	assert.NoError(t, db.EnableTracing(telemetry.DBTracingConfig{}, zaptest.NewLogger(t)))
	assert.NoError(t, db.EnableTracing(telemetry.DBTracingConfig{Enabled: true, DBName: "storefront"}, zaptest.NewLogger(t)))
}

func TestGormOrderRepository_FindByID_DatabaseError(t *testing.T) {
	db, mock := newMockDatabase(t)
	repo := NewGormOrderRepository(db.DB)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE id = \$1 ORDER BY .* LIMIT .*`).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find order")
	assert.NotErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
