// internal/services/services_test.go
package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/config"
	"github.com/smartstudy/marketplace-backend/internal/database"
	"github.com/smartstudy/marketplace-backend/internal/models"
)

// newTestDB opens a fresh in-memory database with the full schema,
// including the partial unique index on completed purchases. A single
// connection keeps sqlite serialized under the concurrency tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.RunMigrations(db))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Payment: config.PaymentConfig{
			CommissionRate:    0.15,
			MinimumWithdrawal: 10.0,
		},
	}
}

// stubGateway stands in for the payment processor. Every Charge call is
// counted so tests can assert that rejected purchases never reach it.
type stubGateway struct {
	mu      sync.Mutex
	calls   int
	decline bool
}

func (g *stubGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.decline {
		return nil, apperrors.Payment("payment declined")
	}
	return &ChargeResult{TransactionID: "txn_" + uuid.NewString()}, nil
}

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func createTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestResource(t *testing.T, db *gorm.DB, ownerID uuid.UUID) *models.Resource {
	t.Helper()

	resource := &models.Resource{
		UserID:     ownerID,
		Title:      "Linear Algebra Notes",
		Subject:    "Mathematics",
		Category:   "notes",
		IsApproved: true,
		IsActive:   true,
	}
	require.NoError(t, db.Create(resource).Error)
	return resource
}

func createTestUnit(t *testing.T, db *gorm.DB, resourceID uuid.UUID, number int, price models.Cents) *models.ResourceUnit {
	t.Helper()

	unit := &models.ResourceUnit{
		ResourceID: resourceID,
		UnitNumber: number,
		Title:      fmt.Sprintf("Unit %d", number),
		FileKey:    fmt.Sprintf("resources/test/unit%d/file.pdf", number),
		FileName:   fmt.Sprintf("unit%d.pdf", number),
		FileType:   ".pdf",
		Price:      price,
		IsFree:     price == 0,
	}
	require.NoError(t, db.Create(unit).Error)
	return unit
}
