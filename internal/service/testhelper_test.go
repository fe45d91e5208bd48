package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frombarmars/flickshare-sub000/internal/config"
	"github.com/frombarmars/flickshare-sub000/internal/models"
)

var testDBSeq int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Movie{},
		&models.Review{},
		&models.Support{},
		&models.ReviewLike{},
		&models.PointTransaction{},
		&models.Notification{},
		&models.CheckIn{},
		&models.ListenerCheckpoint{},
	))

	return db
}

func testPointsConfig() *config.PointsConfig {
	return &config.PointsConfig{
		Checkin:              5,
		ReviewSubmit:         10,
		SupportRate:          20,
		UniqueSupporterBonus: 50,
		Follow:               20,
		Invite:               30,
		Invited:              15,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, wallet string) *models.User {
	t.Helper()

	user := &models.User{
		WalletAddress: wallet,
		Username:      "tester_" + wallet[len(wallet)-4:],
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
