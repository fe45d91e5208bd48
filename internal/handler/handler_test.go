package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frombarmars/flickshare-sub000/internal/config"
	"github.com/frombarmars/flickshare-sub000/internal/models"
	"github.com/frombarmars/flickshare-sub000/internal/repository"
	"github.com/frombarmars/flickshare-sub000/internal/service"
)

var handlerDBSeq int64

func newRewardsHandler(t *testing.T) (*RewardsHandler, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_test_%d?mode=memory&cache=shared", atomic.AddInt64(&handlerDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.PointTransaction{}, &models.CheckIn{}))

	ledger := service.NewLedger(repository.NewPointsRepository(db), &config.PointsConfig{
		Checkin: 5,
		Follow:  20,
	})
	return NewRewardsHandler(ledger), db
}

func TestCheckinEndpoint(t *testing.T) {
	h, db := newRewardsHandler(t)

	user := &models.User{WalletAddress: "0xabc", Username: "abc"}
	require.NoError(t, db.Create(user).Error)

	body := fmt.Sprintf(`{"userId":%d}`, user.ID)

	rec := httptest.NewRecorder()
	h.Checkin(rec, httptest.NewRequest(http.MethodPost, "/api/checkin", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":true`)

	// retry the same day: friendly rejection, still a 200
	rec = httptest.NewRecorder()
	h.Checkin(rec, httptest.NewRequest(http.MethodPost, "/api/checkin", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":false`)
	require.Contains(t, rec.Body.String(), "Already checked in today")
}

func TestCheckinEndpointRejectsBadBody(t *testing.T) {
	h, _ := newRewardsHandler(t)

	rec := httptest.NewRecorder()
	h.Checkin(rec, httptest.NewRequest(http.MethodPost, "/api/checkin", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFollowClaimOnceOnly(t *testing.T) {
	h, db := newRewardsHandler(t)

	user := &models.User{WalletAddress: "0xdef", Username: "def"}
	require.NoError(t, db.Create(user).Error)

	body := func() *strings.Reader {
		return strings.NewReader(fmt.Sprintf(`{"userId":%d,"platform":"x"}`, user.ID))
	}

	rec := httptest.NewRecorder()
	h.FollowClaim(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/follow", body()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":true`)

	rec = httptest.NewRecorder()
	h.FollowClaim(rec, httptest.NewRequest(http.MethodPost, "/api/tasks/follow", body()))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok":false`)

	var user2 models.User
	require.NoError(t, db.First(&user2, user.ID).Error)
	require.EqualValues(t, 20, user2.TotalPoints)
}
