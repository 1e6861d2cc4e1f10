package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/repository"
	"github.com/qs3c/reply_go_server/internal/testutil"
)

func setupUsageService(t *testing.T) (*UsageService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	usageRepo := repository.NewUsageRepository(db)
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewPlanEventRepository(db)

	cfg := &config.Config{
		Plans: config.PlansConfig{
			Levels: map[string]config.PlanLevel{
				"free":    {MonthlyReplyLimit: 30, DailyPostCap: 10},
				"creator": {MonthlyReplyLimit: 500, DailyPostCap: 25},
				"studio":  {MonthlyReplyLimit: 0, DailyPostCap: 0},
			},
		},
	}

	service := NewUsageService(usageRepo, userRepo, eventRepo, NewPlanCatalog(cfg))

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, db, cleanup
}

func TestUsageService_GetUsage(t *testing.T) {
	service, db, cleanup := setupUsageService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan("creator"))
	testutil.TestCounter(t, db, user.ID,
		testutil.WithCounterPlan("creator"),
		testutil.WithMonthlyUsed(42),
		testutil.WithDailyUsed(7),
		testutil.WithQueuedCount(3),
	)

	info, err := service.GetUsage(user.ID)
	require.NoError(t, err)

	assert.Equal(t, "creator", info.PlanID)
	assert.Equal(t, 42, info.Monthly.Used)
	assert.Equal(t, 500, info.Monthly.Limit)
	assert.False(t, info.Monthly.Unlimited)
	assert.Equal(t, 7, info.Daily.Used)
	assert.Equal(t, 25, info.Daily.Limit)
	assert.Equal(t, 3, info.QueuedCount)

	resetAt, err := time.Parse(time.RFC3339, info.Daily.ResetAt)
	require.NoError(t, err)
	assert.True(t, resetAt.After(time.Now().UTC()))
}

func TestUsageService_GetUsage_FirstCall(t *testing.T) {
	service, db, cleanup := setupUsageService(t)
	defer cleanup()

	// 没有计数器行也能查询，首次访问建行
	user := testutil.TestUser(t, db)

	info, err := service.GetUsage(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Monthly.Used)
	assert.Equal(t, 0, info.Daily.Used)
	assert.Equal(t, 0, info.QueuedCount)
}

func TestUsageService_GetUsage_RollsStaleCounter(t *testing.T) {
	service, db, cleanup := setupUsageService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	now := time.Now().UTC()
	testutil.TestCounter(t, db, user.ID,
		testutil.WithMonthlyUsed(30),
		testutil.WithDailyUsed(10),
		testutil.WithMonthStart(StartOfMonth(now).AddDate(0, -1, 0)),
		testutil.WithDayStart(StartOfDay(now).AddDate(0, 0, -3)),
	)

	info, err := service.GetUsage(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Monthly.Used)
	assert.Equal(t, 0, info.Daily.Used)
}

func TestUsageService_GetUsage_SameDayKeepsCounts(t *testing.T) {
	service, db, cleanup := setupUsageService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestCounter(t, db, user.ID,
		testutil.WithMonthlyUsed(5),
		testutil.WithDailyUsed(2),
	)

	info, err := service.GetUsage(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, info.Monthly.Used)
	assert.Equal(t, 2, info.Daily.Used)
}

func TestUsageService_GetUsage_UserMissing(t *testing.T) {
	service, _, cleanup := setupUsageService(t)
	defer cleanup()

	_, err := service.GetUsage(99999)
	assert.Error(t, err)
}

func TestUsageService_RollForwardAll(t *testing.T) {
	service, db, cleanup := setupUsageService(t)
	defer cleanup()

	now := time.Now().UTC()
	staleMonth := StartOfMonth(now).AddDate(0, -1, 0)
	staleDay := StartOfDay(now).AddDate(0, 0, -1)

	u1 := testutil.TestUser(t, db)
	testutil.TestCounter(t, db, u1.ID,
		testutil.WithMonthlyUsed(30),
		testutil.WithDailyUsed(10),
		testutil.WithMonthStart(staleMonth),
		testutil.WithDayStart(staleDay),
	)
	u2 := testutil.TestUser(t, db)
	testutil.TestCounter(t, db, u2.ID,
		testutil.WithDailyUsed(4),
		testutil.WithDayStart(staleDay),
	)
	u3 := testutil.TestUser(t, db)
	testutil.TestCounter(t, db, u3.ID, testutil.WithMonthlyUsed(8))

	monthRows, dayRows, err := service.RollForwardAll()
	require.NoError(t, err)
	assert.Equal(t, int64(1), monthRows)
	assert.Equal(t, int64(2), dayRows)

	// 再跑一遍不应再命中任何行
	monthRows, dayRows, err = service.RollForwardAll()
	require.NoError(t, err)
	assert.Equal(t, int64(0), monthRows)
	assert.Equal(t, int64(0), dayRows)

	usageRepo := repository.NewUsageRepository(db)
	c1, err := usageRepo.GetByUserID(u1.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, c1.MonthlyReplyCount)
	assert.Equal(t, 0, c1.DailyPostCount)

	c3, err := usageRepo.GetByUserID(u3.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, c3.MonthlyReplyCount)
}

func TestUsageService_ApplyPlanChange(t *testing.T) {
	service, db, cleanup := setupUsageService(t)
	defer cleanup()

	userRepo := repository.NewUserRepository(db)

	t.Run("upgrade applies", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		testutil.TestCounter(t, db, user.ID, testutil.WithMonthlyUsed(12))

		err := service.ApplyPlanChange("evt-1", user.ID, "creator", time.Now().UTC())
		require.NoError(t, err)

		updated, err := userRepo.GetByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "creator", updated.PlanID)

		// 中途换档不清计数，只换限额
		counter, err := repository.NewUsageRepository(db).GetByUserID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "creator", counter.PlanID)
		assert.Equal(t, 12, counter.MonthlyReplyCount)
	})

	t.Run("duplicate event is a no-op", func(t *testing.T) {
		user := testutil.TestUser(t, db)

		at := time.Now().UTC()
		require.NoError(t, service.ApplyPlanChange("evt-dup", user.ID, "creator", at))
		require.NoError(t, service.ApplyPlanChange("evt-dup", user.ID, "studio", at.Add(time.Hour)))

		updated, err := userRepo.GetByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "creator", updated.PlanID)
	})

	t.Run("stale event ignored", func(t *testing.T) {
		user := testutil.TestUser(t, db)

		now := time.Now().UTC()
		require.NoError(t, service.ApplyPlanChange("evt-new", user.ID, "studio", now))
		require.NoError(t, service.ApplyPlanChange("evt-old", user.ID, "free", now.Add(-time.Hour)))

		updated, err := userRepo.GetByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "studio", updated.PlanID)
	})

	t.Run("unknown plan rejected", func(t *testing.T) {
		user := testutil.TestUser(t, db)

		err := service.ApplyPlanChange("evt-bad", user.ID, "enterprise", time.Now().UTC())
		assert.ErrorIs(t, err, ErrUnknownPlan)
	})

	t.Run("unknown user rejected", func(t *testing.T) {
		err := service.ApplyPlanChange("evt-ghost", 99999, "creator", time.Now().UTC())
		assert.Error(t, err)
	})
}

func TestUsageService_ApplyPlanChange_OutOfOrderBatch(t *testing.T) {
	service, db, cleanup := setupUsageService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	base := time.Now().UTC().Add(-time.Hour)

	// 乱序投递同一批事件，最终档位由 effective_at 最大的事件决定
	order := []int{2, 0, 3, 1}
	plans := []string{"free", "creator", "creator", "studio"}
	for _, i := range order {
		eventID := fmt.Sprintf("batch-%d", i)
		require.NoError(t, service.ApplyPlanChange(eventID, user.ID, plans[i], base.Add(time.Duration(i)*time.Minute)))
	}

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "studio", updated.PlanID)
}
