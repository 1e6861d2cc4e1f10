package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/reply_go_server/config"
	"github.com/qs3c/reply_go_server/internal/repository"
	"github.com/qs3c/reply_go_server/internal/testutil"
)

func setupQuotaService(t *testing.T) (*QuotaService, *gorm.DB, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	usageRepo := repository.NewUsageRepository(db)
	userRepo := repository.NewUserRepository(db)

	cfg := &config.Config{
		Plans: config.PlansConfig{
			Levels: map[string]config.PlanLevel{
				"free":    {MonthlyReplyLimit: 30, DailyPostCap: 10},
				"creator": {MonthlyReplyLimit: 500, DailyPostCap: 25},
				"studio":  {MonthlyReplyLimit: 0, DailyPostCap: 0},
			},
		},
	}

	service := NewQuotaService(usageRepo, userRepo, NewPlanCatalog(cfg))

	cleanup := func() {
		testutil.CleanupTestDB(t, db)
	}

	return service, db, cleanup
}

func TestQuotaService_TryConsume_Monthly(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	t.Run("within limit", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		testutil.TestCounter(t, db, user.ID, testutil.WithMonthlyUsed(5))

		decision, err := service.TryConsume(user.ID, DimensionMonthly, 1)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 6, decision.Used)
		assert.Equal(t, 30, decision.Limit)
		assert.False(t, decision.Unlimited)
	})

	t.Run("last unit allowed", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		testutil.TestCounter(t, db, user.ID, testutil.WithMonthlyUsed(29))

		decision, err := service.TryConsume(user.ID, DimensionMonthly, 1)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 30, decision.Used)
	})

	t.Run("denied at limit without queueing", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		testutil.TestCounter(t, db, user.ID, testutil.WithMonthlyUsed(30))

		decision, err := service.TryConsume(user.ID, DimensionMonthly, 1)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.False(t, decision.Queueable)
		assert.Equal(t, 30, decision.Used)
		assert.Equal(t, 30, decision.Limit)
	})

	t.Run("denial writes nothing", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		testutil.TestCounter(t, db, user.ID, testutil.WithMonthlyUsed(30))

		_, err := service.TryConsume(user.ID, DimensionMonthly, 1)
		require.NoError(t, err)

		counter, err := repository.NewUsageRepository(db).GetByUserID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, 30, counter.MonthlyReplyCount)
	})
}

func TestQuotaService_TryConsume_Daily(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	t.Run("allowed", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		testutil.TestCounter(t, db, user.ID, testutil.WithDailyUsed(9))

		decision, err := service.TryConsume(user.ID, DimensionDaily, 1)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 10, decision.Used)
		assert.Equal(t, 10, decision.Limit)
	})

	t.Run("denied but queueable", func(t *testing.T) {
		user := testutil.TestUser(t, db)
		testutil.TestCounter(t, db, user.ID, testutil.WithDailyUsed(10))

		decision, err := service.TryConsume(user.ID, DimensionDaily, 1)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.True(t, decision.Queueable)
	})

	t.Run("cap boundary", func(t *testing.T) {
		user := testutil.TestUser(t, db, testutil.WithPlan("creator"))
		testutil.TestCounter(t, db, user.ID,
			testutil.WithCounterPlan("creator"),
			testutil.WithDailyUsed(24),
		)

		first, err := service.TryConsume(user.ID, DimensionDaily, 1)
		require.NoError(t, err)
		assert.True(t, first.Allowed)
		assert.Equal(t, 25, first.Used)

		second, err := service.TryConsume(user.ID, DimensionDaily, 1)
		require.NoError(t, err)
		assert.False(t, second.Allowed)
		assert.True(t, second.Queueable)
	})
}

func TestQuotaService_TryConsume_Unlimited(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db, testutil.WithPlan("studio"))
	testutil.TestCounter(t, db, user.ID,
		testutil.WithCounterPlan("studio"),
		testutil.WithMonthlyUsed(100000),
	)

	// 不限量的档位永远放行，但计数仍然累加以便展示用量
	decision, err := service.TryConsume(user.ID, DimensionMonthly, 1)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Unlimited)
	assert.Equal(t, 100001, decision.Used)

	daily, err := service.TryConsume(user.ID, DimensionDaily, 1)
	require.NoError(t, err)
	assert.True(t, daily.Allowed)
	assert.True(t, daily.Unlimited)
}

func TestQuotaService_TryConsume_CreatesCounter(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	decision, err := service.TryConsume(user.ID, DimensionMonthly, 1)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Used)

	counter, err := repository.NewUsageRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.MonthlyReplyCount)
	assert.Equal(t, 0, counter.DailyPostCount)
}

func TestQuotaService_TryConsume_RollsStalePeriods(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	lastMonth := StartOfMonth(time.Now().UTC()).AddDate(0, -1, 0)
	testutil.TestCounter(t, db, user.ID,
		testutil.WithMonthlyUsed(30),
		testutil.WithDailyUsed(10),
		testutil.WithMonthStart(lastMonth),
		testutil.WithDayStart(lastMonth),
	)

	// 上个周期已打满，滚动后应当重新有额度
	decision, err := service.TryConsume(user.ID, DimensionMonthly, 1)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Used)

	counter, err := repository.NewUsageRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counter.DailyPostCount)
	assert.True(t, counter.MonthStart.UTC().Equal(StartOfMonth(time.Now().UTC())))
}

func TestQuotaService_TryConsume_ResetAt(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestCounter(t, db, user.ID)

	now := time.Now().UTC()

	monthly, err := service.TryConsume(user.ID, DimensionMonthly, 1)
	require.NoError(t, err)
	assert.Equal(t, NextMonthStart(now), monthly.ResetAt)

	daily, err := service.TryConsume(user.ID, DimensionDaily, 1)
	require.NoError(t, err)
	assert.Equal(t, NextDayStart(now), daily.ResetAt)
}

func TestQuotaService_TryConsume_UnknownDimension(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)

	_, err := service.TryConsume(user.ID, "weekly_posts", 1)
	assert.ErrorIs(t, err, ErrUnknownDimension)
}

func TestQuotaService_TryConsume_UserMissing(t *testing.T) {
	service, _, cleanup := setupQuotaService(t)
	defer cleanup()

	_, err := service.TryConsume(99999, DimensionMonthly, 1)
	assert.Error(t, err)
}

func TestQuotaService_TryConsume_Concurrent(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestCounter(t, db, user.ID)

	var wg sync.WaitGroup
	allowed := make(chan bool, 40)

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := service.TryConsume(user.ID, DimensionMonthly, 1)
			if err != nil {
				return
			}
			allowed <- decision.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	granted := 0
	for ok := range allowed {
		if ok {
			granted++
		}
	}
	assert.Equal(t, 30, granted)

	counter, err := repository.NewUsageRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, counter.MonthlyReplyCount)
}

func TestQuotaService_Refunds(t *testing.T) {
	service, db, cleanup := setupQuotaService(t)
	defer cleanup()

	user := testutil.TestUser(t, db)
	testutil.TestCounter(t, db, user.ID,
		testutil.WithMonthlyUsed(3),
		testutil.WithDailyUsed(2),
	)

	require.NoError(t, service.RefundMonthly(user.ID, 1))
	require.NoError(t, service.RefundDaily(user.ID, 1))

	counter, err := repository.NewUsageRepository(db).GetByUserID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counter.MonthlyReplyCount)
	assert.Equal(t, 1, counter.DailyPostCount)
}
