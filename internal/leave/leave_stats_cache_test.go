package leave_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"leavedesk/internal/leave"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type cachedStatsDeps struct {
	db        *sql.DB
	service   leave.Service
	repo      *fakeLeaveRepository
	ledger    *fakeLedger
	redismock redismock.ClientMock
}

func setupCachedStatsTest(t *testing.T) *cachedStatsDeps {
	t.Helper()

	db, _, err := sqlmock.New()
	assert.NoError(t, err)

	dbRedis, redisMock := redismock.NewClientMock()
	repo := &fakeLeaveRepository{}
	ledger := &fakeLedger{}
	svc := leave.NewService(db, repo, ledger, &fakeEmployeeRepository{}, &fakeOutboxRepository{}, dbRedis)

	return &cachedStatsDeps{
		db:        db,
		service:   svc,
		repo:      repo,
		ledger:    ledger,
		redismock: redisMock,
	}
}

func TestLeaveService_StatsCache(t *testing.T) {
	ctx := context.Background()
	employeeID := uuid.New().String()
	key := leave.StatsCacheKey(employeeID, 2026)

	t.Run("miss populates cache", func(t *testing.T) {
		deps := setupCachedStatsTest(t)
		defer deps.db.Close()

		stats := []leave.CategoryStats{{Category: leave.CategoryPaid, Total: 4, Approved: 4}}
		balances := map[string]int{leave.CategoryPaid: 8}

		deps.repo.aggregateStatsFn = func(ctx context.Context, eid string, year int) ([]leave.CategoryStats, error) {
			return stats, nil
		}
		deps.ledger.snapshotFn = func(ctx context.Context, eid string) (map[string]int, error) {
			return balances, nil
		}

		expected, err := json.Marshal(leave.LeaveStatsResponse{
			EmployeeID: employeeID,
			Year:       2026,
			Stats:      stats,
			Balance:    balances,
		})
		assert.NoError(t, err)

		deps.redismock.ExpectGet(key).RedisNil()
		deps.redismock.ExpectSet(key, expected, 5*time.Minute).SetVal("OK")

		resp, err := deps.service.Stats(ctx, employeeID, 2026)

		assert.NoError(t, err)
		assert.Equal(t, 8, resp.Balance[leave.CategoryPaid])
		assert.NoError(t, deps.redismock.ExpectationsWereMet())
	})

	t.Run("hit skips repository", func(t *testing.T) {
		deps := setupCachedStatsTest(t)
		defer deps.db.Close()

		cached, err := json.Marshal(leave.LeaveStatsResponse{
			EmployeeID: employeeID,
			Year:       2026,
			Balance:    map[string]int{leave.CategorySick: 12},
		})
		assert.NoError(t, err)

		deps.repo.aggregateStatsFn = func(ctx context.Context, eid string, year int) ([]leave.CategoryStats, error) {
			t.Fatal("aggregate must not run on cache hit")
			return nil, nil
		}
		deps.redismock.ExpectGet(key).SetVal(string(cached))

		resp, err := deps.service.Stats(ctx, employeeID, 2026)

		assert.NoError(t, err)
		assert.Equal(t, 12, resp.Balance[leave.CategorySick])
		assert.NoError(t, deps.redismock.ExpectationsWereMet())
	})
}
