package app

import (
	"database/sql"

	"leavedesk/internal/balance"
	"leavedesk/internal/employee"
	"leavedesk/internal/leave"
	"leavedesk/internal/messaging/kafka"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
) error {
	// --- Repositories ---
	leaveRepo := leave.NewRepository(gormDB)
	balanceRepo := balance.NewRepository(gormDB)
	employeeRepo := employee.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- Services ---
	ledger := balance.NewLedger(balanceRepo)
	leaveService := leave.NewService(db, leaveRepo, ledger, employeeRepo, outboxRepo, rdb)

	// --- Handlers ---
	leaveHandler := leave.NewHandler(leaveService)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		leave.RegisterRoutes(api, leaveHandler, rdb)
	}

	return nil
}
