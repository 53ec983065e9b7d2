package app

import (
	"log"
	"os"

	"leavedesk/internal/balance"
	"leavedesk/internal/employee"
	"leavedesk/internal/leave"
	"leavedesk/internal/middleware"
	"leavedesk/internal/shared/connection"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const outboxDDL = `
CREATE TABLE IF NOT EXISTS outbox_events (
	id UUID PRIMARY KEY,
	request_id VARCHAR(64),
	aggregate_type VARCHAR(50) NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type VARCHAR(80) NOT NULL,
	topic VARCHAR(120) NOT NULL,
	payload JSONB NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	retry_count INT NOT NULL DEFAULT 0,
	error_message VARCHAR(500),
	next_retry_at TIMESTAMPTZ,
	processed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_outbox_events_status_created
	ON outbox_events (status, created_at);
`

func BuildApp(router *gin.Engine) error {
	// 1. Setup Infrastructure
	gormDB, err := connection.ConnectGORMWithRetry(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		5,
	)
	if err != nil {
		return err
	}
	log.Println("✅ Database connection established")

	if err := migrate(gormDB); err != nil {
		return err
	}

	redisClient, err := connection.ConnectRedisWithRetry(os.Getenv("REDIS_ADDR"), 5)
	if err != nil {
		return err
	}
	log.Println("✅ Redis connection established")

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}

	router.Use(middleware.RequestID())

	// Register Modules & Routes
	return registerModules(router, sqlDB, gormDB, redisClient)
}

func migrate(gormDB *gorm.DB) error {
	if err := gormDB.AutoMigrate(
		&employee.Employee{},
		&balance.LeaveBalance{},
		&leave.Leave{},
	); err != nil {
		return err
	}
	return gormDB.Exec(outboxDDL).Error
}
