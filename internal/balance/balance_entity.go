package balance

import (
	"time"

	"github.com/google/uuid"
)

// LeaveBalance holds the remaining whole-day entitlement for one employee and
// one leave category. One row per (employee, category); only the lifecycle
// engine mutates it.
type LeaveBalance struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmployeeID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_balance_employee_category"`
	Category    string    `gorm:"type:varchar(30);not null;uniqueIndex:uq_balance_employee_category"`
	BalanceDays int       `gorm:"type:int;not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LeaveBalance) TableName() string {
	return "leave_balances"
}
