package employee

import (
	"time"

	"github.com/google/uuid"
)

// Employee is the read-side view the leave engine needs: who a request belongs
// to, who should receive notifications, and who counts as an approver.
// Employee administration itself lives outside this service.
type Employee struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FullName    string    `gorm:"type:varchar(120);not null"`
	Email       string    `gorm:"type:varchar(160);not null;uniqueIndex:uq_employee_email"`
	Role        string    `gorm:"type:varchar(20);not null;default:'employee'"`
	Designation string    `gorm:"type:varchar(80)"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Employee) TableName() string {
	return "employees"
}
