package leave

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

// Leave categories, each backed by its own balance counter.
const (
	CategorySick      = "SICK"
	CategoryCasual    = "CASUAL"
	CategoryPaid      = "PAID"
	CategoryEmergency = "EMERGENCY"
)

// Attachment is a reference to an uploaded supporting document. Upload
// plumbing lives elsewhere; the engine only stores the references.
type Attachment struct {
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Attachments is stored as a single jsonb column, preserving order.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *Attachments) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported attachments column type %T", value)
	}
}

type Leave struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_employee_dates;index:idx_leaves_employee_status"`

	Category     string    `gorm:"type:varchar(30);not null"`
	StartDate    time.Time `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	EndDate      time.Time `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	NumberOfDays int       `gorm:"type:int;not null;default:1"`
	Reason       string    `gorm:"type:text;not null"`

	PhoneDuringLeave   string      `gorm:"type:varchar(30);not null"`
	BackupName         string      `gorm:"type:varchar(120);not null"`
	BackupContact      string      `gorm:"type:varchar(120);not null"`
	Attachments        Attachments `gorm:"type:jsonb"`
	PolicyAcknowledged bool        `gorm:"not null;default:false"`

	Status       string     `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_leaves_employee_status"`
	ApprovedBy   *uuid.UUID `gorm:"type:uuid"`
	ApproverName *string    `gorm:"type:varchar(120)"`
	ApproverRole *string    `gorm:"type:varchar(80)"`
	DecidedAt    *time.Time
	RejectionReason    *string `gorm:"type:text"`
	CancellationReason *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Leave) TableName() string {
	return "leaves"
}

// BeforeSave recomputes the day count from the period on every write, so a
// stored NumberOfDays can never drift from its dates.
func (l *Leave) BeforeSave(tx *gorm.DB) error {
	if l.EndDate.Before(l.StartDate) {
		return errors.New("leave end_date precedes start_date")
	}
	l.NumberOfDays = DaysInclusive(l.StartDate, l.EndDate)
	return nil
}

// DaysInclusive counts whole days in [start, end], both ends included. A
// one-day leave (start == end) is 1.
func DaysInclusive(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}

// IsTerminal reports whether the status can never change again. Approved is
// not terminal: it can still be cancelled before the leave starts.
func (l *Leave) IsTerminal() bool {
	return l.Status == StatusRejected || l.Status == StatusCancelled
}

// CanBeCancelled: a pending request is always cancellable; an approved one
// only strictly before its start date.
func (l *Leave) CanBeCancelled(today time.Time) bool {
	if l.Status == StatusPending {
		return true
	}
	return l.Status == StatusApproved && today.Before(l.StartDate)
}

func ValidCategory(category string) bool {
	switch category {
	case CategorySick, CategoryCasual, CategoryPaid, CategoryEmergency:
		return true
	}
	return false
}
