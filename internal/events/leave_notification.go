package events

import "time"

const LeaveNotificationTopic = "hr.leave.notification.v1"

// Notification kinds emitted by the leave lifecycle engine.
const (
	KindApplicationSubmitted = "APPLICATION_SUBMITTED"
	KindApplicationApproved  = "APPLICATION_APPROVED"
	KindApplicationRejected  = "APPLICATION_REJECTED"
)

type LeaveNotificationEvent struct {
	EventType       string    `json:"event_type"`
	RequestID       string    `json:"request_id,omitempty"`
	LeaveID         string    `json:"leave_id"`
	EmployeeID      string    `json:"employee_id"`
	EmployeeName    string    `json:"employee_name"`
	RecipientEmail  string    `json:"recipient_email"`
	Category        string    `json:"category"`
	NumberOfDays    int       `json:"number_of_days"`
	StartDate       string    `json:"start_date"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
