package leave

type BackupPersonInput struct {
	Name    string `json:"name" binding:"required"`
	Contact string `json:"contact" binding:"required"`
}

type AttachmentInput struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

type ApplyLeaveRequest struct {
	Category           string            `json:"category" binding:"required,oneof=SICK CASUAL PAID EMERGENCY"`
	StartDate          string            `json:"start_date" binding:"required"`
	EndDate            string            `json:"end_date" binding:"required"`
	Reason             string            `json:"reason" binding:"required"`
	PhoneDuringLeave   string            `json:"phone_during_leave" binding:"required"`
	BackupPerson       BackupPersonInput `json:"backup_person" binding:"required"`
	PolicyAcknowledged bool              `json:"policy_acknowledged"`
	Attachments        []AttachmentInput `json:"attachments"`
}

type DecideLeaveRequest struct {
	Action  string `json:"action" binding:"required,oneof=APPROVED REJECTED"`
	Remarks string `json:"remarks"`
}

type CancelLeaveRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ListLeavesQuery struct {
	Status     string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED CANCELLED"`
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
}

type ApproverResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	DecidedAt string `json:"decided_at"`
}

type LeaveResponse struct {
	ID                 string            `json:"id"`
	EmployeeID         string            `json:"employee_id"`
	Category           string            `json:"category"`
	StartDate          string            `json:"start_date"`
	EndDate            string            `json:"end_date"`
	NumberOfDays       int               `json:"number_of_days"`
	Reason             string            `json:"reason"`
	PhoneDuringLeave   string            `json:"phone_during_leave"`
	BackupPerson       BackupPersonInput `json:"backup_person"`
	Attachments        []AttachmentInput `json:"attachments,omitempty"`
	PolicyAcknowledged bool              `json:"policy_acknowledged"`
	Status             string            `json:"status"`
	ApprovedBy         *ApproverResponse `json:"approved_by,omitempty"`
	RejectionReason    *string           `json:"rejection_reason,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	CreatedAt          string            `json:"created_at"`
}

// CategoryStats is one row of the yearly aggregation: day counts per category
// broken down by request status.
type CategoryStats struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Approved int    `json:"approved"`
	Pending  int    `json:"pending"`
	Rejected int    `json:"rejected"`
}

type LeaveStatsResponse struct {
	EmployeeID string          `json:"employee_id"`
	Year       int             `json:"year"`
	Stats      []CategoryStats `json:"stats"`
	Balance    map[string]int  `json:"balance"`
}
