package leave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leavedesk/internal/balance"
	"leavedesk/internal/employee"
	"leavedesk/internal/events"
	"leavedesk/internal/identity"
	leaveerrors "leavedesk/internal/leave/errors"
	"leavedesk/internal/messaging/kafka"
	"leavedesk/internal/shared/apperror"
	"leavedesk/internal/shared/contextutil"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const statsCacheTTL = 5 * time.Minute

func StatsCacheKey(employeeID string, year int) string {
	return fmt.Sprintf("leave:stats:%s:%d", employeeID, year)
}

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Apply(ctx context.Context, actor identity.Actor, req ApplyLeaveRequest) (LeaveResponse, error)
	Decide(ctx context.Context, actor identity.Actor, id string, req DecideLeaveRequest) (LeaveResponse, error)
	Cancel(ctx context.Context, actor identity.Actor, id string, req CancelLeaveRequest) (LeaveResponse, error)
	List(ctx context.Context, actor identity.Actor, q ListLeavesQuery) ([]LeaveResponse, error)
	ListPending(ctx context.Context) ([]LeaveResponse, error)
	Stats(ctx context.Context, employeeID string, year int) (LeaveStatsResponse, error)
}

type service struct {
	db        *sql.DB
	repo      Repository
	ledger    balance.Ledger
	employees employee.Repository
	outbox    kafka.OutboxRepository
	rdb       *redis.Client
	sf        *singleflight.Group
	logger    *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	ledger balance.Ledger,
	employees employee.Repository,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	return &service{
		db:        db,
		repo:      repo,
		ledger:    ledger,
		employees: employees,
		outbox:    outboxRepo,
		rdb:       rdb,
		sf:        &singleflight.Group{},
		logger:    l,
	}
}

func (s *service) Apply(ctx context.Context, actor identity.Actor, req ApplyLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("apply leave requested",
		zap.String("request_id", rid),
		zap.String("employee_id", actor.EmployeeID),
		zap.String("category", req.Category),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	employeeUUID, err := uuid.Parse(actor.EmployeeID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidEmployeeID
	}

	startDate, endDate, err := validateApplyRequest(req)
	if err != nil {
		s.logger.Warn("apply leave validation failed",
			zap.String("employee_id", actor.EmployeeID),
			zap.Error(err),
		)
		return LeaveResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("apply leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	qledger := s.ledger.WithTx(tx)

	// Serializes concurrent applies (and cancels) for this employee so the
	// overlap check and the insert behave as one atomic step.
	if err := qtx.LockEmployee(ctx, actor.EmployeeID); err != nil {
		s.logger.Error("apply leave employee lock failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	overlap, err := qtx.HasOverlappingPeriod(ctx, actor.EmployeeID, startDate, endDate, nil)
	if err != nil {
		s.logger.Error("apply leave overlap check failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if overlap {
		s.logger.Warn("apply leave overlap detected",
			zap.String("employee_id", actor.EmployeeID),
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
		)
		return LeaveResponse{}, leaveerrors.ErrLeaveOverlap
	}

	bal, err := qledger.Balance(ctx, actor.EmployeeID, req.Category)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrBalanceNotFound
		}
		s.logger.Error("apply leave balance read failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	// Admission only requires a positive balance, not balance >= requested
	// days. Approval is where the actual debit happens.
	if bal <= 0 {
		return LeaveResponse{}, leaveerrors.ErrInsufficientBalance
	}

	l := &Leave{
		ID:                 uuid.New(),
		EmployeeID:         employeeUUID,
		Category:           req.Category,
		StartDate:          startDate,
		EndDate:            endDate,
		NumberOfDays:       DaysInclusive(startDate, endDate),
		Reason:             strings.TrimSpace(req.Reason),
		PhoneDuringLeave:   strings.TrimSpace(req.PhoneDuringLeave),
		BackupName:         strings.TrimSpace(req.BackupPerson.Name),
		BackupContact:      strings.TrimSpace(req.BackupPerson.Contact),
		Attachments:        mapAttachments(req.Attachments),
		PolicyAcknowledged: req.PolicyAcknowledged,
		Status:             StatusPending,
	}

	if err := qtx.Create(ctx, l); err != nil {
		s.logger.Error("apply leave persist failed", zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	recipient := ""
	if approver, err := s.employees.FindApprover(ctx); err == nil {
		recipient = approver.Email
	} else {
		s.logger.Warn("apply leave approver lookup failed", zap.Error(err))
	}
	if err := s.enqueueNotification(ctx, tx, events.LeaveNotificationEvent{
		EventType:      events.KindApplicationSubmitted,
		RequestID:      rid,
		LeaveID:        l.ID.String(),
		EmployeeID:     actor.EmployeeID,
		EmployeeName:   actor.Name,
		RecipientEmail: recipient,
		Category:       l.Category,
		NumberOfDays:   l.NumberOfDays,
		StartDate:      l.StartDate.Format("2006-01-02"),
		OccurredAt:     time.Now().UTC(),
	}); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("apply leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	s.invalidateStatsCache(ctx, actor.EmployeeID, l.StartDate.Year())
	s.logger.Info("apply leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", l.ID.String()),
		zap.String("employee_id", actor.EmployeeID),
		zap.Int("number_of_days", l.NumberOfDays),
	)

	return mapToResponse(*l), nil
}

func (s *service) Decide(ctx context.Context, actor identity.Actor, id string, req DecideLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("decide leave requested",
		zap.String("request_id", rid),
		zap.String("leave_id", id),
		zap.String("actor_id", actor.EmployeeID),
		zap.String("action", req.Action),
	)

	if !actor.CanDecide() {
		return LeaveResponse{}, apperror.ErrForbidden
	}
	actorUUID, err := uuid.Parse(actor.EmployeeID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidEmployeeID
	}
	if req.Action != StatusApproved && req.Action != StatusRejected {
		return LeaveResponse{}, apperror.ErrInvalidInput
	}
	remarks := strings.TrimSpace(req.Remarks)
	if req.Action == StatusRejected && remarks == "" {
		return LeaveResponse{}, leaveerrors.ErrRejectionReasonRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("decide leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
		}
		return LeaveResponse{}, err
	}
	if l.Status != StatusPending {
		s.logger.Warn("decide leave not pending",
			zap.String("leave_id", id),
			zap.String("status", l.Status),
		)
		return LeaveResponse{}, leaveerrors.ErrNotPending
	}

	now := time.Now().UTC()
	l.Status = req.Action
	l.ApprovedBy = &actorUUID
	l.ApproverName = strPtr(actor.Name)
	l.ApproverRole = strPtr(actor.Designation)
	l.DecidedAt = &now
	if req.Action == StatusRejected {
		l.RejectionReason = &remarks
	}

	if req.Action == StatusApproved {
		// Intentionally no balance re-check here: the apply-time check is not
		// repeated, so the debit may drive the balance negative if it changed
		// in between. The delta and the status flip still commit atomically.
		qledger := s.ledger.WithTx(tx)
		newBalance, err := qledger.Debit(ctx, l.EmployeeID.String(), l.Category, l.NumberOfDays)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return LeaveResponse{}, leaveerrors.ErrBalanceNotFound
			}
			s.logger.Error("decide leave balance debit failed", zap.Error(err))
			return LeaveResponse{}, err
		}
		if newBalance < 0 {
			s.logger.Warn("leave balance went negative on approval",
				zap.String("leave_id", id),
				zap.String("employee_id", l.EmployeeID.String()),
				zap.String("category", l.Category),
				zap.Int("balance_days", newBalance),
			)
		}
	}

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("decide leave persist failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	recipient, employeeName := s.lookupEmployeeContact(ctx, l.EmployeeID.String())
	kind := events.KindApplicationApproved
	if req.Action == StatusRejected {
		kind = events.KindApplicationRejected
	}
	ev := events.LeaveNotificationEvent{
		EventType:      kind,
		RequestID:      rid,
		LeaveID:        l.ID.String(),
		EmployeeID:     l.EmployeeID.String(),
		EmployeeName:   employeeName,
		RecipientEmail: recipient,
		Category:       l.Category,
		NumberOfDays:   l.NumberOfDays,
		StartDate:      l.StartDate.Format("2006-01-02"),
		OccurredAt:     now,
	}
	if l.RejectionReason != nil {
		ev.RejectionReason = *l.RejectionReason
	}
	if err := s.enqueueNotification(ctx, tx, ev); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("decide leave commit failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}

	s.invalidateStatsCache(ctx, l.EmployeeID.String(), l.StartDate.Year())
	s.logger.Info("decide leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", id),
		zap.String("status", l.Status),
	)

	return mapToResponse(*l), nil
}

func (s *service) Cancel(ctx context.Context, actor identity.Actor, id string, req CancelLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("cancel leave requested",
		zap.String("request_id", rid),
		zap.String("leave_id", id),
		zap.String("employee_id", actor.EmployeeID),
	)

	if _, err := uuid.Parse(actor.EmployeeID); err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidEmployeeID
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return LeaveResponse{}, leaveerrors.ErrCancellationReasonRequired
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("cancel leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	if err := qtx.LockEmployee(ctx, actor.EmployeeID); err != nil {
		s.logger.Error("cancel leave employee lock failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	// Scoping the lookup by owner doubles as the authorization check: someone
	// else's leave id is indistinguishable from a missing one.
	l, err := qtx.FindByIDAndEmployee(ctx, id, actor.EmployeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrLeaveNotFound
		}
		return LeaveResponse{}, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !l.CanBeCancelled(today) {
		s.logger.Warn("cancel leave outside cancellable window",
			zap.String("leave_id", id),
			zap.String("status", l.Status),
			zap.Time("start_date", l.StartDate),
		)
		return LeaveResponse{}, leaveerrors.ErrNotCancellable
	}

	wasApproved := l.Status == StatusApproved
	l.Status = StatusCancelled
	l.CancellationReason = &reason

	if wasApproved {
		qledger := s.ledger.WithTx(tx)
		if _, err := qledger.Credit(ctx, actor.EmployeeID, l.Category, l.NumberOfDays); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return LeaveResponse{}, leaveerrors.ErrBalanceNotFound
			}
			s.logger.Error("cancel leave balance credit failed", zap.Error(err))
			return LeaveResponse{}, err
		}
	}

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("cancel leave persist failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("cancel leave commit failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}

	s.invalidateStatsCache(ctx, actor.EmployeeID, l.StartDate.Year())
	s.logger.Info("cancel leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", id),
		zap.Bool("balance_restored", wasApproved),
	)

	return mapToResponse(*l), nil
}

func (s *service) List(ctx context.Context, actor identity.Actor, q ListLeavesQuery) ([]LeaveResponse, error) {
	filter := ListFilter{
		EmployeeID: q.EmployeeID,
		Status:     q.Status,
	}

	// Regular employees only ever see their own requests.
	if !actor.CanDecide() {
		filter.EmployeeID = actor.EmployeeID
	}

	if q.StartDate != "" {
		start, err := parseDate(q.StartDate)
		if err != nil {
			return nil, err
		}
		filter.StartDate = &start
	}
	if q.EndDate != "" {
		end, err := parseDate(q.EndDate)
		if err != nil {
			return nil, err
		}
		filter.EndDate = &end
	}

	leaves, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) ListPending(ctx context.Context) ([]LeaveResponse, error) {
	leaves, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) Stats(ctx context.Context, employeeID string, year int) (LeaveStatsResponse, error) {
	if _, err := uuid.Parse(employeeID); err != nil {
		return LeaveStatsResponse{}, leaveerrors.ErrInvalidEmployeeID
	}
	if year == 0 {
		year = time.Now().UTC().Year()
	}

	cacheKey := StatsCacheKey(employeeID, year)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var resp LeaveStatsResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return resp, nil
			}
		}
	}

	v, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		stats, err := s.repo.AggregateStats(ctx, employeeID, year)
		if err != nil {
			return nil, err
		}
		snapshot, err := s.ledger.Snapshot(ctx, employeeID)
		if err != nil {
			return nil, err
		}

		resp := LeaveStatsResponse{
			EmployeeID: employeeID,
			Year:       year,
			Stats:      stats,
			Balance:    snapshot,
		}

		if s.rdb != nil {
			if jsonData, err := json.Marshal(resp); err == nil {
				s.rdb.Set(ctx, cacheKey, jsonData, statsCacheTTL)
			}
		}

		return resp, nil
	})
	if err != nil {
		return LeaveStatsResponse{}, err
	}

	return v.(LeaveStatsResponse), nil
}

func (s *service) enqueueNotification(ctx context.Context, tx *sql.Tx, ev events.LeaveNotificationEvent) error {
	if s.outbox == nil {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal leave notification failed", zap.Error(err))
		return err
	}

	outboxRepo := s.outbox.WithTx(tx)
	if err := outboxRepo.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     ev.RequestID,
		AggregateType: "leave",
		AggregateID:   ev.LeaveID,
		EventType:     ev.EventType,
		Topic:         events.LeaveNotificationTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}); err != nil {
		s.logger.Error("leave notification outbox persist failed",
			zap.String("leave_id", ev.LeaveID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func (s *service) lookupEmployeeContact(ctx context.Context, employeeID string) (email, name string) {
	emp, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		s.logger.Warn("employee contact lookup failed",
			zap.String("employee_id", employeeID),
			zap.Error(err),
		)
		return "", ""
	}
	return emp.Email, emp.FullName
}

func (s *service) invalidateStatsCache(ctx context.Context, employeeID string, year int) {
	if s.rdb == nil {
		return
	}
	cacheKey := StatsCacheKey(employeeID, year)
	if err := s.rdb.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Error("failed to invalidate leave stats cache",
			zap.String("key", cacheKey),
			zap.Error(err),
		)
	}
}

// validateApplyRequest applies the admission rules in their documented order
// and fails on the first violation.
func validateApplyRequest(req ApplyLeaveRequest) (time.Time, time.Time, error) {
	if !ValidCategory(req.Category) {
		return time.Time{}, time.Time{}, leaveerrors.ErrInvalidCategory
	}
	if strings.TrimSpace(req.Reason) == "" {
		return time.Time{}, time.Time{}, leaveerrors.ErrReasonRequired
	}
	if strings.TrimSpace(req.PhoneDuringLeave) == "" {
		return time.Time{}, time.Time{}, leaveerrors.ErrPhoneRequired
	}
	if strings.TrimSpace(req.BackupPerson.Name) == "" || strings.TrimSpace(req.BackupPerson.Contact) == "" {
		return time.Time{}, time.Time{}, leaveerrors.ErrBackupPersonRequired
	}
	if !req.PolicyAcknowledged {
		return time.Time{}, time.Time{}, leaveerrors.ErrPolicyNotAcknowledged
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, leaveerrors.ErrInvalidDateRange
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if startDate.Before(today) {
		return time.Time{}, time.Time{}, leaveerrors.ErrStartDateInPast
	}

	return startDate, endDate, nil
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return t, nil
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func mapAttachments(in []AttachmentInput) Attachments {
	if len(in) == 0 {
		return nil
	}
	out := make(Attachments, len(in))
	now := time.Now().UTC()
	for i, a := range in {
		out[i] = Attachment{
			FileName:   a.FileName,
			FileURL:    a.FileURL,
			UploadedAt: now,
		}
	}
	return out
}

func mapToResponse(l Leave) LeaveResponse {
	resp := LeaveResponse{
		ID:               l.ID.String(),
		EmployeeID:       l.EmployeeID.String(),
		Category:         l.Category,
		StartDate:        l.StartDate.Format("2006-01-02"),
		EndDate:          l.EndDate.Format("2006-01-02"),
		NumberOfDays:     l.NumberOfDays,
		Reason:           l.Reason,
		PhoneDuringLeave: l.PhoneDuringLeave,
		BackupPerson: BackupPersonInput{
			Name:    l.BackupName,
			Contact: l.BackupContact,
		},
		PolicyAcknowledged: l.PolicyAcknowledged,
		Status:             l.Status,
		RejectionReason:    l.RejectionReason,
		CancellationReason: l.CancellationReason,
		CreatedAt:          l.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, a := range l.Attachments {
		resp.Attachments = append(resp.Attachments, AttachmentInput{
			FileName: a.FileName,
			FileURL:  a.FileURL,
		})
	}
	if l.ApprovedBy != nil {
		approver := &ApproverResponse{
			ID: l.ApprovedBy.String(),
		}
		if l.ApproverName != nil {
			approver.Name = *l.ApproverName
		}
		if l.ApproverRole != nil {
			approver.Role = *l.ApproverRole
		}
		if l.DecidedAt != nil {
			approver.DecidedAt = l.DecidedAt.UTC().Format(time.RFC3339)
		}
		resp.ApprovedBy = approver
	}
	return resp
}

func mapToListResponse(leaves []Leave) []LeaveResponse {
	resp := make([]LeaveResponse, len(leaves))
	for i, l := range leaves {
		resp[i] = mapToResponse(l)
	}
	return resp
}
