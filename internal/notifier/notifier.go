package notifier

import (
	"context"
	"fmt"

	"leavedesk/internal/events"

	"go.uber.org/zap"
)

// Notification is the delivery-agnostic message handed to a Notifier
// implementation (mail gateway, chat webhook, ...).
type Notification struct {
	Recipient string
	Kind      string
	Subject   string
	Body      string
}

//go:generate mockgen -source=notifier.go -destination=mock/notifier_mock.go -package=mock
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// FromEvent renders a lifecycle event into the message the recipient should
// receive. Wording follows the established notification templates.
func FromEvent(ev events.LeaveNotificationEvent) Notification {
	n := Notification{
		Recipient: ev.RecipientEmail,
		Kind:      ev.EventType,
	}

	switch ev.EventType {
	case events.KindApplicationSubmitted:
		n.Subject = "New Leave Application"
		n.Body = fmt.Sprintf(
			"A new leave application has been submitted by %s for %d days starting from %s. Please review it in the dashboard.",
			ev.EmployeeName, ev.NumberOfDays, ev.StartDate,
		)
	case events.KindApplicationApproved:
		n.Subject = "Leave Application Approved"
		n.Body = fmt.Sprintf(
			"Your leave application for %d days starting from %s has been approved.",
			ev.NumberOfDays, ev.StartDate,
		)
	case events.KindApplicationRejected:
		n.Subject = "Leave Application Rejected"
		n.Body = fmt.Sprintf(
			"Your leave application for %d days starting from %s has been rejected. Reason: %s",
			ev.NumberOfDays, ev.StartDate, ev.RejectionReason,
		)
	default:
		n.Subject = "Leave Application Update"
		n.Body = fmt.Sprintf("Your leave application starting from %s has been updated.", ev.StartDate)
	}

	return n
}

// LogNotifier writes notifications to the structured log. It stands in for a
// real mail transport; delivery failures here never affect business state
// because the consumer runs after the transition has committed.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger ...*zap.Logger) *LogNotifier {
	l := zap.L().Named("notifier")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notifier")
	}
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Notification) error {
	n.logger.Info("notification delivered",
		zap.String("recipient", msg.Recipient),
		zap.String("kind", msg.Kind),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
