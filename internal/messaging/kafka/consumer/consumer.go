package consumer

import (
	"context"
	"encoding/json"

	"leavedesk/internal/events"
	"leavedesk/internal/notifier"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConsumeLeaveNotifications drains the leave notification topic and hands
// each event to the Notifier. Delivery failures are logged and the message is
// left uncommitted for redelivery; they never feed back into the lifecycle
// engine, whose state has long since committed.
func ConsumeLeaveNotifications(
	ctx context.Context,
	reader *kafkago.Reader,
	n notifier.Notifier,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.leave_notification")
	log.Info("leave notification consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("leave notification consumer stopped")
				return
			}
			log.Error("fetch leave notification message failed", zap.Error(err))
			continue
		}

		var event events.LeaveNotificationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// Poison message, drop it or it will block the partition forever.
			log.Error("decode leave notification event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if err := n.Notify(ctx, notifier.FromEvent(event)); err != nil {
			log.Error("deliver leave notification failed",
				zap.String("leave_id", event.LeaveID),
				zap.String("kind", event.EventType),
				zap.String("recipient", event.RecipientEmail),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit leave notification message failed", zap.Error(err))
			continue
		}

		log.Info("leave notification delivered",
			zap.String("leave_id", event.LeaveID),
			zap.String("kind", event.EventType),
			zap.String("recipient", event.RecipientEmail),
		)
	}
}
