package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leavedesk/internal/events"
	"leavedesk/internal/messaging/kafka/consumer"
	"leavedesk/internal/notifier"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RunNotifier consumes leave notification events and delivers them. Delivery
// currently goes through the log-backed notifier; an SMTP implementation can
// be swapped in without touching the consumer loop.
func RunNotifier() error {
	logger := zap.L().Named("app.notifier")

	kafkaBroker := os.Getenv("KAFKA_BROKER")
	if kafkaBroker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        []string{kafkaBroker},
		Topic:          events.LeaveNotificationTopic,
		GroupID:        "leavedesk-notifier",
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumer.ConsumeLeaveNotifications(ctx, reader, notifier.NewLogNotifier(logger), logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("notifier shutting down")
	cancel()

	return nil
}
