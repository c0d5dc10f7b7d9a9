package notification

import (
	"context"
	"fmt"

	"fieldhand/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Sender is the part of the FCM client used here.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMNotifier pushes booking notifications to per-actor FCM topics
// ("customer_<id>", "provider_<id>") that the apps subscribe to at login.
type FCMNotifier struct {
	client Sender
	logger *zap.Logger
}

func NewFCMNotifier(client Sender, logger *zap.Logger) (*FCMNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("notification service initialization error: messaging client is nil")
	}
	return &FCMNotifier{client: client, logger: logger}, nil
}

// Notify sends n to the recipient's topic.
func (s *FCMNotifier) Notify(ctx context.Context, n models.Notification) error {
	msg := buildMessage(n)
	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("Notify: failed to send FCM message to %s: %w", msg.Topic, err)
	}
	s.logger.Debug("Push notification sent",
		zap.String("topic", msg.Topic),
		zap.String("type", n.Type),
		zap.String("messageID", id))
	return nil
}

// Topic returns the FCM topic for an actor.
func Topic(a models.Actor) string {
	return fmt.Sprintf("%s_%s", a.Kind, a.ID)
}

func buildMessage(n models.Notification) *messaging.Message {
	data := make(map[string]string, len(n.Data)+2)
	for k, v := range n.Data {
		data[k] = v
	}
	data["type"] = n.Type
	data["role"] = string(n.Recipient.Kind)

	return &messaging.Message{
		Topic: Topic(n.Recipient),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority",
				Sound:     "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":  "10",
				"apns-push-type": "alert",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
}

// LogNotifier only logs notifications. Used when no Firebase credentials are configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n models.Notification) error {
	l.logger.Info("Push notification (not sent)",
		zap.String("recipient", n.Recipient.String()),
		zap.String("type", n.Type),
		zap.String("title", n.Title))
	return nil
}
