package push

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	sosChannelID = "sos_alerts"
	sosColor     = "#D32F2F"
)

// FirebaseNotifier sends SOS pushes through Firebase Cloud Messaging.
type FirebaseNotifier struct {
	client *messaging.Client
	logr   *zap.Logger
}

// NewFirebaseNotifier initializes the Firebase app from a service-account file.
func NewFirebaseNotifier(ctx context.Context, credentialsPath string, logr *zap.Logger) (*FirebaseNotifier, error) {
	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}

	return &FirebaseNotifier{client: client, logr: logr}, nil
}

// Send delivers msg to one FCM registration token.
func (n *FirebaseNotifier) Send(ctx context.Context, pushAddress string, msg Message) error {
	if pushAddress == "" {
		return ErrEmptyAddress
	}

	id, err := n.client.Send(ctx, buildMessage(pushAddress, msg, time.Now()))
	if err != nil {
		if IsInvalidTokenError(err) {
			n.logr.Warn("push token rejected by FCM", zap.Error(err))
		}
		return fmt.Errorf("error sending sos push: %w", err)
	}

	n.logr.Debug("sos push sent", zap.String("message_id", id))
	return nil
}

func buildMessage(token string, msg Message, now time.Time) *messaging.Message {
	data := make(map[string]string, len(msg.Data)+3)
	for k, v := range msg.Data {
		data[k] = v
	}
	data["priority"] = "high"
	data["timestamp"] = fmt.Sprintf("%d", now.Unix())
	if msg.ClickLink != "" {
		data["link"] = msg.ClickLink
	}

	m := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:        "alert",
				Priority:     messaging.PriorityMax,
				ChannelID:    sosChannelID,
				DefaultSound: true,
				Color:        sosColor,
			},
		},
	}
	if msg.ClickLink != "" {
		m.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: msg.ClickLink},
		}
	}
	return m
}

// IsInvalidTokenError reports whether FCM rejected the token itself.
func IsInvalidTokenError(err error) bool {
	return messaging.IsRegistrationTokenNotRegistered(err) || messaging.IsSenderIDMismatch(err)
}
