package notify

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Sender delivers an expiry reminder to the reporting user.
type Sender interface {
	Send(ctx context.Context, reminder Reminder) error
}

// FCMSender pushes reminders through Firebase Cloud Messaging. Each user is
// subscribed to their own topic by the mobile client.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initializes the messaging client from a credentials file.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("notify: init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("notify: init messaging client: %w", err)
	}
	return &FCMSender{client: client}, nil
}

// Send delivers the reminder push.
func (s *FCMSender) Send(ctx context.Context, reminder Reminder) error {
	message := &messaging.Message{
		Topic: "user-" + reminder.UserID,
		Notification: &messaging.Notification{
			Title: "Tu tiempo de carga terminó",
			Body:  fmt.Sprintf("Marcaste %d min en %s. Liberá el conector si ya no estás cargando.", reminder.Duration, reminder.StationName),
		},
		Data: map[string]string{
			"type":            "checkin_expiry",
			"station_id":      reminder.StationID,
			"connector_id":    reminder.ConnectorID,
			"connector_label": reminder.ConnectorLabel,
			"duration":        strconv.Itoa(reminder.Duration),
		},
	}
	if _, err := s.client.Send(ctx, message); err != nil {
		return fmt.Errorf("notify: send reminder: %w", err)
	}
	return nil
}

// NopSender is used when FCM credentials are not configured; reminders are
// logged and dropped.
type NopSender struct {
	Logger *zap.Logger
}

// Send logs the reminder instead of delivering it.
func (s *NopSender) Send(_ context.Context, reminder Reminder) error {
	s.Logger.Info("reminder due (fcm disabled)",
		zap.String("station_id", reminder.StationID),
		zap.String("connector_id", reminder.ConnectorID),
		zap.String("user_id", reminder.UserID),
	)
	return nil
}
