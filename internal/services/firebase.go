package services

import (
	"context"
	"encoding/json"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Firebase sends push notifications through FCM. A Firebase built without
// credentials is disabled and drops every message.
type Firebase struct {
	client *messaging.Client
	log    *zap.Logger
}

// InitFirebase initializes the Admin SDK from a service account file.
func InitFirebase(ctx context.Context, credentialsPath string, log *zap.Logger) (*Firebase, error) {
	log = log.Named("fcm")
	if credentialsPath == "" {
		log.Warn("FIREBASE_CREDENTIALS_PATH not set, push notifications disabled")
		return &Firebase{log: log}, nil
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	log.Info("Firebase Cloud Messaging initialized")
	return &Firebase{client: client, log: log}, nil
}

func (f *Firebase) Enabled() bool {
	return f != nil && f.client != nil
}

// NotificationPayload represents the notification data
type NotificationPayload struct {
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	ChannelID string         `json:"channelId,omitempty"` // Android notification channel
	Tag       string         `json:"tag,omitempty"`
	Priority  string         `json:"priority,omitempty"` // high or normal
}

func getAndroidConfig(payload NotificationPayload) *messaging.AndroidConfig {
	channelID := payload.ChannelID
	if channelID == "" {
		channelID = "wheelster_bookings"
	}

	priority := messaging.PriorityHigh
	if payload.Priority == "normal" {
		priority = messaging.PriorityDefault
	}

	return &messaging.AndroidConfig{
		Priority: "high",
		Notification: &messaging.AndroidNotification{
			ChannelID:             channelID,
			Priority:              priority,
			Sound:                 "default",
			DefaultSound:          true,
			Icon:                  "ic_stat_logo",
			Tag:                   payload.Tag,
			DefaultVibrateTimings: true,
		},
	}
}

func getAPNSConfig() *messaging.APNSConfig {
	badge := 1
	return &messaging.APNSConfig{
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Sound:          "default",
				Badge:          &badge,
				MutableContent: true,
			},
		},
	}
}

// stringifyData converts payload data to the string map FCM requires.
// Complex values are JSON encoded; values that cannot be are skipped.
func stringifyData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case string:
			out[key] = v
		case int, int64, uint, float64, bool:
			out[key] = fmt.Sprintf("%v", v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[key] = string(encoded)
		}
	}
	return out
}

func buildMessage(token string, payload NotificationPayload) *messaging.Message {
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data:    stringifyData(payload.Data),
		Token:   token,
		Android: getAndroidConfig(payload),
		APNS:    getAPNSConfig(),
	}
}

// SendNotificationToToken sends a notification to a specific FCM token
func (f *Firebase) SendNotificationToToken(ctx context.Context, token string, payload NotificationPayload) error {
	if !f.Enabled() {
		return nil
	}

	response, err := f.client.Send(ctx, buildMessage(token, payload))
	if err != nil {
		return fmt.Errorf("error sending message: %w", err)
	}
	f.log.Debug("push sent", zap.String("response", response))
	return nil
}
