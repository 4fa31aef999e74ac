package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chachabrian/wheelster-backend/internal/booking"
	"github.com/chachabrian/wheelster-backend/internal/models"
	"github.com/chachabrian/wheelster-backend/internal/services"
	"github.com/chachabrian/wheelster-backend/pkg/utils"
)

var _ booking.Notifier = (*Sender)(nil)

const deliveryTimeout = 15 * time.Second

type Recipients interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	Preferences(ctx context.Context, userID uint) (*models.NotificationPreference, error)
}

type EmailSender interface {
	Enabled() bool
	Send(to []string, subject, body string) error
}

type SMSSender interface {
	Enabled() bool
	Send(ctx context.Context, message string, recipients ...string) error
}

type PushSender interface {
	Enabled() bool
	SendNotificationToToken(ctx context.Context, token string, payload services.NotificationPayload) error
}

type RealtimeSender interface {
	SendToUser(userID uint, msgType string, data any) (int, error)
}

// Channels lists the delivery backends. Nil entries are skipped.
type Channels struct {
	Email    EmailSender
	SMS      SMSSender
	Push     PushSender
	Realtime RealtimeSender
}

// Sender fans a notification out to every channel the recipient has
// enabled. The websocket push happens inline; mail, SMS and FCM run in the
// background so a slow provider never holds a booking lock.
type Sender struct {
	users Recipients
	ch    Channels
	log   *zap.Logger
	wg    sync.WaitGroup
}

func NewSender(users Recipients, ch Channels, log *zap.Logger) *Sender {
	return &Sender{users: users, ch: ch, log: log.Named("notify")}
}

func (s *Sender) Send(ctx context.Context, recipientID uint, tmpl booking.Template, data map[string]any) error {
	msg, err := Render(tmpl, data)
	if err != nil {
		return err
	}
	user, err := s.users.GetUser(ctx, recipientID)
	if err != nil {
		return err
	}
	prefs, err := s.users.Preferences(ctx, recipientID)
	if err != nil {
		return err
	}
	if !prefs.BookingAlerts {
		return nil
	}

	if prefs.WebSocketEnabled && s.ch.Realtime != nil {
		if _, err := s.ch.Realtime.SendToUser(recipientID, "notification", map[string]any{
			"type":  msg.Type,
			"title": msg.Title,
			"body":  msg.Body,
			"data":  data,
		}); err != nil {
			s.log.Warn("websocket notification", zap.Uint("user_id", recipientID), zap.Error(err))
		}
	}

	var jobs []func(context.Context) error
	if prefs.PushEnabled && user.FCMToken != "" && enabled(s.ch.Push) {
		jobs = append(jobs, func(ctx context.Context) error {
			return s.ch.Push.SendNotificationToToken(ctx, user.FCMToken, services.NotificationPayload{
				Title: msg.Title,
				Body:  msg.Body,
				Data:  withType(data, msg.Type),
				Tag:   msg.Type,
			})
		})
	}
	if prefs.EmailEnabled && user.Email != "" && enabled(s.ch.Email) {
		jobs = append(jobs, func(context.Context) error {
			body := utils.RenderEmail(msg.Title, "Hello "+user.Name+",", append([]string{msg.Body}, msg.Lines...)...)
			return s.ch.Email.Send([]string{user.Email}, msg.Subject, body)
		})
	}
	if prefs.SMSEnabled && user.Phone != "" && enabled(s.ch.SMS) {
		jobs = append(jobs, func(ctx context.Context) error {
			return s.ch.SMS.Send(ctx, msg.SMSText(), user.Phone)
		})
	}
	if len(jobs) == 0 {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
		defer cancel()

		var errs []error
		for _, job := range jobs {
			if err := job(dctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			s.log.Warn("notification delivery",
				zap.Uint("user_id", recipientID),
				zap.String("template", string(tmpl)),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until background deliveries started so far have finished.
func (s *Sender) Wait() {
	s.wg.Wait()
}

func enabled(ch interface{ Enabled() bool }) bool {
	return ch != nil && ch.Enabled()
}

func withType(data map[string]any, t string) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["type"] = t
	return out
}
