package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chachabrian/wheelster-backend/internal/booking"
	"github.com/chachabrian/wheelster-backend/internal/models"
	"github.com/chachabrian/wheelster-backend/internal/services"
)

type stubRecipients struct {
	user  *models.User
	prefs *models.NotificationPreference
}

func (s stubRecipients) GetUser(context.Context, uint) (*models.User, error) {
	if s.user == nil {
		return nil, booking.ErrNotFound
	}
	return s.user, nil
}

func (s stubRecipients) Preferences(context.Context, uint) (*models.NotificationPreference, error) {
	return s.prefs, nil
}

type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recorder) add(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.err
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeEmail struct{ *recorder }

func (fakeEmail) Enabled() bool { return true }
func (f fakeEmail) Send(to []string, subject, _ string) error {
	return f.add("email:" + to[0] + ":" + subject)
}

type fakeSMS struct{ *recorder }

func (fakeSMS) Enabled() bool { return true }
func (f fakeSMS) Send(_ context.Context, msg string, to ...string) error {
	return f.add("sms:" + to[0] + ":" + msg)
}

type fakePush struct{ *recorder }

func (fakePush) Enabled() bool { return true }
func (f fakePush) SendNotificationToToken(_ context.Context, token string, p services.NotificationPayload) error {
	return f.add("push:" + token + ":" + p.Title + ":" + p.Data["type"].(string))
}

type fakeRealtime struct{ *recorder }

func (f fakeRealtime) SendToUser(userID uint, msgType string, _ any) (int, error) {
	return 1, f.add("ws:" + msgType)
}

func testUser() *models.User {
	return &models.User{
		Model:    gorm.Model{ID: 1},
		Name:     "Asha",
		Email:    "asha@example.com",
		Phone:    "+254700000001",
		FCMToken: "fcm-1",
	}
}

func newTestSender(rec *recorder, prefs *models.NotificationPreference) *Sender {
	return NewSender(stubRecipients{user: testUser(), prefs: prefs}, Channels{
		Email:    fakeEmail{rec},
		SMS:      fakeSMS{rec},
		Push:     fakePush{rec},
		Realtime: fakeRealtime{rec},
	}, zap.NewNop())
}

func expiredData() map[string]any {
	return map[string]any{
		"bookingId": uint(12),
		"startDate": time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		"endDate":   time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestSendFansOutToEnabledChannels(t *testing.T) {
	rec := &recorder{}
	s := newTestSender(rec, models.DefaultPreferences(1))

	require.NoError(t, s.Send(context.Background(), 1, booking.TemplateBookingExpired, expiredData()))
	s.Wait()

	assert.ElementsMatch(t, []string{
		"ws:notification",
		"push:fcm-1:Booking expired:booking_expired",
		"email:asha@example.com:Booking expired - Wheelster",
		"sms:+254700000001:Wheelster: Booking #12 for 05 Mar 2026 to 08 Mar 2026 expired because payment was not completed in time.",
	}, rec.got())
}

func TestSendHonoursPreferences(t *testing.T) {
	rec := &recorder{}
	prefs := models.DefaultPreferences(1)
	prefs.EmailEnabled = false
	prefs.SMSEnabled = false
	prefs.WebSocketEnabled = false
	s := newTestSender(rec, prefs)

	require.NoError(t, s.Send(context.Background(), 1, booking.TemplateBookingExpired, expiredData()))
	s.Wait()
	assert.Equal(t, []string{"push:fcm-1:Booking expired:booking_expired"}, rec.got())

	rec2 := &recorder{}
	muted := models.DefaultPreferences(1)
	muted.BookingAlerts = false
	s = newTestSender(rec2, muted)
	require.NoError(t, s.Send(context.Background(), 1, booking.TemplateBookingExpired, expiredData()))
	s.Wait()
	assert.Empty(t, rec2.got())
}

func TestSendSkipsChannelsWithoutAddress(t *testing.T) {
	rec := &recorder{}
	u := testUser()
	u.FCMToken = ""
	u.Phone = ""
	s := NewSender(stubRecipients{user: u, prefs: models.DefaultPreferences(1)}, Channels{
		Email: fakeEmail{rec},
		SMS:   fakeSMS{rec},
		Push:  fakePush{rec},
	}, zap.NewNop())

	require.NoError(t, s.Send(context.Background(), 1, booking.TemplateBookingExpired, expiredData()))
	s.Wait()
	assert.Equal(t, []string{"email:asha@example.com:Booking expired - Wheelster"}, rec.got())
}

func TestSendDeliveryFailuresAreNotReturned(t *testing.T) {
	rec := &recorder{err: errors.New("smtp down")}
	s := newTestSender(rec, models.DefaultPreferences(1))

	assert.NoError(t, s.Send(context.Background(), 1, booking.TemplateBookingExpired, expiredData()))
	s.Wait()
	assert.Len(t, rec.got(), 4)
}

func TestSendErrors(t *testing.T) {
	s := NewSender(stubRecipients{}, Channels{}, zap.NewNop())
	assert.ErrorIs(t, s.Send(context.Background(), 9, booking.TemplateBookingExpired, expiredData()), booking.ErrNotFound)
	assert.Error(t, s.Send(context.Background(), 9, booking.Template("promo"), nil))
}

func TestRenderRefundLines(t *testing.T) {
	data := expiredData()
	data["refundOutcome"] = string(booking.RefundOutcomeRefunded)
	data["refundAmount"] = 240.0

	m, err := Render(booking.TemplateBookingCancelled, data)
	require.NoError(t, err)
	assert.Equal(t, "Booking cancelled", m.Title)
	assert.Equal(t, []string{"A refund of 240.00 has been issued."}, m.Lines)

	data["refundOutcome"] = string(booking.RefundOutcomeManual)
	m, err = Render(booking.TemplateBookingRejected, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Your cash payment will be refunded by our support team."}, m.Lines)
}

func TestRenderConfirmation(t *testing.T) {
	data := expiredData()
	data["vehicleName"] = "Swift"
	data["registrationNumber"] = "KA01AB1234"
	data["address"] = "MG Road, Bengaluru"
	data["pickupTime"] = time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	data["totalAmount"] = 300.0
	data["paymentMethod"] = "COD"

	m, err := Render(booking.TemplateBookingConfirmed, data)
	require.NoError(t, err)
	assert.Equal(t, "Booking #12 for 05 Mar 2026 to 08 Mar 2026 is confirmed.", m.Body)
	assert.Equal(t, []string{
		"Vehicle: Swift KA01AB1234",
		"Pickup: MG Road, Bengaluru at 09:30",
		"Amount: 300.00 paid by COD",
	}, m.Lines)
}
