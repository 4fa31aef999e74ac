package notify

import (
	"fmt"
	"time"

	"github.com/chachabrian/wheelster-backend/internal/booking"
)

// Message is a rendered notification, ready for any channel.
type Message struct {
	Type    string
	Title   string
	Body    string
	Subject string
	Lines   []string
}

// Render turns a template and its data into a Message.
func Render(tmpl booking.Template, data map[string]any) (Message, error) {
	id := num(data, "bookingId")
	span := fmt.Sprintf("%s to %s", date(data, "startDate"), date(data, "endDate"))

	m := Message{Type: string(tmpl)}
	switch tmpl {
	case booking.TemplateBookingConfirmed:
		m.Title = "Booking confirmed"
		m.Body = fmt.Sprintf("Booking #%s for %s is confirmed.", id, span)
		if name := str(data, "vehicleName"); name != "" {
			m.Lines = append(m.Lines, fmt.Sprintf("Vehicle: %s %s", name, str(data, "registrationNumber")))
		}
		m.Lines = append(m.Lines,
			fmt.Sprintf("Pickup: %s at %s", str(data, "address"), clock(data, "pickupTime")),
			fmt.Sprintf("Amount: %s paid by %s", money(data, "totalAmount"), str(data, "paymentMethod")),
		)
	case booking.TemplateBookingCancelled:
		m.Title = "Booking cancelled"
		m.Body = fmt.Sprintf("Booking #%s for %s has been cancelled.", id, span)
		m.Lines = refundLines(data)
	case booking.TemplateBookingRejected:
		m.Title = "Driver unavailable"
		m.Body = fmt.Sprintf("The driver declined booking #%s for %s, so it has been cancelled.", id, span)
		m.Lines = refundLines(data)
	case booking.TemplateBookingExpired:
		m.Title = "Booking expired"
		m.Body = fmt.Sprintf("Booking #%s for %s expired because payment was not completed in time.", id, span)
	case booking.TemplateDriverAssigned:
		m.Title = "New booking assigned"
		m.Body = fmt.Sprintf("You have been assigned to booking #%s for %s.", id, span)
		m.Lines = []string{
			fmt.Sprintf("Pickup address: %s", str(data, "address")),
			"Please accept or reject the assignment in the app.",
		}
	default:
		return Message{}, fmt.Errorf("unknown notification template %q", tmpl)
	}
	m.Subject = m.Title + " - Wheelster"
	return m, nil
}

func refundLines(data map[string]any) []string {
	switch booking.RefundOutcome(str(data, "refundOutcome")) {
	case booking.RefundOutcomeRefunded:
		return []string{fmt.Sprintf("A refund of %s has been issued.", money(data, "refundAmount"))}
	case booking.RefundOutcomeProcessing:
		return []string{fmt.Sprintf("A refund of %s is being processed.", money(data, "refundAmount"))}
	case booking.RefundOutcomeManual:
		return []string{"Your cash payment will be refunded by our support team."}
	}
	return nil
}

// SMSText is the single-line form used for text messages.
func (m Message) SMSText() string {
	return "Wheelster: " + m.Body
}

func str(data map[string]any, key string) string {
	if v, ok := data[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func num(data map[string]any, key string) string {
	if s := str(data, key); s != "" {
		return s
	}
	return "?"
}

func money(data map[string]any, key string) string {
	if f, ok := data[key].(float64); ok {
		return fmt.Sprintf("%.2f", f)
	}
	return str(data, key)
}

func date(data map[string]any, key string) string {
	if t, ok := data[key].(time.Time); ok {
		return t.Format("02 Jan 2006")
	}
	return str(data, key)
}

func clock(data map[string]any, key string) string {
	if t, ok := data[key].(time.Time); ok {
		return t.Format("15:04")
	}
	return str(data, key)
}
