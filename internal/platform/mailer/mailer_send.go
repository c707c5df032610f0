package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type Mailer struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	Enabled bool
}

func NewMailer(apiKey, fromName, fromEmail string) *Mailer {
	m := &Mailer{
		Enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
	if m.Enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}
	return m
}

func (m *Mailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	if !m.Enabled {
		return "", errors.New("mailer disabled (missing MAILERSEND_API_KEY or EMAIL_FROM)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	// MailerSend uses X-Message-Id
	return res.Header.Get("X-Message-Id"), nil
}

func (m *Mailer) SendBookingConfirmation(c BookingConfirmation) error {
	subject := fmt.Sprintf("Your Stillpoint booking %s is confirmed", c.ConfirmationNumber)

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nYour booking is confirmed.\n\n", c.Name)
	fmt.Fprintf(&text, "Confirmation number: %s\n", c.ConfirmationNumber)
	fmt.Fprintf(&text, "Service: %s\nDate: %s at %s\n", c.ServiceName, c.Date, c.StartTime)
	if c.IsConsultation {
		switch {
		case c.RoomURL != "":
			fmt.Fprintf(&text, "\nJoin your video consultation here: %s\n", c.RoomURL)
		case c.RoomPending:
			text.WriteString("\nYou will receive meeting instructions in a follow-up email.\n")
		}
	} else if c.PaymentNote != "" {
		fmt.Fprintf(&text, "\nPayment: %s\n", c.PaymentNote)
	}
	text.WriteString("\nSee you soon,\nStillpoint Massage\n")

	html := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your booking is confirmed.</p><p><b>Confirmation number: %s</b><br>%s<br>%s at %s</p>`,
		c.Name, c.ConfirmationNumber, c.ServiceName, c.Date, c.StartTime,
	)
	if c.RoomURL != "" {
		html += fmt.Sprintf(`<p>Join your video consultation <a href="%s">here</a>.</p>`, c.RoomURL)
	}

	_, err := m.Send(c.Email, c.Name, subject, text.String(), html)
	return err
}
