package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"crew-onboarding/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/multierr"
)

const ChannelEmail = "email"

// Mailer sends one plain-text message.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends through Amazon SES.
type SESMailer struct {
	client SESService
	from   string
}

func NewSESMailer(client SESService, from string) *SESMailer {
	return &SESMailer{client: client, from: from}
}

func (m *SESMailer) Send(ctx context.Context, to []string, subject, body string) error {
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(m.from),
	})
	return err
}

// SMTPMailer sends through a plain or STARTTLS SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	From     string
}

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before sending email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	msg := buildMessage(m.From, to, subject, body)

	var auth smtp.Auth
	if m.Username != "" && m.Password != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	if !m.UseTLS {
		return smtp.SendMail(addr, auth, m.From, to, msg)
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err = client.Mail(m.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range to {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// EmailSink mails the new hire, their manager and the admin list.
type EmailSink struct {
	mailer    Mailer
	directory *Directory
	events    eventSet
}

func NewEmailSink(mailer Mailer, directory *Directory) *EmailSink {
	return &EmailSink{
		mailer:    mailer,
		directory: directory,
		events:    newEventSet(models.EventOnboardingCompleted, models.EventTaskAssigned),
	}
}

func (s *EmailSink) Name() string { return ChannelEmail }

func (s *EmailSink) Accepts(eventType string) bool { return s.events.has(eventType) }

func (s *EmailSink) Deliver(ctx context.Context, event models.Event) ([]models.Delivery, error) {
	type message struct {
		audience string
		to       []string
	}

	var msgs []message
	if event.Applicant.PersonalEmail != "" {
		msgs = append(msgs, message{AudienceNewHire, []string{event.Applicant.PersonalEmail}})
	}

	var errs error
	if event.Type == models.EventOnboardingCompleted {
		manager, err := s.directory.Manager(ctx, event.Applicant.ManagerID)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else if manager != nil && manager.Email != "" {
			msgs = append(msgs, message{AudienceManager, []string{manager.Email}})
		}
		if admins := s.directory.Admins(); len(admins) > 0 {
			msgs = append(msgs, message{AudienceAdmin, admins})
		}
	}

	data := templateData(event)
	deliveries := make([]models.Delivery, 0, len(msgs))
	for _, m := range msgs {
		tmpl, ok := lookupTemplate(event.Type, m.audience)
		if !ok {
			continue
		}
		body := renderTemplate(tmpl.Body, data)
		if m.audience == AudienceAdmin && event.OneTimePassword != "" {
			body += renderTemplate(credentialsBlock, data) + event.OneTimePassword + "\n"
		}
		d := models.Delivery{Channel: ChannelEmail, Target: m.audience, Status: models.DeliverySent}
		if err := s.mailer.Send(ctx, m.to, renderTemplate(tmpl.Subject, data), body); err != nil {
			d.Status = models.DeliveryFailed
			d.Error = err.Error()
			errs = multierr.Append(errs, fmt.Errorf("email to %s: %w", m.audience, err))
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, errs
}
