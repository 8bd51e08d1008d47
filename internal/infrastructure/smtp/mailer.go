package smtp

import (
	"context"
	"fmt"

	"github.com/go-subtracker/internal/config"
	"github.com/wneessen/go-mail"
)

// Message is one outgoing email. HTML is required; Text is the plain-text
// alternative and may be empty.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends emails.
type Mailer interface {
	SendEmail(ctx context.Context, msg Message) error
}

type mailer struct {
	host       string
	port       int
	from       string
	username   string
	password   string
	encryption string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:       cfg.SMTPHost,
		port:       cfg.SMTPPort,
		from:       cfg.SMTPFrom,
		username:   cfg.SMTPUsername,
		password:   cfg.SMTPPassword,
		encryption: cfg.SMTPEncryption,
	}
}

func (m *mailer) SendEmail(ctx context.Context, msg Message) error {
	mm := mail.NewMsg()
	if err := mm.From(m.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := mm.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	mm.Subject(msg.Subject)
	if msg.Text != "" {
		mm.SetBodyString(mail.TypeTextPlain, msg.Text)
		mm.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	} else {
		mm.SetBodyString(mail.TypeTextHTML, msg.HTML)
	}

	c, err := mail.NewClient(m.host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("create mail client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, mm)
}

func (m *mailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(tlsPolicy(m.encryption)),
	}
	if m.encryption == "ssl_tls" {
		opts = append(opts, mail.WithSSL())
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	return opts
}

// tlsPolicy refuses to send over plaintext whenever encryption is asked for,
// so credentials never leave unencrypted when STARTTLS is unavailable.
func tlsPolicy(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls", "starttls":
		return mail.TLSMandatory
	default:
		return mail.NoTLS
	}
}
