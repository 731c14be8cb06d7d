// Package mail delivers composed messages over SMTP.
package mail

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"outreach-engine/internal/domain"
)

// Transport is the delivery capability the pipeline depends on. An empty
// attachment path means no attachment.
type Transport interface {
	Deliver(ctx context.Context, to, subject, body, attachment string) error
}

// SMTP sends through one authenticated SMTP account with STARTTLS.
type SMTP struct {
	Host       string
	Port       int
	From       string
	SenderName string
	Username   string
	Password   string
	Log        *zap.SugaredLogger
}

func (s *SMTP) Deliver(ctx context.Context, to, subject, body, attachment string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.SenderName, s.From); err != nil {
		return domain.DeliveryErr(err, "set from")
	}
	if err := msg.To(to); err != nil {
		return domain.DeliveryErr(err, "set to")
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	if attachment != "" {
		if _, err := os.Stat(attachment); err != nil {
			// a missing resume degrades to a plain message, it does not
			// block the send
			s.Log.Warnw("attachment missing, sending without it", "path", attachment)
		} else {
			msg.AttachFile(attachment)
		}
	}

	client, err := gomail.NewClient(s.Host,
		gomail.WithPort(s.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.Username),
		gomail.WithPassword(s.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return domain.DeliveryErr(err, "smtp client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return domain.DeliveryErr(err, "smtp send")
	}
	return nil
}

// IsAuthErr reports whether err looks like an authentication failure,
// which retrying cannot fix.
func IsAuthErr(err error) bool {
	var sendErr *gomail.SendError
	if errors.As(err, &sendErr) {
		return sendErr.Reason == gomail.ErrSMTPAuth
	}
	return false
}
