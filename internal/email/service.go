package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/patient-intake/pkg/logger"
)

type Service interface {
	SendRegistrationConfirmation(ctx context.Context, to, name, physician string) error
}

// Config holds the SMTP settings. An empty Host disables delivery.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender delivers a composed message.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	from   string
	sender Sender
	logger *logger.Logger
}

// NewService returns an SMTP backed service, or a service that only logs when
// no host is configured.
func NewService(cfg Config, log *logger.Logger) Service {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Host == "" {
		return &noopService{logger: log}
	}
	return NewServiceWithSender(cfg.From, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), log)
}

func NewServiceWithSender(from string, sender Sender, log *logger.Logger) Service {
	if log == nil {
		log = logger.Nop()
	}
	return &smtpService{from: from, sender: sender, logger: log}
}

func (s *smtpService) SendRegistrationConfirmation(ctx context.Context, to, name, physician string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your patient registration is complete")
	m.SetBody("text/plain", confirmationBody(name, physician))

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send confirmation to %s: %w", to, err)
	}
	s.logger.Debug("Registration confirmation sent", "to", to)
	return nil
}

func confirmationBody(name, physician string) string {
	return fmt.Sprintf(
		"Hi %s,\n\nThank you for registering. Your primary care physician is Dr. %s.\n"+
			"You can now request your first appointment.\n",
		name, physician,
	)
}

type noopService struct {
	logger *logger.Logger
}

func (s *noopService) SendRegistrationConfirmation(_ context.Context, to, _, _ string) error {
	s.logger.Debug("SMTP disabled, skipping confirmation", "to", to)
	return nil
}
