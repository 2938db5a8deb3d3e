package notification

import (
	"embed"
	"fmt"
	"io"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithTwilioSMS adds an sms notifier backed by Twilio.
func WithTwilioSMS(config TwilioConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		if !config.Configured() {
			return fmt.Errorf("twilio account sid and auth token are required")
		}
		nm.RegisterNotifier(SMSSystem, NewSMSNotifier(config))
		return nil
	}
}

// WithNotifier registers any notifier for system.
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithConsole prints notices for system to w.
func WithConsole(system NotificationSystem, w io.Writer) NotificationManagerOption {
	return WithNotifier(system, NewConsoleNotifier(w))
}

// WithTwofaCodeTemplates registers the two factor code templates for email and sms.
func WithTwofaCodeTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		if err := nm.RegisterNotification(TwofaCodeNotice, EmailSystem, NoticeTemplate{
			Subject: "Your verification code",
			Text:    loadTemplate("templates/email/2fa_code.txt"),
			Html:    loadTemplate("templates/email/2fa_code.html"),
		}); err != nil {
			return err
		}
		return nm.RegisterNotification(TwofaCodeNotice, SMSSystem, NoticeTemplate{
			Text: loadTemplate("templates/sms/2fa_code.txt"),
		})
	}
}
