package twofactor

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/simple-2fa/pkg/account"
	"github.com/tendant/simple-2fa/pkg/notification"
)

// CodeSender delivers a code to user over method.
type CodeSender interface {
	SendCode(ctx context.Context, user account.User, code string, method Method) error
}

// CodeSenderFunc adapts a function to CodeSender.
type CodeSenderFunc func(ctx context.Context, user account.User, code string, method Method) error

func (f CodeSenderFunc) SendCode(ctx context.Context, user account.User, code string, method Method) error {
	return f(ctx, user, code, method)
}

var errNoSender = errors.New("no code sender configured")

type unconfiguredSender struct{}

func (unconfiguredSender) SendCode(context.Context, account.User, string, Method) error {
	return errNoSender
}

// NotificationCodeSender sends codes through a notification manager: email to
// the profile email, sms to the profile phone.
type NotificationCodeSender struct {
	manager *notification.NotificationManager
}

func NewNotificationCodeSender(manager *notification.NotificationManager) *NotificationCodeSender {
	return &NotificationCodeSender{manager: manager}
}

func (s *NotificationCodeSender) SendCode(ctx context.Context, user account.User, code string, method Method) error {
	var (
		system notification.NotificationSystem
		to     string
	)
	switch method {
	case MethodEmail:
		system, to = notification.EmailSystem, user.Profile.Email
	case MethodSMS:
		system, to = notification.SMSSystem, user.Profile.Phone
	default:
		return fmt.Errorf("unsupported method: %s", method)
	}
	if to == "" {
		return fmt.Errorf("user has no %s address", method)
	}

	name := user.Username
	if name == "" {
		name = user.Email
	}
	return s.manager.Send(notification.TwofaCodeNotice, system, notification.NotificationData{
		To: to,
		Data: map[string]string{
			"TwofaPasscode": code,
			"Username":      name,
			"UserId":        user.ID.String(),
		},
	})
}
