package notification

import (
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioConfig struct {
	AccountSid string
	AuthToken  string
	From       string
}

// Configured reports whether credentials were supplied.
func (c TwilioConfig) Configured() bool {
	return c.AccountSid != "" && c.AuthToken != ""
}

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSNotifier delivers text notices through Twilio.
type SMSNotifier struct {
	TwilioConfig TwilioConfig
	api          messageCreator
}

func NewSMSNotifier(config TwilioConfig) *SMSNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})
	return &SMSNotifier{TwilioConfig: config, api: client.Api}
}

func (s *SMSNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("SMS notification requires 'To'")
	}
	body, err := renderText(string(noticeType), template.Text, notification.Data)
	if err != nil {
		return err
	}
	if body == "" {
		body = notification.Body
	}
	if body == "" {
		return fmt.Errorf("SMS notification has no body")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(notification.To)
	params.SetFrom(s.TwilioConfig.From)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		slog.Error("Failed to send sms", "notice", noticeType, "err", err)
		return err
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Info("SMS sent", "notice", noticeType, "to", notification.To, "sid", sid)
	return nil
}
