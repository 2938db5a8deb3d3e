package notification

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationManager_Send(t *testing.T) {
	mock := &MockNotifier{}
	nm, err := NewNotificationManager(
		WithNotifier(EmailSystem, mock),
		WithTwofaCodeTemplates(),
	)
	require.NoError(t, err)

	data := NotificationData{To: "alice@example.com", Data: map[string]string{"Username": "alice", "TwofaPasscode": "012345"}}
	require.NoError(t, nm.Send(TwofaCodeNotice, EmailSystem, data))

	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].To)
	assert.Equal(t, "012345", sent[0].Data["TwofaPasscode"])
}

func TestNotificationManager_SendErrors(t *testing.T) {
	nm, err := NewNotificationManager(WithTwofaCodeTemplates())
	require.NoError(t, err)

	err = nm.Send(TwofaCodeNotice, EmailSystem, NotificationData{To: "a@example.com"})
	assert.ErrorContains(t, err, "no notifier registered")

	err = nm.Send(NoticeType("unknown"), EmailSystem, NotificationData{To: "a@example.com"})
	assert.ErrorContains(t, err, "no template registered")

	failing := &MockNotifier{Err: errors.New("gateway down")}
	nm.RegisterNotifier(SMSSystem, failing)
	err = nm.Send(TwofaCodeNotice, SMSSystem, NotificationData{To: "+15550100", Data: map[string]string{"TwofaPasscode": "1"}})
	assert.EqualError(t, err, "gateway down")
}

func TestRegisterNotification_Validation(t *testing.T) {
	nm, err := NewNotificationManager()
	require.NoError(t, err)

	assert.Error(t, nm.RegisterNotification("", EmailSystem, NoticeTemplate{Text: "x"}))
	assert.Error(t, nm.RegisterNotification(TwofaCodeNotice, "", NoticeTemplate{Text: "x"}))
	assert.Error(t, nm.RegisterNotification(TwofaCodeNotice, EmailSystem, NoticeTemplate{Subject: "only subject"}))
	assert.False(t, nm.HasNotifier(EmailSystem))
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	nm, err := NewNotificationManager(WithConsole(SMSSystem, &buf), WithTwofaCodeTemplates())
	require.NoError(t, err)
	assert.True(t, nm.HasNotifier(SMSSystem))

	err = nm.Send(TwofaCodeNotice, SMSSystem, NotificationData{To: "+15550100", Data: map[string]string{"TwofaPasscode": "987654"}})
	require.NoError(t, err)
	assert.Equal(t, "[twofa_code] to=+15550100 Your verification code is 987654\n", buf.String())

	err = nm.Send(TwofaCodeNotice, SMSSystem, NotificationData{})
	assert.Error(t, err)

	// Missing template keys are an error rather than "<no value>"
	err = nm.Send(TwofaCodeNotice, SMSSystem, NotificationData{To: "+15550100"})
	assert.Error(t, err)
}

func TestEmailNotifier_BuildMessage(t *testing.T) {
	n, err := NewEmailNotifier(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"})
	require.NoError(t, err)

	tmpl := NoticeTemplate{
		Subject: "Your verification code",
		Text:    loadTemplate("templates/email/2fa_code.txt"),
		Html:    loadTemplate("templates/email/2fa_code.html"),
	}
	msg, err := n.buildMessage(TwofaCodeNotice, NotificationData{
		To:   "alice@example.com",
		Data: map[string]string{"Username": "alice", "TwofaPasscode": "246810"},
	}, tmpl)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Your verification code")
	assert.Contains(t, raw, "alice@example.com")
	assert.Contains(t, raw, "246810")

	_, err = n.buildMessage(TwofaCodeNotice, NotificationData{}, tmpl)
	assert.ErrorContains(t, err, "requires 'To'")
}
