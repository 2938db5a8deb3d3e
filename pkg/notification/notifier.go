package notification

// NotificationSystem is a delivery channel (email, sms).
type NotificationSystem string

// NoticeType names a kind of message, e.g. a two factor code.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"

	TwofaCodeNotice NoticeType = "twofa_code"
)

type NotificationData struct {
	To      string            // Recipient identifier (e.g., email address, phone number)
	Subject string            // Optional: overrides the template subject
	Body    string            // Optional: used when the template has no text
	Data    map[string]string // Template values
}

// NoticeTemplate holds the templates for one notice on one system.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
