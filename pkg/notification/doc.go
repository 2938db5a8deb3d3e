// Package notification delivers templated notices over pluggable systems.
//
// A NotificationManager maps each NotificationSystem (email, sms) to a Notifier and
// each (NoticeType, system) pair to a NoticeTemplate. Templates receive
// NotificationData.Data as their dot value.
//
//	nm, err := notification.NewNotificationManager(
//		notification.WithSMTP(smtpConfig),
//		notification.WithConsole(notification.SMSSystem, os.Stdout),
//		notification.WithTwofaCodeTemplates(),
//	)
//
//	err = nm.Send(notification.TwofaCodeNotice, notification.EmailSystem, notification.NotificationData{
//		To:   "alice@example.com",
//		Data: map[string]string{"Username": "alice", "TwofaPasscode": "042917"},
//	})
//
// EmailNotifier is built on github.com/wneessen/go-mail. ConsoleNotifier prints
// text notices and is meant for development.
package notification
