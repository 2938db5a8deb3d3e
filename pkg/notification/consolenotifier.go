package notification

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ConsoleNotifier prints rendered text notices to a writer. It stands in for a
// real SMS gateway during development.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleNotifier{w: w}
}

func (c *ConsoleNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("notification requires 'To'")
	}
	body, err := renderText(string(noticeType), template.Text, notification.Data)
	if err != nil {
		return err
	}
	if body == "" {
		body = notification.Body
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = fmt.Fprintf(c.w, "[%s] to=%s %s\n", noticeType, notification.To, body)
	return err
}
