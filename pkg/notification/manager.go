package notification

import (
	"fmt"
	"sync"
)

// NotificationManager manages notifiers and notification templates.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[NotificationSystem]Notifier
	registry  map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates a manager and applies opts in order.
func NewNotificationManager(opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := &NotificationManager{
		notifiers: make(map[NotificationSystem]Notifier),
		registry:  make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}
	return nm, nil
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.notifiers[system] = notifier
}

// RegisterNotification adds or replaces the template for a notice on a system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("template for %s/%s has no content", noticeType, system)
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.registry[noticeType]; !exists {
		nm.registry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.registry[noticeType][system] = template
	return nil
}

// Send delivers a notice through the notifier registered for system.
func (nm *NotificationManager) Send(noticeType NoticeType, system NotificationSystem, notification NotificationData) error {
	nm.mu.RLock()
	template, hasTemplate := nm.registry[noticeType][system]
	notifier, hasNotifier := nm.notifiers[system]
	nm.mu.RUnlock()

	if !hasTemplate {
		return fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}
	if !hasNotifier {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}
	return notifier.Send(noticeType, notification, template)
}

// HasNotifier reports whether system can deliver anything.
func (nm *NotificationManager) HasNotifier(system NotificationSystem) bool {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	_, ok := nm.notifiers[system]
	return ok
}
