package service

// Notifier delivers user notifications. Send never blocks on delivery and
// never reports failure to the caller.
type Notifier interface {
	Send(userID uint, template string, data map[string]interface{})
}

type nopNotifier struct{}

func (nopNotifier) Send(uint, string, map[string]interface{}) {}

// NopNotifier discards every notification.
var NopNotifier Notifier = nopNotifier{}
