// Package notify delivers end-of-run reports to external channels.
// Pipelines treat delivery as best effort: a failed notification never
// fails the run that produced it.
package notify

// Severity drives how a channel renders a notification
type Severity int

const (
	NotifyInfo Severity = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification is one end-of-run report
type Notification struct {
	Title    string
	Message  string
	Type     Severity
	Pipeline string // completeness or contamination; empty for general messages
}

// Notifier delivers notifications to one channel
type Notifier interface {
	Send(n Notification) error
}

// NoopNotifier discards everything. Used when no channel is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(Notification) error { return nil }

// MultiNotifier fans one notification out to several channels. Every
// channel is attempted; the last delivery error is returned.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
