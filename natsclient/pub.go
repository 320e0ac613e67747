package natsclient

import (
	"context"

	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reminder"
)

// Publisher provides functionality to push messages to the pub/sub queue.
type Publisher struct {
	*socket
}

// PublisherConnect connects publisher to the pub/sub queue using provided config.
func PublisherConnect(cfg Config) (*Publisher, error) {
	s, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{socket: s}, nil
}

// PublishReminder publishes the reminder for devices that deliver it.
func (p *Publisher) PublishReminder(r reminder.Reminder) error {
	msg, err := encodeReminder(r)
	if err != nil {
		return err
	}
	return p.conn.Publish(PubSubReminder, msg)
}

// Schedule hands the reminder off to the devices subscribed on the reminder subject.
func (p *Publisher) Schedule(_ context.Context, r reminder.Reminder) error {
	return p.PublishReminder(r)
}

// PublishSummary publishes the rendered attendance.
func (p *Publisher) PublishSummary(s punchclock.Summary) error {
	msg, err := encodeSummary(s)
	if err != nil {
		return err
	}
	return p.conn.Publish(PubSubAttendance, msg)
}

// PublishTrigger asks the punch clock serving the subject to run the action.
func (p *Publisher) PublishTrigger(a punchclock.Action) error {
	msg, err := encodeTrigger(a)
	if err != nil {
		return err
	}
	return p.conn.Publish(PubSubTrigger, msg)
}
