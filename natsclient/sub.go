package natsclient

import (
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/wlo1561411/HappyTime/logger"
	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reminder"
)

// Subscriber provides functionality to pull messages from the pub/sub queue.
type Subscriber struct {
	*socket
	mux  sync.Mutex
	subs map[string]*nats.Subscription
}

// SubscriberConnect connects subscriber to the pub/sub queue using provided config.
func SubscriberConnect(cfg Config) (*Subscriber, error) {
	s, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	return &Subscriber{socket: s, subs: make(map[string]*nats.Subscription)}, nil
}

// SubscribeTriggers calls call with every valid action published on the trigger subject.
// Invalid messages are logged and dropped.
func (s *Subscriber) SubscribeTriggers(call func(punchclock.Action), log logger.Logger) error {
	return s.subscribe(PubSubTrigger, func(m *nats.Msg) {
		a, err := decodeTrigger(m.Data)
		if err != nil {
			log.Error(err.Error())
			return
		}
		call(a)
	})
}

// SubscribeReminders calls call with every reminder published on the reminder subject.
func (s *Subscriber) SubscribeReminders(call func(reminder.Reminder), log logger.Logger) error {
	return s.subscribe(PubSubReminder, func(m *nats.Msg) {
		r, err := decodeReminder(m.Data)
		if err != nil {
			log.Error(err.Error())
			return
		}
		call(r)
	})
}

// SubscribeSummaries calls call with every summary published on the attendance subject.
func (s *Subscriber) SubscribeSummaries(call func(punchclock.Summary), log logger.Logger) error {
	return s.subscribe(PubSubAttendance, func(m *nats.Msg) {
		sum, err := decodeSummary(m.Data)
		if err != nil {
			log.Error(err.Error())
			return
		}
		call(sum)
	})
}

func (s *Subscriber) subscribe(subject string, handler nats.MsgHandler) error {
	sub, err := s.conn.Subscribe(subject, handler)
	if err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	if prev, ok := s.subs[subject]; ok {
		prev.Unsubscribe() //nolint:errcheck
	}
	s.subs[subject] = sub
	return nil
}
