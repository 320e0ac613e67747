package repopostgre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/wlo1561411/HappyTime/logger"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
)

// Listen creates a listener subscribed to the OutcomesChannel.
// Listener problems are reported to the log.
func Listen(cfg Config, log logger.Logger) (*pq.Listener, error) {
	report := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Error(fmt.Sprintf("outcome listener event %v failed: %s", ev, err))
		}
	}
	l := pq.NewListener(cfg.DSN(), minReconnectInterval, maxReconnectInterval, report)
	if err := l.Listen(OutcomesChannel); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

// SubscribeOutcomes forwards journaled outcomes announced on the listener to c.
// The channel c is closed when ctx is done.
func SubscribeOutcomes(ctx context.Context, l *pq.Listener, c chan<- Entry, log logger.Logger) {
	go func() {
		defer close(c)
		for {
			select {
			case n, ok := <-l.Notify:
				if !ok {
					return
				}
				if n == nil {
					// reconnected; notifications may have been lost meanwhile
					continue
				}
				e, err := decodeEntry(n)
				if err != nil {
					log.Warn(err.Error())
					continue
				}
				select {
				case c <- e:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func decodeEntry(n *pq.Notification) (Entry, error) {
	var e Entry
	if n.Channel != OutcomesChannel {
		return e, errors.Join(ErrUnmarshalFailed, fmt.Errorf("unexpected channel %q", n.Channel))
	}
	if err := json.Unmarshal([]byte(n.Extra), &e); err != nil {
		return e, errors.Join(ErrUnmarshalFailed, err)
	}
	return e, nil
}
