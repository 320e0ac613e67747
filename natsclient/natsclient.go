package natsclient

import (
	"errors"
	"net/url"

	"github.com/nats-io/nats.go"
)

const (
	PubSubReminder   string = "happytime.reminder"
	PubSubAttendance string = "happytime.attendance"
	PubSubTrigger    string = "happytime.trigger"
)

var ErrInvalidAddress = errors.New("invalid nats address")

// Config contains all arguments required to connect to the nats service.
type Config struct {
	Address string `yaml:"server_address"`
	Name    string `yaml:"client_name"`
	Token   string `yaml:"token"`
}

// Enabled reports whether a server address is configured.
func (c Config) Enabled() bool {
	return c.Address != ""
}

type socket struct {
	conn *nats.Conn
}

func connect(cfg Config) (*socket, error) {
	u, err := url.Parse(cfg.Address)
	if err != nil {
		return nil, errors.Join(ErrInvalidAddress, err)
	}
	if u.Host == "" {
		return nil, errors.Join(ErrInvalidAddress, errors.New("missing host"))
	}
	opts := []nats.Option{nats.Name(cfg.Name)}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	conn, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, err
	}
	return &socket{conn: conn}, nil
}

// Disconnect drains the message queue and disconnects from the pub/sub.
// All subscriptions are put into a drain state, then publishers are drained
// and can not publish any additional messages.
func (s *socket) Disconnect() error {
	return s.conn.Drain()
}
