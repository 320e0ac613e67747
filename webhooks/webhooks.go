package webhooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wlo1561411/HappyTime/httpclient"
	"github.com/wlo1561411/HappyTime/logger"
	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reminder"
)

const (
	TriggerReminder   byte = iota // TriggerReminder is triggered when a reminder is planned after a clock in.
	TriggerAttendance             // TriggerAttendance is triggered on every attendance refresh.
)

const defaultTimeout = 5 * time.Second

var (
	ErrorHookNotImplemented = errors.New("hook not implemented")
	ErrPostFailed           = errors.New("webhook post failed")
)

// ReminderMessage is the message sent to the webhook url about a planned reminder.
type ReminderMessage struct {
	Token    string            `json:"token"` // Token given to the webhook by its creator to validate the message source.
	Reminder reminder.Reminder `json:"reminder"`
}

// AttendanceMessage is the message sent to the webhook url about today's attendance.
type AttendanceMessage struct {
	Token string    `json:"token"`
	Lines []string  `json:"lines"`
	At    time.Time `json:"at"`
}

// Hook is the hook that is used to trigger the webhook.
type Hook struct {
	URL   string `json:"address" yaml:"url"` // URL is a url of the webhook.
	Token string `json:"token" yaml:"token"` // Token is added to the message to verify that it comes from the valid source.
}

// HookConfig is a configured hook subscribed to triggers by name.
type HookConfig struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Token    string   `yaml:"token"`
	Triggers []string `yaml:"triggers"` // "reminder" and/or "attendance"
}

// Config holds the configured hooks.
type Config struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxFailures int           `yaml:"max_failures"` // Consecutive failed posts that unregister a hook, zero keeps it forever.
	Hooks       []HookConfig  `yaml:"hooks"`
}

type hooks map[string]Hook

// Service posts reminders and attendance summaries to the registered webhooks.
type Service struct {
	mux         sync.RWMutex
	buffer      map[byte]hooks
	failures    map[byte]map[string]int
	maxFailures int
	timeout     time.Duration
	log         logger.Logger
}

// New creates new instance of the webhook service.
func New(l logger.Logger) *Service {
	return &Service{
		buffer:   make(map[byte]hooks),
		failures: make(map[byte]map[string]int),
		timeout:  defaultTimeout,
		log:      l,
	}
}

// FromConfig creates the service with every configured hook registered.
func FromConfig(cfg Config, l logger.Logger) (*Service, error) {
	s := New(l)
	if cfg.Timeout > 0 {
		s.timeout = cfg.Timeout
	}
	if cfg.MaxFailures > 0 {
		s.maxFailures = cfg.MaxFailures
	}
	for _, hc := range cfg.Hooks {
		for _, name := range hc.Triggers {
			trigger, err := ParseTrigger(name)
			if err != nil {
				return nil, err
			}
			if err := s.CreateWebhook(trigger, hc.Name, Hook{URL: hc.URL, Token: hc.Token}); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// ParseTrigger parses the trigger name.
func ParseTrigger(name string) (byte, error) {
	switch name {
	case "reminder":
		return TriggerReminder, nil
	case "attendance":
		return TriggerAttendance, nil
	default:
		return 0, errors.Join(ErrorHookNotImplemented, fmt.Errorf("trigger %q", name))
	}
}

// CreateWebhook creates new webhook or updates existing one for given trigger.
func (s *Service) CreateWebhook(trigger byte, name string, h Hook) error {
	switch trigger {
	case TriggerReminder, TriggerAttendance:
		s.insertHook(trigger, name, h)
	default:
		return ErrorHookNotImplemented
	}
	return nil
}

// RemoveWebhook removes webhook for given trigger and name.
func (s *Service) RemoveWebhook(trigger byte, name string) error {
	switch trigger {
	case TriggerReminder, TriggerAttendance:
		s.removeHook(trigger, name)
	default:
		return ErrorHookNotImplemented
	}
	return nil
}

// Schedule posts the reminder to all webhooks subscribed to the reminder trigger.
func (s *Service) Schedule(_ context.Context, r reminder.Reminder) error {
	return s.post(TriggerReminder, func(h Hook) any {
		return ReminderMessage{Token: h.Token, Reminder: r}
	})
}

// PostSummary posts the attendance summary to all webhooks subscribed to the attendance trigger.
func (s *Service) PostSummary(sum punchclock.Summary) error {
	return s.post(TriggerAttendance, func(h Hook) any {
		return AttendanceMessage{Token: h.Token, Lines: sum.Lines, At: sum.At}
	})
}

func (s *Service) post(trigger byte, message func(h Hook) any) error {
	s.mux.RLock()
	targets := make(hooks, len(s.buffer[trigger]))
	for name, h := range s.buffer[trigger] {
		targets[name] = h
	}
	s.mux.RUnlock()

	var errs []error
	for name, h := range targets {
		if err := httpclient.MakePost(s.timeout, h.URL, message(h), nil); err != nil {
			s.log.Error(fmt.Sprintf("webhook service error posting to webhook url: %s, %s", h.URL, err.Error()))
			errs = append(errs, err)
			s.failed(trigger, name)
			continue
		}
		s.succeeded(trigger, name)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrPostFailed}, errs...)...)
	}
	return nil
}

// failed counts the failure of the hook and unregisters it once the limit is reached.
func (s *Service) failed(trigger byte, name string) {
	if s.maxFailures <= 0 {
		return
	}
	s.mux.Lock()
	fs, ok := s.failures[trigger]
	if !ok {
		fs = make(map[string]int)
		s.failures[trigger] = fs
	}
	fs[name]++
	count := fs[name]
	s.mux.Unlock()

	if count < s.maxFailures {
		return
	}
	if err := s.RemoveWebhook(trigger, name); err != nil {
		s.log.Error(err.Error())
		return
	}
	s.log.Warn(fmt.Sprintf("webhook %s removed after %d failed posts", name, count))
}

func (s *Service) succeeded(trigger byte, name string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.failures[trigger], name)
}

func (s *Service) insertHook(trigger byte, name string, h Hook) {
	s.mux.Lock()
	defer s.mux.Unlock()
	hs, ok := s.buffer[trigger]
	if !ok {
		hs = make(hooks)
		s.buffer[trigger] = hs
	}
	hs[name] = h
}

func (s *Service) removeHook(trigger byte, name string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	delete(s.failures[trigger], name)
	hs, ok := s.buffer[trigger]
	if !ok {
		return
	}
	delete(hs, name)
}
