// Package reminder plans the end of work reminder that follows a clock in.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wlo1561411/HappyTime/logger"
)

// ServerTimeLayout is the layout of the datetime the portal returns for a punch.
const ServerTimeLayout = "2006-01-02 15:04:05"

const (
	DefaultOffset = 9*time.Hour + time.Minute
	DefaultCutoff = "19:10:59"

	Title    = "下班了！"
	Subtitle = "請記得打卡～～～🧡"

	cutoffLayout = "15:04:05"
)

var (
	ErrInvalidTime     = errors.New("invalid time")
	ErrInvalidConfig   = errors.New("invalid reminder config")
	ErrScheduleFailure = errors.New("schedule failure")
)

// Reminder is the reminder handed to the schedulers.
type Reminder struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	Body     string    `json:"body"`
	At       time.Time `json:"at"`
}

// Scheduler delivers a reminder at its time, or hands it off to something that does.
type Scheduler interface {
	Schedule(ctx context.Context, r Reminder) error
}

// Config holds the reminder planner configuration.
type Config struct {
	Offset   time.Duration `yaml:"offset"`   // time after clock in, defaults to 9h1m
	Cutoff   string        `yaml:"cutoff"`   // latest time of day of a reminder, defaults to 19:10:59
	Location string        `yaml:"location"` // IANA zone of the portal times, defaults to local
}

// Defaults returns the config with empty fields set to their default values.
func (c Config) Defaults() Config {
	if c.Offset == 0 {
		c.Offset = DefaultOffset
	}
	if c.Cutoff == "" {
		c.Cutoff = DefaultCutoff
	}
	return c
}

// Planner computes the reminder time and keeps at most one reminder pending.
type Planner struct {
	mux        sync.Mutex
	offset     time.Duration
	cutoff     time.Duration
	loc        *time.Location
	schedulers []Scheduler
	pending    *Reminder
	log        logger.Logger
}

// NewPlanner creates a Planner handing reminders to every scheduler.
func NewPlanner(cfg Config, log logger.Logger, schedulers ...Scheduler) (*Planner, error) {
	cfg = cfg.Defaults()
	if cfg.Offset < 0 {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("negative offset %s", cfg.Offset))
	}

	c, err := time.Parse(cutoffLayout, cfg.Cutoff)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	cutoff := time.Duration(c.Hour())*time.Hour + time.Duration(c.Minute())*time.Minute + time.Duration(c.Second())*time.Second

	loc := time.Local
	if cfg.Location != "" {
		loc, err = time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
	}

	return &Planner{
		offset:     cfg.Offset,
		cutoff:     cutoff,
		loc:        loc,
		schedulers: schedulers,
		log:        log,
	}, nil
}

// ParseServerTime parses a portal datetime in loc.
func ParseServerTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(ServerTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, errors.Join(ErrInvalidTime, err)
	}
	return t, nil
}

// Target returns clockIn plus the offset, capped at the cutoff of the clock in day.
func (p *Planner) Target(clockIn time.Time) time.Time {
	y, m, d := clockIn.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, clockIn.Location()).Add(p.cutoff)
	target := clockIn.Add(p.offset)
	if target.After(cutoff) {
		return cutoff
	}
	return target
}

// Plan computes the reminder of the clock in datetime and hands it to the schedulers.
// It reports false when the same reminder is already pending. Otherwise the pending
// reminder is replaced, even when a scheduler fails.
func (p *Planner) Plan(ctx context.Context, clockIn string) (Reminder, bool, error) {
	in, err := ParseServerTime(clockIn, p.loc)
	if err != nil {
		return Reminder{}, false, err
	}

	at := p.Target(in)
	r := Reminder{
		Title:    Title,
		Subtitle: Subtitle,
		Body:     at.Format(ServerTimeLayout),
		At:       at,
	}

	p.mux.Lock()
	defer p.mux.Unlock()

	if p.pending != nil && p.pending.Body == r.Body {
		p.log.Debug(fmt.Sprintf("reminder: %s already pending", r.Body))
		return *p.pending, false, nil
	}
	p.pending = &r

	var errs []error
	for _, s := range p.schedulers {
		if err := s.Schedule(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := errors.Join(append([]error{ErrScheduleFailure}, errs...)...)
		p.log.Warn(fmt.Sprintf("reminder: scheduling %s, %s", r.Body, err))
		return r, true, err
	}

	p.log.Info(fmt.Sprintf("reminder: planned at %s", r.Body))
	return r, true, nil
}

// Pending returns the pending reminder.
func (p *Planner) Pending() (Reminder, bool) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.pending == nil {
		return Reminder{}, false
	}
	return *p.pending, true
}

// Stopper is a Scheduler able to drop the reminder it holds.
type Stopper interface {
	Stop()
}

// Clear forgets the pending reminder and stops every scheduler that is a Stopper.
func (p *Planner) Clear() {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.pending = nil
	for _, s := range p.schedulers {
		if st, ok := s.(Stopper); ok {
			st.Stop()
		}
	}
}
