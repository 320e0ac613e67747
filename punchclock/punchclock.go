// Package punchclock runs the user pipelines: login followed by an attendance refresh,
// clock in or out followed by an attendance refresh, or a refresh alone.
package punchclock

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wlo1561411/HappyTime/attendance"
	"github.com/wlo1561411/HappyTime/geofence"
	"github.com/wlo1561411/HappyTime/logger"
	"github.com/wlo1561411/HappyTime/nueip"
	"github.com/wlo1561411/HappyTime/reactive"
	"github.com/wlo1561411/HappyTime/reminder"
	"github.com/wlo1561411/HappyTime/secretstore"
	"github.com/wlo1561411/HappyTime/telemetry"
)

const (
	CodeKey     = "code_key"
	AccountKey  = "account_key"
	PasswordKey = "password_key"
)

// WebClient is the portal client.
type WebClient interface {
	Login(ctx context.Context, code, account, password string) (string, error)
	Clock(ctx context.Context, dir nueip.Direction, token string, lat, lng float64) (nueip.ClockResponse, error)
	Attendance(ctx context.Context) (attendance.Record, error)
	Logout()
}

// Planner plans the reminder that follows a clock in.
type Planner interface {
	Plan(ctx context.Context, clockIn string) (reminder.Reminder, bool, error)
	Pending() (reminder.Reminder, bool)
	Clear()
}

// Journal records every outcome.
type Journal interface {
	WriteOutcome(ctx context.Context, o Outcome) error
}

// Measurer records pipeline measurements.
type Measurer interface {
	RecordHistogramTime(name string, t time.Duration) bool
	IncrementGauge(name string) bool
	DecrementGauge(name string) bool
	IncrementCounter(name string) bool
}

// Config holds the punch clock configuration.
type Config struct {
	CompanyCode string `yaml:"company_code"` // replaces the company code of the credentials when set
}

// Option configures the Service.
type Option func(*Service)

// WithPlanner hands successful clock ins to the planner.
func WithPlanner(p Planner) Option {
	return func(s *Service) {
		s.planner = p
	}
}

// WithJournal writes every outcome to the journal.
func WithJournal(j Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithMeasurer records durations, the busy gauge and failures.
func WithMeasurer(m Measurer) Option {
	return func(s *Service) {
		s.measurer = m
	}
}

// WithBox replaces the box the clock coordinates are sampled from.
func WithBox(b geofence.Box) Option {
	return func(s *Service) {
		s.box = b
	}
}

// WithRand replaces the source of the clock coordinates.
func WithRand(rnd *rand.Rand) Option {
	return func(s *Service) {
		s.rnd = rnd
	}
}

// WithNow replaces the clock of the outcomes.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates the portal client, the secret store and the attendance summaries.
type Service struct {
	cfg       Config
	web       WebClient
	store     secretstore.Store
	summaries *reactive.Observable[Summary]
	log       logger.Logger
	planner   Planner
	journal   Journal
	measurer  Measurer
	box       geofence.Box
	now       func() time.Time

	rndMux sync.Mutex
	rnd    *rand.Rand

	mux         sync.Mutex
	token       string
	credentials Credentials
	saved       bool

	busy atomic.Int32
}

// New creates a Service. Every attendance refresh publishes a Summary to summaries.
func New(
	cfg Config, web WebClient, store secretstore.Store, summaries *reactive.Observable[Summary], log logger.Logger, opts ...Option,
) *Service {
	s := &Service{
		cfg:       cfg,
		web:       web,
		store:     store,
		summaries: summaries,
		log:       log,
		measurer:  nopMeasurer{},
		box:       geofence.Office,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Busy reports whether a pipeline is running.
func (s *Service) Busy() bool {
	return s.busy.Load() > 0
}

// Authenticated reports whether a token is held.
func (s *Service) Authenticated() bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.token != ""
}

// RestoreCredentials loads the stored credentials. It reports false unless all three are stored.
func (s *Service) RestoreCredentials() (Credentials, bool) {
	var (
		c      Credentials
		values = []*string{&c.Code, &c.Account, &c.Password}
	)
	for i, key := range []string{CodeKey, AccountKey, PasswordKey} {
		v, ok, err := s.store.Query(key)
		if err != nil {
			s.log.Warn(fmt.Sprintf("punchclock: reading stored credentials, %s", err))
			return Credentials{}, false
		}
		if !ok {
			s.markSaved(false)
			return Credentials{}, false
		}
		*values[i] = v
	}

	s.mux.Lock()
	s.credentials = c
	s.saved = true
	s.mux.Unlock()
	return c, true
}

// DeleteCredentials removes the stored credentials, forgets the token and logs the web client out.
func (s *Service) DeleteCredentials() error {
	var errs []error
	for _, key := range []string{CodeKey, AccountKey, PasswordKey} {
		if err := s.store.Delete(key); err != nil {
			errs = append(errs, err)
		}
	}

	s.mux.Lock()
	s.token = ""
	s.credentials = Credentials{}
	s.saved = false
	s.mux.Unlock()
	s.web.Logout()
	if s.planner != nil {
		s.planner.Clear()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.log.Info("punchclock: stored credentials deleted")
	return nil
}

// Login logs in and refreshes the attendance. Incomplete credentials are rejected without
// any request. A failed login is terminal and no refresh follows it.
func (s *Service) Login(ctx context.Context, c Credentials) Outcome {
	defer s.enter()()

	s.mux.Lock()
	s.token = ""
	s.mux.Unlock()

	out := Outcome{Action: ActionLogin}

	if s.cfg.CompanyCode != "" && c.Code != s.cfg.CompanyCode {
		if c.Code != "" {
			s.log.Info("punchclock: configured company code replaces the given one")
		}
		c.Code = s.cfg.CompanyCode
	}
	if !c.Complete() {
		out.Title = TitleUnknown
		out.Message = MessageCheckInput
		out.Err = ErrIncompleteInput
		return s.finish(ctx, out)
	}

	start := time.Now()
	tkn, err := s.web.Login(ctx, c.Code, c.Account, c.Password)
	s.measurer.RecordHistogramTime(telemetry.LoginDuration, time.Since(start))
	if err != nil {
		s.measurer.IncrementCounter(telemetry.LoginFailures)
		out.Title = ActionLogin.title(false)
		out.Message = messageOf(err)
		out.Err = err
		return s.finish(ctx, out)
	}

	s.mux.Lock()
	s.token = tkn
	s.credentials = c
	saved := s.saved
	s.mux.Unlock()
	if !saved {
		s.save(c)
	}

	out.Success = true
	out.Title = ActionLogin.title(true)
	s.refresh(ctx, &out)
	s.resume(ctx, &out)
	return s.finish(ctx, out)
}

// Clock clocks in or out and refreshes the attendance whatever the clock result.
// Without a token no request is sent.
func (s *Service) Clock(ctx context.Context, dir nueip.Direction) Outcome {
	defer s.enter()()

	out := Outcome{Action: actionOf(dir)}

	s.mux.Lock()
	tkn := s.token
	s.mux.Unlock()
	if tkn == "" {
		out.Title = TitleUnknown
		out.Message = MessageRetry
		out.Err = ErrNoToken
		return s.finish(ctx, out)
	}

	s.rndMux.Lock()
	coord := s.box.Random(s.rnd)
	s.rndMux.Unlock()

	start := time.Now()
	res, err := s.web.Clock(ctx, dir, tkn, coord.Latitude, coord.Longitude)
	s.measurer.RecordHistogramTime(telemetry.ClockDuration, time.Since(start))

	switch {
	case err != nil:
		s.measurer.IncrementCounter(telemetry.ClockFailures)
		out.Title = out.Action.title(false)
		out.Message = messageOf(err)
		out.Err = err
	default:
		out.Clock = &res
		out.Success = res.IsSuccess()
		out.Title = out.Action.title(out.Success)
		out.Message = res.Message
		if !out.Success {
			s.measurer.IncrementCounter(telemetry.ClockFailures)
			if out.Message == "" {
				out.Message = MessageRetry
			}
		}
	}

	if out.Success && dir == nueip.In {
		s.plan(ctx, &out)
	}

	s.refresh(ctx, &out)
	return s.finish(ctx, out)
}

// Refresh reads today's attendance.
func (s *Service) Refresh(ctx context.Context) Outcome {
	defer s.enter()()

	out := Outcome{Action: ActionLog}
	s.refresh(ctx, &out)
	out.Success = out.RefreshErr == nil
	out.Title = ActionLog.title(out.Success)
	if out.Success {
		lines, _ := out.Summary()
		out.Message = strings.Join(lines, "\n")
	} else {
		out.Err = out.RefreshErr
		out.Message = messageOf(out.RefreshErr)
	}
	return s.finish(ctx, out)
}

// Trigger runs the pipeline of a remote action. Login uses the credentials of the last
// login or the stored ones.
func (s *Service) Trigger(ctx context.Context, a Action) Outcome {
	switch a {
	case ActionLog:
		return s.Refresh(ctx)
	case ActionClockIn:
		return s.Clock(ctx, nueip.In)
	case ActionClockOut:
		return s.Clock(ctx, nueip.Out)
	case ActionLogin:
		s.mux.Lock()
		c := s.credentials
		s.mux.Unlock()
		if !c.Complete() {
			var ok bool
			if c, ok = s.RestoreCredentials(); !ok {
				return s.finish(ctx, Outcome{
					Action:  ActionLogin,
					Title:   TitleUnknown,
					Message: MessageCheckInput,
					Err:     ErrNoCredentials,
				})
			}
		}
		return s.Login(ctx, c)
	default:
		return s.finish(ctx, Outcome{
			Action:  a,
			Title:   TitleUnknown,
			Message: MessageRetry,
			Err:     errors.Join(ErrUnknownAction, fmt.Errorf("%q", a)),
		})
	}
}

func (s *Service) refresh(ctx context.Context, out *Outcome) {
	start := time.Now()
	rec, err := s.web.Attendance(ctx)
	s.measurer.RecordHistogramTime(telemetry.AttendanceDuration, time.Since(start))
	if err != nil {
		s.measurer.IncrementCounter(telemetry.AttendanceFailures)
		s.log.Warn(fmt.Sprintf("punchclock: attendance refresh after %s failed, %s", out.Action, err))
		out.RefreshErr = err
		return
	}
	out.Record = &rec
	if s.summaries != nil {
		s.summaries.Publish(Summary{Lines: rec.Summary(), At: s.now()})
	}
}

func (s *Service) plan(ctx context.Context, out *Outcome) {
	if s.planner == nil || out.Clock == nil || out.Clock.Datetime == "" {
		return
	}
	r, planned, err := s.planner.Plan(ctx, out.Clock.Datetime)
	if err != nil {
		s.log.Warn(fmt.Sprintf("punchclock: planning reminder, %s", err))
	}
	if planned {
		out.Reminder = &r
	}
}

// PendingReminder returns the reminder waiting for the clock out.
func (s *Service) PendingReminder() (reminder.Reminder, bool) {
	if s.planner == nil {
		return reminder.Reminder{}, false
	}
	return s.planner.Pending()
}

// resume plans the reminder of a clock in made before this login, for example from another
// device or before a restart. Days with an off-punch already need no reminder.
func (s *Service) resume(ctx context.Context, out *Outcome) {
	if s.planner == nil || out.Record == nil {
		return
	}
	if out.Record.Punch != nil && len(out.Record.Punch.OffPunch) > 0 {
		return
	}
	if _, ok := s.planner.Pending(); ok {
		return
	}
	at, ok := clockInDatetime(*out.Record, s.now())
	if !ok {
		return
	}
	r, planned, err := s.planner.Plan(ctx, at)
	if err != nil {
		s.log.Warn(fmt.Sprintf("punchclock: planning reminder of an earlier clock in, %s", err))
	}
	if planned {
		out.Reminder = &r
	}
}

// clockInDatetime returns the first on-punch of the record in the server datetime layout.
// A bare time of day is placed on today.
func clockInDatetime(rec attendance.Record, today time.Time) (string, bool) {
	workTime, ok := rec.ClockIn()
	if !ok {
		return "", false
	}
	workTime = strings.TrimSpace(workTime)
	if _, err := time.Parse(reminder.ServerTimeLayout, workTime); err == nil {
		return workTime, true
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, workTime); err == nil {
			return today.Format(attendance.DateLayout) + " " + t.Format("15:04:05"), true
		}
	}
	return "", false
}

func (s *Service) save(c Credentials) {
	for _, kv := range [][2]string{{CodeKey, c.Code}, {AccountKey, c.Account}, {PasswordKey, c.Password}} {
		if err := s.store.Save(kv[1], kv[0]); err != nil {
			s.log.Warn(fmt.Sprintf("punchclock: saving credentials, %s", err))
			return
		}
	}
	s.markSaved(true)
}

func (s *Service) markSaved(saved bool) {
	s.mux.Lock()
	s.saved = saved
	s.mux.Unlock()
}

func (s *Service) enter() func() {
	s.busy.Add(1)
	s.measurer.IncrementGauge(telemetry.Busy)
	return func() {
		s.measurer.DecrementGauge(telemetry.Busy)
		s.busy.Add(-1)
	}
}

func (s *Service) finish(ctx context.Context, out Outcome) Outcome {
	out.At = s.now()

	msg := fmt.Sprintf("punchclock: %s finished, success %v", out.Action, out.Success)
	if out.Err != nil {
		msg += fmt.Sprintf(", %s", out.Err)
	}
	if out.Success {
		s.log.Info(msg)
	} else {
		s.log.Warn(msg)
	}

	if s.journal != nil {
		if err := s.journal.WriteOutcome(ctx, out); err != nil {
			s.log.Error(fmt.Sprintf("punchclock: writing journal, %s", err))
		}
	}
	return out
}

type nopMeasurer struct{}

func (nopMeasurer) RecordHistogramTime(string, time.Duration) bool { return false }
func (nopMeasurer) IncrementGauge(string) bool                     { return false }
func (nopMeasurer) DecrementGauge(string) bool                     { return false }
func (nopMeasurer) IncrementCounter(string) bool                   { return false }
