package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/wlo1561411/HappyTime/aeswrapper"
	"github.com/wlo1561411/HappyTime/configuration"
	"github.com/wlo1561411/HappyTime/logging"
	"github.com/wlo1561411/HappyTime/natsclient"
	"github.com/wlo1561411/HappyTime/nueip"
	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reactive"
	"github.com/wlo1561411/HappyTime/reminder"
	"github.com/wlo1561411/HappyTime/repopostgre"
	"github.com/wlo1561411/HappyTime/secretstore"
	"github.com/wlo1561411/HappyTime/stdoutwriter"
	"github.com/wlo1561411/HappyTime/webhooks"
	"github.com/wlo1561411/HappyTime/zincaddapter"
)

const summariesBuffer = 8

var ErrNoDatabase = errors.New("database is not configured")

// app holds every component built from the configuration.
type app struct {
	cfg       configuration.Configuration
	log       logging.Helper
	db        *repopostgre.DataBase
	pub       *natsclient.Publisher
	hooks     *webhooks.Service
	web       *nueip.Client
	summaries *reactive.Observable[punchclock.Summary]
	punch     *punchclock.Service
	closers   []func()
}

// newApp connects the configured back-ends and builds the punch clock service.
// Reminders are handed to the extra schedulers next to the configured broker and webhooks.
func newApp(
	ctx context.Context, cfg configuration.Configuration, service string, extra []reminder.Scheduler, opts ...punchclock.Option,
) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	writers := []io.Writer{}
	switch {
	case cfg.ZincLogger.Enabled():
		zinc, err := zincaddapter.New(cfg.ZincLogger)
		if err != nil {
			pterm.Warning.Printf("Failed to connect to zincsearch due to %s, logging to stdout.\n", err)
			writers = append(writers, &stdoutwriter.Logger{})
			break
		}
		writers = append(writers, &zinc)
	default:
		writers = append(writers, &stdoutwriter.Logger{})
	}

	if cfg.Database.Enabled() {
		db, err := repopostgre.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, errors.Join(ErrNoDatabase, err)
		}
		a.closers = append(a.closers, func() { db.Disconnect(context.Background()) })
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		a.db = db
		writers = append(writers, db)
	}

	callbackOnErr := func(err error) {
		fmt.Println("Error with logger: ", err)
	}
	callbackOnFatal := func(err error) {
		panic(fmt.Sprintf("Error with logger: %s", err))
	}
	a.log = logging.New(service, callbackOnErr, callbackOnFatal, writers...)
	// pending log writes land before the database is disconnected
	a.closers = append(a.closers, a.log.Wait)

	schedulers := append([]reminder.Scheduler{}, extra...)

	if cfg.Nats.Enabled() {
		pub, err := natsclient.PublisherConnect(cfg.Nats)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := pub.Disconnect(); err != nil {
				a.log.Error(err.Error())
			}
		})
		a.pub = pub
		schedulers = append(schedulers, pub)
	}

	if len(cfg.Webhooks.Hooks) > 0 {
		hooks, err := webhooks.FromConfig(cfg.Webhooks, &a.log)
		if err != nil {
			return nil, err
		}
		a.hooks = hooks
		schedulers = append(schedulers, hooks)
	}

	planner, err := reminder.NewPlanner(cfg.Reminder, &a.log, schedulers...)
	if err != nil {
		return nil, err
	}

	store, err := secretstore.NewFile(cfg.SecretStore, aeswrapper.New())
	if err != nil {
		return nil, err
	}

	a.web = nueip.New(cfg.Portal, nil, &a.log)
	a.summaries = reactive.New[punchclock.Summary](summariesBuffer)

	opts = append([]punchclock.Option{
		punchclock.WithPlanner(planner),
		punchclock.WithBox(cfg.Office),
	}, opts...)
	if a.db != nil {
		opts = append(opts, punchclock.WithJournal(a.db))
	}
	a.punch = punchclock.New(
		punchclock.Config{CompanyCode: cfg.Portal.CompanyCode}, a.web, store, a.summaries, &a.log, opts...,
	)

	ok = true
	return a, nil
}

// close releases the components in the reverse order of their creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loginStored logs in with the stored credentials.
func (a *app) loginStored(ctx context.Context) (punchclock.Outcome, error) {
	c, ok := a.punch.RestoreCredentials()
	if !ok {
		return punchclock.Outcome{}, errors.Join(
			punchclock.ErrNoCredentials, errors.New("log in with `happytime login` first"),
		)
	}
	out := a.punch.Login(ctx, c)
	return out, outcomeErr(out)
}
