package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pterm/pterm"

	"github.com/wlo1561411/HappyTime/companion"
	"github.com/wlo1561411/HappyTime/configuration"
	"github.com/wlo1561411/HappyTime/natsclient"
	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reminder"
	"github.com/wlo1561411/HappyTime/telemetry"
)

const triggerTimeout = time.Minute

func runServe(cfg configuration.Configuration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)

	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
	}()

	tele, err := telemetry.Run(ctx, cancel, cfg.TelemetryPort)
	if err != nil {
		return err
	}

	timer := reminder.NewTimer(func(r reminder.Reminder) {
		pterm.Info.Printf("%s %s %s\n", r.Title, r.Subtitle, r.Body)
	})
	defer timer.Stop()

	a, err := newApp(ctx, cfg, "happytime-serve", []reminder.Scheduler{timer}, punchclock.WithMeasurer(tele))
	if err != nil {
		return err
	}
	defer a.close()

	if creds, ok := a.punch.RestoreCredentials(); ok {
		printOutcome(a.punch.Login(ctx, creds))
	} else {
		a.log.Warn("serve: no stored credentials, waiting for a login from a companion device")
	}

	go forwardSummaries(ctx, a)

	if cfg.Nats.Enabled() {
		sub, err := natsclient.SubscriberConnect(cfg.Nats)
		if err != nil {
			return err
		}
		defer func() {
			if err := sub.Disconnect(); err != nil {
				a.log.Error(err.Error())
			}
		}()
		trigger := func(action punchclock.Action) {
			go func() {
				tctx, done := context.WithTimeout(ctx, triggerTimeout)
				defer done()
				out := a.punch.Trigger(tctx, action)
				a.log.Info(fmt.Sprintf("serve: broker trigger %s finished, success %v", action, out.Success))
			}()
		}
		if err := sub.SubscribeTriggers(trigger, &a.log); err != nil {
			return err
		}
	}

	if cfg.Companion.Enabled() {
		pterm.Info.Printf("Companion server listening on port %d.\n", cfg.Companion.Port)
		return companion.Run(ctx, cfg.Companion, a.punch, a.summaries, &a.log)
	}

	<-ctx.Done()
	return nil
}

// forwardSummaries hands every published attendance summary to the broker and the webhooks.
func forwardSummaries(ctx context.Context, a *app) {
	sub := a.summaries.Subscribe()
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-sub.Channel():
			if !ok {
				return
			}
			if a.pub != nil {
				if err := a.pub.PublishSummary(s); err != nil {
					a.log.Error(fmt.Sprintf("serve: publishing summary, %s", err))
				}
			}
			if a.hooks != nil {
				if err := a.hooks.PostSummary(s); err != nil {
					a.log.Error(fmt.Sprintf("serve: posting summary, %s", err))
				}
			}
		}
	}
}
