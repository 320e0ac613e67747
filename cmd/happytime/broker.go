package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/wlo1561411/HappyTime/natsclient"
	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reminder"
)

var ErrNoBroker = errors.New("nats broker is not configured")

// runTrigger asks the punch clock serving the broker to run the action.
func runTrigger(a *app, action punchclock.Action) error {
	if a.pub == nil {
		return ErrNoBroker
	}
	if err := a.pub.PublishTrigger(action); err != nil {
		return err
	}
	pterm.Success.Printf("%s requested from the serving punch clock.\n", action.Label())
	return nil
}

// runWatch prints the reminders and the attendance published on the broker until the context is done.
func runWatch(ctx context.Context, a *app) error {
	if !a.cfg.Nats.Enabled() {
		return ErrNoBroker
	}
	sub, err := natsclient.SubscriberConnect(a.cfg.Nats)
	if err != nil {
		return err
	}
	defer func() {
		if err := sub.Disconnect(); err != nil {
			a.log.Error(err.Error())
		}
	}()

	if err := sub.SubscribeReminders(func(r reminder.Reminder) {
		pterm.Info.Println(reminderLine(r))
	}, &a.log); err != nil {
		return err
	}
	if err := sub.SubscribeSummaries(func(s punchclock.Summary) {
		pterm.DefaultSection.Println(s.At.Local().Format("15:04:05"))
		pterm.Println(strings.Join(s.Lines, "\n"))
	}, &a.log); err != nil {
		return err
	}

	pterm.Info.Printf("Watching %s and %s, interrupt to stop.\n", natsclient.PubSubReminder, natsclient.PubSubAttendance)
	<-ctx.Done()
	return nil
}

func reminderLine(r reminder.Reminder) string {
	parts := []string{r.Title}
	if r.Subtitle != "" {
		parts = append(parts, r.Subtitle)
	}
	return fmt.Sprintf("%s (%s)", strings.Join(parts, " "), r.Body)
}
