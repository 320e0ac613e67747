package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/wlo1561411/HappyTime/nueip"
	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/repopostgre"
)

const timeLayout = "2006-01-02 15:04:05"

var ErrActionFailed = errors.New("action failed")

// outcomeErr returns nil for a successful outcome.
func outcomeErr(o punchclock.Outcome) error {
	if o.Success {
		return nil
	}
	if o.Err != nil {
		return errors.Join(ErrActionFailed, o.Err)
	}
	return errors.Join(ErrActionFailed, errors.New(o.Title))
}

func printOutcome(o punchclock.Outcome) {
	switch o.Success {
	case true:
		pterm.Success.Println(o.Title)
	default:
		pterm.Error.Println(o.Title)
	}
	if o.Message != "" && o.Action != punchclock.ActionLog {
		pterm.Info.Println(o.Message)
	}
	if o.Reminder != nil {
		pterm.Info.Printf("%s %s %s\n", o.Reminder.Title, o.Reminder.Subtitle, o.Reminder.Body)
	}
	if lines, ok := o.Summary(); ok {
		if len(lines) == 0 {
			pterm.Info.Println("No punches today.")
		}
		for _, l := range lines {
			pterm.Info.Println(l)
		}
	}
	if o.RefreshErr != nil && o.Action != punchclock.ActionLog {
		pterm.Warning.Printf("Attendance not refreshed: %s\n", o.RefreshErr)
	}
}

func runLogin(ctx context.Context, a *app, given punchclock.Credentials) error {
	if !given.Complete() {
		if stored, ok := a.punch.RestoreCredentials(); ok {
			given = fill(given, stored)
		}
	}
	out := a.punch.Login(ctx, given)
	printOutcome(out)
	return outcomeErr(out)
}

// fill sets the empty fields of c from stored.
func fill(c, stored punchclock.Credentials) punchclock.Credentials {
	if c.Code == "" {
		c.Code = stored.Code
	}
	if c.Account == "" {
		c.Account = stored.Account
	}
	if c.Password == "" {
		c.Password = stored.Password
	}
	return c
}

func runClock(ctx context.Context, a *app, dir nueip.Direction) error {
	login, err := a.loginStored(ctx)
	if err != nil {
		if login.Action != "" {
			printOutcome(login)
		}
		return err
	}
	pterm.Success.Println(login.Title)

	out := a.punch.Clock(ctx, dir)
	printOutcome(out)
	return outcomeErr(out)
}

func runAttendance(ctx context.Context, a *app) error {
	login, err := a.loginStored(ctx)
	if login.Action != "" {
		printOutcome(login)
	}
	return err
}

func runJournal(ctx context.Context, a *app, limit int, follow bool) error {
	if a.db == nil {
		return ErrNoDatabase
	}
	entries, err := a.db.ReadOutcomes(ctx, limit)
	if err != nil {
		return err
	}
	data := pterm.TableData{{"ID", "At", "Action", "Success", "Title", "Message"}}
	for i := len(entries) - 1; i >= 0; i-- {
		data = append(data, row(entries[i]))
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	l, err := repopostgre.Listen(a.cfg.Database, &a.log)
	if err != nil {
		return err
	}
	defer l.Close()

	c := make(chan repopostgre.Entry)
	repopostgre.SubscribeOutcomes(ctx, l, c, &a.log)
	for e := range c {
		pterm.Info.Println(strings.Join(row(e), " | "))
	}
	return nil
}

func row(e repopostgre.Entry) []string {
	msg := e.Message
	if e.Error != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Error)
	}
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.CreatedAt.Local().Format(timeLayout),
		e.Action,
		strconv.FormatBool(e.Success),
		e.Title,
		strings.ReplaceAll(msg, "\n", " "),
	}
}
