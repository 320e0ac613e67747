package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/wlo1561411/HappyTime/configuration"
	"github.com/wlo1561411/HappyTime/logo"
	"github.com/wlo1561411/HappyTime/nueip"
	"github.com/wlo1561411/HappyTime/punchclock"
)

const usage = `HappyTime clocks in and out of the NUEIP attendance portal, shows today's attendance
and reminds you to clock out. Run "serve" to let companion devices and the broker trigger the actions.`

const defaultJournalLimit = 10

func main() {
	logo.Display()
	godotenv.Load() //nolint:errcheck

	var file string
	configurator := func() (configuration.Configuration, error) {
		if file == "" {
			return configuration.Configuration{}, errors.New("please specify configuration file path with -c <path to file>")
		}
		return configuration.Read(file)
	}

	// withApp runs fn with the components built from the configuration, interrupted by SIGINT.
	withApp := func(service string, fn func(ctx context.Context, a *app) error) error {
		cfg, err := configurator()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		a, err := newApp(ctx, cfg, service, nil)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a)
	}

	var code, account, password string
	var limit int
	var follow bool

	cliApp := &cli.App{
		Name:  "happytime",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				EnvVars:     []string{"HAPPYTIME_CONFIG"},
				Destination: &file,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Logs in to the portal, stores the credentials sealed and shows today's attendance. Missing flags are taken from the stored credentials.",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "code", Usage: "company `CODE`", Destination: &code},
					&cli.StringFlag{Name: "account", Aliases: []string{"a"}, Usage: "`ACCOUNT` name", Destination: &account},
					&cli.StringFlag{
						Name:        "password",
						Aliases:     []string{"p"},
						Usage:       "`PASSWORD` of the account",
						EnvVars:     []string{"HAPPYTIME_PASSWORD"},
						Destination: &password,
					},
				},
				Action: func(_ *cli.Context) error {
					return withApp("happytime-login", func(ctx context.Context, a *app) error {
						given := punchclock.Credentials{Code: code, Account: account, Password: password}
						return runLogin(ctx, a, given)
					})
				},
			},
			{
				Name:      "clock",
				Usage:     "Logs in with the stored credentials and clocks in or out.",
				ArgsUsage: "in|out",
				Action: func(c *cli.Context) error {
					dir, err := nueip.ParseDirection(c.Args().First())
					if err != nil {
						return err
					}
					return withApp("happytime-clock", func(ctx context.Context, a *app) error {
						return runClock(ctx, a, dir)
					})
				},
			},
			{
				Name:    "attendance",
				Aliases: []string{"log"},
				Usage:   "Logs in with the stored credentials and shows today's attendance.",
				Action: func(_ *cli.Context) error {
					return withApp("happytime-attendance", runAttendance)
				},
			},
			{
				Name:  "forget",
				Usage: "Deletes the stored credentials.",
				Action: func(_ *cli.Context) error {
					return withApp("happytime-forget", func(_ context.Context, a *app) error {
						if err := a.punch.DeleteCredentials(); err != nil {
							return err
						}
						pterm.Success.Println("Stored credentials deleted.")
						return nil
					})
				},
			},
			{
				Name:  "journal",
				Usage: "Shows the latest journaled outcomes.",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: defaultJournalLimit, Destination: &limit},
					&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "keep printing new outcomes", Destination: &follow},
				},
				Action: func(_ *cli.Context) error {
					return withApp("happytime-journal", func(ctx context.Context, a *app) error {
						return runJournal(ctx, a, limit, follow)
					})
				},
			},
			{
				Name:      "trigger",
				Usage:     "Asks the punch clock serving the broker to run an action.",
				ArgsUsage: "login|clockIn|clockOut|log",
				Action: func(c *cli.Context) error {
					action, err := punchclock.ParseAction(c.Args().First())
					if err != nil {
						return err
					}
					return withApp("happytime-trigger", func(_ context.Context, a *app) error {
						return runTrigger(a, action)
					})
				},
			},
			{
				Name:  "watch",
				Usage: "Prints the reminders and the attendance published on the broker until interrupted.",
				Action: func(_ *cli.Context) error {
					return withApp("happytime-watch", runWatch)
				},
			},
			{
				Name:  "serve",
				Usage: "Runs the companion server, the telemetry endpoint and the broker triggers until interrupted.",
				Action: func(_ *cli.Context) error {
					cfg, err := configurator()
					if err != nil {
						return err
					}
					return runServe(cfg)
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}
