// Package companion serves the companion devices: a REST surface to trigger actions and read
// today's attendance, and a websocket pushing every attendance refresh.
package companion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/wlo1561411/HappyTime/logger"
	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reactive"
	"github.com/wlo1561411/HappyTime/reminder"
)

const (
	ApiVersion = "1.0.0"
	Header     = "HappyTime-Companion"
)

const (
	AliveURL      = "/alive"          // URL to check if server is alive and version.
	AttendanceURL = "/attendance"     // URL to read the latest attendance summary.
	ReminderURL   = "/reminder"       // URL to read the pending clock out reminder.
	ActionURL     = "/action/:action" // URL to trigger an action.
	WsURL         = "/ws"             // URL to connect to websocket.
)

const tokenHeader = "Token"

var ErrWrongPortSpecified = errors.New("port must be between 1 and 65535")

// Puncher runs the punch clock pipelines.
type Puncher interface {
	Trigger(ctx context.Context, a punchclock.Action) punchclock.Outcome
	Login(ctx context.Context, c punchclock.Credentials) punchclock.Outcome
	PendingReminder() (reminder.Reminder, bool)
}

// Config contains configuration of the companion server.
type Config struct {
	Port       int    `yaml:"port"`        // Port to listen on.
	Token      string `yaml:"token"`       // Shared token every device sends in the Token header, empty disables the check.
	MaxDevices int    `yaml:"max_devices"` // Limit of connected websocket devices, defaults to 32.
}

// Enabled reports whether a port is configured.
func (c Config) Enabled() bool {
	return c.Port != 0
}

type server struct {
	ctx       context.Context
	token     string
	puncher   Puncher
	summaries *reactive.Observable[punchclock.Summary]
	hub       *hub
	log       logger.Logger
}

// Run initializes routing and runs the server. To stop the server cancel the context.
// It blocks until the context is canceled.
func Run(
	ctx context.Context, c Config, p Puncher, summaries *reactive.Observable[punchclock.Summary], log logger.Logger,
) error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrWrongPortSpecified
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", c.Port))
	if err != nil {
		return err
	}
	return serve(ctx, ln, c, p, summaries, log)
}

func serve(
	ctx context.Context, ln net.Listener, c Config, p Puncher, summaries *reactive.Observable[punchclock.Summary], log logger.Logger,
) error {
	ctxx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &server{
		ctx:       ctxx,
		token:     c.Token,
		puncher:   p,
		summaries: summaries,
		hub:       newHub(log, c.MaxDevices),
		log:       log,
	}

	router := s.router()

	listenErr := make(chan error, 1)
	go func() {
		if err := router.Listener(ln); err != nil {
			listenErr <- err
			cancel()
		}
	}()
	go s.hub.run(ctxx)
	go s.runSubscriber(ctxx)

	<-ctxx.Done()

	var err error
	select {
	case err = <-listenErr:
	default:
	}
	if errx := router.Shutdown(); errx != nil {
		err = errors.Join(err, errx)
	}
	return err
}

func (s *server) router() *fiber.App {
	router := fiber.New(fiber.Config{
		Prefork:               false,
		CaseSensitive:         true,
		StrictRouting:         true,
		ReadTimeout:           time.Second * 5,
		WriteTimeout:          time.Second * 60,
		ServerHeader:          Header,
		AppName:               ApiVersion,
		DisableStartupMessage: true,
	})
	router.Use(recover.New())

	router.Get(AliveURL, s.alive)
	router.Get(AttendanceURL, s.authorize, s.attendance)
	router.Get(ReminderURL, s.authorize, s.reminder)
	router.Post(ActionURL, s.authorize, s.action)
	router.Get(WsURL, s.authorize, s.wsWrapper)

	return router
}

func (s *server) authorize(c *fiber.Ctx) error {
	if s.token == "" {
		return c.Next()
	}
	if strings.TrimSpace(c.Get(tokenHeader)) != s.token {
		s.log.Warn(fmt.Sprintf("companion server, wrong token from address: %s", c.IP()))
		return fiber.ErrForbidden
	}
	return c.Next()
}

func (s *server) runSubscriber(ctx context.Context) {
	sub := s.summaries.Subscribe()
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case sum, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.hub.broadcast <- attendanceOf(sum)
		}
	}
}

func attendanceOf(sum punchclock.Summary) AttendanceMessage {
	return AttendanceMessage{Attendance: strings.Join(sum.Lines, "\n")}
}
