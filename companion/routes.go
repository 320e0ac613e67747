package companion

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wlo1561411/HappyTime/punchclock"
)

// AttendanceMessage carries today's rendered attendance, one punch per line.
type AttendanceMessage struct {
	Attendance string `json:"attendance"`
}

// Request is an action request of a device.
// Credentials are only read for the login action, the stored ones are used when they are empty.
type Request struct {
	Action   string `json:"action"`
	Code     string `json:"code,omitempty"`
	Account  string `json:"account,omitempty"`
	Password string `json:"password,omitempty"`
}

func (r Request) credentials() punchclock.Credentials {
	return punchclock.Credentials{Code: r.Code, Account: r.Account, Password: r.Password}
}

// OutcomeMessage is the result of an action request.
type OutcomeMessage struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func outcomeOf(o punchclock.Outcome) OutcomeMessage {
	return OutcomeMessage{
		Action:  string(o.Action),
		Success: o.Success,
		Title:   o.Title,
		Message: o.Message,
	}
}

func (s *server) alive(c *fiber.Ctx) error {
	return c.JSON(map[string]interface{}{"alive": true, "version": ApiVersion})
}

func (s *server) attendance(c *fiber.Ctx) error {
	sum, ok := s.summaries.Latest()
	if !ok {
		return fiber.ErrNotFound
	}
	return c.JSON(attendanceOf(sum))
}

func (s *server) reminder(c *fiber.Ctx) error {
	r, ok := s.puncher.PendingReminder()
	if !ok {
		return fiber.ErrNotFound
	}
	return c.JSON(r)
}

func (s *server) action(c *fiber.Ctx) error {
	req := Request{Action: c.Params("action")}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.ErrBadRequest
		}
		req.Action = c.Params("action")
	}

	out, err := s.handle(req)
	if err != nil {
		return fiber.ErrBadRequest
	}
	return c.JSON(outcomeOf(out))
}

func (s *server) handle(req Request) (punchclock.Outcome, error) {
	a, err := punchclock.ParseAction(req.Action)
	if err != nil {
		return punchclock.Outcome{}, err
	}
	if a == punchclock.ActionLogin {
		if c := req.credentials(); c != (punchclock.Credentials{}) {
			return s.puncher.Login(s.ctx, c), nil
		}
	}
	return s.puncher.Trigger(s.ctx, a), nil
}
