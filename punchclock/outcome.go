package punchclock

import (
	"errors"
	"fmt"
	"time"

	"github.com/wlo1561411/HappyTime/attendance"
	"github.com/wlo1561411/HappyTime/nueip"
	"github.com/wlo1561411/HappyTime/reminder"
)

const (
	MessageCheckInput = "請檢查輸入欄位。"
	MessageRetry      = "請稍後再次嘗試或重新登入。"
	TitleUnknown      = "咦！"
)

var (
	ErrIncompleteInput = errors.New("incomplete input")
	ErrNoToken         = errors.New("no token, login first")
	ErrUnknownAction   = errors.New("unknown action")
	ErrNoCredentials   = errors.New("no stored credentials")
)

// Action is a user or remote request handled by the Service.
type Action string

const (
	ActionLog      Action = "log"
	ActionClockIn  Action = "clockIn"
	ActionClockOut Action = "clockOut"
	ActionLogin    Action = "login"
)

// ParseAction validates the action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionLog, ActionClockIn, ActionClockOut, ActionLogin:
		return a, nil
	default:
		return "", errors.Join(ErrUnknownAction, fmt.Errorf("%q", s))
	}
}

// Label is the human readable action name used in titles.
func (a Action) Label() string {
	switch a {
	case ActionLogin:
		return "登入"
	case ActionClockIn:
		return nueip.In.Label()
	case ActionClockOut:
		return nueip.Out.Label()
	case ActionLog:
		return "讀取出勤紀錄"
	default:
		return string(a)
	}
}

func (a Action) title(success bool) string {
	if success {
		return a.Label() + "成功"
	}
	return a.Label() + "失敗"
}

func actionOf(dir nueip.Direction) Action {
	if dir == nueip.Out {
		return ActionClockOut
	}
	return ActionClockIn
}

// Credentials are the portal login credentials.
type Credentials struct {
	Code     string `json:"code"`
	Account  string `json:"account"`
	Password string `json:"password"`
}

// Complete reports whether no field is empty.
func (c Credentials) Complete() bool {
	return c.Code != "" && c.Account != "" && c.Password != ""
}

// Summary is the rendered attendance of today.
type Summary struct {
	Lines []string  `json:"lines"`
	At    time.Time `json:"at"`
}

// Outcome is the terminal result of one pipeline run.
// Err is the failure of the main step. RefreshErr is the failure of the attendance refresh
// that follows it and never changes Success.
type Outcome struct {
	Action     Action               `json:"action"`
	Success    bool                 `json:"success"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	Err        error                `json:"-"`
	Clock      *nueip.ClockResponse `json:"clock,omitempty"`
	Record     *attendance.Record   `json:"-"`
	RefreshErr error                `json:"-"`
	Reminder   *reminder.Reminder   `json:"reminder,omitempty"`
	At         time.Time            `json:"at"`
}

// Summary returns the rendered attendance of the refresh, if it succeeded.
func (o Outcome) Summary() ([]string, bool) {
	if o.Record == nil {
		return nil, false
	}
	return o.Record.Summary(), true
}

// ErrorText returns the error of the main step or an empty string.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func messageOf(err error) string {
	if errors.Is(err, ErrIncompleteInput) || errors.Is(err, nueip.ErrInvalidURL) {
		return MessageCheckInput
	}
	return MessageRetry
}
