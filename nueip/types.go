package nueip

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is the clock direction.
type Direction int

const (
	In  Direction = 1
	Out Direction = 2
)

var ErrUnknownDirection = errors.New("unknown clock direction")

// ParseDirection parses "in" or "out", case insensitive.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in":
		return In, nil
	case "out":
		return Out, nil
	default:
		return 0, errors.Join(ErrUnknownDirection, fmt.Errorf("%q", s))
	}
}

// Param is the server side identifier of the direction.
func (d Direction) Param() int {
	return int(d)
}

// Label is the human readable action name.
func (d Direction) Label() string {
	switch d {
	case In:
		return "打上班卡"
	case Out:
		return "打下班卡"
	default:
		return ""
	}
}

func (d Direction) String() string {
	switch d {
	case In:
		return "In"
	case Out:
		return "Out"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (d Direction) valid() bool {
	return d == In || d == Out
}

// StatusSuccess is the only clock status treated as success.
const StatusSuccess = "success"

// ClockResponse is the result of a clock request.
//
//	{"status": "success", "message": "GPS打卡成功", "datetime": "2021-08-24 15:59:43", "time": "15:59:43"}
//	{"status": "fail", "message": "GPS打卡失敗（超出允許距離）"}
type ClockResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Datetime string `json:"datetime"`
	Time     string `json:"time"`
}

// IsSuccess reports whether status equals "success". Any other value, missing included, is failure.
func (r ClockResponse) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// State is the state of the logical portal session.
type State int32

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	ClockPending
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case ClockPending:
		return "clock_pending"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
