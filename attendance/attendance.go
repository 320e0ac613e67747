// Package attendance decodes the portal attendance report.
//
// The report is keyed by date and then by an internal user serial number that the client
// does not know in advance:
//
//	{"data": {"2024-01-01": {"999": {"punch": {"onPunch": [...], "offPunch": [...]}}}}}
package attendance

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the layout of the date keys of the report.
const DateLayout = "2006-01-02"

const (
	TypeOnPunch  = "onPunch"
	TypeOffPunch = "offPunch"
)

var ErrInvalidValue = errors.New("invalid value")

// Element is a single punch.
type Element struct {
	WorkTime string `json:"work_time"`
	Type     string `json:"type"`
}

// Label returns the display label of the punch type or empty string for unknown types.
func (e Element) Label() string {
	switch e.Type {
	case TypeOnPunch:
		return "上班時間"
	case TypeOffPunch:
		return "下班時間"
	default:
		return ""
	}
}

// Punch holds the punches of one day.
type Punch struct {
	OnPunch  []Element `json:"onPunch"`
	OffPunch []Element `json:"offPunch"`
}

// All merges on-punches and off-punches, on-punches first, both in source order.
func (p *Punch) All() []Element {
	if p == nil {
		return []Element{}
	}
	all := make([]Element, 0, len(p.OnPunch)+len(p.OffPunch))
	all = append(all, p.OnPunch...)
	all = append(all, p.OffPunch...)
	return all
}

// Record is the attendance of the session user for one day.
type Record struct {
	Punch *Punch `json:"punch"`
}

// Punches returns the merged punch list.
func (r Record) Punches() []Element {
	return r.Punch.All()
}

// ClockIn returns the work time of the first on-punch.
func (r Record) ClockIn() (string, bool) {
	if r.Punch == nil || len(r.Punch.OnPunch) == 0 {
		return "", false
	}
	return r.Punch.OnPunch[0].WorkTime, true
}

// Summary renders one line per punch: "<label> <work time>".
func (r Record) Summary() []string {
	punches := r.Punches()
	lines := make([]string, 0, len(punches))
	for _, p := range punches {
		label := p.Label()
		if label == "" {
			label = p.Type
		}
		lines = append(lines, strings.TrimSpace(label+" "+p.WorkTime))
	}
	return lines
}

type payload struct {
	Data json.RawMessage `json:"data"`
}

// Normalize extracts today's record from the attendance report.
// The per-user bucket is selected by the lexicographically smallest user key,
// which is only meaningful when the session sees a single user.
func Normalize(body []byte, today time.Time) (Record, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Record{}, errors.Join(ErrInvalidValue, err)
	}

	var days map[string]json.RawMessage
	if err := decodeObject(p.Data, &days); err != nil {
		return Record{}, errors.Join(ErrInvalidValue, fmt.Errorf("data: %w", err))
	}

	day := today.Format(DateLayout)
	rawBucket, ok := days[day]
	if !ok {
		return Record{}, errors.Join(ErrInvalidValue, fmt.Errorf("no attendance for %s", day))
	}

	var users map[string]json.RawMessage
	if err := decodeObject(rawBucket, &users); err != nil {
		return Record{}, errors.Join(ErrInvalidValue, fmt.Errorf("%s: %w", day, err))
	}
	if len(users) == 0 {
		return Record{}, errors.Join(ErrInvalidValue, fmt.Errorf("%s: no user record", day))
	}

	keys := make([]string, 0, len(users))
	for k := range users {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rec Record
	if err := decodeObject(users[keys[0]], &rec); err != nil {
		return Record{}, errors.Join(ErrInvalidValue, fmt.Errorf("%s/%s: %w", day, keys[0], err))
	}

	return rec, nil
}

func decodeObject(raw json.RawMessage, v any) error {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return errors.New("not an object")
	}
	return json.Unmarshal(raw, v)
}
