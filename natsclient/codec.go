package natsclient

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reminder"
)

var ErrInvalidMessage = errors.New("invalid message")

func encode(fields map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decode(data []byte) (map[string]*structpb.Value, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, errors.Join(ErrInvalidMessage, err)
	}
	return s.GetFields(), nil
}

func encodeReminder(r reminder.Reminder) ([]byte, error) {
	return encode(map[string]any{
		"title":    r.Title,
		"subtitle": r.Subtitle,
		"body":     r.Body,
		"at":       r.At.Format(time.RFC3339),
	})
}

func decodeReminder(data []byte) (reminder.Reminder, error) {
	fields, err := decode(data)
	if err != nil {
		return reminder.Reminder{}, err
	}
	at, err := time.Parse(time.RFC3339, fields["at"].GetStringValue())
	if err != nil {
		return reminder.Reminder{}, errors.Join(ErrInvalidMessage, err)
	}
	return reminder.Reminder{
		Title:    fields["title"].GetStringValue(),
		Subtitle: fields["subtitle"].GetStringValue(),
		Body:     fields["body"].GetStringValue(),
		At:       at,
	}, nil
}

func encodeSummary(s punchclock.Summary) ([]byte, error) {
	lines := make([]any, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, l)
	}
	return encode(map[string]any{
		"lines": lines,
		"at":    s.At.Format(time.RFC3339),
	})
}

func decodeSummary(data []byte) (punchclock.Summary, error) {
	fields, err := decode(data)
	if err != nil {
		return punchclock.Summary{}, err
	}
	at, err := time.Parse(time.RFC3339, fields["at"].GetStringValue())
	if err != nil {
		return punchclock.Summary{}, errors.Join(ErrInvalidMessage, err)
	}
	values := fields["lines"].GetListValue().GetValues()
	lines := make([]string, 0, len(values))
	for _, v := range values {
		lines = append(lines, v.GetStringValue())
	}
	return punchclock.Summary{Lines: lines, At: at}, nil
}

func encodeTrigger(a punchclock.Action) ([]byte, error) {
	return encode(map[string]any{"action": string(a)})
}

func decodeTrigger(data []byte) (punchclock.Action, error) {
	fields, err := decode(data)
	if err != nil {
		return "", err
	}
	v, ok := fields["action"]
	if !ok {
		return "", errors.Join(ErrInvalidMessage, fmt.Errorf("missing action"))
	}
	a, err := punchclock.ParseAction(v.GetStringValue())
	if err != nil {
		return "", errors.Join(ErrInvalidMessage, err)
	}
	return a, nil
}
