package natsclient

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wlo1561411/HappyTime/punchclock"
	"github.com/wlo1561411/HappyTime/reminder"
)

func TestReminderCodec(t *testing.T) {
	r := reminder.Reminder{
		Title:    reminder.Title,
		Subtitle: reminder.Subtitle,
		Body:     "2024-03-04 18:01:00",
		At:       time.Date(2024, time.March, 4, 18, 1, 0, 0, time.UTC),
	}
	msg, err := encodeReminder(r)
	assert.Nil(t, err)

	got, err := decodeReminder(msg)
	assert.Nil(t, err)
	assert.Equal(t, r.Title, got.Title)
	assert.Equal(t, r.Subtitle, got.Subtitle)
	assert.Equal(t, r.Body, got.Body)
	assert.True(t, r.At.Equal(got.At))
}

func TestSummaryCodec(t *testing.T) {
	s := punchclock.Summary{
		Lines: []string{"上班時間 09:00:00", "下班時間 18:02:00"},
		At:    time.Date(2024, time.March, 4, 18, 2, 1, 0, time.UTC),
	}
	msg, err := encodeSummary(s)
	assert.Nil(t, err)

	got, err := decodeSummary(msg)
	assert.Nil(t, err)
	assert.Equal(t, s.Lines, got.Lines)
	assert.True(t, s.At.Equal(got.At))
}

func TestTriggerCodec(t *testing.T) {
	for _, a := range []punchclock.Action{punchclock.ActionLog, punchclock.ActionClockIn, punchclock.ActionClockOut, punchclock.ActionLogin} {
		t.Run(fmt.Sprintf("action %s", a), func(t *testing.T) {
			msg, err := encodeTrigger(a)
			assert.Nil(t, err)
			got, err := decodeTrigger(msg)
			assert.Nil(t, err)
			assert.Equal(t, a, got)
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := decodeTrigger([]byte{0xff, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidMessage)

	msg, err := encode(map[string]any{"action": "dance"})
	assert.Nil(t, err)
	_, err = decodeTrigger(msg)
	assert.ErrorIs(t, err, ErrInvalidMessage)

	msg, err = encode(map[string]any{})
	assert.Nil(t, err)
	_, err = decodeTrigger(msg)
	assert.ErrorIs(t, err, ErrInvalidMessage)

	msg, err = encode(map[string]any{"at": "yesterday"})
	assert.Nil(t, err)
	_, err = decodeReminder(msg)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestConnectInvalidAddress(t *testing.T) {
	_, err := PublisherConnect(Config{Address: "not an address"})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = SubscriberConnect(Config{Address: "://"})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
