package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeasurements(t *testing.T) {
	m := New()
	assert.False(t, m.RecordHistogramTime(LoginDuration, time.Second))
	assert.False(t, m.IncrementGauge(Busy))
	assert.False(t, m.IncrementCounter(ClockFailures))

	m.RegisterPunchClock()
	m.RegisterPunchClock()

	assert.True(t, m.RecordHistogramTime(LoginDuration, 120*time.Millisecond))
	assert.True(t, m.IncrementGauge(Busy))
	assert.True(t, m.IncrementGauge(Busy))
	assert.True(t, m.DecrementGauge(Busy))
	assert.True(t, m.IncrementCounter(ClockFailures))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	assert.Nil(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, LoginDuration+"_count 1"))
	assert.True(t, strings.Contains(text, Busy+" 1"))
	assert.True(t, strings.Contains(text, ClockFailures+" 1"))
	assert.True(t, strings.Contains(text, AttendanceFailures+" 0"))
}

func TestRunRejectsPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := Run(ctx, cancel, 70000)
	assert.NotNil(t, err)
}
