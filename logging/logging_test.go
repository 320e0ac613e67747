package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wlo1561411/HappyTime/logger"
)

type safeBuffer struct {
	mux   sync.Mutex
	lines [][]byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.lines = append(b.lines, bytes.Clone(p))
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("closed")
}

func TestHelperWritesAllLevels(t *testing.T) {
	buf := &safeBuffer{}
	h := New("happytime-test", nil, nil, buf)

	h.Debug("debug message")
	h.Info("info message")
	h.Warn("warn message")
	h.Error("error message")
	h.Wait()

	assert.Len(t, buf.lines, 4)
	levels := make(map[string]string)
	for _, raw := range buf.lines {
		var l logger.Log
		assert.Nil(t, json.Unmarshal(raw, &l))
		assert.Equal(t, "happytime-test", l.Service)
		assert.NotNil(t, l.ID)
		levels[l.Level] = l.Msg
	}
	assert.Equal(t, "debug message", levels[logger.LevelDebug])
	assert.Equal(t, "info message", levels[logger.LevelInfo])
	assert.Equal(t, "warn message", levels[logger.LevelWarn])
	assert.Equal(t, "error message", levels[logger.LevelError])
}

func TestHelperFatalCallsCallback(t *testing.T) {
	buf := &safeBuffer{}
	var got error
	h := New("happytime-test", nil, func(err error) { got = err }, buf)

	h.Fatal("cannot continue")

	assert.Len(t, buf.lines, 1)
	assert.NotNil(t, got)
	assert.Equal(t, "cannot continue", got.Error())
}

func TestHelperReportsWriterErrors(t *testing.T) {
	var mux sync.Mutex
	var errs []error
	h := New("happytime-test", func(err error) {
		mux.Lock()
		defer mux.Unlock()
		errs = append(errs, err)
	}, nil, failingWriter{}, failingWriter{})

	h.Info("lost")
	h.Wait()

	mux.Lock()
	defer mux.Unlock()
	assert.Len(t, errs, 2)
}
